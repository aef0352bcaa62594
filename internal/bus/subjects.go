package bus

import (
	"fmt"

	"github.com/axelav/spawner/internal/domain"
)

// Subject grammar (spec §4.1). Every helper takes already-sanitized
// identifiers; callers pass domain.ClusterName.Sanitized() rather than the
// raw dotted name so a cluster name never introduces spurious subject
// levels.

// ClusterSchedule is the schedule RPC subject for a cluster.
func ClusterSchedule(cluster domain.ClusterName) string {
	return fmt.Sprintf("cluster.%s.schedule", cluster.Sanitized())
}

// DroneStatusSubject is the durable heartbeat subject a drone publishes to.
func DroneStatusSubject(cluster domain.ClusterName, drone domain.DroneID) string {
	return fmt.Sprintf("cluster.%s.drone.%s.status", cluster.Sanitized(), drone)
}

// DroneStatusWildcard matches every drone's status subject within a
// cluster, for the scheduler's liveness subscription.
func DroneStatusWildcard(cluster domain.ClusterName) string {
	return fmt.Sprintf("cluster.%s.drone.*.status", cluster.Sanitized())
}

// DroneStatusWildcardAll matches drone status subjects across every
// cluster, for a controller that serves more than one cluster from a
// single bus connection.
const DroneStatusWildcardAll = "cluster.*.drone.*.status"

// DroneSpawn is the scheduler-to-drone spawn RPC subject.
func DroneSpawn(cluster domain.ClusterName, drone domain.DroneID) string {
	return fmt.Sprintf("cluster.%s.drone.%s.spawn", cluster.Sanitized(), drone)
}

// DroneDrain is the drain RPC subject for a single drone.
func DroneDrain(cluster domain.ClusterName, drone domain.DroneID) string {
	return fmt.Sprintf("cluster.%s.drone.%s.drain", cluster.Sanitized(), drone)
}

// BackendState is the durable append-log subject for one backend's state
// transitions.
func BackendState(backend domain.BackendID) string {
	return fmt.Sprintf("backend.%s.state", backend)
}

// BackendStateWildcard matches every backend's state subject, for
// observers that want the full fleet history.
const BackendStateWildcard = "backend.*.state"

// BackendTerminate is the terminate RPC subject for a single backend.
func BackendTerminate(backend domain.BackendID) string {
	return fmt.Sprintf("backend.%s.terminate", backend)
}

// BackendTerminateWildcard matches every backend's terminate subject. A
// drone subscribes to this once and ignores requests naming a backend it
// does not own (executor.KillBackend returns ErrUnknownBackend).
const BackendTerminateWildcard = "backend.*.terminate"

// BackendStats is the stats-delta subject for one backend.
func BackendStats(backend domain.BackendID) string {
	return fmt.Sprintf("backend.%s.stats", backend)
}

// ClusterDNS is the durable DNS record subject for one name within a
// cluster.
func ClusterDNS(cluster domain.ClusterName, name string) string {
	return fmt.Sprintf("cluster.%s.dns.%s", cluster.Sanitized(), name)
}

// ClusterDNSWildcard matches every DNS record within a cluster.
func ClusterDNSWildcard(cluster domain.ClusterName) string {
	return fmt.Sprintf("cluster.%s.dns.*", cluster.Sanitized())
}

// ClusterDNSWildcardAll matches every DNS record across every cluster, for
// the CLI's "list-dns" command.
const ClusterDNSWildcardAll = "cluster.*.dns.*"
