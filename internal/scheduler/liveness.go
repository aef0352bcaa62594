// Package scheduler implements the Cluster Scheduler and its backing Drone
// Liveness Index (spec §4.2/§4.3): a bus-driven component that tracks which
// drones are ready per cluster and answers schedule requests by picking one
// and handshaking with it.
package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/axelav/spawner/internal/domain"
)

// LivenessWindow is the horizon within which a drone must have sent
// ready=true to be considered schedulable (spec §4.2).
const LivenessWindow = 5 * time.Second

// LivenessIndex is the concurrent cluster→(drone→last-ready-timestamp) map
// (spec §3). It is sharded per cluster so heartbeats for different
// clusters never contend on the same lock; eviction is lazy by design —
// stale entries are filtered at Pick time and never proactively removed
// (spec §9, open question b).
type LivenessIndex struct {
	mu       sync.RWMutex
	clusters map[domain.ClusterName]*clusterShard
}

type clusterShard struct {
	mu     sync.RWMutex
	drones map[domain.DroneID]time.Time
}

// NewLivenessIndex returns an empty index.
func NewLivenessIndex() *LivenessIndex {
	return &LivenessIndex{clusters: make(map[domain.ClusterName]*clusterShard)}
}

func (idx *LivenessIndex) shard(cluster domain.ClusterName, create bool) *clusterShard {
	idx.mu.RLock()
	s, ok := idx.clusters[cluster]
	idx.mu.RUnlock()
	if ok || !create {
		return s
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if s, ok := idx.clusters[cluster]; ok {
		return s
	}
	s = &clusterShard{drones: make(map[domain.DroneID]time.Time)}
	idx.clusters[cluster] = s
	return s
}

// Update applies a heartbeat (spec §4.2): ready=true writes (cluster,
// drone)→now; ready=false removes the entry outright, so a drone that goes
// unready and never comes back leaves the index exactly as if it had never
// been heard from (spec §8 round-trip property).
func (idx *LivenessIndex) Update(now time.Time, status domain.DroneStatus) {
	s := idx.shard(status.Cluster, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.Ready {
		s.drones[status.DroneID] = now
	} else {
		delete(s.drones, status.DroneID)
	}
}

// Pick filters drones whose last heartbeat is within LivenessWindow of now
// and selects one uniformly at random — a deliberate placeholder; no
// affinity or load scoring (spec §4.2, §9). ok is false if the cluster has
// never been seen, or every entry has expired.
func (idx *LivenessIndex) Pick(cluster domain.ClusterName, now time.Time) (drone domain.DroneID, ok bool) {
	s := idx.shard(cluster, false)
	if s == nil {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := now.Add(-LivenessWindow)
	ids := lo.Keys(s.drones)
	live := lo.Filter(ids, func(d domain.DroneID, _ int) bool {
		return s.drones[d].After(cutoff)
	})
	if len(live) == 0 {
		return "", false
	}
	return live[rand.Intn(len(live))], true
}

// LiveCount reports how many drones in cluster are within the liveness
// window of now, for the scheduler's live-drone gauge.
func (idx *LivenessIndex) LiveCount(cluster domain.ClusterName, now time.Time) int {
	s := idx.shard(cluster, false)
	if s == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := now.Add(-LivenessWindow)
	return lo.CountBy(lo.Values(s.drones), func(ts time.Time) bool {
		return ts.After(cutoff)
	})
}

// Known reports whether a cluster has ever received a heartbeat, used to
// distinguish an unknown cluster from one with no currently-live drones in
// logging (spec §9 supplement — this distinction is not wire-visible; the
// response variant is NoDroneAvailable either way).
func (idx *LivenessIndex) Known(cluster domain.ClusterName) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.clusters[cluster]
	return ok
}
