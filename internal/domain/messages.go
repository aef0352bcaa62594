package domain

import "time"

// DroneStatus is the heartbeat payload a drone publishes on
// cluster.<C>.drone.<D>.status (spec §3).
type DroneStatus struct {
	DroneID         DroneID     `json:"drone_id"`
	Cluster         ClusterName `json:"cluster"`
	DroneVersion    string      `json:"drone_version"`
	Ready           bool        `json:"ready"`
	RunningBackends []BackendID `json:"running_backends,omitempty"`
}

// ExecutableSpec describes the container image and invocation the engine
// should run. Kept deliberately thin — the engine-specific translation
// (image pull policy, resource limits, mounts) is Docker-plumbing, out of
// scope per spec §1.
type ExecutableSpec struct {
	Image   string            `json:"image"`
	Command []string          `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ScheduleRequest is the payload for a cluster.<C>.schedule RPC (spec §3).
type ScheduleRequest struct {
	Cluster             ClusterName       `json:"cluster"`
	BackendID           BackendID         `json:"backend_id,omitempty"`
	MaxIdleSecs         int64             `json:"max_idle_secs"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Executable          ExecutableSpec    `json:"executable"`
	RequireBearerToken  bool              `json:"require_bearer_token"`
}

// Validate checks the invariants spec §3 names for ScheduleRequest.
func (r ScheduleRequest) Validate() error {
	if r.MaxIdleSecs <= 0 {
		return ErrInvalidMaxIdleSecs
	}
	return nil
}

// SpawnRequest is the scheduler→drone payload on
// cluster.<C>.drone.<D>.spawn (spec §3).
type SpawnRequest struct {
	DroneID     DroneID           `json:"drone_id"`
	BackendID   BackendID         `json:"backend_id"`
	MaxIdleSecs int64             `json:"max_idle_secs"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Executable  ExecutableSpec    `json:"executable"`
	BearerToken *string           `json:"bearer_token,omitempty"`
}

// MaxIdleDuration is a convenience accessor used by the state machine.
func (s SpawnRequest) MaxIdleDuration() time.Duration {
	return time.Duration(s.MaxIdleSecs) * time.Second
}

// SpawnAck is the drone's reply to a SpawnRequest: a single boolean,
// per spec §4.3 ("the drone acks positively (boolean true)").
type SpawnAck struct {
	Accepted bool `json:"accepted"`
}

// ScheduleResponse is the scheduler's reply to a ScheduleRequest — a
// tagged union encoded with an explicit Type discriminator so it survives
// JSON round-tripping without reflection tricks.
type ScheduleResponse struct {
	Type        ScheduleResponseType `json:"type"`
	Drone       DroneID              `json:"drone,omitempty"`
	BackendID   BackendID            `json:"backend_id,omitempty"`
	BearerToken *string              `json:"bearer_token,omitempty"`
}

// ScheduleResponseType discriminates ScheduleResponse's two shapes.
type ScheduleResponseType string

const (
	ScheduleResponseScheduled         ScheduleResponseType = "scheduled"
	ScheduleResponseNoDroneAvailable  ScheduleResponseType = "no_drone_available"
)

// Scheduled builds a success response.
func Scheduled(drone DroneID, backend BackendID, bearerToken *string) ScheduleResponse {
	return ScheduleResponse{
		Type:        ScheduleResponseScheduled,
		Drone:       drone,
		BackendID:   backend,
		BearerToken: bearerToken,
	}
}

// NoDroneAvailableResponse builds the failure response.
func NoDroneAvailableResponse() ScheduleResponse {
	return ScheduleResponse{Type: ScheduleResponseNoDroneAvailable}
}

// TerminationRequest is the payload for backend.<B>.terminate (spec §3/§6).
type TerminationRequest struct {
	BackendID BackendID `json:"backend_id"`
}

// DrainRequest is the payload for cluster.<C>.drone.<D>.drain (spec §4.1).
// A drone that is draining refuses new SpawnRequests but does not disturb
// backends it already owns.
type DrainRequest struct {
	Drone   DroneID     `json:"drone"`
	Cluster ClusterName `json:"cluster"`
	Drain   bool        `json:"drain"`
}

// BackendStateMessage is the durable append-log payload published on
// backend.<B>.state (spec §3/§6).
type BackendStateMessage struct {
	BackendID BackendID    `json:"backend_id"`
	State     BackendState `json:"state"`
	Time      time.Time    `json:"time"`
}

// NewBackendStateMessage stamps the message with the current time.
func NewBackendStateMessage(backendID BackendID, state BackendState) BackendStateMessage {
	return BackendStateMessage{BackendID: backendID, State: state, Time: time.Now()}
}

// BackendStatsMessage is the delta-based stats payload the Backend Monitor
// publishes (spec §4.8). The first raw sample observed for a backend is
// dropped (there is no prior sample to delta against); every subsequent
// sample produces exactly one of these.
type BackendStatsMessage struct {
	BackendID     BackendID `json:"backend_id"`
	CPUDeltaNanos int64     `json:"cpu_delta_nanos"`
	MemBytes      uint64    `json:"mem_bytes"`
	SampledAt     time.Time `json:"sampled_at"`
}

// DNSRecord is the payload published on cluster.<C>.dns.<name> (spec §4.1).
// Resolution itself is out of scope (spec §1); this is just the record
// shape the peripheral DNS store publishes and snapshots.
type DNSRecord struct {
	Name    string    `json:"name"`
	Cluster ClusterName `json:"cluster"`
	Addr    string    `json:"addr"`
	Updated time.Time `json:"updated"`
}
