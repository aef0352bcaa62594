package domain

// BackendState is the sum type driving the backend lifecycle (spec §3,
// §4.5). States are strictly ordered by progression; a backend's observed
// state sequence never revisits an earlier state (the Ready idle-wait loop
// does not count as a transition — it re-observes Ready, it doesn't leave
// and re-enter it).
type BackendState string

const (
	Loading             BackendState = "loading"
	Starting            BackendState = "starting"
	Ready               BackendState = "ready"
	ErrorLoading        BackendState = "error_loading"
	ErrorStarting       BackendState = "error_starting"
	TimedOutBeforeReady BackendState = "timed_out_before_ready"
	Failed              BackendState = "failed"
	Exited              BackendState = "exited"
	Swept               BackendState = "swept"
	Terminated          BackendState = "terminated"
)

// Running reports whether a backend in this state should have an active
// BackendMonitor (spec §4.5/§4.8).
func (s BackendState) Running() bool {
	return s == Starting || s == Ready
}

// Terminal reports whether this state is in the terminal set — the
// executor calls engine.Stop exactly once upon entering any of these and
// then exits the per-backend task (spec §4.5).
func (s BackendState) Terminal() bool {
	switch s {
	case ErrorLoading, ErrorStarting, TimedOutBeforeReady, Failed, Exited, Swept, Terminated:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer so log fields print the bare state name.
func (s BackendState) String() string { return string(s) }

// EngineBackendStatus is the status the abstract Engine reports for a
// running backend (spec §4.4).
type EngineBackendStatus struct {
	Kind EngineStatusKind
	Addr string // only meaningful when Kind == EngineStatusRunning
}

// EngineStatusKind discriminates EngineBackendStatus.
type EngineStatusKind string

const (
	EngineStatusLoading    EngineStatusKind = "loading"
	EngineStatusStarting   EngineStatusKind = "starting"
	EngineStatusRunning    EngineStatusKind = "running"
	EngineStatusFailed     EngineStatusKind = "failed"
	EngineStatusExited     EngineStatusKind = "exited"
	EngineStatusTerminated EngineStatusKind = "terminated"
)
