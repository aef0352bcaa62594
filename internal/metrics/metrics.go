// Package metrics provides Prometheus metrics for the scheduler and
// executor: liveness, schedule RPC outcomes, and backend lifecycle
// counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Scheduler ──────────────────────────────────────────────────────────────

// ScheduleRequests tracks schedule requests by outcome.
var ScheduleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spawner",
	Name:      "schedule_requests_total",
	Help:      "Total schedule requests by outcome.",
}, []string{"outcome"})

// ScheduleLatency tracks schedule RPC duration in seconds.
var ScheduleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "spawner",
	Name:      "schedule_latency_seconds",
	Help:      "Schedule request duration in seconds, including the downstream spawn handshake.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// LiveDrones tracks the number of drones currently within the liveness
// window, per cluster.
var LiveDrones = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "spawner",
	Name:      "live_drones",
	Help:      "Number of drones within the liveness window, per cluster.",
}, []string{"cluster"})

// ─── Executor ───────────────────────────────────────────────────────────────

// BackendTransitions tracks backend state transitions by resulting state.
var BackendTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spawner",
	Name:      "backend_transitions_total",
	Help:      "Total backend state transitions, labeled by the state reached.",
}, []string{"state"})

// BackendsRunning tracks backends currently in a running() state.
var BackendsRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "spawner",
	Name:      "backends_running",
	Help:      "Number of backends currently in Starting or Ready.",
})

// EngineErrors tracks non-fatal engine errors encountered by the executor,
// by the state active when the error occurred.
var EngineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spawner",
	Name:      "engine_errors_total",
	Help:      "Total engine errors observed by the executor, by state.",
}, []string{"state"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "spawner",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
