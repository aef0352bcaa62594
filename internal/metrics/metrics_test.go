package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestScheduleMetrics(t *testing.T) {
	ScheduleRequests.WithLabelValues("scheduled").Inc()
	ScheduleRequests.WithLabelValues("no_drone_available").Inc()
	ScheduleLatency.Observe(0.25)
	LiveDrones.WithLabelValues("plane.test").Set(3)

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"spawner_schedule_requests_total",
		"spawner_schedule_latency_seconds",
		"spawner_live_drones",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestExecutorMetrics(t *testing.T) {
	BackendTransitions.WithLabelValues("ready").Inc()
	BackendsRunning.Set(2)
	EngineErrors.WithLabelValues("loading").Inc()

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"spawner_backend_transitions_total",
		"spawner_backends_running",
		"spawner_engine_errors_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("bus").Set(1)
	HealthCheckStatus.WithLabelValues("store").Set(1)

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	if !names["spawner_health_check_status"] {
		t.Error("spawner_health_check_status not found")
	}
}
