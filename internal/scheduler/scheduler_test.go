package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

func testCluster(t *testing.T) domain.ClusterName {
	t.Helper()
	c, err := domain.NewClusterName("plane.test")
	if err != nil {
		t.Fatalf("NewClusterName: %v", err)
	}
	return c
}

func baseRequest(t *testing.T) domain.ScheduleRequest {
	return domain.ScheduleRequest{
		Cluster:     testCluster(t),
		MaxIdleSecs: 10,
		Executable:  domain.ExecutableSpec{Image: "test:latest"},
	}
}

// S1: empty liveness index responds NoDroneAvailable.
func TestSchedule_NoDroneAvailable(t *testing.T) {
	s := New(bus.NewMemory(), nil)
	resp := s.Schedule(context.Background(), baseRequest(t))
	if resp.Type != domain.ScheduleResponseNoDroneAvailable {
		t.Fatalf("expected no_drone_available, got %+v", resp)
	}
}

// S2: one ready drone schedules and the handshake reaches the mock agent.
func TestSchedule_OneReadyDroneSchedules(t *testing.T) {
	b := bus.NewMemory()
	s := New(b, nil)
	cluster := testCluster(t)
	drone := domain.DroneID("D1")

	s.liveness.Update(time.Now(), domain.DroneStatus{DroneID: drone, Cluster: cluster, Ready: true})

	sub, err := b.Subscribe(context.Background(), bus.DroneSpawn(cluster, drone), func(m bus.Msg) {
		var req domain.SpawnRequest
		if err := m.Decode(&req); err != nil {
			t.Errorf("decode spawn request: %v", err)
			return
		}
		if req.DroneID != drone {
			t.Errorf("spawn request drone = %q, want %q", req.DroneID, drone)
		}
		_ = b.Reply(context.Background(), m, domain.SpawnAck{Accepted: true})
	})
	if err != nil {
		t.Fatalf("subscribe mock agent: %v", err)
	}
	defer sub.Unsubscribe()

	resp := s.Schedule(context.Background(), baseRequest(t))
	if resp.Type != domain.ScheduleResponseScheduled {
		t.Fatalf("expected scheduled, got %+v", resp)
	}
	if resp.Drone != drone {
		t.Fatalf("drone = %q, want %q", resp.Drone, drone)
	}
	if resp.BackendID == "" {
		t.Fatal("expected a generated backend id")
	}
}

// S3: not-ready drone is ignored.
func TestSchedule_NotReadyDroneIgnored(t *testing.T) {
	s := New(bus.NewMemory(), nil)
	cluster := testCluster(t)
	s.liveness.Update(time.Now(), domain.DroneStatus{DroneID: "D1", Cluster: cluster, Ready: false})

	resp := s.Schedule(context.Background(), baseRequest(t))
	if resp.Type != domain.ScheduleResponseNoDroneAvailable {
		t.Fatalf("expected no_drone_available, got %+v", resp)
	}
}

// S4: ready then not-ready leaves no live drone.
func TestSchedule_ReadyThenNotReady(t *testing.T) {
	s := New(bus.NewMemory(), nil)
	cluster := testCluster(t)
	s.liveness.Update(time.Now(), domain.DroneStatus{DroneID: "D1", Cluster: cluster, Ready: true})
	s.liveness.Update(time.Now(), domain.DroneStatus{DroneID: "D1", Cluster: cluster, Ready: false})

	resp := s.Schedule(context.Background(), baseRequest(t))
	if resp.Type != domain.ScheduleResponseNoDroneAvailable {
		t.Fatalf("expected no_drone_available, got %+v", resp)
	}
}

// S5: expired liveness window excludes a drone that never sent ready=false.
func TestSchedule_ExpiredLiveness(t *testing.T) {
	s := New(bus.NewMemory(), nil)
	cluster := testCluster(t)
	start := time.Now()
	s.liveness.Update(start, domain.DroneStatus{DroneID: "D1", Cluster: cluster, Ready: true})

	s.now = func() time.Time { return start.Add(9 * time.Second) }

	resp := s.Schedule(context.Background(), baseRequest(t))
	if resp.Type != domain.ScheduleResponseNoDroneAvailable {
		t.Fatalf("expected no_drone_available, got %+v", resp)
	}
}

func TestSchedule_RejectsInvalidMaxIdle(t *testing.T) {
	s := New(bus.NewMemory(), nil)
	req := baseRequest(t)
	req.MaxIdleSecs = 0
	resp := s.Schedule(context.Background(), req)
	if resp.Type != domain.ScheduleResponseNoDroneAvailable {
		t.Fatalf("expected no_drone_available for invalid request, got %+v", resp)
	}
}

func TestLivenessIndex_HeartbeatRoundTrip(t *testing.T) {
	idx := NewLivenessIndex()
	cluster := testCluster(t)
	now := time.Now()

	idx.Update(now, domain.DroneStatus{DroneID: "D1", Cluster: cluster, Ready: true})
	idx.Update(now, domain.DroneStatus{DroneID: "D1", Cluster: cluster, Ready: false})

	if _, ok := idx.Pick(cluster, now); ok {
		t.Fatal("expected no live drone after ready=true then ready=false")
	}
}
