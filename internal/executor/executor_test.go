package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
	"github.com/axelav/spawner/internal/engine"
)

type memStore struct {
	mu         sync.Mutex
	backends   map[domain.BackendID]domain.Backend
	lastActive map[domain.BackendID]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		backends:   make(map[domain.BackendID]domain.Backend),
		lastActive: make(map[domain.BackendID]time.Time),
	}
}

func (s *memStore) InsertBackend(ctx context.Context, spec domain.SpawnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[spec.BackendID] = domain.Backend{BackendID: spec.BackendID, State: domain.Loading, Spec: spec}
	s.lastActive[spec.BackendID] = time.Now()
	return nil
}

func (s *memStore) UpdateBackendState(ctx context.Context, backendID domain.BackendID, state domain.BackendState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.backends[backendID]
	b.State = state
	s.backends[backendID] = b
	return nil
}

func (s *memStore) GetBackends(ctx context.Context) ([]domain.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Backend, 0, len(s.backends))
	for _, b := range s.backends {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) InsertProxyRoute(ctx context.Context, backendID domain.BackendID, hostnameLabel, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.backends[backendID]
	b.ProxyRoute = &domain.ProxyRoute{HostnameLabel: hostnameLabel, Addr: addr}
	s.backends[backendID] = b
	return nil
}

func (s *memStore) GetBackendLastActive(ctx context.Context, backendID domain.BackendID) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive[backendID], nil
}

func waitForState(t *testing.T, store *memStore, backendID domain.BackendID, want domain.BackendState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		got := store.backends[backendID].State
		store.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	store.mu.Lock()
	got := store.backends[backendID].State
	store.mu.Unlock()
	t.Fatalf("backend %s: state = %q after %s, want %q", backendID, got, timeout, want)
}

func testSpec(backendID domain.BackendID, maxIdleSecs int64) domain.SpawnRequest {
	return domain.SpawnRequest{
		DroneID:     "D1",
		BackendID:   backendID,
		MaxIdleSecs: maxIdleSecs,
		Executable:  domain.ExecutableSpec{Image: "test:latest"},
	}
}

// S6: terminate while ready drives exactly one engine.Stop and an exit.
func TestExecutor_TerminateWhileReady(t *testing.T) {
	eng := engine.NewMockEngine()
	store := newMemStore()
	b := bus.NewMemory()
	cluster, _ := domain.NewClusterName("plane.test")
	ex := New(eng, store, b, cluster, nil)
	defer ex.Close()

	spec := testSpec("b1", 3600)
	ex.StartBackend(context.Background(), spec)

	waitForState(t, store, spec.BackendID, domain.Ready, 2*time.Second)

	if err := ex.KillBackend(context.Background(), spec.BackendID); err != nil {
		t.Fatalf("KillBackend: %v", err)
	}

	waitForState(t, store, spec.BackendID, domain.Terminated, 2*time.Second)

	deadline := time.Now().Add(time.Second)
	for !eng.Stopped(spec.BackendID) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !eng.Stopped(spec.BackendID) {
		t.Fatal("expected engine.Stop to have been called")
	}
}

func TestExecutor_KillUnknownBackend(t *testing.T) {
	eng := engine.NewMockEngine()
	store := newMemStore()
	b := bus.NewMemory()
	cluster, _ := domain.NewClusterName("plane.test")
	ex := New(eng, store, b, cluster, nil)
	defer ex.Close()

	if err := ex.KillBackend(context.Background(), "ghost"); err != domain.ErrUnknownBackend {
		t.Fatalf("KillBackend(ghost) = %v, want ErrUnknownBackend", err)
	}
}

// Interrupt signals delivered while a backend is Ready cause the step to
// restart against the same state and observe a newly engine-reported
// terminal status rather than progressing past it silently.
func TestExecutor_InterruptObservesExternalExit(t *testing.T) {
	eng := engine.NewMockEngine()
	store := newMemStore()
	b := bus.NewMemory()
	cluster, _ := domain.NewClusterName("plane.test")
	ex := New(eng, store, b, cluster, nil)
	defer ex.Close()

	spec := testSpec("b2", 3600)
	ex.StartBackend(context.Background(), spec)
	waitForState(t, store, spec.BackendID, domain.Ready, 2*time.Second)

	eng.SetStatus(spec.BackendID, domain.EngineBackendStatus{Kind: domain.EngineStatusExited})

	waitForState(t, store, spec.BackendID, domain.Exited, 2*time.Second)
}

// Resuming a non-terminal backend replays its subsequent transitions.
func TestExecutor_ResumeBackends(t *testing.T) {
	eng := engine.NewMockEngine()
	store := newMemStore()
	b := bus.NewMemory()
	cluster, _ := domain.NewClusterName("plane.test")

	spec := testSpec("b3", 3600)
	store.backends[spec.BackendID] = domain.Backend{BackendID: spec.BackendID, State: domain.Loading, Spec: spec}
	store.lastActive[spec.BackendID] = time.Now()

	ex := New(eng, store, b, cluster, nil)
	defer ex.Close()

	if err := ex.ResumeBackends(context.Background()); err != nil {
		t.Fatalf("ResumeBackends: %v", err)
	}

	waitForState(t, store, spec.BackendID, domain.Ready, 2*time.Second)
}

// Shutdown stops the engine for every still-running backend directly,
// without waiting for its task's own terminal-state step to get there.
func TestExecutor_Shutdown_StopsRunningBackends(t *testing.T) {
	eng := engine.NewMockEngine()
	store := newMemStore()
	b := bus.NewMemory()
	cluster, _ := domain.NewClusterName("plane.test")
	ex := New(eng, store, b, cluster, nil)
	defer ex.Close()

	spec := testSpec("b4", 3600)
	ex.StartBackend(context.Background(), spec)
	waitForState(t, store, spec.BackendID, domain.Ready, 2*time.Second)

	if err := ex.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !eng.Stopped(spec.BackendID) {
		t.Fatal("expected Shutdown to call engine.Stop for the running backend")
	}
}

// Shutdown aggregates every failing engine.Stop call instead of
// stopping at the first one.
func TestExecutor_Shutdown_AggregatesStopErrors(t *testing.T) {
	eng := engine.NewMockEngine()
	store := newMemStore()
	b := bus.NewMemory()
	cluster, _ := domain.NewClusterName("plane.test")
	ex := New(eng, store, b, cluster, nil)
	defer ex.Close()

	specA := testSpec("b5", 3600)
	specB := testSpec("b6", 3600)
	ex.StartBackend(context.Background(), specA)
	ex.StartBackend(context.Background(), specB)
	waitForState(t, store, specA.BackendID, domain.Ready, 2*time.Second)
	waitForState(t, store, specB.BackendID, domain.Ready, 2*time.Second)

	eng.SetStopErr(specA.BackendID, errors.New("stop A failed"))
	eng.SetStopErr(specB.BackendID, errors.New("stop B failed"))

	err := ex.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected Shutdown to return an aggregated error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "stop A failed") || !strings.Contains(msg, "stop B failed") {
		t.Errorf("Shutdown error = %q, want both backend failures present", msg)
	}
}
