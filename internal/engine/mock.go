package engine

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/axelav/spawner/internal/domain"
)

// MockEngine drives the backend state machine in tests without a
// container runtime. Load opens a real loopback listener per backend and
// reports it as Running{addr} — enough for the state machine's
// wait_port_ready check to succeed genuinely, without any Docker
// dependency. Tests that want to exercise error/exit/terminate paths call
// SetStatus directly, which also fires the callbacks registered via
// Subscribe — the same notification path a real engine uses for
// externally observed events.
type MockEngine struct {
	mu        sync.Mutex
	statuses  map[domain.BackendID]domain.EngineBackendStatus
	listeners map[domain.BackendID]net.Listener
	handlers  map[int]func(domain.BackendID)
	nextID    int
	stopped   map[domain.BackendID]bool
	stopErr   map[domain.BackendID]error
}

// NewMockEngine returns an empty mock engine.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		statuses:  make(map[domain.BackendID]domain.EngineBackendStatus),
		listeners: make(map[domain.BackendID]net.Listener),
		handlers:  make(map[int]func(domain.BackendID)),
		stopped:   make(map[domain.BackendID]bool),
	}
}

func (m *MockEngine) Load(ctx context.Context, spec domain.SpawnRequest) error {
	if spec.Executable.Image == "" {
		return fmt.Errorf("engine: load: empty image")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("engine: load: %w", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	m.mu.Lock()
	m.listeners[spec.BackendID] = ln
	m.statuses[spec.BackendID] = domain.EngineBackendStatus{
		Kind: domain.EngineStatusRunning,
		Addr: ln.Addr().String(),
	}
	m.mu.Unlock()
	return nil
}

func (m *MockEngine) BackendStatus(ctx context.Context, backendID domain.BackendID) (domain.EngineBackendStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[backendID]
	if !ok {
		return domain.EngineBackendStatus{}, domain.ErrBackendNotFound
	}
	return status, nil
}

func (m *MockEngine) Stop(ctx context.Context, backendID domain.BackendID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[backendID] = true
	if err, ok := m.stopErr[backendID]; ok {
		return err
	}
	if ln, ok := m.listeners[backendID]; ok {
		ln.Close()
		delete(m.listeners, backendID)
	}
	m.statuses[backendID] = domain.EngineBackendStatus{Kind: domain.EngineStatusTerminated}
	return nil
}

// SetStopErr makes Stop return err for backendID, for tests exercising
// error-aggregation paths (e.g. Executor.Shutdown).
func (m *MockEngine) SetStopErr(backendID domain.BackendID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopErr == nil {
		m.stopErr = make(map[domain.BackendID]error)
	}
	m.stopErr[backendID] = err
}

func (m *MockEngine) Subscribe(handler func(domain.BackendID)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

// SetStatus overwrites the engine's recorded status for backendID and
// notifies every subscriber, simulating an externally observed event
// (container exit, OOM, health flip).
func (m *MockEngine) SetStatus(backendID domain.BackendID, status domain.EngineBackendStatus) {
	m.mu.Lock()
	m.statuses[backendID] = status
	var handlers []func(domain.BackendID)
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(backendID)
	}
}

// Stopped reports whether Stop has been called for backendID, for test
// assertions that Stop is called exactly once per terminal transition.
func (m *MockEngine) Stopped(backendID domain.BackendID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[backendID]
}
