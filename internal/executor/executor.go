// Package executor implements the per-drone Backend State Machine and its
// Signal Mux (spec §4.5/§4.6): one task per backend, driving it through
// Loading→...→terminal while interleaving externally observed engine
// events, idle sweeps, and explicit termination.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
	"github.com/axelav/spawner/internal/engine"
	"github.com/axelav/spawner/internal/metrics"
)

// Store is the full Local Routing Store contract the executor needs (spec
// §4.7): insert on spawn, state/activity updates, route recording, and
// enumeration for resume-on-restart.
type Store interface {
	stepStore
	InsertBackend(ctx context.Context, spec domain.SpawnRequest) error
	UpdateBackendState(ctx context.Context, backendID domain.BackendID, state domain.BackendState) error
	GetBackends(ctx context.Context) ([]domain.Backend, error)
}

// Executor owns the per-backend signal channels and monitor set for one
// drone (spec §4.6).
type Executor struct {
	engine  engine.Engine
	store   Store
	bus     bus.Bus
	cluster domain.ClusterName
	log     *zap.Logger

	mu        sync.Mutex
	listeners map[domain.BackendID]chan domain.Signal
	monitors  map[domain.BackendID]*BackendMonitor

	unsubscribeEngine func()
}

// New returns an Executor for one drone's engine and store, and starts
// listening for engine-observed events (spec §5: "one executor 'container
// events' task").
func New(eng engine.Engine, store Store, b bus.Bus, cluster domain.ClusterName, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{
		engine:    eng,
		store:     store,
		bus:       b,
		cluster:   cluster,
		log:       log,
		listeners: make(map[domain.BackendID]chan domain.Signal),
		monitors:  make(map[domain.BackendID]*BackendMonitor),
	}
	e.unsubscribeEngine = eng.Subscribe(e.onEngineEvent)
	return e
}

// Close stops listening for engine events. It does not touch any running
// backend task — those exit independently on Terminate or when their
// signal sender is dropped (spec §5 cancellation policy).
func (e *Executor) Close() {
	if e.unsubscribeEngine != nil {
		e.unsubscribeEngine()
	}
}

// Shutdown cascades process shutdown to every running backend task by
// closing its signal channel, observed by each task as "signal sender
// lost" (spec §5) — the per-backend task exits without changing state,
// preserving resumability on the next start. It also tells the engine to
// stop every still-running backend's container directly, concurrently,
// so nothing is left running unsupervised while the drone is down; the
// next ResumeBackends finds the same non-terminal state and re-drives it
// against a container the engine already knows is gone. Errors from
// individual engine.Stop calls are aggregated with go-multierror so a
// shutdown reports every failure, not just the first.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]domain.BackendID, 0, len(e.listeners))
	for id, ch := range e.listeners {
		ids = append(ids, id)
		delete(e.listeners, id)
		close(ch)
	}
	e.mu.Unlock()

	var (
		result error
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.BackendID) {
			defer wg.Done()
			if err := e.engine.Stop(ctx, id); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("stop backend %s: %w", id, err))
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return result
}

func (e *Executor) onEngineEvent(backendID domain.BackendID) {
	e.mu.Lock()
	ch, ok := e.listeners[backendID]
	e.mu.Unlock()
	if !ok {
		return
	}
	// ch may have been closed by a concurrent Shutdown between the lookup
	// above and this send; that race is harmless for an Interrupt (its
	// whole point is "best effort, one pending signal is enough") so it is
	// swallowed rather than synchronized against.
	defer func() { recover() }()
	select {
	case ch <- domain.SignalInterrupt:
	default:
	}
}

// StartBackend inserts spec into the store, broadcasts Loading, and runs
// the backend to completion in a new goroutine (spec §4.6 step 1).
func (e *Executor) StartBackend(ctx context.Context, spec domain.SpawnRequest) {
	if err := e.store.InsertBackend(ctx, spec); err != nil {
		e.log.Error("insert backend", zap.String("backend_id", spec.BackendID.String()), zap.Error(err))
	}
	e.publishState(ctx, spec.BackendID, domain.Loading)
	go e.runBackend(context.Background(), spec, domain.Loading)
}

// KillBackend delivers a blocking Terminate signal to the named backend's
// task (spec §4.6). It returns ErrUnknownBackend if this executor does not
// own backendID.
func (e *Executor) KillBackend(ctx context.Context, backendID domain.BackendID) (err error) {
	e.mu.Lock()
	ch, ok := e.listeners[backendID]
	e.mu.Unlock()
	if !ok {
		return domain.ErrUnknownBackend
	}
	defer func() {
		if recover() != nil {
			err = domain.ErrUnknownBackend
		}
	}()
	select {
	case ch <- domain.SignalTerminate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResumeBackends replays the store's non-terminal backends on executor
// startup (spec §4.6, §9): it must run before new-backend acceptance is
// unblocked, and must re-install monitors for any backend already in a
// running() state before returning.
func (e *Executor) ResumeBackends(ctx context.Context) error {
	backends, err := e.store.GetBackends(ctx)
	if err != nil {
		return fmt.Errorf("resume backends: %w", err)
	}
	for _, b := range backends {
		if b.State.Terminal() {
			continue
		}
		e.log.Info("resuming backend", zap.String("backend_id", b.BackendID.String()), zap.String("state", b.State.String()))
		if b.State.Running() {
			e.installMonitor(b.BackendID)
		}
		go e.runBackend(context.Background(), b.Spec, b.State)
	}
	return nil
}

// runBackend is the per-backend task (spec §4.6). It owns the signal
// channel for spec.BackendID for its entire lifetime and is the sole
// writer of that backend's state.
func (e *Executor) runBackend(ctx context.Context, spec domain.SpawnRequest, state domain.BackendState) {
	signals := make(chan domain.Signal, 1)
	e.mu.Lock()
	e.listeners[spec.BackendID] = signals
	e.mu.Unlock()

	if spec.BearerToken != nil {
		e.log.Warn("spawn request included a bearer token, which is not currently supported",
			zap.String("backend_id", spec.BackendID.String()))
	}

	for {
		e.log.Info("executing state", zap.String("backend_id", spec.BackendID.String()), zap.String("state", state.String()))

		next, done, err := e.runStep(ctx, spec, state, signals)

		if err != nil {
			e.log.Error("encountered error", zap.String("backend_id", spec.BackendID.String()), zap.String("state", state.String()), zap.Error(err))
			metrics.EngineErrors.WithLabelValues(state.String()).Inc()
			if state == domain.Loading {
				state = domain.ErrorLoading
				e.updateState(ctx, spec, state)
			} else {
				e.log.Error("error unhandled, no change in backend state",
					zap.String("backend_id", spec.BackendID.String()), zap.String("state", state.String()))
			}
			break
		}

		if done {
			e.log.Info("terminated successfully", zap.String("backend_id", spec.BackendID.String()))
			break
		}

		if next == "" {
			e.log.Error("signal sender lost", zap.String("backend_id", spec.BackendID.String()))
			break
		}
		if next == domain.Terminated && state != domain.Terminated {
			// a bare Terminate signal observed mid-step: record it immediately,
			// then let the loop iterate so the terminal-state branch of step()
			// calls engine.Stop exactly once.
			state = next
			e.updateState(ctx, spec, state)
			continue
		}

		state = next
		e.updateState(ctx, spec, state)
	}

	e.mu.Lock()
	delete(e.monitors, spec.BackendID)
	delete(e.listeners, spec.BackendID)
	e.mu.Unlock()
}

// signalLost is a private sentinel next-state used internally by runStep
// to tell runBackend the signal sender disappeared; it is never persisted.
const signalLost = domain.BackendState("")

// runStep runs exactly one step(), racing it against the signal channel
// when state isn't Swept (spec §4.6: sweeping runs uninterruptibly to
// avoid infinite ping-pong against external status changes during
// teardown).
func (e *Executor) runStep(ctx context.Context, spec domain.SpawnRequest, state domain.BackendState, signals chan domain.Signal) (next domain.BackendState, done bool, err error) {
	if state == domain.Swept {
		return step(ctx, e.engine, e.store, spec, state)
	}

	for {
		stepCtx, cancel := context.WithCancel(ctx)
		type result struct {
			next domain.BackendState
			done bool
			err  error
		}
		resultCh := make(chan result, 1)
		go func() {
			n, d, err := step(stepCtx, e.engine, e.store, spec, state)
			resultCh <- result{n, d, err}
		}()

		select {
		case r := <-resultCh:
			cancel()
			return r.next, r.done, r.err
		case sig, ok := <-signals:
			if !ok {
				cancel()
				<-resultCh
				return signalLost, false, nil
			}
			switch sig {
			case domain.SignalInterrupt:
				e.log.Info("state may have updated externally", zap.String("backend_id", spec.BackendID.String()))
				cancel()
				<-resultCh
				continue
			case domain.SignalTerminate:
				cancel()
				<-resultCh
				return domain.Terminated, false, nil
			}
		}
	}
}

func (e *Executor) updateState(ctx context.Context, spec domain.SpawnRequest, state domain.BackendState) {
	if state.Running() {
		e.installMonitor(spec.BackendID)
	} else {
		e.mu.Lock()
		if m, ok := e.monitors[spec.BackendID]; ok {
			m.Stop()
			delete(e.monitors, spec.BackendID)
		}
		e.mu.Unlock()
	}
	if err := e.store.UpdateBackendState(ctx, spec.BackendID, state); err != nil {
		e.log.Error("update backend state in store", zap.String("backend_id", spec.BackendID.String()), zap.Error(err))
	}
	e.publishState(ctx, spec.BackendID, state)

	metrics.BackendTransitions.WithLabelValues(state.String()).Inc()
	e.mu.Lock()
	running := len(e.monitors)
	e.mu.Unlock()
	metrics.BackendsRunning.Set(float64(running))
}

func (e *Executor) publishState(ctx context.Context, backendID domain.BackendID, state domain.BackendState) {
	msg := domain.NewBackendStateMessage(backendID, state)
	if err := e.bus.PublishDurable(ctx, bus.BackendState(backendID), msg); err != nil {
		e.log.Error("publish backend state", zap.String("backend_id", backendID.String()), zap.Error(err))
	}
}

func (e *Executor) installMonitor(backendID domain.BackendID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.monitors[backendID]; ok {
		return
	}
	e.monitors[backendID] = NewBackendMonitor(backendID, e.cluster, e.engine, e.store, e.bus, e.log)
}
