package executor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/axelav/spawner/internal/domain"
	"github.com/axelav/spawner/internal/engine"
)

// PortReadyPollInterval is how often wait_port_ready polls a TCP connect to
// the backend address (spec §4.5).
const PortReadyPollInterval = 10 * time.Millisecond

// PortReadyDefaultTimeout bounds waitPortReady when the caller's context
// carries no deadline.
const PortReadyDefaultTimeout = 30 * time.Second

// waitPortReady polls a TCP connect to addr every PortReadyPollInterval
// until it succeeds or ctx is done.
func waitPortReady(ctx context.Context, addr string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, PortReadyDefaultTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	ticker := time.NewTicker(PortReadyPollInterval)
	defer ticker.Stop()

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait_port_ready: %s: %w", addr, ctx.Err())
		case <-ticker.C:
		}
	}
}

// stepStore is the slice of the Local Routing Store the state machine
// needs (spec §4.7) — narrowed to an interface here so state.go and its
// tests don't depend on the concrete sqlite-backed store.
type stepStore interface {
	InsertProxyRoute(ctx context.Context, backendID domain.BackendID, hostnameLabel, addr string) error
	GetBackendLastActive(ctx context.Context, backendID domain.BackendID) (time.Time, error)
}

// step advances a backend exactly one transition (spec §4.5). The return
// shape mirrors the original Option<BackendState>: done=true means the
// backend reached a terminal state and engine.Stop has already been
// called — the caller exits its run loop without a further state
// broadcast. done=false with a nil error always carries a non-empty next
// state.
func step(ctx context.Context, eng engine.Engine, store stepStore, spec domain.SpawnRequest, state domain.BackendState) (next domain.BackendState, done bool, err error) {
	switch state {
	case domain.Loading:
		if err := eng.Load(ctx, spec); err != nil {
			return "", false, err
		}
		return domain.Starting, false, nil

	case domain.Starting:
		status, err := eng.BackendStatus(ctx, spec.BackendID)
		if err != nil {
			return "", false, err
		}
		if status.Kind != domain.EngineStatusRunning {
			return domain.ErrorStarting, false, nil
		}

		if err := waitPortReady(ctx, status.Addr); err != nil {
			return "", false, err
		}
		if err := store.InsertProxyRoute(ctx, spec.BackendID, spec.BackendID.HostnameLabel(), status.Addr); err != nil {
			return "", false, err
		}
		return domain.Ready, false, nil

	case domain.Ready:
		status, err := eng.BackendStatus(ctx, spec.BackendID)
		if err != nil {
			return "", false, err
		}
		switch status.Kind {
		case domain.EngineStatusFailed:
			return domain.Failed, false, nil
		case domain.EngineStatusExited:
			return domain.Exited, false, nil
		case domain.EngineStatusTerminated:
			return domain.Swept, false, nil
		}

		for {
			lastActive, err := store.GetBackendLastActive(ctx, spec.BackendID)
			if err != nil {
				return "", false, err
			}
			deadline := lastActive.Add(spec.MaxIdleDuration())
			if !deadline.After(time.Now()) {
				break
			}
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(time.Until(deadline)):
			}
		}
		return domain.Swept, false, nil

	case domain.ErrorLoading, domain.ErrorStarting, domain.TimedOutBeforeReady,
		domain.Failed, domain.Exited, domain.Swept, domain.Terminated:
		if err := eng.Stop(ctx, spec.BackendID); err != nil {
			return "", false, fmt.Errorf("stopping backend: %w", err)
		}
		return "", true, nil

	default:
		return "", false, fmt.Errorf("%w: unrecognized state %q", domain.ErrStateInvariantViolation, state)
	}
}
