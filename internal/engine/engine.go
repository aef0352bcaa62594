// Package engine defines the abstract container driver the executor talks
// to (spec §4.4). Nothing above this package knows whether a backend is a
// Docker container, a Firecracker microVM, or a fake — it only sees the
// four-method contract below, which is exactly what makes the mock
// implementation (mock.go) sufficient for driving the state machine in
// tests without any container runtime.
package engine

import (
	"context"

	"github.com/axelav/spawner/internal/domain"
)

// Engine is the capability set an executor needs from a container driver
// (spec §4.4, §9).
type Engine interface {
	// Load pulls the image, creates the container, and starts it. Must be
	// idempotent under spec.BackendID — calling Load twice for the same
	// backend id is not an error.
	Load(ctx context.Context, spec domain.SpawnRequest) error

	// BackendStatus reports the engine's current view of a backend.
	BackendStatus(ctx context.Context, backendID domain.BackendID) (domain.EngineBackendStatus, error)

	// Stop requests teardown. Must tolerate "not found" — stopping a
	// backend the engine has already reaped, or never started, is not an
	// error (the executor calls Stop exactly once per terminal
	// transition, and a restart may replay that call against state the
	// engine no longer has).
	Stop(ctx context.Context, backendID domain.BackendID) error

	// Subscribe registers a callback invoked whenever the engine observes
	// an externally driven state change for a backend (container exited,
	// OOM, health check flip). The returned func unregisters it. This is
	// the Go-idiomatic rendering of "a lazy infinite stream of
	// backend_id" (spec §4.4) — a callback registry rather than a single
	// shared channel, so multiple interested parties (the executor's
	// dispatch loop, tests) can each get their own feed without
	// coordinating consumption.
	Subscribe(handler func(domain.BackendID)) (unsubscribe func())
}
