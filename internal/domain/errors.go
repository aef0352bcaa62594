package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Scheduler errors
	ErrNoDroneAvailable = errors.New("no drone available")
	ErrUnknownCluster   = errors.New("cluster has never been seen by this controller")

	// Executor errors
	ErrUnknownBackend          = errors.New("unknown backend")
	ErrStateInvariantViolation = errors.New("state invariant violation")
	ErrSignalSenderLost        = errors.New("signal sender lost")

	// Engine errors
	ErrEngineNotImplemented = errors.New("engine operation not implemented")
	ErrBackendNotFound      = errors.New("backend not found in engine")

	// Bus errors
	ErrBusRequestTimeout = errors.New("bus request timed out")
	ErrBusClosed         = errors.New("bus is closed")

	// Validation errors
	ErrInvalidClusterName = errors.New("cluster name is not a valid DNS-compatible name")
	ErrInvalidBackendID   = errors.New("backend id is not a valid DNS hostname label")
	ErrInvalidMaxIdleSecs = errors.New("max_idle_secs must be greater than zero")

	// Store errors
	ErrBackendAlreadyExists = errors.New("backend already exists in local store")
)
