package engine

import (
	"context"

	"github.com/axelav/spawner/internal/domain"
)

// DockerEngine is the production Engine backed by the Docker daemon. Wiring
// it to an actual container runtime is Docker-specific plumbing out of
// scope here (spec §1) — this stub exists so the executor can be
// constructed against a concrete, non-mock Engine value without every
// caller reaching into the mock package, and so the shape of a real
// implementation is visible at the call site.
type DockerEngine struct {
	Host string
}

// NewDockerEngine returns a DockerEngine talking to the daemon at host.
func NewDockerEngine(host string) *DockerEngine {
	return &DockerEngine{Host: host}
}

func (d *DockerEngine) Load(ctx context.Context, spec domain.SpawnRequest) error {
	return domain.ErrEngineNotImplemented
}

func (d *DockerEngine) BackendStatus(ctx context.Context, backendID domain.BackendID) (domain.EngineBackendStatus, error) {
	return domain.EngineBackendStatus{}, domain.ErrEngineNotImplemented
}

func (d *DockerEngine) Stop(ctx context.Context, backendID domain.BackendID) error {
	return domain.ErrEngineNotImplemented
}

func (d *DockerEngine) Subscribe(handler func(domain.BackendID)) func() {
	return func() {}
}
