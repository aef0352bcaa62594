package store

import (
	"context"
	"testing"
	"time"

	"github.com/axelav/spawner/internal/domain"
)

func TestDB_InsertAndGetBackends(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	spec := domain.SpawnRequest{
		DroneID:     "D1",
		BackendID:   "b1",
		MaxIdleSecs: 60,
		Executable:  domain.ExecutableSpec{Image: "test:latest"},
	}

	if err := db.InsertBackend(ctx, spec); err != nil {
		t.Fatalf("InsertBackend: %v", err)
	}
	if err := db.UpdateBackendState(ctx, spec.BackendID, domain.Ready); err != nil {
		t.Fatalf("UpdateBackendState: %v", err)
	}
	if err := db.InsertProxyRoute(ctx, spec.BackendID, "b1", "127.0.0.1:9000"); err != nil {
		t.Fatalf("InsertProxyRoute: %v", err)
	}

	backends, err := db.GetBackends(ctx)
	if err != nil {
		t.Fatalf("GetBackends: %v", err)
	}
	if len(backends) != 1 {
		t.Fatalf("len(backends) = %d, want 1", len(backends))
	}
	b := backends[0]
	if b.State != domain.Ready {
		t.Errorf("state = %q, want Ready", b.State)
	}
	if b.ProxyRoute == nil || b.ProxyRoute.Addr != "127.0.0.1:9000" {
		t.Errorf("proxy route = %+v, want addr 127.0.0.1:9000", b.ProxyRoute)
	}

	route, err := db.GetProxyRoute(ctx, spec.BackendID)
	if err != nil {
		t.Fatalf("GetProxyRoute: %v", err)
	}
	if route.Addr != "127.0.0.1:9000" {
		t.Errorf("route.Addr = %q, want 127.0.0.1:9000", route.Addr)
	}

	if err := db.TouchBackend(ctx, spec.BackendID, time.Now()); err != nil {
		t.Fatalf("TouchBackend: %v", err)
	}
	lastActive, err := db.GetBackendLastActive(ctx, spec.BackendID)
	if err != nil {
		t.Fatalf("GetBackendLastActive: %v", err)
	}
	if time.Since(lastActive) > time.Minute {
		t.Errorf("last active = %v, expected recent", lastActive)
	}
}
