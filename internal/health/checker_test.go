package health

import (
	"context"
	"os"
	"testing"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewChecker(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)
	ctx := context.Background()
	c.runAll(ctx)

	statuses := c.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() = %d, want 2", len(statuses))
	}

	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
}

func TestChecker_IsHealthy_AllPass(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)
	c.runAll(context.Background())

	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)

	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_StoreCheck(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)
	c.runAll(context.Background())

	statuses := c.Statuses()
	found := false
	for _, s := range statuses {
		if s.Name == "store" {
			found = true
			if !s.Healthy {
				t.Errorf("store check should be healthy")
			}
		}
	}
	if !found {
		t.Error("store check not found in statuses")
	}
}

func TestChecker_BusCheck(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)
	c.runAll(context.Background())

	statuses := c.Statuses()
	for _, s := range statuses {
		if s.Name == "bus" && !s.Healthy {
			t.Errorf("bus check should be healthy, got: %s", s.Error)
		}
	}
}

func TestChecker_BusCheck_ClosedBus(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	b.Close()

	c := NewChecker(b, db)
	c.runAll(context.Background())

	statuses := c.Statuses()
	for _, s := range statuses {
		if s.Name == "bus" && s.Healthy {
			t.Error("bus check should fail once the bus is closed")
		}
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := &Checker{
		checks: []Check{
			{
				Name: "always_pass",
				CheckFn: func(ctx context.Context) error {
					return nil
				},
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if !statuses[0].Healthy {
		t.Error("always_pass check should be healthy")
	}
}

func TestChecker_FailingCheck(t *testing.T) {
	c := &Checker{
		checks: []Check{
			{
				Name: "always_fail",
				CheckFn: func(ctx context.Context) error {
					return os.ErrPermission
				},
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("error message should be populated")
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	db := newTestDB(t)
	b := bus.NewMemory()
	defer b.Close()

	c := NewChecker(b, db)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()

	if len(s1) > 0 {
		s1[0].Healthy = false
		if !s2[0].Healthy {
			t.Error("Statuses() should return a copy, not a reference")
		}
	}
}
