// Package health runs periodic health checks against the bus and the
// local store, exposed over statusapi's /healthz.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/metrics"
	"github.com/axelav/spawner/internal/store"
)

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// healthPingSubject is a reserved subject used only to confirm the bus
// round-trips a snapshot read without a connection error. Nothing ever
// publishes on it.
const healthPingSubject = "health.ping"

// NewChecker builds the bus-reachability check common to every daemon, plus
// a store-pingability check when db is non-nil (the controller has no
// local store; the drone does — spec §4.7).
func NewChecker(b bus.Bus, db *store.DB) *Checker {
	checks := []Check{
		{
			Name: "bus",
			CheckFn: func(ctx context.Context) error {
				_, err := b.Snapshot(ctx, healthPingSubject)
				return err
			},
		},
	}
	if db != nil {
		checks = append(checks, Check{
			Name: "store",
			CheckFn: func(ctx context.Context) error {
				return db.Ping()
			},
		})
	}
	return &Checker{interval: 60 * time.Second, checks: checks}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce executes every check synchronously and updates Statuses(). Used
// directly by callers (e.g. tests) that need a result before the
// background loop's first tick.
func (c *Checker) RunOnce(ctx context.Context) { c.runAll(ctx) }

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass. Vacuously true before the
// first run.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
