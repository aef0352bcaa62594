// Package daemon wires the bus, scheduler/executor, store, and status HTTP
// surface into the two long-running processes this module ships: the
// Controller (runs the Cluster Scheduler) and the Drone (runs the
// Executor). Both follow the teacher's daemon shape — a struct holding
// every wired component, a constructor that does the wiring, and a Run
// method that blocks until the process is asked to shut down.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/config"
	"github.com/axelav/spawner/internal/health"
	"github.com/axelav/spawner/internal/logging"
	"github.com/axelav/spawner/internal/scheduler"
	"github.com/axelav/spawner/internal/statusapi"
)

// Controller runs the Cluster Scheduler (spec §4.2/§4.3) for one or more
// clusters sharing a bus connection.
type Controller struct {
	Config    config.Config
	Bus       bus.Bus
	Scheduler *scheduler.Scheduler
	Health    *health.Checker
	Status    *statusapi.Server
	Log       *zap.Logger
}

// NewController wires a Controller from cfg.
func NewController(cfg config.Config) (*Controller, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: build logger: %w", err)
	}

	b, err := bus.NewNATS(bus.NATSConfig{
		URL:            cfg.Bus.URL,
		StreamName:     cfg.Bus.StreamName,
		RequestTimeout: parseDuration(cfg.Bus.RequestTimeout, bus.DefaultRequestTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: connect bus: %w", err)
	}

	sched := scheduler.New(b, log)
	checker := health.NewChecker(b, nil)

	return &Controller{
		Config:    cfg,
		Bus:       b,
		Scheduler: sched,
		Health:    checker,
		Status:    statusapi.NewServer(checker),
		Log:       log,
	}, nil
}

// Run blocks, serving the scheduler, health loop, and status HTTP server
// until ctx is canceled or a termination signal arrives.
func (c *Controller) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.Scheduler.Serve(gctx)
		return nil
	})
	g.Go(func() error {
		c.Health.Run(gctx)
		return nil
	})

	httpServer := c.httpServer()
	g.Go(func() error {
		c.Log.Info("status server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	_ = c.Bus.Close()
	return err
}

func (c *Controller) httpServer() *http.Server {
	addr := fmt.Sprintf("%s:%d", c.Config.Telemetry.Host, c.Config.Telemetry.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      c.Status.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
