package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/config"
	"github.com/axelav/spawner/internal/domain"
	"github.com/axelav/spawner/internal/engine"
	"github.com/axelav/spawner/internal/executor"
	"github.com/axelav/spawner/internal/health"
	"github.com/axelav/spawner/internal/logging"
	"github.com/axelav/spawner/internal/statusapi"
	"github.com/axelav/spawner/internal/store"
)

// heartbeatInterval is how often the drone republishes its DroneStatus.
// Well under LivenessWindow (5s) so a healthy drone never falls out of the
// window between heartbeats.
const heartbeatInterval = 2 * time.Second

// spawnAckTimeout bounds how long StartBackend (InsertBackend + the initial
// Loading transition) may take before the spawn ack is sent.
const spawnAckTimeout = 5 * time.Second

// Drone runs the Executor (spec §4.5/§4.6) for one worker node: it accepts
// SpawnRequests from the scheduler, drives each backend's state machine,
// and publishes heartbeats and state transitions back to the bus.
type Drone struct {
	Config   config.Config
	Bus      bus.Bus
	Store    *store.DB
	Engine   engine.Engine
	Executor *executor.Executor
	Health   *health.Checker
	Status   *statusapi.Server
	Log      *zap.Logger

	droneID domain.DroneID
	cluster domain.ClusterName
	draining atomic.Bool
}

// NewDrone wires a Drone from cfg.
func NewDrone(cfg config.Config) (*Drone, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: build logger: %w", err)
	}

	cluster, err := domain.NewClusterName(cfg.Drone.Cluster)
	if err != nil {
		return nil, fmt.Errorf("daemon: invalid cluster name %q: %w", cfg.Drone.Cluster, err)
	}
	if cfg.Drone.ID == "" {
		return nil, fmt.Errorf("daemon: drone id must be configured")
	}
	droneID := domain.DroneID(cfg.Drone.ID)

	b, err := bus.NewNATS(bus.NATSConfig{
		URL:            cfg.Bus.URL,
		StreamName:     cfg.Bus.StreamName,
		RequestTimeout: parseDuration(cfg.Bus.RequestTimeout, bus.DefaultRequestTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: connect bus: %w", err)
	}

	db, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}

	var eng engine.Engine
	if cfg.Drone.EngineHost != "" {
		eng = engine.NewDockerEngine(cfg.Drone.EngineHost)
	} else {
		log.Warn("no engine_host configured, running with an in-memory mock engine")
		eng = engine.NewMockEngine()
	}

	ex := executor.New(eng, db, b, cluster, log)
	checker := health.NewChecker(b, db)

	return &Drone{
		Config:   cfg,
		Bus:      b,
		Store:    db,
		Engine:   eng,
		Executor: ex,
		Health:   checker,
		Status:   statusapi.NewServer(checker),
		Log:      log,
		droneID:  droneID,
		cluster:  cluster,
	}, nil
}

// Run blocks, serving the executor's RPC subscriptions, heartbeat loop,
// health loop, and status HTTP server until ctx is canceled or a
// termination signal arrives.
func (d *Drone) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Executor.ResumeBackends(ctx); err != nil {
		return fmt.Errorf("daemon: resume backends: %w", err)
	}

	spawnSub, err := d.Bus.Subscribe(ctx, bus.DroneSpawn(d.cluster, d.droneID), d.onSpawn)
	if err != nil {
		return fmt.Errorf("daemon: subscribe spawn: %w", err)
	}
	defer spawnSub.Unsubscribe()

	drainSub, err := d.Bus.Subscribe(ctx, bus.DroneDrain(d.cluster, d.droneID), d.onDrain)
	if err != nil {
		return fmt.Errorf("daemon: subscribe drain: %w", err)
	}
	defer drainSub.Unsubscribe()

	terminateSub, err := d.Bus.Subscribe(ctx, bus.BackendTerminateWildcard, d.onTerminate)
	if err != nil {
		return fmt.Errorf("daemon: subscribe terminate: %w", err)
	}
	defer terminateSub.Unsubscribe()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.runHeartbeat(gctx)
		return nil
	})
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	httpServer := d.httpServer()
	g.Go(func() error {
		d.Log.Info("status server listening", zap.String("addr", httpServer.Addr))
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

	err = g.Wait()

	d.publishHeartbeat(context.Background(), false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := d.Executor.Shutdown(shutdownCtx); shutdownErr != nil {
		d.Log.Error("executor shutdown", zap.Error(shutdownErr))
	}
	d.Executor.Close()
	_ = d.Store.Close()
	_ = d.Bus.Close()
	return err
}

func (d *Drone) onSpawn(msg bus.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), spawnAckTimeout)
	defer cancel()

	var req domain.SpawnRequest
	if err := msg.Decode(&req); err != nil {
		d.Log.Warn("spawn: decode failed", zap.Error(err))
		d.Bus.Reply(ctx, msg, domain.SpawnAck{Accepted: false})
		return
	}

	accepted := !d.draining.Load()
	if accepted {
		d.Executor.StartBackend(ctx, req)
	}
	d.Bus.Reply(ctx, msg, domain.SpawnAck{Accepted: accepted})
}

func (d *Drone) onDrain(msg bus.Msg) {
	var req domain.DrainRequest
	if err := msg.Decode(&req); err != nil {
		d.Log.Warn("drain: decode failed", zap.Error(err))
		return
	}
	d.draining.Store(req.Drain)
	d.Log.Info("drain state changed", zap.Bool("draining", req.Drain))
}

func (d *Drone) onTerminate(msg bus.Msg) {
	var req domain.TerminationRequest
	if err := msg.Decode(&req); err != nil {
		d.Log.Warn("terminate: decode failed", zap.Error(err))
		return
	}
	if err := d.Executor.KillBackend(context.Background(), req.BackendID); err != nil {
		if err != domain.ErrUnknownBackend {
			d.Log.Warn("terminate failed", zap.String("backend_id", req.BackendID.String()), zap.Error(err))
		}
	}
}

func (d *Drone) runHeartbeat(ctx context.Context) {
	d.publishHeartbeat(ctx, true)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishHeartbeat(ctx, !d.draining.Load())
		}
	}
}

func (d *Drone) publishHeartbeat(ctx context.Context, ready bool) {
	status := domain.DroneStatus{
		DroneID: d.droneID,
		Cluster: d.cluster,
		Ready:   ready,
	}
	if err := d.Bus.PublishDurable(ctx, bus.DroneStatusSubject(d.cluster, d.droneID), status); err != nil {
		d.Log.Warn("heartbeat publish failed", zap.Error(err))
	}
}

func (d *Drone) httpServer() *http.Server {
	addr := fmt.Sprintf("%s:%d", d.Config.Telemetry.Host, d.Config.Telemetry.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      d.Status.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
