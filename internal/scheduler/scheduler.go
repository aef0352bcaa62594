package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
	"github.com/axelav/spawner/internal/metrics"
)

// ScheduleRPCTimeout bounds the scheduler's downstream spawn request to the
// chosen drone (spec §4.3).
const ScheduleRPCTimeout = 10 * time.Second

// Scheduler services cluster.*.schedule requests (spec §4.3). It owns a
// LivenessIndex fed by drone heartbeats and answers each schedule request
// independently — schedule requests are never serialized against each
// other, only against the chosen drone via the bus-level request/reply
// (spec §4.3, §5).
type Scheduler struct {
	bus      bus.Bus
	liveness *LivenessIndex
	log      *zap.Logger
	now      func() time.Time
}

// New returns a Scheduler reading heartbeats and schedule requests from b.
func New(b bus.Bus, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		bus:      b,
		liveness: NewLivenessIndex(),
		log:      log,
		now:      time.Now,
	}
}

// Liveness exposes the underlying index, primarily for tests and for a
// status surface that wants to list currently-live drones.
func (s *Scheduler) Liveness() *LivenessIndex { return s.liveness }

// Serve starts the liveness-ingest subscription and the schedule-request
// subscription and blocks until ctx is canceled (spec §5: "one scheduler
// task", "one liveness-ingest task").
func (s *Scheduler) Serve(ctx context.Context) error {
	livenessSub, err := s.bus.SubscribeDurable(ctx, bus.DroneStatusWildcardAll, bus.DeliverLastPerSubject, s.onHeartbeat)
	if err != nil {
		return err
	}
	defer livenessSub.Unsubscribe()

	scheduleSub, err := s.bus.Subscribe(ctx, "cluster.*.schedule", s.onScheduleMsg)
	if err != nil {
		return err
	}
	defer scheduleSub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

func (s *Scheduler) onHeartbeat(m bus.Msg) {
	var status domain.DroneStatus
	if err := m.Decode(&status); err != nil {
		s.log.Warn("malformed drone status", zap.String("subject", m.Subject), zap.Error(err))
		return
	}
	s.liveness.Update(s.now(), status)
	metrics.LiveDrones.WithLabelValues(status.Cluster.String()).Set(float64(s.liveness.LiveCount(status.Cluster, s.now())))
}

func (s *Scheduler) onScheduleMsg(m bus.Msg) {
	var req domain.ScheduleRequest
	if err := m.Decode(&req); err != nil {
		s.log.Warn("malformed schedule request", zap.String("subject", m.Subject), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ScheduleRPCTimeout)
	defer cancel()
	resp := s.Schedule(ctx, req)
	if err := s.bus.Reply(ctx, m, resp); err != nil {
		s.log.Warn("failed to reply to schedule request", zap.Error(err))
	}
}

// Schedule implements the request handling described in spec §4.3: pick a
// live drone, construct a SpawnRequest, hand it off, and translate the
// drone's ack into a ScheduleResponse. It answers every request exactly
// once (spec §7) — every return path here produces a response value, never
// a silent drop.
func (s *Scheduler) Schedule(ctx context.Context, req domain.ScheduleRequest) (resp domain.ScheduleResponse) {
	start := s.now()
	defer func() {
		metrics.ScheduleLatency.Observe(s.now().Sub(start).Seconds())
		metrics.ScheduleRequests.WithLabelValues(string(resp.Type)).Inc()
	}()

	if err := req.Validate(); err != nil {
		s.log.Warn("invalid schedule request", zap.Error(err), zap.String("cluster", req.Cluster.String()))
		return domain.NoDroneAvailableResponse()
	}

	drone, ok := s.liveness.Pick(req.Cluster, s.now())
	if !ok {
		if !s.liveness.Known(req.Cluster) {
			s.log.Info("schedule: unknown cluster", zap.String("cluster", req.Cluster.String()))
		} else {
			s.log.Info("schedule: no live drones", zap.String("cluster", req.Cluster.String()))
		}
		return domain.NoDroneAvailableResponse()
	}

	backendID := req.BackendID
	if backendID == "" {
		backendID = domain.BackendID(uuid.NewString())
	}

	var bearerToken *string
	if req.RequireBearerToken {
		s.log.Warn("require_bearer_token set but unimplemented; proceeding without a token",
			zap.String("cluster", req.Cluster.String()), zap.String("backend_id", backendID.String()))
	}

	spawn := domain.SpawnRequest{
		DroneID:     drone,
		BackendID:   backendID,
		MaxIdleSecs: req.MaxIdleSecs,
		Metadata:    req.Metadata,
		Executable:  req.Executable,
		BearerToken: nil,
	}

	var ack domain.SpawnAck
	spawnCtx, cancel := context.WithTimeout(ctx, ScheduleRPCTimeout)
	defer cancel()
	if err := s.bus.Request(spawnCtx, bus.DroneSpawn(req.Cluster, drone), spawn, &ack); err != nil {
		s.log.Info("schedule: drone unreachable, not retrying on another drone",
			zap.String("drone", drone.String()), zap.Error(err))
		return domain.NoDroneAvailableResponse()
	}

	if !ack.Accepted {
		s.log.Info("schedule: drone declined spawn", zap.String("drone", drone.String()))
		return domain.NoDroneAvailableResponse()
	}

	return domain.Scheduled(drone, backendID, bearerToken)
}
