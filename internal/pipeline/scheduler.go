package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// Scheduler restarts the pipeline whenever it rests in the Marathon stage.
// A user stop leaves the stage Idle, which suspends restarts until the next manual start.
type Scheduler struct {
	orch *Orchestrator
	cfg  SchedulerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewScheduler(orch *Orchestrator, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		orch:      orch,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "lighthouse.pipeline.scheduler",
	})

	defer close(s.stoppedCh)

	if s.cfg.RunOnStart {
		s.startCycle(ctx, "initial")
	}

	if s.cfg.Interval <= 0 {
		slog.InfoContext(ctx, "marathon restarts disabled")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "marathon scheduler started",
		"interval", s.cfg.Interval,
		"run_on_start", s.cfg.RunOnStart)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "marathon scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts a cycle if the previous one completed and nothing is running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	snap := s.orch.Snapshot()
	if snap.Running || snap.Stage != model.StageMarathon {
		return false
	}
	return s.startCycle(ctx, "marathon")
}

func (s *Scheduler) startCycle(ctx context.Context, reason string) bool {
	cycleID, err := s.orch.Start(ctx)
	if err != nil {
		if errors.Is(err, ErrCycleInFlight) {
			slog.DebugContext(ctx, "cycle already running, skipping", "reason", reason)
			return false
		}
		slog.ErrorContext(ctx, "failed to start cycle", "error", err, "reason", reason)
		return false
	}
	slog.InfoContext(ctx, "marathon cycle started", "cycle_id", cycleID, "reason", reason)
	return true
}

// Stop signals the scheduler to stop and waits for Run to return.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
