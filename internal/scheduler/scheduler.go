package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"RankRadar/internal/pipeline"
)

// Runner executes one batch.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunSummary, error)
}

// Scheduler triggers batch runs on a cron schedule.
type Scheduler struct {
	Cron    *cron.Cron
	Runner  Runner
	Ctx     context.Context
	running atomic.Bool
}

// NewScheduler creates a Scheduler. Specs include a seconds field.
func NewScheduler(ctx context.Context, runner Runner) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds(), cron.WithLogger(cron.PrintfLogger(&log.Logger))),
		Runner: runner,
		Ctx:    ctx,
	}
}

// RegisterAll registers the batch task.
func (s *Scheduler) RegisterAll(batchCron string) error {
	if _, err := s.Cron.AddFunc(batchCron, func() { s.batchTask() }); err != nil {
		return fmt.Errorf("register batch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running batch to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes a batch immediately (manual trigger / RUN_ON_START).
// It reports false when a batch is already running.
func (s *Scheduler) RunNow() bool {
	return s.batchTask()
}

func (s *Scheduler) batchTask() bool {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn().Msg("previous batch still running, skipping trigger")
		return false
	}
	defer s.running.Store(false)

	log.Info().Msg("running batch task")
	summary, err := s.Runner.Run(s.Ctx)
	if err != nil {
		ev := log.Error().Err(err)
		if summary != nil {
			ev = ev.Str("run_id", summary.RunID).Int("scored", summary.Scored)
		}
		ev.Msg("batch task failed")
		return true
	}
	log.Info().Str("run_id", summary.RunID).Int("scored", summary.Scored).Int("skipped", summary.Skipped).Msg("batch task done")
	return true
}
