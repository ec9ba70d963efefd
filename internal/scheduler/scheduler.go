package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// Engine is the part of the moderation engine driven by scheduled jobs
type Engine interface {
	Reconcile(ctx context.Context) (moderation.ReconcileReport, error)
	ListPendingEntries(ctx context.Context, req models.PageRequest) (models.Page[models.Entry], error)
	ListPendingRevisions(ctx context.Context, req models.PageRequest) (models.Page[moderation.RevisionItem], error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    Engine
	interval  time.Duration
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler instance running reconciliation every interval
func New(engine Engine, interval time.Duration, log zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A pass still running when the next one is due is not started twice
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		engine:    engine,
		interval:  interval,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins running all scheduled tasks. Jobs stop when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.scheduler.Every(s.interval).Do(s.reconcile); err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	if _, err := s.scheduler.Every(time.Minute).Do(s.refreshQueueDepth); err != nil {
		return fmt.Errorf("failed to schedule queue stats: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunOnce performs a reconciliation pass immediately
func (s *Scheduler) RunOnce(ctx context.Context) (moderation.ReconcileReport, error) {
	report, err := s.engine.Reconcile(ctx)
	if err != nil {
		return report, err
	}
	event := s.log.Debug()
	if len(report.Repaired) > 0 || len(report.Skipped) > 0 {
		event = s.log.Info()
	}
	event.Int("found", report.Found).Interface("repaired", report.Repaired).
		Int("skipped", len(report.Skipped)).Msg("reconciliation finished")
	return report, nil
}

func (s *Scheduler) reconcile() {
	if _, err := s.RunOnce(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("reconciliation failed")
	}
}

// refreshQueueDepth lists both queues so their depth gauges stay current
func (s *Scheduler) refreshQueueDepth() {
	req := models.PageRequest{Page: 1, Limit: 1}
	if _, err := s.engine.ListPendingEntries(s.ctx, req); err != nil {
		s.log.Warn().Err(err).Msg("failed to list pending entries")
	}
	if _, err := s.engine.ListPendingRevisions(s.ctx, req); err != nil {
		s.log.Warn().Err(err).Msg("failed to list pending revisions")
	}
}
