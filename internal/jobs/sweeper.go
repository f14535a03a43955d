package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Veraticus/cardwise/internal/service"
)

// Sweeper fails processing jobs that stopped reporting progress.
type Sweeper struct {
	store    service.JobStore
	clock    Clock
	logger   *slog.Logger
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
}

// NewSweeper creates a sweeper. schedule uses cron syntax, including
// descriptors such as "@every 1m".
func NewSweeper(store service.JobStore, timeout time.Duration, schedule string, clock Clock, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		clock:    clock,
		logger:   logger.With("component", "sweeper"),
		schedule: schedule,
		timeout:  timeout,
	}
}

// SweepOnce fails every processing job last updated before now minus the
// timeout and returns how many were failed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.timeout)
	msg := fmt.Sprintf("Job timed out: no progress for %s", s.timeout)
	n, err := s.store.FailStaleJobs(ctx, cutoff, msg)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("Failed stale jobs", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Start schedules SweepOnce. It runs until Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("Stale job sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("Stale job sweeper started", "schedule", s.schedule, "timeout", s.timeout)
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
