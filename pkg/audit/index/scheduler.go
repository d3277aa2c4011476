package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"warden-sh/warden/pkg/audit"
)

// Scheduler resyncs the index from the log on a cron schedule, for hosts
// where the log receives appends continuously and queries must stay fresh
// without rescanning the whole file each time.
type Scheduler struct {
	index    *SQLiteIndex
	source   audit.Storage
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a resync scheduler.
//
// Common cron expressions:
//   - "@every 5m"   - every five minutes
//   - "0 * * * *"   - hourly on the hour
//   - "0 3 * * *"   - daily at 3 AM
func NewScheduler(index *SQLiteIndex, source audit.Storage, schedule string) *Scheduler {
	return &Scheduler{
		index:    index,
		source:   source,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "audit.index.scheduler"),
	}
}

// Start begins scheduled resyncing. An empty schedule disables the
// scheduler without error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("resync schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runResync(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule index resync: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("audit index scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runResync executes one resync cycle.
func (s *Scheduler) runResync(ctx context.Context) {
	start := time.Now()

	if err := s.index.Rebuild(ctx, s.source); err != nil {
		s.logger.Error("scheduled index resync failed", "error", err)
		return
	}

	s.logger.Info("scheduled index resync completed",
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop stops the scheduler and waits for a running resync to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("audit index scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled resync time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
