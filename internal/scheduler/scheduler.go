package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"espn_feed/internal/domain"
)

const defaultTimeout = 5 * time.Minute

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) (*domain.SyncStats, error)
}

type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	lastSuccess atomic.Pointer[time.Time]
}

func NewScheduler(syncer Syncer, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start runs a sync right away and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "timeout", s.timeout)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

// LastSuccess returns the completion time of the last error-free sync.
func (s *Scheduler) LastSuccess() (time.Time, bool) {
	t := s.lastSuccess.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.syncer.Sync(syncCtx)
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		return
	}

	now := time.Now()
	s.lastSuccess.Store(&now)
	if stats != nil && stats.Errors > 0 {
		s.logger.Warn("sync finished with item errors", "errors", stats.Errors)
	}
}
