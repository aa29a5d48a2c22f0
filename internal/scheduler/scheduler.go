package scheduler

import (
	"context"
	"log/slog"
	"time"

	"grantsync/internal/domain"
)

// Syncer runs the full batch of registered sources.
type Syncer interface {
	SyncAll(ctx context.Context) (*domain.RunSummary, error)
}

// Scheduler triggers a batch run on a fixed interval, in addition to the
// manual HTTP triggers.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

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

func (s *Scheduler) runSync(ctx context.Context) {
	summary, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
		return
	}
	s.logger.Info("scheduled sync finished",
		"processed", summary.Processed,
		"created", summary.Created,
		"updated", summary.Updated,
		"failed", summary.Failed,
	)
}
