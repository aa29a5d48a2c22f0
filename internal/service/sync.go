package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"grantsync/internal/config"
	"grantsync/internal/domain"
	"grantsync/internal/normalize"
	"grantsync/internal/source"
)

// SyncService orchestrates ingestion runs. Within a run, pages of one source
// are processed strictly sequentially; in a batch, sources run sequentially
// with an inter-source delay, so one run never trips another source's rate
// limits.
type SyncService struct {
	sources   []source.Source
	grants    GrantStore
	logs      SyncLogStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig
}

func NewSyncService(
	sources []source.Source,
	grants GrantStore,
	logs SyncLogStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		sources:   sources,
		grants:    grants,
		logs:      logs,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
		config:    cfg,
	}
}

// Sources returns the registered source set.
func (s *SyncService) Sources() []source.Source {
	return s.sources
}

// SyncByID runs one registered source. An unknown id is a configuration
// error and fails before any log entry is opened.
func (s *SyncService) SyncByID(ctx context.Context, id string) (*domain.SourceResult, error) {
	for _, src := range s.sources {
		if src.ID() == id {
			return s.SyncSource(ctx, src)
		}
	}
	return nil, fmt.Errorf("unknown source %q", id)
}

// SyncStatePortals runs every registered state portal as one batch.
func (s *SyncService) SyncStatePortals(ctx context.Context) (*domain.RunSummary, error) {
	var portals []source.Source
	for _, src := range s.sources {
		if strings.HasPrefix(src.ID(), "state_") {
			portals = append(portals, src)
		}
	}
	if len(portals) == 0 {
		return nil, fmt.Errorf("no state portals configured")
	}
	return s.SyncBatch(ctx, portals)
}

// SyncAll runs every registered source as one batch.
func (s *SyncService) SyncAll(ctx context.Context) (*domain.RunSummary, error) {
	return s.SyncBatch(ctx, s.sources)
}

// SyncBatch runs the given sources sequentially. A failing source is
// recorded in its own result and the batch moves on; only context
// cancellation stops the batch.
func (s *SyncService) SyncBatch(ctx context.Context, sources []source.Source) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{}

	for i, src := range sources {
		if i > 0 {
			if err := s.wait(ctx, s.config.SourceDelay); err != nil {
				return summary, err
			}
		}

		result, err := s.SyncSource(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			result = &domain.SourceResult{
				Source: src.ID(),
				Name:   src.Name(),
				Status: domain.SyncFailed,
				Error:  err.Error(),
			}
		}
		summary.Add(*result)
	}

	return summary, nil
}

// SyncSource runs one source end to end: open a log entry, drive the page
// loop, tally per-record outcomes, close the entry with a terminal status.
// The returned error is reserved for failures to bracket the run itself;
// fetch errors land in the result and the sync log instead.
func (s *SyncService) SyncSource(ctx context.Context, src source.Source) (*domain.SourceResult, error) {
	logger := s.logger.With("source", src.ID())
	startedAt := time.Now()

	logID, err := s.logs.Create(ctx, src.ID(), src.Metadata())
	if err != nil {
		return nil, fmt.Errorf("create sync log: %w", err)
	}

	logger.Info("starting sync", "source_name", src.Name())

	policy := src.Policy()
	var counts domain.SyncCounts

	fetchErr := s.runPages(ctx, src, policy, &counts, logger)

	result := &domain.SourceResult{
		Source:     src.ID(),
		Name:       src.Name(),
		SyncCounts: counts,
	}

	if fetchErr != nil {
		result.Status = domain.SyncFailed
		result.Error = fetchErr.Error()
		if err := s.logs.Fail(ctx, logID, counts, fetchErr.Error()); err != nil {
			logger.Error("failed to close sync log", "error", err)
		}
		logger.Error("sync failed",
			"processed", counts.Processed,
			"error", fetchErr,
		)
		return result, nil
	}

	result.Status = domain.SyncCompleted
	if err := s.logs.Complete(ctx, logID, counts); err != nil {
		logger.Error("failed to close sync log", "error", err)
	}

	if policy.SweepStale {
		s.sweepStale(ctx, src.ID(), logID, startedAt, logger)
	}

	logger.Info("sync completed",
		"processed", counts.Processed,
		"created", counts.Created,
		"updated", counts.Updated,
		"failed", counts.Failed,
		"duration", time.Since(startedAt),
	)

	return result, nil
}

// runPages drives the adapter's pagination loop. A fetch error stops the loop
// and is returned; per-record errors are tallied and the loop continues.
func (s *SyncService) runPages(
	ctx context.Context,
	src source.Source,
	policy normalize.Policy,
	counts *domain.SyncCounts,
	logger *slog.Logger,
) error {
	var cur source.Cursor

	for pageNum := 0; ; pageNum++ {
		if pageNum > 0 {
			if err := s.wait(ctx, s.config.PageDelay); err != nil {
				return err
			}
		}

		page, err := src.FetchPage(ctx, cur)
		if err != nil {
			return err
		}

		for i := range page.Grants {
			s.processRecord(ctx, &page.Grants[i], policy, counts, logger)
		}

		if page.Done {
			return nil
		}
		cur = page.Next
	}
}

func (s *SyncService) processRecord(
	ctx context.Context,
	g *domain.Grant,
	policy normalize.Policy,
	counts *domain.SyncCounts,
	logger *slog.Logger,
) {
	counts.Processed++

	if err := normalize.Grant(g, policy); err != nil {
		counts.Failed++
		logger.Warn("record failed normalization", "title", g.Title, "error", err)
		return
	}

	outcome, err := s.grants.Upsert(ctx, g)
	if err != nil {
		counts.Failed++
		logger.Warn("record failed upsert", "source_id", g.SourceID, "error", err)
		return
	}

	switch outcome {
	case domain.OutcomeCreated:
		counts.Created++
	case domain.OutcomeUpdated:
		counts.Updated++
	}

	if s.publisher != nil {
		// A lost event does not change what landed in the store, so publish
		// failures are logged but kept out of the record tallies.
		if err := s.publisher.Publish(ctx, g, outcome); err != nil {
			logger.Warn("publish failed", "source_id", g.SourceID, "error", err)
		}
	}
}

// sweepStale marks rows the source no longer returns and notes the count on
// the run's log entry. Both writes share one transaction.
func (s *SyncService) sweepStale(ctx context.Context, sourceID string, logID int64, startedAt time.Time, logger *slog.Logger) {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		n, err := s.grants.MarkStale(txCtx, sourceID, startedAt)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		logger.Info("marked stale grants", "count", n)
		return s.logs.MergeMetadata(txCtx, logID, domain.Metadata{
			"stale_marked": strconv.FormatInt(n, 10),
		})
	})
	if err != nil {
		logger.Warn("stale sweep failed", "error", err)
	}
}

// Logs exposes recent run history for the admin surface.
func (s *SyncService) Logs(ctx context.Context, limit int) ([]domain.SyncLogEntry, error) {
	return s.logs.List(ctx, limit)
}

func (s *SyncService) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
