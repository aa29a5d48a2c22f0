package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"grantsync/internal/domain"
)

// ErrTerminal is returned when a terminal-state log entry is written to
// again. Terminal states are immutable.
var ErrTerminal = errors.New("sync log entry already terminal")

type SyncLogStore struct {
	db *sqlx.DB
}

func NewSyncLogStore(db *sqlx.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

// Create opens a running log entry for one source and returns its id.
func (s *SyncLogStore) Create(ctx context.Context, source string, metadata domain.Metadata) (int64, error) {
	query := `
		INSERT INTO grant_sync_log (source, status, metadata, sync_started_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, source, domain.SyncRunning, metadata).Scan(&id)
	return id, err
}

// Complete transitions running -> completed with final counts. The status
// guard makes the transition happen at most once.
func (s *SyncLogStore) Complete(ctx context.Context, id int64, counts domain.SyncCounts) error {
	return s.finish(ctx, id, counts, domain.SyncCompleted, nil)
}

// Fail transitions running -> failed, keeping whatever counts accumulated
// before the error.
func (s *SyncLogStore) Fail(ctx context.Context, id int64, counts domain.SyncCounts, errMsg string) error {
	return s.finish(ctx, id, counts, domain.SyncFailed, &errMsg)
}

func (s *SyncLogStore) finish(ctx context.Context, id int64, counts domain.SyncCounts, status string, errMsg *string) error {
	query := `
		UPDATE grant_sync_log
		SET sync_completed_at = NOW(),
			records_processed = $1,
			records_created = $2,
			records_updated = $3,
			records_failed = $4,
			status = $5,
			error_message = $6
		WHERE id = $7 AND status = $8`

	res, err := s.db.ExecContext(ctx, query,
		counts.Processed,
		counts.Created,
		counts.Updated,
		counts.Failed,
		status,
		errMsg,
		id,
		domain.SyncRunning,
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTerminal
	}
	return nil
}

// MergeMetadata folds extra keys into an entry's metadata. Runs through the
// context executor so it can share a transaction with the stale sweep.
func (s *SyncLogStore) MergeMetadata(ctx context.Context, id int64, metadata domain.Metadata) error {
	query := `
		UPDATE grant_sync_log
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $1
		WHERE id = $2`

	exec := GetExecutor(ctx, s.db)
	_, err := exec.ExecContext(ctx, query, metadata, id)
	return err
}

// List returns the most recent entries, newest first. Consumed by the admin
// run-history view; the pipeline itself never reads past entries.
func (s *SyncLogStore) List(ctx context.Context, limit int) ([]domain.SyncLogEntry, error) {
	query := `
		SELECT id, source, sync_started_at, sync_completed_at,
			records_processed, records_created, records_updated, records_failed,
			status, error_message, metadata
		FROM grant_sync_log
		ORDER BY sync_started_at DESC
		LIMIT $1`

	var entries []domain.SyncLogEntry
	err := s.db.SelectContext(ctx, &entries, query, limit)
	return entries, err
}
