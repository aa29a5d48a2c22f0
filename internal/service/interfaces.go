package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks
//go:generate mockgen -destination=mocks/source.go -package=mocks grantsync/internal/source Source

import (
	"context"
	"time"

	"grantsync/internal/domain"
)

type GrantStore interface {
	Upsert(ctx context.Context, g *domain.Grant) (domain.UpsertOutcome, error)
	MarkStale(ctx context.Context, source string, cutoff time.Time) (int64, error)
}

type SyncLogStore interface {
	Create(ctx context.Context, source string, metadata domain.Metadata) (int64, error)
	Complete(ctx context.Context, id int64, counts domain.SyncCounts) error
	Fail(ctx context.Context, id int64, counts domain.SyncCounts, errMsg string) error
	MergeMetadata(ctx context.Context, id int64, metadata domain.Metadata) error
	List(ctx context.Context, limit int) ([]domain.SyncLogEntry, error)
}

type Publisher interface {
	Publish(ctx context.Context, g *domain.Grant, outcome domain.UpsertOutcome) error
	Close() error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
