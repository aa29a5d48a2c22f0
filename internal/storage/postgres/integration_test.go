//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"grantsync/internal/domain"
	"grantsync/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_grants.up.sql"),
			filepath.Join(migrationsPath, "002_create_grant_sync_log.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM grants")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM grant_sync_log")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

// testGrant builds a grant the way it looks after normalization.
func testGrant(source, sourceID string) *domain.Grant {
	return &domain.Grant{
		Source:      source,
		SourceID:    sourceID,
		SourceURL:   "https://example.gov/" + sourceID,
		Title:       "Test Grant",
		FunderName:  "Test Agency",
		FunderType:  domain.FunderFederal,
		Description: "A test grant",
		FullText:    "A test grant",
		AwardMin:    10000,
		AwardMax:    50000,
		IsRolling:   true,
		ApplyURL:    "https://example.gov/" + sourceID + "/apply",
		Countries:   []string{"USA"},
		SyncStatus:  domain.SyncStatusActive,
		IsActive:    true,
	}
}

func (s *PostgresIntegrationSuite) TestGrantStore_Upsert_Insert() {
	store := NewGrantStore(s.db)

	g := testGrant("grants_gov", "GG-1")
	g.EstimatedFunding = utils.Ptr(100000.0)
	g.OpportunityNumber = utils.Ptr("HRSA-26-001")

	outcome, err := store.Upsert(s.ctx, g)
	s.NoError(err)
	s.Equal(domain.OutcomeCreated, outcome)
	s.Greater(g.ID, int64(0))

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM grants WHERE source = $1 AND source_id = $2", "grants_gov", "GG-1")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestGrantStore_Upsert_UpdateInPlace() {
	store := NewGrantStore(s.db)

	g := testGrant("grants_gov", "GG-1")
	outcome, err := store.Upsert(s.ctx, g)
	s.NoError(err)
	s.Equal(domain.OutcomeCreated, outcome)
	firstID := g.ID

	g.Title = "Retitled Grant"
	g.AwardMax = 75000
	outcome, err = store.Upsert(s.ctx, g)
	s.NoError(err)
	s.Equal(domain.OutcomeUpdated, outcome)
	s.Equal(firstID, g.ID, "re-ingesting the same source record updates in place")

	var title string
	err = s.db.GetContext(s.ctx, &title, "SELECT title FROM grants WHERE id = $1", firstID)
	s.NoError(err)
	s.Equal("Retitled Grant", title)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM grants")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestGrantStore_Upsert_SameIDDifferentSources() {
	store := NewGrantStore(s.db)

	outcome, err := store.Upsert(s.ctx, testGrant("grants_gov", "SHARED-1"))
	s.NoError(err)
	s.Equal(domain.OutcomeCreated, outcome)

	outcome, err = store.Upsert(s.ctx, testGrant("state_ca", "SHARED-1"))
	s.NoError(err)
	s.Equal(domain.OutcomeCreated, outcome, "the natural key is (source, source_id), not source_id alone")

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM grants WHERE source_id = $1", "SHARED-1")
	s.NoError(err)
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestGrantStore_Upsert_RefreshesLastSyncedAt() {
	store := NewGrantStore(s.db)

	g := testGrant("grants_gov", "GG-1")
	_, err := store.Upsert(s.ctx, g)
	s.NoError(err)

	_, err = s.db.ExecContext(s.ctx,
		"UPDATE grants SET last_synced_at = NOW() - INTERVAL '2 days' WHERE id = $1", g.ID)
	s.NoError(err)

	_, err = store.Upsert(s.ctx, g)
	s.NoError(err)

	var lastSynced time.Time
	err = s.db.GetContext(s.ctx, &lastSynced, "SELECT last_synced_at FROM grants WHERE id = $1", g.ID)
	s.NoError(err)
	s.WithinDuration(time.Now(), lastSynced, time.Minute)
}

func (s *PostgresIntegrationSuite) TestGrantStore_MarkStale() {
	store := NewGrantStore(s.db)

	fresh := testGrant("grants_gov", "FRESH-1")
	_, err := store.Upsert(s.ctx, fresh)
	s.NoError(err)

	stale := testGrant("grants_gov", "STALE-1")
	_, err = store.Upsert(s.ctx, stale)
	s.NoError(err)
	_, err = s.db.ExecContext(s.ctx,
		"UPDATE grants SET last_synced_at = NOW() - INTERVAL '1 hour' WHERE id = $1", stale.ID)
	s.NoError(err)

	otherSource := testGrant("state_ca", "STALE-2")
	_, err = store.Upsert(s.ctx, otherSource)
	s.NoError(err)
	_, err = s.db.ExecContext(s.ctx,
		"UPDATE grants SET last_synced_at = NOW() - INTERVAL '1 hour' WHERE id = $1", otherSource.ID)
	s.NoError(err)

	n, err := store.MarkStale(s.ctx, "grants_gov", time.Now().Add(-time.Minute))
	s.NoError(err)
	s.Equal(int64(1), n)

	var status string
	var active bool
	err = s.db.QueryRowContext(s.ctx,
		"SELECT sync_status, is_active FROM grants WHERE id = $1", stale.ID).Scan(&status, &active)
	s.NoError(err)
	s.Equal(domain.SyncStatusStale, status)
	s.False(active)

	err = s.db.QueryRowContext(s.ctx,
		"SELECT sync_status FROM grants WHERE id = $1", otherSource.ID).Scan(&status)
	s.NoError(err)
	s.Equal(domain.SyncStatusActive, status, "other sources are untouched")

	n, err = store.MarkStale(s.ctx, "grants_gov", time.Now().Add(-time.Minute))
	s.NoError(err)
	s.Equal(int64(0), n, "already-stale rows are not re-marked")
}

func (s *PostgresIntegrationSuite) TestGrantStore_CountBySource() {
	store := NewGrantStore(s.db)

	_, err := store.Upsert(s.ctx, testGrant("grants_gov", "GG-1"))
	s.NoError(err)
	_, err = store.Upsert(s.ctx, testGrant("grants_gov", "GG-2"))
	s.NoError(err)

	count, err := store.CountBySource(s.ctx, "grants_gov")
	s.NoError(err)
	s.Equal(int64(2), count)

	count, err = store.CountBySource(s.ctx, "usaspending")
	s.NoError(err)
	s.Equal(int64(0), count)
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_Lifecycle() {
	store := NewSyncLogStore(s.db)

	id, err := store.Create(s.ctx, "grants_gov", domain.Metadata{"trigger": "manual"})
	s.NoError(err)
	s.Greater(id, int64(0))

	var status string
	err = s.db.GetContext(s.ctx, &status, "SELECT status FROM grant_sync_log WHERE id = $1", id)
	s.NoError(err)
	s.Equal(domain.SyncRunning, status)

	err = store.Complete(s.ctx, id, domain.SyncCounts{Processed: 10, Created: 6, Updated: 3, Failed: 1})
	s.NoError(err)

	entries, err := store.List(s.ctx, 10)
	s.NoError(err)
	s.Require().Len(entries, 1)

	entry := entries[0]
	s.Equal(domain.SyncCompleted, entry.Status)
	s.NotNil(entry.CompletedAt)
	s.Equal(10, entry.Processed)
	s.Equal(entry.Processed, entry.Created+entry.Updated+entry.Failed)
	s.Equal("manual", entry.Metadata["trigger"])
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_Fail() {
	store := NewSyncLogStore(s.db)

	id, err := store.Create(s.ctx, "usaspending", nil)
	s.NoError(err)

	err = store.Fail(s.ctx, id, domain.SyncCounts{Processed: 3, Created: 2, Failed: 1}, "upstream timeout")
	s.NoError(err)

	entries, err := store.List(s.ctx, 10)
	s.NoError(err)
	s.Require().Len(entries, 1)

	s.Equal(domain.SyncFailed, entries[0].Status)
	s.Require().NotNil(entries[0].ErrorMessage)
	s.Equal("upstream timeout", *entries[0].ErrorMessage)
	s.Equal(3, entries[0].Processed, "partial counts survive the failure")
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_TerminalIsImmutable() {
	store := NewSyncLogStore(s.db)

	id, err := store.Create(s.ctx, "grants_gov", nil)
	s.NoError(err)

	err = store.Complete(s.ctx, id, domain.SyncCounts{Processed: 5, Created: 5})
	s.NoError(err)

	err = store.Fail(s.ctx, id, domain.SyncCounts{}, "late error")
	s.ErrorIs(err, ErrTerminal)

	err = store.Complete(s.ctx, id, domain.SyncCounts{})
	s.ErrorIs(err, ErrTerminal)

	entries, err := store.List(s.ctx, 10)
	s.NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(domain.SyncCompleted, entries[0].Status)
	s.Equal(5, entries[0].Processed)
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_MergeMetadata() {
	store := NewSyncLogStore(s.db)

	id, err := store.Create(s.ctx, "grants_gov", domain.Metadata{"trigger": "scheduled"})
	s.NoError(err)

	err = store.MergeMetadata(s.ctx, id, domain.Metadata{"stale_marked": "4"})
	s.NoError(err)

	entries, err := store.List(s.ctx, 10)
	s.NoError(err)
	s.Require().Len(entries, 1)

	s.Equal("scheduled", entries[0].Metadata["trigger"])
	s.Equal("4", entries[0].Metadata["stale_marked"])
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_List_OrderAndLimit() {
	store := NewSyncLogStore(s.db)

	for i, src := range []string{"grants_gov", "usaspending", "state_ca"} {
		id, err := store.Create(s.ctx, src, nil)
		s.NoError(err)
		_, err = s.db.ExecContext(s.ctx,
			"UPDATE grant_sync_log SET sync_started_at = NOW() + ($1 || ' seconds')::interval WHERE id = $2", i, id)
		s.NoError(err)
	}

	entries, err := store.List(s.ctx, 2)
	s.NoError(err)
	s.Require().Len(entries, 2)

	s.Equal("state_ca", entries[0].Source, "newest first")
	s.Equal("usaspending", entries[1].Source)
}

func (s *PostgresIntegrationSuite) TestTransaction_SweepCommit() {
	tm := NewTransactionManager(s.db)
	grantStore := NewGrantStore(s.db)
	logStore := NewSyncLogStore(s.db)

	g := testGrant("grants_gov", "OLD-1")
	_, err := grantStore.Upsert(s.ctx, g)
	s.NoError(err)
	_, err = s.db.ExecContext(s.ctx,
		"UPDATE grants SET last_synced_at = NOW() - INTERVAL '1 hour' WHERE id = $1", g.ID)
	s.NoError(err)

	logID, err := logStore.Create(s.ctx, "grants_gov", nil)
	s.NoError(err)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		n, err := grantStore.MarkStale(ctx, "grants_gov", time.Now().Add(-time.Minute))
		if err != nil {
			return err
		}
		s.Equal(int64(1), n)
		return logStore.MergeMetadata(ctx, logID, domain.Metadata{"stale_marked": "1"})
	})
	s.NoError(err)

	var status string
	err = s.db.GetContext(s.ctx, &status, "SELECT sync_status FROM grants WHERE id = $1", g.ID)
	s.NoError(err)
	s.Equal(domain.SyncStatusStale, status)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	grantStore := NewGrantStore(s.db)

	g := testGrant("grants_gov", "OLD-1")
	_, err := grantStore.Upsert(s.ctx, g)
	s.NoError(err)
	_, err = s.db.ExecContext(s.ctx,
		"UPDATE grants SET last_synced_at = NOW() - INTERVAL '1 hour' WHERE id = $1", g.ID)
	s.NoError(err)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := grantStore.MarkStale(ctx, "grants_gov", time.Now().Add(-time.Minute)); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	var status string
	err = s.db.GetContext(s.ctx, &status, "SELECT sync_status FROM grants WHERE id = $1", g.ID)
	s.NoError(err)
	s.Equal(domain.SyncStatusActive, status, "the sweep rolled back with the transaction")
}
