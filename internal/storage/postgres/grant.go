package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"grantsync/internal/domain"
)

type GrantStore struct {
	db *sqlx.DB
}

func NewGrantStore(db *sqlx.DB) *GrantStore {
	return &GrantStore{db: db}
}

// Upsert writes a canonical grant keyed by (source, source_id). The
// `xmax = 0` flag on the returned row is Postgres's own insert-vs-update
// signal, so the outcome classification does not depend on timestamp
// comparison and stays correct under concurrent writers.
func (s *GrantStore) Upsert(ctx context.Context, g *domain.Grant) (domain.UpsertOutcome, error) {
	query := `
		INSERT INTO grants (
			source, source_id, source_url, title, funder_name, funder_type,
			description, full_text, award_min, award_max, estimated_funding,
			deadline, is_rolling, posted_date, close_date, archive_date,
			apply_url, opportunity_number, cfda_number, agency_code,
			countries, states, entity_types, fields, demographics, project_stages,
			revenue_max, requires_fiscal_sponsor, cost_sharing_required,
			last_synced_at, sync_status, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26,
			$27, $28, $29,
			NOW(), $30, $31
		)
		ON CONFLICT (source, source_id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			title = EXCLUDED.title,
			funder_name = EXCLUDED.funder_name,
			funder_type = EXCLUDED.funder_type,
			description = EXCLUDED.description,
			full_text = EXCLUDED.full_text,
			award_min = EXCLUDED.award_min,
			award_max = EXCLUDED.award_max,
			estimated_funding = EXCLUDED.estimated_funding,
			deadline = EXCLUDED.deadline,
			is_rolling = EXCLUDED.is_rolling,
			posted_date = EXCLUDED.posted_date,
			close_date = EXCLUDED.close_date,
			archive_date = EXCLUDED.archive_date,
			apply_url = EXCLUDED.apply_url,
			opportunity_number = EXCLUDED.opportunity_number,
			cfda_number = EXCLUDED.cfda_number,
			agency_code = EXCLUDED.agency_code,
			countries = EXCLUDED.countries,
			states = EXCLUDED.states,
			entity_types = EXCLUDED.entity_types,
			fields = EXCLUDED.fields,
			demographics = EXCLUDED.demographics,
			project_stages = EXCLUDED.project_stages,
			revenue_max = EXCLUDED.revenue_max,
			requires_fiscal_sponsor = EXCLUDED.requires_fiscal_sponsor,
			cost_sharing_required = EXCLUDED.cost_sharing_required,
			last_synced_at = NOW(),
			sync_status = EXCLUDED.sync_status,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted`

	exec := GetExecutor(ctx, s.db)

	var (
		id       int64
		inserted bool
	)
	err := exec.QueryRowxContext(ctx, query,
		g.Source,
		g.SourceID,
		g.SourceURL,
		g.Title,
		g.FunderName,
		g.FunderType,
		g.Description,
		g.FullText,
		g.AwardMin,
		g.AwardMax,
		g.EstimatedFunding,
		g.Deadline,
		g.IsRolling,
		g.PostedDate,
		g.CloseDate,
		g.ArchiveDate,
		g.ApplyURL,
		g.OpportunityNumber,
		g.CFDANumber,
		g.AgencyCode,
		pq.Array(g.Countries),
		pq.Array(g.States),
		pq.Array(g.EntityTypes),
		pq.Array(g.Fields),
		pq.Array(g.Demographics),
		pq.Array(g.ProjectStages),
		g.RevenueMax,
		g.RequiresFiscalSponsor,
		g.CostSharingRequired,
		g.SyncStatus,
		g.IsActive,
	).Scan(&id, &inserted)
	if err != nil {
		return "", err
	}

	g.ID = id
	if inserted {
		return domain.OutcomeCreated, nil
	}
	return domain.OutcomeUpdated, nil
}

// MarkStale flags a source's rows untouched since the cutoff. Stale grants
// stay in the store; they are hidden from end users, never deleted.
func (s *GrantStore) MarkStale(ctx context.Context, source string, cutoff time.Time) (int64, error) {
	query := `
		UPDATE grants
		SET sync_status = $1, is_active = FALSE, updated_at = NOW()
		WHERE source = $2 AND last_synced_at < $3 AND sync_status = $4`

	exec := GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, query, domain.SyncStatusStale, source, cutoff, domain.SyncStatusActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountBySource reports how many rows a source currently owns.
func (s *GrantStore) CountBySource(ctx context.Context, source string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM grants WHERE source = $1", source)
	return count, err
}
