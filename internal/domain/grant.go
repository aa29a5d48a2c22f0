package domain

import (
	"strings"
	"time"
)

// Well-known source identifiers. State portals use StateSource.
const (
	SourceGrantsGov   = "grants_gov"
	SourceUSASpending = "usaspending"
)

// StateSource returns the source identifier for a state portal, e.g. "state_ny".
func StateSource(code string) string {
	return "state_" + strings.ToLower(code)
}

type FunderType string

const (
	FunderFederal    FunderType = "federal"
	FunderFoundation FunderType = "foundation"
	FunderCorporate  FunderType = "corporate"
	FunderArts       FunderType = "arts"
)

// SyncStatus values for a grant row.
const (
	SyncStatusActive = "active"
	SyncStatusStale  = "stale"
)

// Grant is the canonical representation of a funding opportunity.
// (Source, SourceID) is the natural key; re-ingesting the same source record
// updates the existing row in place.
type Grant struct {
	ID       int64  `json:"id" db:"id"`
	Source   string `json:"source" db:"source"`
	SourceID string `json:"source_id" db:"source_id"`

	SourceURL  string     `json:"source_url" db:"source_url"`
	Title      string     `json:"title" db:"title"`
	FunderName string     `json:"funder_name" db:"funder_name"`
	FunderType FunderType `json:"funder_type" db:"funder_type"`

	// Description is truncated for display; FullText keeps the original.
	Description string `json:"description" db:"description"`
	FullText    string `json:"full_text" db:"full_text"`

	AwardMin         float64  `json:"award_min" db:"award_min"`
	AwardMax         float64  `json:"award_max" db:"award_max"`
	EstimatedFunding *float64 `json:"estimated_funding,omitempty" db:"estimated_funding"`

	Deadline    *time.Time `json:"deadline,omitempty" db:"deadline"`
	IsRolling   bool       `json:"is_rolling" db:"is_rolling"`
	PostedDate  *time.Time `json:"posted_date,omitempty" db:"posted_date"`
	CloseDate   *time.Time `json:"close_date,omitempty" db:"close_date"`
	ArchiveDate *time.Time `json:"archive_date,omitempty" db:"archive_date"`

	ApplyURL          string  `json:"apply_url" db:"apply_url"`
	OpportunityNumber *string `json:"opportunity_number,omitempty" db:"opportunity_number"`
	CFDANumber        *string `json:"cfda_number,omitempty" db:"cfda_number"`
	AgencyCode        *string `json:"agency_code,omitempty" db:"agency_code"`

	Countries     []string `json:"countries" db:"countries"`
	States        []string `json:"states" db:"states"`
	EntityTypes   []string `json:"entity_types" db:"entity_types"`
	Fields        []string `json:"fields" db:"fields"`
	Demographics  []string `json:"demographics" db:"demographics"`
	ProjectStages []string `json:"project_stages" db:"project_stages"`

	RevenueMax            *float64 `json:"revenue_max,omitempty" db:"revenue_max"`
	RequiresFiscalSponsor bool     `json:"requires_fiscal_sponsor" db:"requires_fiscal_sponsor"`
	CostSharingRequired   bool     `json:"cost_sharing_required" db:"cost_sharing_required"`

	LastSyncedAt time.Time `json:"last_synced_at" db:"last_synced_at"`
	SyncStatus   string    `json:"sync_status" db:"sync_status"`
	IsActive     bool      `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertOutcome classifies a grant write.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)
