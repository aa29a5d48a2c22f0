// Package grantsgov ingests posted opportunities from the federal
// opportunities API using (offset, limit) pagination.
package grantsgov

import (
	"context"
	"fmt"
	"log/slog"

	"grantsync/internal/domain"
	"grantsync/internal/normalize"
	"grantsync/internal/source"
)

const (
	SourceID   = domain.SourceGrantsGov
	SourceName = "Grants.gov"
)

// Config holds the adapter configuration.
type Config struct {
	BaseURL  string
	PageSize int
}

// Source implements source.Source for the opportunities API.
type Source struct {
	fetcher  *source.Fetcher
	baseURL  string
	pageSize int
	logger   *slog.Logger
}

// New creates a grants.gov source.
func New(cfg Config, fetcher *source.Fetcher, logger *slog.Logger) *Source {
	return &Source{
		fetcher:  fetcher,
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		logger:   logger.With("source", SourceID),
	}
}

func (s *Source) ID() string   { return SourceID }
func (s *Source) Name() string { return SourceName }

func (s *Source) Policy() normalize.Policy {
	return normalize.Policy{
		ActiveByDefault: true,
		FunderType:      domain.FunderFederal,
		DefaultFunder:   "Federal Government",
		DefaultCountry:  "USA",
		SweepStale:      true,
	}
}

func (s *Source) Metadata() domain.Metadata { return nil }

// FetchPage gets one page of posted opportunities. A page with zero records
// terminates the scan; otherwise the offset advances by the page size.
func (s *Source) FetchPage(ctx context.Context, cur source.Cursor) (*source.Page, error) {
	url := fmt.Sprintf("%s?offset=%d&limit=%d&status=posted", s.baseURL, cur.Offset, s.pageSize)

	var resp APIResponse
	if err := s.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("fetch offset %d: %w", cur.Offset, err)
	}

	page := &source.Page{
		Grants: s.transform(resp.Opportunities),
		Next:   source.Cursor{Offset: cur.Offset + s.pageSize},
		Done:   len(resp.Opportunities) == 0,
	}

	s.logger.Debug("fetched page",
		"offset", cur.Offset,
		"records", len(resp.Opportunities),
	)

	return page, nil
}

func (s *Source) transform(opps []Opportunity) []domain.Grant {
	grants := make([]domain.Grant, 0, len(opps))

	for _, opp := range opps {
		g := domain.Grant{
			Source:           SourceID,
			SourceID:         opp.OpportunityID,
			SourceURL:        opp.OpportunityURL,
			Title:            opp.OpportunityTitle,
			FunderName:       opp.AgencyName,
			Description:      opp.OpportunityDescription,
			AwardMin:         opp.AwardFloor,
			AwardMax:         opp.AwardCeiling,
			EstimatedFunding: opp.EstimatedTotalFunding,
			Deadline:         normalize.ParseDate(opp.CloseDate),
			PostedDate:       normalize.ParseDate(opp.PostedDate),
			CloseDate:        normalize.ParseDate(opp.CloseDate),
			ArchiveDate:      normalize.ParseDate(opp.ArchiveDate),
			ApplyURL:         opp.OpportunityURL,
			EntityTypes:      opp.EligibleApplicants,
			Fields:           opp.FundingCategories,

			CostSharingRequired: opp.CostSharing == "Yes",
		}

		if opp.OpportunityNumber != "" {
			g.OpportunityNumber = &opp.OpportunityNumber
		}
		if opp.CFDANumbers != "" {
			g.CFDANumber = &opp.CFDANumbers
		}
		if opp.AgencyCode != "" {
			g.AgencyCode = &opp.AgencyCode
		}

		grants = append(grants, g)
	}

	return grants
}
