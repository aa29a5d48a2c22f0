// Package usaspending ingests federal assistance awards from the spending
// search API. The scan is bounded: awards are informational history, not open
// opportunities, so the adapter stops after MaxPages rather than walking the
// full dataset.
package usaspending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grantsync/internal/domain"
	"grantsync/internal/normalize"
	"grantsync/internal/source"
)

const (
	SourceID   = domain.SourceUSASpending
	SourceName = "USASpending"
)

// awardTypeCodes selects grant-like assistance awards.
var awardTypeCodes = []string{"02", "03", "04", "05"}

// windowDays is the trailing time window the search is filtered to.
const windowDays = 365

// Config holds the adapter configuration.
type Config struct {
	BaseURL  string
	PageSize int
	// MaxPages bounds the scan per run. It is an explicit cost control,
	// tunable in config.
	MaxPages int
}

// Source implements source.Source for the award-search API.
type Source struct {
	fetcher  *source.Fetcher
	baseURL  string
	pageSize int
	maxPages int
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a usaspending source.
func New(cfg Config, fetcher *source.Fetcher, logger *slog.Logger) *Source {
	return &Source{
		fetcher:  fetcher,
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		logger:   logger.With("source", SourceID),
		now:      time.Now,
	}
}

func (s *Source) ID() string   { return SourceID }
func (s *Source) Name() string { return SourceName }

func (s *Source) Policy() normalize.Policy {
	return normalize.Policy{
		// Historical awards are not actionable opportunities.
		ActiveByDefault: false,
		FunderType:      domain.FunderFederal,
		DefaultFunder:   "Federal Government",
		DefaultCountry:  "USA",
	}
}

func (s *Source) Metadata() domain.Metadata { return nil }

// FetchPage posts the filter body for one page cursor. The scan ends on an
// empty page or when the configured page bound is reached.
func (s *Source) FetchPage(ctx context.Context, cur source.Cursor) (*source.Page, error) {
	page := cur.Page
	if page < 1 {
		page = 1
	}

	body := s.searchRequest(page)

	var resp SearchResponse
	if err := s.fetcher.PostJSON(ctx, s.baseURL, body, &resp); err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	s.logger.Debug("fetched page",
		"page", page,
		"records", len(resp.Results),
	)

	return &source.Page{
		Grants: s.transform(resp.Results),
		Next:   source.Cursor{Page: page + 1},
		Done:   len(resp.Results) == 0 || page >= s.maxPages,
	}, nil
}

func (s *Source) searchRequest(page int) SearchRequest {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -windowDays)

	return SearchRequest{
		Filters: Filters{
			AwardTypeCodes: awardTypeCodes,
			TimePeriod: []TimePeriod{{
				StartDate: start.Format("2006-01-02"),
				EndDate:   end.Format("2006-01-02"),
			}},
		},
		Fields: []string{
			"Award",
			"Recipient",
			"funding_agency",
			"place_of_performance",
			"cfda",
			"period_of_performance",
		},
		Limit: s.pageSize,
		Page:  page,
	}
}

func (s *Source) transform(results []AwardResult) []domain.Grant {
	grants := make([]domain.Grant, 0, len(results))

	for _, res := range results {
		award := res.Award
		if award == nil {
			award = &Award{}
		}

		agencyName := "Federal Government"
		var agencyCode string
		if res.FundingAgency != nil {
			agencyName = normalize.FirstNonEmpty(res.FundingAgency.ToptierAgencyName, agencyName)
			agencyCode = res.FundingAgency.ToptierAgencyCode
		}

		var programTitle, programNumber string
		if res.CFDA != nil {
			programTitle = res.CFDA.ProgramTitle
			programNumber = res.CFDA.ProgramNumber
		}

		awardID := normalize.FirstNonEmpty(award.FAIN, award.ID)
		applyURL := normalize.FirstNonEmpty(award.URI, "https://www.usaspending.gov/award/"+awardID)
		description := normalize.FirstNonEmpty(award.Description, programTitle, "Federal assistance award")

		g := domain.Grant{
			Source:           SourceID,
			SourceID:         awardID,
			SourceURL:        applyURL,
			Title:            normalize.FirstNonEmpty(programTitle, agencyName+" Award"),
			FunderName:       agencyName,
			Description:      description,
			EstimatedFunding: award.TotalObligation,
			ApplyURL:         applyURL,
		}

		if programNumber != "" {
			g.CFDANumber = &programNumber
		}
		if agencyCode != "" {
			g.AgencyCode = &agencyCode
		}

		if res.Period != nil {
			g.Deadline = normalize.ParseDate(res.Period.EndDate)
			g.PostedDate = normalize.ParseDate(normalize.FirstNonEmpty(award.DateSigned, res.Period.StartDate))
		} else {
			g.PostedDate = normalize.ParseDate(award.DateSigned)
		}

		if res.Place != nil && res.Place.CountryName != "" {
			g.Countries = []string{res.Place.CountryName}
		}

		grants = append(grants, g)
	}

	return grants
}
