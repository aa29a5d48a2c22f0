// Package stateportal ingests opportunities from state grant portals. Each
// portal declares its access strategy in configuration: a JSON API endpoint
// when one exists, HTML scraping otherwise. The strategy is fixed when the
// source is built; a failing API portal fails, it does not fall back to
// scraping.
package stateportal

import (
	"context"
	"log/slog"

	"grantsync/internal/domain"
	"grantsync/internal/normalize"
	"grantsync/internal/source"
)

// PortalConfig is one registry entry.
type PortalConfig struct {
	Name        string `yaml:"name"`
	State       string `yaml:"state"`
	URL         string `yaml:"url"`
	APIEndpoint string `yaml:"api_endpoint"`
}

// fetchFunc is the strategy bound at construction time.
type fetchFunc func(ctx context.Context) ([]domain.Grant, error)

// Source implements source.Source for one portal. Portals expose a single
// listing document or endpoint, so every source is one page deep.
type Source struct {
	id     string
	portal PortalConfig
	fetch  fetchFunc
	logger *slog.Logger
}

// New builds a source per portal. API portals decode one of the known
// response envelopes; the rest scrape the listing page.
func New(portals []PortalConfig, fetcher *source.Fetcher, logger *slog.Logger) []*Source {
	sources := make([]*Source, 0, len(portals))

	for _, p := range portals {
		s := &Source{
			id:     domain.StateSource(p.State),
			portal: p,
		}
		s.logger = logger.With("source", s.id)

		if p.APIEndpoint != "" {
			s.fetch = apiStrategy(p, fetcher)
		} else {
			s.fetch = scrapeStrategy(p, fetcher)
		}

		sources = append(sources, s)
	}

	return sources
}

func (s *Source) ID() string   { return s.id }
func (s *Source) Name() string { return s.portal.Name }

func (s *Source) Policy() normalize.Policy {
	return normalize.Policy{
		ActiveByDefault: true,
		FunderType:      domain.FunderFederal,
		DefaultFunder:   s.portal.State + " State Government",
		DefaultCountry:  "USA",
	}
}

func (s *Source) Metadata() domain.Metadata {
	return domain.Metadata{"portal_name": s.portal.Name}
}

// FetchPage returns the portal's single listing page.
func (s *Source) FetchPage(ctx context.Context, _ source.Cursor) (*source.Page, error) {
	grants, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	for i := range grants {
		grants[i].Source = s.id
		grants[i].States = []string{s.portal.State}
		if grants[i].SourceURL == "" {
			grants[i].SourceURL = s.portal.URL
		}
		if grants[i].ApplyURL == "" {
			grants[i].ApplyURL = grants[i].SourceURL
		}
	}

	s.logger.Debug("fetched portal listing", "records", len(grants))

	return &source.Page{Grants: grants, Done: true}, nil
}
