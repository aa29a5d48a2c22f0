package stateportal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"grantsync/internal/domain"
	"grantsync/internal/normalize"
	"grantsync/internal/source"
)

// apiRecord tolerates the field-name drift across portal APIs; precedence
// between the variants is resolved in the transform.
type apiRecord struct {
	ID             json.RawMessage `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Funder         string          `json:"funder"`
	AmountMin      float64         `json:"amount_min"`
	AmountMax      float64         `json:"amount_max"`
	AwardMin       float64         `json:"award_min"`
	AwardMax       float64         `json:"award_max"`
	Deadline       string          `json:"deadline"`
	CloseDate      string          `json:"close_date"`
	URL            string          `json:"url"`
	ApplicationURL string          `json:"application_url"`
}

// envelope covers the response shapes portal APIs have been seen to use:
// a top-level array, or a list under one of a few well-known keys.
type envelope struct {
	Grants        []apiRecord `json:"grants"`
	Opportunities []apiRecord `json:"opportunities"`
	Results       []apiRecord `json:"results"`
	Data          []apiRecord `json:"data"`
}

func apiStrategy(portal PortalConfig, fetcher *source.Fetcher) fetchFunc {
	return func(ctx context.Context) ([]domain.Grant, error) {
		var raw json.RawMessage
		if err := fetcher.GetJSON(ctx, portal.APIEndpoint, &raw); err != nil {
			return nil, fmt.Errorf("portal api: %w", err)
		}

		records, err := decodeEnvelope(raw)
		if err != nil {
			return nil, fmt.Errorf("portal api: %w", err)
		}

		grants := make([]domain.Grant, 0, len(records))
		for _, rec := range records {
			grants = append(grants, transformAPIRecord(rec))
		}
		return grants, nil
	}
}

func decodeEnvelope(raw json.RawMessage) ([]apiRecord, error) {
	var list []apiRecord
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case env.Grants != nil:
		return env.Grants, nil
	case env.Opportunities != nil:
		return env.Opportunities, nil
	case env.Results != nil:
		return env.Results, nil
	case env.Data != nil:
		return env.Data, nil
	}
	return nil, nil
}

func transformAPIRecord(rec apiRecord) domain.Grant {
	return domain.Grant{
		SourceID:    rawID(rec.ID),
		SourceURL:   rec.URL,
		Title:       rec.Title,
		FunderName:  rec.Funder,
		Description: rec.Description,
		AwardMin:    firstPositive(rec.AmountMin, rec.AwardMin),
		AwardMax:    firstPositive(rec.AmountMax, rec.AwardMax),
		Deadline:    normalize.ParseDate(normalize.FirstNonEmpty(rec.Deadline, rec.CloseDate)),
		ApplyURL:    normalize.FirstNonEmpty(rec.ApplicationURL, rec.URL),
	}
}

// rawID stringifies an id that may arrive as a JSON number or string.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
