// Package normalize turns partially-populated source records into complete
// canonical grants. It is pure mapping logic: absent optional inputs become
// defaults, never errors.
package normalize

import (
	"errors"
	"math"
	"strings"
	"time"

	"grantsync/internal/domain"
)

// MaxDescriptionLen bounds the display description; the untruncated text is
// kept in full_text.
const MaxDescriptionLen = 2000

// ErrMissingSourceID marks a record that cannot be keyed and therefore cannot
// be upserted. It is the only per-record normalization failure.
var ErrMissingSourceID = errors.New("normalize: missing source id")

// Policy is the source-level normalization policy. It is fixed per adapter,
// not decided per record.
type Policy struct {
	// ActiveByDefault is false for historical-award sources, which are
	// informational rather than actionable.
	ActiveByDefault bool
	FunderType      domain.FunderType
	DefaultFunder   string
	DefaultCountry  string
	// SweepStale marks rows this source stopped returning as stale after a
	// completed run. Only sensible for sources scanned to exhaustion;
	// bounded or single-page scans would stale-mark records they simply
	// did not reach.
	SweepStale bool
}

// Grant completes a canonical record in place: truncation, award band,
// date normalization, rolling-deadline derivation, and policy defaults.
func Grant(g *domain.Grant, p Policy) error {
	if g.SourceID == "" {
		return ErrMissingSourceID
	}

	if g.Title == "" {
		g.Title = "Untitled Grant"
	}
	if g.FunderName == "" {
		g.FunderName = p.DefaultFunder
	}
	if g.FunderType == "" {
		g.FunderType = p.FunderType
	}

	if g.FullText == "" {
		g.FullText = g.Description
	}
	g.Description = Truncate(g.FullText, MaxDescriptionLen)

	g.AwardMin, g.AwardMax = AwardBand(g.AwardMin, g.AwardMax, g.EstimatedFunding)

	g.Deadline = DateOnly(g.Deadline)
	g.PostedDate = DateOnly(g.PostedDate)
	g.CloseDate = DateOnly(g.CloseDate)
	g.ArchiveDate = DateOnly(g.ArchiveDate)
	g.IsRolling = g.Deadline == nil

	if len(g.Countries) == 0 && p.DefaultCountry != "" {
		g.Countries = []string{p.DefaultCountry}
	}

	g.IsActive = p.ActiveByDefault
	g.SyncStatus = domain.SyncStatusActive

	return nil
}

// Truncate cuts s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// AwardBand reconciles the award range. An explicit floor/ceiling pair wins;
// when only a point estimate is known the band is derived as
// floor(0.8v)..ceil(1.2v).
func AwardBand(floor, ceiling float64, estimate *float64) (float64, float64) {
	if floor == 0 && ceiling == 0 && estimate != nil && *estimate > 0 {
		return math.Floor(*estimate * 0.8), math.Ceil(*estimate * 1.2)
	}
	if floor > 0 && ceiling > 0 && floor > ceiling {
		floor, ceiling = ceiling, floor
	}
	return floor, ceiling
}

// DateOnly discards the time-of-day component, keeping a UTC calendar date.
func DateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// dateLayouts are the formats sources have been observed to use.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses a source date string into a calendar date. Unparseable or
// empty input yields nil rather than an error.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(&t)
		}
	}
	return nil
}

// FirstNonEmpty returns the first non-empty string, for source-specific
// field precedence.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
