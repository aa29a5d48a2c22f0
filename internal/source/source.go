// Package source defines the per-source adapter contract and the shared
// HTTP fetch layer adapters are built on.
package source

import (
	"context"

	"grantsync/internal/domain"
	"grantsync/internal/normalize"
)

// Cursor addresses one page of a source. Adapters interpret the fields they
// use: grants_gov advances Offset, usaspending and portals advance Page.
type Cursor struct {
	Offset int
	Page   int
}

// Page is one fetched batch of records plus the position of the next one.
type Page struct {
	Grants []domain.Grant
	Next   Cursor
	Done   bool
}

// Source adapts one remote system to the common page/record abstraction.
// FetchPage blocks for one request/response round trip; pagination, delays
// and error accounting belong to the orchestrator.
type Source interface {
	ID() string
	Name() string
	Policy() normalize.Policy
	// Metadata is attached to the source's sync log entry. Nil for sources
	// with nothing to record.
	Metadata() domain.Metadata
	FetchPage(ctx context.Context, cur Cursor) (*Page, error)
}
