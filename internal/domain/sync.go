package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Sync run statuses.
const (
	SyncRunning   = "running"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

// Metadata is a free-form JSON column on a sync log entry.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, m)
}

// SyncLogEntry records one orchestrator run against one logical source.
// records_processed == records_created + records_updated + records_failed
// holds at completion; terminal states are immutable.
type SyncLogEntry struct {
	ID           int64      `json:"id" db:"id"`
	Source       string     `json:"source" db:"source"`
	StartedAt    time.Time  `json:"sync_started_at" db:"sync_started_at"`
	CompletedAt  *time.Time `json:"sync_completed_at" db:"sync_completed_at"`
	Processed    int        `json:"records_processed" db:"records_processed"`
	Created      int        `json:"records_created" db:"records_created"`
	Updated      int        `json:"records_updated" db:"records_updated"`
	Failed       int        `json:"records_failed" db:"records_failed"`
	Status       string     `json:"status" db:"status"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	Metadata     Metadata   `json:"metadata,omitempty" db:"metadata"`
}

// SyncCounts are the per-record tallies of a run.
type SyncCounts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// SourceResult summarizes one source's run within a batch.
type SourceResult struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	SyncCounts
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RunSummary aggregates a multi-source run.
type RunSummary struct {
	Processed int            `json:"total_processed"`
	Created   int            `json:"total_created"`
	Updated   int            `json:"total_updated"`
	Failed    int            `json:"total_failed"`
	Results   []SourceResult `json:"results"`
}

// Add folds a source result into the batch totals.
func (r *RunSummary) Add(res SourceResult) {
	r.Processed += res.Processed
	r.Created += res.Created
	r.Updated += res.Updated
	r.Failed += res.Failed
	r.Results = append(r.Results, res)
}
