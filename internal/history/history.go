// Package history records every query execution for later inspection.
package history

import (
	"context"
	"time"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Entry struct {
	ID          string    `json:"id"`
	Engine      string    `json:"engine"`
	Dataset     string    `json:"dataset"`
	SQL         string    `json:"sql"`
	TableAlias  string    `json:"table_alias,omitempty"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
