package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatdf/chatdf/internal/history"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS query_history (
	id TEXT PRIMARY KEY,
	engine TEXT NOT NULL,
	dataset TEXT NOT NULL,
	sql_text TEXT NOT NULL,
	table_alias TEXT NOT NULL DEFAULT '',
	row_count INTEGER NOT NULL DEFAULT 0,
	column_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_text TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createdAtIndexSQL = `CREATE INDEX IF NOT EXISTS query_history_created_at_idx ON query_history (created_at DESC)`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, statement := range []string{schemaSQL, createdAtIndexSQL} {
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

// Record inserts entry, assigning an id when it has none.
func (r *Repository) Record(ctx context.Context, entry history.Entry) (history.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	query := `
INSERT INTO query_history (id, engine, dataset, sql_text, table_alias, row_count, column_count, status, error_text, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at`
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.Engine,
		entry.Dataset,
		entry.SQL,
		entry.TableAlias,
		entry.RowCount,
		entry.ColumnCount,
		entry.Status,
		entry.Error,
		entry.DurationMS,
	).Scan(&createdAt); err != nil {
		return history.Entry{}, fmt.Errorf("record query history: %w", err)
	}
	entry.CreatedAt = createdAt.UTC()
	return entry, nil
}

// List returns the most recent entries first.
func (r *Repository) List(ctx context.Context, limit int) ([]history.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, engine, dataset, sql_text, table_alias, row_count, column_count, status, error_text, duration_ms, created_at
FROM query_history
ORDER BY created_at DESC, id ASC
LIMIT $1`, history.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		var entry history.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.Engine,
			&entry.Dataset,
			&entry.SQL,
			&entry.TableAlias,
			&entry.RowCount,
			&entry.ColumnCount,
			&entry.Status,
			&entry.Error,
			&entry.DurationMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query history row: %w", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query history rows: %w", err)
	}
	return entries, nil
}
