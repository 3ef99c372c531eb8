package query

import (
	"errors"
	"testing"
)

func TestLimitRows(t *testing.T) {
	tests := []struct {
		sql   string
		limit int
		want  string
	}{
		{sql: "SELECT 1", limit: 0, want: "SELECT 1"},
		{sql: "SELECT 1", limit: 5, want: "SELECT * FROM (SELECT 1\n) AS q LIMIT 5"},
		{sql: "SELECT 1 -- one", limit: 5, want: "SELECT * FROM (SELECT 1 -- one\n) AS q LIMIT 5"},
		{sql: "WITH t AS (SELECT 1) SELECT * FROM t", limit: 2, want: "SELECT * FROM (WITH t AS (SELECT 1) SELECT * FROM t\n) AS q LIMIT 2"},
		{sql: "PRAGMA table_info('trips')", limit: 5, want: "PRAGMA table_info('trips')"},
		{sql: "DESCRIBE trips", limit: 5, want: "DESCRIBE trips"},
	}
	for _, tt := range tests {
		if got := LimitRows(tt.sql, tt.limit); got != tt.want {
			t.Fatalf("LimitRows(%q, %d) = %q, want %q", tt.sql, tt.limit, got, tt.want)
		}
	}
}

func TestLeadingKeyword(t *testing.T) {
	tests := map[string]string{
		"  SELECT 1":         "select",
		"-- count\nselect 1": "select",
		"/* a */ /* b */\n  With t AS (SELECT 1) SELECT 1": "with",
		"((SELECT 1))":         "select",
		"-- unterminated":      "",
		"/* unterminated":      "",
		"":                     "",
		"PRAGMA table_info(x)": "pragma",
	}
	for in, want := range tests {
		if got := LeadingKeyword(in); got != want {
			t.Fatalf("LeadingKeyword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEngineName(t *testing.T) {
	if name, err := ParseEngineName(" DuckDB "); err != nil || name != EngineDuckDB {
		t.Fatalf("ParseEngineName() = %q, %v", name, err)
	}
	if _, err := ParseEngineName("postgres"); err == nil {
		t.Fatal("expected unknown engine error")
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	if err := DatasetError("x.parquet", cause); !errors.Is(err, ErrDataset) || !errors.Is(err, cause) {
		t.Fatalf("DatasetError() = %v", err)
	}
	if err := QueryError(EngineSQLite, cause); !errors.Is(err, ErrQuery) || !errors.Is(err, cause) {
		t.Fatalf("QueryError() = %v", err)
	}
}
