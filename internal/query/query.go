// Package query defines the execution contract shared by the SQL engines.
//
// Every Execute call is isolated: the dataset is loaded fresh, bound into a
// private database or connection, queried, and everything is released before
// the call returns. Nothing is cached between calls.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

type EngineName string

const (
	// EngineSQLite evaluates SQL in an embedded in-memory SQLite database.
	EngineSQLite EngineName = "sqlite"
	// EngineDuckDB evaluates SQL in an in-process DuckDB connection.
	EngineDuckDB EngineName = "duckdb"
)

func ParseEngineName(raw string) (EngineName, error) {
	name := EngineName(strings.ToLower(strings.TrimSpace(raw)))
	switch name {
	case EngineSQLite, EngineDuckDB:
		return name, nil
	default:
		return "", fmt.Errorf("unknown engine %q", raw)
	}
}

var (
	// ErrDataset marks failures to read or decode the dataset file.
	ErrDataset = errors.New("dataset unreadable")
	// ErrQuery marks SQL failures reported by an engine.
	ErrQuery = errors.New("query failed")
)

type Request struct {
	DatasetPath string
	SQL         string
	// TableAlias is the name the SQL uses for the dataset. Only the DuckDB
	// engine honors it; the SQLite engine binds a fixed name.
	TableAlias string
	RowLimit   int
}

type Result struct {
	Engine      EngineName
	Columns     []string
	ColumnTypes []string
	Rows        [][]any
	Duration    time.Duration
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

type Engine interface {
	Name() EngineName
	Execute(ctx context.Context, request Request) (Result, error)
}

func DatasetError(path string, err error) error {
	return fmt.Errorf("%w: %q: %w", ErrDataset, path, err)
}

func QueryError(engine EngineName, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQuery, engine, err)
}

// LimitRows wraps a SELECT or WITH statement so that at most limit rows are
// produced. Other statements are returned unchanged. The closing parenthesis
// goes on its own line so a trailing line comment cannot swallow it.
func LimitRows(sqlText string, limit int) string {
	if limit <= 0 || !IsSelect(sqlText) {
		return sqlText
	}
	return fmt.Sprintf("SELECT * FROM (%s\n) AS q LIMIT %d", sqlText, limit)
}

// IsSelect reports whether sqlText starts with SELECT or WITH.
func IsSelect(sqlText string) bool {
	switch LeadingKeyword(sqlText) {
	case "select", "with":
		return true
	default:
		return false
	}
}

// LeadingKeyword returns the first word of sqlText in lower case, skipping
// whitespace, opening parentheses, "--" line comments and "/* */" block
// comments. It returns "" when no word follows.
func LeadingKeyword(sqlText string) string {
	rest := sqlText
	for {
		rest = strings.TrimLeftFunc(rest, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(rest, "--"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return ""
			}
			rest = rest[end+1:]
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest, "*/")
			if end < 0 {
				return ""
			}
			rest = rest[end+2:]
		default:
			end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) && r != '_' })
			if end < 0 {
				end = len(rest)
			}
			return strings.ToLower(rest[:end])
		}
	}
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
