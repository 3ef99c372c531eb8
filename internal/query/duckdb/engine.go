package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/marcboeker/go-duckdb/v2"

	"github.com/chatdf/chatdf/internal/query"
)

// session is one DuckDB connection. Close must release the connection and
// the database behind it.
type session interface {
	Load(ctx context.Context, tableName, path string) error
	QueryContext(ctx context.Context, sqlText string) (*sql.Rows, error)
	Close() error
}

type sessionOpener func(ctx context.Context) (session, error)

type Engine struct {
	open sessionOpener
}

func NewEngine() *Engine {
	return &Engine{open: openSession}
}

func (e *Engine) Name() query.EngineName {
	return query.EngineDuckDB
}

// Execute loads the dataset into a table named after the request's alias in
// a fresh in-memory database and runs the SQL verbatim.
func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if strings.TrimSpace(request.DatasetPath) == "" {
		return query.Result{}, fmt.Errorf("dataset path is required")
	}
	alias := strings.TrimSpace(request.TableAlias)
	if alias == "" {
		return query.Result{}, fmt.Errorf("table alias is required")
	}

	start := time.Now()
	if err := checkDataset(request.DatasetPath); err != nil {
		return query.Result{}, err
	}

	sess, err := e.open(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = sess.Close() }()

	if err := sess.Load(ctx, alias, request.DatasetPath); err != nil {
		return query.Result{}, query.DatasetError(request.DatasetPath, fmt.Errorf("load table %q: %w", alias, err))
	}

	rows, err := sess.QueryContext(ctx, query.LimitRows(sqlText, request.RowLimit))
	if err != nil {
		return query.Result{}, query.QueryError(query.EngineDuckDB, err)
	}
	defer func() { _ = rows.Close() }()

	result, err := collect(rows)
	if err != nil {
		return query.Result{}, query.QueryError(query.EngineDuckDB, err)
	}
	result.Engine = query.EngineDuckDB
	result.Duration = time.Since(start)
	return result, nil
}

// checkDataset reads the Parquet footer so unreadable files fail before a
// database is opened.
func checkDataset(path string) error {
	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return query.DatasetError(path, err)
	}
	defer func() { _ = reader.Close() }()

	fileReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return query.DatasetError(path, err)
	}
	schema, err := fileReader.Schema()
	if err != nil {
		return query.DatasetError(path, err)
	}
	if schema.NumFields() == 0 {
		return query.DatasetError(path, errors.New("schema has no columns"))
	}
	return nil
}

func collect(rows *sql.Rows) (query.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return query.Result{}, fmt.Errorf("query column types: %w", err)
	}
	types := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		types[i] = columnType.DatabaseTypeName()
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return query.Result{Columns: columns, ColumnTypes: types, Rows: resultRows}, nil
}

// normalizeValues widens driver values to int64, float64 and string so both
// engines report the same Go types. Non-finite floats become NULL.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case int8:
			normalized[i] = int64(typed)
		case int16:
			normalized[i] = int64(typed)
		case int32:
			normalized[i] = int64(typed)
		case uint8:
			normalized[i] = int64(typed)
		case uint16:
			normalized[i] = int64(typed)
		case uint32:
			normalized[i] = int64(typed)
		case float32:
			normalized[i] = finite(float64(typed))
		case float64:
			normalized[i] = finite(typed)
		case *big.Int:
			if typed != nil && typed.IsInt64() {
				normalized[i] = typed.Int64()
			} else {
				normalized[i] = typed
			}
		case duckdb.Decimal:
			normalized[i] = finite(typed.Float64())
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func finite(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// sqlSession pins one connection of a private in-memory database so the
// loaded table is visible to the query.
type sqlSession struct {
	db   *sql.DB
	conn *sql.Conn
}

func openSession(ctx context.Context) (session, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlSession{db: db, conn: conn}, nil
}

func (s *sqlSession) Load(ctx context.Context, tableName, path string) error {
	loadSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet(%s)", query.QuoteIdent(tableName), quoteString(path))
	_, err := s.conn.ExecContext(ctx, loadSQL)
	return err
}

func (s *sqlSession) QueryContext(ctx context.Context, sqlText string) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, sqlText)
}

func (s *sqlSession) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}
