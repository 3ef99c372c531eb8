package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	_ "modernc.org/sqlite"

	"github.com/chatdf/chatdf/internal/query"
)

// DefaultTableName is the name the dataset is bound under in every scope.
const DefaultTableName = "NYCTLC"

const insertBatchRows = 512

// ErrTerminatedStatement is returned for SQL that already ends with ";".
// The engine always appends the terminator itself.
var ErrTerminatedStatement = errors.New("statement already terminated")

type Engine struct {
	TableName string
}

func NewEngine(tableName string) *Engine {
	if strings.TrimSpace(tableName) == "" {
		tableName = DefaultTableName
	}
	return &Engine{TableName: strings.TrimSpace(tableName)}
}

func (e *Engine) Name() query.EngineName {
	return query.EngineSQLite
}

// Execute binds the dataset under the engine's fixed table name and runs
// request.SQL with a terminator appended. request.TableAlias is ignored.
func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := strings.TrimSpace(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if strings.TrimSpace(request.DatasetPath) == "" {
		return query.Result{}, fmt.Errorf("dataset path is required")
	}
	if strings.HasSuffix(sqlText, ";") {
		return query.Result{}, query.QueryError(query.EngineSQLite, ErrTerminatedStatement)
	}

	start := time.Now()
	dataset, err := openDataset(request.DatasetPath)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = dataset.Close() }()

	// Each call gets a private in-memory database; a single connection keeps
	// the :memory: database alive for the duration of the scope.
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return query.Result{}, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	defer func() { _ = db.Close() }()

	if err := dataset.bind(ctx, db, e.TableName); err != nil {
		return query.Result{}, err
	}

	rows, err := db.QueryContext(ctx, query.LimitRows(sqlText, request.RowLimit)+";")
	if err != nil {
		return query.Result{}, query.QueryError(query.EngineSQLite, err)
	}
	defer func() { _ = rows.Close() }()

	result, err := collect(rows)
	if err != nil {
		return query.Result{}, query.QueryError(query.EngineSQLite, err)
	}
	result.Engine = query.EngineSQLite
	result.Duration = time.Since(start)
	return result, nil
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

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case float64:
			if math.IsNaN(typed) || math.IsInf(typed, 0) {
				normalized[i] = nil
			} else {
				normalized[i] = typed
			}
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// dataset is an opened Parquet file whose rows have not been read yet.
type dataset struct {
	path    string
	file    *os.File
	parquet *parquet.File
	columns []column
}

type column struct {
	name     string
	sqlType  string
	optional bool
}

func openDataset(path string) (*dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, query.DatasetError(path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, query.DatasetError(path, err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		_ = file.Close()
		return nil, query.DatasetError(path, err)
	}

	fields := pf.Schema().Fields()
	columns := make([]column, 0, len(fields))
	for _, field := range fields {
		if !field.Leaf() || field.Repeated() {
			_ = file.Close()
			return nil, query.DatasetError(path, fmt.Errorf("column %q: nested and repeated columns are not supported", field.Name()))
		}
		columns = append(columns, column{
			name:     field.Name(),
			sqlType:  sqlType(field.Type().Kind()),
			optional: field.Optional(),
		})
	}
	if len(columns) == 0 {
		_ = file.Close()
		return nil, query.DatasetError(path, fmt.Errorf("schema has no columns"))
	}
	return &dataset{path: path, file: file, parquet: pf, columns: columns}, nil
}

func (d *dataset) Close() error {
	return d.file.Close()
}

func sqlType(kind parquet.Kind) string {
	switch kind {
	case parquet.Boolean, parquet.Int32, parquet.Int64:
		return "INTEGER"
	case parquet.Float, parquet.Double:
		return "REAL"
	default:
		return "TEXT"
	}
}

// bind creates the table and streams every row group into it.
func (d *dataset) bind(ctx context.Context, db *sql.DB, tableName string) error {
	definitions := make([]string, len(d.columns))
	placeholders := make([]string, len(d.columns))
	for i, col := range d.columns {
		definitions[i] = query.QuoteIdent(col.name) + " " + col.sqlType
		placeholders[i] = "?"
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", query.QuoteIdent(tableName), strings.Join(definitions, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %q: %w", tableName, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", query.QuoteIdent(tableName), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	buffer := make([]parquet.Row, insertBatchRows)
	args := make([]any, len(d.columns))
	for _, rowGroup := range d.parquet.RowGroups() {
		if err := d.loadRowGroup(ctx, rowGroup, stmt, buffer, args); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

func (d *dataset) loadRowGroup(ctx context.Context, rowGroup parquet.RowGroup, stmt *sql.Stmt, buffer []parquet.Row, args []any) error {
	rows := rowGroup.Rows()
	defer func() { _ = rows.Close() }()

	for {
		n, readErr := rows.ReadRows(buffer)
		for _, row := range buffer[:n] {
			for i := range args {
				args[i] = nil
			}
			for _, value := range row {
				index := value.Column()
				if index < 0 || index >= len(args) {
					continue
				}
				args[index] = sqlValue(value)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("load row: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return query.DatasetError(d.path, readErr)
		}
		if n == 0 {
			return nil
		}
	}
}

func sqlValue(value parquet.Value) any {
	if value.IsNull() {
		return nil
	}
	switch value.Kind() {
	case parquet.Boolean:
		if value.Boolean() {
			return int64(1)
		}
		return int64(0)
	case parquet.Int32:
		return int64(value.Int32())
	case parquet.Int64:
		return value.Int64()
	case parquet.Float:
		return float64(value.Float())
	case parquet.Double:
		return value.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return value.String()
	}
}
