package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatdf/chatdf/internal/config"
	"github.com/chatdf/chatdf/internal/dataset"
	"github.com/chatdf/chatdf/internal/history"
	"github.com/chatdf/chatdf/internal/query"
	"github.com/chatdf/chatdf/internal/query/querytest"
	"github.com/chatdf/chatdf/internal/query/sqlite"
)

func defaults() config.QueryConfig {
	return config.QueryConfig{
		DefaultEngine:     "duckdb",
		DefaultDataset:    "s3://datasets/default.parquet",
		DefaultTableAlias: "df",
		RowLimit:          100,
		Timeout:           time.Second,
	}
}

func TestExecuteAppliesDefaults(t *testing.T) {
	engine := &fakeEngine{name: query.EngineDuckDB, result: query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}}
	resolver := &fakeResolver{}
	recorder := &fakeRecorder{}
	service := newService(t, resolver, recorder, engine)

	response, err := service.Execute(context.Background(), Request{SQL: " SELECT COUNT(*) FROM df "})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if response.ID == "" || response.TableAlias != "df" || response.Dataset != "s3://datasets/default.parquet" {
		t.Fatalf("response = %#v", response)
	}
	got := engine.requests[0]
	if got.DatasetPath != "/tmp/resolved.parquet" || got.SQL != "SELECT COUNT(*) FROM df" || got.TableAlias != "df" || got.RowLimit != 100 {
		t.Fatalf("engine request = %#v", got)
	}
	if resolver.cleanups != 1 {
		t.Fatalf("cleanups = %d, want 1", resolver.cleanups)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Status != history.StatusOK || recorder.entries[0].ID != response.ID {
		t.Fatalf("history = %#v", recorder.entries)
	}
}

func TestExecuteRowLimitOverrides(t *testing.T) {
	engine := &fakeEngine{name: query.EngineSQLite}
	service := newService(t, &fakeResolver{}, nil, engine)

	for _, tc := range []struct{ in, want int }{{5, 5}, {-1, 0}} {
		if _, err := service.Execute(context.Background(), Request{Engine: "SQLite", SQL: "SELECT 1", RowLimit: tc.in}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := engine.requests[len(engine.requests)-1].RowLimit; got != tc.want {
			t.Fatalf("RowLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestExecuteRejectsInvalidRequests(t *testing.T) {
	service := newService(t, &fakeResolver{}, nil, &fakeEngine{name: query.EngineDuckDB})
	for _, request := range []Request{
		{Engine: "postgres", SQL: "SELECT 1"},
		{Engine: "sqlite", SQL: "SELECT 1"},
		{SQL: "  "},
	} {
		if _, err := service.Execute(context.Background(), request); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("Execute(%#v) error = %v, want ErrInvalidRequest", request, err)
		}
	}
}

func TestExecuteRecordsFailuresAndSurvivesHistoryErrors(t *testing.T) {
	engine := &fakeEngine{name: query.EngineDuckDB, err: query.QueryError(query.EngineDuckDB, errors.New("no such column"))}
	recorder := &fakeRecorder{err: errors.New("history down")}
	resolver := &fakeResolver{}
	service := newService(t, resolver, recorder, engine)

	_, err := service.Execute(context.Background(), Request{SQL: "SELECT nope FROM df"})
	if !errors.Is(err, query.ErrQuery) {
		t.Fatalf("Execute() error = %v, want ErrQuery", err)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Status != history.StatusError || recorder.entries[0].Error == "" {
		t.Fatalf("history = %#v", recorder.entries)
	}
	if resolver.cleanups != 1 {
		t.Fatalf("cleanups = %d, want 1", resolver.cleanups)
	}

	engine.err = nil
	if _, err := service.Execute(context.Background(), Request{SQL: "SELECT 1"}); err != nil {
		t.Fatalf("history failure leaked into Execute(): %v", err)
	}
}

func TestExecutePropagatesDatasetErrors(t *testing.T) {
	engine := &fakeEngine{name: query.EngineDuckDB}
	resolver := &fakeResolver{err: query.DatasetError("s3://datasets/x.parquet", errors.New("not found"))}
	service := newService(t, resolver, nil, engine)

	if _, err := service.Execute(context.Background(), Request{SQL: "SELECT 1"}); !errors.Is(err, query.ErrDataset) {
		t.Fatalf("Execute() error = %v, want ErrDataset", err)
	}
	if len(engine.requests) != 0 {
		t.Fatal("engine should not run without a dataset")
	}
}

func TestHistoryDisabled(t *testing.T) {
	service := newService(t, &fakeResolver{}, nil, &fakeEngine{name: query.EngineDuckDB})
	if service.HistoryEnabled() {
		t.Fatal("HistoryEnabled() = true")
	}
	if _, err := service.History(context.Background(), 10); !errors.Is(err, ErrHistoryDisabled) {
		t.Fatalf("History() error = %v", err)
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	recorder := &fakeRecorder{}
	service := newService(t, &fakeResolver{}, recorder, &fakeEngine{name: query.EngineDuckDB})
	if _, err := service.History(context.Background(), 0); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if recorder.lastLimit != history.DefaultListLimit {
		t.Fatalf("limit = %d", recorder.lastLimit)
	}
}

func TestExecuteWithSQLiteEngineAndLocalDataset(t *testing.T) {
	path := querytest.WriteParquet(t, "trips.parquet", querytest.Trips())
	cfg := defaults()
	cfg.DefaultEngine = "sqlite"
	service, err := NewService(cfg, dataset.NewResolver(nil, "", nil), []query.Engine{sqlite.NewEngine("")}, nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	response, err := service.Execute(context.Background(), Request{Dataset: path, SQL: "SELECT AVG(fare) FROM NYCTLC"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if response.Result.Rows[0][0] != 20.0 {
		t.Fatalf("avg = %#v", response.Result.Rows[0][0])
	}
}

func newService(t *testing.T, resolver DatasetResolver, recorder history.Recorder, engines ...query.Engine) *Service {
	t.Helper()
	service, err := NewService(defaults(), resolver, engines, recorder, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service
}

type fakeEngine struct {
	name     query.EngineName
	result   query.Result
	err      error
	requests []query.Request
}

func (f *fakeEngine) Name() query.EngineName { return f.name }

func (f *fakeEngine) Execute(_ context.Context, request query.Request) (query.Result, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return query.Result{}, f.err
	}
	result := f.result
	result.Engine = f.name
	return result, nil
}

type fakeResolver struct {
	err      error
	cleanups int
}

func (f *fakeResolver) Resolve(_ context.Context, location string) (dataset.Local, error) {
	if f.err != nil {
		return dataset.Local{}, f.err
	}
	return dataset.Local{Path: "/tmp/resolved.parquet", Location: location, Cleanup: func() { f.cleanups++ }}, nil
}

type fakeRecorder struct {
	entries   []history.Entry
	err       error
	lastLimit int
}

func (f *fakeRecorder) Record(_ context.Context, entry history.Entry) (history.Entry, error) {
	f.entries = append(f.entries, entry)
	return entry, f.err
}

func (f *fakeRecorder) List(_ context.Context, limit int) ([]history.Entry, error) {
	f.lastLimit = limit
	return f.entries, nil
}
