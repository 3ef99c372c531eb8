// Package executor runs SQL against a dataset location with the configured
// defaults, and records the outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatdf/chatdf/internal/config"
	"github.com/chatdf/chatdf/internal/dataset"
	"github.com/chatdf/chatdf/internal/history"
	"github.com/chatdf/chatdf/internal/observability"
	"github.com/chatdf/chatdf/internal/query"
)

var (
	ErrInvalidRequest  = errors.New("invalid query request")
	ErrHistoryDisabled = errors.New("query history is not configured")
)

const historyWriteTimeout = 3 * time.Second

type DatasetResolver interface {
	Resolve(ctx context.Context, location string) (dataset.Local, error)
}

type Request struct {
	Engine     string
	Dataset    string
	SQL        string
	TableAlias string
	// RowLimit of 0 applies the configured default; negative disables it.
	RowLimit int
}

type Response struct {
	ID         string
	Dataset    string
	TableAlias string
	Result     query.Result
}

type Service struct {
	defaults config.QueryConfig
	resolver DatasetResolver
	engines  map[query.EngineName]query.Engine
	recorder history.Recorder
	logger   *slog.Logger
}

// NewService wires the engines by name. recorder may be nil.
func NewService(cfg config.QueryConfig, resolver DatasetResolver, engines []query.Engine, recorder history.Recorder, logger *slog.Logger) (*Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("dataset resolver is required")
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("at least one engine is required")
	}
	byName := make(map[query.EngineName]query.Engine, len(engines))
	for _, engine := range engines {
		byName[engine.Name()] = engine
	}
	return &Service{defaults: cfg, resolver: resolver, engines: byName, recorder: recorder, logger: logger}, nil
}

func (s *Service) HistoryEnabled() bool {
	return s.recorder != nil
}

func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.recorder == nil {
		return nil, ErrHistoryDisabled
	}
	return s.recorder.List(ctx, history.ClampLimit(limit))
}

func (s *Service) Execute(ctx context.Context, request Request) (Response, error) {
	engine, normalized, err := s.normalize(request)
	if err != nil {
		return Response{}, err
	}
	id := uuid.NewString()
	logger := observability.LoggerWithTrace(ctx, s.logger).With(
		slog.String("query_id", id),
		slog.String("engine", string(engine.Name())),
		slog.String("dataset", normalized.Dataset),
	)

	if s.defaults.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.defaults.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.run(ctx, engine, normalized)
	elapsed := time.Since(start)
	observability.ObserveQuery(string(engine.Name()), result.RowCount(), elapsed, err)

	s.record(ctx, logger, history.Entry{
		ID:          id,
		Engine:      string(engine.Name()),
		Dataset:     normalized.Dataset,
		SQL:         normalized.SQL,
		TableAlias:  normalized.TableAlias,
		RowCount:    result.RowCount(),
		ColumnCount: len(result.Columns),
		Status:      statusOf(err),
		Error:       errorText(err),
		DurationMS:  elapsed.Milliseconds(),
	})

	if err != nil {
		logger.Info("query failed", slog.String("error", err.Error()), slog.Duration("elapsed", elapsed))
		return Response{}, err
	}
	logger.Info("query executed",
		slog.Int("rows", result.RowCount()),
		slog.Int("columns", len(result.Columns)),
		slog.Duration("elapsed", elapsed),
	)
	return Response{ID: id, Dataset: normalized.Dataset, TableAlias: normalized.TableAlias, Result: result}, nil
}

func (s *Service) run(ctx context.Context, engine query.Engine, request Request) (query.Result, error) {
	local, err := s.resolver.Resolve(ctx, request.Dataset)
	if err != nil {
		return query.Result{}, err
	}
	defer local.Cleanup()

	return engine.Execute(ctx, query.Request{
		DatasetPath: local.Path,
		SQL:         request.SQL,
		TableAlias:  request.TableAlias,
		RowLimit:    request.RowLimit,
	})
}

func (s *Service) normalize(request Request) (query.Engine, Request, error) {
	rawEngine := strings.TrimSpace(request.Engine)
	if rawEngine == "" {
		rawEngine = s.defaults.DefaultEngine
	}
	name, err := query.ParseEngineName(rawEngine)
	if err != nil {
		return nil, Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	engine, ok := s.engines[name]
	if !ok {
		return nil, Request{}, fmt.Errorf("%w: engine %q is not enabled", ErrInvalidRequest, name)
	}

	normalized := Request{
		Engine:     string(name),
		Dataset:    strings.TrimSpace(request.Dataset),
		SQL:        strings.TrimSpace(request.SQL),
		TableAlias: strings.TrimSpace(request.TableAlias),
		RowLimit:   request.RowLimit,
	}
	if normalized.Dataset == "" {
		normalized.Dataset = s.defaults.DefaultDataset
	}
	if normalized.Dataset == "" {
		return nil, Request{}, fmt.Errorf("%w: dataset is required", ErrInvalidRequest)
	}
	if normalized.SQL == "" {
		return nil, Request{}, fmt.Errorf("%w: sql is required", ErrInvalidRequest)
	}
	if normalized.TableAlias == "" {
		normalized.TableAlias = s.defaults.DefaultTableAlias
	}
	switch {
	case normalized.RowLimit == 0:
		normalized.RowLimit = s.defaults.RowLimit
	case normalized.RowLimit < 0:
		normalized.RowLimit = 0
	}
	return engine, normalized, nil
}

// record stores entry without failing the caller. It outlives a canceled
// request context so timeouts are still recorded.
func (s *Service) record(ctx context.Context, logger *slog.Logger, entry history.Entry) {
	if s.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	if _, err := s.recorder.Record(recordCtx, entry); err != nil {
		logger.Warn("query history write failed", slog.String("error", err.Error()))
	}
}

func statusOf(err error) string {
	if err != nil {
		return history.StatusError
	}
	return history.StatusOK
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
