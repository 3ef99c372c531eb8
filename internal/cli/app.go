package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/chatdf/chatdf/internal/config"
	"github.com/chatdf/chatdf/internal/credentials"
	"github.com/chatdf/chatdf/internal/dataset"
	"github.com/chatdf/chatdf/internal/executor"
	"github.com/chatdf/chatdf/internal/history"
	historypostgres "github.com/chatdf/chatdf/internal/history/postgres"
	"github.com/chatdf/chatdf/internal/models"
	"github.com/chatdf/chatdf/internal/observability"
	"github.com/chatdf/chatdf/internal/query"
	duckdbengine "github.com/chatdf/chatdf/internal/query/duckdb"
	sqliteengine "github.com/chatdf/chatdf/internal/query/sqlite"
	"github.com/chatdf/chatdf/internal/storage"
	s3store "github.com/chatdf/chatdf/internal/storage/s3"
)

// app holds what every subcommand shares once flags and config are resolved.
type app struct {
	stdout io.Writer
	stderr io.Writer
	output string

	cfg    config.Config
	logger *slog.Logger
	keys   *credentials.Provider
}

func (a *app) init(cfg config.Config, lookup config.LookupFunc) error {
	keys, err := credentials.NewProvider(cfg.Providers, lookup)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.keys = keys
	a.logger = observability.NewLogger(cfg, a.stderr)
	return nil
}

func (a *app) catalogs() []models.Catalog {
	return []models.Catalog{
		models.NewGeminiCatalog(a.keys, a.logger, a.cfg.Providers.Timeout),
		models.NewOpenAICatalog(a.keys, a.cfg.Providers.OpenAIBaseURL, a.logger, a.cfg.Providers.Timeout),
	}
}

func (a *app) engines() []query.Engine {
	return []query.Engine{
		sqliteengine.NewEngine(a.cfg.Query.SQLiteTableName),
		duckdbengine.NewEngine(),
	}
}

// objectStore returns nil when no object store is configured.
func (a *app) objectStore(ctx context.Context, autoCreate bool) (storage.ObjectStore, error) {
	if !a.cfg.ObjectStoreEnabled() {
		return nil, nil
	}
	store, err := s3store.New(ctx, s3store.ConfigFrom(a.cfg.ObjectStore, autoCreate))
	if err != nil {
		return nil, fmt.Errorf("initialize object store: %w", err)
	}
	return store, nil
}

// historyRepository returns nil when no history DSN is configured. The
// returned close func is always safe to call.
func (a *app) historyRepository(ctx context.Context) (*historypostgres.Repository, func(), error) {
	if a.cfg.History.DSN == "" {
		return nil, func() {}, nil
	}
	db, err := historypostgres.Open(ctx, historypostgres.DBConfigFrom(a.cfg.History))
	if err != nil {
		return nil, func() {}, err
	}
	repo := historypostgres.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, func() {}, err
	}
	return repo, func() { _ = db.Close() }, nil
}

func (a *app) executor(ctx context.Context) (*executor.Service, *historypostgres.Repository, func(), error) {
	store, err := a.objectStore(ctx, false)
	if err != nil {
		return nil, nil, nil, err
	}
	repo, closeHistory, err := a.historyRepository(ctx)
	if err != nil {
		// History is best effort; queries still run without it.
		a.logger.Warn("query history disabled", slog.String("error", err.Error()))
		repo = nil
	}

	var recorder history.Recorder
	if repo != nil {
		recorder = repo
	}
	service, err := executor.NewService(a.cfg.Query, dataset.NewResolver(store, "", a.logger), a.engines(), recorder, a.logger)
	if err != nil {
		closeHistory()
		return nil, nil, nil, err
	}
	return service, repo, closeHistory, nil
}
