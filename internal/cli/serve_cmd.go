package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatdf/chatdf/internal/api"
	"github.com/chatdf/chatdf/internal/auth"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.cfg
			if addr != "" {
				cfg.HTTP.Address = addr
			}
			logger := app.logger

			service, repo, closeHistory, err := app.executor(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			deps := api.Dependencies{
				Logger:            logger,
				Queries:           service,
				Catalogs:          app.catalogs(),
				DependencyTimeout: time.Second,
				Readiness:         api.CombineReadinessChecks(api.CheckObjectStoreConfig(cfg)),
			}
			if repo != nil {
				deps.Readiness = api.CombineReadinessChecks(repo.HealthCheck, api.CheckObjectStoreConfig(cfg))
			}
			if cfg.Auth.Required {
				validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
				if err != nil {
					return err
				}
				deps.AuthMiddleware = auth.Middleware(logger, validator)
			}

			server := &http.Server{
				Addr:         cfg.HTTP.Address,
				Handler:      api.NewHandler(cfg, deps),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
				IdleTimeout:  cfg.HTTP.IdleTimeout,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, server, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; defaults to CHATDF_HTTP_ADDR")
	return cmd
}

// serve runs server until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("api server failed", slog.Any("error", err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		return err
	}
	return nil
}
