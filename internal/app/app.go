package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/minitweet/backend/internal/config"
	"github.com/minitweet/backend/internal/handlers"
	"github.com/minitweet/backend/internal/httpserver"
	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/metrics"
	"github.com/minitweet/backend/internal/middleware"
)

const usage = "expected command: serve, migrate [up|status], or seed <name>"

// Run bootstraps the minitweet backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:], os.Stdout)
	case "seed":
		return runSeed(ctx, cfg, args[1:], os.Stdout)
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

// newHandler builds the full middleware chain around the route table.
func newHandler(deps handlers.Dependencies, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)
	return middleware.RequestLogger(logger)(metrics.InstrumentHandler(mux))
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.AppPort, newHandler(deps, logger))

	logger.Info("starting http server",
		"port", cfg.AppPort,
		"store", cfg.Store,
		"archive", cfg.Archive.Enabled(),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested", "cause", context.Cause(ctx))
	case runErr = <-srvErr:
		if runErr != nil {
			logger.Error("http server stopped", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return errors.Join(runErr, srv.Shutdown(shutdownCtx), cleanup(shutdownCtx))
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
