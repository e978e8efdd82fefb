package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minitweet/backend/internal/archive"
	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/config"
	"github.com/minitweet/backend/internal/db"
	"github.com/minitweet/backend/internal/handlers"
	"github.com/minitweet/backend/internal/middleware"
	"github.com/minitweet/backend/internal/repositories"
	"github.com/minitweet/backend/internal/storage"
	"github.com/minitweet/backend/internal/timeline"
)

type cleanupFunc func(ctx context.Context) error

// stores groups the three repositories regardless of backing implementation.
type stores struct {
	users   repositories.UserRepository
	follows repositories.FollowRepository
	tweets  repositories.TweetRepository
}

// openStores selects the configured store kind. The returned cleanup closes any pool.
func openStores(ctx context.Context, cfg config.Config) (stores, cleanupFunc, error) {
	switch cfg.Store {
	case config.StoreMemory:
		mem := repositories.NewMemoryStore()
		return stores{users: mem.Users(), follows: mem.Follows(), tweets: mem.Tweets()},
			func(context.Context) error { return nil }, nil
	case config.StorePostgres, "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, nil, err
		}
		return postgresStores(pool), func(context.Context) error { pool.Close(); return nil }, nil
	default:
		return stores{}, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func postgresStores(pool db.Pool) stores {
	return stores{
		users:   repositories.NewPostgresUserRepository(pool),
		follows: repositories.NewPostgresFollowRepository(pool),
		tweets:  repositories.NewPostgresTweetRepository(pool),
	}
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The cleanup drains the archive exporter before releasing the stores.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, cleanupFunc, error) {
	s, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	deps, closeExporter, err := wire(ctx, s, cfg, logger)
	if err != nil {
		_ = closeStores(ctx)
		return handlers.Dependencies{}, nil, err
	}

	return deps, func(ctx context.Context) error {
		return errors.Join(closeExporter(ctx), closeStores(ctx))
	}, nil
}

func wire(ctx context.Context, s stores, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, cleanupFunc, error) {
	hasher := auth.BcryptHasher{}
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	timelines := timeline.NewService(s.follows, s.tweets)

	deps := handlers.Dependencies{
		Users:     s.users,
		Passwords: hasher,
		Auth:      auth.NewService(s.users, hasher, tokens),
		Timeline:  timelines,
		LoginLimiter: middleware.NewKeyedRateLimiter(
			cfg.LoginRateLimit.Requests,
			cfg.LoginRateLimit.Window,
			cfg.LoginRateLimit.Burst,
			0,
		),
	}

	noop := func(context.Context) error { return nil }
	if !cfg.Archive.Enabled() {
		return deps, noop, nil
	}

	objects, err := storage.NewS3Storage(ctx, cfg.Archive)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure archive storage: %w", err)
	}

	exporter := archive.NewExporter(timelines, objects, archive.Config{
		QueueSize: cfg.Archive.QueueSize,
		Workers:   cfg.Archive.Workers,
	}, logger)
	deps.Exporter = exporter

	return deps, exporter.Shutdown, nil
}
