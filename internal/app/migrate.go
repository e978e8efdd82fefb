package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minitweet/backend/internal/config"
	"github.com/minitweet/backend/internal/db"
)

const (
	migrationMaxAttempts = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// errTransient marks a step failure that may succeed on a fresh transaction.
type errTransient struct{ err error }

func (e errTransient) Error() string { return e.err.Error() }
func (e errTransient) Unwrap() error { return e.err }

// migration is one ordered schema file.
type migration struct {
	Name string
	Path string
}

// loadMigrations lists the .sql files in dir in lexical order.
func loadMigrations(dir string) ([]migration, error) {
	dir, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		out = append(out, migration{Name: entry.Name(), Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}

// pending filters out migrations already recorded as applied.
func pending(all []migration, applied map[string]struct{}) []migration {
	var out []migration
	for _, m := range all {
		if _, ok := applied[m.Name]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func writeStatus(w io.Writer, all []migration, applied map[string]struct{}) {
	for _, m := range all {
		mark := " "
		if _, ok := applied[m.Name]; ok {
			mark = "x"
		}
		printf(w, "[%s] %s\n", mark, m.Name)
	}
}

func runMigrations(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q", command)
	}

	all, err := loadMigrations(cfg.MigrationDir)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	if command == "status" {
		writeStatus(out, all, applied)
		return nil
	}

	todo := pending(all, applied)
	if len(todo) == 0 {
		printf(out, "no migrations to apply\n")
		return nil
	}

	for _, m := range todo {
		contents, err := os.ReadFile(m.Path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.Name, err)
		}
		if err := applyMigrationWithRetry(ctx, conn, m.Name, string(contents)); err != nil {
			return err
		}
		printf(out, "applied migration %s\n", m.Name)
	}
	return nil
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

func applyMigrationWithRetry(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	return retryTransient(ctx, migrationMaxAttempts, func() error {
		return applyMigration(ctx, conn, name, contents)
	}, func(attempt int, err error) {
		slog.Warn("transient migration error", "migration", name, "attempt", attempt, "maxAttempts", migrationMaxAttempts, "error", err)
	})
}

// applyMigration runs contents and records name in one serializable transaction.
func applyMigration(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, contents); err != nil {
		return classify(fmt.Errorf("apply migration %s: %w", name, err))
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return classify(fmt.Errorf("record migration %s: %w", name, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit migration %s: %w", name, err))
	}
	return nil
}

// retryTransient calls fn until it succeeds, fails permanently or maxAttempts
// is reached, backing off exponentially between attempts.
func retryTransient(ctx context.Context, maxAttempts int, fn func() error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn()
		var transient errTransient
		if !errors.As(err, &transient) {
			return err
		}
		if onRetry != nil && attempt < maxAttempts {
			onRetry(attempt, err)
		}
	}
	return fmt.Errorf("exceeded %d attempts: %w", maxAttempts, err)
}

func backoff(retry int) time.Duration {
	if retry > 16 {
		return migrationMaxBackoff
	}
	d := migrationBaseBackoff << (retry - 1)
	if d > migrationMaxBackoff {
		return migrationMaxBackoff
	}
	return d
}

func classify(err error) error {
	if shouldRetryMigration(err) {
		return errTransient{err: err}
	}
	return err
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}

func runSeed(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	seedPath, err := seedFile(cfg.SeedDir, args[0])
	if err != nil {
		return err
	}
	contents, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", filepath.Base(seedPath), err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", filepath.Base(seedPath), err)
	}

	printf(out, "applied seed %s\n", filepath.Base(seedPath))
	return nil
}

// seedFile maps a seed name such as "dev" to <dir>/dev_seed.sql.
func seedFile(dir, name string) (string, error) {
	dir, err := resolveDir(dir)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid seed name %q", name)
	}
	if !strings.HasSuffix(name, ".sql") {
		name += "_seed.sql"
	}
	return filepath.Join(dir, name), nil
}
