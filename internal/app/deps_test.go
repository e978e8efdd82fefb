package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/minitweet/backend/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Store:     config.StoreMemory,
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		LoginRateLimit: config.RateLimitConfig{
			Requests: 100,
			Window:   time.Minute,
			Burst:    100,
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDependenciesMemoryStore(t *testing.T) {
	deps, cleanup, err := buildDependencies(context.Background(), testConfig(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cleanup(ctx); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	if deps.Users == nil || deps.Passwords == nil || deps.Auth == nil || deps.Timeline == nil {
		t.Fatalf("expected core dependencies to be configured: %+v", deps)
	}
	if deps.LoginLimiter == nil {
		t.Fatal("expected login limiter to be configured")
	}
	if deps.Exporter != nil {
		t.Fatal("expected exporter to stay disabled without a bucket")
	}
}

func TestBuildDependenciesWithArchive(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := testConfig()
	cfg.Archive = config.ArchiveConfig{
		Bucket:   "archives",
		Region:   "us-east-1",
		Endpoint: "http://localhost:9000",
		Workers:  1,
	}

	deps, cleanup, err := buildDependencies(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = cleanup(context.Background()) }()

	if deps.Exporter == nil {
		t.Fatal("expected exporter to be configured")
	}
}

func TestBuildDependenciesUnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store = "sqlite"

	if _, _, err := buildDependencies(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestNewHandlerServesRoutes(t *testing.T) {
	deps, cleanup, err := buildDependencies(context.Background(), testConfig(), quietLogger())
	if err != nil {
		t.Fatalf("build dependencies: %v", err)
	}
	defer func() { _ = cleanup(context.Background()) }()

	handler := newHandler(deps, quietLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("ping: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "minitweet_http_request_duration_seconds") {
		t.Fatal("expected request histogram in metrics output")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tweet", strings.NewReader(`{"tweet":"x"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous tweet got %d", rec.Code)
	}
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error without a command")
	}
	if err := Run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestServeRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""

	if err := serve(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected validation error without a secret")
	}
}
