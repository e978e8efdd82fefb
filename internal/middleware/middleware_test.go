package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/logging"
)

type stubVerifier map[string]string

func (s stubVerifier) Authenticate(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", auth.ErrUnauthenticated
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer   abc ":  "abc",
		"abc":            "abc",
		"Basic dXNlcjpw": "",
		"Bearer":         "Bearer",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := BearerToken(req); got != want {
			t.Fatalf("BearerToken(%q) = %q want %q", header, got, want)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	verifier := stubVerifier{"good": "user-1"}

	var gotUser string
	called := false
	handler := RequireAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUser, _ = auth.UserIDFromContext(r.Context())
	}))

	for _, header := range []string{"", "Bearer bad", "bad"} {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/tweet", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, rec.Code)
		}
		if called {
			t.Fatalf("header %q: handler must not run", header)
		}
	}

	for _, header := range []string{"Bearer good", "good"} {
		req := httptest.NewRequest(http.MethodPost, "/tweet", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("header %q: expected 200 got %d", header, rec.Code)
		}
		if gotUser != "user-1" {
			t.Fatalf("expected user-1 on context got %q", gotUser)
		}
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var sawRequestID string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRequestID = logging.RequestIDFromContext(r.Context())
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if sawRequestID == "" || rec.Header().Get(RequestIDHeader) != sawRequestID {
		t.Fatalf("expected request id header %q to match context %q", rec.Header().Get(RequestIDHeader), sawRequestID)
	}
	if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), `"status":500`) {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}

func TestRequestLoggerReusesIncomingRequestID(t *testing.T) {
	handler := RequestLogger(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestKeyedRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewKeyedRateLimiter(1, time.Minute, 2, time.Minute).WithNowFunc(func() time.Time { return now })

	if !limiter.Allow("login:1.1.1.1") || !limiter.Allow("login:1.1.1.1") {
		t.Fatal("expected burst of two to be allowed")
	}
	if limiter.Allow("login:1.1.1.1") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("login:2.2.2.2") {
		t.Fatal("expected other keys to be unaffected")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("login:1.1.1.1") {
		t.Fatal("expected token to refill after the window")
	}

	now = now.Add(2 * time.Minute)
	limiter.Allow("login:3.3.3.3")
	if got := limiter.Len(); got != 1 {
		t.Fatalf("expected idle visitors to be evicted, tracking %d", got)
	}
}
