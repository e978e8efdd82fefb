package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/models"
	"github.com/minitweet/backend/internal/repositories"
	"github.com/minitweet/backend/internal/timeline"
)

const testTokenSecret = "handler-secret"

type testEnv struct {
	store  *repositories.MemoryStore
	hasher auth.BcryptHasher
	auth   *auth.Service
	mux    *http.ServeMux
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()

	store := repositories.NewMemoryStore()
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	authSvc := auth.NewService(store.Users(), hasher, auth.NewTokenIssuer([]byte(testTokenSecret), time.Hour))

	deps := Dependencies{
		Users:     store.Users(),
		Passwords: hasher,
		Auth:      authSvc,
		Timeline:  timeline.NewService(store.Follows(), store.Tweets()),
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	return &testEnv{store: store, hasher: hasher, auth: authSvc, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// signUp creates an account through the API and returns its id.
func (e *testEnv) signUp(t *testing.T, name, email, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/sign-up", "", map[string]string{
		"name": name, "email": email, "profile": name + " profile", "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-up %s: expected 200 got %d: %s", email, rec.Code, rec.Body.String())
	}

	var resp userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sign-up response: %v", err)
	}
	return resp.ID
}

func (e *testEnv) login(t *testing.T, email, password string) loginResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200 got %d: %s", email, rec.Code, rec.Body.String())
	}

	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func decodeTimeline(t *testing.T, rec *httptest.ResponseRecorder) models.Timeline {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var tl models.Timeline
	if err := json.NewDecoder(rec.Body).Decode(&tl); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	return tl
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type failingUsers struct{ err error }

func (f failingUsers) Create(context.Context, models.User) error { return f.err }

func (f failingUsers) FindByID(context.Context, string) (models.User, error) {
	return models.User{}, f.err
}
