package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/repositories"
	"github.com/minitweet/backend/internal/timeline"
)

const maxBodyBytes = 1 << 20

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error onto its HTTP status.
func respondServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *timeline.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondError(ctx, w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, repositories.ErrConflict):
		respondError(ctx, w, http.StatusConflict, "already exists")
	default:
		logging.FromContext(ctx).Error("service call failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// respondEmpty writes a 200 with no body, matching the write endpoints' contract.
func respondEmpty(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

func requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
	}
	return userID, ok
}
