package handlers

import (
	"net/http"
	"strings"

	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/metrics"
)

// FollowHandler edits the authenticated user's follow graph.
type FollowHandler struct {
	Timeline TimelineService
}

// Follow handles POST /follow requests.
func (h FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "follow")
}

// Unfollow handles POST /unfollow requests.
func (h FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "unfollow")
}

func (h FollowHandler) change(w http.ResponseWriter, r *http.Request, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	if h.Timeline == nil {
		logger.Error("timeline service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "timeline services unavailable")
		return
	}

	var req followRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid follow payload", "action", action, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := strings.TrimSpace(req.target(action))
	if target == "" {
		respondError(ctx, w, http.StatusBadRequest, action+" is required")
		return
	}

	var err error
	if action == "follow" {
		err = h.Timeline.Follow(ctx, userID, target)
	} else {
		err = h.Timeline.Unfollow(ctx, userID, target)
	}
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}

	metrics.FollowChanges.WithLabelValues(action).Inc()
	logger.Debug("follow graph changed", "action", action, "target", target)
	respondEmpty(w)
}

type followRequest struct {
	Follow   string `json:"follow"`
	Unfollow string `json:"unfollow"`
}

func (req followRequest) target(action string) string {
	if action == "follow" {
		return req.Follow
	}
	return req.Unfollow
}
