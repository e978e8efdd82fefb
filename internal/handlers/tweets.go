package handlers

import (
	"net/http"

	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/metrics"
)

// TweetHandler accepts new posts from the authenticated user.
type TweetHandler struct {
	Timeline TimelineService
}

// Post handles POST /tweet requests.
func (h TweetHandler) Post(w http.ResponseWriter, r *http.Request) {
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

	var req tweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid tweet payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tweet == nil {
		respondError(ctx, w, http.StatusBadRequest, "tweet is required")
		return
	}

	tweet, err := h.Timeline.PostMessage(ctx, userID, *req.Tweet)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}

	metrics.TweetsPosted.Inc()
	logger.Debug("tweet posted", "tweetId", tweet.ID)
	respondEmpty(w)
}

// tweetRequest distinguishes a missing field from empty text, which is allowed.
type tweetRequest struct {
	Tweet *string `json:"tweet"`
}
