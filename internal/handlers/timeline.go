package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/minitweet/backend/internal/archive"
	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/models"
)

// TimelineHandler serves aggregated timelines and export requests.
type TimelineHandler struct {
	Timeline TimelineService
	Exporter TimelineExporter
}

// ForUser handles GET /timeline/{id} requests.
func (h TimelineHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.PathValue("id"))
	if userID == "" {
		respondError(r.Context(), w, http.StatusBadRequest, "user id is required")
		return
	}
	h.render(w, r, userID)
}

// Own handles GET /timeline for the authenticated user.
func (h TimelineHandler) Own(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(r.Context(), w)
	if !ok {
		return
	}
	h.render(w, r, userID)
}

// Export handles POST /timeline/export by queueing an archive job.
func (h TimelineHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	if h.Exporter == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "timeline export is not configured")
		return
	}

	if err := h.Exporter.Enqueue(ctx, userID); err != nil {
		if errors.Is(err, archive.ErrUnavailable) {
			logging.FromContext(ctx).Warn("timeline export rejected", "error", err)
			respondError(ctx, w, http.StatusServiceUnavailable, "timeline export is busy, please try again later")
			return
		}
		respondServiceError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h TimelineHandler) render(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	if h.Timeline == nil {
		logging.FromContext(ctx).Error("timeline service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "timeline services unavailable")
		return
	}

	tl, err := h.Timeline.Get(ctx, userID)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	if tl.Entries == nil {
		tl.Entries = []models.TimelineEntry{}
	}
	respondJSON(ctx, w, http.StatusOK, tl)
}
