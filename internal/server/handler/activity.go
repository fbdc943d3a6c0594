package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// ActivityHandler serves the activity feed endpoint.
type ActivityHandler struct {
	activity domain.ActivityStore
	logger   *slog.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(activity domain.ActivityStore, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		logger:   logger,
	}
}

// activityView is the public projection of an activity entry.
type activityView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// ListActivity returns recent activity entries, newest first.
// GET /api/activity?limit=50&offset=0
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.activity.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list activity failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}

	views := make([]activityView, 0, len(entries))
	for _, e := range entries {
		views = append(views, activityView{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": views,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})
}
