package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/agentfight/arena/internal/arena"
	"github.com/agentfight/arena/internal/domain"
)

// MatchSource is the read surface the match handler needs from the
// orchestrator.
type MatchSource interface {
	CurrentMatch() (domain.Match, error)
	Phase() domain.MatchPhase
	WaitingReason() string
}

// MatchHandler serves the current-match and history endpoints.
type MatchHandler struct {
	source  MatchSource
	history domain.HistoryStore // may be nil when Postgres is not configured
	logger  *slog.Logger
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(source MatchSource, history domain.HistoryStore, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		source:  source,
		history: history,
		logger:  logger,
	}
}

// GetCurrent returns the spectator projection of the current match. Between
// matches it returns the phase and, while parked, the waiting reason, so
// clients can always render something.
// GET /api/match/current
func (h *MatchHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	m, err := h.source.CurrentMatch()
	if err != nil {
		if errors.Is(err, domain.ErrNoCurrentMatch) {
			writeJSON(w, http.StatusOK, map[string]any{
				"phase":  h.source.Phase(),
				"reason": h.source.WaitingReason(),
			})
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: current match failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load current match")
		return
	}

	writeJSON(w, http.StatusOK, arena.View(m))
}

// listHistoryResponse wraps the history endpoint output.
type listHistoryResponse struct {
	Results []domain.MatchResult `json:"results"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// ListHistory returns settled match results, newest first.
// GET /api/match/history?limit=50&offset=0
func (h *MatchHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, listHistoryResponse{Results: []domain.MatchResult{}})
		return
	}

	opts := parseListOpts(r)
	results, err := h.history.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list match history")
		return
	}
	if results == nil {
		results = []domain.MatchResult{}
	}

	writeJSON(w, http.StatusOK, listHistoryResponse{
		Results: results,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
