package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// AgentHandler serves the competitor roster endpoints.
type AgentHandler struct {
	agents domain.AgentStore
	logger *slog.Logger
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(agents domain.AgentStore, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		agents: agents,
		logger: logger,
	}
}

// agentView is the public projection of an agent. The wallet address is
// omitted from list output.
type agentView struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Avatar       string               `json:"avatar,omitempty"`
	PowerRating  float64              `json:"power_rating"`
	Strategy     domain.FightStrategy `json:"strategy"`
	Wins         int                  `json:"wins"`
	Losses       int                  `json:"losses"`
	Earnings     float64              `json:"earnings"`
	Eligible     bool                 `json:"eligible"`
	RegisteredAt time.Time            `json:"registered_at"`
}

func viewAgent(a domain.Agent) agentView {
	return agentView{
		ID:           a.ID,
		Name:         a.Name,
		Avatar:       a.Avatar,
		PowerRating:  a.PowerRating,
		Strategy:     a.Strategy,
		Wins:         a.Wins,
		Losses:       a.Losses,
		Earnings:     a.Earnings,
		Eligible:     a.Eligible,
		RegisteredAt: a.RegisteredAt,
	}
}

// listAgentsResponse wraps the list endpoint output.
type listAgentsResponse struct {
	Agents []agentView `json:"agents"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListAgents returns registered competitors.
// GET /api/agents?eligible=true&limit=50&offset=0
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	var (
		agents []domain.Agent
		err    error
	)
	opts := parseListOpts(r)

	if r.URL.Query().Get("eligible") == "true" {
		agents, err = h.agents.ListEligible(r.Context())
	} else {
		agents, err = h.agents.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list agents failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}

	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, viewAgent(a))
	}

	writeJSON(w, http.StatusOK, listAgentsResponse{
		Agents: views,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetAgent returns a single competitor by its ID, equipment included.
// GET /api/agents/{id}
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}

	agent, err := h.agents.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get agent failed",
			slog.String("agent_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get agent")
		return
	}

	view := viewAgent(agent)
	writeJSON(w, http.StatusOK, struct {
		agentView
		Equipment domain.EquipmentBonus `json:"equipment"`
	}{view, agent.Equipment})
}
