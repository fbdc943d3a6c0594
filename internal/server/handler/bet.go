package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agentfight/arena/internal/domain"
)

// BetPlacer is the write surface the bet handler needs from the orchestrator.
type BetPlacer interface {
	PlaceBet(ctx context.Context, side domain.Side, amount float64, address, txHash string) (domain.Bet, error)
}

// BetHandler serves the wager endpoint.
type BetHandler struct {
	placer BetPlacer
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(placer BetPlacer, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		placer: placer,
		logger: logger,
	}
}

// placeBetRequest is the JSON body for POST /api/bets.
type placeBetRequest struct {
	Side    domain.Side `json:"side"`
	Amount  float64     `json:"amount"`
	Address string      `json:"address"`
	TxHash  string      `json:"tx_hash"`
}

// PlaceBet accepts a wager on the current match. Bets are only accepted
// during the betting phase; outside it the endpoint answers 409.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if !req.Side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be 1 or 2")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	bet, err := h.placer.PlaceBet(r.Context(), req.Side, req.Amount, req.Address, req.TxHash)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoCurrentMatch), errors.Is(err, domain.ErrBettingClosed):
			writeError(w, http.StatusConflict, "betting is closed")
		case errors.Is(err, domain.ErrInvalidBet):
			writeError(w, http.StatusBadRequest, "invalid bet parameters")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place bet failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place bet")
		}
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}
