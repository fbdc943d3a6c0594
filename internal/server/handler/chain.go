package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agentfight/arena/internal/domain"
)

// ChainStatusSource exposes the registrar's runtime status.
type ChainStatusSource interface {
	Status() domain.ChainStatus
}

// ContractViews exposes the registrar's read-only contract calls.
type ContractViews interface {
	Operator(ctx context.Context) (common.Address, error)
	Owner(ctx context.Context) (common.Address, error)
}

// ChainHandler serves the on-chain registrar status endpoint.
type ChainHandler struct {
	source ChainStatusSource
	views  ContractViews
	logger *slog.Logger
}

// NewChainHandler creates a ChainHandler. views may be nil; the status
// response then omits the contract's own operator and owner.
func NewChainHandler(source ChainStatusSource, views ContractViews, logger *slog.Logger) *ChainHandler {
	return &ChainHandler{
		source: source,
		views:  views,
		logger: logger,
	}
}

// GetStatus reports whether on-chain settlement is active and which contract
// and operator it uses. When the chain is enabled the contract's own operator
// and owner views are read back so a mismatch against the configured signer
// is visible to operators.
// GET /api/chain/status
func (h *ChainHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.source.Status()
	resp := map[string]any{
		"enabled":  st.Enabled,
		"chain_id": st.ChainID,
		"contract": st.Contract,
		"operator": st.Operator,
	}

	if st.Enabled && h.views != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if addr, err := h.views.Operator(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "handler: contract operator read failed",
				slog.String("error", err.Error()),
			)
		} else {
			resp["contract_operator"] = addr.Hex()
		}
		if addr, err := h.views.Owner(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "handler: contract owner read failed",
				slog.String("error", err.Error()),
			)
		} else {
			resp["contract_owner"] = addr.Hex()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
