package domain

import "time"

// ChainErrorCode classifies a failure from the chain registrar. Codes are
// stable strings so they can be persisted and surfaced to operators verbatim.
type ChainErrorCode string

const (
	ChainDisabled         ChainErrorCode = "DISABLED"
	ChainInsufficientFunds ChainErrorCode = "INSUFFICIENT_FUNDS"
	ChainUnauthorized     ChainErrorCode = "UNAUTHORIZED_OPERATOR"
	ChainNonceConflict    ChainErrorCode = "NONCE_CONFLICT"
	ChainMatchExists      ChainErrorCode = "MATCH_EXISTS"
	ChainNetworkTimeout   ChainErrorCode = "NETWORK_TIMEOUT"
	ChainRateLimited      ChainErrorCode = "RPC_RATE_LIMIT"
	ChainUnavailable      ChainErrorCode = "RPC_UNAVAILABLE"
	ChainRevert           ChainErrorCode = "EVM_REVERT"
	ChainIDMismatch       ChainErrorCode = "CHAIN_ID_MISMATCH"
	ChainUnknown          ChainErrorCode = "CHAIN_ERROR"
)

// Retryable reports whether an operation that failed with this code may be
// attempted again. All other codes are terminal for the current attempt.
func (c ChainErrorCode) Retryable() bool {
	switch c {
	case ChainNetworkTimeout, ChainRateLimited, ChainUnavailable, ChainNonceConflict, ChainUnknown:
		return true
	}
	return false
}

// ChainError is a classified chain failure. It is carried inside TxOutcome
// rather than thrown across the registrar boundary so the orchestrator can
// make a control decision from the code alone.
type ChainError struct {
	Code   ChainErrorCode `json:"code"`
	Detail string         `json:"detail"`
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Detail
}

// TxOutcome is the structured result of a chain write operation.
type TxOutcome struct {
	OK       bool          `json:"ok"`
	TxHash   string        `json:"tx_hash,omitempty"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	Err      *ChainError   `json:"error,omitempty"`
}

// ChainStatus is the registrar's runtime status snapshot.
type ChainStatus struct {
	Enabled  bool   `json:"enabled"`
	ChainID  int64  `json:"chain_id"`
	Contract string `json:"contract"`
	Operator string `json:"operator"`
}
