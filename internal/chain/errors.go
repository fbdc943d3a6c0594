package chain

import (
	"context"
	"errors"
	"strings"

	"github.com/agentfight/arena/internal/domain"
)

// Classify maps a raw error from the RPC/signing stack to a stable
// ChainErrorCode. It is a pure function over the error text and type so the
// retry policy can be tested without a live node.
//
// Node implementations disagree on exact error strings, so matching is
// substring-based against the messages geth, erigon, and hosted RPC providers
// actually return.
func Classify(err error) domain.ChainErrorCode {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ChainNetworkTimeout
	}

	msg := strings.ToLower(err.Error())

	switch {
	case contains(msg, "insufficient funds", "insufficient balance"):
		return domain.ChainInsufficientFunds

	case contains(msg, "nonce too low", "nonce too high", "replacement transaction underpriced", "already known"):
		return domain.ChainNonceConflict

	case contains(msg, "match already exists", "match exists"):
		return domain.ChainMatchExists

	case contains(msg, "not operator", "not the operator", "caller is not", "unauthorized"):
		return domain.ChainUnauthorized

	case contains(msg, "execution reverted", "revert"):
		return domain.ChainRevert

	case contains(msg, "rate limit", "too many requests", "429"):
		return domain.ChainRateLimited

	case contains(msg, "connection refused", "no such host", "connection reset", "eof", "502", "503"):
		return domain.ChainUnavailable

	case contains(msg, "timeout", "deadline exceeded", "context canceled"):
		return domain.ChainNetworkTimeout

	case contains(msg, "chain id mismatch", "wrong chain"):
		return domain.ChainIDMismatch
	}

	return domain.ChainUnknown
}

func contains(msg string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// classified wraps err into a *domain.ChainError with its classification.
func classified(err error) *domain.ChainError {
	return &domain.ChainError{Code: Classify(err), Detail: err.Error()}
}
