// Package betting tracks wagers against the current match: per-side pools,
// odds, replay-safe deduplication and the funding threshold that gates the
// betting → fighting transition.
package betting

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfight/arena/internal/domain"
)

// EvenOdds is the payout multiplier reported for both sides until each side
// has at least one bet.
const EvenOdds = 2.0

// Ledger records the accepted bets for one match. It is safe for concurrent
// use: the HTTP bet endpoint records while the orchestrator's countdown reads
// totals.
type Ledger struct {
	mu sync.Mutex

	matchID string
	minimum float64
	open    bool

	bets   []domain.Bet
	poolA  float64
	poolB  float64
	byHash map[string]bool
	byAddr map[string]bool

	met         bool
	onThreshold func()
}

// NewLedger creates a Ledger for the given match. onThreshold is invoked
// exactly once, on the goroutine that records the crossing bet, the first
// time the combined pool reaches minimum. It may be nil.
func NewLedger(matchID string, minimum float64, onThreshold func()) *Ledger {
	return &Ledger{
		matchID:     matchID,
		minimum:     minimum,
		open:        true,
		byHash:      make(map[string]bool),
		byAddr:      make(map[string]bool),
		onThreshold: onThreshold,
	}
}

// RecordBet validates and records a wager. It is intentionally lenient toward
// replays: duplicate transaction hashes, duplicate hash-less addresses,
// invalid sides, non-positive or non-finite amounts and bets outside the
// betting window all return accepted=false rather than an error.
func (l *Ledger) RecordBet(side domain.Side, amount float64, address, txHash string) (domain.Bet, bool) {
	if !side.Valid() {
		return domain.Bet{}, false
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.Bet{}, false
	}
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return domain.Bet{}, false
	}
	txHash = strings.ToLower(strings.TrimSpace(txHash))

	l.mu.Lock()
	if !l.open {
		l.mu.Unlock()
		return domain.Bet{}, false
	}

	// Dedupe by tx hash when present, otherwise by address, so repeated
	// submissions never double-count.
	if txHash != "" {
		if l.byHash[txHash] {
			l.mu.Unlock()
			return domain.Bet{}, false
		}
		l.byHash[txHash] = true
	} else {
		if l.byAddr[address] {
			l.mu.Unlock()
			return domain.Bet{}, false
		}
		l.byAddr[address] = true
	}

	bet := domain.Bet{
		ID:       uuid.NewString(),
		MatchID:  l.matchID,
		Side:     side,
		Amount:   amount,
		Address:  address,
		TxHash:   txHash,
		PlacedAt: time.Now().UTC(),
	}
	l.bets = append(l.bets, bet)
	if side == domain.SideA {
		l.poolA += amount
	} else {
		l.poolB += amount
	}

	crossed := false
	if !l.met && l.poolA+l.poolB >= l.minimum {
		l.met = true
		crossed = true
	}
	cb := l.onThreshold
	l.mu.Unlock()

	if crossed && cb != nil {
		cb()
	}
	return bet, true
}

// Close stops accepting bets. Idempotent.
func (l *Ledger) Close() {
	l.mu.Lock()
	l.open = false
	l.mu.Unlock()
}

// Totals returns the per-side and combined pools.
func (l *Ledger) Totals() (poolA, poolB, total float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.poolA, l.poolB, l.poolA + l.poolB
}

// Odds returns the payout multiplier per side: totalPool / sidePool, defined
// only once both sides have at least one bet; otherwise both sides read as
// the even default.
func (l *Ledger) Odds() (oddsA, oddsB float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.poolA <= 0 || l.poolB <= 0 {
		return EvenOdds, EvenOdds
	}
	total := l.poolA + l.poolB
	return total / l.poolA, total / l.poolB
}

// PoolMet reports whether the funding threshold has been reached.
func (l *Ledger) PoolMet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.met
}

// Bets returns a copy of the accepted bets in acceptance order.
func (l *Ledger) Bets() []domain.Bet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Bet(nil), l.bets...)
}

// Count returns the number of accepted bets.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bets)
}

// Restore replays previously persisted bets into a fresh ledger, re-applying
// the same deduplication rules. Used by the orchestrator's restart-restore
// path.
func (l *Ledger) Restore(bets []domain.Bet) int {
	accepted := 0
	for _, b := range bets {
		if _, ok := l.RecordBet(b.Side, b.Amount, b.Address, b.TxHash); ok {
			accepted++
		}
	}
	return accepted
}
