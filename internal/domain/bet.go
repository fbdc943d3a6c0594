package domain

import "time"

// Bet is a single accepted wager. Immutable once accepted. Bets are
// deduplicated by TxHash when present, otherwise by bettor address.
type Bet struct {
	ID      string    `json:"id"`
	MatchID string    `json:"match_id"`
	Side    Side      `json:"side"`
	Amount  float64   `json:"amount"`
	Address string    `json:"address"`
	TxHash  string    `json:"tx_hash,omitempty"`
	PlacedAt time.Time `json:"placed_at"`
}
