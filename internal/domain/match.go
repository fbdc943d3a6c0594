package domain

import "time"

// MatchPhase represents the lifecycle state of a match.
type MatchPhase string

const (
	PhaseIdle     MatchPhase = "idle"
	PhaseWaiting  MatchPhase = "waiting"
	PhaseBetting  MatchPhase = "betting"
	PhaseFighting MatchPhase = "fighting"
	PhaseResult   MatchPhase = "result"
	PhaseCooldown MatchPhase = "cooldown"
)

// Side identifies one of the two fighters in a match.
type Side string

const (
	SideA Side = "1"
	SideB Side = "2"
)

// Valid reports whether s is one of the two recognised sides.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Match is the unit of orchestration. Exactly one match is current at a time;
// all mutation happens on the orchestrator goroutine and other components only
// ever see copies produced by Snapshot.
type Match struct {
	ID        string
	Phase     MatchPhase
	FighterA  FighterSnapshot
	FighterB  FighterSnapshot
	Bets      []Bet
	PoolA     float64
	PoolB     float64
	TotalPool float64
	OddsA     float64
	OddsB     float64

	// PoolMinimum is the funding threshold that gates the betting → fighting
	// transition. PoolMet latches once the threshold is first crossed.
	PoolMinimum float64
	PoolMet     bool
	Extensions  int

	PhaseStartedAt time.Time
	PhaseEndsAt    time.Time

	// On-chain linkage.
	ChainRegistered bool
	ChainTxHash     string

	Seed   int64
	Result *MatchResult

	CreatedAt time.Time
}

// Snapshot returns a deep copy of the match safe to hand to readers outside
// the orchestrator goroutine.
func (m *Match) Snapshot() Match {
	cp := *m
	cp.Bets = append([]Bet(nil), m.Bets...)
	if m.Result != nil {
		r := *m.Result
		cp.Result = &r
	}
	return cp
}

// ResultMethod describes how a match was decided.
type ResultMethod string

const (
	MethodKO       ResultMethod = "KO"
	MethodDecision ResultMethod = "Decision"
)

// FighterSummary is the final combat line for one fighter.
type FighterSummary struct {
	Name     string  `json:"name"`
	HP       float64 `json:"hp"`
	MaxHP    float64 `json:"max_hp"`
	Score    int     `json:"score"`
	Hits     int     `json:"hits"`
	Crits    int     `json:"crits"`
	Dodges   int     `json:"dodges"`
	MaxCombo int     `json:"max_combo"`
}

// MatchResult is created once at fight end and is immutable thereafter.
type MatchResult struct {
	MatchID    string         `json:"match_id"`
	Winner     Side           `json:"winner"`
	WinnerName string         `json:"winner_name"`
	Method     ResultMethod   `json:"method"`
	Duration   time.Duration  `json:"duration"`
	Ticks      int            `json:"ticks"`
	Reward     float64        `json:"reward"`
	Seed       int64          `json:"seed"`
	FighterA   FighterSummary `json:"fighter_a"`
	FighterB   FighterSummary `json:"fighter_b"`
	DecidedAt  time.Time      `json:"decided_at"`
}
