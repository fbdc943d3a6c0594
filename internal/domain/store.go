package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MatchStore persists the current/live match record. The orchestrator treats
// every call as best-effort: failures are logged and never block phase
// progress.
type MatchStore interface {
	Upsert(ctx context.Context, m Match) error
	GetByID(ctx context.Context, id string) (Match, error)
	// GetLive returns matches left in the betting or fighting phase, used by
	// the restore step after a process restart.
	GetLive(ctx context.Context) ([]Match, error)
	SetPhase(ctx context.Context, id string, phase MatchPhase) error
}

// HistoryStore persists finalised match results.
type HistoryStore interface {
	Add(ctx context.Context, r MatchResult) error
	List(ctx context.Context, opts ListOpts) ([]MatchResult, error)
	// ListBefore returns results decided strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]MatchResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AgentStore persists registered competitors.
type AgentStore interface {
	Upsert(ctx context.Context, a Agent) error
	GetByID(ctx context.Context, id string) (Agent, error)
	ListEligible(ctx context.Context) ([]Agent, error)
	List(ctx context.Context, opts ListOpts) ([]Agent, error)
	// RecordOutcome applies a win/loss and earnings delta to an agent.
	RecordOutcome(ctx context.Context, id string, won bool, earnings float64) error
}

// BetStore persists accepted bets.
type BetStore interface {
	Add(ctx context.Context, b Bet) error
	ListByMatch(ctx context.Context, matchID string) ([]Bet, error)
	ListBefore(ctx context.Context, before time.Time) ([]Bet, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ActivityEntry is one row of the append-only activity feed.
type ActivityEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// ActivityStore persists the activity feed shown to spectators and used as an
// audit trail for chain operations and archival runs.
type ActivityStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]ActivityEntry, error)
}
