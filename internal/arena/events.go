package arena

import "github.com/agentfight/arena/internal/domain"

// Pub/sub channels the orchestrator publishes on. The websocket hub
// subscribes to the same names.
const (
	ChannelMatch = "arena:match"
	ChannelFight = "arena:fight"

	// StreamEvents mirrors durable lifecycle events for replay after a
	// reconnect or restart.
	StreamEvents = "arena:stream"
)

// Event types carried in the envelope.
const (
	EventNewMatch      = "new_match"
	EventPhaseChange   = "phase_change"
	EventCountdownTick = "countdown_tick"
	EventBetPlaced     = "bet_placed"
	EventFightEvent    = "fight_event"
	EventFightTick     = "fight_tick"
	EventMatchResult   = "match_result"
)

// Event is the envelope every spectator-facing message uses.
type Event struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// MatchView is the spectator-facing projection of a match, embedded in
// lifecycle events and returned by the read API.
type MatchView struct {
	ID         string                 `json:"id"`
	Phase      domain.MatchPhase      `json:"phase"`
	FighterA   domain.FighterSnapshot `json:"fighter_a"`
	FighterB   domain.FighterSnapshot `json:"fighter_b"`
	PoolA      float64                `json:"pool_a"`
	PoolB      float64                `json:"pool_b"`
	TotalPool  float64                `json:"total_pool"`
	OddsA      float64                `json:"odds_a"`
	OddsB      float64                `json:"odds_b"`
	PoolMin    float64                `json:"pool_minimum"`
	PoolMet    bool                   `json:"pool_met"`
	Extensions int                    `json:"extensions"`
	EndsAt     int64                  `json:"ends_at,omitempty"`
	BetCount   int                    `json:"bet_count"`
	Result     *domain.MatchResult    `json:"result,omitempty"`
}

// View projects a match snapshot for spectators.
func View(m domain.Match) MatchView {
	v := MatchView{
		ID:         m.ID,
		Phase:      m.Phase,
		FighterA:   m.FighterA,
		FighterB:   m.FighterB,
		PoolA:      m.PoolA,
		PoolB:      m.PoolB,
		TotalPool:  m.TotalPool,
		OddsA:      m.OddsA,
		OddsB:      m.OddsB,
		PoolMin:    m.PoolMinimum,
		PoolMet:    m.PoolMet,
		Extensions: m.Extensions,
		BetCount:   len(m.Bets),
		Result:     m.Result,
	}
	if !m.PhaseEndsAt.IsZero() {
		v.EndsAt = m.PhaseEndsAt.Unix()
	}
	return v
}
