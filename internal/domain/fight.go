package domain

// FightState is the mutable combat state of one fighter for one match. It is
// created when the fight engine starts and discarded once the result is
// finalised.
type FightState struct {
	HP       float64 `json:"hp"`
	MaxHP    float64 `json:"max_hp"`
	Score    int     `json:"score"`
	Hits     int     `json:"hits"`
	Crits    int     `json:"crits"`
	Dodges   int     `json:"dodges"`
	Combo    int     `json:"combo"`
	MaxCombo int     `json:"max_combo"`

	// Special meter charges on landed hits and unlocks the special attack at
	// full charge.
	SpecialMeter float64 `json:"special_meter"`
	SpecialReady bool    `json:"special_ready"`

	Defending bool `json:"defending"`

	// Status effects with the tick at which they expire.
	StunnedUntil int `json:"stunned_until,omitempty"`
	BurningUntil int `json:"burning_until,omitempty"`
	SlowedUntil  int `json:"slowed_until,omitempty"`

	LastHitTick    int `json:"-"`
	LastAttackTick int `json:"-"`
}

// FightAction enumerates the actions a fighter can take on a tick.
type FightAction string

const (
	ActionAttack     FightAction = "attack"
	ActionHeavy      FightAction = "heavy"
	ActionSpecial    FightAction = "special"
	ActionDefend     FightAction = "defend"
	ActionReposition FightAction = "reposition"
)

// FightEvent is one notable combat action, emitted to spectators as it
// happens.
type FightEvent struct {
	Tick     int         `json:"tick"`
	Round    int         `json:"round"`
	Actor    Side        `json:"actor"`
	Action   FightAction `json:"action"`
	Damage   float64     `json:"damage,omitempty"`
	Crit     bool        `json:"crit,omitempty"`
	Dodged   bool        `json:"dodged,omitempty"`
	Blocked  bool        `json:"blocked,omitempty"`
	Combo    int         `json:"combo,omitempty"`
	Text     string      `json:"text"`
}

// TickSnapshot is the full combat picture at one tick, streamed to viewers so
// no server-side reinterpretation is needed.
type TickSnapshot struct {
	MatchID string     `json:"match_id"`
	Tick    int        `json:"tick"`
	Round   int        `json:"round"`
	StateA  FightState `json:"fighter_a"`
	StateB  FightState `json:"fighter_b"`
}
