package domain

import "time"

// FightStrategy is the coarse behaviour tag a fighter carries into combat.
type FightStrategy string

const (
	StrategyAggressive FightStrategy = "aggressive"
	StrategyDefensive  FightStrategy = "defensive"
	StrategyBalanced   FightStrategy = "balanced"
)

// EquipmentBonus is the equipment-derived stat bonus map for a fighter. All
// values are additive percentages or flat points depending on the stat; the
// fight engine interprets them when deriving combat stats.
type EquipmentBonus struct {
	Damage      float64 `json:"damage"`
	Defense     float64 `json:"defense"`
	Speed       float64 `json:"speed"`
	CritChance  float64 `json:"crit_chance"`
	CritDamage  float64 `json:"crit_damage"`
	Lifesteal   float64 `json:"lifesteal"`
	Dodge       float64 `json:"dodge"`
	AttackSpeed float64 `json:"attack_speed"`
	Burn        float64 `json:"burn"`
	ArmorPen    float64 `json:"armor_pen"`
	LowHPBonus  float64 `json:"low_hp_bonus"`
	Thorns      float64 `json:"thorns"`
	Reflect     float64 `json:"reflect"`
	Slow        float64 `json:"slow"`
	MaxHP       float64 `json:"max_hp"`
}

// FighterSnapshot is the immutable-for-the-match view of a fighter. It is
// created when fighters are selected and never mutated afterward; mutable
// combat state lives in FightState.
type FighterSnapshot struct {
	AgentID     string         `json:"agent_id"`
	Name        string         `json:"name"`
	Avatar      string         `json:"avatar"`
	PowerRating float64        `json:"power_rating"`
	Strategy    FightStrategy  `json:"strategy"`
	Equipment   EquipmentBonus `json:"equipment"`

	// Real is true for registered competitors and false for synthetic
	// fallback fighters.
	Real bool `json:"real"`
}

// Agent is a registered competitor as persisted by the agent store.
type Agent struct {
	ID           string
	Name         string
	Avatar       string
	Wallet       string
	PowerRating  float64
	Strategy     FightStrategy
	Equipment    EquipmentBonus
	Wins         int
	Losses       int
	Earnings     float64
	Eligible     bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// Snapshot freezes the agent into a FighterSnapshot for one match.
func (a Agent) Snapshot() FighterSnapshot {
	return FighterSnapshot{
		AgentID:     a.ID,
		Name:        a.Name,
		Avatar:      a.Avatar,
		PowerRating: a.PowerRating,
		Strategy:    a.Strategy,
		Equipment:   a.Equipment,
		Real:        true,
	}
}
