// Package roster selects the two fighters for the next match: real
// registered agents when available, synthetic house fighters when the
// permissive policy allows it.
package roster

import "github.com/agentfight/arena/internal/domain"

// SyntheticRoster returns the fixed fallback roster used under the permissive
// selection policy. It is built once at process start and passed into the
// Selector; nothing reads it from global state.
func SyntheticRoster() []domain.FighterSnapshot {
	return []domain.FighterSnapshot{
		{
			AgentID:     "synthetic-razor",
			Name:        "Razor",
			Avatar:      "razor.png",
			PowerRating: 72,
			Strategy:    domain.StrategyAggressive,
			Equipment: domain.EquipmentBonus{
				Damage:     8,
				CritChance: 0.05,
				ArmorPen:   0.10,
			},
		},
		{
			AgentID:     "synthetic-bulwark",
			Name:        "Bulwark",
			Avatar:      "bulwark.png",
			PowerRating: 68,
			Strategy:    domain.StrategyDefensive,
			Equipment: domain.EquipmentBonus{
				Defense: 12,
				Thorns:  3,
				MaxHP:   40,
			},
		},
		{
			AgentID:     "synthetic-vex",
			Name:        "Vex",
			Avatar:      "vex.png",
			PowerRating: 70,
			Strategy:    domain.StrategyBalanced,
			Equipment: domain.EquipmentBonus{
				Speed:     6,
				Dodge:     0.08,
				Lifesteal: 0.06,
			},
		},
		{
			AgentID:     "synthetic-ember",
			Name:        "Ember",
			Avatar:      "ember.png",
			PowerRating: 66,
			Strategy:    domain.StrategyAggressive,
			Equipment: domain.EquipmentBonus{
				Burn:       2,
				Damage:     5,
				CritDamage: 0.25,
			},
		},
	}
}
