package engine

import "github.com/agentfight/arena/internal/domain"

// Tuning constants for derived combat stats. Percent-style equipment bonuses
// (crit chance, dodge, lifesteal, armor pen, reflect) are fractions in [0,1];
// flat bonuses (damage, defense, thorns, burn, max HP) are points.
const (
	baseMaxHP      = 200.0
	hpPerPower     = 2.0
	baseDamagePts  = 8.0
	damagePerPower = 0.15

	baseCritChance = 0.10
	maxCritChance  = 0.60
	baseCritMult   = 1.5

	baseDodgeChance = 0.05
	maxDodgeChance  = 0.35

	// baseCooldownTicks is how many ticks a fighter waits between actions
	// before speed/attack-speed bonuses are applied.
	baseCooldownTicks = 3
	minCooldownTicks  = 1

	// defenseSoftCap shapes the diminishing returns curve
	// reduction = defense / (defense + defenseSoftCap), capped below.
	defenseSoftCap     = 50.0
	maxDamageReduction = 0.60

	maxLifesteal = 0.50
	maxArmorPen  = 0.80
)

// combatStats is the per-fight derived stat block, computed once at fight
// start from the fighter's power rating and equipment bonus map.
type combatStats struct {
	maxHP          float64
	baseDamage     float64
	cooldownTicks  int
	critChance     float64
	critMult       float64
	dodgeChance    float64
	defense        float64
	armorPen       float64
	lifesteal      float64
	lowHPBonus     float64
	thorns         float64
	reflect        float64
	burn           float64
	slow           float64
}

// deriveStats computes a fighter's combat stats from its snapshot.
func deriveStats(f domain.FighterSnapshot) combatStats {
	eq := f.Equipment

	cooldown := baseCooldownTicks - int(eq.AttackSpeed/10) - int(eq.Speed/15)
	if cooldown < minCooldownTicks {
		cooldown = minCooldownTicks
	}

	return combatStats{
		maxHP:         baseMaxHP + f.PowerRating*hpPerPower + eq.MaxHP,
		baseDamage:    baseDamagePts + f.PowerRating*damagePerPower + eq.Damage,
		cooldownTicks: cooldown,
		critChance:    clamp(baseCritChance+eq.CritChance, 0, maxCritChance),
		critMult:      baseCritMult + eq.CritDamage,
		dodgeChance:   clamp(baseDodgeChance+eq.Dodge, 0, maxDodgeChance),
		defense:       eq.Defense,
		armorPen:      clamp(eq.ArmorPen, 0, maxArmorPen),
		lifesteal:     clamp(eq.Lifesteal, 0, maxLifesteal),
		lowHPBonus:    eq.LowHPBonus,
		thorns:        eq.Thorns,
		reflect:       eq.Reflect,
		burn:          eq.Burn,
		slow:          eq.Slow,
	}
}

// reductionAgainst returns the damage reduction fraction this stat block's
// defense provides against an attacker with the given armor penetration.
func (s combatStats) reductionAgainst(armorPen float64) float64 {
	if s.defense <= 0 {
		return 0
	}
	reduction := s.defense / (s.defense + defenseSoftCap)
	if reduction > maxDamageReduction {
		reduction = maxDamageReduction
	}
	return reduction * (1 - armorPen)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
