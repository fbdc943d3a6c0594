// Package engine runs the deterministic tick-based combat simulation for one
// match. The engine owns both fighters' combat state for the duration of the
// fight and emits events and per-tick snapshots through callbacks; it never
// touches storage or transport itself.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// Combat tuning constants.
const (
	damageJitter      = 6.0 // random spread added to base damage
	minDamage         = 1.0 // floor applied after all reductions
	heavyMultiplier   = 1.4
	heavyCritBonus    = 0.10
	specialMultiplier = 2.5

	blockFactor    = 0.25 // damage fraction that passes a block
	blockStunTicks = 2

	lowHPThreshold = 0.30

	comboWindowTicks = 4
	meterPerHit      = 12.0
	meterCritBonus   = 8.0
	meterPerCombo    = 2.0
	meterFull        = 100.0

	burnDurationTicks = 5
	slowDurationTicks = 4

	roundRecoveryFrac = 0.20
)

// Config holds the fight timing parameters. A non-positive TickInterval runs
// the simulation without pacing, which the orchestrator never does but tests
// rely on.
type Config struct {
	Rounds        int
	TicksPerRound int
	PauseTicks    int
	TickInterval  time.Duration
}

// Callbacks receive the fight as it unfolds. Either may be nil. They are
// invoked synchronously on the engine goroutine, so they must not block.
type Callbacks struct {
	OnEvent func(domain.FightEvent)
	OnTick  func(domain.TickSnapshot)
}

// Engine simulates one fight between two fighters. Create with New, drive
// with Run; an Engine is single-use.
type Engine struct {
	matchID  string
	cfg      Config
	cb       Callbacks
	logger   *slog.Logger
	rng      *rand.Rand
	seed     int64

	fighterA domain.FighterSnapshot
	fighterB domain.FighterSnapshot
	statsA   combatStats
	statsB   combatStats
	stateA   domain.FightState
	stateB   domain.FightState

	tick    int
	round   int
	started time.Time

	abortOnce sync.Once
	abort     chan struct{}
}

// New creates an engine for one fight. seed makes the fight reproducible: two
// engines built from the same fighters, config and seed play out identically.
func New(matchID string, a, b domain.FighterSnapshot, cfg Config, seed int64, cb Callbacks, logger *slog.Logger) *Engine {
	statsA := deriveStats(a)
	statsB := deriveStats(b)

	return &Engine{
		matchID:  matchID,
		cfg:      cfg,
		cb:       cb,
		logger:   logger.With(slog.String("component", "engine"), slog.String("match_id", matchID)),
		rng:      rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
		seed:     seed,
		fighterA: a,
		fighterB: b,
		statsA:   statsA,
		statsB:   statsB,
		stateA:   freshState(statsA),
		stateB:   freshState(statsB),
		abort:    make(chan struct{}),
	}
}

// Abort forces the fight to terminate at the next tick boundary, finalising
// from the current state. Safe to call from any goroutine, idempotent.
func (e *Engine) Abort() {
	e.abortOnce.Do(func() { close(e.abort) })
}

// Run plays the fight to completion and returns the result. On abort or
// context cancellation it returns the result finalised from the state at the
// moment of interruption together with domain.ErrFightAborted.
func (e *Engine) Run(ctx context.Context) (domain.MatchResult, error) {
	e.started = time.Now().UTC()

	var ticker *time.Ticker
	if e.cfg.TickInterval > 0 {
		ticker = time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
	}

	e.logger.Info("fight started",
		slog.String("fighter_a", e.fighterA.Name),
		slog.String("fighter_b", e.fighterB.Name),
		slog.Int64("seed", e.seed),
	)

	for e.round = 1; e.round <= e.cfg.Rounds; e.round++ {
		for rt := 0; rt < e.cfg.TicksPerRound; rt++ {
			if err := e.pace(ctx, ticker); err != nil {
				return e.finalize(e.decide()), err
			}
			e.tick++

			e.applyBurns()
			if winner, ok := e.knockout(); ok {
				return e.finalize(winner, domain.MethodKO), nil
			}

			// Alternate initiative each tick so neither side has a
			// permanent first-mover advantage.
			first, second := domain.SideA, domain.SideB
			if e.tick%2 == 0 {
				first, second = second, first
			}
			e.act(first)
			if winner, ok := e.knockout(); ok {
				return e.finalize(winner, domain.MethodKO), nil
			}
			e.act(second)
			if winner, ok := e.knockout(); ok {
				return e.finalize(winner, domain.MethodKO), nil
			}

			e.emitTick()
		}

		if e.round < e.cfg.Rounds {
			if err := e.roundPause(ctx, ticker); err != nil {
				return e.finalize(e.decide()), err
			}
		}
	}

	return e.finalize(e.decide()), nil
}

// pace waits for the next tick boundary, or returns early on abort or
// cancellation.
func (e *Engine) pace(ctx context.Context, ticker *time.Ticker) error {
	if ticker == nil {
		select {
		case <-e.abort:
			return domain.ErrFightAborted
		case <-ctx.Done():
			return domain.ErrFightAborted
		default:
			return nil
		}
	}
	select {
	case <-e.abort:
		return domain.ErrFightAborted
	case <-ctx.Done():
		return domain.ErrFightAborted
	case <-ticker.C:
		return nil
	}
}

// roundPause applies between-round recovery and advances the pause ticks.
func (e *Engine) roundPause(ctx context.Context, ticker *time.Ticker) error {
	rest(&e.stateA, e.statsA)
	rest(&e.stateB, e.statsB)

	e.logger.Info("round complete",
		slog.Int("round", e.round),
		slog.Float64("hp_a", e.stateA.HP),
		slog.Float64("hp_b", e.stateB.HP),
	)

	for p := 0; p < e.cfg.PauseTicks; p++ {
		if err := e.pace(ctx, ticker); err != nil {
			return err
		}
		e.tick++
		e.emitTick()
	}
	return nil
}

// rest restores a fixed fraction of max HP and clears transient combat state
// between rounds. The special meter carries over.
func rest(st *domain.FightState, stats combatStats) {
	st.HP += stats.maxHP * roundRecoveryFrac
	if st.HP > stats.maxHP {
		st.HP = stats.maxHP
	}
	st.Combo = 0
	st.Defending = false
	st.StunnedUntil = 0
	st.BurningUntil = 0
	st.SlowedUntil = 0
}

// applyBurns drains HP from burning fighters. Burn magnitude is the
// opponent's burn stat, applied every tick until expiry.
func (e *Engine) applyBurns() {
	if e.stateA.BurningUntil > e.tick && e.statsB.burn > 0 {
		e.stateA.HP = maxf(0, e.stateA.HP-e.statsB.burn)
	}
	if e.stateB.BurningUntil > e.tick && e.statsA.burn > 0 {
		e.stateB.HP = maxf(0, e.stateB.HP-e.statsA.burn)
	}
}

// knockout reports whether either fighter is down. A simultaneous knockout
// goes to the higher score.
func (e *Engine) knockout() (domain.Side, bool) {
	downA := e.stateA.HP <= 0
	downB := e.stateB.HP <= 0
	switch {
	case downA && downB:
		if e.stateB.Score > e.stateA.Score {
			return domain.SideB, true
		}
		return domain.SideA, true
	case downA:
		return domain.SideB, true
	case downB:
		return domain.SideA, true
	}
	return "", false
}

// decide picks the winner when the clock runs out: higher HP, score as the
// tie-breaker.
func (e *Engine) decide() (domain.Side, domain.ResultMethod) {
	if winner, ok := e.knockout(); ok {
		return winner, domain.MethodKO
	}
	switch {
	case e.stateB.HP > e.stateA.HP:
		return domain.SideB, domain.MethodDecision
	case e.stateA.HP > e.stateB.HP:
		return domain.SideA, domain.MethodDecision
	case e.stateB.Score > e.stateA.Score:
		return domain.SideB, domain.MethodDecision
	default:
		return domain.SideA, domain.MethodDecision
	}
}

// act runs one fighter's turn for the current tick.
func (e *Engine) act(side domain.Side) {
	me, opp := e.states(side)
	ms, os := e.stats(side)
	name, oppName := e.names(side)

	if me.StunnedUntil > e.tick {
		return
	}

	cooldown := ms.cooldownTicks
	if me.SlowedUntil > e.tick {
		cooldown++
	}
	if e.tick-me.LastAttackTick < cooldown {
		return
	}

	// Taking any action drops the guard from a previous defend.
	me.Defending = false

	aggr := e.aggression(side, me, opp, ms)

	if me.SpecialReady && e.rng.Float64() < 0.4+aggr*0.4 {
		e.attack(side, me, opp, ms, os, name, oppName, domain.ActionSpecial)
		return
	}

	roll := e.rng.Float64()
	switch {
	case roll < aggr:
		action := domain.ActionAttack
		if e.rng.Float64() < 0.25 {
			action = domain.ActionHeavy
		}
		e.attack(side, me, opp, ms, os, name, oppName, action)
	case roll < aggr+(1-aggr)*0.5:
		me.Defending = true
		me.LastAttackTick = e.tick
		e.emitEvent(domain.FightEvent{
			Tick:   e.tick,
			Round:  e.round,
			Actor:  side,
			Action: domain.ActionDefend,
			Text:   fmt.Sprintf("%s raises their guard", name),
		})
	default:
		me.LastAttackTick = e.tick
		e.emitEvent(domain.FightEvent{
			Tick:   e.tick,
			Round:  e.round,
			Actor:  side,
			Action: domain.ActionReposition,
			Text:   fmt.Sprintf("%s circles for an opening", name),
		})
	}
}

// aggression scores how likely the fighter is to attack this turn, from its
// strategy, both HP fractions and special readiness.
func (e *Engine) aggression(side domain.Side, me, opp *domain.FightState, ms combatStats) float64 {
	strategy := e.fighterA.Strategy
	if side == domain.SideB {
		strategy = e.fighterB.Strategy
	}

	var base float64
	switch strategy {
	case domain.StrategyAggressive:
		base = 0.70
	case domain.StrategyDefensive:
		base = 0.40
	default:
		base = 0.55
	}

	base += (1 - me.HP/ms.maxHP) * 0.15
	base += (1 - opp.HP/opp.MaxHP) * 0.10
	if me.SpecialReady {
		base += 0.10
	}
	return clamp(base, 0.20, 0.90)
}

// attack resolves one attack: block, then dodge, then damage with crit,
// defense and all on-hit side effects. Specials bypass block and dodge.
func (e *Engine) attack(side domain.Side, me, opp *domain.FightState, ms, os combatStats, name, oppName string, action domain.FightAction) {
	me.LastAttackTick = e.tick
	special := action == domain.ActionSpecial

	if special {
		me.SpecialMeter = 0
		me.SpecialReady = false
	}

	if !special && opp.Defending {
		raw := ms.baseDamage + e.rng.Float64()*damageJitter
		dmg := maxf(minDamage, raw*blockFactor*(1-os.reductionAgainst(ms.armorPen)))
		opp.HP = maxf(0, opp.HP-dmg)
		me.StunnedUntil = e.tick + blockStunTicks
		me.Combo = 0
		if os.reflect > 0 {
			me.HP = maxf(0, me.HP-raw*os.reflect)
		}
		e.emitEvent(domain.FightEvent{
			Tick:    e.tick,
			Round:   e.round,
			Actor:   side,
			Action:  action,
			Damage:  dmg,
			Blocked: true,
			Text:    fmt.Sprintf("%s blocks %s's attack", oppName, name),
		})
		return
	}

	if !special && e.rng.Float64() < os.dodgeChance {
		opp.Dodges++
		me.Combo = 0
		e.emitEvent(domain.FightEvent{
			Tick:   e.tick,
			Round:  e.round,
			Actor:  side,
			Action: action,
			Dodged: true,
			Text:   fmt.Sprintf("%s dodges %s's attack", oppName, name),
		})
		return
	}

	raw := ms.baseDamage + e.rng.Float64()*damageJitter
	critChance := ms.critChance
	crit := false

	switch action {
	case domain.ActionHeavy:
		raw *= heavyMultiplier
		critChance += heavyCritBonus
	case domain.ActionSpecial:
		raw *= specialMultiplier
		crit = true
	}
	if me.HP/me.MaxHP < lowHPThreshold && ms.lowHPBonus > 0 {
		raw *= 1 + ms.lowHPBonus/100
	}
	if !crit {
		crit = e.rng.Float64() < critChance
	}
	if crit {
		raw *= ms.critMult
		me.Crits++
	}

	dmg := maxf(minDamage, raw*(1-os.reductionAgainst(ms.armorPen)))
	opp.HP = maxf(0, opp.HP-dmg)

	// On-hit bookkeeping.
	me.Hits++
	me.Score += int(dmg)
	if e.tick-me.LastHitTick <= comboWindowTicks {
		me.Combo++
	} else {
		me.Combo = 1
	}
	if me.Combo > me.MaxCombo {
		me.MaxCombo = me.Combo
	}
	me.LastHitTick = e.tick

	if !special && !me.SpecialReady {
		gain := meterPerHit + meterPerCombo*float64(me.Combo)
		if crit {
			gain += meterCritBonus
		}
		me.SpecialMeter += gain
		if me.SpecialMeter >= meterFull {
			me.SpecialMeter = meterFull
			me.SpecialReady = true
		}
	}

	if ms.lifesteal > 0 {
		me.HP = minf(me.MaxHP, me.HP+dmg*ms.lifesteal)
	}
	if os.thorns > 0 {
		me.HP = maxf(0, me.HP-os.thorns)
	}
	if ms.burn > 0 {
		opp.BurningUntil = e.tick + burnDurationTicks
	}
	if ms.slow > 0 {
		opp.SlowedUntil = e.tick + slowDurationTicks
	}

	text := fmt.Sprintf("%s hits %s for %.0f", name, oppName, dmg)
	if special {
		text = fmt.Sprintf("%s unleashes a special on %s for %.0f", name, oppName, dmg)
	} else if crit {
		text = fmt.Sprintf("%s lands a critical on %s for %.0f", name, oppName, dmg)
	}
	e.emitEvent(domain.FightEvent{
		Tick:   e.tick,
		Round:  e.round,
		Actor:  side,
		Action: action,
		Damage: dmg,
		Crit:   crit,
		Combo:  me.Combo,
		Text:   text,
	})
}

// finalize builds the immutable match result from the current state.
func (e *Engine) finalize(winner domain.Side, method domain.ResultMethod) domain.MatchResult {
	winnerName := e.fighterA.Name
	if winner == domain.SideB {
		winnerName = e.fighterB.Name
	}

	res := domain.MatchResult{
		MatchID:    e.matchID,
		Winner:     winner,
		WinnerName: winnerName,
		Method:     method,
		Duration:   time.Since(e.started),
		Ticks:      e.tick,
		Seed:       e.seed,
		FighterA:   summarize(e.fighterA.Name, e.stateA),
		FighterB:   summarize(e.fighterB.Name, e.stateB),
		DecidedAt:  time.Now().UTC(),
	}

	e.logger.Info("fight decided",
		slog.String("winner", winnerName),
		slog.String("method", string(method)),
		slog.Int("ticks", e.tick),
	)
	return res
}

func summarize(name string, st domain.FightState) domain.FighterSummary {
	return domain.FighterSummary{
		Name:     name,
		HP:       st.HP,
		MaxHP:    st.MaxHP,
		Score:    st.Score,
		Hits:     st.Hits,
		Crits:    st.Crits,
		Dodges:   st.Dodges,
		MaxCombo: st.MaxCombo,
	}
}

func (e *Engine) emitEvent(ev domain.FightEvent) {
	if e.cb.OnEvent != nil {
		e.cb.OnEvent(ev)
	}
}

func (e *Engine) emitTick() {
	if e.cb.OnTick != nil {
		e.cb.OnTick(domain.TickSnapshot{
			MatchID: e.matchID,
			Tick:    e.tick,
			Round:   e.round,
			StateA:  e.stateA,
			StateB:  e.stateB,
		})
	}
}

func (e *Engine) states(side domain.Side) (me, opp *domain.FightState) {
	if side == domain.SideA {
		return &e.stateA, &e.stateB
	}
	return &e.stateB, &e.stateA
}

func (e *Engine) stats(side domain.Side) (mine, theirs combatStats) {
	if side == domain.SideA {
		return e.statsA, e.statsB
	}
	return e.statsB, e.statsA
}

func (e *Engine) names(side domain.Side) (mine, theirs string) {
	if side == domain.SideA {
		return e.fighterA.Name, e.fighterB.Name
	}
	return e.fighterB.Name, e.fighterA.Name
}

func freshState(stats combatStats) domain.FightState {
	return domain.FightState{
		HP:             stats.maxHP,
		MaxHP:          stats.maxHP,
		LastAttackTick: -baseCooldownTicks,
		LastHitTick:    -comboWindowTicks - 1,
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
