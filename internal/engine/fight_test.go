package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

func fighter(name string, power float64, strategy domain.FightStrategy, eq domain.EquipmentBonus) domain.FighterSnapshot {
	return domain.FighterSnapshot{
		AgentID:     "agent-" + name,
		Name:        name,
		PowerRating: power,
		Strategy:    strategy,
		Equipment:   eq,
	}
}

// fastConfig runs unpaced so tests finish instantly.
func fastConfig(rounds, ticksPerRound, pauseTicks int) Config {
	return Config{
		Rounds:        rounds,
		TicksPerRound: ticksPerRound,
		PauseTicks:    pauseTicks,
	}
}

func TestDecisionGoesToHigherHP(t *testing.T) {
	// Short rounds: total possible damage is far below either HP pool, so the
	// fight must run the clock out and be decided on remaining HP.
	a := fighter("Strong", 90, domain.StrategyBalanced, domain.EquipmentBonus{})
	b := fighter("Weak", 50, domain.StrategyBalanced, domain.EquipmentBonus{})

	e := New("m-1", a, b, fastConfig(3, 4, 1), 42, Callbacks{}, slog.Default())
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Method != domain.MethodDecision {
		t.Fatalf("method = %s, want Decision", res.Method)
	}
	if res.FighterA.HP <= 0 || res.FighterB.HP <= 0 {
		t.Fatalf("a fighter reached zero HP in a clock-out fight: %v / %v",
			res.FighterA.HP, res.FighterB.HP)
	}

	winner, loser := res.FighterA, res.FighterB
	if res.Winner == domain.SideB {
		winner, loser = loser, winner
	}
	if winner.HP < loser.HP {
		t.Errorf("winner HP %.1f < loser HP %.1f", winner.HP, loser.HP)
	}
	if res.WinnerName != winner.Name {
		t.Errorf("winner name = %s, summary says %s", res.WinnerName, winner.Name)
	}

	wantTicks := 3*4 + 2*1
	if res.Ticks != wantTicks {
		t.Errorf("ticks = %d, want %d", res.Ticks, wantTicks)
	}
	if res.Seed != 42 {
		t.Errorf("seed = %d, want 42", res.Seed)
	}
}

func TestKnockout(t *testing.T) {
	// A single hit from the overwhelming fighter is lethal, so the fight ends
	// in a KO well before the clock.
	a := fighter("Crusher", 100, domain.StrategyAggressive, domain.EquipmentBonus{Damage: 500})
	b := fighter("Fodder", 10, domain.StrategyBalanced, domain.EquipmentBonus{})

	e := New("m-2", a, b, fastConfig(3, 60, 5), 7, Callbacks{}, slog.Default())
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Method != domain.MethodKO {
		t.Fatalf("method = %s, want KO", res.Method)
	}
	if res.Winner != domain.SideA {
		t.Errorf("winner = %s, want side A", res.Winner)
	}
	if res.FighterB.HP != 0 {
		t.Errorf("loser HP = %v, want 0", res.FighterB.HP)
	}
	if total := 3*60 + 2*5; res.Ticks >= total {
		t.Errorf("KO at tick %d, expected before the full %d", res.Ticks, total)
	}
}

func TestStateInvariantsHoldEveryTick(t *testing.T) {
	a := fighter("A", 80, domain.StrategyAggressive, domain.EquipmentBonus{
		Damage: 20, CritChance: 0.2, Lifesteal: 0.2, Burn: 3, Slow: 1,
	})
	b := fighter("B", 75, domain.StrategyDefensive, domain.EquipmentBonus{
		Defense: 40, Thorns: 4, Reflect: 0.3, Dodge: 0.1,
	})

	check := func(name string, st domain.FightState) {
		if st.HP < 0 {
			t.Fatalf("%s HP went negative: %v", name, st.HP)
		}
		if st.HP > st.MaxHP {
			t.Fatalf("%s HP %v exceeds max %v", name, st.HP, st.MaxHP)
		}
		if st.SpecialMeter < 0 || st.SpecialMeter > 100 {
			t.Fatalf("%s special meter out of range: %v", name, st.SpecialMeter)
		}
		if st.Combo > st.MaxCombo {
			t.Fatalf("%s combo %d exceeds max combo %d", name, st.Combo, st.MaxCombo)
		}
	}

	cfg := fastConfig(3, 40, 3)
	e := New("m-3", a, b, cfg, 99, Callbacks{
		OnTick: func(ts domain.TickSnapshot) {
			check("A", ts.StateA)
			check("B", ts.StateB)
			if ts.Round < 1 || ts.Round > cfg.Rounds {
				t.Fatalf("round out of range: %d", ts.Round)
			}
		},
	}, slog.Default())

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if max := 3*40 + 2*3; res.Ticks > max {
		t.Errorf("ticks = %d, exceeds bound %d", res.Ticks, max)
	}
}

func TestSameSeedIsReproducible(t *testing.T) {
	a := fighter("A", 70, domain.StrategyAggressive, domain.EquipmentBonus{Damage: 10})
	b := fighter("B", 65, domain.StrategyBalanced, domain.EquipmentBonus{Defense: 15})
	cfg := fastConfig(3, 30, 2)

	run := func() domain.MatchResult {
		e := New("m-4", a, b, cfg, 1234, Callbacks{}, slog.Default())
		res, err := e.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	r1, r2 := run(), run()
	if r1.Winner != r2.Winner || r1.Method != r2.Method || r1.Ticks != r2.Ticks {
		t.Fatalf("outcomes differ: (%s %s %d) vs (%s %s %d)",
			r1.Winner, r1.Method, r1.Ticks, r2.Winner, r2.Method, r2.Ticks)
	}
	if r1.FighterA != r2.FighterA || r1.FighterB != r2.FighterB {
		t.Errorf("summaries differ:\n%+v\n%+v", r1.FighterA, r1.FighterB)
	}
}

func TestAbortTerminatesEarly(t *testing.T) {
	a := fighter("A", 60, domain.StrategyBalanced, domain.EquipmentBonus{})
	b := fighter("B", 60, domain.StrategyBalanced, domain.EquipmentBonus{})

	cfg := Config{Rounds: 3, TicksPerRound: 1000, PauseTicks: 10, TickInterval: 5 * time.Millisecond}
	e := New("m-5", a, b, cfg, 5, Callbacks{}, slog.Default())

	type outcome struct {
		res domain.MatchResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.Run(context.Background())
		done <- outcome{res, err}
	}()

	time.Sleep(30 * time.Millisecond)
	e.Abort()
	e.Abort() // idempotent

	select {
	case out := <-done:
		if !errors.Is(out.err, domain.ErrFightAborted) {
			t.Fatalf("err = %v, want ErrFightAborted", out.err)
		}
		if out.res.Ticks >= 3*1000 {
			t.Errorf("aborted fight ran to completion: %d ticks", out.res.Ticks)
		}
		if out.res.Winner != domain.SideA && out.res.Winner != domain.SideB {
			t.Errorf("aborted result has no winner: %q", out.res.Winner)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Abort")
	}
}

func TestContextCancellationAborts(t *testing.T) {
	a := fighter("A", 60, domain.StrategyBalanced, domain.EquipmentBonus{})
	b := fighter("B", 60, domain.StrategyBalanced, domain.EquipmentBonus{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{Rounds: 3, TicksPerRound: 1000, TickInterval: time.Second}
	e := New("m-6", a, b, cfg, 5, Callbacks{}, slog.Default())
	_, err := e.Run(ctx)
	if !errors.Is(err, domain.ErrFightAborted) {
		t.Fatalf("err = %v, want ErrFightAborted", err)
	}
}

func TestEventsAreWellFormed(t *testing.T) {
	a := fighter("Alpha", 85, domain.StrategyAggressive, domain.EquipmentBonus{CritChance: 0.3})
	b := fighter("Beta", 80, domain.StrategyDefensive, domain.EquipmentBonus{Dodge: 0.2})

	var events []domain.FightEvent
	cfg := fastConfig(2, 30, 2)
	e := New("m-7", a, b, cfg, 21, Callbacks{
		OnEvent: func(ev domain.FightEvent) { events = append(events, ev) },
	}, slog.Default())

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}

	lastTick := 0
	for _, ev := range events {
		if ev.Tick < lastTick {
			t.Fatalf("events out of order: tick %d after %d", ev.Tick, lastTick)
		}
		lastTick = ev.Tick
		if !ev.Actor.Valid() {
			t.Errorf("event with invalid actor: %+v", ev)
		}
		if ev.Text == "" {
			t.Errorf("event with empty text: %+v", ev)
		}
		if ev.Damage < 0 {
			t.Errorf("negative damage: %+v", ev)
		}
		switch ev.Action {
		case domain.ActionAttack, domain.ActionHeavy, domain.ActionSpecial,
			domain.ActionDefend, domain.ActionReposition:
		default:
			t.Errorf("unknown action %q", ev.Action)
		}
	}
}

func TestDeriveStats(t *testing.T) {
	t.Run("zero equipment baseline", func(t *testing.T) {
		s := deriveStats(fighter("X", 50, domain.StrategyBalanced, domain.EquipmentBonus{}))
		if s.maxHP != baseMaxHP+50*hpPerPower {
			t.Errorf("maxHP = %v", s.maxHP)
		}
		if s.baseDamage != baseDamagePts+50*damagePerPower {
			t.Errorf("baseDamage = %v", s.baseDamage)
		}
		if s.cooldownTicks != baseCooldownTicks {
			t.Errorf("cooldown = %d", s.cooldownTicks)
		}
		if s.critChance != baseCritChance || s.dodgeChance != baseDodgeChance {
			t.Errorf("crit/dodge = %v/%v", s.critChance, s.dodgeChance)
		}
	})

	t.Run("cooldown floors at minimum", func(t *testing.T) {
		s := deriveStats(fighter("X", 50, domain.StrategyBalanced, domain.EquipmentBonus{
			AttackSpeed: 100, Speed: 100,
		}))
		if s.cooldownTicks != minCooldownTicks {
			t.Errorf("cooldown = %d, want %d", s.cooldownTicks, minCooldownTicks)
		}
	})

	t.Run("percent stats are capped", func(t *testing.T) {
		s := deriveStats(fighter("X", 50, domain.StrategyBalanced, domain.EquipmentBonus{
			CritChance: 5, Dodge: 5, Lifesteal: 5, ArmorPen: 5,
		}))
		if s.critChance != maxCritChance {
			t.Errorf("critChance = %v", s.critChance)
		}
		if s.dodgeChance != maxDodgeChance {
			t.Errorf("dodgeChance = %v", s.dodgeChance)
		}
		if s.lifesteal != maxLifesteal {
			t.Errorf("lifesteal = %v", s.lifesteal)
		}
		if s.armorPen != maxArmorPen {
			t.Errorf("armorPen = %v", s.armorPen)
		}
	})
}

func TestDamageReduction(t *testing.T) {
	tests := []struct {
		name     string
		defense  float64
		armorPen float64
		want     float64
	}{
		{"no defense", 0, 0, 0},
		{"soft cap midpoint", defenseSoftCap, 0, 0.5},
		{"hard cap", 10000, 0, maxDamageReduction},
		{"armor pen halves", defenseSoftCap, 0.5, 0.25},
		{"full pen", 10000, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := combatStats{defense: tt.defense}
			got := s.reductionAgainst(tt.armorPen)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("reduction = %v, want %v", got, tt.want)
			}
		})
	}
}
