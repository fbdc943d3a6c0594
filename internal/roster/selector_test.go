package roster

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// stubAgents is an in-memory AgentStore for selector tests.
type stubAgents struct {
	agents map[string]domain.Agent
	listErr error
}

func (s *stubAgents) Upsert(ctx context.Context, a domain.Agent) error { return nil }

func (s *stubAgents) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	a, ok := s.agents[id]
	if !ok {
		return domain.Agent{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *stubAgents) ListEligible(ctx context.Context) ([]domain.Agent, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Agent
	for _, a := range s.agents {
		if a.Eligible {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAgents) List(ctx context.Context, opts domain.ListOpts) ([]domain.Agent, error) {
	return s.ListEligible(ctx)
}

func (s *stubAgents) RecordOutcome(ctx context.Context, id string, won bool, earnings float64) error {
	return nil
}

func eligibleAgent(id string) domain.Agent {
	return domain.Agent{
		ID:          id,
		Name:        "Agent " + id,
		PowerRating: 60,
		Strategy:    domain.StrategyBalanced,
		Eligible:    true,
	}
}

func newTestSelector(agents *stubAgents, strict bool) *Selector {
	return NewSelector(agents, nil, SyntheticRoster(), Config{
		RequireRealAgents: strict,
		CacheTTL:          30 * time.Second,
	}, slog.Default())
}

func TestPickTwoRealAgents(t *testing.T) {
	agents := &stubAgents{agents: map[string]domain.Agent{
		"a1": eligibleAgent("a1"),
		"a2": eligibleAgent("a2"),
		"a3": eligibleAgent("a3"),
	}}
	sel := newTestSelector(agents, true)

	a, b, err := sel.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if !a.Real || !b.Real {
		t.Error("expected both fighters to be real")
	}
	if a.AgentID == b.AgentID {
		t.Errorf("picked the same agent twice: %s", a.AgentID)
	}
}

func TestPickStrictFailsWithoutAgents(t *testing.T) {
	tests := []struct {
		name   string
		agents map[string]domain.Agent
	}{
		{"no agents", map[string]domain.Agent{}},
		{"one agent", map[string]domain.Agent{"a1": eligibleAgent("a1")}},
		{"none eligible", map[string]domain.Agent{
			"a1": {ID: "a1", Eligible: false},
			"a2": {ID: "a2", Eligible: false},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := newTestSelector(&stubAgents{agents: tt.agents}, true)
			_, _, err := sel.Pick(context.Background())
			if !errors.Is(err, domain.ErrNotEnoughFighters) {
				t.Errorf("err = %v, want ErrNotEnoughFighters", err)
			}
		})
	}
}

func TestPickPermissiveFallsBackToSynthetic(t *testing.T) {
	sel := newTestSelector(&stubAgents{agents: map[string]domain.Agent{}}, false)

	a, b, err := sel.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if a.Real || b.Real {
		t.Error("expected synthetic fighters")
	}
	if a.AgentID == b.AgentID {
		t.Errorf("picked the same synthetic fighter twice: %s", a.AgentID)
	}
}

func TestPickPermissiveStillPrefersReal(t *testing.T) {
	agents := &stubAgents{agents: map[string]domain.Agent{
		"a1": eligibleAgent("a1"),
		"a2": eligibleAgent("a2"),
	}}
	sel := newTestSelector(agents, false)

	a, b, err := sel.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if !a.Real || !b.Real {
		t.Error("expected real fighters to be preferred over synthetic")
	}
}

func TestPickPermissiveFallsBackOnListError(t *testing.T) {
	sel := newTestSelector(&stubAgents{listErr: errors.New("db down")}, false)

	a, b, err := sel.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if a.Real || b.Real {
		t.Error("expected synthetic fighters when the store is unavailable")
	}
}

func TestTwoDistinctCoversAllPairs(t *testing.T) {
	sel := newTestSelector(&stubAgents{}, false)

	// Drive the index chooser through every (i, raw j) combination and check
	// the adjusted pair is always distinct and in range.
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			calls := 0
			sel.intn = func(n int) int {
				calls++
				if calls == 1 {
					return i
				}
				return j
			}
			a, b := sel.twoDistinct(4)
			if a == b {
				t.Fatalf("twoDistinct returned equal indices %d for seed (%d,%d)", a, i, j)
			}
			if a < 0 || a >= 4 || b < 0 || b >= 4 {
				t.Fatalf("index out of range: (%d,%d)", a, b)
			}
		}
	}
}

func TestSyntheticRosterIsStable(t *testing.T) {
	r1 := SyntheticRoster()
	r2 := SyntheticRoster()
	if len(r1) < 2 {
		t.Fatalf("synthetic roster too small: %d", len(r1))
	}
	// Each call returns a fresh slice; mutating one must not leak.
	r1[0].Name = "mutated"
	if r2[0].Name == "mutated" {
		t.Error("synthetic roster shares state between calls")
	}
	for _, f := range r2 {
		if f.Real {
			t.Errorf("synthetic fighter %s marked real", f.Name)
		}
		if f.PowerRating <= 0 {
			t.Errorf("synthetic fighter %s has no power rating", f.Name)
		}
	}
}
