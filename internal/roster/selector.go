package roster

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// Selector chooses two fighters for the next match. Real eligible agents are
// preferred, chosen uniformly at random from an eligibility set cached with a
// short TTL; when none are available the behaviour depends on the configured
// policy.
type Selector struct {
	agents    domain.AgentStore
	cache     domain.RosterCache
	synthetic []domain.FighterSnapshot
	logger    *slog.Logger

	// requireReal selects the strict policy: fail with
	// domain.ErrNotEnoughFighters instead of falling back to the synthetic
	// roster.
	requireReal bool
	cacheTTL    time.Duration

	intn func(n int) int // injectable for deterministic tests
}

// Config holds selector construction parameters.
type Config struct {
	RequireRealAgents bool
	CacheTTL          time.Duration
}

// NewSelector creates a Selector. The synthetic roster is only consulted when
// cfg.RequireRealAgents is false. cache may be nil, in which case eligibility
// is looked up from the agent store on every call.
func NewSelector(agents domain.AgentStore, cache domain.RosterCache, synthetic []domain.FighterSnapshot, cfg Config, logger *slog.Logger) *Selector {
	return &Selector{
		agents:      agents,
		cache:       cache,
		synthetic:   synthetic,
		logger:      logger.With(slog.String("component", "roster")),
		requireReal: cfg.RequireRealAgents,
		cacheTTL:    cfg.CacheTTL,
		intn:        rand.IntN,
	}
}

// Pick returns two fighter snapshots for the next match. It returns
// domain.ErrNotEnoughFighters when fewer than two eligible fighters exist and
// the strict policy is active.
func (s *Selector) Pick(ctx context.Context) (domain.FighterSnapshot, domain.FighterSnapshot, error) {
	ids, err := s.eligibleIDs(ctx)
	if err != nil {
		s.logger.Warn("eligibility lookup failed", slog.String("error", err.Error()))
		ids = nil
	}

	if len(ids) >= 2 {
		a, b, err := s.pickReal(ctx, ids)
		if err == nil {
			return a, b, nil
		}
		s.logger.Warn("real fighter lookup failed, re-listing",
			slog.String("error", err.Error()),
		)
		// The cached id set may be stale; drop it and retry once from the
		// store directly.
		if s.cache != nil {
			_ = s.cache.Invalidate(ctx)
		}
		if ids, err = s.listEligible(ctx); err == nil && len(ids) >= 2 {
			if a, b, err := s.pickReal(ctx, ids); err == nil {
				return a, b, nil
			}
		}
	}

	if s.requireReal {
		return domain.FighterSnapshot{}, domain.FighterSnapshot{}, domain.ErrNotEnoughFighters
	}

	if len(s.synthetic) < 2 {
		return domain.FighterSnapshot{}, domain.FighterSnapshot{}, domain.ErrNotEnoughFighters
	}

	i, j := s.twoDistinct(len(s.synthetic))
	s.logger.Info("falling back to synthetic fighters",
		slog.String("fighter_a", s.synthetic[i].Name),
		slog.String("fighter_b", s.synthetic[j].Name),
	)
	return s.synthetic[i], s.synthetic[j], nil
}

// pickReal draws two distinct ids and loads their snapshots.
func (s *Selector) pickReal(ctx context.Context, ids []string) (domain.FighterSnapshot, domain.FighterSnapshot, error) {
	i, j := s.twoDistinct(len(ids))

	a, err := s.agents.GetByID(ctx, ids[i])
	if err != nil {
		return domain.FighterSnapshot{}, domain.FighterSnapshot{}, fmt.Errorf("roster: load agent %s: %w", ids[i], err)
	}
	b, err := s.agents.GetByID(ctx, ids[j])
	if err != nil {
		return domain.FighterSnapshot{}, domain.FighterSnapshot{}, fmt.Errorf("roster: load agent %s: %w", ids[j], err)
	}
	return a.Snapshot(), b.Snapshot(), nil
}

// eligibleIDs returns the eligible agent id set, served from the TTL cache
// when possible.
func (s *Selector) eligibleIDs(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		ids, ok, err := s.cache.GetEligible(ctx)
		if err == nil && ok {
			return ids, nil
		}
	}
	return s.listEligible(ctx)
}

// listEligible queries the store and refreshes the cache.
func (s *Selector) listEligible(ctx context.Context) ([]string, error) {
	agents, err := s.agents.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("roster: list eligible: %w", err)
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	if s.cache != nil && len(ids) > 0 {
		if err := s.cache.SetEligible(ctx, ids, s.cacheTTL); err != nil {
			s.logger.Debug("eligibility cache refresh failed", slog.String("error", err.Error()))
		}
	}
	return ids, nil
}

// twoDistinct returns two distinct indices in [0, n) chosen uniformly.
func (s *Selector) twoDistinct(n int) (int, int) {
	i := s.intn(n)
	j := s.intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}
