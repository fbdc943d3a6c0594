package arena

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// --- stubs ---

type stubSelector struct {
	mu    sync.Mutex
	a, b  domain.FighterSnapshot
	errs  []error // consumed one per call, nil entries succeed
	calls int
}

func (s *stubSelector) Pick(ctx context.Context) (domain.FighterSnapshot, domain.FighterSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return domain.FighterSnapshot{}, domain.FighterSnapshot{}, err
		}
	}
	return s.a, s.b, nil
}

type stubRegistrar struct {
	mu             sync.Mutex
	enabled        bool
	createErr      *domain.ChainError
	missingOnChain bool
	existsErr      error
	calls          []string
}

func (r *stubRegistrar) record(op string) {
	r.mu.Lock()
	r.calls = append(r.calls, op)
	r.mu.Unlock()
}

func (r *stubRegistrar) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *stubRegistrar) Enabled() bool { return r.enabled }

func (r *stubRegistrar) MatchExists(ctx context.Context, matchID string) (bool, error) {
	r.record("exists")
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return !r.missingOnChain, nil
}

func (r *stubRegistrar) CreateMatch(ctx context.Context, matchID, nameA, nameB string) domain.TxOutcome {
	r.record("create")
	if r.createErr != nil {
		return domain.TxOutcome{Err: r.createErr}
	}
	return domain.TxOutcome{OK: true, TxHash: "0xcreate"}
}

func (r *stubRegistrar) LockMatch(ctx context.Context, matchID string) domain.TxOutcome {
	r.record("lock")
	return domain.TxOutcome{OK: true}
}

func (r *stubRegistrar) ResolveMatch(ctx context.Context, matchID string, winner domain.Side) domain.TxOutcome {
	r.record("resolve")
	return domain.TxOutcome{OK: true}
}

func (r *stubRegistrar) CancelMatch(ctx context.Context, matchID string) domain.TxOutcome {
	r.record("cancel")
	return domain.TxOutcome{OK: true}
}

func (r *stubRegistrar) SendReward(ctx context.Context, to string, amountWei *big.Int) domain.TxOutcome {
	r.record("reward")
	return domain.TxOutcome{OK: true}
}

type memMatches struct {
	mu      sync.Mutex
	matches map[string]domain.Match
}

func newMemMatches() *memMatches { return &memMatches{matches: make(map[string]domain.Match)} }

func (s *memMatches) Upsert(ctx context.Context, m domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
	return nil
}

func (s *memMatches) GetByID(ctx context.Context, id string) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMatches) GetLive(ctx context.Context) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Match
	for _, m := range s.matches {
		if m.Phase == domain.PhaseBetting || m.Phase == domain.PhaseFighting {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMatches) SetPhase(ctx context.Context, id string, phase domain.MatchPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[id]; ok {
		m.Phase = phase
		s.matches[id] = m
	}
	return nil
}

type memHistory struct {
	mu      sync.Mutex
	results []domain.MatchResult
}

func (s *memHistory) Add(ctx context.Context, r domain.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

func (s *memHistory) List(ctx context.Context, opts domain.ListOpts) ([]domain.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MatchResult(nil), s.results...), nil
}

func (s *memHistory) ListBefore(ctx context.Context, before time.Time) ([]domain.MatchResult, error) {
	return nil, nil
}

func (s *memHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *memHistory) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type outcome struct {
	won      bool
	earnings float64
}

type memAgents struct {
	mu       sync.Mutex
	outcomes map[string][]outcome
}

func newMemAgents() *memAgents { return &memAgents{outcomes: make(map[string][]outcome)} }

func (s *memAgents) Upsert(ctx context.Context, a domain.Agent) error { return nil }

func (s *memAgents) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	return domain.Agent{ID: id, Wallet: "0x" + id}, nil
}

func (s *memAgents) ListEligible(ctx context.Context) ([]domain.Agent, error) { return nil, nil }

func (s *memAgents) List(ctx context.Context, opts domain.ListOpts) ([]domain.Agent, error) {
	return nil, nil
}

func (s *memAgents) RecordOutcome(ctx context.Context, id string, won bool, earnings float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[id] = append(s.outcomes[id], outcome{won, earnings})
	return nil
}

func (s *memAgents) outcomeOf(id string) (outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.outcomes[id]
	if len(recs) == 0 {
		return outcome{}, false
	}
	return recs[0], true
}

type memBets struct {
	mu   sync.Mutex
	bets []domain.Bet
}

func (s *memBets) Add(ctx context.Context, b domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets = append(s.bets, b)
	return nil
}

func (s *memBets) ListByMatch(ctx context.Context, matchID string) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.bets {
		if b.MatchID == matchID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memBets) ListBefore(ctx context.Context, before time.Time) ([]domain.Bet, error) {
	return nil, nil
}

func (s *memBets) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// --- helpers ---

func realFighter(id, name string) domain.FighterSnapshot {
	return domain.FighterSnapshot{
		AgentID:     id,
		Name:        name,
		PowerRating: 60,
		Strategy:    domain.StrategyBalanced,
		Real:        true,
	}
}

func fastCycleConfig() Config {
	return Config{
		BettingWindow:     60 * time.Millisecond,
		BettingExtension:  40 * time.Millisecond,
		PoolMinimum:       100,
		PoolReadyGrace:    5 * time.Millisecond,
		FightRounds:       1,
		RoundDuration:     40 * time.Millisecond,
		RoundPause:        0,
		TickInterval:      10 * time.Millisecond,
		ResultDuration:    20 * time.Millisecond,
		CooldownDuration:  20 * time.Millisecond,
		WaitingRetryDelay: 25 * time.Millisecond,
		WinnerReward:      50,
	}
}

type fixture struct {
	orch      *Orchestrator
	selector  *stubSelector
	registrar *stubRegistrar
	matches   *memMatches
	history   *memHistory
	agents    *memAgents
	bets      *memBets
}

func newFixture(cfg Config, chainEnabled bool) *fixture {
	f := &fixture{
		selector: &stubSelector{
			a: realFighter("a1", "Razor"),
			b: realFighter("a2", "Bulwark"),
		},
		registrar: &stubRegistrar{enabled: chainEnabled},
		matches:   newMemMatches(),
		history:   &memHistory{},
		agents:    newMemAgents(),
		bets:      &memBets{},
	}
	f.orch = NewOrchestrator(cfg, f.selector, f.registrar, Stores{
		Matches: f.matches,
		History: f.history,
		Agents:  f.agents,
		Bets:    f.bets,
	}, nil, nil, slog.Default())
	return f
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitPhase(t *testing.T, o *Orchestrator, phase domain.MatchPhase) {
	t.Helper()
	waitFor(t, 3*time.Second, "phase "+string(phase), func() bool {
		return o.Phase() == phase
	})
}

func fundPool(t *testing.T, o *Orchestrator) {
	t.Helper()
	if _, err := o.PlaceBet(context.Background(), domain.SideA, 60, "0xaaa", ""); err != nil {
		t.Fatalf("first bet: %v", err)
	}
	if _, err := o.PlaceBet(context.Background(), domain.SideB, 50, "0xbbb", ""); err != nil {
		t.Fatalf("second bet: %v", err)
	}
}

// --- tests ---

func TestFullCycle(t *testing.T) {
	f := newFixture(fastCycleConfig(), true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseBetting)
	first, err := f.orch.CurrentMatch()
	if err != nil {
		t.Fatalf("CurrentMatch: %v", err)
	}
	if !first.ChainRegistered || first.ChainTxHash != "0xcreate" {
		t.Errorf("match not chain-registered: %+v", first)
	}
	if first.OddsA != 2.0 || first.OddsB != 2.0 {
		t.Errorf("fresh match odds = (%v, %v), want even", first.OddsA, first.OddsB)
	}

	fundPool(t, f.orch)
	waitPhase(t, f.orch, domain.PhaseFighting)

	m, _ := f.orch.CurrentMatch()
	if m.TotalPool != 110 || !m.PoolMet {
		t.Errorf("frozen pool = %v met=%v, want 110 met", m.TotalPool, m.PoolMet)
	}
	if len(m.Bets) != 2 {
		t.Errorf("frozen bets = %d, want 2", len(m.Bets))
	}

	waitFor(t, 3*time.Second, "result in history", func() bool { return f.history.count() > 0 })

	m, _ = f.orch.CurrentMatch()
	if m.Result == nil {
		waitFor(t, time.Second, "result on match", func() bool {
			m, _ = f.orch.CurrentMatch()
			return m.Result != nil
		})
	}
	if m.Result.Reward != 50 {
		t.Errorf("reward = %v, want 50", m.Result.Reward)
	}

	// Settlement: winner stats, loser stats, chain resolve + reward.
	winnerID := "a1"
	loserID := "a2"
	if m.Result.Winner == domain.SideB {
		winnerID, loserID = loserID, winnerID
	}
	waitFor(t, time.Second, "settlement outcomes", func() bool {
		_, ok := f.agents.outcomeOf(winnerID)
		_, ok2 := f.agents.outcomeOf(loserID)
		return ok && ok2
	})
	if rec, _ := f.agents.outcomeOf(winnerID); !rec.won || rec.earnings != 50 {
		t.Errorf("winner outcome = %+v", rec)
	}
	if rec, _ := f.agents.outcomeOf(loserID); rec.won {
		t.Errorf("loser recorded as winner")
	}
	waitFor(t, time.Second, "chain resolve", func() bool {
		ops := f.registrar.ops()
		return contains(ops, "resolve") && contains(ops, "reward") && contains(ops, "lock")
	})

	// Cycle continues into a fresh match.
	waitFor(t, 3*time.Second, "next match", func() bool {
		next, err := f.orch.CurrentMatch()
		return err == nil && next.ID != first.ID && next.Phase == domain.PhaseBetting
	})
}

func TestBettingExtendsIndefinitelyWithoutPool(t *testing.T) {
	f := newFixture(fastCycleConfig(), false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseBetting)
	waitFor(t, 3*time.Second, "window extension", func() bool {
		m, err := f.orch.CurrentMatch()
		return err == nil && m.Extensions >= 2
	})

	m, _ := f.orch.CurrentMatch()
	if m.Phase != domain.PhaseBetting {
		t.Errorf("phase = %s after extensions, want betting", m.Phase)
	}
	if m.PoolMet {
		t.Error("pool reported met with no bets")
	}
}

func TestPartialPoolDoesNotStartFight(t *testing.T) {
	f := newFixture(fastCycleConfig(), false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseBetting)
	if _, err := f.orch.PlaceBet(ctx, domain.SideA, 40, "0xaaa", ""); err != nil {
		t.Fatalf("bet: %v", err)
	}

	waitFor(t, 3*time.Second, "window extension", func() bool {
		m, err := f.orch.CurrentMatch()
		return err == nil && m.Extensions >= 1
	})
	if got := f.orch.Phase(); got != domain.PhaseBetting {
		t.Errorf("phase = %s, want betting to continue", got)
	}
}

func TestWaitingOnSelectorFailureThenRecovers(t *testing.T) {
	f := newFixture(fastCycleConfig(), false)
	f.selector.errs = []error{domain.ErrNotEnoughFighters}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseWaiting)
	if reason := f.orch.WaitingReason(); !strings.Contains(reason, "selection failed") {
		t.Errorf("waiting reason = %q", reason)
	}

	// Retry succeeds once the roster recovers.
	waitPhase(t, f.orch, domain.PhaseBetting)
	if f.orch.WaitingReason() != "" {
		t.Errorf("waiting reason not cleared: %q", f.orch.WaitingReason())
	}
}

func TestChainRegistrationFailureParksCycle(t *testing.T) {
	f := newFixture(fastCycleConfig(), true)
	f.registrar.createErr = &domain.ChainError{Code: domain.ChainInsufficientFunds, Detail: "no gas"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseWaiting)
	if reason := f.orch.WaitingReason(); !strings.Contains(reason, "chain registration failed") {
		t.Errorf("waiting reason = %q", reason)
	}
}

func TestPlaceBetOutsideBettingWindow(t *testing.T) {
	f := newFixture(fastCycleConfig(), false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.orch.PlaceBet(ctx, domain.SideA, 10, "0xaaa", ""); !errors.Is(err, domain.ErrNoCurrentMatch) {
		t.Errorf("err before start = %v, want ErrNoCurrentMatch", err)
	}

	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseBetting)
	fundPool(t, f.orch)
	waitPhase(t, f.orch, domain.PhaseFighting)

	if _, err := f.orch.PlaceBet(ctx, domain.SideA, 10, "0xccc", ""); !errors.Is(err, domain.ErrBettingClosed) {
		t.Errorf("err during fight = %v, want ErrBettingClosed", err)
	}
}

func TestInvalidBetRejected(t *testing.T) {
	f := newFixture(fastCycleConfig(), false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitPhase(t, f.orch, domain.PhaseBetting)
	if _, err := f.orch.PlaceBet(ctx, domain.SideA, -5, "0xaaa", ""); !errors.Is(err, domain.ErrInvalidBet) {
		t.Errorf("err = %v, want ErrInvalidBet", err)
	}
}

func TestRestoreBettingMatch(t *testing.T) {
	cfg := fastCycleConfig()
	f := newFixture(cfg, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A previous run left a betting-phase match and one bet behind.
	live := domain.Match{
		ID:          "m-restored",
		Phase:       domain.PhaseBetting,
		FighterA:    realFighter("a1", "Razor"),
		FighterB:    realFighter("a2", "Bulwark"),
		PoolMinimum: cfg.PoolMinimum,
		Seed:        77,
		PhaseEndsAt: time.Now().Add(cfg.BettingWindow),
		CreatedAt:   time.Now(),
	}
	if err := f.matches.Upsert(ctx, live); err != nil {
		t.Fatal(err)
	}
	if err := f.bets.Add(ctx, domain.Bet{
		ID: "b1", MatchID: "m-restored", Side: domain.SideA, Amount: 70, Address: "0xaaa",
	}); err != nil {
		t.Fatal(err)
	}

	f.orch.Start(ctx)
	defer f.orch.Stop()

	m, err := f.orch.CurrentMatch()
	if err != nil {
		t.Fatalf("CurrentMatch after restore: %v", err)
	}
	if m.ID != "m-restored" {
		t.Fatalf("restored id = %s", m.ID)
	}
	if m.PoolA != 70 {
		t.Errorf("restored poolA = %v, want 70", m.PoolA)
	}
	if f.selector.calls != 0 {
		t.Errorf("selector consulted during restore: %d calls", f.selector.calls)
	}

	// Topping up past the minimum resumes the normal flow.
	if _, err := f.orch.PlaceBet(ctx, domain.SideB, 40, "0xbbb", ""); err != nil {
		t.Fatalf("top-up bet: %v", err)
	}
	waitPhase(t, f.orch, domain.PhaseFighting)
}

func TestRestoreDiscardsUnregisteredMatch(t *testing.T) {
	cfg := fastCycleConfig()
	f := newFixture(cfg, true) // chain enabled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := domain.Match{
		ID:          "m-stale",
		Phase:       domain.PhaseBetting,
		FighterA:    realFighter("a1", "Razor"),
		FighterB:    realFighter("a2", "Bulwark"),
		PoolMinimum: cfg.PoolMinimum,
		// ChainRegistered left false: invalid under an enabled chain.
		PhaseEndsAt: time.Now().Add(time.Minute),
		CreatedAt:   time.Now(),
	}
	if err := f.matches.Upsert(ctx, live); err != nil {
		t.Fatal(err)
	}

	f.orch.Start(ctx)
	defer f.orch.Stop()

	// The stale candidate is discarded and a fresh match is created instead.
	waitFor(t, 3*time.Second, "fresh match", func() bool {
		m, err := f.orch.CurrentMatch()
		return err == nil && m.ID != "m-stale"
	})
	stale, err := f.matches.GetByID(ctx, "m-stale")
	if err != nil {
		t.Fatal(err)
	}
	if stale.Phase != domain.PhaseIdle {
		t.Errorf("stale match phase = %s, want idle", stale.Phase)
	}
}

func TestRestoreDiscardsSyntheticMatch(t *testing.T) {
	cfg := fastCycleConfig()
	cfg.RequireRealFighters = true
	f := newFixture(cfg, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A permissive run persisted a match between two synthetic fighters;
	// under the strict policy it must not be resumed.
	a := realFighter("s1", "Circuit")
	a.Real = false
	b := realFighter("s2", "Piston")
	b.Real = false
	live := domain.Match{
		ID:          "m-synthetic",
		Phase:       domain.PhaseBetting,
		FighterA:    a,
		FighterB:    b,
		PoolMinimum: cfg.PoolMinimum,
		PhaseEndsAt: time.Now().Add(time.Minute),
		CreatedAt:   time.Now(),
	}
	if err := f.matches.Upsert(ctx, live); err != nil {
		t.Fatal(err)
	}

	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitFor(t, 3*time.Second, "fresh match", func() bool {
		m, err := f.orch.CurrentMatch()
		return err == nil && m.ID != "m-synthetic"
	})
	stale, err := f.matches.GetByID(ctx, "m-synthetic")
	if err != nil {
		t.Fatal(err)
	}
	if stale.Phase != domain.PhaseIdle {
		t.Errorf("synthetic match phase = %s, want idle", stale.Phase)
	}
}

func TestRestoreDiscardsMatchUnknownToContract(t *testing.T) {
	cfg := fastCycleConfig()
	f := newFixture(cfg, true)
	f.registrar.missingOnChain = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence says registered, but the contract has no record of the id.
	live := domain.Match{
		ID:              "m-ghost",
		Phase:           domain.PhaseBetting,
		FighterA:        realFighter("a1", "Razor"),
		FighterB:        realFighter("a2", "Bulwark"),
		ChainRegistered: true,
		PoolMinimum:     cfg.PoolMinimum,
		PhaseEndsAt:     time.Now().Add(time.Minute),
		CreatedAt:       time.Now(),
	}
	if err := f.matches.Upsert(ctx, live); err != nil {
		t.Fatal(err)
	}

	f.orch.Start(ctx)
	defer f.orch.Stop()

	waitFor(t, 3*time.Second, "fresh match", func() bool {
		m, err := f.orch.CurrentMatch()
		return err == nil && m.ID != "m-ghost"
	})
	if !contains(f.registrar.ops(), "exists") {
		t.Error("restore never consulted the contract")
	}
	stale, err := f.matches.GetByID(ctx, "m-ghost")
	if err != nil {
		t.Fatal(err)
	}
	if stale.Phase != domain.PhaseIdle {
		t.Errorf("ghost match phase = %s, want idle", stale.Phase)
	}
}

func TestStopHaltsCycle(t *testing.T) {
	f := newFixture(fastCycleConfig(), false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.orch.Start(ctx)
	waitPhase(t, f.orch, domain.PhaseBetting)
	m, _ := f.orch.CurrentMatch()

	f.orch.Stop()
	time.Sleep(150 * time.Millisecond)

	after, err := f.orch.CurrentMatch()
	if err != nil {
		t.Fatalf("CurrentMatch after stop: %v", err)
	}
	if after.ID != m.ID || after.Phase != domain.PhaseBetting {
		t.Errorf("cycle advanced after Stop: %s %s", after.ID, after.Phase)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
