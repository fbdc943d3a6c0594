// Package arena drives the match lifecycle: fighter selection, on-chain
// registration, the betting window with its funding gate, the fight itself
// and settlement, cycling indefinitely until stopped.
package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfight/arena/internal/betting"
	"github.com/agentfight/arena/internal/domain"
	"github.com/agentfight/arena/internal/engine"
)

// Config holds the match-cycle timing and funding parameters.
type Config struct {
	BettingWindow     time.Duration
	BettingExtension  time.Duration
	PoolMinimum       float64
	PoolReadyGrace    time.Duration
	FightRounds       int
	RoundDuration     time.Duration
	RoundPause        time.Duration
	TickInterval      time.Duration
	ResultDuration    time.Duration
	CooldownDuration  time.Duration
	WaitingRetryDelay time.Duration
	WinnerReward      float64

	// RequireRealFighters mirrors the strict roster policy on the restore
	// path: a persisted match between synthetic fighters is discarded rather
	// than resumed.
	RequireRealFighters bool
}

// FighterSelector picks the two fighters for the next match.
type FighterSelector interface {
	Pick(ctx context.Context) (domain.FighterSnapshot, domain.FighterSnapshot, error)
}

// Registrar is the on-chain ledger surface the orchestrator drives. Satisfied
// by *chain.Registrar.
type Registrar interface {
	Enabled() bool
	MatchExists(ctx context.Context, matchID string) (bool, error)
	CreateMatch(ctx context.Context, matchID, nameA, nameB string) domain.TxOutcome
	LockMatch(ctx context.Context, matchID string) domain.TxOutcome
	ResolveMatch(ctx context.Context, matchID string, winner domain.Side) domain.TxOutcome
	CancelMatch(ctx context.Context, matchID string) domain.TxOutcome
	SendReward(ctx context.Context, to string, amountWei *big.Int) domain.TxOutcome
}

// Notifier pushes operator-facing notifications. Implementations filter by
// event type and must never block for long.
type Notifier interface {
	Notify(ctx context.Context, event, message string)
}

// Stores bundles the persistence surfaces the orchestrator writes through.
// Every field may be nil; persistence is best-effort and never blocks phase
// progress.
type Stores struct {
	Matches  domain.MatchStore
	History  domain.HistoryStore
	Agents   domain.AgentStore
	Bets     domain.BetStore
	Activity domain.ActivityStore
}

// Orchestrator runs the match cycle. All match mutation happens under o.mu;
// readers get deep-copied snapshots.
type Orchestrator struct {
	cfg       Config
	selector  FighterSelector
	registrar Registrar
	stores    Stores
	bus       domain.SignalBus
	notifier  Notifier
	logger    *slog.Logger
	sched     *Scheduler

	// ctx is the run context, set once in Start and inherited by every
	// background operation.
	ctx context.Context

	mu              sync.Mutex
	gen             int
	match           *domain.Match
	ledger          *betting.Ledger
	eng             *engine.Engine
	graceArmed      bool
	cancelCountdown func()
	waitReason      string
	started         bool
}

// NewOrchestrator assembles an orchestrator. bus and notifier may be nil.
func NewOrchestrator(cfg Config, selector FighterSelector, registrar Registrar, stores Stores, bus domain.SignalBus, notifier Notifier, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		selector:  selector,
		registrar: registrar,
		stores:    stores,
		bus:       bus,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "arena")),
		sched:     NewScheduler(),
	}
}

// Start restores a live match from persistence if one survives validation,
// otherwise kicks off a fresh cycle. It returns immediately; the cycle runs
// on scheduler goroutines until Stop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.ctx = ctx
	o.mu.Unlock()

	if o.restore() {
		return
	}
	o.sched.After(0, o.startNext)
}

// Stop cancels all pending phase timers and aborts an in-flight fight. The
// current match is left as-is in persistence for the restore path.
func (o *Orchestrator) Stop() {
	o.sched.Stop()

	o.mu.Lock()
	eng := o.eng
	cancel := o.cancelCountdown
	o.cancelCountdown = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if eng != nil {
		eng.Abort()
	}
	o.logger.Info("orchestrator stopped")
}

// CurrentMatch returns a deep-copied snapshot of the current match with live
// pool figures, or domain.ErrNoCurrentMatch.
func (o *Orchestrator) CurrentMatch() (domain.Match, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.match == nil {
		return domain.Match{}, domain.ErrNoCurrentMatch
	}
	if o.ledger != nil && o.match.Phase == domain.PhaseBetting {
		o.refreshPoolsLocked()
	}
	return o.match.Snapshot(), nil
}

// Phase returns the current lifecycle phase, PhaseWaiting while the cycle is
// parked between failed starts and PhaseIdle before the first one.
func (o *Orchestrator) Phase() domain.MatchPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.match != nil {
		return o.match.Phase
	}
	if o.waitReason != "" {
		return domain.PhaseWaiting
	}
	return domain.PhaseIdle
}

// WaitingReason returns why the cycle is parked, empty otherwise.
func (o *Orchestrator) WaitingReason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.waitReason
}

// PlaceBet records a wager against the current match. It returns
// domain.ErrNoCurrentMatch, domain.ErrBettingClosed or domain.ErrInvalidBet
// as appropriate.
func (o *Orchestrator) PlaceBet(ctx context.Context, side domain.Side, amount float64, address, txHash string) (domain.Bet, error) {
	o.mu.Lock()
	if o.match == nil {
		o.mu.Unlock()
		return domain.Bet{}, domain.ErrNoCurrentMatch
	}
	if o.match.Phase != domain.PhaseBetting {
		o.mu.Unlock()
		return domain.Bet{}, domain.ErrBettingClosed
	}
	gen := o.gen
	matchID := o.match.ID
	ledger := o.ledger
	o.mu.Unlock()

	bet, ok := ledger.RecordBet(side, amount, address, txHash)
	if !ok {
		return domain.Bet{}, domain.ErrInvalidBet
	}

	o.mu.Lock()
	if gen == o.gen && o.match != nil {
		o.match.Bets = append(o.match.Bets, bet)
		o.refreshPoolsLocked()
	}
	o.mu.Unlock()

	if o.stores.Bets != nil {
		if err := o.stores.Bets.Add(ctx, bet); err != nil {
			o.logger.Warn("bet persist failed", slog.String("error", err.Error()))
		}
	}
	o.publish(ChannelMatch, Event{Type: EventBetPlaced, MatchID: matchID, Data: bet}, false)
	return bet, nil
}

// refreshPoolsLocked copies the ledger aggregates onto the match. Callers
// hold o.mu.
func (o *Orchestrator) refreshPoolsLocked() {
	if o.ledger == nil || o.match == nil {
		return
	}
	m := o.match
	m.PoolA, m.PoolB, m.TotalPool = o.ledger.Totals()
	m.OddsA, m.OddsB = o.ledger.Odds()
	m.PoolMet = o.ledger.PoolMet()
}

// startNext begins a fresh cycle: pick fighters, register on chain, open the
// betting window. Any failure parks the cycle in WAITING with a retry.
func (o *Orchestrator) startNext() {
	ctx := o.ctx

	a, b, err := o.selector.Pick(ctx)
	if err != nil {
		o.enterWaiting(fmt.Sprintf("fighter selection failed: %v", err))
		return
	}

	now := time.Now().UTC()
	m := &domain.Match{
		ID:             uuid.NewString(),
		Phase:          domain.PhaseBetting,
		FighterA:       a,
		FighterB:       b,
		OddsA:          betting.EvenOdds,
		OddsB:          betting.EvenOdds,
		PoolMinimum:    o.cfg.PoolMinimum,
		Seed:           now.UnixNano(),
		PhaseStartedAt: now,
		PhaseEndsAt:    now.Add(o.cfg.BettingWindow),
		CreatedAt:      now,
	}

	if o.registrar.Enabled() {
		out := o.registrar.CreateMatch(ctx, m.ID, a.Name, b.Name)
		if !out.OK {
			o.notifyChainError("create_match", out.Err)
			o.enterWaiting(fmt.Sprintf("chain registration failed: %v", out.Err))
			return
		}
		m.ChainRegistered = true
		m.ChainTxHash = out.TxHash
	}

	o.mu.Lock()
	o.gen++
	gen := o.gen
	o.match = m
	o.graceArmed = false
	o.waitReason = ""
	o.ledger = betting.NewLedger(m.ID, o.cfg.PoolMinimum, func() { o.poolReady(gen) })
	snap := m.Snapshot()
	o.mu.Unlock()

	o.logger.Info("match created",
		slog.String("match_id", snap.ID),
		slog.String("fighter_a", a.Name),
		slog.String("fighter_b", b.Name),
		slog.Bool("chain_registered", snap.ChainRegistered),
	)

	o.persistMatch(snap)
	o.logActivity("match_created", map[string]any{
		"match_id": snap.ID, "fighter_a": a.Name, "fighter_b": b.Name,
	})
	o.publish(ChannelMatch, Event{Type: EventNewMatch, MatchID: snap.ID, Data: View(snap)}, true)
	o.notify("match_started", fmt.Sprintf("%s vs %s, betting open for %s", a.Name, b.Name, o.cfg.BettingWindow))
	o.armCountdown(gen)
}

// armCountdown starts the betting countdown ticker for the given generation.
func (o *Orchestrator) armCountdown(gen int) {
	cancel := o.sched.Every(o.countdownInterval(), func() { o.countdownTick(gen) })
	o.mu.Lock()
	if gen == o.gen {
		o.cancelCountdown = cancel
		cancel = nil
	}
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) countdownInterval() time.Duration {
	if o.cfg.TickInterval > 0 {
		return o.cfg.TickInterval
	}
	return time.Second
}

// countdownTick publishes the countdown state, checks the pool gate and
// extends the window when it expires unfunded. Extension is unbounded: a
// match never starts without its minimum pool.
func (o *Orchestrator) countdownTick(gen int) {
	o.mu.Lock()
	if gen != o.gen || o.match == nil || o.match.Phase != domain.PhaseBetting {
		o.mu.Unlock()
		return
	}
	o.refreshPoolsLocked()
	m := o.match
	now := time.Now().UTC()
	met := m.PoolMet
	remaining := m.PhaseEndsAt.Sub(now)
	extended := false
	if !met && remaining <= 0 {
		m.Extensions++
		m.PhaseEndsAt = now.Add(o.cfg.BettingExtension)
		remaining = o.cfg.BettingExtension
		extended = true
	}
	matchID := m.ID
	extensions := m.Extensions
	view := View(*m)
	snap := m.Snapshot()
	o.mu.Unlock()

	if met {
		o.poolReady(gen)
	}
	if extended {
		o.logger.Info("betting window extended",
			slog.String("match_id", matchID),
			slog.Int("extensions", extensions),
		)
		o.persistMatch(snap)
	}
	o.publish(ChannelMatch, Event{Type: EventCountdownTick, MatchID: matchID, Data: map[string]any{
		"remaining_seconds": int(remaining.Seconds()),
		"match":             view,
	}}, false)
}

// poolReady arms the fixed grace delay before the fight, at most once per
// match. Called from the ledger threshold callback and the countdown tick.
func (o *Orchestrator) poolReady(gen int) {
	o.mu.Lock()
	if gen != o.gen || o.match == nil || o.match.Phase != domain.PhaseBetting || o.graceArmed {
		o.mu.Unlock()
		return
	}
	o.graceArmed = true
	matchID := o.match.ID
	o.mu.Unlock()

	o.logger.Info("pool minimum met", slog.String("match_id", matchID))
	o.sched.After(o.cfg.PoolReadyGrace, func() { o.startFight(gen) })
}

// startFight closes the ledger, freezes the betting aggregates onto the
// match, locks it on chain and launches the fight engine.
func (o *Orchestrator) startFight(gen int) {
	o.mu.Lock()
	if gen != o.gen || o.match == nil || o.match.Phase != domain.PhaseBetting {
		o.mu.Unlock()
		return
	}
	o.ledger.Close()
	m := o.match
	m.Bets = o.ledger.Bets()
	o.refreshPoolsLocked()

	now := time.Now().UTC()
	m.Phase = domain.PhaseFighting
	m.PhaseStartedAt = now
	m.PhaseEndsAt = now.Add(o.fightDuration())

	cancel := o.cancelCountdown
	o.cancelCountdown = nil

	eng := engine.New(m.ID, m.FighterA, m.FighterB, o.engineConfig(), m.Seed, o.engineCallbacks(m.ID), o.logger)
	o.eng = eng
	snap := m.Snapshot()
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.persistMatch(snap)
	o.publish(ChannelMatch, Event{Type: EventPhaseChange, MatchID: snap.ID, Data: View(snap)}, true)

	if o.registrar.Enabled() {
		go func() {
			if out := o.registrar.LockMatch(o.ctx, snap.ID); !out.OK {
				o.notifyChainError("lock_match", out.Err)
			}
		}()
	}

	go func() {
		res, err := eng.Run(o.ctx)
		if err != nil {
			o.logger.Warn("fight aborted",
				slog.String("match_id", snap.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		o.finishFight(gen, res)
	}()
}

// finishFight records the result, publishes it and schedules settlement and
// the cooldown.
func (o *Orchestrator) finishFight(gen int, res domain.MatchResult) {
	res.Reward = o.cfg.WinnerReward

	o.mu.Lock()
	if gen != o.gen || o.match == nil {
		o.mu.Unlock()
		return
	}
	m := o.match
	m.Result = &res
	now := time.Now().UTC()
	m.Phase = domain.PhaseResult
	m.PhaseStartedAt = now
	m.PhaseEndsAt = now.Add(o.cfg.ResultDuration)
	o.eng = nil
	snap := m.Snapshot()
	o.mu.Unlock()

	o.logger.Info("match decided",
		slog.String("match_id", snap.ID),
		slog.String("winner", res.WinnerName),
		slog.String("method", string(res.Method)),
	)

	o.persistMatch(snap)
	if o.stores.History != nil {
		if err := o.stores.History.Add(o.ctx, res); err != nil {
			o.logger.Warn("history persist failed", slog.String("error", err.Error()))
		}
	}
	o.publish(ChannelMatch, Event{Type: EventMatchResult, MatchID: snap.ID, Data: res}, true)
	o.notify("match_result", fmt.Sprintf("%s wins by %s", res.WinnerName, res.Method))

	// Settlement is fire-and-forget: a panic or a slow chain call must never
	// stall the cycle.
	go o.settle(snap, res)

	o.sched.After(o.cfg.ResultDuration, func() { o.enterCooldown(gen) })
}

// settle applies stats, pays the reward and resolves the match on chain.
func (o *Orchestrator) settle(m domain.Match, res domain.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("settlement panicked",
				slog.String("match_id", m.ID),
				slog.Any("panic", r),
			)
		}
	}()
	ctx := o.ctx

	winner := fighterOn(m, res.Winner)
	loser := fighterOn(m, res.Winner.Opponent())

	if o.stores.Agents != nil {
		if winner.Real {
			if err := o.stores.Agents.RecordOutcome(ctx, winner.AgentID, true, res.Reward); err != nil {
				o.logger.Warn("winner stats update failed", slog.String("error", err.Error()))
			}
		}
		if loser.Real {
			if err := o.stores.Agents.RecordOutcome(ctx, loser.AgentID, false, 0); err != nil {
				o.logger.Warn("loser stats update failed", slog.String("error", err.Error()))
			}
		}
	}

	if o.registrar.Enabled() {
		if out := o.registrar.ResolveMatch(ctx, m.ID, res.Winner); !out.OK {
			o.notifyChainError("resolve_match", out.Err)
		}
		if winner.Real && res.Reward > 0 {
			if wallet := o.agentWallet(ctx, winner.AgentID); wallet != "" {
				if out := o.registrar.SendReward(ctx, wallet, tokensToWei(res.Reward)); !out.OK {
					o.notifyChainError("send_reward", out.Err)
				}
			}
		}
	}

	o.logActivity("match_settled", map[string]any{
		"match_id": m.ID,
		"winner":   res.WinnerName,
		"method":   string(res.Method),
		"reward":   res.Reward,
	})
}

// fighterOn returns the snapshot occupying the given side of the match.
func fighterOn(m domain.Match, side domain.Side) domain.FighterSnapshot {
	if side == domain.SideA {
		return m.FighterA
	}
	return m.FighterB
}

func (o *Orchestrator) agentWallet(ctx context.Context, agentID string) string {
	if o.stores.Agents == nil {
		return ""
	}
	a, err := o.stores.Agents.GetByID(ctx, agentID)
	if err != nil {
		o.logger.Warn("winner wallet lookup failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return a.Wallet
}

// enterCooldown parks the finished match for the cooldown window and
// schedules the next cycle.
func (o *Orchestrator) enterCooldown(gen int) {
	o.mu.Lock()
	if gen != o.gen || o.match == nil {
		o.mu.Unlock()
		return
	}
	m := o.match
	now := time.Now().UTC()
	m.Phase = domain.PhaseCooldown
	m.PhaseStartedAt = now
	m.PhaseEndsAt = now.Add(o.cfg.CooldownDuration)
	snap := m.Snapshot()
	o.mu.Unlock()

	if o.stores.Matches != nil {
		if err := o.stores.Matches.SetPhase(o.ctx, snap.ID, domain.PhaseCooldown); err != nil {
			o.logger.Warn("phase persist failed", slog.String("error", err.Error()))
		}
	}
	o.publish(ChannelMatch, Event{Type: EventPhaseChange, MatchID: snap.ID, Data: View(snap)}, false)
	o.sched.After(o.cfg.CooldownDuration, o.startNext)
}

// enterWaiting parks the cycle with a reason and schedules a retry.
func (o *Orchestrator) enterWaiting(reason string) {
	o.mu.Lock()
	o.gen++
	o.match = nil
	o.ledger = nil
	o.waitReason = reason
	cancel := o.cancelCountdown
	o.cancelCountdown = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.logger.Warn("cycle waiting", slog.String("reason", reason))
	o.publish(ChannelMatch, Event{Type: EventPhaseChange, Data: map[string]any{
		"phase":  domain.PhaseWaiting,
		"reason": reason,
	}}, false)
	o.sched.After(o.cfg.WaitingRetryDelay, o.startNext)
}

// restore resumes a live match left in persistence by a previous run.
func (o *Orchestrator) restore() bool {
	if o.stores.Matches == nil {
		return false
	}
	live, err := o.stores.Matches.GetLive(o.ctx)
	if err != nil {
		o.logger.Warn("restore lookup failed", slog.String("error", err.Error()))
		return false
	}
	for i := range live {
		if o.restoreMatch(live[i]) {
			return true
		}
	}
	return false
}

// restoreMatch validates one live candidate and resumes it. Invalid
// candidates are discarded in persistence so they are not retried forever.
func (o *Orchestrator) restoreMatch(m domain.Match) bool {
	if m.FighterA.Name == "" || m.FighterB.Name == "" {
		o.discard(m, "missing fighters")
		return false
	}
	if o.cfg.RequireRealFighters && (!m.FighterA.Real || !m.FighterB.Real) {
		o.discard(m, "not between real fighters")
		return false
	}
	if o.registrar.Enabled() {
		if !m.ChainRegistered {
			o.discard(m, "not registered on chain")
			return false
		}
		exists, err := o.registrar.MatchExists(o.ctx, m.ID)
		if err != nil {
			o.logger.Warn("on-chain match lookup failed, resuming anyway",
				slog.String("match_id", m.ID),
				slog.String("error", err.Error()),
			)
		} else if !exists {
			o.discard(m, "unknown to contract")
			return false
		}
	}

	switch m.Phase {
	case domain.PhaseBetting:
		o.mu.Lock()
		o.gen++
		gen := o.gen
		o.match = &m
		o.graceArmed = false
		o.ledger = betting.NewLedger(m.ID, m.PoolMinimum, func() { o.poolReady(gen) })
		o.mu.Unlock()

		if o.stores.Bets != nil {
			if bets, err := o.stores.Bets.ListByMatch(o.ctx, m.ID); err == nil {
				o.ledger.Restore(bets)
			} else {
				o.logger.Warn("bet restore failed", slog.String("error", err.Error()))
			}
		}

		o.mu.Lock()
		o.match.Bets = o.ledger.Bets()
		o.refreshPoolsLocked()
		if !o.match.PoolMet && time.Now().UTC().After(o.match.PhaseEndsAt) {
			o.match.Extensions++
			o.match.PhaseEndsAt = time.Now().UTC().Add(o.cfg.BettingExtension)
		}
		o.mu.Unlock()

		o.logger.Info("restored betting match", slog.String("match_id", m.ID))
		o.armCountdown(gen)
		return true

	case domain.PhaseFighting:
		// The fight is deterministic for its recorded seed, so a restart
		// replays it from the top rather than resuming mid-tick.
		o.mu.Lock()
		o.gen++
		gen := o.gen
		o.match = &m
		eng := engine.New(m.ID, m.FighterA, m.FighterB, o.engineConfig(), m.Seed, o.engineCallbacks(m.ID), o.logger)
		o.eng = eng
		o.mu.Unlock()

		o.logger.Info("replaying interrupted fight", slog.String("match_id", m.ID))
		go func() {
			res, err := eng.Run(o.ctx)
			if err != nil {
				return
			}
			o.finishFight(gen, res)
		}()
		return true
	}

	o.discard(m, fmt.Sprintf("unexpected phase %s", m.Phase))
	return false
}

func (o *Orchestrator) discard(m domain.Match, reason string) {
	o.logger.Warn("discarding stale match",
		slog.String("match_id", m.ID),
		slog.String("reason", reason),
	)
	if o.stores.Matches != nil {
		if err := o.stores.Matches.SetPhase(o.ctx, m.ID, domain.PhaseIdle); err != nil {
			o.logger.Warn("discard persist failed", slog.String("error", err.Error()))
		}
	}
	if o.registrar.Enabled() && m.ChainRegistered {
		if out := o.registrar.CancelMatch(o.ctx, m.ID); !out.OK {
			o.notifyChainError("cancel_match", out.Err)
		}
	}
}

func (o *Orchestrator) fightDuration() time.Duration {
	d := time.Duration(o.cfg.FightRounds) * o.cfg.RoundDuration
	if o.cfg.FightRounds > 1 {
		d += time.Duration(o.cfg.FightRounds-1) * o.cfg.RoundPause
	}
	return d
}

func (o *Orchestrator) engineConfig() engine.Config {
	ticksPerRound := 1
	pauseTicks := 0
	if o.cfg.TickInterval > 0 {
		if n := int(o.cfg.RoundDuration / o.cfg.TickInterval); n > 0 {
			ticksPerRound = n
		}
		pauseTicks = int(o.cfg.RoundPause / o.cfg.TickInterval)
	}
	return engine.Config{
		Rounds:        o.cfg.FightRounds,
		TicksPerRound: ticksPerRound,
		PauseTicks:    pauseTicks,
		TickInterval:  o.cfg.TickInterval,
	}
}

func (o *Orchestrator) engineCallbacks(matchID string) engine.Callbacks {
	return engine.Callbacks{
		OnEvent: func(ev domain.FightEvent) {
			o.publish(ChannelFight, Event{Type: EventFightEvent, MatchID: matchID, Data: ev}, false)
		},
		OnTick: func(ts domain.TickSnapshot) {
			o.publish(ChannelFight, Event{Type: EventFightTick, MatchID: matchID, Data: ts}, false)
		},
	}
}

// publish broadcasts an event on the signal bus; durable events are also
// appended to the replay stream. Failures are logged and swallowed.
func (o *Orchestrator) publish(channel string, ev Event, durable bool) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("event marshal failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}
	if err := o.bus.Publish(o.ctx, channel, payload); err != nil {
		o.logger.Debug("event publish failed", slog.String("error", err.Error()))
	}
	if durable {
		if err := o.bus.StreamAppend(o.ctx, StreamEvents, payload); err != nil {
			o.logger.Debug("stream append failed", slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) notify(event, message string) {
	if o.notifier == nil {
		return
	}
	go o.notifier.Notify(o.ctx, event, message)
}

func (o *Orchestrator) notifyChainError(op string, err error) {
	o.logger.Error("chain operation failed",
		slog.String("op", op),
		slog.String("error", fmt.Sprint(err)),
	)
	o.notify("chain_error", fmt.Sprintf("%s failed: %v", op, err))
}

func (o *Orchestrator) persistMatch(m domain.Match) {
	if o.stores.Matches == nil {
		return
	}
	if err := o.stores.Matches.Upsert(o.ctx, m); err != nil {
		o.logger.Warn("match persist failed",
			slog.String("match_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) logActivity(event string, detail map[string]any) {
	if o.stores.Activity == nil {
		return
	}
	if err := o.stores.Activity.Log(o.ctx, event, detail); err != nil {
		o.logger.Debug("activity log failed", slog.String("error", err.Error()))
	}
}

// tokensToWei converts a whole-token reward to wei (1e18 base units).
func tokensToWei(amount float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e18)).Int(nil)
	return wei
}
