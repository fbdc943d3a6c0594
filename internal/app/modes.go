package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentfight/arena/internal/arena"
	"github.com/agentfight/arena/internal/domain"
	"github.com/agentfight/arena/internal/roster"
	"github.com/agentfight/arena/internal/server"
	"github.com/agentfight/arena/internal/server/handler"
	"github.com/agentfight/arena/internal/server/ws"
)

const (
	// leaderLockKey guards against two orchestrator processes driving the
	// same match cycle.
	leaderLockKey = "arena:leader"
	leaderLockTTL = 30 * time.Second
)

// ArenaMode runs the match cycle without the public API: fighter selection,
// betting windows, fights and settlement. A Redis leader lock ensures only
// one orchestrator instance is active at a time.
func (a *App) ArenaMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting arena mode")

	if err := a.acquireLeaderLock(ctx, deps.LockManager); err != nil {
		return err
	}
	defer a.releaseLeaderLock(deps.LockManager)

	g, ctx := errgroup.WithContext(ctx)

	orch := a.buildOrchestrator(deps)
	orch.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		orch.Stop()
		return ctx.Err()
	})

	g.Go(func() error {
		return a.refreshLeaderLock(ctx, deps.LockManager)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs the public HTTP and WebSocket API without an orchestrator.
// Match state is read from persistence; the bet endpoint is unavailable
// because bets must be accepted by the process that owns the betting window.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps, nil)

	return g.Wait()
}

// FullMode runs the orchestrator and the public API in a single process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	if err := a.acquireLeaderLock(ctx, deps.LockManager); err != nil {
		return err
	}
	defer a.releaseLeaderLock(deps.LockManager)

	g, ctx := errgroup.WithContext(ctx)

	orch := a.buildOrchestrator(deps)
	orch.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		orch.Stop()
		return ctx.Err()
	})

	g.Go(func() error {
		return a.refreshLeaderLock(ctx, deps.LockManager)
	})

	a.startArchiver(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, orch)
	}

	return g.Wait()
}

// buildOrchestrator assembles the match-cycle orchestrator from wired
// dependencies and configuration.
func (a *App) buildOrchestrator(deps *Dependencies) *arena.Orchestrator {
	selector := roster.NewSelector(
		deps.AgentStore,
		deps.RosterCache,
		roster.SyntheticRoster(),
		roster.Config{
			RequireRealAgents: a.cfg.Roster.RequireRealAgents,
			CacheTTL:          a.cfg.Roster.CacheTTL.Duration,
		},
		a.logger,
	)

	return arena.NewOrchestrator(
		arena.Config{
			BettingWindow:       a.cfg.Arena.BettingWindow.Duration,
			BettingExtension:    a.cfg.Arena.BettingExtension.Duration,
			PoolMinimum:         a.cfg.Arena.PoolMinimum,
			PoolReadyGrace:      a.cfg.Arena.PoolReadyGrace.Duration,
			FightRounds:         a.cfg.Arena.FightRounds,
			RoundDuration:       a.cfg.Arena.RoundDuration.Duration,
			RoundPause:          a.cfg.Arena.RoundPause.Duration,
			TickInterval:        a.cfg.Arena.TickInterval.Duration,
			ResultDuration:      a.cfg.Arena.ResultDuration.Duration,
			CooldownDuration:    a.cfg.Arena.CooldownDuration.Duration,
			WaitingRetryDelay:   a.cfg.Arena.WaitingRetryDelay.Duration,
			WinnerReward:        a.cfg.Arena.WinnerReward,
			RequireRealFighters: a.cfg.Roster.RequireRealAgents,
		},
		selector,
		deps.Registrar,
		arena.Stores{
			Matches:  deps.MatchStore,
			History:  deps.HistoryStore,
			Agents:   deps.AgentStore,
			Bets:     deps.BetStore,
			Activity: deps.ActivityStore,
		},
		deps.SignalBus,
		deps.Notifier,
		a.logger,
	)
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// given errgroup. orch may be nil (server mode); the bet endpoint is then not
// registered and match reads come from the store.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, orch *arena.Orchestrator) {
	var source interface {
		handler.MatchSource
		ws.MatchSource
	}
	if orch != nil {
		source = orch
	} else {
		source = &storeMatchSource{store: deps.MatchStore}
	}

	hub := ws.NewHub(deps.SignalBus, source, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.healthChecks(deps), a.logger),
		Match:  handler.NewMatchHandler(source, deps.HistoryStore, a.logger),
		Chain:  handler.NewChainHandler(deps.Registrar, deps.Registrar, a.logger),
	}
	if deps.AgentStore != nil {
		handlers.Agents = handler.NewAgentHandler(deps.AgentStore, a.logger)
	}
	if deps.ActivityStore != nil {
		handlers.Activity = handler.NewActivityHandler(deps.ActivityStore, a.logger)
	}
	if orch != nil {
		handlers.Bets = handler.NewBetHandler(orch, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIKey:        a.cfg.Server.APIKey,
		BetRateLimit:  a.cfg.Server.BetRateLimit,
		BetRateWindow: time.Minute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// healthChecks builds the dependency map for the health endpoint.
func (a *App) healthChecks(deps *Dependencies) map[string]handler.Pinger {
	checks := make(map[string]handler.Pinger)
	if deps.Postgres != nil {
		checks["postgres"] = pinger(deps.Postgres.Pool().Ping)
	}
	if deps.Redis != nil {
		checks["redis"] = pinger(deps.Redis.Ping)
	}
	return checks
}

// pinger adapts a ping function to the handler.Pinger interface.
type pinger func(ctx context.Context) error

func (p pinger) Health(ctx context.Context) error { return p(ctx) }

// storeMatchSource serves match reads from persistence when no orchestrator
// runs in this process. Writes land in the store on every phase transition,
// so the view lags a live orchestrator by at most one transition.
type storeMatchSource struct {
	store domain.MatchStore
}

func (s *storeMatchSource) CurrentMatch() (domain.Match, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	live, err := s.store.GetLive(ctx)
	if err != nil || len(live) == 0 {
		return domain.Match{}, domain.ErrNoCurrentMatch
	}
	return live[len(live)-1], nil
}

func (s *storeMatchSource) Phase() domain.MatchPhase {
	m, err := s.CurrentMatch()
	if err != nil {
		return domain.PhaseIdle
	}
	return m.Phase
}

func (s *storeMatchSource) WaitingReason() string { return "" }

// acquireLeaderLock takes the orchestrator leader lock, retrying until the
// context is cancelled.
func (a *App) acquireLeaderLock(ctx context.Context, locks domain.LockManager) error {
	for {
		ok, err := locks.Acquire(ctx, leaderLockKey, leaderLockTTL)
		if err != nil {
			return fmt.Errorf("app: leader lock: %w", err)
		}
		if ok {
			a.logger.InfoContext(ctx, "leader lock acquired")
			return nil
		}

		a.logger.InfoContext(ctx, "leader lock held elsewhere, retrying",
			slog.Duration("retry_in", leaderLockTTL/3),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(leaderLockTTL / 3):
		}
	}
}

// refreshLeaderLock keeps the leader lock alive until the context ends. A
// failed refresh means another instance may take over; the orchestrator is
// stopped by returning an error through the errgroup.
func (a *App) refreshLeaderLock(ctx context.Context, locks domain.LockManager) error {
	ticker := time.NewTicker(leaderLockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ok, err := locks.Refresh(ctx, leaderLockKey, leaderLockTTL)
			if err != nil {
				a.logger.WarnContext(ctx, "leader lock refresh failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if !ok {
				return fmt.Errorf("app: leader lock lost")
			}
		}
	}
}

func (a *App) releaseLeaderLock(locks domain.LockManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := locks.Release(ctx, leaderLockKey); err != nil {
		a.logger.Warn("leader lock release failed", slog.String("error", err.Error()))
	}
}

// startArchiver adds the cold-storage retention loop when archival is
// enabled: export aged history and bets to object storage, then delete the
// exported rows from the primary store.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.runArchive(ctx, deps, retention)
			}
		}
	})
}

// runArchive performs one retention pass. Deletion only happens after the
// corresponding upload succeeded, so a failed run never loses data.
func (a *App) runArchive(ctx context.Context, deps *Dependencies, retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)

	if n, err := deps.Archiver.ArchiveHistory(ctx, cutoff); err != nil {
		a.logger.ErrorContext(ctx, "history archive failed", slog.String("error", err.Error()))
	} else if n > 0 {
		deleted, err := deps.HistoryStore.DeleteBefore(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "history retention delete failed", slog.String("error", err.Error()))
		}
		a.logger.InfoContext(ctx, "history archived",
			slog.Int64("exported", n),
			slog.Int64("deleted", deleted),
		)
	}

	if n, err := deps.Archiver.ArchiveBets(ctx, cutoff); err != nil {
		a.logger.ErrorContext(ctx, "bet archive failed", slog.String("error", err.Error()))
	} else if n > 0 {
		deleted, err := deps.BetStore.DeleteBefore(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "bet retention delete failed", slog.String("error", err.Error()))
		}
		a.logger.InfoContext(ctx, "bets archived",
			slog.Int64("exported", n),
			slog.Int64("deleted", deleted),
		)
	}
}
