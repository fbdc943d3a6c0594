// Package server exposes the spectator-facing HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentfight/arena/internal/domain"
	"github.com/agentfight/arena/internal/server/handler"
	"github.com/agentfight/arena/internal/server/middleware"
	"github.com/agentfight/arena/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// BetRateLimit caps accepted bet requests per client IP per BetRateWindow.
	// Zero disables the limiter.
	BetRateLimit  int
	BetRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Nil handlers leave their routes unregistered, so a server-only deployment
// without Postgres simply lacks the corresponding endpoints.
type Handlers struct {
	Health   *handler.HealthHandler
	Match    *handler.MatchHandler
	Agents   *handler.AgentHandler
	Bets     *handler.BetHandler
	Chain    *handler.ChainHandler
	Activity *handler.ActivityHandler
}

// Server is the headless HTTP + WebSocket API server for the arena.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket
// hub. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}

	// Match endpoints.
	if handlers.Match != nil {
		mux.HandleFunc("GET /api/match/current", handlers.Match.GetCurrent)
		mux.HandleFunc("GET /api/match/history", handlers.Match.ListHistory)
	}

	// Roster endpoints.
	if handlers.Agents != nil {
		mux.HandleFunc("GET /api/agents", handlers.Agents.ListAgents)
		mux.HandleFunc("GET /api/agents/{id}", handlers.Agents.GetAgent)
	}

	// Betting endpoint, rate limited per client IP.
	if handlers.Bets != nil {
		var placeBet http.Handler = http.HandlerFunc(handlers.Bets.PlaceBet)
		if limiter != nil && cfg.BetRateLimit > 0 {
			placeBet = middleware.RateLimit(limiter, cfg.BetRateLimit, cfg.BetRateWindow)(placeBet)
		}
		mux.Handle("POST /api/bets", placeBet)
	}

	// Chain status endpoint.
	if handlers.Chain != nil {
		mux.HandleFunc("GET /api/chain/status", handlers.Chain.GetStatus)
	}

	// Activity feed endpoint.
	if handlers.Activity != nil {
		mux.HandleFunc("GET /api/activity", handlers.Activity.ListActivity)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
