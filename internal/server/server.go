// Package server exposes the execution pipeline's HTTP and WebSocket API:
// breaker observability and controls, execution history, and plan injection.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/TemamAb/ainex-sub004/internal/domain"
	"github.com/TemamAb/ainex-sub004/internal/server/handler"
	"github.com/TemamAb/ainex-sub004/internal/server/middleware"
	"github.com/TemamAb/ainex-sub004/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateLimitWindow. Zero
	// disables rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Status     *handler.StatusHandler
	Breaker    *handler.BreakerHandler
	Executions *handler.ExecutionHandler
	Plans      *handler.PlanHandler
	Audit      *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Breaker observability and operator controls.
	mux.HandleFunc("GET /api/breaker/status", handlers.Breaker.GetStatus)
	mux.HandleFunc("GET /api/breaker/errors", handlers.Breaker.ListErrors)
	mux.HandleFunc("POST /api/breaker/recover", handlers.Breaker.AttemptRecovery)
	mux.HandleFunc("POST /api/breaker/confirm", handlers.Breaker.ConfirmRecovery)
	mux.HandleFunc("POST /api/breaker/reopen", handlers.Breaker.Reopen)
	mux.HandleFunc("POST /api/breaker/reset-daily", handlers.Breaker.ResetDailyLoss)

	// Execution history, stats, and the profit ledger.
	mux.HandleFunc("GET /api/executions", handlers.Executions.ListRecent)
	mux.HandleFunc("GET /api/executions/stats", handlers.Executions.Stats)
	mux.HandleFunc("GET /api/executions/{plan_id}", handlers.Executions.GetByPlanID)
	mux.HandleFunc("GET /api/ledger", handlers.Executions.ListLedger)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)

	// Plan injection for replay tooling.
	mux.HandleFunc("POST /api/plans", handlers.Plans.PublishPlan)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

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
