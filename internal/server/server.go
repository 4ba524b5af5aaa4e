// Package server exposes the dashboard over an HTTP JSON API and a
// WebSocket stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/server/handler"
	"github.com/alanyoungcy/toslens/internal/server/middleware"
	"github.com/alanyoungcy/toslens/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	APIKey             string // empty disables authentication
	RateLimitPerMinute int    // zero disables rate limiting
}

// Handlers aggregates the HTTP handlers the server registers. Audit is
// optional.
type Handlers struct {
	Health     *handler.HealthHandler
	Dashboard  *handler.DashboardHandler
	Projection *handler.ProjectionHandler
	Watchlist  *handler.WatchlistHandler
	Audit      *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps them in the middleware chain.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           Routes(cfg, handlers, wsHub, limiter, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the routed and wrapped handler.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/dashboard", handlers.Dashboard.Dashboard)
	mux.HandleFunc("GET /api/runway", handlers.Dashboard.Runway)
	mux.HandleFunc("GET /api/staking", handlers.Dashboard.Staking)
	mux.HandleFunc("POST /api/refresh", handlers.Dashboard.Refresh)

	mux.HandleFunc("GET /api/projection", handlers.Projection.Project)

	mux.HandleFunc("GET /api/watchlist", handlers.Watchlist.List)
	mux.HandleFunc("POST /api/watchlist", handlers.Watchlist.Add)
	mux.HandleFunc("DELETE /api/watchlist/{address}", handlers.Watchlist.Remove)
	mux.HandleFunc("POST /api/watchlist/backup", handlers.Watchlist.Backup)
	mux.HandleFunc("POST /api/watchlist/restore", handlers.Watchlist.Restore)

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
