package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/tenran/internal/auth"
	"github.com/ashita-ai/tenran/internal/pipeline"
	"github.com/ashita-ai/tenran/internal/ratelimit"
	"github.com/ashita-ai/tenran/internal/store"
)

// Server is the curation API HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Broker and Limiter are optional (nil = disabled).
type ServerConfig struct {
	Orchestrator *pipeline.Orchestrator
	AuthMgr      *auth.Manager
	Store        store.Store
	Logger       *slog.Logger

	Broker  *Broker
	Limiter ratelimit.Limiter

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Orchestrator:        cfg.Orchestrator,
		AuthMgr:             cfg.AuthMgr,
		Store:               cfg.Store,
		Broker:              cfg.Broker,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	limited := func(next http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(limiter, ratelimit.IPKey, next)
	}

	mux := http.NewServeMux()

	// Token exchange (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", limited(h.HandleAuthToken))

	// Session lifecycle.
	mux.Handle("POST /v1/sessions", limited(h.HandleSubmitSession))
	mux.Handle("GET /v1/sessions/{session_id}", limited(h.HandleGetSession))
	mux.Handle("POST /v1/sessions/{session_id}/artists", limited(h.HandleSelectArtists))
	mux.Handle("POST /v1/sessions/{session_id}/artworks", limited(h.HandleSelectArtworks))
	mux.Handle("GET /v1/sessions/{session_id}/proposal", limited(h.HandleGetProposal))

	// Event stream (long-lived connection, not rate limited).
	mux.HandleFunc("GET /v1/sessions/{session_id}/events", h.HandleSubscribe)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.AuthMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
