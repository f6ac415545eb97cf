// Package httpapi exposes sessions over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"docqa/core"
	"docqa/db"
	"docqa/logging"
	"docqa/session"
)

// HistoryReader lists recent extractions. *db.Database satisfies it.
type HistoryReader interface {
	RecentExtractions(ctx context.Context, limit int) ([]db.ExtractionRecord, error)
}

// ServerConfig configures the Server.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxUploadBytes caps one ingest request body.
	MaxUploadBytes int64

	// AccessKey enables bearer authentication on /api routes when set.
	AccessKey string
	// AccessKeyCost is the bcrypt cost for hashing AccessKey. Zero selects
	// bcrypt.DefaultCost.
	AccessKeyCost int

	RateLimitRPS   float64
	RateLimitBurst int

	Version string
}

// DefaultServerConfig returns the defaults. Ingest can run for a while, so
// the write timeout is generous.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            3000,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxUploadBytes:  25 << 20,
		RateLimitRPS:    5,
		RateLimitBurst:  10,
		Version:         "1.0.0",
	}
}

// ConfigFromCore maps the runtime configuration onto ServerConfig.
func ConfigFromCore(cfg *core.Config) ServerConfig {
	c := DefaultServerConfig()
	if cfg.Port > 0 {
		c.Port = cfg.Port
	}
	if cfg.MaxUploadBytes > 0 {
		c.MaxUploadBytes = cfg.MaxUploadBytes
	}
	c.AccessKey = cfg.APIAccessKey
	c.RateLimitRPS = cfg.RateLimitRPS
	if cfg.RateLimitBurst > 0 {
		c.RateLimitBurst = cfg.RateLimitBurst
	}
	return c
}

// Server routes API requests to the session manager.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     ServerConfig
	logger     *logging.Logger
	sessions   *session.Manager
	history    HistoryReader
	limiter    *RateLimiter
	auth       *KeyAuth
	validate   *validator.Validate
	started    time.Time
}

// NewServer wires routes and middleware. history may be nil.
func NewServer(config ServerConfig, sessions *session.Manager, history HistoryReader, logger *logging.Logger) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("httpapi: session manager is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		logger:   logger.Named("http"),
		sessions: sessions,
		history:  history,
		limiter:  NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		started:  time.Now(),
	}
	if config.AccessKey != "" {
		auth, err := NewKeyAuth(config.AccessKey, config.AccessKeyCost)
		if err != nil {
			return nil, fmt.Errorf("httpapi: failed to set up access key: %w", err)
		}
		s.auth = auth
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	s.logger.Info("http server created",
		zap.String("addr", addr),
		zap.Bool("auth_enabled", s.auth != nil),
		zap.Float64("rate_limit_rps", config.RateLimitRPS))
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.Handle("POST /api/sessions", s.protect(s.handleCreateSession))
	s.mux.Handle("GET /api/sessions/{id}", s.protect(s.handleGetSession))
	s.mux.Handle("DELETE /api/sessions/{id}", s.protect(s.handleDeleteSession))
	s.mux.Handle("POST /api/sessions/{id}/ingest", s.protect(s.handleIngest))
	s.mux.Handle("POST /api/sessions/{id}/ask", s.protect(s.handleAsk))
	s.mux.Handle("GET /api/history", s.protect(s.handleHistory))
}

// protect applies rate limiting and, when configured, authentication.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if s.auth != nil {
		handler = s.auth.Handler(handler)
	}
	return s.limiter.Handler(handler)
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return NewLoggingMiddleware(s.logger, "/health").Handler(s.mux)
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start listens until Shutdown is called. Rate limiter bookkeeping stops
// with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.limiter.StartCleanupTicker(ctx, 5*time.Minute)
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
