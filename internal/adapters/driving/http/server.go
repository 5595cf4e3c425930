package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/designpm/designpm-core/internal/core/ports/driven"
	"github.com/designpm/designpm-core/internal/core/ports/driving"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const eventsPath = "/api/v1/report/events"

// Checks are the named dependencies /ready pings.
type Checks map[string]Pinger

// Server is the HTTP API server for the live report.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	report        driving.ReportService
	notifications driven.NotificationFeed
	checks        Checks

	maxUploadBytes int64
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// MaxUploadBytes bounds one multipart upload request
	MaxUploadBytes int64

	// RateLimit and RateBurst throttle mutating requests; RateLimit <= 0 disables it
	RateLimit float64
	RateBurst int

	Logger *slog.Logger
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: 64 << 20,
		RateLimit:      20,
		RateBurst:      40,
	}
}

// NewServer creates a new HTTP server. checks may be nil.
func NewServer(
	cfg Config,
	report driving.ReportService,
	notifications driven.NotificationFeed,
	checks Checks,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		report:         report,
		notifications:  notifications,
		checks:         checks,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	s.setupRoutes()

	// Middleware chain
	var handler http.Handler = s.router
	if cfg.RateLimit > 0 {
		// Editor events are never throttled
		handler = NewRateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, eventsPath).Handler(handler)
	}
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Report endpoints
	s.router.HandleFunc("GET /api/v1/report", s.handleGetReport)
	s.router.HandleFunc("PUT /api/v1/report", s.handleApplyReport)
	s.router.HandleFunc("POST "+eventsPath, s.handleDispatch)
	s.router.HandleFunc("POST /api/v1/report/uploads", s.handleUpload)
	s.router.HandleFunc("POST /api/v1/report/navigate", s.handleNavigate)
	s.router.HandleFunc("POST /api/v1/report/save", s.handleSave)
	s.router.HandleFunc("GET /api/v1/report/export", s.handleExport)
	s.router.HandleFunc("POST /api/v1/report/import", s.handleImport)
	s.router.HandleFunc("DELETE /api/v1/report/local", s.handleClearLocal)
	s.router.HandleFunc("GET /api/v1/report/metrics", s.handleMetrics)

	// Notification endpoints
	s.router.HandleFunc("GET /api/v1/notifications", s.handleListNotifications)
	s.router.HandleFunc("DELETE /api/v1/notifications/{id}", s.handleDismissNotification)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
