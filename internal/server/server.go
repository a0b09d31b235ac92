// Package server provides the HTTP server implementation for the storage
// service.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/config"
	apierrors "github.com/rohansen856/database-layering/internal/errors"
	"github.com/rohansen856/database-layering/internal/handler"
	"github.com/rohansen856/database-layering/internal/metrics"
	"github.com/rohansen856/database-layering/internal/middleware"
	"github.com/rohansen856/database-layering/internal/ratelimit"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	limiter      *ratelimit.Limiter
	metrics      *metrics.Metrics
	promRegistry *prometheus.Registry
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server. The limiter may be nil when rate
// limiting is disabled.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	promRegistry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		limiter:      limiter,
		metrics:      m,
		promRegistry: promRegistry,
		errorHandler: apierrors.NewHandler(logger),
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	chain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.Metrics(s.metrics),
		middleware.CORS([]string{"*"}),
	)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	auth := middleware.NewAuth(s.cfg.Auth.Enabled, s.cfg.Auth.APIKey, s.errorHandler, s.logger)
	rateLimit := middleware.NewRateLimit(s.limiter, s.metrics, s.errorHandler, s.logger)
	protected := middleware.Chain(auth.Authenticate, rateLimit.Limit)

	// Record operations: authenticated and rate limited.
	s.router.Handle("/write", protected(http.HandlerFunc(s.handlers.Write))).Methods(http.MethodPost)
	s.router.Handle("/read/{key}", protected(http.HandlerFunc(s.handlers.Read))).Methods(http.MethodGet)
	s.router.Handle("/query/{key}", protected(http.HandlerFunc(s.handlers.Query))).Methods(http.MethodGet)

	// Observability endpoints stay open.
	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handlers.Stats).Methods(http.MethodGet)
	s.router.HandleFunc("/partitions", s.handlers.Partitions).Methods(http.MethodGet)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path,
			promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Admin routes: authenticated but not rate limited.
	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(auth.Authenticate)
	admin.HandleFunc("/cache/clear", s.handlers.ClearCache).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limit/{client_id}", s.handlers.ResetRateLimit).Methods(http.MethodDelete)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeNotFound, "endpoint not found", requestID)
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeMethodNotAllowed, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
