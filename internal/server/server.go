// Package server provides the HTTP server for the request-queue service.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/config"
	"github.com/ristijajohannesefestival/pela/internal/handler"
	"github.com/ristijajohannesefestival/pela/internal/health"
	"github.com/ristijajohannesefestival/pela/internal/metrics"
	"github.com/ristijajohannesefestival/pela/internal/middleware"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.Checker
	errorHandler *apperrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server. m may be nil when metrics are disabled.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	healthCheck *health.Checker,
	errorHandler *apperrors.Handler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	// Setup middleware chain
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS(s.cfg.CORS.AllowedOrigins),
	}

	if s.metrics != nil {
		middlewareChain = append(middlewareChain, metrics.MetricsMiddleware(s.metrics))
	}

	// Add rate limiter if enabled
	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	// Wrap the whole router so the chain also covers CORS preflights and the
	// not-found and method-not-allowed fallbacks, which mux route middleware
	// would skip.
	s.handler = middleware.Chain(middlewareChain...)(s.router)
	s.httpServer.Handler = s.handler

	// The hosting platform fronts the service under a fixed sub-path, so the
	// whole API answers both at the root and under the configured prefix.
	s.registerRoutes(s.router)
	if s.cfg.Server.PathPrefix != "" {
		s.registerRoutes(s.router.PathPrefix(s.cfg.Server.PathPrefix).Subrouter())
	}

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apperrors.ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apperrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})
}

// registerRoutes maps the API surface onto a router.
func (s *Server) registerRoutes(r *mux.Router) {
	// Health check endpoints
	r.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// Audience surface
	r.HandleFunc("/queue/{venueId}", s.handlers.GetQueue).Methods(http.MethodGet)
	r.HandleFunc("/now-playing/{venueId}", s.handlers.GetNowPlaying).Methods(http.MethodGet)
	r.HandleFunc("/vote", s.handlers.Vote).Methods(http.MethodPost)
	r.HandleFunc("/add-song", s.handlers.AddSong).Methods(http.MethodPost)
	r.HandleFunc("/search-spotify", s.handlers.SearchSpotify).Methods(http.MethodGet)
	r.HandleFunc("/init-demo/{venueId}", s.handlers.InitDemo).Methods(http.MethodPost)

	// Operator surface
	r.HandleFunc("/spotify/devices/{venueId}", s.handlers.ListDevices).Methods(http.MethodGet)
	r.HandleFunc("/spotify/select-device", s.handlers.SelectDevice).Methods(http.MethodPost)
	r.HandleFunc("/play-next/{venueId}", s.handlers.PlayNext).Methods(http.MethodPost)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
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

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	if s.handler != nil {
		return s.handler
	}
	return s.router
}
