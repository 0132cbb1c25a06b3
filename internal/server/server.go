// Package server provides the HTTP server and routing for factorlens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/metrics"
	"github.com/aristath/factorlens/internal/modules/analysis"
	analysishandlers "github.com/aristath/factorlens/internal/modules/analysis/handlers"
	"github.com/aristath/factorlens/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	HistoryDB *database.DB
	CacheDB   *database.DB
	Config    *config.Config
	Analysis  *analysis.Service
	Metrics   *metrics.Registry    // optional
	Scheduler *scheduler.Scheduler // optional, enables the job endpoints
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	historyDB      *database.DB
	cacheDB        *database.DB
	cfg            *config.Config
	analysis       *analysis.Service
	metrics        *metrics.Registry
	systemHandlers *SystemHandlers
	started        time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		historyDB: cfg.HistoryDB,
		cacheDB:   cfg.CacheDB,
		cfg:       cfg.Config,
		analysis:  cfg.Analysis,
		metrics:   cfg.Metrics,
		started:   time.Now(),
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Config, cfg.Analysis, cfg.Scheduler, cfg.HistoryDB, cfg.CacheDB)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // runs of large universes
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging and request metrics
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(90 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		analysishandlers.NewHandler(s.analysis, s.log).RegisterRoutes(r)
		s.systemHandlers.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.RecordHTTP(route, r.Method, ww.Status(), duration)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
