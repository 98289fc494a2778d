// Package server exposes the engine over HTTP: read endpoints for
// prices, signals, portfolio, and performance, plus manual triggers
// for jobs and tuning.
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

	"github.com/atlasquant/signal-engine/internal/modules/market"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
	"github.com/atlasquant/signal-engine/internal/modules/tuning"
	"github.com/atlasquant/signal-engine/internal/reliability"
	"github.com/atlasquant/signal-engine/internal/scheduler"
)

// TuningRunner runs a tuning cycle on demand.
type TuningRunner interface {
	RunMonthlyTuning(effectiveDate string) (*tuning.Outcome, error)
}

// Config holds server configuration.
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	Markets     *market.Repository
	Signals     *signal.Repository
	Trades      *trading.Repository
	Portfolio   *portfolio.Repository
	Metrics     *performance.Repository
	Configs     *strategyconfig.Store
	Constraints *strategyconfig.ConstraintsStore
	TuningRuns  *tuning.Repository
	Tuner       TuningRunner
	Monitor     *reliability.SystemMonitor
	Scheduler   *scheduler.Scheduler
}

// Server represents the HTTP server.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	markets     *market.Repository
	signals     *signal.Repository
	trades      *trading.Repository
	portfolio   *portfolio.Repository
	metrics     *performance.Repository
	configs     *strategyconfig.Store
	constraints *strategyconfig.ConstraintsStore
	tuningRuns  *tuning.Repository
	tuner       TuningRunner
	monitor     *reliability.SystemMonitor
	scheduler   *scheduler.Scheduler
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		markets:     cfg.Markets,
		signals:     cfg.Signals,
		trades:      cfg.Trades,
		portfolio:   cfg.Portfolio,
		metrics:     cfg.Metrics,
		configs:     cfg.Configs,
		constraints: cfg.Constraints,
		tuningRuns:  cfg.TuningRuns,
		tuner:       cfg.Tuner,
		monitor:     cfg.Monitor,
		scheduler:   cfg.Scheduler,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/stats", s.handleSystemStats)

		r.Route("/prices", func(r chi.Router) {
			r.Get("/latest", s.handleLatestPrices)
			r.Get("/history/{symbol}", s.handlePriceHistory)
		})

		r.Route("/signals", func(r chi.Router) {
			r.Get("/latest", s.handleLatestSignal)
			r.Get("/history", s.handleSignalHistory)
		})

		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/trades/history", s.handleTradeHistory)
		r.Get("/performance", s.handlePerformance)

		r.Route("/config", func(r chi.Router) {
			r.Get("/active", s.handleActiveConfig)
			r.Get("/versions", s.handleConfigVersions)
		})

		r.Route("/tuning", func(r chi.Router) {
			r.Get("/runs", s.handleTuningRuns)
			r.Post("/run", s.handleRunTuning)
		})

		r.Post("/jobs/{name}/run", s.handleRunJob)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
