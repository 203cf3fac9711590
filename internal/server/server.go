// Package server provides the HTTP server and routing for the forecasting
// engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/foresight/internal/di"
	backtestinghandlers "github.com/aristath/foresight/internal/modules/backtesting/handlers"
	historyhandlers "github.com/aristath/foresight/internal/modules/history/handlers"
	monitoringhandlers "github.com/aristath/foresight/internal/modules/monitoring/handlers"
	planninghandlers "github.com/aristath/foresight/internal/modules/planning/handlers"
	portfoliohandlers "github.com/aristath/foresight/internal/modules/portfolio/handlers"
	riskhandlers "github.com/aristath/foresight/internal/modules/risk/handlers"
)

// requestTimeout bounds every API request except backtest runs
const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	container *di.Container
	started   time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	appCfg := cfg.Container.Config
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		container: cfg.Container,
		started:   time.Now(),
	}

	s.setupMiddleware(appCfg.DevMode, appCfg.CORSOrigins)
	s.setupRoutes()

	// Backtest responses are written once the whole run finishes
	writeTimeout := requestTimeout + 15*time.Second
	if bt := appCfg.BacktestTimeout + 15*time.Second; bt > writeTimeout {
		writeTimeout = bt
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", appCfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool, origins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging and request metrics
	s.router.Use(s.loggingMiddleware)

	// CORS
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
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
	c := s.container
	cfg := c.Config

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", c.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.handleSystemStatus)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs/{name}", s.handleTriggerJob)

		// Backtest runs carry their own deadline
		backtestinghandlers.NewHandler(c.Backtesting, c.BacktestRepo, cfg.BacktestTimeout, s.log).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			portfoliohandlers.NewHandler(c.PortfolioService, s.log).RegisterRoutes(r)
			planninghandlers.NewHandler(c.PlanningService, s.log).RegisterRoutes(r)
			monitoringhandlers.NewHandler(c.Monitor, s.log).RegisterRoutes(r)
			riskhandlers.NewHandler(c.PlanningService, c.MarketData, riskhandlers.Config{
				MarketSymbol: cfg.MarketSymbol,
				LookbackDays: cfg.LookbackDays,
				RiskFreeRate: cfg.RiskFreeRate,
			}, s.log).RegisterRoutes(r)
			historyhandlers.NewHandler(c.HistoryStore, c.Syncer, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
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

		elapsed := time.Since(start)
		if s.container.Metrics != nil {
			s.container.Metrics.ObserveHTTP(r.Method, routeLabel(r), ww.Status(), elapsed)
		}

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// routeLabel is the matched chi pattern without its trailing slash, or the
// raw path when nothing matched
func routeLabel(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
}
