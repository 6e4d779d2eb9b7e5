// Package server provides the HTTP server and routing for the portfolio
// service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/config"
	"github.com/hsnsmii/finport/internal/domain"
	"github.com/hsnsmii/finport/internal/modules/pipeline"
	"github.com/hsnsmii/finport/internal/modules/risk"
	"github.com/hsnsmii/finport/internal/modules/snapshots"
)

// Config holds server configuration and dependencies.
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	AppConfig   *config.Config
	Runner      *pipeline.Runner
	History     domain.HistorySource
	RiskService *risk.Service
	Snapshots   *snapshots.Repository
}

// Server represents the HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	handlers *Handlers
	stream   *StreamHandler
	system   *SystemHandlers
	port     int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	handlers := NewHandlers(cfg.Runner, cfg.History, cfg.RiskService, cfg.Snapshots, cfg.AppConfig, cfg.Log)
	stream := NewStreamHandler(cfg.Runner.State(), cfg.Log)
	system := NewSystemHandlers(cfg.Log)

	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		handlers: handlers,
		stream:   stream,
		system:   system,
		port:     cfg.Port,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}
	if devMode {
		corsOptions.AllowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(corsOptions))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.system.HandleStatus)

		r.Route("/portfolio/{watchlistID}", func(r chi.Router) {
			r.Get("/", s.handlers.HandleGetPortfolio)
			r.Post("/refresh", s.handlers.HandleRefresh)
			r.Get("/history", s.handlers.HandleGetHistory)
		})

		r.Get("/indicators/{symbol}", s.handlers.HandleGetIndicators)
		r.Get("/risk/{symbol}", s.handlers.HandleGetRisk)

		r.Get("/stream", s.stream.HandleStream)
	})
}

// Router returns the chi router (used by tests).
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("HTTP server listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
