// Package server exposes the report compiler, catalog and saved-report CRUD
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianlabs/dealdesk/analytics"
	"github.com/meridianlabs/dealdesk/api/metrics"
	"github.com/meridianlabs/dealdesk/api/reports"
)

// Config holds the server configuration.
type Config struct {
	Logger   *slog.Logger
	Executor *analytics.Executor
	Registry *analytics.Registry
	Reports  *reports.Store
	Bind     string
	Port     int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Executor == nil {
		return errors.New("executor is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	if cfg.Reports == nil {
		return errors.New("reports store is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return nil
}

// Server is the HTTP server for the analytics API.
type Server struct {
	router   *chi.Mux
	srv      *http.Server
	log      *slog.Logger
	executor *analytics.Executor
	registry *analytics.Registry
	reports  *reports.Store
	limiter  *RateLimiter
}

// New creates the HTTP server and wires up all routes.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Logger,
		executor: cfg.Executor,
		registry: cfg.Registry,
		reports:  cfg.Reports,
		limiter:  NewQueryRateLimiter(),
	}

	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/catalog", s.handleCatalog)
			r.With(RateLimitMiddleware(s.limiter)).Post("/run", s.handleRunReport)

			r.Route("/saved", func(r chi.Router) {
				r.Get("/", s.handleListSaved)
				r.Post("/", s.handleCreateSaved)
				r.Get("/{id}", s.handleGetSaved)
				r.Put("/{id}", s.handleUpdateSaved)
				r.Delete("/{id}", s.handleDeleteSaved)
				r.Post("/{id}/duplicate", s.handleDuplicateSaved)
				r.With(RateLimitMiddleware(s.limiter)).Post("/{id}/run", s.handleRunSaved)
			})
		})
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
