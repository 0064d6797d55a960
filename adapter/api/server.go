// Package api exposes the weighted hierarchy over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	server  *http.Server
	logger  *slog.Logger
	handler *HierarchyHandler
	health  *observability.HealthRegistry
	metrics observability.Metrics
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. health and metrics may be nil.
func NewServer(cfg ServerConfig, handler *HierarchyHandler, health *observability.HealthRegistry, metrics observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		handler: handler,
		health:  health,
		metrics: metrics,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(instrument(s.logger, s.metrics))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		h := s.handler

		r.Post("/milestones", h.CreateMilestone)
		r.Post("/milestones/import", h.ImportPlan)
		r.Get("/projects/{id}/milestones", h.ListMilestones)
		r.Route("/milestones/{id}", func(r chi.Router) {
			r.Get("/hierarchy", h.GetHierarchy)
			r.Get("/tasks", h.ListTasks)
			r.Get("/plan", h.ExportPlan)
			r.Post("/sub-milestones", h.AddSubMilestone)
			r.Delete("/", h.DeleteMilestone)
		})
		r.Delete("/sub-milestones/{id}", h.RemoveSubMilestone)
		r.Get("/nodes/{id}/capacity", h.GetCapacity)

		r.Post("/action-items/milestone/task", h.AddMilestoneTask)
		r.Post("/action-items/sub-milestone-task", h.AddSubMilestoneTask)
		r.Route("/action-items/{id}", func(r chi.Router) {
			r.Post("/approval", h.DecideApproval)
			r.Patch("/status", h.UpdateStatus)
			r.Patch("/progress", h.UpdateProgress)
			r.Post("/submit", h.SubmitCompletion)
			r.Post("/review", h.ReviewCompletion)
			r.Get("/contributions", h.ListContributions)
			r.Delete("/", h.RemoveTask)
		})

		r.Get("/users/{id}/contributions", h.ListUserContributions)
		r.Post("/contributions/preview", h.PreviewContribution)
		r.Get("/kpis/approved-for-linking", h.ApprovedKPIs)
	})
}

// Handler returns the root http.Handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	health := s.health.GetOverallHealth(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Start starts the API server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}
