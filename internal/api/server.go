// Package api serves the reconciliation engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/expense-reconciler/internal/api/handlers"
	"github.com/eshaffer321/expense-reconciler/internal/api/middleware"
	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/application/service"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	service    *reconcile.Service
	jobs       *service.JobService
}

// NewServer creates a new API server.
// If jobs is nil, the background job endpoints are not registered.
func NewServer(cfg Config, repo storage.Repository, svc *reconcile.Service, jobs *service.JobService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:  cfg,
		router:  router,
		logger:  logger,
		repo:    repo,
		service: svc,
		jobs:    jobs,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
	}))
	s.router.Use(middleware.Logging(s.logger, "/health"))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", handlers.Health)

	api := s.router.Group("/api")

	records := handlers.NewRecordsHandler(s.repo, s.service, s.logger)
	api.GET("/transactions", records.ListTransactions)
	api.POST("/transactions", records.ImportTransactions)
	api.GET("/expenses", records.ListExpenses)
	api.POST("/expenses", records.ImportExpenses)

	rec := handlers.NewReconcileHandler(s.repo, s.service, s.logger)
	api.GET("/candidates", rec.Candidates)
	api.POST("/reconcile", rec.Commit)
	api.POST("/reconcile/auto", rec.AutoReconcile)
	api.DELETE("/reconcile/:transactionId", rec.Revert)
	api.GET("/reconciliations", rec.ListReconciliations)
	api.GET("/reconciliations/:transactionId", rec.GetReconciliation)

	runs := handlers.NewRunsHandler(s.repo, s.logger)
	api.GET("/runs", runs.List)
	api.GET("/runs/:id", runs.Get)

	if s.jobs != nil {
		jobs := handlers.NewJobsHandler(s.jobs, s.service.Engine().Config(), s.logger)
		api.POST("/jobs/auto", jobs.Start)
		api.GET("/jobs", jobs.List)
		api.GET("/jobs/:id", jobs.Get)
		api.DELETE("/jobs/:id", jobs.Cancel)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous auto-reconcile can be slow
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler for testing.
func (s *Server) Router() http.Handler {
	return s.router
}
