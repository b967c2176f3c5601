// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//   config, logger, docker executor → passed to Server
//   Server.New() creates: sqlite.DB → services → handlers
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/data-analyzer/internal/auth"
	"github.com/sakif/data-analyzer/internal/executor"
	"github.com/sakif/data-analyzer/internal/generator"
	"github.com/sakif/data-analyzer/internal/handler"
	"github.com/sakif/data-analyzer/internal/middleware"
	sqliteRepo "github.com/sakif/data-analyzer/internal/repository/sqlite"
	"github.com/sakif/data-analyzer/internal/service"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from files/env vars in one place
type Config struct {
	Port   int
	DBPath string // path to the SQLite database file

	// CredentialSecret seals stored API keys. Changing it invalidates every
	// key on file — users would have to save theirs again.
	CredentialSecret string

	// GeminiModel overrides the default completion model when set.
	GeminiModel string

	// JWTSecret enables multi-user mode with GitHub login when set together
	// with the GitHub OAuth settings. When empty, the server runs in
	// single-user mode: no login, every request acts as the local user.
	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. When the server shuts down we
// must close it to flush the WAL and release the file lock — handled in
// Start() during graceful shutdown. The executor is owned by main, which
// created it.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	exec   executor.Executor
}

// New creates a new Server with the given config.
//
// exec may be nil when Docker is unavailable — the server still starts, and
// analysis requests report the sandbox as unavailable.
func New(cfg Config, logger *slog.Logger, exec executor.Executor) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		exec:   exec,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/datasets               → upload a CSV
// GET    /api/datasets               → list uploads
// GET    /api/datasets/{id}          → one upload's metadata
// GET    /api/datasets/{id}/preview  → schema summary + first rows
// DELETE /api/datasets/{id}          → remove an upload
// POST   /api/analyses               → run the pipeline
// GET    /api/analyses               → run history
// GET    /api/analyses/{id}          → one stored run
// GET    /api/analyses/{id}/image    → the run's PNG
// DELETE /api/analyses/{id}          → remove a run
// PUT    /api/credential             → save the AI API key
// GET    /api/credential             → key status
// DELETE /api/credential             → remove the key
//
// With auth enabled, /auth/github/* and /api/me join the table and every
// /api route requires a valid JWT cookie.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === AMBIENT PIECES ===
	keys, err := auth.NewKeyCrypt(s.config.CredentialSecret)
	if err != nil {
		return fmt.Errorf("creating credential cipher: %w", err)
	}

	gen := generator.New(s.config.GeminiModel, 0, s.logger)

	// === SERVICES ===
	// s.db implements every repository interface, so the same value feeds
	// each service with a different hat on.
	datasetService := service.NewDatasetService(s.db, s.logger)
	credentialService := service.NewCredentialService(s.db, keys, gen, s.logger)
	analysisService := service.NewAnalysisService(s.db, s.db, s.db, keys, gen, s.exec, s.logger)

	// === HANDLERS ===
	datasetHandler := handler.NewDatasetHandler(datasetService, s.logger)
	analysisHandler := handler.NewAnalysisHandler(analysisService, s.logger)
	credentialHandler := handler.NewCredentialHandler(credentialService, s.logger)

	// === AUTH MODE ===
	// With a JWT secret, /api is gated by RequireAuth and the GitHub OAuth
	// routes are mounted. Without one, LocalUser stamps every request with
	// the fixed local identity — the handlers can't tell the difference.
	apiAuth := auth.LocalUser
	if s.config.JWTSecret != "" {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		apiAuth = auth.RequireAuth(tokens)

		github := auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
		authHandler := handler.NewAuthHandler(github, tokens, s.db, s.logger)

		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		s.router.Post("/auth/logout", authHandler.HandleLogout)

		s.router.Group(func(r chi.Router) {
			r.Use(apiAuth)
			r.Get("/api/me", authHandler.HandleMe)
		})
	} else {
		s.logger.Info("authentication disabled — running in single-user mode")
	}

	// === API ROUTES ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(apiAuth)

		r.Post("/datasets", datasetHandler.HandleUpload)
		r.Get("/datasets", datasetHandler.HandleList)
		r.Get("/datasets/{id}", datasetHandler.HandleGet)
		r.Get("/datasets/{id}/preview", datasetHandler.HandlePreview)
		r.Delete("/datasets/{id}", datasetHandler.HandleDelete)

		r.Post("/analyses", analysisHandler.HandleAnalyze)
		r.Get("/analyses", analysisHandler.HandleList)
		r.Get("/analyses/{id}", analysisHandler.HandleGet)
		r.Get("/analyses/{id}/image", analysisHandler.HandleImage)
		r.Delete("/analyses/{id}", analysisHandler.HandleDelete)

		r.Put("/credential", credentialHandler.HandleSave)
		r.Get("/credential", credentialHandler.HandleStatus)
		r.Delete("/credential", credentialHandler.HandleDelete)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout — an analysis with
//    a slow model call can legitimately take that long)
// 3. Close the database connection (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// WriteTimeout has to cover a full pipeline run: model call plus
		// sandbox execution. Two minutes bounds the worst case.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("sandbox", s.exec != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
