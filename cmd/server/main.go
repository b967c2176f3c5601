// Package main is the entry point for the data analyzer server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, database connections, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// A project might have multiple executables (e.g., cmd/server, cmd/migrate, cmd/cli).
// Each gets its own directory with its own main.go.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/data-analyzer/internal/executor"
	"github.com/sakif/data-analyzer/internal/executor/docker"
	"github.com/sakif/data-analyzer/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	// os.Stdout means logs go to the terminal. slog.LevelDebug enables all log levels.
	//
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	// In production, you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// We read the port from the PORT environment variable, defaulting to 8080.
	// os.Getenv returns "" if the variable isn't set, so we check and provide a default.
	//
	// In a larger app, you'd use a config library (like viper) or a config struct
	// loaded from a YAML/TOML file. Env vars are simple and standard.
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// === 3. DATABASE PATH ===
	// Default to "data/analyzer.db" in the project root.
	// DB_PATH env var allows overriding for production deployments.
	// Example: DB_PATH=/var/lib/analyzer/prod.db
	dbPath := "data/analyzer.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	// Ensure the data directory exists.
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREDENTIAL SECRET ===
	// CRED_SECRET seals stored API keys. Generate one with:
	//   CRED_SECRET=$(openssl rand -hex 32)
	// Without it, a fixed development secret keeps local single-user setups
	// working — but keys sealed under it are only as safe as the binary.
	credSecret := os.Getenv("CRED_SECRET")
	if credSecret == "" {
		logger.Warn("CRED_SECRET not set — using an insecure development secret")
		credSecret = "insecure-local-development-secret"
	}

	// === 5. INITIALIZE THE SANDBOX ===
	// Docker is optional — the server starts without it, but analysis
	// requests will return 503 until a sandbox is available.
	sandboxCfg := docker.DefaultConfig()
	if image := os.Getenv("SANDBOX_IMAGE"); image != "" {
		sandboxCfg.Image = image
	}

	// The interface variable stays nil unless Docker actually came up — a
	// typed nil *docker.Executor inside the interface would NOT equal nil,
	// and the availability check downstream relies on that comparison.
	var exec executor.Executor
	if dockerExec, err := docker.New(sandboxCfg, logger); err != nil {
		logger.Warn("Docker sandbox unavailable — analyses will fail until it is",
			slog.String("error", err.Error()),
		)
	} else {
		defer dockerExec.Close()
		exec = dockerExec
	}

	// === 6. AUTH CONFIGURATION ===
	// JWT_SECRET must be a long random string. Use:
	//   JWT_SECRET=$(openssl rand -hex 32)
	// If unset, the server runs in single-user mode: no login, every request
	// acts as the local user.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set — running in single-user mode")
	}

	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	// === 7. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		CredentialSecret:   credSecret,
		GeminiModel:        os.Getenv("GEMINI_MODEL"),
		JWTSecret:          jwtSecret,
		GitHubClientID:     githubClientID,
		GitHubClientSecret: githubClientSecret,
		GitHubCallbackURL:  githubCallbackURL,
	}

	srv, err := server.New(cfg, logger, exec)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
