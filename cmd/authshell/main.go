// authshell - local authentication shell daemon
//
// authshell fronts an upstream authentication service for a local
// rendering layer. It owns the login state machine, persists the session
// reference across restarts, recovers sessions at startup, and answers
// route-access questions. The rendering layer talks to it over a
// loopback HTTP API and a WebSocket state stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/halcyonhq/authshell/migrations"

	"github.com/halcyonhq/authshell/internal/api"
	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/authclient"
	"github.com/halcyonhq/authshell/internal/boundary"
	"github.com/halcyonhq/authshell/internal/infrastructure/config"
	"github.com/halcyonhq/authshell/internal/infrastructure/database"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
	"github.com/halcyonhq/authshell/internal/recovery"
	"github.com/halcyonhq/authshell/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting authshell",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the session vault database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Session vault and upstream auth client
	vault := session.NewVault(db.DB)
	client := authclient.New(cfg.AuthService.BaseURL, cfg.GetAuthServiceTimeout(), log)
	log.Info("upstream auth service configured",
		"base_url", cfg.AuthService.BaseURL,
		"timeout_seconds", cfg.AuthService.Timeout,
	)

	// Auth state machine
	ctrl := auth.NewController(client, vault, log)
	ctrl.SetCooldown(
		time.Duration(cfg.Security.CooldownBase)*time.Second,
		time.Duration(cfg.Security.CooldownMax)*time.Second,
	)

	// Session recovery, kicked off through the boundary so startup and
	// shutdown follow the same mount/unmount path as embedded use.
	recSvc := recovery.New(vault, client, log)
	gate := boundary.New(ctrl, recSvc, log)
	gate.Mount(ctx)
	defer gate.Unmount()
	log.Info("session recovery started")

	// Local API surface
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Controller: ctrl,
		Recovery:   recSvc,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("authshell stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AUTHSHELL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AUTHSHELL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure components are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
