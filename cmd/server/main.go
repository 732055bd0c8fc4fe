package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/VoidMesh/txlab/internal/api"
	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
	"github.com/VoidMesh/txlab/internal/logging"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logging
	logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.GetLogger()
	logger.Debug("Configuration loaded", "server_port", cfg.Server.Port, "log_level", cfg.Logging.Level)

	provider := db.NewProvider(cfg.Database)
	ctx := context.Background()

	// Run migrations
	if cfg.Database.MigrateOnStart {
		logger.Debug("Running database migrations")
		if _, err := db.Migrate(ctx, provider, cfg.Database.MigrationsSource); err != nil {
			logger.Fatal("Failed to run database migrations", "error", err)
		}
	}

	// Initialize API handlers
	exec := db.NewLoggingExecutor(db.NewExecutor(), logger)
	h := harness.New(provider, exec)
	handler := api.NewHandler(h, migrationStatus(provider, cfg.Database), cfg.Harness)
	router := api.SetupRoutes(handler)
	logger.Debug("API routes configured")

	// Create HTTP server
	logger.Debug("Creating HTTP server", "port", cfg.Server.Port, "read_timeout", cfg.Server.ReadTimeout, "write_timeout", cfg.Server.WriteTimeout, "idle_timeout", cfg.Server.IdleTimeout)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting txlab API server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
		logger.Debug("Server stopped listening")
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// In-flight experiment runs finish or are cut off at the shutdown timeout.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	} else {
		logger.Debug("Server shutdown completed gracefully")
	}

	logger.Info("Server exited")
}

// migrationStatus opens a short-lived migrator per request.
func migrationStatus(provider *db.Provider, cfg config.DatabaseConfig) api.StatusFunc {
	return func(ctx context.Context) (db.MigrationStatus, error) {
		migrator, err := db.NewPostgresMigrator(ctx, provider, cfg.MigrationsSource)
		if err != nil {
			return db.MigrationStatus{}, err
		}
		defer func() {
			if err := migrator.Close(); err != nil {
				logging.GetLogger().Warn("Failed to close migrator", "error", err)
			}
		}()
		return migrator.Status()
	}
}
