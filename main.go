package main

import (
	"context"
	"fmt"
	"os"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/logging"
)

// main bootstraps the schema and prints the transactions table.
func main() {
	cfg := config.Load()
	logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.GetLogger()
	ctx := context.Background()

	provider := db.NewProvider(cfg.Database)

	report, err := db.Migrate(ctx, provider, cfg.Database.MigrationsSource)
	if err != nil {
		logger.Fatal("Failed to run database migrations", "error", err)
	}
	logger.Debug("Schema ready", "version", report.VersionAfter, "applied", report.Applied)

	session := db.NewSession(provider, db.NewLoggingExecutor(db.NewExecutor(), logger))
	if err := session.Open(ctx); err != nil {
		logger.Fatal("Failed to connect", "error", err)
	}

	result, err := session.Execute(ctx, "SELECT * FROM transactions")
	if err != nil {
		if closeErr := session.Close(ctx); closeErr != nil {
			logger.Warn("Failed to disconnect", "error", closeErr)
		}
		logger.Fatal("Failed to query transactions", "error", err)
	}
	for _, row := range result {
		fmt.Fprintln(os.Stdout, formatRow(row))
	}

	if err := session.Close(ctx); err != nil {
		logger.Warn("Failed to disconnect", "error", err)
	}
	logger.Debug("Done", "rows", result.Len())
}

func formatRow(row db.Row) string {
	return fmt.Sprintf("%v\t%v", row["id"], row["customer_name"])
}
