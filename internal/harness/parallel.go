package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/logging"
)

// RunParallelInsert starts cfg.Workers workers, each on its own connection
// at cfg.Isolation, and each performing cfg.RecordsPerWorker insert
// transactions one after another. A failed transaction is rolled back and
// counted; it never stops the worker. A connection failure aborts the run
// and stops the remaining workers after their current record.
func (h *Harness) RunParallelInsert(ctx context.Context, cfg ParallelConfig) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	cfg.Isolation, _ = ParseIsolationLevel(string(cfg.Isolation))

	runID := h.newRunID()
	logger := logging.WithRun(h.logger, runID, "parallel").With("isolation", cfg.Isolation.Slug())
	logger.Info("Starting parallel insert run",
		"workers", cfg.Workers,
		"records_per_worker", cfg.RecordsPerWorker,
		"delay", cfg.Delay,
		"hash_index", cfg.HashIndex,
	)

	if cfg.HashIndex {
		if err := h.prepareHashIndex(ctx, logger); err != nil {
			return Summary{RunID: runID}, err
		}
	}

	outcomes := make([]WorkerOutcome, cfg.Workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= cfg.Workers; w++ {
		w := w
		g.Go(func() error {
			outcome, err := h.runWorker(gctx, logging.WithWorker(logger, w), w, cfg)
			outcomes[w-1] = outcome
			return err
		})
	}
	err := g.Wait()

	summary := summarize(runID, cfg, outcomes, time.Since(start))
	if err != nil {
		logger.Error("Parallel insert run aborted", "error", err)
		return summary, err
	}

	logger.Info("Overall results",
		"total_attempted", summary.TotalAttempted,
		"total_successful", summary.TotalSuccessful,
		"total_exceptions", summary.TotalExceptions,
		"total_time", summary.TotalElapsed,
		"avg_per_record", summary.AveragePerRecord(),
	)
	return summary, nil
}

func (h *Harness) runWorker(ctx context.Context, logger *log.Logger, id int, cfg ParallelConfig) (WorkerOutcome, error) {
	outcome := WorkerOutcome{Worker: id}

	conn, err := h.connector.Session(ctx)
	if err != nil {
		return outcome, fmt.Errorf("worker %d: %w", id, err)
	}
	defer h.closeConn(ctx, logger, conn)

	if err := SetSessionIsolation(ctx, h.exec, conn, cfg.Isolation); err != nil {
		return outcome, fmt.Errorf("worker %d: failed to set isolation level: %w", id, err)
	}

	start := time.Now()
	for i := 1; i <= cfg.RecordsPerWorker && ctx.Err() == nil; i++ {
		customer := fmt.Sprintf("Customer %d_%d", id, i)
		if _, err := insertTransaction(ctx, logger, h.exec, conn, customer, DefaultProducts, cfg.Delay); err != nil {
			if ctx.Err() != nil {
				// Interrupted, not refused by the database.
				break
			}
			outcome.Exceptions++
			logger.Debug("Insert transaction failed", "record", i, "sqlstate", db.SQLState(err), "error", err)
			continue
		}
		outcome.SuccessfulInserts++
	}
	outcome.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		logger.Warn("Worker stopped early",
			"attempted", outcome.Attempted(),
			"successful_inserts", outcome.SuccessfulInserts,
			"exceptions", outcome.Exceptions,
		)
		return outcome, fmt.Errorf("worker %d: %w", id, err)
	}

	logger.Info("Worker completed",
		"successful_inserts", outcome.SuccessfulInserts,
		"exceptions", outcome.Exceptions,
		"total_time", outcome.Elapsed,
		"avg_per_record", outcome.AveragePerRecord(),
	)
	return outcome, nil
}

func (h *Harness) prepareHashIndex(ctx context.Context, logger *log.Logger) error {
	conn, err := h.connector.Session(ctx)
	if err != nil {
		return err
	}
	defer h.closeConn(ctx, logger, conn)

	if err := CreateHashIndex(ctx, h.exec, conn); err != nil {
		return fmt.Errorf("failed to create hash index: %w", err)
	}
	logger.Info("Created hash index on transactions(id)")
	return nil
}
