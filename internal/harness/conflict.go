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

const (
	seedCustomer         = "Initial Customer"
	insertCustomerSQL    = `INSERT INTO transactions (customer_name) VALUES ($1)`
	beginSerializableSQL = `BEGIN ISOLATION LEVEL SERIALIZABLE`
)

// ConflictParties are the customers inserted by the two sides.
var ConflictParties = []string{"Customer A", "Customer B"}

// conflictPoints are the rendezvous points shared by both parties.
type conflictPoints struct {
	read     *Barrier
	start    *Gate
	inserted *Barrier
}

// RunConflict forces a write skew between two serializable transactions.
// Both read the table, neither inserts until both have read, and neither
// commits until both have inserted. Postgres must then abort exactly one.
// Statement errors are counted, not returned; only connection failures and
// setup errors abort the scenario.
func (h *Harness) RunConflict(ctx context.Context) (ConflictReport, error) {
	report := ConflictReport{RunID: h.newRunID()}
	logger := logging.WithRun(h.logger, report.RunID, "conflict")

	setup, err := h.connector.Session(ctx)
	if err != nil {
		return report, err
	}
	defer h.closeConn(ctx, logger, setup)

	if _, err := h.exec.Execute(ctx, setup, insertCustomerSQL, seedCustomer); err != nil {
		return report, fmt.Errorf("failed to seed initial row: %w", err)
	}
	if report.InitialRows, err = CountTransactions(ctx, h.exec, setup); err != nil {
		return report, fmt.Errorf("failed to count initial rows: %w", err)
	}
	logger.Info("Starting conflict scenario", "initial_rows", report.InitialRows)

	points := conflictPoints{
		read:     NewBarrier(len(ConflictParties)),
		start:    NewGate(),
		inserted: NewBarrier(len(ConflictParties)),
	}
	results := make([]PartyResult, len(ConflictParties))
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range ConflictParties {
		i, name := i, name
		g.Go(func() error {
			result, err := h.runParty(gctx, logger.With("party", name), name, points)
			results[i] = result
			return err
		})
	}
	g.Go(func() error {
		// Release both parties at once after both have read.
		if err := points.read.Wait(gctx); err == nil {
			points.start.Open()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("Conflict scenario aborted", "error", err)
		return report, err
	}
	report.Elapsed = time.Since(started)
	report.Parties = results

	for _, r := range results {
		if r.Committed {
			report.Committed++
		} else {
			report.Exceptions++
		}
	}

	if report.FinalRows, err = CountTransactions(ctx, h.exec, setup); err != nil {
		return report, fmt.Errorf("failed to count final rows: %w", err)
	}

	logger.Info("Conflict scenario results",
		"committed", report.Committed,
		"exceptions", report.Exceptions,
		"initial_rows", report.InitialRows,
		"final_rows", report.FinalRows,
		"total_time", report.Elapsed,
	)
	return report, nil
}

func (h *Harness) runParty(ctx context.Context, logger *log.Logger, name string, points conflictPoints) (PartyResult, error) {
	result := PartyResult{Name: name}
	p := newParty(points.read, points.inserted)
	defer p.release()

	conn, err := h.connector.Session(ctx)
	if err != nil {
		return result, fmt.Errorf("%s: %w", name, err)
	}
	defer h.closeConn(ctx, logger, conn)

	if err := h.conflictTransaction(ctx, conn, p, name, points); err != nil {
		p.release()
		rollback(ctx, logger, h.exec, conn)
		result.Error = err.Error()
		result.SerializationFailure = db.IsSerializationFailure(err)
		logger.Info("Party exception", "sqlstate", db.SQLState(err), "error", err)
		return result, nil
	}

	result.Committed = true
	logger.Info("Party committed")
	return result, nil
}

// conflictTransaction is the exact protocol of one party: read, signal
// ready, wait for the peer, insert, wait for the peer's insert, commit.
func (h *Harness) conflictTransaction(ctx context.Context, conn db.Querier, p *party, name string, points conflictPoints) error {
	if _, err := h.exec.Execute(ctx, conn, beginSerializableSQL); err != nil {
		return err
	}
	if _, err := CountTransactions(ctx, h.exec, conn); err != nil {
		return err
	}
	if err := p.await(ctx, points.read); err != nil {
		return err
	}
	if err := points.start.Wait(ctx); err != nil {
		return err
	}
	if _, err := h.exec.Execute(ctx, conn, insertCustomerSQL, name); err != nil {
		return err
	}
	if err := p.await(ctx, points.inserted); err != nil {
		return err
	}
	_, err := h.exec.Execute(ctx, conn, "COMMIT")
	return err
}
