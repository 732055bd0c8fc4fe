package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/logging"
)

const (
	insertTransactionSQL = `INSERT INTO transactions (customer_name) VALUES ($1) RETURNING id`
	countTransactionsSQL = `SELECT COUNT(*) AS count FROM transactions`
	createHashIndexSQL   = `CREATE INDEX IF NOT EXISTS transactions_id_hash_idx ON transactions USING HASH (id)`
)

// DefaultProducts are the two detail rows written for every transaction.
var DefaultProducts = []string{"Product A", "Product B"}

// insertDetailsSQL builds a multi-row insert of n details for one parent,
// with the parent id as $1 and the product names as $2..$n+1.
func insertDetailsSQL(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO transaction_details (transaction_id, product_name) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($1, $%d)", i+2)
	}
	return b.String()
}

// SetSessionIsolation sets the isolation level of every later transaction
// on the connection.
func SetSessionIsolation(ctx context.Context, exec db.StatementExecutor, conn db.Querier, level IsolationLevel) error {
	parsed, err := ParseIsolationLevel(string(level))
	if err != nil {
		return err
	}
	_, err = exec.Execute(ctx, conn, "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL "+string(parsed))
	return err
}

// InsertTransaction writes one parent row and its detail rows in a single
// transaction: BEGIN, insert parent, insert details, sleep delay, COMMIT.
// On any failure the transaction is rolled back and the error returned.
func InsertTransaction(ctx context.Context, exec db.StatementExecutor, conn db.Querier, customer string, products []string, delay time.Duration) (int64, error) {
	return insertTransaction(ctx, logging.GetLogger(), exec, conn, customer, products, delay)
}

func insertTransaction(ctx context.Context, logger *log.Logger, exec db.StatementExecutor, conn db.Querier, customer string, products []string, delay time.Duration) (int64, error) {
	if _, err := exec.Execute(ctx, conn, "BEGIN"); err != nil {
		rollback(ctx, logger, exec, conn)
		return 0, err
	}

	id, err := insertWithDetails(ctx, exec, conn, customer, products)
	if err == nil {
		err = sleep(ctx, delay)
	}
	if err == nil {
		_, err = exec.Execute(ctx, conn, "COMMIT")
	}
	if err != nil {
		rollback(ctx, logger, exec, conn)
		return 0, err
	}
	return id, nil
}

func insertWithDetails(ctx context.Context, exec db.StatementExecutor, conn db.Querier, customer string, products []string) (int64, error) {
	result, err := exec.Execute(ctx, conn, insertTransactionSQL, customer)
	if err != nil {
		return 0, err
	}
	id, err := result.Int64(0, "id")
	if err != nil {
		return 0, fmt.Errorf("failed to read generated id: %w", err)
	}

	if len(products) == 0 {
		return id, nil
	}
	args := make([]any, 0, len(products)+1)
	args = append(args, id)
	for _, p := range products {
		args = append(args, p)
	}
	if _, err := exec.Execute(ctx, conn, insertDetailsSQL(len(products)), args...); err != nil {
		return 0, err
	}
	return id, nil
}

// rollback still runs when ctx is cancelled so the connection is left idle.
func rollback(ctx context.Context, logger *log.Logger, exec db.StatementExecutor, conn db.Querier) {
	if _, err := exec.Execute(context.WithoutCancel(ctx), conn, "ROLLBACK"); err != nil {
		logger.Warn("Rollback failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CountTransactions returns the number of rows in transactions.
func CountTransactions(ctx context.Context, exec db.StatementExecutor, conn db.Querier) (int64, error) {
	result, err := exec.Execute(ctx, conn, countTransactionsSQL)
	if err != nil {
		return 0, err
	}
	return result.Int64(0, "count")
}

// CreateHashIndex adds a hash index on transactions(id).
func CreateHashIndex(ctx context.Context, exec db.StatementExecutor, conn db.Querier) error {
	_, err := exec.Execute(ctx, conn, createHashIndexSQL)
	return err
}

// Explain returns the plan of a statement, one line per plan row.
func Explain(ctx context.Context, exec db.StatementExecutor, conn db.Querier, sql string, args ...any) ([]string, error) {
	result, err := exec.Execute(ctx, conn, "EXPLAIN "+sql, args...)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, result.Len())
	for i := range result {
		line, err := result.String(i, "QUERY PLAN")
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ExplainDetailsInsert returns the plan of the detail insert issued for a
// parent id.
func ExplainDetailsInsert(ctx context.Context, exec db.StatementExecutor, conn db.Querier, transactionID int64, products []string) ([]string, error) {
	args := make([]any, 0, len(products)+1)
	args = append(args, transactionID)
	for _, p := range products {
		args = append(args, p)
	}
	return Explain(ctx, exec, conn, insertDetailsSQL(len(products)), args...)
}
