package integration

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
	"github.com/VoidMesh/txlab/internal/testutil"
)

func TestExecute_InsertThenSelect(t *testing.T) {
	provider := testutil.RequireDatabase(t)
	ctx := context.Background()

	session := db.NewSession(provider, db.NewExecutor())
	require.NoError(t, session.Open(ctx))
	defer session.Close(ctx)

	result, err := session.Execute(ctx, "INSERT INTO transactions (customer_name) VALUES ('Hans 1')")
	require.NoError(t, err)
	affected, err := result.AffectedRows()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := session.Execute(ctx, "SELECT * FROM transactions")
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	name, err := rows.String(0, "customer_name")
	require.NoError(t, err)
	assert.Equal(t, "Hans 1", name)
	id, err := rows.Int64(0, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestInsertTransaction_ParentWithTwoDetails(t *testing.T) {
	provider := testutil.RequireDatabase(t)
	ctx := context.Background()
	exec := db.NewExecutor()

	conn, err := provider.Session(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	id, err := harness.InsertTransaction(ctx, exec, conn, "Hans 1", harness.DefaultProducts, 0)
	require.NoError(t, err)

	parents, err := exec.Execute(ctx, conn, "SELECT * FROM transactions")
	require.NoError(t, err)
	require.Equal(t, 1, parents.Len())
	name, err := parents.String(0, "customer_name")
	require.NoError(t, err)
	assert.Equal(t, "Hans 1", name)
	parentID, err := parents.Int64(0, "id")
	require.NoError(t, err)
	assert.Equal(t, id, parentID)

	children, err := exec.Execute(ctx, conn, "SELECT transaction_id, product_name FROM transaction_details")
	require.NoError(t, err)
	require.Equal(t, 2, children.Len())
	products := make([]string, 0, children.Len())
	for i := range children {
		txID, err := children.Int64(i, "transaction_id")
		require.NoError(t, err)
		assert.Equal(t, id, txID)
		product, err := children.String(i, "product_name")
		require.NoError(t, err)
		products = append(products, product)
	}
	sort.Strings(products)
	assert.Equal(t, []string{"Product A", "Product B"}, products)
}

func TestExecute_EmptyRowSet(t *testing.T) {
	provider := testutil.RequireDatabase(t)
	ctx := context.Background()

	conn, err := provider.Session(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	rows, err := db.NewExecutor().Execute(ctx, conn, "SELECT * FROM transactions WHERE customer_name = 'nobody'")
	require.NoError(t, err)
	assert.Equal(t, 0, rows.Len())
}

func TestExecute_TransactionControlIsPassedThrough(t *testing.T) {
	provider := testutil.RequireDatabase(t)
	ctx := context.Background()
	exec := db.NewExecutor()

	conn, err := provider.Session(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	for _, sql := range []string{
		"BEGIN",
		"INSERT INTO transactions (customer_name) VALUES ('rolled back')",
		"ROLLBACK",
	} {
		_, err := exec.Execute(ctx, conn, sql)
		require.NoError(t, err, sql)
	}

	assert.Equal(t, int64(0), testutil.Count(t, provider, "transactions"))
}

func TestExecute_ForeignKeyViolation(t *testing.T) {
	provider := testutil.RequireDatabase(t)
	ctx := context.Background()

	conn, err := provider.Session(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = db.NewExecutor().Execute(ctx, conn,
		"INSERT INTO transaction_details (transaction_id, product_name) VALUES ($1, $2)", int64(999), "Product A")

	var se *db.StatementError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "23503", se.Code)
}

func TestConnect_BadURL(t *testing.T) {
	if testutil.DatabaseURL() == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	testutil.QuietLogs(t)

	provider := db.NewProvider(dbConfig("postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"))
	_, err := provider.Connect(context.Background())

	var connErr *db.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}
