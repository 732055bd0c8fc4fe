package harness

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/txlab/internal/db"
)

// mockConnector hands out pre-built mock connections, one per Session call,
// and fails every call past failAfter when failAfter > 0.
type mockConnector struct {
	mu        sync.Mutex
	conns     []pgxmock.PgxConnIface
	calls     int
	failAfter int
}

func (m *mockConnector) Session(ctx context.Context) (db.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failAfter > 0 && m.calls > m.failAfter {
		return nil, &db.ConnectionError{URL: "testuser@localhost/testdb", Err: errors.New("connection refused")}
	}
	if len(m.conns) == 0 {
		return nil, &db.ConnectionError{URL: "testuser@localhost/testdb", Err: errors.New("no more mock connections")}
	}
	conn := m.conns[0]
	m.conns = m.conns[1:]
	return conn, nil
}

// recordingExecutor remembers every statement in issue order.
type recordingExecutor struct {
	next db.StatementExecutor

	mu         sync.Mutex
	statements []string
}

func (r *recordingExecutor) Execute(ctx context.Context, q db.Querier, sql string, args ...any) (db.Result, error) {
	r.mu.Lock()
	r.statements = append(r.statements, sql)
	r.mu.Unlock()
	return r.next.Execute(ctx, q, sql, args...)
}

func (r *recordingExecutor) indexes(sql string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idx []int
	for i, s := range r.statements {
		if s == sql {
			idx = append(idx, i)
		}
	}
	return idx
}

func newTestHarness(connector db.Connector, exec db.StatementExecutor) *Harness {
	ids := 0
	return New(connector, exec,
		WithLogger(log.New(io.Discard)),
		WithRunIDs(func() string {
			ids++
			return "run-" + string(rune('0'+ids))
		}),
	)
}

func newMockConn(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err, "Failed to create pgx mock")
	return mock
}

func commandRows(tag string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{}).AddCommandTag(pgconn.NewCommandTag(tag))
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

// expectInsertTransaction queues one successful record on mock.
func expectInsertTransaction(mock pgxmock.PgxConnIface, id int32) {
	mock.ExpectQuery(q("BEGIN")).WillReturnRows(commandRows("BEGIN"))
	mock.ExpectQuery(q(insertTransactionSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectQuery(q(insertDetailsSQL(2))).
		WithArgs(int64(id), "Product A", "Product B").
		WillReturnRows(commandRows("INSERT 0 2"))
	mock.ExpectQuery(q("COMMIT")).WillReturnRows(commandRows("COMMIT"))
}

func expectSetIsolation(mock pgxmock.PgxConnIface, level IsolationLevel) {
	mock.ExpectQuery(q("SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL " + string(level))).
		WillReturnRows(commandRows("SET"))
}

func serializationFailure() error {
	return &pgconn.PgError{
		Code:    "40001",
		Message: "could not serialize access due to read/write dependencies among transactions",
	}
}
