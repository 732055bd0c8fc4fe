package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsSerializationFailure(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to read/write dependencies among transactions"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "raw pg error", err: serialization, want: true},
		{name: "statement error", err: newStatementError("COMMIT", serialization), want: true},
		{name: "wrapped statement error", err: fmt.Errorf("commit: %w", newStatementError("COMMIT", serialization)), want: true},
		{name: "unique violation", err: newStatementError("INSERT", &pgconn.PgError{Code: "23505"}), want: false},
		{name: "not a pg error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSerializationFailure(tt.err))
		})
	}
}

func TestErrorTypes_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	connErr := &ConnectionError{URL: "testuser@localhost/testdb", Err: cause}
	assert.ErrorIs(t, connErr, cause)
	assert.Contains(t, connErr.Error(), "testuser@localhost/testdb")

	migErr := &MigrationError{Version: 2, Dirty: true, Err: cause}
	assert.ErrorIs(t, migErr, cause)
	assert.Contains(t, migErr.Error(), "dirty at version 2")

	stmtErr := newStatementError("SELECT 1", cause)
	assert.ErrorIs(t, stmtErr, cause)
	assert.Equal(t, "", stmtErr.Code)
	assert.Equal(t, "statement failed: dial tcp: connection refused", stmtErr.Error())
}
