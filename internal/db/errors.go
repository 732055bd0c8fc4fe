package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoConnection is returned when a statement is issued without a connection.
var ErrNoConnection = errors.New("no database connection")

// ConnectionError reports that a session could not be established.
// Callers cannot proceed; nothing retries.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError reports a failed SQL statement. Code and Message carry the
// server's SQLSTATE and message when the failure came from the server.
type StatementError struct {
	SQL     string
	Code    string
	Message string
	Err     error
}

func newStatementError(sql string, err error) *StatementError {
	se := &StatementError{SQL: sql, Message: err.Error(), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Code = pgErr.Code
		se.Message = pgErr.Message
	}
	return se
}

func (e *StatementError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("statement failed (SQLSTATE %s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("statement failed: %s", e.Message)
}

func (e *StatementError) Unwrap() error { return e.Err }

// MigrationError reports a failed or inconsistent schema bootstrap.
type MigrationError struct {
	Version uint
	Dirty   bool
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Dirty {
		return fmt.Sprintf("migration history is dirty at version %d: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("migration failed: %v", e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// SQLState returns the SQLSTATE carried by err, or "" if there is none.
func SQLState(err error) string {
	var se *StatementError
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsSerializationFailure reports whether err is a serialization failure
// (SQLSTATE 40001) raised under serializable or repeatable read isolation.
func IsSerializationFailure(err error) bool {
	return SQLState(err) == pgerrcode.SerializationFailure
}
