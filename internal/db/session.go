package db

import (
	"context"
	"fmt"
)

// Connector opens a connection owned by the caller.
type Connector interface {
	Session(ctx context.Context) (Conn, error)
}

// Session owns one main connection for a single caller. Execute runs on that
// connection; ExecuteOn runs on one the caller passes in. A Session must not
// be shared between goroutines; workers open their own with NewConnection.
type Session struct {
	connector Connector
	exec      StatementExecutor
	main      Conn
}

func NewSession(connector Connector, exec StatementExecutor) *Session {
	return &Session{connector: connector, exec: exec}
}

// Open establishes the main connection.
func (s *Session) Open(ctx context.Context) error {
	if s.main != nil {
		return nil
	}
	conn, err := s.connector.Session(ctx)
	if err != nil {
		return err
	}
	s.main = conn
	return nil
}

// NewConnection opens an additional, independent connection.
func (s *Session) NewConnection(ctx context.Context) (Conn, error) {
	return s.connector.Session(ctx)
}

// Execute runs sql on the main connection.
func (s *Session) Execute(ctx context.Context, sql string, args ...any) (Result, error) {
	if s.main == nil {
		return nil, newStatementError(sql, ErrNoConnection)
	}
	return s.exec.Execute(ctx, s.main, sql, args...)
}

// ExecuteOn runs sql on conn.
func (s *Session) ExecuteOn(ctx context.Context, conn Querier, sql string, args ...any) (Result, error) {
	return s.exec.Execute(ctx, conn, sql, args...)
}

// Close releases the main connection.
func (s *Session) Close(ctx context.Context) error {
	if s.main == nil {
		return nil
	}
	err := s.main.Close(ctx)
	s.main = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
