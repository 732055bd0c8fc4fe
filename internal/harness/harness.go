// Package harness drives concurrent transactions against Postgres and
// reports what the database's isolation machinery let through.
//
// Every worker owns its connection for its whole lifetime; the only state
// shared between workers is the tables themselves.
package harness

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/logging"
)

type Harness struct {
	connector db.Connector
	exec      db.StatementExecutor
	logger    *log.Logger
	newRunID  func() string
}

type Option func(*Harness)

// WithLogger replaces the global logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithRunIDs replaces the UUID run id generator.
func WithRunIDs(next func() string) Option {
	return func(h *Harness) { h.newRunID = next }
}

// New creates a harness that opens a fresh connection from connector for
// every worker.
func New(connector db.Connector, exec db.StatementExecutor, opts ...Option) *Harness {
	h := &Harness{
		connector: connector,
		exec:      exec,
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.GetLogger()
	}
	return h
}

// closeConn releases a worker's connection even if the run was cancelled.
func (h *Harness) closeConn(ctx context.Context, logger *log.Logger, conn db.Conn) {
	if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Failed to close connection", "error", err)
	}
}
