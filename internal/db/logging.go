package db

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/VoidMesh/txlab/internal/logging"
)

// LoggingExecutor wraps a StatementExecutor to add debug logging
type LoggingExecutor struct {
	next   StatementExecutor
	logger *log.Logger
}

// NewLoggingExecutor creates a new LoggingExecutor. A nil logger uses the
// global one.
func NewLoggingExecutor(next StatementExecutor, logger *log.Logger) *LoggingExecutor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LoggingExecutor{next: next, logger: logger}
}

// Execute with logging
func (le *LoggingExecutor) Execute(ctx context.Context, q Querier, sql string, args ...any) (Result, error) {
	start := time.Now()
	result, err := le.next.Execute(ctx, q, sql, args...)
	le.logStatement(sql, start, err, result, args)
	return result, err
}

func (le *LoggingExecutor) logStatement(sql string, start time.Time, err error, result Result, args []any) {
	duration := time.Since(start)
	statement := compact(sql)

	if err != nil {
		le.logger.Debug("Database statement failed",
			"sql", statement,
			"duration", duration,
			"sqlstate", SQLState(err),
			"error", err,
			"args", args,
		)
		return
	}

	le.logger.Debug("Database statement executed",
		"sql", statement,
		"duration", duration,
		"rows", result.Len(),
		"args", args,
	)
}

// compact folds a multi-line statement onto one line for log output.
func compact(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
