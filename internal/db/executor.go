package db

import (
	"context"
	"fmt"
)

// AffectedRowsColumn is the single column of the result of a command.
const AffectedRowsColumn = "affected_rows"

// Row maps column names to values as decoded by pgx.
type Row map[string]any

// Result holds every row of a statement's row set, in order. Commands
// yield a single row {affected_rows: n}.
type Result []Row

func (r Result) Len() int { return len(r) }

// AffectedRows returns the affected row count of a command result.
func (r Result) AffectedRows() (int64, error) {
	return r.Int64(0, AffectedRowsColumn)
}

// Int64 returns an integer column of the given row.
func (r Result) Int64(row int, column string) (int64, error) {
	v, err := r.value(row, column)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("column %q is %T, not an integer", column, v)
	}
}

// String returns a text column of the given row.
func (r Result) String(row int, column string) (string, error) {
	v, err := r.value(row, column)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("column %q is %T, not text", column, v)
	}
	return s, nil
}

// Column returns the values of one column across all rows.
func (r Result) Column(column string) []any {
	values := make([]any, 0, len(r))
	for _, row := range r {
		values = append(values, row[column])
	}
	return values
}

func (r Result) value(row int, column string) (any, error) {
	if row < 0 || row >= len(r) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", row, len(r))
	}
	v, ok := r[row][column]
	if !ok {
		return nil, fmt.Errorf("column %q not in result", column)
	}
	return v, nil
}

// StatementExecutor runs a single statement on a caller supplied connection.
type StatementExecutor interface {
	Execute(ctx context.Context, q Querier, sql string, args ...any) (Result, error)
}

// Executor is a stateless pass-through to the connection. It has no notion
// of transaction state: BEGIN, COMMIT and ROLLBACK are ordinary statements.
type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs sql on q and materializes the full result before returning.
// Every failure is a *StatementError; rolling back is up to the caller.
func (e *Executor) Execute(ctx context.Context, q Querier, sql string, args ...any) (Result, error) {
	if q == nil {
		return nil, newStatementError(sql, ErrNoConnection)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, newStatementError(sql, err)
	}
	defer rows.Close()

	result := Result{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, newStatementError(sql, err)
		}
		fields := rows.FieldDescriptions()
		row := make(Row, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = values[i]
			}
		}
		result = append(result, row)
	}
	fields := rows.FieldDescriptions()
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, newStatementError(sql, err)
	}

	if len(fields) == 0 {
		return Result{{AffectedRowsColumn: rows.CommandTag().RowsAffected()}}, nil
	}
	return result, nil
}
