package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is returned for an experiment that cannot run.
	ErrInvalidConfig = errors.New("invalid experiment configuration")
	// ErrUnexpectedOutcome is returned when a scenario's result differs from
	// what the isolation level guarantees.
	ErrUnexpectedOutcome = errors.New("unexpected experiment outcome")
)

// IsolationLevel is a transaction isolation level as spelled in SQL.
type IsolationLevel string

const (
	ReadCommitted  IsolationLevel = "READ COMMITTED"
	RepeatableRead IsolationLevel = "REPEATABLE READ"
	Serializable   IsolationLevel = "SERIALIZABLE"
)

// ParseIsolationLevel accepts "read-committed", "read_committed",
// "READ COMMITTED" and the like.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", " ", "_", " ").Replace(normalized)
	switch IsolationLevel(normalized) {
	case ReadCommitted, RepeatableRead, Serializable:
		return IsolationLevel(normalized), nil
	case "DEFAULT", "":
		return ReadCommitted, nil
	}
	return "", fmt.Errorf("%w: unknown isolation level %q", ErrInvalidConfig, s)
}

func (l IsolationLevel) String() string { return string(l) }

// Slug is the lower-case, dash separated name used in flags and output.
func (l IsolationLevel) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(l)), " ", "-")
}

// ParallelConfig describes one parallel insert run.
type ParallelConfig struct {
	Isolation        IsolationLevel
	Workers          int
	RecordsPerWorker int
	// Delay is slept inside every transaction, between the inserts and
	// COMMIT, to widen the contention window.
	Delay time.Duration
	// HashIndex creates a hash index on transactions(id) before the run.
	HashIndex bool
}

func (c ParallelConfig) Validate() error {
	if _, err := ParseIsolationLevel(string(c.Isolation)); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.RecordsPerWorker < 0 {
		return fmt.Errorf("%w: records per worker must not be negative, got %d", ErrInvalidConfig, c.RecordsPerWorker)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative, got %s", ErrInvalidConfig, c.Delay)
	}
	return nil
}

// WorkerOutcome is what one worker observed.
type WorkerOutcome struct {
	Worker            int           `json:"worker"`
	SuccessfulInserts int           `json:"successful_inserts"`
	Exceptions        int           `json:"exceptions"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Attempted is the number of records the worker actually tried. It falls
// short of RecordsPerWorker only when the run was interrupted.
func (o WorkerOutcome) Attempted() int {
	return o.SuccessfulInserts + o.Exceptions
}

// AveragePerRecord is the worker's elapsed time divided by its records.
func (o WorkerOutcome) AveragePerRecord() time.Duration {
	records := o.Attempted()
	if records == 0 {
		return 0
	}
	return o.Elapsed / time.Duration(records)
}

// Summary aggregates a parallel run once every worker has finished.
type Summary struct {
	RunID            string          `json:"run_id"`
	Isolation        IsolationLevel  `json:"isolation"`
	Workers          int             `json:"workers"`
	RecordsPerWorker int             `json:"records_per_worker"`
	TotalAttempted   int             `json:"total_attempted"`
	TotalSuccessful  int             `json:"total_successful"`
	TotalExceptions  int             `json:"total_exceptions"`
	TotalElapsed     time.Duration   `json:"total_elapsed"`
	Outcomes         []WorkerOutcome `json:"outcomes"`
}

// AveragePerRecord is the wall-clock time divided by the records attempted.
func (s Summary) AveragePerRecord() time.Duration {
	if s.TotalAttempted == 0 {
		return 0
	}
	return s.TotalElapsed / time.Duration(s.TotalAttempted)
}

func summarize(runID string, cfg ParallelConfig, outcomes []WorkerOutcome, elapsed time.Duration) Summary {
	s := Summary{
		RunID:            runID,
		Isolation:        cfg.Isolation,
		Workers:          cfg.Workers,
		RecordsPerWorker: cfg.RecordsPerWorker,
		TotalElapsed:     elapsed,
		Outcomes:         outcomes,
	}
	for _, o := range outcomes {
		s.TotalAttempted += o.Attempted()
		s.TotalSuccessful += o.SuccessfulInserts
		s.TotalExceptions += o.Exceptions
	}
	return s
}

// PartyResult is one side of the conflict scenario.
type PartyResult struct {
	Name      string `json:"name"`
	Committed bool   `json:"committed"`
	Error     string `json:"error,omitempty"`
	// SerializationFailure is set when the error was SQLSTATE 40001.
	SerializationFailure bool `json:"serialization_failure"`
}

// ConflictReport is the observed outcome of the two-party conflict scenario.
type ConflictReport struct {
	RunID       string        `json:"run_id"`
	Exceptions  int           `json:"exceptions"`
	Committed   int           `json:"committed"`
	InitialRows int64         `json:"initial_rows"`
	FinalRows   int64         `json:"final_rows"`
	Elapsed     time.Duration `json:"elapsed"`
	Parties     []PartyResult `json:"parties"`
}

// Check returns ErrUnexpectedOutcome unless exactly one party failed, with a
// serialization failure, and exactly one row was added.
func (r ConflictReport) Check() error {
	if r.Exceptions != 1 {
		return fmt.Errorf("%w: expected exactly 1 serialization conflict, got %d", ErrUnexpectedOutcome, r.Exceptions)
	}
	for _, p := range r.Parties {
		if !p.Committed && !p.SerializationFailure {
			return fmt.Errorf("%w: %s failed with %q, not a serialization failure", ErrUnexpectedOutcome, p.Name, p.Error)
		}
	}
	if r.FinalRows != r.InitialRows+1 {
		return fmt.Errorf("%w: expected %d rows after the scenario, got %d", ErrUnexpectedOutcome, r.InitialRows+1, r.FinalRows)
	}
	return nil
}
