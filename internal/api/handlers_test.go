package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
)

type fakeRunner struct {
	mu       sync.Mutex
	parallel []harness.ParallelConfig
	ctxErr   error
	report   harness.ConflictReport
	err      error
}

func (f *fakeRunner) RunParallelInsert(ctx context.Context, cfg harness.ParallelConfig) (harness.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parallel = append(f.parallel, cfg)
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return harness.Summary{RunID: "run-1"}, f.err
	}
	return harness.Summary{
		RunID:            "run-1",
		Isolation:        cfg.Isolation,
		Workers:          cfg.Workers,
		RecordsPerWorker: cfg.RecordsPerWorker,
		TotalAttempted:   cfg.Workers * cfg.RecordsPerWorker,
		TotalSuccessful:  cfg.Workers * cfg.RecordsPerWorker,
	}, nil
}

// calls returns the configs received so far and the context error seen by
// the last one.
func (f *fakeRunner) calls() ([]harness.ParallelConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]harness.ParallelConfig(nil), f.parallel...), f.ctxErr
}

func (f *fakeRunner) RunConflict(ctx context.Context) (harness.ConflictReport, error) {
	return f.report, f.err
}

var testDefaults = config.HarnessConfig{
	Isolation:        "read-committed",
	Workers:          50,
	RecordsPerWorker: 10000,
	RecordDelay:      9 * time.Millisecond,
}

func newTestServer(runner Runner, status StatusFunc) *httptest.Server {
	if status == nil {
		status = func(context.Context) (db.MigrationStatus, error) {
			return db.MigrationStatus{Version: 2}, nil
		}
	}
	return httptest.NewServer(SetupRoutes(NewHandler(runner, status, testDefaults)))
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "txlab", body["service"])
}

func TestGetMigrations(t *testing.T) {
	tests := []struct {
		name       string
		status     StatusFunc
		wantStatus int
	}{
		{
			name: "current version",
			status: func(context.Context) (db.MigrationStatus, error) {
				return db.MigrationStatus{Version: 2}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "database unreachable",
			status: func(context.Context) (db.MigrationStatus, error) {
				return db.MigrationStatus{}, &db.ConnectionError{URL: "testuser@localhost/testdb", Err: errors.New("refused")}
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRunner{}, tt.status)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/api/v1/migrations")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRunParallel(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       harness.ParallelConfig
	}{
		{
			name:       "defaults from config",
			body:       "",
			wantStatus: http.StatusOK,
			want: harness.ParallelConfig{
				Isolation: "read-committed", Workers: 50, RecordsPerWorker: 10000, Delay: 9 * time.Millisecond,
			},
		},
		{
			name:       "overrides",
			body:       `{"isolation":"serializable","workers":4,"records_per_worker":5,"delay":"1ms","hash_index":true}`,
			wantStatus: http.StatusOK,
			want: harness.ParallelConfig{
				Isolation: "serializable", Workers: 4, RecordsPerWorker: 5, Delay: time.Millisecond, HashIndex: true,
			},
		},
		{
			name:       "explicit zero delay and records",
			body:       `{"delay":"0s","records_per_worker":0}`,
			wantStatus: http.StatusOK,
			want: harness.ParallelConfig{
				Isolation: "read-committed", Workers: 50, RecordsPerWorker: 0, Delay: 0,
			},
		},
		{
			name:       "explicit zero workers is rejected",
			body:       `{"workers":0}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad delay",
			body:       `{"delay":"soon"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown isolation",
			body:       `{"isolation":"snapshot"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"workers":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv := newTestServer(runner, nil)
			defer srv.Close()

			resp := post(t, srv.URL+"/api/v1/experiments/parallel", tt.body)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			calls, ctxErr := runner.calls()
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, calls, "invalid requests never reach the harness")
				return
			}
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0])
			assert.NoError(t, ctxErr)

			var summary harness.Summary
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
			assert.Equal(t, "run-1", summary.RunID)
			assert.Equal(t, tt.want.Workers*tt.want.RecordsPerWorker, summary.TotalAttempted)
		})
	}
}

func TestRunParallel_ConnectionFailure(t *testing.T) {
	runner := &fakeRunner{err: &db.ConnectionError{URL: "testuser@localhost/testdb", Err: errors.New("refused")}}
	srv := newTestServer(runner, nil)
	defer srv.Close()

	resp := post(t, srv.URL+"/api/v1/experiments/parallel", `{"workers":1,"records_per_worker":1}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, http.StatusServiceUnavailable, body.Code)
}

func TestRunConflict(t *testing.T) {
	tests := []struct {
		name         string
		report       harness.ConflictReport
		wantExpected bool
	}{
		{
			name: "one serialization failure",
			report: harness.ConflictReport{
				RunID: "run-2", Exceptions: 1, Committed: 1, InitialRows: 1, FinalRows: 2,
				Parties: []harness.PartyResult{
					{Name: "Customer A", Committed: true},
					{Name: "Customer B", SerializationFailure: true, Error: "SQLSTATE 40001"},
				},
			},
			wantExpected: true,
		},
		{
			name: "both committed",
			report: harness.ConflictReport{
				RunID: "run-3", Committed: 2, InitialRows: 1, FinalRows: 3,
				Parties: []harness.PartyResult{
					{Name: "Customer A", Committed: true},
					{Name: "Customer B", Committed: true},
				},
			},
			wantExpected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRunner{report: tt.report}, nil)
			defer srv.Close()

			resp := post(t, srv.URL+"/api/v1/experiments/conflict", "")
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body ConflictResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.report.RunID, body.RunID)
			assert.Equal(t, tt.report.FinalRows, body.FinalRows)
			assert.Equal(t, tt.wantExpected, body.Expected)
			if !tt.wantExpected {
				assert.NotEmpty(t, body.Problem)
			}
		})
	}
}
