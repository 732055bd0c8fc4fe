package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/render"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
	"github.com/VoidMesh/txlab/internal/logging"
)

const (
	serviceName    = "txlab"
	serviceVersion = "1.0.0"
)

// Runner runs experiments. *harness.Harness satisfies it.
type Runner interface {
	RunParallelInsert(ctx context.Context, cfg harness.ParallelConfig) (harness.Summary, error)
	RunConflict(ctx context.Context) (harness.ConflictReport, error)
}

// StatusFunc reports the current migration version.
type StatusFunc func(ctx context.Context) (db.MigrationStatus, error)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// ParallelRequest overrides the configured harness defaults for one run.
// Omitted fields keep the default; explicit zeros are honoured. Delay is a
// Go duration string such as "9ms".
type ParallelRequest struct {
	Isolation        string  `json:"isolation,omitempty"`
	Workers          *int    `json:"workers,omitempty"`
	RecordsPerWorker *int    `json:"records_per_worker,omitempty"`
	Delay            *string `json:"delay,omitempty"`
	HashIndex        *bool   `json:"hash_index,omitempty"`
}

func (p *ParallelRequest) Bind(r *http.Request) error { return nil }

// ConflictResponse is a conflict report plus whether it matched the
// serializable guarantee.
type ConflictResponse struct {
	harness.ConflictReport
	Expected bool   `json:"expected"`
	Problem  string `json:"problem,omitempty"`
}

type Handler struct {
	runner   Runner
	status   StatusFunc
	defaults config.HarnessConfig
	logger   *log.Logger
}

func NewHandler(runner Runner, status StatusFunc, defaults config.HarnessConfig) *Handler {
	return &Handler{
		runner:   runner,
		status:   status,
		defaults: defaults,
		logger:   logging.GetLogger(),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   serviceName,
		"version":   serviceVersion,
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

func (h *Handler) GetMigrations(w http.ResponseWriter, r *http.Request) {
	status, err := h.status(r.Context())
	if err != nil {
		h.renderError(w, r, statusFor(err), "failed to read migration status", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, status)
}

func (h *Handler) RunParallel(w http.ResponseWriter, r *http.Request) {
	var req ParallelRequest
	if r.ContentLength != 0 {
		if err := render.Bind(r, &req); err != nil {
			h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	cfg, err := h.parallelConfig(req)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := cfg.Validate(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	// A run always completes its record count, even if the client goes away.
	summary, err := h.runner.RunParallelInsert(context.WithoutCancel(r.Context()), cfg)
	if err != nil {
		h.logger.Error("Parallel insert run failed", "error", err, "run_id", summary.RunID)
		h.renderError(w, r, statusFor(err), "parallel insert run failed", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, summary)
}

func (h *Handler) RunConflict(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.RunConflict(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("Conflict scenario failed", "error", err, "run_id", report.RunID)
		h.renderError(w, r, statusFor(err), "conflict scenario failed", err)
		return
	}

	response := ConflictResponse{ConflictReport: report, Expected: true}
	if err := report.Check(); err != nil {
		response.Expected = false
		response.Problem = err.Error()
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

func (h *Handler) parallelConfig(req ParallelRequest) (harness.ParallelConfig, error) {
	exp := config.Experiment{
		Kind:             config.KindParallel,
		Isolation:        req.Isolation,
		Workers:          req.Workers,
		RecordsPerWorker: req.RecordsPerWorker,
		HashIndex:        req.HashIndex,
	}
	if req.Delay != nil {
		d, err := time.ParseDuration(*req.Delay)
		if err != nil {
			return harness.ParallelConfig{}, errors.New("delay must be a duration such as 9ms")
		}
		exp.Delay = &d
	}
	settings := exp.WithDefaults(h.defaults)

	return harness.ParallelConfig{
		Isolation:        harness.IsolationLevel(settings.Isolation),
		Workers:          settings.Workers,
		RecordsPerWorker: settings.RecordsPerWorker,
		Delay:            settings.Delay,
		HashIndex:        settings.HashIndex,
	}, nil
}

func statusFor(err error) int {
	var connErr *db.ConnectionError
	switch {
	case errors.Is(err, harness.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	errorResponse := ErrorResponse{
		Error:   message,
		Code:    status,
		Message: message,
	}

	if err != nil {
		h.logger.Error("API error", "error", err, "message", message, "status", status)
		// Don't expose internal errors to the client
		if status >= 500 {
			errorResponse.Error = "Internal server error"
		}
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse)
}
