package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/harness"
)

// PlanResult is the outcome of one experiment of a plan. Exactly one of
// Summary and Conflict is set.
type PlanResult struct {
	Name     string                  `json:"name"`
	Kind     string                  `json:"kind"`
	Summary  *harness.Summary        `json:"summary,omitempty"`
	Conflict *harness.ConflictReport `json:"conflict,omitempty"`
	Problem  string                  `json:"problem,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <file>",
		Short: "Run every experiment of a YAML plan in order",
		Long: `Run the experiments listed in a YAML plan one after another. Fields left
out of an experiment fall back to the HARNESS_* environment.

  experiments:
    - name: rc
      kind: parallel
      isolation: read-committed
      workers: 50
      records_per_worker: 10000
      delay: 9ms
    - kind: conflict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.LoadPlan(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid plan", err)
			}

			h, err := rootOpts.newHarness(cmd.Context())
			if err != nil {
				return err
			}

			results, err := runPlan(cmd, h, plan, rootOpts.Config.Harness)
			render := func(w io.Writer) { renderPlanResults(w, results) }
			out := rootOpts.formatter(cmd)
			if err != nil {
				return out.Failure(results, err, render)
			}
			return out.Success(results, render)
		},
	}
}

func runPlan(cmd *cobra.Command, h *harness.Harness, plan *config.Plan, defaults config.HarnessConfig) ([]PlanResult, error) {
	ctx := cmd.Context()
	results := make([]PlanResult, 0, len(plan.Experiments))
	unexpected := 0

	for _, exp := range plan.Experiments {
		result := PlanResult{Name: exp.Name, Kind: exp.Kind}
		switch exp.Kind {
		case config.KindParallel:
			summary, err := h.RunParallelInsert(ctx, parallelConfig(exp.WithDefaults(defaults)))
			if err != nil {
				return results, WrapExitError(ExitCommandError, fmt.Sprintf("experiment %q failed", exp.Name), err)
			}
			result.Summary = &summary
		case config.KindConflict:
			report, err := h.RunConflict(ctx)
			if err != nil {
				return results, WrapExitError(ExitCommandError, fmt.Sprintf("experiment %q failed", exp.Name), err)
			}
			result.Conflict = &report
			if err := report.Check(); err != nil {
				result.Problem = err.Error()
				unexpected++
			}
		}
		results = append(results, result)
	}

	if unexpected > 0 {
		return results, NewExitError(ExitFailure, fmt.Sprintf("%d experiment(s) had an unexpected outcome", unexpected))
	}
	return results, nil
}

func renderPlanResults(w io.Writer, results []PlanResult) {
	for _, r := range results {
		switch {
		case r.Summary != nil:
			renderSummary(w, *r.Summary)
		case r.Conflict != nil:
			renderConflict(w, *r.Conflict)
		}
		if r.Problem != "" {
			fmt.Fprintln(w, DangerStyle.Render(r.Name+": "+r.Problem))
		}
		fmt.Fprintln(w)
	}
}
