package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/harness"
)

type parallelFlags struct {
	isolation string
	workers   int
	records   int
	delay     time.Duration
	hashIndex bool
}

// NewParallelCommand creates the parallel command.
func NewParallelCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &parallelFlags{}

	cmd := &cobra.Command{
		Use:   "parallel",
		Short: "Run the parallel insert experiment",
		Long: `Start N workers, each on its own connection at the chosen isolation level,
each inserting M transactions with two detail rows. Failed transactions are
rolled back and counted. Unset flags fall back to the HARNESS_* environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp := flags.experiment(cmd, rootOpts.Config.Harness)

			h, err := rootOpts.newHarness(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := h.RunParallelInsert(cmd.Context(), parallelConfig(exp))
			if err != nil {
				return WrapExitError(ExitCommandError, "parallel insert run failed", err)
			}
			return rootOpts.formatter(cmd).Success(summary, func(w io.Writer) {
				renderSummary(w, summary)
			})
		},
	}

	cmd.Flags().StringVarP(&flags.isolation, "isolation", "i", "", "isolation level (read-committed|repeatable-read|serializable)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "number of concurrent workers")
	cmd.Flags().IntVarP(&flags.records, "records", "n", 0, "transactions per worker")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "sleep inside each transaction before COMMIT")
	cmd.Flags().BoolVar(&flags.hashIndex, "hash-index", false, "create a hash index on transactions(id) first")

	return cmd
}

// experiment merges the flags that were set over the configured defaults.
// A flag set to zero, such as --delay 0s, overrides the default.
func (f *parallelFlags) experiment(cmd *cobra.Command, defaults config.HarnessConfig) config.ExperimentSettings {
	exp := config.Experiment{Kind: config.KindParallel, Name: "parallel"}
	if cmd.Flags().Changed("isolation") {
		exp.Isolation = f.isolation
	}
	if cmd.Flags().Changed("workers") {
		exp.Workers = &f.workers
	}
	if cmd.Flags().Changed("records") {
		exp.RecordsPerWorker = &f.records
	}
	if cmd.Flags().Changed("delay") {
		exp.Delay = &f.delay
	}
	if cmd.Flags().Changed("hash-index") {
		exp.HashIndex = &f.hashIndex
	}
	return exp.WithDefaults(defaults)
}

func parallelConfig(exp config.ExperimentSettings) harness.ParallelConfig {
	return harness.ParallelConfig{
		Isolation:        harness.IsolationLevel(exp.Isolation),
		Workers:          exp.Workers,
		RecordsPerWorker: exp.RecordsPerWorker,
		Delay:            exp.Delay,
		HashIndex:        exp.HashIndex,
	}
}
