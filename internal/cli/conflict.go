package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewConflictCommand creates the conflict command.
func NewConflictCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflict",
		Short: "Run the two-party serializable conflict",
		Long: `Run two serializable transactions that each count the table and then
insert, interleaved so that PostgreSQL must abort exactly one of them.
Exits 1 if the database let both commit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rootOpts.newHarness(cmd.Context())
			if err != nil {
				return err
			}
			report, err := h.RunConflict(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "conflict scenario failed", err)
			}

			render := func(w io.Writer) { renderConflict(w, report) }
			out := rootOpts.formatter(cmd)
			if err := report.Check(); err != nil {
				return out.Failure(report, WrapExitError(ExitFailure, "unexpected conflict outcome", err), render)
			}
			return out.Success(report, render)
		},
	}
}
