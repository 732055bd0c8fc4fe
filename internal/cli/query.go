package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run one statement on a new connection",
		Long: `Run one SQL statement on a new connection and print its rows. Commands
print a single affected_rows row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider, err := rootOpts.readyProvider(ctx)
			if err != nil {
				return err
			}
			session := db.NewSession(provider, rootOpts.executor())
			if err := session.Open(ctx); err != nil {
				return WrapExitError(ExitCommandError, "failed to connect", err)
			}
			defer closeLogged(ctx, session)

			result, err := session.Execute(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "statement failed", err)
			}
			return rootOpts.formatter(cmd).Success(result, func(w io.Writer) {
				renderResult(w, result)
			})
		},
	}
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "explain [sql]",
		Short: "Print the query plan of a statement",
		Long: `Print the query plan of a statement. With --details, print the plan of
the detail insert issued for every transaction.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !details && len(args) == 0 {
				return NewExitError(ExitCommandError, "explain needs a statement or --details")
			}

			ctx := cmd.Context()
			provider, err := rootOpts.readyProvider(ctx)
			if err != nil {
				return err
			}
			conn, err := provider.Session(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect", err)
			}
			defer closeLogged(ctx, conn)

			exec := rootOpts.executor()
			var plan []string
			if details {
				plan, err = harness.ExplainDetailsInsert(ctx, exec, conn, 1, harness.DefaultProducts)
			} else {
				plan, err = harness.Explain(ctx, exec, conn, args[0])
			}
			if err != nil {
				return WrapExitError(ExitFailure, "explain failed", err)
			}
			return rootOpts.formatter(cmd).Success(plan, func(w io.Writer) {
				renderPlan(w, plan)
			})
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "explain the transaction detail insert")
	return cmd
}
