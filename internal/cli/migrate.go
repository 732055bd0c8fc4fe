package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/VoidMesh/txlab/internal/db"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every pending schema migration in version order. Each script runs at
most once; a second run reports that nothing was applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config.Database
			report, err := db.Migrate(cmd.Context(), rootOpts.provider(), cfg.MigrationsSource)
			if err != nil {
				return WrapExitError(ExitCommandError, "migration failed", err)
			}
			return rootOpts.formatter(cmd).Success(report, func(w io.Writer) {
				renderMigration(w, report)
			})
		},
	}
}
