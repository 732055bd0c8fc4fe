package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
	"github.com/VoidMesh/txlab/internal/logging"
)

// RootOptions holds global flags and the configuration shared by all commands.
type RootOptions struct {
	LogLevel string
	Format   string // "json" | "text"

	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the txlab CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "txlab",
		Short: "txlab - transaction isolation lab",
		Long: `Run concurrent transaction experiments against PostgreSQL and report
what each isolation level lets through.

Connection settings come from DATABASE_URL, DB_USER and DB_PASSWORD.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.Config = config.Load()
			level := opts.LogLevel
			if level == "" {
				level = opts.Config.Logging.Level
			}
			// Logs go to stderr so they never interleave with JSON output.
			logging.InitLoggerWithOutput(cmd.ErrOrStderr(), level, opts.Config.Logging.Format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), defaults to LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewParallelCommand(opts))
	cmd.AddCommand(NewConflictCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))

	return cmd
}

func (o *RootOptions) provider() *db.Provider {
	return db.NewProvider(o.Config.Database)
}

func (o *RootOptions) executor() db.StatementExecutor {
	return db.NewLoggingExecutor(db.NewExecutor(), logging.GetLogger())
}

// readyProvider returns a provider for a database that has the schema,
// migrating first when MIGRATE_ON_START is set.
func (o *RootOptions) readyProvider(ctx context.Context) (*db.Provider, error) {
	provider := o.provider()
	if o.Config.Database.MigrateOnStart {
		if _, err := db.Migrate(ctx, provider, o.Config.Database.MigrationsSource); err != nil {
			return nil, WrapExitError(ExitCommandError, "migration failed", err)
		}
	}
	return provider, nil
}

func (o *RootOptions) newHarness(ctx context.Context) (*harness.Harness, error) {
	provider, err := o.readyProvider(ctx)
	if err != nil {
		return nil, err
	}
	return harness.New(provider, o.executor()), nil
}

type closer interface {
	Close(ctx context.Context) error
}

// closeLogged closes c and logs, rather than drops, a failure.
func closeLogged(ctx context.Context, c closer) {
	if err := c.Close(context.WithoutCancel(ctx)); err != nil {
		logging.GetLogger().Warn("Failed to close connection", "error", err)
	}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
