// Package cli implements eventctl, the operator command line.
package cli

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unievents/backend/config"
	"github.com/unievents/backend/internal/app"
	"github.com/unievents/backend/pkg/database"
)

// RootOptions holds global flags and the connection openers shared by all commands.
type RootOptions struct {
	Verbose bool

	Logger *zap.Logger
	// OpenPool connects to Postgres only. OpenDeps opens everything (Postgres, Redis, Kafka).
	OpenPool func(ctx context.Context) (*pgxpool.Pool, error)
	OpenDeps func(ctx context.Context) (*app.Deps, error)
}

// NewRootCommand creates the eventctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := newRoot(opts)
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.Verbose {
			opts.Logger = app.NewLogger()
		} else {
			opts.Logger = zap.NewNop()
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		opts.OpenPool = func(ctx context.Context) (*pgxpool.Pool, error) {
			return database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: 4}, opts.Logger)
		}
		opts.OpenDeps = func(ctx context.Context) (*app.Deps, error) {
			return app.Open(ctx, cfg, opts.Logger)
		}
		return nil
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")
	return cmd
}

func newRoot(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eventctl",
		Short:         "Operate the campus event backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewCreateAdminCommand(opts))
	cmd.AddCommand(NewRemindersCommand(opts))
	return cmd
}
