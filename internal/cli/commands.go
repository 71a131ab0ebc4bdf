package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unievents/backend/internal/auth"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/resources"
	"github.com/unievents/backend/internal/seed"
	"github.com/unievents/backend/internal/store/postgres"
	"github.com/unievents/backend/internal/users"
	"github.com/unievents/backend/pkg/database"
)

// NewMigrateCommand applies the embedded schema migrations.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := opts.OpenPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.Migrate(ctx, pool, opts.Logger); err != nil {
				return err
			}
			names, _ := database.MigrationNames()
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(names))
			return nil
		},
	}
}

// NewSeedCommand loads users and resource types from a YAML file.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create users and resource types from a seed file",
		Long: `Create users and resource types listed in a YAML seed file.

Entries that already exist are skipped, so the same file can be applied repeatedly.
Users without a password get a generated one, printed once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := opts.OpenPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			us := users.NewService(auth.NewRepository(pool), nil, opts.Logger)
			res := resources.NewService(postgres.New(pool, opts.Logger), opts.Logger)
			out, err := seed.Apply(ctx, f, us, res, opts.Logger)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "users: %d created, %d skipped\n", out.UsersCreated, out.UsersSkipped)
			fmt.Fprintf(w, "resource types: %d created, %d skipped\n", out.TypesCreated, out.TypesSkipped)
			for email, pw := range out.Generated {
				fmt.Fprintf(w, "password for %s: %s\n", email, pw)
			}
			return nil
		},
	}
}

// NewCreateAdminCommand creates an administrator account.
func NewCreateAdminCommand(opts *RootOptions) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := opts.OpenPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := users.NewService(auth.NewRepository(pool), nil, opts.Logger)
			out, err := svc.Create(ctx, users.CreateInput{Email: email, FullName: name, Password: password, Role: models.RoleAdmin})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", out.User.Email, out.User.ID)
			if out.TemporaryPassword != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "temporary password: %s\n", out.TemporaryPassword)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&name, "name", "Administrator", "full name")
	cmd.Flags().StringVar(&password, "password", "", "password; generated when empty")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewRemindersCommand runs a reminder sweep immediately.
func NewRemindersCommand(opts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "send-reminders",
		Short: "Send reminders for events and meetings coming up",
		Long: `Send reminders as the daily sweep would on --date (default today).

The sweep notifies registrants of approved events and participants of meetings
held the configured number of lead days after that date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now().UTC()
			if date != "" {
				var err error
				if today, err = time.Parse(models.DateLayout, date); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}
			ctx := cmd.Context()
			deps, err := opts.OpenDeps(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			res, err := deps.Sweeper(deps.Dispatcher(nil)).Run(ctx, today)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d event(s), %d meeting(s), %d user(s) notified, %d failure(s)\n",
				res.Date, res.Events, res.Meetings, res.Notified, res.Failures)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "sweep as if run on this day (YYYY-MM-DD)")
	return cmd
}
