package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quiz-desk/internal/config"
	"quiz-desk/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies the Postgres schema migrations. The SQLite driver
// creates its tables on open and needs no migration step.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), cmd, *configPath)
		},
	}
}

func runMigrations(ctx context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	group, err := migrations.Apply(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	if group.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "no new migrations to run")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated to %s\n", group)
	return nil
}
