package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/store"
)

// newMigrateCmd creates the `migrate` command, which applies the findings
// store schema to the configured database.
func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Creates or updates the findings store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			url := appCfg.Store().URL
			if url == "" {
				return fmt.Errorf("no database URL is configured (LANCET_DB_URL)")
			}

			pool, err := pgxpool.New(ctx, url)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			dbStore, err := store.New(ctx, pool, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize findings store: %w", err)
			}
			if err := dbStore.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			logger.Info("findings store schema is up to date")
			return nil
		},
	}
	return migrateCmd
}
