package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/engine"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/reporting"
	"github.com/xkilldash9x/lancet/internal/store"
)

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Analyzes the given files or directories for taint-flow vulnerabilities",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so CLI flags override values from
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("engine.worker_concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("analysis.registry_overlay", cmd.Flags().Lookup("overlay")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appCfg
			cfg.SetEngineWorkerConcurrency(viper.GetInt("engine.worker_concurrency"))
			cfg.SetAnalysisRegistryOverlay(viper.GetString("analysis.registry_overlay"))
			cfg.SetScanConfig(config.ScanConfig{
				Targets:     args,
				Output:      viper.GetString("output"),
				Format:      viper.GetString("format"),
				Concurrency: cfg.Engine().WorkerConcurrency,
			})
			if viper.GetBool("persist") {
				cfg.SetStoreEnabled(true)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Info("starting scan",
				zap.Strings("targets", args),
				zap.Int("concurrency", cfg.Engine().WorkerConcurrency),
				zap.String("format", cfg.Scan().Format),
			)

			var opts []engine.Option
			var pool *pgxpool.Pool
			if cfg.Store().Enabled {
				if cfg.Store().URL == "" {
					return fmt.Errorf("findings store is enabled but no database URL is configured (LANCET_DB_URL)")
				}
				var err error
				pool, err = pgxpool.New(ctx, cfg.Store().URL)
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}
				defer pool.Close()

				dbStore, err := store.New(ctx, pool, logger)
				if err != nil {
					return fmt.Errorf("failed to initialize findings store: %w", err)
				}
				opts = append(opts, engine.WithStore(dbStore))
			}

			eng, err := engine.NewEngine(cfg, logger, opts...)
			if err != nil {
				return fmt.Errorf("failed to initialize analysis engine: %w", err)
			}

			report, err := eng.Scan(ctx, cfg.Scan().Targets)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return fmt.Errorf("scan aborted by user signal")
				}
				return err
			}

			reporter, err := reporting.New(cfg.Scan().Format, cfg.Scan().Output, Version)
			if err != nil {
				return fmt.Errorf("failed to initialize reporter: %w", err)
			}
			if err := reporter.Write(report); err != nil {
				reporter.Close()
				return fmt.Errorf("failed to write report: %w", err)
			}
			if err := reporter.Close(); err != nil {
				return err
			}

			logger.Info("scan complete",
				zap.String("scan_id", report.ScanID),
				zap.Int("files", len(report.Files)),
				zap.Int("findings", report.TotalVulnerabilities),
				zap.Int("failed_files", report.FailedFiles),
			)

			// Nonzero exit when findings exist, for CI pipelines.
			if report.TotalVulnerabilities > 0 && viper.GetBool("fail-on-findings") {
				return fmt.Errorf("found %d vulnerabilities", report.TotalVulnerabilities)
			}
			return nil
		},
	}

	scanCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, results go to stdout.")
	scanCmd.Flags().StringP("format", "f", "text", "Report format ('text', 'json', 'sarif').")
	scanCmd.Flags().IntP("concurrency", "j", 0, "Number of concurrent analysis workers. 0 means GOMAXPROCS.")
	scanCmd.Flags().String("overlay", "", "Path to a YAML registry overlay with extra sources, sinks, or sanitizers.")
	scanCmd.Flags().Bool("persist", false, "Persist findings to the configured database.")
	scanCmd.Flags().Bool("fail-on-findings", false, "Exit with a nonzero status when any vulnerability is found.")

	return scanCmd
}
