package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/bug-snapshot-service/internal/config"
	"github.com/spec-kit/bug-snapshot-service/internal/observability"
	"github.com/spec-kit/bug-snapshot-service/internal/persistence"
	"github.com/spec-kit/bug-snapshot-service/internal/repository"
	"github.com/spec-kit/bug-snapshot-service/internal/snapshot"
)

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
	bugs   repository.BugRepository
	engine *snapshot.Engine
)

var rootCmd = &cobra.Command{
	Use:   "snapshot-audit",
	Short: "Maintenance tooling for the bug snapshot corpus",
	Long: `snapshot-audit sweeps the stored bug corpus through the rollback
engine in strict mode to find records whose history cannot be replayed,
and manages the corpus store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		logger, err = observability.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		pg, err = persistence.NewPostgres(context.Background(), cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(context.Background(), pg.PoolHandle(), logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}

		allowlist := snapshot.DefaultAllowlist()
		if cfg.Snapshot.AllowlistPath != "" {
			allowlist, err = snapshot.LoadAllowlist(cfg.Snapshot.AllowlistPath)
			if err != nil {
				return fmt.Errorf("load allowlist: %w", err)
			}
		}

		bugs = repository.NewBugRepository(pg.PoolHandle())
		engine = snapshot.NewEngine(allowlist, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pg != nil {
			pg.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print each bug id before processing")
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(loadCmd)
}
