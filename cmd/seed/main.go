package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaijie-yu/google-ui/internal/config"
	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/internal/repository"
	"github.com/kaijie-yu/google-ui/internal/seed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, fixturesPath string
	cmd := &cobra.Command{
		Use:          "autoflow-seed",
		Short:        "Load starter elements and workflows into PostgreSQL",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, fixturesPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "YAML fixtures to load instead of the built-in set")
	return cmd
}

func run(ctx context.Context, configPath, fixturesPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fixtures, err := loadFixtures(fixturesPath)
	if err != nil {
		return err
	}

	pool, err := repository.NewPool(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := seed.Apply(ctx, store, fixtures, time.Now(), logger); err != nil {
		return err
	}
	logger.Info("Seeding complete", "db", cfg.DB.Name)
	return nil
}

func loadFixtures(path string) (*seed.Fixtures, error) {
	if path == "" {
		return seed.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return seed.Parse(data)
}
