package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"staff-arabia/infrastructure"
)

var seed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the collections",
	Long:  "Create or update the table of every record kind. With --seed, insert sample jobs into an empty job collection.",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&seed, "seed", false, "insert sample jobs when the job collection is empty")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := infrastructure.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	return migrate(cmd.Context(), cfg, logger, seed)
}

func migrate(ctx context.Context, cfg *infrastructure.Config, logger *zap.Logger, withSeed bool) error {
	db, err := infrastructure.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store := infrastructure.NewDocumentStore(db, logger, nil)
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if !withSeed {
		return nil
	}

	n, err := store.Seed(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.Info("job collection not empty, skipping seed")
	}
	return nil
}
