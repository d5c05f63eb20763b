package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/npmart/storefront/internal/config"
	"github.com/npmart/storefront/internal/infra"
	"github.com/npmart/storefront/internal/logging"
	"github.com/npmart/storefront/internal/records"
)

func createMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the records table and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL must be set to migrate")
			}
			logger := logging.New(cfg.LogLevel)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := records.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("records schema applied")
			return nil
		},
	}
}
