package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/comfydeploy/engine/pkg/config"
	"github.com/comfydeploy/engine/pkg/database"
	"github.com/comfydeploy/engine/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the deploy engine database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Create or update tables and indexes",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := open(cmd.Context())
				if err != nil {
					return err
				}
				if err := runMigrations(db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				logger.L().Info("migrations completed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Verify the schema carries the deployment slot index",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := open(cmd.Context())
				if err != nil {
					return err
				}
				if err := checkSchema(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema ok")
				return nil
			},
		},
	)
	return root
}

func open(ctx context.Context) (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.Open(ctx, cfg.DatabaseURL, database.Options{
		Retries: cfg.DBConnectRetries,
		Delay:   cfg.DBConnectDelay,
	})
	if err != nil {
		logger.L().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}
	return db, nil
}
