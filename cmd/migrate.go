package cmd

import (
	"fmt"

	"payment-service/internal/data/migrations"
	"payment-service/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.InitDB(config.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		applied, err := migrations.Run(cmd.Context(), db, logger)
		if err != nil {
			return err
		}
		logger.Info("Migrations complete", zap.Int("applied", applied))
		return nil
	},
}
