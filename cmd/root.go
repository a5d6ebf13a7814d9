package cmd

import (
	"context"
	"fmt"
	"os"

	"payment-service/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "payment-service",
	Short: "Payment gateway integration and transaction reconciliation service",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "path to the env file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// Execute runs the root command; without a subcommand it serves.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads config and the logger shared by every subcommand.
func bootstrap() (*utils.Config, *zap.Logger, error) {
	config, err := utils.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v. Using production logger.\n", err)
		logger, _ = zap.NewProduction()
	}
	return config, logger, nil
}
