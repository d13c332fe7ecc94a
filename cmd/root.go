package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picbrand/internal/logging"
	"picbrand/internal/models"
)

type app struct {
	configPath string
	cfg        *models.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "picbrand",
		Short: "Watch a folder for photos, apply effects, upload and print them",
		Long: `picbrand watches a folder for new images and keeps them in a pending list.

The pending list can be filtered with one of the canned effects, uploaded to
Google Drive, or have its most recent image printed. A small portfolio table
pair is queried and touched through the portfolio commands.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := models.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML or TOML config file")

	cmd.AddCommand(
		newServeCmd(a),
		newApplyCmd(a),
		newUploadCmd(a),
		newAuthCmd(a),
		newPrintCmd(a),
		newPrinterCmd(a),
		newCamerasCmd(a),
		newCaptureCmd(a),
		newPortfolioCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}
