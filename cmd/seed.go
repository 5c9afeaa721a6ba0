/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/mautops/checklist-gin/internal/database"
	"github.com/mautops/checklist-gin/internal/seed"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import roles, users, templates and machines from a YAML file",
	Long: `Import roles, users, checklist templates and machine assignments
from a YAML fixture file. The import runs in one transaction and can be
repeated: existing records are updated in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		cfg, _, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fx, err := seed.LoadFile(file)
		if err != nil {
			return err
		}

		db, err := database.ConnectWithRetry(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		sum, err := seed.Apply(cmd.Context(), db, fx)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", file, err)
		}

		logger.WithFields(logrus.Fields{
			"file":      file,
			"roles":     sum.Roles,
			"users":     sum.Users,
			"templates": sum.Templates,
			"machines":  sum.Machines,
		}).Info("fixture imported")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("file", "", "YAML fixture file")
}
