package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/database"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the ShopChat database schema",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				if err := database.RunMigrations(cfg.Database); err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				if err := database.RollbackMigration(cfg.Database); err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				return printVersion(cmd, cfg)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, cfg *config.Config) error {
	version, dirty, err := database.MigrationVersion(cfg.Database)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
