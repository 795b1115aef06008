package main

import (
	"fmt"

	"github.com/donets/jtrack/internal/server"
	"github.com/donets/jtrack/internal/server/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if err := server.Migrate(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrate up: ok")
	return nil
}
