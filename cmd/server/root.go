package main

import (
	"github.com/donets/jtrack/internal/server/config"
	"github.com/spf13/cobra"
)

var flags *config.Flags

var rootCmd = &cobra.Command{
	Use:          "jtrack-server",
	Short:        "jtrack sync server: pull/push reconciliation for field-service tickets",
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags = config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(issueTokenCmd)
}
