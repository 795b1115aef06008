package main

import (
	"fmt"

	"github.com/donets/jtrack/internal/server"
	"github.com/donets/jtrack/internal/server/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC and HTTP sync endpoints",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	app, err := server.NewApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return app.Run(cmd.Context())
}
