package main

import (
	"fmt"

	"github.com/donets/jtrack/internal/server/auth"
	"github.com/donets/jtrack/internal/server/config"
	"github.com/spf13/cobra"
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <user-id>",
	Short: "Print a bearer token for a user (development helper)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssueToken,
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	token, err := auth.GenerateToken(args[0], []byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
