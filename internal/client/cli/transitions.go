package cli

import (
	"fmt"

	"github.com/donets/jtrack/internal/domain"
	"github.com/spf13/cobra"
)

// transitionsCmd works without a replica; it only needs the role.
func transitionsCmd() *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "transitions [current-status]",
		Short: "List the statuses the configured role may move a ticket to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleName, err := cmd.Flags().GetString("role")
			if err != nil {
				return err
			}
			role, err := domain.ParseRole(roleName)
			if err != nil {
				return err
			}

			from := domain.Statuses
			if len(args) == 1 {
				s, err := domain.ParseStatus(args[0])
				if err != nil {
					return err
				}
				from = []domain.Status{s}
			}

			out := cmd.OutOrStdout()
			for _, s := range from {
				allowed := domain.ListAllowedStatusTransitions(s, role, domain.SystemIf(system))
				if len(allowed) == 0 {
					fmt.Fprintf(out, "%s → (none)\n", s)
					continue
				}
				fmt.Fprintf(out, "%s → %s\n", s, statusList(allowed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "include transitions reserved for the payment workflow")
	return cmd
}
