package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/donets/jtrack/internal/client/services"
	"github.com/donets/jtrack/internal/domain"
	"github.com/spf13/cobra"
)

func (r *runner) commentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Add or delete ticket comments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <ticket-id> [text]",
		Short: "Comment on a ticket; the text is prompted for when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			body := ""
			if len(args) == 2 {
				body = args[1]
			} else {
				var err error
				if body, err = GetMultiline(a.in, "Comment", a.out); err != nil {
					return err
				}
			}
			c, err := a.muts.AddComment(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, c.ID)
			return nil
		}),
	}, &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			return a.muts.DeleteComment(cmd.Context(), args[0])
		}),
	})
	return cmd
}

func (r *runner) attachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <ticket-id> <file>",
		Short: "Attach a file; it is uploaded on the next sync",
		Args:  cobra.ExactArgs(2),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			at, err := a.muts.AddAttachment(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, at.ID)
			return nil
		}),
	}
}

func (r *runner) fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <attachment-id> <dest-file>",
		Short: "Download an attachment body from the server",
		Args:  cobra.ExactArgs(2),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			if err := a.ensureToken(); err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			n, err := a.syncer.FetchAttachment(cmd.Context(), args[0], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(args[1])
				return err
			}
			fmt.Fprintf(a.out, "%d bytes written to %s\n", n, args[1])
			return nil
		}),
	}
}

func (r *runner) payCmd() *cobra.Command {
	var in services.PaymentInput
	var status string
	cmd := &cobra.Command{
		Use:   "pay <ticket-id>",
		Short: "Record a payment for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			in.TicketID = args[0]
			in.Status = domain.PaymentStatus(strings.ToLower(status))
			p, err := a.muts.RecordPayment(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, p.ID)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&in.AmountCents, "amount-cents", 0, "amount in minor units")
	cmd.Flags().StringVar(&in.Currency, "currency", "EUR", "ISO 4217 currency code")
	cmd.Flags().StringVar(&in.Method, "method", "card", "cash, card, transfer or other")
	cmd.Flags().StringVar(&status, "status", string(domain.PaymentSucceeded), "pending, succeeded, failed or refunded")
	cmd.Flags().StringVar(&in.Reference, "reference", "", "external payment reference")
	_ = cmd.MarkFlagRequired("amount-cents")
	return cmd
}
