package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/donets/jtrack/internal/client/services"
	"github.com/donets/jtrack/internal/domain"
	"github.com/spf13/cobra"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printTicket(w io.Writer, v *services.TicketView) error {
	t := v.Ticket
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", t.ID)
	fmt.Fprintf(tw, "title\t%s\n", t.Title)
	fmt.Fprintf(tw, "status\t%s\n", t.Status)
	fmt.Fprintf(tw, "priority\t%s\n", t.Priority)
	if t.AssignedToUserID != "" {
		fmt.Fprintf(tw, "assigned to\t%s\n", t.AssignedToUserID)
	}
	fmt.Fprintf(tw, "updated\t%s\n", time.UnixMilli(t.UpdatedAt).UTC().Format(time.RFC3339))
	if err := tw.Flush(); err != nil {
		return err
	}
	if t.Description != "" {
		fmt.Fprintf(w, "\n%s\n", t.Description)
	}

	if len(v.Comments) > 0 {
		fmt.Fprintln(w, "\ncomments:")
		for _, c := range v.Comments {
			fmt.Fprintf(w, "  [%s] %s: %s\n", shortID(c.ID), c.AuthorUserID, c.Body)
		}
	}
	if len(v.Attachments) > 0 {
		fmt.Fprintln(w, "\nattachments:")
		for _, a := range v.Attachments {
			fmt.Fprintf(w, "  %s  %s (%s, %d bytes)\n", a.ID, a.FileName, a.ContentType, a.SizeBytes)
		}
	}
	if len(v.Payments) > 0 {
		fmt.Fprintln(w, "\npayments:")
		for _, p := range v.Payments {
			fmt.Fprintf(w, "  %s  %d.%02d %s %s via %s\n", shortID(p.ID), p.AmountCents/100, p.AmountCents%100, p.Currency, p.Status, p.Method)
		}
	}
	return nil
}

func (r *runner) ticketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tickets",
		Short: "List tickets of the location",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *App, _ []string) error {
			list, err := a.muts.Tickets(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "no tickets")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Title)
			}
			return w.Flush()
		}),
	}
}

func (r *runner) ticketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Create and change tickets offline",
	}
	cmd.AddCommand(r.ticketCreateCmd(), r.ticketShowCmd(), r.ticketUpdateCmd(), r.ticketStatusCmd(), r.ticketDeleteCmd())
	return cmd
}

func (r *runner) ticketCreateCmd() *cobra.Command {
	var in struct {
		title, description, priority, assignee string
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *App, _ []string) error {
			if in.title == "" {
				title, err := GetSimpleText(a.in, "Title", a.out)
				if err != nil {
					return err
				}
				in.title = title
			}
			t, err := a.muts.CreateTicket(cmd.Context(), services.TicketInput{
				Title:            in.title,
				Description:      in.description,
				Priority:         domain.Priority(in.priority),
				AssignedToUserID: in.assignee,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, t.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&in.title, "title", "", "short summary, prompted for when empty")
	cmd.Flags().StringVar(&in.description, "description", "", "details")
	cmd.Flags().StringVar(&in.priority, "priority", string(domain.PriorityNormal), "low, normal, high or urgent")
	cmd.Flags().StringVar(&in.assignee, "assign", "", "user id of the assignee")
	return cmd
}

func (r *runner) ticketShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show a ticket with its comments, attachments and payments",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			v, err := a.muts.Ticket(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTicket(a.out, v)
		}),
	}
}

func (r *runner) ticketUpdateCmd() *cobra.Command {
	var title, description, priority, assignee string
	cmd := &cobra.Command{
		Use:   "update <ticket-id>",
		Short: "Change ticket fields",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			var patch services.TicketPatch
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &description
			}
			if f.Changed("priority") {
				p := domain.Priority(priority)
				patch.Priority = &p
			}
			if f.Changed("assign") {
				patch.AssignedToUserID = &assignee
			}
			_, err := a.muts.UpdateTicket(cmd.Context(), args[0], patch)
			return err
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&assignee, "assign", "", "new assignee, empty to unassign")
	return cmd
}

func (r *runner) ticketStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ticket-id> <status>",
		Short: "Move a ticket to another status",
		Long:  "Move a ticket to another status. Valid statuses: " + statusList(domain.Statuses) + ".",
		Args:  cobra.ExactArgs(2),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			next, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			t, err := a.muts.ChangeTicketStatus(cmd.Context(), args[0], next)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is now %s\n", t.ID, t.Status)
			return nil
		}),
	}
}

func (r *runner) ticketDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ticket-id>",
		Short: "Delete a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, a *App, args []string) error {
			return a.muts.DeleteTicket(cmd.Context(), args[0])
		}),
	}
}

func statusList(list []domain.Status) string {
	s := make([]string, len(list))
	for i, v := range list {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
