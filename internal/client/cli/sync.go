package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/donets/jtrack/internal/client/services"
	"github.com/spf13/cobra"
)

func printReport(w io.Writer, r *services.SyncReport) {
	fmt.Fprintf(w, "pushed %d, applied %d, rejected %d, conflicts %d, pulled %d, uploaded %d\n",
		r.Pushed, r.Applied, r.Rejected, r.Conflicts, r.Pulled, r.Uploaded)
}

func (r *runner) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued changes and pull server changes once",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *App, _ []string) error {
			if err := a.ensureToken(); err != nil {
				return err
			}
			report, err := a.syncer.SyncNow(cmd.Context())
			if err != nil {
				return err
			}
			printReport(a.out, report)
			if report.Rejected > 0 || report.Conflicts > 0 {
				fmt.Fprintln(a.out, "some changes were rejected or overwritten; see 'conflicts'")
			}
			return nil
		}),
	}
}

func (r *runner) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep syncing in the background until interrupted",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *App, _ []string) error {
			if err := a.ensureToken(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(a.out, "syncing location %s every %s, Ctrl+C to stop\n", a.config.LocationID, a.config.SyncInterval)
			return a.syncer.Run(ctx)
		}),
	}
}

func (r *runner) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queued changes, conflicts and the last pull",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *App, _ []string) error {
			ctx := cmd.Context()
			pending, err := a.muts.PendingCount(ctx)
			if err != nil {
				return err
			}
			list, err := a.muts.Conflicts(ctx)
			if err != nil {
				return err
			}
			cp, err := a.syncer.Checkpoint(ctx)
			if err != nil {
				return err
			}
			paused, err := a.syncer.PauseReason(ctx)
			if err != nil {
				return err
			}

			last := "never"
			if cp != nil {
				last = time.UnixMilli(*cp).UTC().Format(time.RFC3339)
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "location\t%s\n", a.config.LocationID)
			fmt.Fprintf(w, "user\t%s (%s)\n", a.config.UserID, a.config.Role)
			fmt.Fprintf(w, "queued changes\t%d\n", pending)
			fmt.Fprintf(w, "conflicts\t%d\n", len(list))
			fmt.Fprintf(w, "last pull\t%s\n", last)
			if paused != "" {
				fmt.Fprintf(w, "background sync\tpaused (%s), run 'sync' to retry\n", paused)
			}
			return w.Flush()
		}),
	}
}

func (r *runner) conflictsCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List local changes the server rejected or overwrote",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, a *App, _ []string) error {
			ctx := cmd.Context()
			if reset {
				return a.muts.ClearConflicts(ctx)
			}
			list, err := a.muts.Conflicts(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "no conflicts")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tFAMILY\tID\tKIND\tREASON")
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					time.UnixMilli(c.RecordedAt).UTC().Format(time.RFC3339), c.Family, c.EntityID, c.Kind, c.Reason)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().BoolVar(&reset, "clear", false, "forget every recorded conflict")
	return cmd
}
