package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/donets/jtrack/internal/client/config"
	"github.com/spf13/cobra"
)

type runner struct {
	flags *config.Flags
	in    *bufio.Reader
}

type appFunc func(cmd *cobra.Command, a *App, args []string) error

// withApp opens the agent for the duration of one command.
func (r *runner) withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(r.flags)
		if err != nil {
			return err
		}
		a, err := NewApp(cmd.Context(), cfg, r.in, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

// NewRootCommand builds the agent command tree reading prompts from in.
func NewRootCommand(in io.Reader) *cobra.Command {
	r := &runner{in: bufio.NewReader(in)}

	root := &cobra.Command{
		Use:          "jtrack-agent",
		Short:        "Offline-first field agent for jtrack tickets",
		SilenceUsage: true,
	}
	r.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		r.syncCmd(),
		r.runCmd(),
		r.statusCmd(),
		r.conflictsCmd(),
		r.ticketsCmd(),
		r.ticketCmd(),
		r.commentCmd(),
		r.attachCmd(),
		r.fetchCmd(),
		r.payCmd(),
		transitionsCmd(),
	)
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdin).ExecuteContext(ctx)
}
