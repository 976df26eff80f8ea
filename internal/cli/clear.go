package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/undodb/internal/history"
)

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	RedoLast bool
}

// groupHandle is the part of the store the group commands drive.
type groupHandle interface {
	Stats(ctx context.Context) (history.Stats, error)
	SetGroupLimit(ctx context.Context, limit int64) error
	IncrementGroup(ctx context.Context) (int64, error)
	FlattenGroupsAbove(ctx context.Context, group int64) error
	DecrementLastGroup(ctx context.Context) error
	ClearHistory(ctx context.Context) error
	ClearMostRecentRedo(ctx context.Context) error
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded history",
		Long: `Empty both history logs and reset the group counters.
With --redo-last only the newest redo group is dropped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupOp(opts.RootOptions, cmd, func(h groupHandle) error {
				if opts.RedoLast {
					return h.ClearMostRecentRedo(commandContext(cmd))
				}
				return h.ClearHistory(commandContext(cmd))
			}, func(w io.Writer, s history.Stats) {
				if opts.RedoLast {
					fmt.Fprintln(w, "Dropped the most recent redo group.")
					return
				}
				fmt.Fprintln(w, "History cleared.")
			})
		},
	}

	cmd.Flags().BoolVar(&opts.RedoLast, "redo-last", false, "drop only the newest redo group")

	return cmd
}

// runGroupOp opens the store, applies op and reports the resulting stats.
func runGroupOp(opts *RootOptions, cmd *cobra.Command, op func(groupHandle) error, text func(io.Writer, history.Stats)) error {
	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := op(st); err != nil {
		return WrapExitError(ExitCommandError, cmd.Name(), err)
	}
	stats, err := st.Stats(commandContext(cmd))
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(GroupResult{Stats: stats}, func(w io.Writer) {
		text(w, stats)
	})
}
