package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/undodb/internal/history"
)

// GroupResult reports the history counters after a group operation.
type GroupResult struct {
	Stats history.Stats `json:"stats"`
}

// NewLimitCommand creates the limit command.
func NewLimitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "limit [N]",
		Short: "Show or set the number of undo groups kept",
		Long: `Without an argument print the group limit. With N store it and evict
the oldest undo groups beyond it. Zero or a negative N disables the limit.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var limit *int64
			if len(args) == 1 {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid limit", err)
				}
				limit = &n
			}

			return runGroupOp(rootOpts, cmd, func(h groupHandle) error {
				if limit == nil {
					return nil
				}
				return h.SetGroupLimit(commandContext(cmd), *limit)
			}, func(w io.Writer, s history.Stats) {
				if s.GroupLimit <= 0 {
					fmt.Fprintln(w, "Group limit: unlimited")
					return
				}
				fmt.Fprintf(w, "Group limit: %d\n", s.GroupLimit)
			})
		},
	}
}

// NewSealCommand creates the seal command.
func NewSealCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Close the current undo group",
		Long: `Close the current undo group so the next write starts a new one.
Use after writing to tracked tables with another tool.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupOp(rootOpts, cmd, func(h groupHandle) error {
				_, err := h.IncrementGroup(commandContext(cmd))
				return err
			}, func(w io.Writer, s history.Stats) {
				fmt.Fprintf(w, "Current undo group: %d\n", s.CurUndoGroup)
			})
		},
	}
}

// NewFlattenCommand creates the flatten command.
func NewFlattenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flatten <group>",
		Short: "Merge every undo group above a group into it",
		Long: `Merge every undo group above <group> into <group>, so a single undo reverts them all.

A negative group must follow "--" so it is not read as a flag.

Examples:
  undodb flatten 4
  undodb flatten -- -3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid group", err)
			}
			return runGroupOp(rootOpts, cmd, func(h groupHandle) error {
				return h.FlattenGroupsAbove(commandContext(cmd), group)
			}, func(w io.Writer, s history.Stats) {
				fmt.Fprintf(w, "Flattened undo groups into %d\n", group)
			})
		},
	}
}

// NewDecrementCommand creates the decrement command.
func NewDecrementCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decrement",
		Short:         "Abandon the current undo group",
		Long:          "Delete the entries of the current undo group and step the group counter back by one.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupOp(rootOpts, cmd, func(h groupHandle) error {
				return h.DecrementLastGroup(commandContext(cmd))
			}, func(w io.Writer, s history.Stats) {
				fmt.Fprintf(w, "Current undo group: %d\n", s.CurUndoGroup)
			})
		},
	}
}
