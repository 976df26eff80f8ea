package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/undodb/internal/history"
	"github.com/roach88/undodb/internal/store"
)

// ReplayOptions holds flags for the undo and redo commands.
type ReplayOptions struct {
	*RootOptions
	Count int // number of groups to replay
}

// ReplayResult is the output of the undo and redo commands.
type ReplayResult struct {
	Direction history.Direction `json:"direction"`
	Replays   []history.Result  `json:"replays"`
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newReplayCommand(rootOpts, history.DirectionUndo,
		"Revert the most recent undo group",
		`Replay the newest group of history_undo in one transaction and record
its inverse in history_redo.

Exit codes:
  0 - Undone, or nothing to undo
  1 - Replay failed and was rolled back
  2 - Command error

Examples:
  undodb undo
  undodb undo -n 3 --format json`)
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return newReplayCommand(rootOpts, history.DirectionRedo,
		"Reapply the most recently undone group",
		`Replay the newest group of history_redo in one transaction and record
its inverse in history_undo. Redo history survives only until the next
ordinary write to a tracked table.

Exit codes:
  0 - Redone, or nothing to redo
  1 - Replay failed and was rolled back
  2 - Command error`)
}

func newReplayCommand(rootOpts *RootOptions, dir history.Direction, short, long string) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           string(dir),
		Short:         short,
		Long:          long,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, dir, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of groups to "+string(dir))

	return cmd
}

func runReplay(opts *ReplayOptions, dir history.Direction, cmd *cobra.Command) error {
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--count must be at least 1, got %d", opts.Count))
	}

	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	result := ReplayResult{Direction: dir, Replays: []history.Result{}}
	out := opts.formatter(cmd)

	for i := 0; i < opts.Count; i++ {
		res := replayOnce(cmd, st, dir)
		if !res.Success {
			if err := out.Error(ErrorCode(res.Err), res.Err.Error(), result); err != nil {
				return err
			}
			return WrapExitError(ExitFailure, fmt.Sprintf("%s %d of %d", dir, i+1, opts.Count), res.Err)
		}
		// Group 0 is a real group; an empty log replays no statements.
		if len(res.Statements) == 0 {
			break
		}
		result.Replays = append(result.Replays, res)
		out.VerboseLog("%s group %d: %d statement(s)", dir, res.Group, len(res.Statements))
	}

	return out.Success(result, func(w io.Writer) {
		if len(result.Replays) == 0 {
			fmt.Fprintf(w, "Nothing to %s.\n", dir)
			return
		}
		for _, r := range result.Replays {
			fmt.Fprintf(w, "%s group %d (%d statement(s))", dir, r.Group, len(r.Statements))
			if len(r.Tables) > 0 {
				fmt.Fprintf(w, " on %v", r.Tables)
			}
			fmt.Fprintln(w)
		}
	})
}

func replayOnce(cmd *cobra.Command, st *store.Store, dir history.Direction) history.Result {
	if dir == history.DirectionRedo {
		return st.Redo(commandContext(cmd))
	}
	return st.Undo(commandContext(cmd))
}
