package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/undodb/internal/history"
)

// StatusResult summarizes the history of a database.
type StatusResult struct {
	Database   string        `json:"database"`
	Tracked    []string      `json:"tracked"`
	Stats      history.Stats `json:"stats"`
	UndoGroups int64         `json:"undo_groups"`
	RedoGroups int64         `json:"redo_groups"`
	Size       int64         `json:"size"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show tracked tables and history counters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := commandContext(cmd)
			result := StatusResult{Database: rootOpts.cfg.Database}
			if result.Tracked, err = st.Tracked(ctx); err != nil {
				return err
			}
			if result.Stats, err = st.Stats(ctx); err != nil {
				return err
			}
			if result.UndoGroups, err = st.GroupCount(ctx, history.DirectionUndo); err != nil {
				return err
			}
			if result.RedoGroups, err = st.GroupCount(ctx, history.DirectionRedo); err != nil {
				return err
			}
			if result.Size, err = st.Size(ctx); err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(result, func(w io.Writer) {
				tracked := "(none)"
				if len(result.Tracked) > 0 {
					tracked = strings.Join(result.Tracked, ", ")
				}
				limit := fmt.Sprint(result.Stats.GroupLimit)
				if result.Stats.GroupLimit <= 0 {
					limit = "unlimited"
				}
				fmt.Fprintf(w, "Database:      %s\n", result.Database)
				fmt.Fprintf(w, "Tracked:       %s\n", tracked)
				fmt.Fprintf(w, "Undo groups:   %d (current %d)\n", result.UndoGroups, result.Stats.CurUndoGroup)
				fmt.Fprintf(w, "Redo groups:   %d (current %d)\n", result.RedoGroups, result.Stats.CurRedoGroup)
				fmt.Fprintf(w, "Group limit:   %s\n", limit)
				fmt.Fprintf(w, "History size:  %d bytes\n", result.Size)
			})
		},
	}
}
