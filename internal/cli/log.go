package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/undodb/internal/history"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Redo bool
}

// LogResult is the output of the log command.
type LogResult struct {
	Log     history.Direction `json:"log"`
	Entries []history.Entry   `json:"entries"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the recorded inverse statements",
		Long: `Print history_undo (or history_redo with --redo) in recording order.
Each entry is the statement that reverts one row change.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := history.DirectionUndo
			if opts.Redo {
				dir = history.DirectionRedo
			}

			st, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.Entries(commandContext(cmd), dir)
			if err != nil {
				return err
			}

			result := LogResult{Log: dir, Entries: entries}
			return opts.formatter(cmd).Success(result, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintf(w, "%s log is empty.\n", dir)
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%6d  group %-4d  %s\n", e.Sequence, e.Group, e.SQL)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Redo, "redo", false, "show the redo log")

	return cmd
}
