package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// InitResult is the output of the init command.
type InitResult struct {
	Database string   `json:"database"`
	Tracked  []string `json:"tracked"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [table...]",
		Short: "Create the history tables and track tables",
		Long: `Create history_undo, history_redo and history_stats if missing and
install history triggers on the given tables.

Running init again is safe: existing history and the group limit are kept.

Examples:
  undodb init
  undodb init notes tags --db app.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := commandContext(cmd)
			if err := st.Track(ctx, args...); err != nil {
				return WrapExitError(ExitCommandError, "track tables", err)
			}
			tracked, err := st.Tracked(ctx)
			if err != nil {
				return err
			}

			result := InitResult{Database: rootOpts.cfg.Database, Tracked: tracked}
			return rootOpts.formatter(cmd).Success(result, func(w io.Writer) {
				fmt.Fprintf(w, "Initialized history in %s\n", result.Database)
				if len(tracked) > 0 {
					fmt.Fprintf(w, "Tracking: %s\n", strings.Join(tracked, ", "))
				}
			})
		},
	}
}
