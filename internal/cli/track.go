package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// TrackResult lists the tracked tables after a track or untrack.
type TrackResult struct {
	Tracked []string `json:"tracked"`
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "track <table>...",
		Short: "Install history triggers on tables",
		Long: `Install the insert, update and delete history triggers on each table.

Triggers are regenerated from the current column list, so run track again
after altering a tracked table.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(rootOpts, cmd, args, true)
		},
	}
}

// NewUntrackCommand creates the untrack command.
func NewUntrackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "untrack <table>...",
		Short:         "Remove history triggers from tables",
		Long:          "Remove the history triggers from each table. Entries already logged are kept.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(rootOpts, cmd, args, false)
		},
	}
}

func runTrack(opts *RootOptions, cmd *cobra.Command, tables []string, track bool) error {
	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	if track {
		err = st.Track(ctx, tables...)
	} else {
		err = st.Untrack(ctx, tables...)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "update triggers", err)
	}

	tracked, err := st.Tracked(ctx)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(TrackResult{Tracked: tracked}, func(w io.Writer) {
		if len(tracked) == 0 {
			fmt.Fprintln(w, "No tables tracked.")
			return
		}
		fmt.Fprintf(w, "Tracking: %s\n", strings.Join(tracked, ", "))
	})
}
