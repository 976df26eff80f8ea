package cli

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ExecResult is the output of the exec command.
type ExecResult struct {
	Group        int64 `json:"group"`
	Statements   int   `json:"statements"`
	RowsAffected int64 `json:"rows_affected"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql>...",
		Short: "Run statements as one undoable edit",
		Long: `Run the statements in a single transaction and seal the undo group
they wrote, so one undo reverts all of them.

If any statement fails nothing is applied and nothing is logged.

Examples:
  undodb exec "INSERT INTO notes (body) VALUES ('hello')"
  undodb exec "UPDATE notes SET body = 'a'" "DELETE FROM tags"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			var affected int64
			group, err := st.Edit(commandContext(cmd), func(tx *sql.Tx) error {
				for i, stmt := range args {
					res, err := tx.ExecContext(commandContext(cmd), stmt)
					if err != nil {
						return fmt.Errorf("statement %d: %w", i+1, err)
					}
					if n, err := res.RowsAffected(); err == nil {
						affected += n
					}
				}
				return nil
			})
			if err != nil {
				return WrapExitError(ExitFailure, "exec", err)
			}

			result := ExecResult{Group: group, Statements: len(args), RowsAffected: affected}
			return rootOpts.formatter(cmd).Success(result, func(w io.Writer) {
				fmt.Fprintf(w, "Applied %d statement(s), %d row(s) affected, sealed group %d\n",
					result.Statements, result.RowsAffected, result.Group)
			})
		},
	}
}
