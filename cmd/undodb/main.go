// Command undodb manages trigger-based undo/redo history in SQLite databases.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/undodb/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
