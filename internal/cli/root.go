package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/undodb/internal/config"
	"github.com/roach88/undodb/internal/logging"
	"github.com/roach88/undodb/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides config database
	Driver   string // overrides config driver
	Config   string // config file path

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the undodb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "undodb",
		Short: "undodb - undo and redo for SQLite tables",
		Long: `Trigger-based undo/redo history kept inside the SQLite database itself.

Tracked tables record the inverse of every INSERT, UPDATE and DELETE
into history_undo. Undo and redo replay one group of inverse statements
at a time inside a single transaction.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "database path (default from config)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "sqlite driver (sqlite3|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default "+config.DefaultPath+")")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewUntrackCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewRedoCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewLimitCommand(opts))
	cmd.AddCommand(NewSealCommand(opts))
	cmd.AddCommand(NewFlattenCommand(opts))
	cmd.AddCommand(NewDecrementCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// resolve validates global flags, loads the config file and builds the
// logger. Subcommands call it too, so they work when executed on their own.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}
	if o.Format == "" {
		o.Format = "text"
	}
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	path := o.Config
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "configure logging", err)
	}

	o.cfg = cfg
	o.logger = logger
	return nil
}

// openStore opens the configured database with the configured tables tracked.
func (o *RootOptions) openStore(cmd *cobra.Command) (*store.Store, error) {
	if err := o.resolve(cmd); err != nil {
		return nil, err
	}

	storeOpts := []store.Option{
		store.WithDriver(o.cfg.Driver),
		store.WithLogger(o.logger),
		store.WithTrackedTables(o.cfg.Tables...),
	}
	if o.cfg.GroupLimit != nil {
		storeOpts = append(storeOpts, store.WithGroupLimit(*o.cfg.GroupLimit))
	}

	st, err := store.Open(o.cfg.Database, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open database %s", o.cfg.Database), err)
	}
	return st, nil
}

// formatter returns an output formatter bound to the command's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
