package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/undodb/internal/history"
)

// Driver names accepted by WithDriver.
const (
	// DriverCGo is github.com/mattn/go-sqlite3.
	DriverCGo = "sqlite3"

	// DriverPure is modernc.org/sqlite.
	DriverPure = "sqlite"
)

// DefaultBusyTimeout is the busy_timeout pragma in milliseconds.
const DefaultBusyTimeout = 5000

// Store is a SQLite database with undo/redo history attached.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	ids    history.ActionIDGenerator
}

type options struct {
	driver      string
	groupLimit  *int64
	logger      *slog.Logger
	tables      []string
	busyTimeout int
	ids         history.ActionIDGenerator
}

// Option configures Open.
type Option func(*options)

// WithDriver selects the database/sql driver: "sqlite3" (default) or "sqlite".
func WithDriver(name string) Option {
	return func(o *options) { o.driver = name }
}

// WithGroupLimit sets the retained undo group count on open.
// Non-positive means unlimited. Without this option the stored limit is kept.
func WithGroupLimit(limit int64) Option {
	return func(o *options) { o.groupLimit = &limit }
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTrackedTables installs history triggers on the tables during Open.
func WithTrackedTables(tables ...string) Option {
	return func(o *options) { o.tables = append(o.tables, tables...) }
}

// WithActionIDs sets the generator for replay action IDs. Defaults to UUIDv7.
func WithActionIDs(ids history.ActionIDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithBusyTimeout overrides the busy_timeout pragma (milliseconds).
func WithBusyTimeout(ms int) Option {
	return func(o *options) { o.busyTimeout = ms }
}

// Open creates or opens a SQLite database at the given path and prepares
// the history tables.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		driver:      DriverCGo,
		busyTimeout: DefaultBusyTimeout,
		ids:         history.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.driver != DriverCGo && o.driver != DriverPure {
		return nil, fmt.Errorf("unsupported driver %q: must be %q or %q", o.driver, DriverCGo, DriverPure)
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and the foreign_keys pragma
	// is per connection, so everything shares one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, o.busyTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	ctx := context.Background()
	if err := history.InitializeHistory(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	s := &Store{db: db, logger: o.logger, ids: o.ids}

	if o.groupLimit != nil {
		if err := s.SetGroupLimit(ctx, *o.groupLimit); err != nil {
			db.Close()
			return nil, err
		}
	}
	if len(o.tables) > 0 {
		if err := s.Track(ctx, o.tables...); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.logger.Debug("store opened", "path", path, "driver", o.driver)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
// Writes to tracked tables through it are recorded into the current undo group.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, busyTimeout int) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
