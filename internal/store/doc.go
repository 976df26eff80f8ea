// Package store opens SQLite databases with undo/redo history attached.
//
// A Store wraps the history package with a configured connection and a
// logger. Open creates the history tables, optionally applies a group limit
// and installs triggers on the configured tables.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The pool holds a single connection. Code running inside Edit must use the
// transaction it is given; calling back into the Store from fn blocks.
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo)
// and "sqlite" (modernc.org/sqlite, pure Go).
package store
