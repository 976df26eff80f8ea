// Package history implements SQL-native undo/redo for SQLite databases.
//
// History is captured by generated triggers rather than by application code.
// Each tracked table gets three triggers that append an inverse statement to
// a log table whenever a row is inserted, updated or deleted:
//
//   - history_undo: inverse statements for ordinary edits
//   - history_redo: inverse statements recorded while an undo is replayed
//   - history_stats: single row holding the open group numbers and the limit
//
// # Groups
//
// Entries are tagged with a group number read live from history_stats when
// the trigger fires. A group is one user-visible step. Callers seal a step
// with IncrementGroup; Undo and Redo always consume the newest group of the
// respective log.
//
// # Trigger Mode
//
// Which log a table's triggers write to is encoded by the triggers that are
// physically installed. During a replay the triggers of every touched table
// are reinstalled to point at the opposite log, so that replaying the undo
// log fills the redo log and vice versa. Afterwards they are reinstalled in
// undo mode, where every fresh edit also empties the redo log. A table that
// was untracked while it still had logged entries is left untracked.
//
// # Atomicity
//
// Execute runs the whole replay (retargeting, statements, purge, bookkeeping
// and restoring trigger mode) in one transaction on a dedicated connection.
// A failing statement rolls everything back and is reported in the Result,
// never returned as a Go error.
//
// Triggers capture the column set of a table at install time. After a schema
// change to a tracked table, call InstallTriggers again.
package history
