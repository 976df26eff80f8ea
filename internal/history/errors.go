package history

import (
	"errors"
	"fmt"
)

// Precondition errors. They are wrapped with context; match with errors.Is.
var (
	// ErrNotFound indicates the history_stats row is missing.
	ErrNotFound = errors.New("history stats row not found")

	// ErrTableNotFound indicates the table to track does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrNoColumns indicates the table has no introspectable columns.
	ErrNoColumns = errors.New("table has no columns")

	// ErrReservedTable indicates an attempt to track a history or sqlite_ table.
	ErrReservedTable = errors.New("table is reserved")

	// ErrWithoutRowid indicates a WITHOUT ROWID table, which triggers cannot address.
	ErrWithoutRowid = errors.New("table has no rowid")

	// ErrNotTracked indicates the table has no history triggers installed.
	ErrNotTracked = errors.New("table is not tracked")
)

// Step names the phase of a replay in which an error occurred.
type Step string

const (
	StepLocate      Step = "locate"
	StepForeignKeys Step = "foreign_keys"
	StepBegin       Step = "begin"
	StepCollect     Step = "collect"
	StepRetarget    Step = "retarget"
	StepReplay      Step = "replay"
	StepPurge       Step = "purge"
	StepRefresh     Step = "refresh"
	StepRestore     Step = "restore"
	StepCommit      Step = "commit"
)

// ReplayError describes a failed undo or redo. Everything done by the
// replay has been rolled back when it is reported.
type ReplayError struct {
	Direction Direction
	Step      Step

	// Statement is the inverse statement that failed, for StepReplay.
	Statement string

	Err error
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("%s failed at %s: %q: %v", e.Direction, e.Step, e.Statement, e.Err)
	}
	return fmt.Sprintf("%s failed at %s: %v", e.Direction, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReplayError) Unwrap() error {
	return e.Err
}

// IsReplayError returns true if err is or wraps a *ReplayError.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}
