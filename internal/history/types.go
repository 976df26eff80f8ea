package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names of the persisted history layout.
const (
	UndoTable  = "history_undo"
	RedoTable  = "history_redo"
	StatsTable = "history_stats"
)

// DefaultGroupLimit is the group limit written when the stats row is created.
const DefaultGroupLimit int64 = 500

// Querier is the subset of database/sql shared by *sql.DB, *sql.Conn and *sql.Tx.
// Group and trigger operations accept a Querier so they can run inside a
// caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conner hands out a dedicated connection. *sql.DB implements it.
type Conner interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Direction selects the undo or the redo side of the history.
type Direction string

const (
	// DirectionUndo targets history_undo and cur_undo_group.
	DirectionUndo Direction = "undo"

	// DirectionRedo targets history_redo and cur_redo_group.
	DirectionRedo Direction = "redo"
)

// ParseDirection converts "undo" or "redo" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUndo, DirectionRedo:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q: must be undo or redo", s)
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionUndo {
		return DirectionRedo
	}
	return DirectionUndo
}

func (d Direction) logTable() string {
	if d == DirectionRedo {
		return RedoTable
	}
	return UndoTable
}

func (d Direction) groupColumn() string {
	if d == DirectionRedo {
		return "cur_redo_group"
	}
	return "cur_undo_group"
}

// Entry is one inverse statement in the undo or redo log.
type Entry struct {
	Sequence int64  `json:"sequence"`
	Group    int64  `json:"group"`
	SQL      string `json:"sql"`
}

// Stats mirrors the single history_stats row.
type Stats struct {
	CurUndoGroup int64 `json:"cur_undo_group"`
	CurRedoGroup int64 `json:"cur_redo_group"`
	// GroupLimit is the number of undo groups retained. Non-positive means unlimited.
	GroupLimit int64 `json:"group_limit"`
}

// Result reports the outcome of one undo or redo.
//
// A replay that finds an empty log is a successful no-op with no tables and
// no statements. On failure Success is false, Tables and Statements are empty
// and Err holds a *ReplayError.
type Result struct {
	// ActionID correlates log lines of a single undo or redo.
	ActionID  string    `json:"action_id"`
	Direction Direction `json:"direction"`
	Success   bool      `json:"success"`

	// Group is the consumed group. Zero for a no-op.
	Group int64 `json:"group"`

	// Tables is the sorted set of tables touched by the replay.
	Tables []string `json:"tables"`

	// Statements are the executed inverse statements in execution order.
	Statements []string `json:"statements"`

	Err error `json:"-"`
}

// HasTable reports whether the replay touched the named table.
func (r Result) HasTable(name string) bool {
	for _, t := range r.Tables {
		if t == name {
			return true
		}
	}
	return false
}
