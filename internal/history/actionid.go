package history

import "github.com/google/uuid"

// ActionIDGenerator produces the ActionID stamped on each undo or redo.
type ActionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 action IDs, so log lines
// of consecutive replays sort in the order they ran.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
