package history

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// InitializeHistory creates the undo log, the redo log and the stats row.
// It is idempotent and works on an empty database. An existing stats row is
// left untouched.
func InitializeHistory(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("initialize history: %w", err)
	}

	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO "history_stats"
		("id", "cur_undo_group", "cur_redo_group", "group_limit")
		VALUES (1, 0, 0, ?)
	`, DefaultGroupLimit)
	if err != nil {
		return fmt.Errorf("initialize history: insert stats: %w", err)
	}

	return nil
}
