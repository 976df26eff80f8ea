package history

import (
	"context"
	"fmt"
)

// Entries lists the log of dir in insertion order.
func Entries(ctx context.Context, q Querier, dir Direction) ([]Entry, error) {
	return queryEntries(ctx, q, fmt.Sprintf(`
		SELECT "sequence", "history_group", "sql" FROM %s
		ORDER BY "sequence" ASC
	`, quoteIdent(dir.logTable())))
}

// groupEntries lists one group of the log of dir newest first, which is the
// replay order.
func groupEntries(ctx context.Context, q Querier, dir Direction, group int64) ([]Entry, error) {
	return queryEntries(ctx, q, fmt.Sprintf(`
		SELECT "sequence", "history_group", "sql" FROM %s
		WHERE "history_group" = ?
		ORDER BY "sequence" DESC
	`, quoteIdent(dir.logTable())), group)
}

func queryEntries(ctx context.Context, q Querier, query string, args ...any) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Sequence, &e.Group, &e.SQL); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ClearMostRecentRedo deletes the newest redo group. Used when changes were
// rolled back and their redo history must not be kept.
func ClearMostRecentRedo(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM "history_redo"
		WHERE "history_group" = (SELECT MAX("history_group") FROM "history_redo")
	`)
	if err != nil {
		return fmt.Errorf("clear most recent redo: %w", err)
	}
	return nil
}

// ClearHistory empties both logs and resets both current groups to zero.
// The group limit is kept.
func ClearHistory(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM "history_undo"`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM "history_redo"`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE "history_stats" SET "cur_undo_group" = 0, "cur_redo_group" = 0 WHERE "id" = 1
	`)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if err := requireStatsRow(res); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// CalculateHistorySize returns the total length of the inverse statements
// stored in both logs. It approximates the storage used by history.
func CalculateHistorySize(ctx context.Context, q Querier) (int64, error) {
	var size int64
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(LENGTH("sql")), 0) FROM "history_undo") +
			(SELECT COALESCE(SUM(LENGTH("sql")), 0) FROM "history_redo")
	`).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("calculate history size: %w", err)
	}
	return size, nil
}
