package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// IncrementGroup opens a new group in the log of dir and returns its number.
//
// The new group is 1 + the highest group in the log (1 for an empty log) and
// becomes the current group in the stats row. If group_limit is positive and
// the log now holds more distinct groups than the limit, the oldest groups
// are deleted until exactly group_limit remain.
//
// Callers seal a batch of row changes as one undo step by calling this after
// the changes.
func IncrementGroup(ctx context.Context, q Querier, dir Direction) (int64, error) {
	top, ok, err := maxGroup(ctx, q, dir)
	if err != nil {
		return 0, fmt.Errorf("increment %s group: %w", dir, err)
	}
	next := int64(1)
	if ok {
		next = top + 1
	}

	if err := setCurrentGroup(ctx, q, dir, next); err != nil {
		return 0, fmt.Errorf("increment %s group: %w", dir, err)
	}

	limit, err := GroupLimit(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("increment %s group: %w", dir, err)
	}
	if _, err := evictOldestGroups(ctx, q, dir, limit); err != nil {
		return 0, fmt.Errorf("increment %s group: %w", dir, err)
	}

	return next, nil
}

// FlattenGroupsAbove merges every undo group greater than group into group
// and makes group the current undo group. Groups at or below group are not
// touched. Negative group numbers are valid.
func FlattenGroupsAbove(ctx context.Context, q Querier, group int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE "history_undo" SET "history_group" = ? WHERE "history_group" > ?
	`, group, group)
	if err != nil {
		return fmt.Errorf("flatten undo groups above %d: %w", group, err)
	}

	if err := setCurrentGroup(ctx, q, DirectionUndo, group); err != nil {
		return fmt.Errorf("flatten undo groups above %d: %w", group, err)
	}
	return nil
}

// DecrementLastGroup abandons the current undo group: when it is greater
// than zero it is decremented and every undo entry tagged with the abandoned
// group is deleted. Used to unwind a group that was opened speculatively.
func DecrementLastGroup(ctx context.Context, q Querier) error {
	current, err := CurrentGroup(ctx, q, DirectionUndo)
	if err != nil {
		return fmt.Errorf("decrement undo group: %w", err)
	}
	if current <= 0 {
		return nil
	}

	if err := setCurrentGroup(ctx, q, DirectionUndo, current-1); err != nil {
		return fmt.Errorf("decrement undo group: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		DELETE FROM "history_undo" WHERE "history_group" = ?
	`, current); err != nil {
		return fmt.Errorf("decrement undo group: %w", err)
	}
	return nil
}

// RefreshCurrentGroups sets both current groups to 1 + the highest group of
// their log (1 for an empty log).
func RefreshCurrentGroups(ctx context.Context, q Querier) error {
	for _, dir := range []Direction{DirectionUndo, DirectionRedo} {
		res, err := q.ExecContext(ctx, fmt.Sprintf(`
			UPDATE "history_stats"
			SET %s = (SELECT COALESCE(MAX("history_group"), 0) + 1 FROM %s)
			WHERE "id" = 1
		`, quoteIdent(dir.groupColumn()), quoteIdent(dir.logTable())))
		if err != nil {
			return fmt.Errorf("refresh %s group: %w", dir, err)
		}
		if err := requireStatsRow(res); err != nil {
			return fmt.Errorf("refresh %s group: %w", dir, err)
		}
	}
	return nil
}

// CurrentGroup returns the group new entries of dir are stamped with.
func CurrentGroup(ctx context.Context, q Querier, dir Direction) (int64, error) {
	var group int64
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM "history_stats" WHERE "id" = 1
	`, quoteIdent(dir.groupColumn()))).Scan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("current %s group: %w", dir, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("current %s group: %w", dir, err)
	}
	return group, nil
}

// ReadStats returns the stats row.
func ReadStats(ctx context.Context, q Querier) (Stats, error) {
	var s Stats
	err := q.QueryRowContext(ctx, `
		SELECT "cur_undo_group", "cur_redo_group", "group_limit"
		FROM "history_stats" WHERE "id" = 1
	`).Scan(&s.CurUndoGroup, &s.CurRedoGroup, &s.GroupLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, fmt.Errorf("read stats: %w", ErrNotFound)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return s, nil
}

// GroupLimit returns the maximum number of undo groups retained.
// Non-positive means unlimited.
func GroupLimit(ctx context.Context, q Querier) (int64, error) {
	var limit int64
	err := q.QueryRowContext(ctx, `
		SELECT "group_limit" FROM "history_stats" WHERE "id" = 1
	`).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("group limit: %w", ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("group limit: %w", err)
	}
	return limit, nil
}

// SetGroupLimit changes the group limit. A positive limit lower than the
// number of retained groups prunes the oldest groups of both logs at once.
func SetGroupLimit(ctx context.Context, q Querier, limit int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE "history_stats" SET "group_limit" = ? WHERE "id" = 1
	`, limit)
	if err != nil {
		return fmt.Errorf("set group limit: %w", err)
	}
	if err := requireStatsRow(res); err != nil {
		return fmt.Errorf("set group limit: %w", err)
	}

	for _, dir := range []Direction{DirectionUndo, DirectionRedo} {
		if _, err := evictOldestGroups(ctx, q, dir, limit); err != nil {
			return fmt.Errorf("set group limit: %w", err)
		}
	}
	return nil
}

// GroupCount returns the number of distinct groups in the log of dir.
func GroupCount(ctx context.Context, q Querier, dir Direction) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(DISTINCT "history_group") FROM %s
	`, quoteIdent(dir.logTable()))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s groups: %w", dir, err)
	}
	return n, nil
}

// maxGroup returns the highest group of the log of dir. ok is false for an
// empty log.
func maxGroup(ctx context.Context, q Querier, dir Direction) (group int64, ok bool, err error) {
	var top sql.NullInt64
	err = q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT MAX("history_group") FROM %s
	`, quoteIdent(dir.logTable()))).Scan(&top)
	if err != nil {
		return 0, false, err
	}
	return top.Int64, top.Valid, nil
}

func setCurrentGroup(ctx context.Context, q Querier, dir Direction, group int64) error {
	res, err := q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE "history_stats" SET %s = ? WHERE "id" = 1
	`, quoteIdent(dir.groupColumn())), group)
	if err != nil {
		return err
	}
	return requireStatsRow(res)
}

// evictOldestGroups deletes the oldest groups of the log of dir so that at
// most limit distinct groups remain. A non-positive limit keeps everything.
func evictOldestGroups(ctx context.Context, q Querier, dir Direction, limit int64) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}

	count, err := GroupCount(ctx, q, dir)
	if err != nil {
		return 0, err
	}
	if count <= limit {
		return 0, nil
	}

	table := quoteIdent(dir.logTable())
	res, err := q.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE "history_group" IN (
			SELECT DISTINCT "history_group" FROM %s
			ORDER BY "history_group" ASC
			LIMIT ?
		)
	`, table, table), count-limit)
	if err != nil {
		return 0, fmt.Errorf("evict oldest %s groups: %w", dir, err)
	}
	return res.RowsAffected()
}

func requireStatsRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
