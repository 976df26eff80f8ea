package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var withoutRowidPattern = regexp.MustCompile(`(?i)\bWITHOUT\s+ROWID\b`)

// InstallTriggers (re)creates the insert, update and delete triggers of a
// table so that they append inverse statements to the log of mode.
//
// The column set is introspected now; triggers do not follow later schema
// changes. When mode is DirectionUndo and clearOppositeLogOnWrite is true,
// every fired trigger also empties the redo log, which is how a fresh edit
// invalidates redo history.
//
// Existing triggers with the same names are dropped first, so reinstalling
// is safe.
func InstallTriggers(ctx context.Context, q Querier, table string, mode Direction, clearOppositeLogOnWrite bool) error {
	info, err := inspectTable(ctx, q, table)
	if err != nil {
		return fmt.Errorf("install triggers on %q: %w", table, err)
	}

	if err := DropTriggers(ctx, q, info.name); err != nil {
		return err
	}

	for _, stmt := range triggerSQL(info, mode, clearOppositeLogOnWrite) {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("install triggers on %q: %w", info.name, err)
		}
	}
	return nil
}

// DropTriggers removes the history triggers of a table, which stops tracking
// it. Missing triggers are ignored.
func DropTriggers(ctx context.Context, q Querier, table string) error {
	for _, suffix := range triggerSuffixes {
		if _, err := q.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+quoteIdent(table+suffix)); err != nil {
			return fmt.Errorf("drop triggers on %q: %w", table, err)
		}
	}
	return nil
}

// TrackedTables lists tables that have a history insert trigger, sorted by name.
func TrackedTables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tbl_name FROM sqlite_master
		WHERE type = 'trigger' AND name = tbl_name || ?
		ORDER BY tbl_name ASC
	`, insertSuffix)
	if err != nil {
		return nil, fmt.Errorf("tracked tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("tracked tables: scan: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracked tables: %w", err)
	}
	return tables, nil
}

// TriggerMode reports which log the triggers of a table currently write to
// and whether they clear the redo log on write. Returns ErrNotTracked when
// the table has no insert trigger.
func TriggerMode(ctx context.Context, q Querier, table string) (mode Direction, clearsRedo bool, err error) {
	var body string
	err = q.QueryRowContext(ctx, `
		SELECT sql FROM sqlite_master WHERE type = 'trigger' AND name = ?
	`, table+insertSuffix).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("trigger mode of %q: %w", table, ErrNotTracked)
	}
	if err != nil {
		return "", false, fmt.Errorf("trigger mode of %q: %w", table, err)
	}

	mode = DirectionUndo
	if strings.Contains(body, logInsertPrefix(DirectionRedo)) {
		mode = DirectionRedo
	}
	clearsRedo = strings.Contains(body, "DELETE FROM "+quoteIdent(RedoTable))
	return mode, clearsRedo, nil
}

// inspectTable whitelists a table name against sqlite_master and reads its
// columns. The returned name is the one stored in the schema, so a caller
// may pass a name in any letter case.
func inspectTable(ctx context.Context, q Querier, table string) (tableInfo, error) {
	if isReservedTable(table) {
		return tableInfo{}, ErrReservedTable
	}

	var (
		info tableInfo
		ddl  sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT name, sql FROM sqlite_master
		WHERE type = 'table' AND name = ? COLLATE NOCASE
	`, table).Scan(&info.name, &ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return tableInfo{}, ErrTableNotFound
	}
	if err != nil {
		return tableInfo{}, err
	}
	if withoutRowidPattern.MatchString(ddl.String) {
		return tableInfo{}, ErrWithoutRowid
	}

	rows, err := q.QueryContext(ctx, `
		SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid ASC
	`, info.name)
	if err != nil {
		return tableInfo{}, err
	}
	defer rows.Close()

	var pkTypes []string
	for rows.Next() {
		var (
			name, typ string
			pk        int
		)
		if err := rows.Scan(&name, &typ, &pk); err != nil {
			return tableInfo{}, err
		}
		info.columns = append(info.columns, name)
		if pk > 0 {
			pkTypes = append(pkTypes, typ)
		}
	}
	if err := rows.Err(); err != nil {
		return tableInfo{}, err
	}
	if len(info.columns) == 0 {
		return tableInfo{}, ErrNoColumns
	}

	info.rowidAlias = len(pkTypes) == 1 && strings.EqualFold(strings.TrimSpace(pkTypes[0]), "INTEGER")
	return info, nil
}

func isReservedTable(name string) bool {
	switch strings.ToLower(name) {
	case UndoTable, RedoTable, StatsTable:
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), "sqlite_")
}
