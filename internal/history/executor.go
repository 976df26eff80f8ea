package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// Undo replays the newest undo group and records its inverse in the redo log.
func Undo(ctx context.Context, db Conner) Result {
	return Execute(ctx, db, DirectionUndo)
}

// Redo replays the newest redo group and records its inverse in the undo log.
func Redo(ctx context.Context, db Conner) Result {
	return Execute(ctx, db, DirectionRedo)
}

// Execute performs one undo or redo.
//
// The newest group of the source log is replayed newest statement first
// with foreign key enforcement switched off, then deleted from the source
// log. While replaying, the triggers of every touched table point at the
// opposite log without clearing redo history, so the replay records its own
// inverse. Afterwards the triggers are back in undo mode with redo clearing.
//
// Everything after locating the group runs in one transaction. Errors never
// escape as Go errors: they roll the transaction back and are reported in
// Result.Err. An empty source log is a successful no-op.
//
// Execute logs nothing; use ExecuteWith to supply a logger.
func Execute(ctx context.Context, db Conner, dir Direction) Result {
	return ExecuteWith(ctx, db, dir, nil, nil)
}

// ExecuteWith is Execute with the action ID taken from ids and replay
// details logged at debug level to logger. A nil ids generates UUIDv7s and
// a nil logger discards.
func ExecuteWith(ctx context.Context, db Conner, dir Direction, ids ActionIDGenerator, logger *slog.Logger) Result {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	res := Result{
		ActionID:   ids.Generate(),
		Direction:  dir,
		Tables:     []string{},
		Statements: []string{},
	}
	fail := func(step Step, stmt string, err error) Result {
		res.Success = false
		res.Tables = []string{}
		res.Statements = []string{}
		res.Err = &ReplayError{Direction: dir, Step: step, Statement: stmt, Err: err}
		logger.Debug("replay step failed",
			"action_id", res.ActionID,
			"direction", dir,
			"step", step,
			"error", err,
		)
		return res
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fail(StepLocate, "", err)
	}
	defer conn.Close()

	group, ok, err := maxGroup(ctx, conn, dir)
	if err != nil {
		return fail(StepLocate, "", err)
	}
	if !ok {
		logger.Debug("history empty", "action_id", res.ActionID, "direction", dir)
		res.Success = true
		return res
	}
	res.Group = group

	// SQLite ignores foreign_keys changes inside a transaction, so the pragma
	// is toggled on the connection around it.
	fkEnabled, err := foreignKeysEnabled(ctx, conn)
	if err != nil {
		return fail(StepForeignKeys, "", err)
	}
	if fkEnabled {
		if err := setForeignKeys(ctx, conn, false); err != nil {
			return fail(StepForeignKeys, "", err)
		}
		defer func() {
			if err := setForeignKeys(context.WithoutCancel(ctx), conn, true); err != nil {
				logger.Error("restore foreign keys", "action_id", res.ActionID, "error", err)
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fail(StepBegin, "", err)
	}
	defer tx.Rollback() // No-op if committed

	stmts, tables, rerr := replayGroup(ctx, tx, dir, group)
	if rerr != nil {
		return fail(rerr.Step, rerr.Statement, rerr.Err)
	}

	if err := tx.Commit(); err != nil {
		return fail(StepCommit, "", err)
	}

	res.Success = true
	res.Statements = stmts
	res.Tables = tables

	logger.Debug("replay committed",
		"action_id", res.ActionID,
		"direction", dir,
		"group", group,
		"statements", len(stmts),
		"tables", tables,
	)
	return res
}

// replayGroup runs the transactional part of Execute.
func replayGroup(ctx context.Context, tx *sql.Tx, dir Direction, group int64) ([]string, []string, *ReplayError) {
	stepErr := func(step Step, stmt string, err error) *ReplayError {
		return &ReplayError{Direction: dir, Step: step, Statement: stmt, Err: err}
	}

	entries, err := groupEntries(ctx, tx, dir, group)
	if err != nil {
		return nil, nil, stepErr(StepCollect, "", err)
	}
	stmts := make([]string, len(entries))
	for i, e := range entries {
		stmts[i] = e.SQL
	}
	tables := touchedTables(stmts)

	// Untracked tables are retargeted too, so the replay still records its
	// inverse, but they are left untracked afterwards.
	tracked := make(map[string]bool, len(tables))
	for _, table := range tables {
		_, _, err := TriggerMode(ctx, tx, table)
		switch {
		case err == nil:
			tracked[table] = true
		case !errors.Is(err, ErrNotTracked):
			return nil, nil, stepErr(StepRetarget, "", err)
		}
	}

	// The replay records into a fresh group of the opposite log.
	target := dir.Opposite()
	if _, err := IncrementGroup(ctx, tx, target); err != nil {
		return nil, nil, stepErr(StepRetarget, "", err)
	}
	for _, table := range tables {
		if err := InstallTriggers(ctx, tx, table, target, false); err != nil {
			return nil, nil, stepErr(StepRetarget, "", err)
		}
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, nil, stepErr(StepReplay, stmt, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE "history_group" = ?
	`, quoteIdent(dir.logTable())), group); err != nil {
		return nil, nil, stepErr(StepPurge, "", err)
	}

	if err := RefreshCurrentGroups(ctx, tx); err != nil {
		return nil, nil, stepErr(StepRefresh, "", err)
	}

	for _, table := range tables {
		if !tracked[table] {
			if err := DropTriggers(ctx, tx, table); err != nil {
				return nil, nil, stepErr(StepRestore, "", err)
			}
			continue
		}
		if err := InstallTriggers(ctx, tx, table, DirectionUndo, true); err != nil {
			return nil, nil, stepErr(StepRestore, "", err)
		}
	}

	return stmts, tables, nil
}

// touchedTables returns the sorted set of tables named by the statements.
func touchedTables(stmts []string) []string {
	seen := make(map[string]struct{})
	tables := []string{}
	for _, stmt := range stmts {
		table, ok := tableFromStatement(stmt)
		if !ok {
			continue
		}
		if _, dup := seen[table]; dup {
			continue
		}
		seen[table] = struct{}{}
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

func foreignKeysEnabled(ctx context.Context, q Querier) (bool, error) {
	var enabled int
	if err := q.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return false, fmt.Errorf("read foreign_keys: %w", err)
	}
	return enabled == 1, nil
}

func setForeignKeys(ctx context.Context, q Querier, on bool) error {
	pragma := "PRAGMA foreign_keys = OFF"
	if on {
		pragma = "PRAGMA foreign_keys = ON"
	}
	if _, err := q.ExecContext(ctx, pragma); err != nil {
		return fmt.Errorf("%s: %w", pragma, err)
	}
	return nil
}
