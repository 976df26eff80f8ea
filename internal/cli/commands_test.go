package cli

import (
	"bytes"
	"database/sql"
	stdlog "log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/undodb/internal/history"
)

// notesDB creates a database with a tracked notes table.
func notesDB(t *testing.T) string {
	t.Helper()

	db := tempDB(t)
	_, _, err := execute(t, db, "exec", "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	_, _, err = execute(t, db, "init", "notes")
	require.NoError(t, err)
	return db
}

func noteBodies(t *testing.T, path string) []string {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT body FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	bodies := []string{}
	for rows.Next() {
		var b string
		require.NoError(t, rows.Scan(&b))
		bodies = append(bodies, b)
	}
	require.NoError(t, rows.Err())
	return bodies
}

func TestInitCommand(t *testing.T) {
	db := tempDB(t)
	_, _, err := execute(t, db, "exec", "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)

	stdout, _, err := execute(t, db, "init", "notes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Initialized history in "+db)
	assert.Contains(t, stdout, "Tracking: notes")

	// Running init again keeps the tracked set.
	var res InitResult
	executeJSON(t, db, &res, "init")
	assert.Equal(t, []string{"notes"}, res.Tracked)
}

func TestTrackMissingTable(t *testing.T) {
	_, _, err := execute(t, tempDB(t), "track", "ghosts")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, history.ErrTableNotFound)
}

func TestTrackReservedTable(t *testing.T) {
	_, _, err := execute(t, tempDB(t), "track", "history_undo")
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrReservedTable)
}

func TestTrackRequiresArgs(t *testing.T) {
	_, _, err := execute(t, tempDB(t), "track")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestUntrackCommand(t *testing.T) {
	db := notesDB(t)

	stdout, _, err := execute(t, db, "untrack", "notes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No tables tracked.")

	// Writes after untracking are not logged.
	_, _, err = execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('a')")
	require.NoError(t, err)

	var log LogResult
	executeJSON(t, db, &log, "log")
	assert.Empty(t, log.Entries)
}

func TestExecUndoRedo(t *testing.T) {
	db := notesDB(t)

	var first ExecResult
	executeJSON(t, db, &first, "exec", "INSERT INTO notes (body) VALUES ('a')")
	assert.Equal(t, 1, first.Statements)
	assert.Equal(t, int64(1), first.RowsAffected)

	var second ExecResult
	executeJSON(t, db, &second, "exec",
		"INSERT INTO notes (body) VALUES ('b')",
		"UPDATE notes SET body = 'A' WHERE body = 'a'",
	)
	assert.Equal(t, first.Group+1, second.Group)
	assert.Equal(t, []string{"A", "b"}, noteBodies(t, db))

	var undo ReplayResult
	executeJSON(t, db, &undo, "undo")
	require.Len(t, undo.Replays, 1)
	assert.Equal(t, second.Group, undo.Replays[0].Group)
	assert.Len(t, undo.Replays[0].Statements, 2)
	assert.NotEmpty(t, undo.Replays[0].ActionID)
	assert.Equal(t, []string{"a"}, noteBodies(t, db))

	var redo ReplayResult
	executeJSON(t, db, &redo, "redo")
	require.Len(t, redo.Replays, 1)
	assert.Equal(t, []string{"A", "b"}, noteBodies(t, db))
}

func TestUndoCountStopsWhenEmpty(t *testing.T) {
	db := notesDB(t)
	for _, body := range []string{"a", "b"} {
		_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('"+body+"')")
		require.NoError(t, err)
	}

	var res ReplayResult
	executeJSON(t, db, &res, "undo", "-n", "5")
	assert.Len(t, res.Replays, 2)
	assert.Empty(t, noteBodies(t, db))

	stdout, _, err := execute(t, db, "undo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Nothing to undo.")

	stdout, _, err = execute(t, db, "redo", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "redo group")
	assert.Equal(t, []string{"a", "b"}, noteBodies(t, db))
}

func TestUndoInvalidCount(t *testing.T) {
	_, _, err := execute(t, tempDB(t), "undo", "-n", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUndoFailureRollsBack(t *testing.T) {
	db := notesDB(t)
	_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('a')")
	require.NoError(t, err)
	_, _, err = execute(t, db, "exec",
		`INSERT INTO history_undo (history_group, sql) VALUES (2, 'UPDATE "notes" SET "missing"=1 WHERE rowid=1')`)
	require.NoError(t, err)

	stdout, _, err := execute(t, db, "undo", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, history.IsReplayError(err))
	assert.Contains(t, stdout, `"code":"E003"`)

	assert.Equal(t, []string{"a"}, noteBodies(t, db))
	var status StatusResult
	executeJSON(t, db, &status, "status")
	assert.Equal(t, int64(2), status.UndoGroups)
	assert.Equal(t, int64(0), status.RedoGroups)
}

func TestReplayLogsOnlyToConfiguredLogger(t *testing.T) {
	var global bytes.Buffer
	stdlog.SetOutput(&global)
	t.Cleanup(func() { stdlog.SetOutput(os.Stderr) })

	db := notesDB(t)
	_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('a')")
	require.NoError(t, err)

	_, stderr, err := execute(t, db, "-v", "undo")
	require.NoError(t, err)
	assert.Contains(t, stderr, "replay committed")
	assert.Contains(t, stderr, "replayed")

	_, stderr, err = execute(t, db, "undo", "--format", "json")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "history empty")

	_, _, err = execute(t, db, "exec",
		`INSERT INTO history_undo (history_group, sql) VALUES (5, 'UPDATE "notes" SET "missing"=1 WHERE rowid=1')`)
	require.NoError(t, err)
	_, stderr, err = execute(t, db, "undo")
	require.Error(t, err)
	assert.Contains(t, stderr, "replay failed")
	assert.NotContains(t, stderr, "replay step failed")

	assert.Empty(t, global.String())
}

func TestExecFailureLogsNothing(t *testing.T) {
	db := notesDB(t)

	_, _, err := execute(t, db, "exec",
		"INSERT INTO notes (body) VALUES ('a')",
		"INSERT INTO nowhere VALUES (1)",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "statement 2")

	assert.Empty(t, noteBodies(t, db))
	var log LogResult
	executeJSON(t, db, &log, "log")
	assert.Empty(t, log.Entries)
}

func TestLogCommand(t *testing.T) {
	db := notesDB(t)
	_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('a')")
	require.NoError(t, err)

	stdout, _, err := execute(t, db, "log")
	require.NoError(t, err)
	assert.Contains(t, stdout, `DELETE FROM "notes" WHERE rowid=1`)

	stdout, _, err = execute(t, db, "log", "--redo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "redo log is empty.")

	_, _, err = execute(t, db, "undo")
	require.NoError(t, err)

	var redo LogResult
	executeJSON(t, db, &redo, "log", "--redo")
	assert.Equal(t, history.DirectionRedo, redo.Log)
	require.Len(t, redo.Entries, 1)
	assert.Contains(t, redo.Entries[0].SQL, `INSERT INTO "notes"`)
}

func TestStatusCommand(t *testing.T) {
	db := notesDB(t)
	_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('a')")
	require.NoError(t, err)

	stdout, _, err := execute(t, db, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tracked:       notes")
	assert.Contains(t, stdout, "Undo groups:   1")
	assert.Contains(t, stdout, "Group limit:   500")

	var status StatusResult
	executeJSON(t, db, &status, "status")
	assert.Equal(t, int64(1), status.UndoGroups)
	assert.Positive(t, status.Size)
}

func TestLimitCommand(t *testing.T) {
	db := notesDB(t)
	for _, body := range []string{"a", "b", "c"} {
		_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('"+body+"')")
		require.NoError(t, err)
	}

	stdout, _, err := execute(t, db, "limit")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Group limit: 500")

	var res GroupResult
	executeJSON(t, db, &res, "limit", "2")
	assert.Equal(t, int64(2), res.Stats.GroupLimit)

	var status StatusResult
	executeJSON(t, db, &status, "status")
	assert.Equal(t, int64(2), status.UndoGroups)

	stdout, _, err = execute(t, db, "limit", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "unlimited")

	_, _, err = execute(t, db, "limit", "many")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFlattenCommand(t *testing.T) {
	db := notesDB(t)
	for _, body := range []string{"a", "b", "c"} {
		_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('"+body+"')")
		require.NoError(t, err)
	}

	var res GroupResult
	executeJSON(t, db, &res, "flatten", "1")
	assert.Equal(t, int64(1), res.Stats.CurUndoGroup)

	var undo ReplayResult
	executeJSON(t, db, &undo, "undo")
	require.Len(t, undo.Replays, 1)
	assert.Len(t, undo.Replays[0].Statements, 3)
	assert.Empty(t, noteBodies(t, db))

	_, _, err := execute(t, db, "flatten", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFlattenCommandNegativeGroup(t *testing.T) {
	db := notesDB(t)
	for _, body := range []string{"a", "b"} {
		_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('"+body+"')")
		require.NoError(t, err)
	}

	_, _, err := execute(t, db, "flatten", "-3")
	require.Error(t, err, "a bare negative group parses as a flag")

	stdout, stderr, err := execute(t, db, "flatten", "--", "-3")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Flattened undo groups into -3")

	var status StatusResult
	executeJSON(t, db, &status, "status")
	assert.Equal(t, int64(-3), status.Stats.CurUndoGroup)
	assert.Equal(t, int64(1), status.UndoGroups)

	var undo ReplayResult
	executeJSON(t, db, &undo, "undo")
	require.Len(t, undo.Replays, 1)
	assert.Equal(t, int64(-3), undo.Replays[0].Group)
	assert.Len(t, undo.Replays[0].Statements, 2)
	assert.Empty(t, noteBodies(t, db))
}

func TestSealAndDecrementCommands(t *testing.T) {
	db := notesDB(t)

	var sealed GroupResult
	executeJSON(t, db, &sealed, "seal")
	current := sealed.Stats.CurUndoGroup

	// A write from another client lands in the current group.
	raw, err := sql.Open("sqlite3", db)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO notes (body) VALUES ('speculative')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	var log LogResult
	executeJSON(t, db, &log, "log")
	require.Len(t, log.Entries, 1)
	assert.Equal(t, current, log.Entries[0].Group)

	var dec GroupResult
	executeJSON(t, db, &dec, "decrement")
	assert.Equal(t, current-1, dec.Stats.CurUndoGroup)

	executeJSON(t, db, &log, "log")
	assert.Empty(t, log.Entries)
	assert.Equal(t, []string{"speculative"}, noteBodies(t, db))
}

func TestClearCommand(t *testing.T) {
	db := notesDB(t)
	for _, body := range []string{"a", "b"} {
		_, _, err := execute(t, db, "exec", "INSERT INTO notes (body) VALUES ('"+body+"')")
		require.NoError(t, err)
	}
	_, _, err := execute(t, db, "undo", "-n", "2")
	require.NoError(t, err)

	stdout, _, err := execute(t, db, "clear", "--redo-last")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dropped the most recent redo group.")

	var status StatusResult
	executeJSON(t, db, &status, "status")
	assert.Equal(t, int64(1), status.RedoGroups)

	var res GroupResult
	executeJSON(t, db, &res, "clear")
	assert.Equal(t, int64(0), res.Stats.CurUndoGroup)
	assert.Equal(t, int64(0), res.Stats.CurRedoGroup)

	executeJSON(t, db, &status, "status")
	assert.Zero(t, status.UndoGroups)
	assert.Zero(t, status.RedoGroups)
	assert.Zero(t, status.Size)
}

const passingScenario = `name: cli_pass
description: Insert then undo
setup:
  - CREATE TABLE items (id INTEGER PRIMARY KEY, value TEXT)
track: [items]
steps:
  - exec: INSERT INTO items (value) VALUES ('a')
  - seal: true
  - undo: 1
assertions:
  - type: row_count
    table: items
    count: 0
`

const failingScenario = `name: cli_fail
description: Asserts a row that was undone
setup:
  - CREATE TABLE items (id INTEGER PRIMARY KEY, value TEXT)
track: [items]
steps:
  - exec: INSERT INTO items (value) VALUES ('a')
  - seal: true
  - undo: 1
assertions:
  - type: row_count
    table: items
    count: 1
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestRunCommandPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"pass.yaml": passingScenario, "notes.txt": "ignored"})

	stdout, _, err := execute(t, tempDB(t), "run", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ cli_pass")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestRunCommandFailure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"pass.yaml": passingScenario, "fail.yml": failingScenario})

	var res RunResult
	stdout, _, err := execute(t, tempDB(t), "run", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeScenario, ErrorCode(err))
	assert.Contains(t, stdout, `"failed":1`)

	executeJSON(t, tempDB(t), &res, "run", dir, "--filter", "pass")
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Passed)
}

func TestRunCommandSnapshotDir(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"pass.yaml": passingScenario})
	out := filepath.Join(t.TempDir(), "golden")

	_, _, err := execute(t, tempDB(t), "run", filepath.Join(dir, "pass.yaml"), "--snapshot-dir", out)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "cli_pass.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "cli_pass"`)
	assert.Contains(t, string(data), `INSERT INTO \"items\"`)
}

func TestRunCommandMissingPath(t *testing.T) {
	_, _, err := execute(t, tempDB(t), "run", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandBadScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bad.yaml": "name: bad\n"})

	stdout, _, err := execute(t, tempDB(t), "run", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ bad.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}
