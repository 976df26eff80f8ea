package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// drivers are the database/sql driver names the engine is tested against:
// mattn/go-sqlite3 (cgo) and modernc.org/sqlite (pure Go).
var drivers = []string{"sqlite3", "sqlite"}

// openTestDB opens a fresh database file with history initialized and
// foreign keys enforced.
func openTestDB(t *testing.T, driver string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open(driver, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, InitializeHistory(context.Background(), db))
	return db
}

// forEachDriver runs fn once per driver as a subtest.
func forEachDriver(t *testing.T, fn func(t *testing.T, db *sql.DB)) {
	t.Helper()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, openTestDB(t, driver))
		})
	}
}

// mustExec runs statements and fails the test on error.
func mustExec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "exec %q", stmt)
	}
}

// createItems creates and tracks items(id INTEGER PRIMARY KEY, value TEXT).
func createItems(t *testing.T, db *sql.DB) {
	t.Helper()
	mustExec(t, db, `CREATE TABLE items (id INTEGER PRIMARY KEY, value TEXT)`)
	require.NoError(t, InstallTriggers(context.Background(), db, "items", DirectionUndo, true))
}

// seal closes the current undo group.
func seal(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	g, err := IncrementGroup(context.Background(), db, DirectionUndo)
	require.NoError(t, err)
	return g
}

type item struct {
	ID    int64
	Value sql.NullString
}

func itemValue(v string) item {
	return item{Value: sql.NullString{String: v, Valid: true}}
}

// items returns all rows of items ordered by id.
func items(t *testing.T, db *sql.DB) []item {
	t.Helper()
	rows, err := db.Query(`SELECT id, value FROM items ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	out := []item{}
	for rows.Next() {
		var it item
		require.NoError(t, rows.Scan(&it.ID, &it.Value))
		out = append(out, it)
	}
	require.NoError(t, rows.Err())
	return out
}

// row builds an expected item.
func row(id int64, value string) item {
	it := itemValue(value)
	it.ID = id
	return it
}

func entries(t *testing.T, db *sql.DB, dir Direction) []Entry {
	t.Helper()
	e, err := Entries(context.Background(), db, dir)
	require.NoError(t, err)
	return e
}

func groupCount(t *testing.T, db *sql.DB, dir Direction) int64 {
	t.Helper()
	n, err := GroupCount(context.Background(), db, dir)
	require.NoError(t, err)
	return n
}

func stats(t *testing.T, db *sql.DB) Stats {
	t.Helper()
	s, err := ReadStats(context.Background(), db)
	require.NoError(t, err)
	return s
}
