package harness

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/undodb/internal/history"
	"github.com/roach88/undodb/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(ctx context.Context, st *store.Store, assertions []Assertion) []string {
	errs := []string{}
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, st, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(ctx context.Context, st *store.Store, a Assertion) error {
	switch a.Type {
	case AssertRows:
		return assertRows(ctx, st.DB(), a)
	case AssertRowCount:
		return assertRowCount(ctx, st.DB(), a)
	case AssertGroupCount:
		dir, err := history.ParseDirection(a.Log)
		if err != nil {
			return err
		}
		n, err := st.GroupCount(ctx, dir)
		if err != nil {
			return err
		}
		if n != a.Count {
			return &AssertionError{
				Type:     AssertGroupCount,
				Expected: fmt.Sprintf("%d %s groups", a.Count, a.Log),
				Actual:   fmt.Sprintf("%d %s groups", n, a.Log),
			}
		}
		return nil
	case AssertCurrentGroup:
		s, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		got := s.CurUndoGroup
		if a.Log == "redo" {
			got = s.CurRedoGroup
		}
		if got != *a.Group {
			return &AssertionError{
				Type:     AssertCurrentGroup,
				Expected: fmt.Sprintf("current %s group %d", a.Log, *a.Group),
				Actual:   fmt.Sprintf("current %s group %d", a.Log, got),
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertRows compares every row of the table, ordered by rowid, against
// the expected rows cell by cell.
func assertRows(ctx context.Context, db *sql.DB, a Assertion) error {
	got, err := tableCells(ctx, db, a.Table)
	if err != nil {
		return err
	}

	want := make([][]string, len(a.Rows))
	for i, row := range a.Rows {
		want[i] = make([]string, len(row))
		for j, v := range row {
			want[i][j] = formatCell(v)
		}
	}

	if len(got) != len(want) {
		return &AssertionError{
			Type:     AssertRows,
			Expected: fmt.Sprintf("%d rows in %s: %v", len(want), a.Table, want),
			Actual:   fmt.Sprintf("%d rows: %v", len(got), got),
		}
	}
	for i := range want {
		if strings.Join(want[i], "\x00") != strings.Join(got[i], "\x00") {
			return &AssertionError{
				Type:     AssertRows,
				Expected: fmt.Sprintf("%s row %d = %v", a.Table, i, want[i]),
				Actual:   fmt.Sprintf("%v", got[i]),
			}
		}
	}
	return nil
}

func assertRowCount(ctx context.Context, db *sql.DB, a Assertion) error {
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(a.Table))
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return fmt.Errorf("count rows in %s: %w", a.Table, err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// tableRows reads a table ordered by rowid into rows keyed by column.
func tableRows(ctx context.Context, db *sql.DB, table string) ([]Row, error) {
	cols, values, err := readTable(ctx, db, table)
	if err != nil {
		return nil, err
	}
	out := make([]Row, len(values))
	for i, vals := range values {
		row := Row{}
		for j, col := range cols {
			row[col] = snapshotValue(vals[j])
		}
		out[i] = row
	}
	return out, nil
}

// tableCells reads a table ordered by rowid as formatted cells.
func tableCells(ctx context.Context, db *sql.DB, table string) ([][]string, error) {
	_, values, err := readTable(ctx, db, table)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(values))
	for i, vals := range values {
		out[i] = make([]string, len(vals))
		for j, v := range vals {
			out[i][j] = formatCell(v)
		}
	}
	return out, nil
}

func readTable(ctx context.Context, db *sql.DB, table string) ([]string, [][]any, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY rowid`, quoteIdent(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("read table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	values := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", table, err)
		}
		values = append(values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, values, nil
}

// snapshotValue converts a scanned SQLite value for JSON output.
// TEXT may arrive as []byte depending on the driver.
func snapshotValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return normalizeString(string(val))
	case string:
		return normalizeString(val)
	}
	return v
}

// formatCell renders database and YAML values alike for comparison.
// Integers and whole floats print the same, matching SQLite's numeric
// comparison of 2 and 2.0.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return strconv.Quote(normalizeString(string(val)))
	case string:
		return strconv.Quote(normalizeString(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	}
	return fmt.Sprintf("%v", v)
}

func normalizeString(s string) string {
	return norm.NFC.String(s)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
