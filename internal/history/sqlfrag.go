package history

import (
	"fmt"
	"strings"
)

// Trigger name suffixes. The insert, update and delete triggers of table t
// are named t_it, t_ut and t_dt.
const (
	insertSuffix = "_it"
	updateSuffix = "_ut"
	deleteSuffix = "_dt"
)

var triggerSuffixes = []string{insertSuffix, updateSuffix, deleteSuffix}

// quoteIdent quotes an SQL identifier, doubling embedded double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes an SQL string literal, doubling embedded single quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// concat joins SQL expressions with the || operator.
func concat(exprs ...string) string {
	return strings.Join(exprs, "||")
}

// tableInfo is the introspected shape of a tracked table.
type tableInfo struct {
	name    string
	columns []string

	// rowidAlias is true when a single INTEGER PRIMARY KEY column aliases the rowid.
	rowidAlias bool
}

// logInsertPrefix starts the statement a trigger uses to append to the log of dir.
func logInsertPrefix(dir Direction) string {
	return fmt.Sprintf(`INSERT INTO %s ("history_group", "sql")`, quoteIdent(dir.logTable()))
}

// logInsert builds the log append statement. The group is read from the
// stats row when the trigger fires.
func logInsert(dir Direction, inverse string) string {
	return fmt.Sprintf(`%s VALUES ((SELECT %s FROM %s WHERE "id" = 1), %s);`,
		logInsertPrefix(dir), quoteIdent(dir.groupColumn()), quoteIdent(StatsTable), inverse)
}

// clearRedoSQL empties the redo log. Undo-mode triggers run it on every fresh edit.
func clearRedoSQL() string {
	return fmt.Sprintf(`DELETE FROM %s; UPDATE %s SET "cur_redo_group" = 0;`,
		quoteIdent(RedoTable), quoteIdent(StatsTable))
}

// inverseOfInsert is an expression producing a DELETE of the new row.
func inverseOfInsert(t tableInfo) string {
	return concat(quoteLiteral("DELETE FROM "+quoteIdent(t.name)+" WHERE rowid="), "NEW.rowid")
}

// inverseOfUpdate is an expression producing an UPDATE that writes the full
// pre-image back. The row is addressed by its rowid after the update, so an
// update that changed an INTEGER PRIMARY KEY is also reversed.
func inverseOfUpdate(t tableInfo) string {
	exprs := make([]string, 0, 2*len(t.columns)+2)
	for i, c := range t.columns {
		lead := ","
		if i == 0 {
			lead = "UPDATE " + quoteIdent(t.name) + " SET "
		}
		exprs = append(exprs, quoteLiteral(lead+quoteIdent(c)+"="), "quote(OLD."+quoteIdent(c)+")")
	}
	exprs = append(exprs, quoteLiteral(" WHERE rowid="), "NEW.rowid")
	return concat(exprs...)
}

// inverseOfDelete is an expression producing an INSERT of the full deleted
// row. Without a rowid alias column the rowid is listed explicitly so the
// row keeps its identity.
func inverseOfDelete(t tableInfo) string {
	names := make([]string, 0, len(t.columns)+1)
	if !t.rowidAlias {
		names = append(names, "rowid")
	}
	for _, c := range t.columns {
		names = append(names, quoteIdent(c))
	}

	exprs := []string{quoteLiteral("INSERT INTO " + quoteIdent(t.name) + " (" + strings.Join(names, ",") + ") VALUES (")}
	if !t.rowidAlias {
		exprs = append(exprs, "OLD.rowid", quoteLiteral(","))
	}
	for i, c := range t.columns {
		if i > 0 {
			exprs = append(exprs, quoteLiteral(","))
		}
		exprs = append(exprs, "quote(OLD."+quoteIdent(c)+")")
	}
	exprs = append(exprs, quoteLiteral(")"))
	return concat(exprs...)
}

// createTriggerSQL assembles one trigger. timing is e.g. "AFTER INSERT".
func createTriggerSQL(t tableInfo, suffix, timing string, dir Direction, clearRedo bool, inverse string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER IF NOT EXISTS %s %s ON %s BEGIN\n", quoteIdent(t.name+suffix), timing, quoteIdent(t.name))
	b.WriteString("    ")
	b.WriteString(logInsert(dir, inverse))
	b.WriteString("\n")
	if dir == DirectionUndo && clearRedo {
		b.WriteString("    ")
		b.WriteString(clearRedoSQL())
		b.WriteString("\n")
	}
	b.WriteString("END")
	return b.String()
}

// triggerSQL returns the three CREATE TRIGGER statements for a table.
func triggerSQL(t tableInfo, dir Direction, clearRedo bool) []string {
	return []string{
		createTriggerSQL(t, insertSuffix, "AFTER INSERT", dir, clearRedo, inverseOfInsert(t)),
		createTriggerSQL(t, updateSuffix, "AFTER UPDATE", dir, clearRedo, inverseOfUpdate(t)),
		createTriggerSQL(t, deleteSuffix, "BEFORE DELETE", dir, clearRedo, inverseOfDelete(t)),
	}
}

var statementPrefixes = []string{"DELETE FROM ", "UPDATE ", "INSERT INTO "}

// tableFromStatement extracts the table of an inverse statement from its
// leading quoted identifier.
func tableFromStatement(stmt string) (string, bool) {
	for _, prefix := range statementPrefixes {
		if rest, ok := strings.CutPrefix(stmt, prefix); ok {
			return unquoteIdent(rest)
		}
	}
	return "", false
}

// unquoteIdent reads a double-quoted identifier at the start of s.
func unquoteIdent(s string) (string, bool) {
	if !strings.HasPrefix(s, `"`) {
		return "", false
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		return b.String(), true
	}
	return "", false
}
