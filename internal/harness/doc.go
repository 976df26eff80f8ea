// Package harness runs scripted undo/redo scenarios against a fresh
// database and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	setup:
//	  - CREATE TABLE items (id INTEGER PRIMARY KEY, value TEXT)
//	track: [items]
//	group_limit: 10          # optional
//	steps:
//	  - exec: INSERT INTO items (value) VALUES ('a')
//	  - seal: true
//	  - edit: ["UPDATE items SET value = 'b'", "DELETE FROM items"]
//	  - undo: 1
//	  - redo: 1
//	  - flatten: 0
//	  - decrement: true
//	  - limit: 3
//	  - clear_redo: true
//	  - clear: true
//	assertions:
//	  - type: rows
//	    table: items
//	    rows: [[1, "a"]]
//	  - type: group_count
//	    log: undo
//	    count: 1
//
// Setup SQL runs before tracking and is not recorded. An undo or redo step
// marked expect_error must fail and leave the database unchanged.
//
// # Golden Files
//
// Each run produces a Snapshot of the tracked tables, both logs, the stats
// row and every replay. RunWithGolden compares it with
// testdata/golden/<name>.golden. Strings are NFC-normalized.
package harness
