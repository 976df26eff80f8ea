package harness

import "github.com/roach88/undodb/internal/history"

// Replay records one undo or redo performed by a scenario. Scenario runs
// number action IDs sequentially, so they are stable across runs.
type Replay struct {
	ActionID   string            `json:"action_id"`
	Step       int               `json:"step"`
	Direction  history.Direction `json:"direction"`
	Success    bool              `json:"success"`
	Group      int64             `json:"group"`
	Tables     []string          `json:"tables"`
	Statements []string          `json:"statements"`
}

// Row is one table row keyed by column name.
type Row map[string]any

// Snapshot is the final database state of a scenario run.
type Snapshot struct {
	Scenario string           `json:"scenario"`
	Tables   map[string][]Row `json:"tables"`
	Undo     []history.Entry  `json:"undo"`
	Redo     []history.Entry  `json:"redo"`
	Stats    history.Stats    `json:"stats"`
	Replays  []Replay         `json:"replays"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	Snapshot Snapshot `json:"snapshot"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Snapshot: Snapshot{
			Scenario: name,
			Tables:   map[string][]Row{},
			Undo:     []history.Entry{},
			Redo:     []history.Entry{},
			Replays:  []Replay{},
		},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddReplay appends an undo or redo outcome.
func (r *Result) AddReplay(step int, res history.Result) {
	stmts := make([]string, len(res.Statements))
	for i, stmt := range res.Statements {
		stmts[i] = normalizeString(stmt)
	}
	r.Snapshot.Replays = append(r.Snapshot.Replays, Replay{
		ActionID:   res.ActionID,
		Step:       step,
		Direction:  res.Direction,
		Success:    res.Success,
		Group:      res.Group,
		Tables:     res.Tables,
		Statements: stmts,
	})
}
