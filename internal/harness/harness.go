package harness

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/roach88/undodb/internal/history"
	"github.com/roach88/undodb/internal/logging"
	"github.com/roach88/undodb/internal/store"
	"github.com/roach88/undodb/internal/testutil"
)

// Harness executes one scenario against its own in-memory store.
type Harness struct {
	store    *store.Store
	scenario *Scenario
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Options
// are passed to store.Open after a discard logger, so a caller can select
// the driver or supply its own logger.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Run setup SQL and track tables
// 3. Execute steps
// 4. Capture the snapshot and evaluate assertions
//
// Run returns an error when a step fails unexpectedly. Assertion failures
// are reported in Result.Errors.
func Run(scenario *Scenario, opts ...store.Option) (*Result, error) {
	ctx := context.Background()

	// Suppress logs unless the caller overrides the logger.
	opts = append([]store.Option{
		store.WithLogger(logging.Discard()),
		store.WithActionIDs(testutil.NewSequentialIDs("action")),
	}, opts...)

	st, err := store.Open(":memory:", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		scenario: scenario,
		result:   NewResult(scenario.Name),
	}

	if err := h.setup(ctx); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Kind(), err)
		}
	}

	if err := h.capture(ctx, &h.result.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}

	for _, errMsg := range EvaluateAssertions(ctx, st, scenario.Assertions) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

func (h *Harness) setup(ctx context.Context) error {
	db := h.store.DB()
	for i, stmt := range h.scenario.Setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	if err := h.store.Track(ctx, h.scenario.Track...); err != nil {
		return err
	}
	if h.scenario.GroupLimit != nil {
		if err := h.store.SetGroupLimit(ctx, *h.scenario.GroupLimit); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step) error {
	st := h.store

	switch step.Kind() {
	case StepExec:
		_, err := st.DB().ExecContext(ctx, step.Exec)
		if step.ExpectError {
			if err == nil {
				return fmt.Errorf("expected %q to fail", step.Exec)
			}
			return nil
		}
		return err

	case StepEdit:
		_, err := st.Edit(ctx, func(tx *sql.Tx) error {
			for _, stmt := range step.Edit {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%q: %w", stmt, err)
				}
			}
			return nil
		})
		return err

	case StepSeal:
		_, err := st.IncrementGroup(ctx)
		return err

	case StepUndo:
		return h.replay(ctx, i, step, history.DirectionUndo, step.Undo)

	case StepRedo:
		return h.replay(ctx, i, step, history.DirectionRedo, step.Redo)

	case StepFlatten:
		return st.FlattenGroupsAbove(ctx, *step.Flatten)

	case StepDecrement:
		return st.DecrementLastGroup(ctx)

	case StepLimit:
		return st.SetGroupLimit(ctx, *step.Limit)

	case StepClearRedo:
		return st.ClearMostRecentRedo(ctx)

	case StepClear:
		return st.ClearHistory(ctx)
	}

	return fmt.Errorf("no action")
}

func (h *Harness) replay(ctx context.Context, i int, step Step, dir history.Direction, times int) error {
	for n := 0; n < times; n++ {
		var before Snapshot
		if step.ExpectError {
			if err := h.capture(ctx, &before); err != nil {
				return err
			}
		}

		var res history.Result
		if dir == history.DirectionUndo {
			res = h.store.Undo(ctx)
		} else {
			res = h.store.Redo(ctx)
		}
		h.result.AddReplay(i, res)

		if !step.ExpectError {
			if !res.Success {
				return res.Err
			}
			continue
		}

		if res.Success {
			return fmt.Errorf("expected %s to fail", dir)
		}
		var after Snapshot
		if err := h.capture(ctx, &after); err != nil {
			return err
		}
		if !reflect.DeepEqual(before, after) {
			h.result.AddError(fmt.Sprintf("steps[%d]: failed %s changed the database", i, dir))
		}
	}
	return nil
}

// capture fills the tables, logs and stats of snap.
func (h *Harness) capture(ctx context.Context, snap *Snapshot) error {
	db := h.store.DB()

	snap.Tables = map[string][]Row{}
	for _, table := range h.scenario.Track {
		rows, err := tableRows(ctx, db, table)
		if err != nil {
			return err
		}
		snap.Tables[table] = rows
	}

	var err error
	if snap.Undo, err = h.store.Entries(ctx, history.DirectionUndo); err != nil {
		return err
	}
	if snap.Redo, err = h.store.Entries(ctx, history.DirectionRedo); err != nil {
		return err
	}
	for i := range snap.Undo {
		snap.Undo[i].SQL = normalizeString(snap.Undo[i].SQL)
	}
	for i := range snap.Redo {
		snap.Redo[i].SQL = normalizeString(snap.Redo[i].SQL)
	}
	if snap.Stats, err = h.store.Stats(ctx); err != nil {
		return err
	}
	return nil
}
