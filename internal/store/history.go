package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/undodb/internal/history"
)

// Track installs history triggers on each table, replacing existing ones.
func (s *Store) Track(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if err := history.InstallTriggers(ctx, s.db, table, history.DirectionUndo, true); err != nil {
			return fmt.Errorf("track %q: %w", table, err)
		}
		s.logger.Info("table tracked", "table", table)
	}
	return nil
}

// Untrack removes history triggers from each table. Logged entries stay,
// and replaying them leaves the table untracked.
func (s *Store) Untrack(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if err := history.DropTriggers(ctx, s.db, table); err != nil {
			return fmt.Errorf("untrack %q: %w", table, err)
		}
		s.logger.Info("table untracked", "table", table)
	}
	return nil
}

// Tracked returns the tables that carry history triggers.
func (s *Store) Tracked(ctx context.Context) ([]string, error) {
	return history.TrackedTables(ctx, s.db)
}

// Undo reverts the newest undo group.
func (s *Store) Undo(ctx context.Context) history.Result {
	return s.replay(ctx, history.DirectionUndo)
}

// Redo reapplies the newest redo group.
func (s *Store) Redo(ctx context.Context) history.Result {
	return s.replay(ctx, history.DirectionRedo)
}

func (s *Store) replay(ctx context.Context, dir history.Direction) history.Result {
	res := history.ExecuteWith(ctx, s.db, dir, s.ids, s.logger)
	if !res.Success {
		s.logger.Error("replay failed", "action_id", res.ActionID, "direction", dir, "error", res.Err)
		return res
	}
	s.logger.Info("replayed",
		"action_id", res.ActionID,
		"direction", dir,
		"group", res.Group,
		"statements", len(res.Statements),
	)
	return res
}

// Edit runs fn in a transaction and seals the undo group it wrote.
// If fn fails, its writes and their history are rolled back together.
func (s *Store) Edit(ctx context.Context, fn func(tx *sql.Tx) error) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin edit: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	sealed, err := history.CurrentGroup(ctx, tx, history.DirectionUndo)
	if err != nil {
		return 0, fmt.Errorf("read current group: %w", err)
	}
	if err := fn(tx); err != nil {
		return 0, err
	}
	if _, err := history.IncrementGroup(ctx, tx, history.DirectionUndo); err != nil {
		return 0, fmt.Errorf("seal group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit edit: %w", err)
	}

	s.logger.Debug("edit sealed", "group", sealed)
	return sealed, nil
}

// IncrementGroup closes the current undo group.
func (s *Store) IncrementGroup(ctx context.Context) (int64, error) {
	g, err := history.IncrementGroup(ctx, s.db, history.DirectionUndo)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("group sealed", "next", g)
	return g, nil
}

// CurrentGroup returns the group new undo entries are written to.
func (s *Store) CurrentGroup(ctx context.Context) (int64, error) {
	return history.CurrentGroup(ctx, s.db, history.DirectionUndo)
}

// FlattenGroupsAbove merges every undo group above group into group.
func (s *Store) FlattenGroupsAbove(ctx context.Context, group int64) error {
	if err := history.FlattenGroupsAbove(ctx, s.db, group); err != nil {
		return err
	}
	s.logger.Info("groups flattened", "group", group)
	return nil
}

// DecrementLastGroup abandons the current undo group and its entries.
func (s *Store) DecrementLastGroup(ctx context.Context) error {
	if err := history.DecrementLastGroup(ctx, s.db); err != nil {
		return err
	}
	s.logger.Info("current group abandoned")
	return nil
}

// Stats returns the history bookkeeping row.
func (s *Store) Stats(ctx context.Context) (history.Stats, error) {
	return history.ReadStats(ctx, s.db)
}

// GroupCount returns the number of distinct groups in one log.
func (s *Store) GroupCount(ctx context.Context, dir history.Direction) (int64, error) {
	return history.GroupCount(ctx, s.db, dir)
}

// SetGroupLimit stores a new undo group limit and prunes to it.
func (s *Store) SetGroupLimit(ctx context.Context, limit int64) error {
	if err := history.SetGroupLimit(ctx, s.db, limit); err != nil {
		return err
	}
	s.logger.Info("group limit set", "limit", limit)
	return nil
}

// Size returns the total length of all logged statements.
func (s *Store) Size(ctx context.Context) (int64, error) {
	return history.CalculateHistorySize(ctx, s.db)
}

// Entries returns one log in recording order.
func (s *Store) Entries(ctx context.Context, dir history.Direction) ([]history.Entry, error) {
	return history.Entries(ctx, s.db, dir)
}

// ClearHistory empties both logs.
func (s *Store) ClearHistory(ctx context.Context) error {
	if err := history.ClearHistory(ctx, s.db); err != nil {
		return err
	}
	s.logger.Info("history cleared")
	return nil
}

// ClearMostRecentRedo drops the newest redo group.
func (s *Store) ClearMostRecentRedo(ctx context.Context) error {
	if err := history.ClearMostRecentRedo(ctx, s.db); err != nil {
		return err
	}
	s.logger.Info("most recent redo cleared")
	return nil
}
