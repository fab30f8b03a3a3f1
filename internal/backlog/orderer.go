// Package backlog maintains a dense, gap-free integer order within each
// (owner, kind) backlog partition. Ordering never crosses kinds.
package backlog

import (
	"database/sql"
	"errors"
	"fmt"

	"booklog/internal/book"
	"booklog/pkg/models"
)

// ErrConflict: the operation would violate the partition invariant (entry not
// in the backlog, or a reorder list that isn't a permutation of the
// partition). Callers should re-fetch and retry.
var ErrConflict = errors.New("backlog order conflict")

// reindex rewrites backlog_order as the index of each entry in ids, inside
// one transaction. A full reindex, not a sparse shuffle, so density holds
// after any move.
func reindex(db *sql.DB, ownerID string, ids []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range ids {
		if _, err := tx.Exec(`UPDATE entries SET backlog_order = ?
			WHERE owner_id = ? AND id = ? AND status = ?`,
			i, ownerID, id, models.StatusBacklog); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func partitionOf(db *sql.DB, ownerID, id string) (models.Entry, []string, int, error) {
	e, err := book.Get(db, ownerID, id)
	if err != nil {
		return models.Entry{}, nil, 0, err
	}
	if e.Status != models.StatusBacklog {
		return models.Entry{}, nil, 0, fmt.Errorf("%w: entry %s is not in the backlog", ErrConflict, id)
	}
	members, err := book.ListBacklog(db, ownerID, e.Kind)
	if err != nil {
		return models.Entry{}, nil, 0, err
	}
	ids := make([]string, len(members))
	index := -1
	for i, m := range members {
		ids[i] = m.ID
		if m.ID == id {
			index = i
		}
	}
	if index == -1 {
		return models.Entry{}, nil, 0, fmt.Errorf("%w: entry %s missing from its partition", ErrConflict, id)
	}
	return e, ids, index, nil
}

// MoveToPosition moves an entry to a 1-based target position within its
// partition and reindexes every member. Out-of-range positions clamp to the
// ends.
func MoveToPosition(db *sql.DB, ownerID, id string, targetPosition int) error {
	_, ids, index, err := partitionOf(db, ownerID, id)
	if err != nil {
		return err
	}

	target := targetPosition - 1
	if target < 0 {
		target = 0
	}
	if target > len(ids)-1 {
		target = len(ids) - 1
	}

	ids = append(ids[:index], ids[index+1:]...)
	ids = append(ids[:target], append([]string{id}, ids[target:]...)...)
	return reindex(db, ownerID, ids)
}

// MoveAdjacent swaps an entry with its neighbor in the given direction
// ("up" toward position 0, "down" away from it). At a boundary it is a
// no-op.
func MoveAdjacent(db *sql.DB, ownerID, id, direction string) error {
	_, ids, index, err := partitionOf(db, ownerID, id)
	if err != nil {
		return err
	}

	var neighbor int
	switch direction {
	case "up":
		neighbor = index - 1
	case "down":
		neighbor = index + 1
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrConflict, direction)
	}
	if neighbor < 0 || neighbor > len(ids)-1 {
		return nil
	}
	ids[index], ids[neighbor] = ids[neighbor], ids[index]
	return reindex(db, ownerID, ids)
}

// Reorder applies a complete new order for one partition. The ids must be a
// permutation of the partition's current members; anything else (missing
// members, strays from another kind, duplicates) would break density and is
// rejected.
func Reorder(db *sql.DB, ownerID string, kind models.Kind, ids []string) error {
	members, err := book.ListBacklog(db, ownerID, kind)
	if err != nil {
		return err
	}
	if len(ids) != len(members) {
		return fmt.Errorf("%w: got %d ids for a partition of %d", ErrConflict, len(ids), len(members))
	}
	current := make(map[string]bool, len(members))
	for _, m := range members {
		current[m.ID] = true
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !current[id] || seen[id] {
			return fmt.Errorf("%w: id %s is not exactly once in the %s partition", ErrConflict, id, kind)
		}
		seen[id] = true
	}
	return reindex(db, ownerID, ids)
}

// Drop completes a drag-and-drop: it only applies when the dragged entry's
// partition matches the drop target's. Cross-partition drops are dropped
// silently; the UI prevents them, but the invariant is defended here too.
func Drop(db *sql.DB, ownerID, id string, targetKind models.Kind, targetPosition int) error {
	e, err := book.Get(db, ownerID, id)
	if err != nil {
		return err
	}
	if e.Kind != targetKind {
		return nil
	}
	return MoveToPosition(db, ownerID, id, targetPosition)
}
