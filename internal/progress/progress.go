// Package progress records page-position updates as immutable delta events
// and resolves the flexible page-input syntax.
package progress

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"booklog/internal/book"
	"booklog/pkg/models"
)

// ParsePageInput resolves the page-entry grammar against the current page:
//
//	"+20"    -> currentPage + 20
//	"144+20" -> 164 (sum of the groups, independent of currentPage)
//	"160"    -> 160
//
// Empty input, any other shape, or a negative result is invalid (ok=false).
func ParsePageInput(raw string, currentPage int) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	relative := strings.HasPrefix(s, "+")
	if relative {
		s = s[1:]
	}

	total := 0
	for _, group := range strings.Split(s, "+") {
		v, err := strconv.Atoi(group)
		if err != nil || v < 0 {
			return 0, false
		}
		total += v
	}
	if relative {
		total += currentPage
	}
	if total < 0 {
		return 0, false
	}
	return total, true
}

// Record parses raw page input and, when valid, persists the new page
// position, stamps last_progress_date, and appends a ProgressEvent with the
// delta from the previous position — even when the delta is zero or negative
// (corrections stay visible in the stats). Invalid input is silently ignored:
// the entry comes back unchanged and no event is written.
func Record(db *sql.DB, ownerID, id, raw string, today models.Date) (models.Entry, error) {
	e, err := book.Get(db, ownerID, id)
	if err != nil {
		return models.Entry{}, err
	}

	current := 0
	if e.CurrentPage != nil {
		current = *e.CurrentPage
	}
	newPage, ok := ParsePageInput(raw, current)
	if !ok {
		return e, nil
	}
	delta := newPage - current

	tx, err := db.Begin()
	if err != nil {
		return models.Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated, err := book.Apply(tx, ownerID, id, book.Patch{
		CurrentPage:  &newPage,
		LastProgress: &today,
	})
	if err != nil {
		return models.Entry{}, err
	}
	if _, err := tx.Exec(`INSERT INTO progress_events(owner_id, entry_id, date, delta) VALUES(?,?,?,?)`,
		ownerID, id, string(today), delta); err != nil {
		return models.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Entry{}, err
	}
	return updated, nil
}

// Events returns the append-only progress log for an entry, oldest first.
func Events(db *sql.DB, ownerID, id string) ([]models.ProgressEvent, error) {
	rows, err := db.Query(`SELECT entry_id, date, delta FROM progress_events
		WHERE owner_id = ? AND entry_id = ? ORDER BY date, rowid`, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ProgressEvent
	for rows.Next() {
		var ev models.ProgressEvent
		var date string
		if err := rows.Scan(&ev.EntryID, &date, &ev.Delta); err != nil {
			return nil, err
		}
		ev.Date = models.Date(date)
		events = append(events, ev)
	}
	return events, rows.Err()
}
