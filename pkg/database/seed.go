package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"booklog/pkg/models"
)

// LoadEntriesFromJSON reads a seed file of entries (the export shape of the
// entries API).
func LoadEntriesFromJSON(jsonPath string) ([]models.Entry, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read entries json: %w", err)
	}

	var list []models.Entry
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("unmarshal entries json: %w", err)
	}

	return list, nil
}

// SeedEntries inserts entries for an owner, skipping ids that already exist.
func SeedEntries(db *sql.DB, ownerID string, entries []models.Entry) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO entries
			(owner_id, id, kind, title, authors, publishers, publish_date,
			 page_count, description, cover_url, subjects, status,
			 backlog_order, backlog_date, started_date, finished_date,
			 last_progress_date, current_page, last_looked_up)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert entry: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		if e.Kind == "" {
			e.Kind = models.KindBook
		}
		if e.Status == "" {
			e.Status = models.StatusNone
		}
		authorsJSON, err := json.Marshal(e.Authors)
		if err != nil {
			return 0, fmt.Errorf("marshal authors for %s: %w", e.ID, err)
		}
		publishersJSON, err := json.Marshal(e.Publishers)
		if err != nil {
			return 0, fmt.Errorf("marshal publishers for %s: %w", e.ID, err)
		}
		subjectsJSON, err := json.Marshal(e.Subjects)
		if err != nil {
			return 0, fmt.Errorf("marshal subjects for %s: %w", e.ID, err)
		}

		lastLookedUp := e.LastLookedUp
		if lastLookedUp.IsZero() {
			lastLookedUp = time.Now().UTC()
		}

		res, err := stmt.Exec(ownerID, e.ID, string(e.Kind), e.Title,
			string(authorsJSON), string(publishersJSON), nullStr(e.PublishDate),
			nullInt(e.PageCount), nullStr(e.Description), nullStr(e.CoverURL),
			string(subjectsJSON), string(e.Status), nullInt(e.BacklogOrder),
			nullDate(e.BacklogDate), nullDate(e.StartedDate),
			nullDate(e.FinishedDate), nullDate(e.LastProgress),
			nullInt(e.CurrentPage), lastLookedUp)
		if err != nil {
			return 0, fmt.Errorf("insert entry %s: %w", e.ID, err)
		}

		aff, _ := res.RowsAffected()
		if aff > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d models.Date) any {
	if d.IsZero() {
		return nil
	}
	return string(d)
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
