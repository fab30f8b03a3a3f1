// Package book is the sqlite-backed entry store: key lookup, filtered list
// scans, upserts, partial field patches, and destructive delete.
package book

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"booklog/pkg/models"
)

var ErrNotFound = errors.New("entry not found")

// Queryer is satisfied by *sql.DB and *sql.Tx so multi-statement operations
// can run inside one transaction.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const entryColumns = `id, kind, title, authors, publishers, publish_date,
	page_count, description, cover_url, subjects, status, backlog_order,
	backlog_date, started_date, finished_date, last_progress_date,
	current_page, last_looked_up`

func scanEntry(scan func(dest ...any) error) (models.Entry, error) {
	var (
		e            models.Entry
		authors      string
		publishers   string
		subjects     string
		publishDate  sql.NullString
		pageCount    sql.NullInt64
		description  sql.NullString
		coverURL     sql.NullString
		backlogOrder sql.NullInt64
		backlogDate  sql.NullString
		startedDate  sql.NullString
		finishedDate sql.NullString
		lastProgress sql.NullString
		currentPage  sql.NullInt64
		lastLookedUp sql.NullTime
	)
	err := scan(&e.ID, &e.Kind, &e.Title, &authors, &publishers, &publishDate,
		&pageCount, &description, &coverURL, &subjects, &e.Status, &backlogOrder,
		&backlogDate, &startedDate, &finishedDate, &lastProgress,
		&currentPage, &lastLookedUp)
	if err != nil {
		return models.Entry{}, err
	}

	_ = json.Unmarshal([]byte(authors), &e.Authors)
	_ = json.Unmarshal([]byte(publishers), &e.Publishers)
	_ = json.Unmarshal([]byte(subjects), &e.Subjects)
	e.PublishDate = publishDate.String
	e.Description = description.String
	e.CoverURL = coverURL.String
	e.BacklogDate = models.Date(backlogDate.String)
	e.StartedDate = models.Date(startedDate.String)
	e.FinishedDate = models.Date(finishedDate.String)
	e.LastProgress = models.Date(lastProgress.String)
	if pageCount.Valid {
		v := int(pageCount.Int64)
		e.PageCount = &v
	}
	if backlogOrder.Valid {
		v := int(backlogOrder.Int64)
		e.BacklogOrder = &v
	}
	if currentPage.Valid {
		v := int(currentPage.Int64)
		e.CurrentPage = &v
	}
	if lastLookedUp.Valid {
		e.LastLookedUp = lastLookedUp.Time
	}
	return e, nil
}

func Get(q Queryer, ownerID, id string) (models.Entry, error) {
	row := q.QueryRow(`SELECT `+entryColumns+` FROM entries WHERE owner_id = ? AND id = ?`,
		ownerID, id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, ErrNotFound
	}
	return e, err
}

func list(q Queryer, ownerID, where, order string, args ...any) ([]models.Entry, error) {
	sqlQ := `SELECT ` + entryColumns + ` FROM entries WHERE owner_id = ?`
	if where != "" {
		sqlQ += " AND " + where
	}
	sqlQ += " ORDER BY " + order
	rows, err := q.Query(sqlQ, append([]any{ownerID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// History returns recent lookups, most recently looked up first.
func History(q Queryer, ownerID string, limit int) ([]models.Entry, error) {
	return list(q, ownerID, "", "last_looked_up DESC LIMIT ?", limit)
}

// ListBacklog returns backlog entries. With a kind it returns one partition
// ordered by backlog_order; without, all partitions grouped by kind.
func ListBacklog(q Queryer, ownerID string, kind models.Kind) ([]models.Entry, error) {
	if kind != "" {
		return list(q, ownerID, "status = ? AND kind = ?", "backlog_order",
			models.StatusBacklog, kind)
	}
	return list(q, ownerID, "status = ?", "kind, backlog_order", models.StatusBacklog)
}

func ListInProgress(q Queryer, ownerID string) ([]models.Entry, error) {
	return list(q, ownerID, "status = ?", "last_looked_up DESC", models.StatusInProgress)
}

func ListFinished(q Queryer, ownerID string) ([]models.Entry, error) {
	return list(q, ownerID, "status = ?", "finished_date DESC", models.StatusFinished)
}

// All returns every entry for the owner. Used by calendar derivation.
func All(q Queryer, ownerID string) ([]models.Entry, error) {
	return list(q, ownerID, "", "id")
}

// NextBacklogOrder returns max+1 of backlog_order within the (owner, kind)
// partition, or 0 when the partition is empty.
func NextBacklogOrder(q Queryer, ownerID string, kind models.Kind) (int, error) {
	var max sql.NullInt64
	err := q.QueryRow(`SELECT MAX(backlog_order) FROM entries
		WHERE owner_id = ? AND status = ? AND kind = ?`,
		ownerID, models.StatusBacklog, kind).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// Upsert inserts a resolved bibliographic record, or refreshes the
// bibliographic fields of an existing one. Lifecycle fields (status, dates,
// page position, backlog order) are never touched by an upsert, so
// re-resolving a book cannot knock it off a list. last_looked_up is stamped.
func Upsert(q Queryer, ownerID string, e models.Entry) (models.Entry, error) {
	authorsJSON, _ := json.Marshal(e.Authors)
	publishersJSON, _ := json.Marshal(e.Publishers)
	subjectsJSON, _ := json.Marshal(e.Subjects)
	if e.Kind == "" {
		e.Kind = models.KindBook
	}
	if e.Status == "" {
		e.Status = models.StatusNone
	}
	now := time.Now().UTC()

	_, err := q.Exec(`
	INSERT INTO entries (owner_id, id, kind, title, authors, publishers,
		publish_date, page_count, description, cover_url, subjects, status,
		backlog_date, started_date, finished_date, last_progress_date,
		current_page, last_looked_up)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(owner_id, id)
	DO UPDATE SET title=excluded.title,
	              authors=excluded.authors,
	              publishers=excluded.publishers,
	              publish_date=excluded.publish_date,
	              page_count=excluded.page_count,
	              description=excluded.description,
	              cover_url=excluded.cover_url,
	              subjects=excluded.subjects,
	              last_looked_up=excluded.last_looked_up
	`, ownerID, e.ID, string(e.Kind), e.Title, string(authorsJSON),
		string(publishersJSON), nullStr(e.PublishDate), nullIntPtr(e.PageCount),
		nullStr(e.Description), nullStr(e.CoverURL), string(subjectsJSON),
		string(e.Status), nullDate(e.BacklogDate), nullDate(e.StartedDate),
		nullDate(e.FinishedDate), nullDate(e.LastProgress),
		nullIntPtr(e.CurrentPage), now)
	if err != nil {
		return models.Entry{}, err
	}
	return Get(q, ownerID, e.ID)
}

func TouchLastLookedUp(q Queryer, ownerID, id string) error {
	_, err := q.Exec(`UPDATE entries SET last_looked_up = ? WHERE owner_id = ? AND id = ?`,
		time.Now().UTC(), ownerID, id)
	return err
}

// Patch is a partial field update; nil pointer fields are left untouched.
// ClearBacklogOrder sets backlog_order to NULL (leaving a backlog partition).
type Patch struct {
	Title        *string
	Authors      *[]string
	Publishers   *[]string
	PublishDate  *string
	PageCount    *int
	Description  *string
	CoverURL     *string
	Subjects     *[]string
	Status       *models.Status
	BacklogOrder *int
	BacklogDate  *models.Date
	StartedDate  *models.Date
	FinishedDate *models.Date
	LastProgress *models.Date
	CurrentPage  *int

	ClearBacklogOrder bool
}

// Apply writes the patch and returns the updated entry. An empty patch just
// re-reads the row.
func Apply(q Queryer, ownerID, id string, p Patch) (models.Entry, error) {
	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Authors != nil {
		b, _ := json.Marshal(*p.Authors)
		set("authors", string(b))
	}
	if p.Publishers != nil {
		b, _ := json.Marshal(*p.Publishers)
		set("publishers", string(b))
	}
	if p.PublishDate != nil {
		set("publish_date", nullStr(*p.PublishDate))
	}
	if p.PageCount != nil {
		set("page_count", *p.PageCount)
	}
	if p.Description != nil {
		set("description", nullStr(*p.Description))
	}
	if p.CoverURL != nil {
		set("cover_url", nullStr(*p.CoverURL))
	}
	if p.Subjects != nil {
		b, _ := json.Marshal(*p.Subjects)
		set("subjects", string(b))
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.ClearBacklogOrder {
		set("backlog_order", nil)
	} else if p.BacklogOrder != nil {
		set("backlog_order", *p.BacklogOrder)
	}
	if p.BacklogDate != nil {
		set("backlog_date", nullDate(*p.BacklogDate))
	}
	if p.StartedDate != nil {
		set("started_date", nullDate(*p.StartedDate))
	}
	if p.FinishedDate != nil {
		set("finished_date", nullDate(*p.FinishedDate))
	}
	if p.LastProgress != nil {
		set("last_progress_date", nullDate(*p.LastProgress))
	}
	if p.CurrentPage != nil {
		set("current_page", *p.CurrentPage)
	}

	if len(sets) == 0 {
		return Get(q, ownerID, id)
	}

	args = append(args, ownerID, id)
	res, err := q.Exec(`UPDATE entries SET `+strings.Join(sets, ", ")+
		` WHERE owner_id = ? AND id = ?`, args...)
	if err != nil {
		return models.Entry{}, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return models.Entry{}, ErrNotFound
	}
	return Get(q, ownerID, id)
}

// Delete removes an entry from the read history and cascades its progress
// events. The two deletes commit together or not at all.
func Delete(db *sql.DB, ownerID, id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM entries WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM progress_events WHERE owner_id = ? AND entry_id = ?`,
		ownerID, id); err != nil {
		return err
	}
	return tx.Commit()
}

// NewArticleParams describes a manually-added article or poem.
type NewArticleParams struct {
	Title       string
	Kind        models.Kind
	Authors     []string
	Publishers  []string
	PublishDate string
	PageCount   *int
	Description string
	Status      models.Status
	StartedDate models.Date
}

// CreateArticle inserts a manual entry with a generated opaque id. Status
// defaults to backlog, which assigns the next order slot and stamps
// backlog_date; creating directly as in_progress stamps started_date when the
// caller didn't supply one.
func CreateArticle(db *sql.DB, ownerID string, p NewArticleParams, today models.Date) (models.Entry, error) {
	if strings.TrimSpace(p.Title) == "" {
		return models.Entry{}, errors.New("title required")
	}
	kind := p.Kind
	if kind == "" {
		kind = models.KindArticle
	}
	status := p.Status
	if status == "" {
		status = models.StatusBacklog
	}

	e := models.Entry{
		ID:          string(kind) + "-" + uuid.NewString(),
		Kind:        kind,
		Title:       p.Title,
		Authors:     p.Authors,
		Publishers:  p.Publishers,
		PublishDate: p.PublishDate,
		PageCount:   p.PageCount,
		Description: p.Description,
		Status:      status,
		StartedDate: p.StartedDate,
	}
	if len(e.Authors) == 0 {
		e.Authors = []string{"Unknown"}
	}

	// The insert and the order slot commit together so a backlog entry never
	// surfaces without its backlog_order.
	tx, err := db.Begin()
	if err != nil {
		return models.Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var order *int
	switch status {
	case models.StatusBacklog:
		next, err := NextBacklogOrder(tx, ownerID, kind)
		if err != nil {
			return models.Entry{}, err
		}
		order = &next
		e.BacklogDate = today
	case models.StatusInProgress:
		if e.StartedDate.IsZero() {
			e.StartedDate = today
		}
	}

	saved, err := Upsert(tx, ownerID, e)
	if err != nil {
		return models.Entry{}, err
	}
	if order != nil {
		saved, err = Apply(tx, ownerID, e.ID, Patch{BacklogOrder: order})
		if err != nil {
			return models.Entry{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Entry{}, err
	}
	return saved, nil
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

func nullIntPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
