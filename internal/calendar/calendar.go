// Package calendar derives the set of reading-active dates from lifecycle
// and progress timestamps, layered with explicit per-date overrides, and
// aggregates monthly/yearly statistics.
package calendar

import (
	"database/sql"
	"sort"
	"time"

	"booklog/internal/book"
	"booklog/pkg/models"
)

// derivedDates is the base set: started, finished and last-progress dates
// across all entries, capped at today. Future-dated activity (backdated
// edits gone wrong, pre-logged finishes) must not show up early; arbitrarily
// old activity is kept.
func derivedDates(db *sql.DB, ownerID string, today models.Date) (map[models.Date]bool, error) {
	entries, err := book.All(db, ownerID)
	if err != nil {
		return nil, err
	}
	dates := make(map[models.Date]bool)
	add := func(d models.Date) {
		if !d.IsZero() && !d.After(today) {
			dates[d] = true
		}
	}
	for _, e := range entries {
		add(e.StartedDate)
		add(e.FinishedDate)
		add(e.LastProgress)
	}
	return dates, nil
}

func overrides(db *sql.DB, ownerID string) (map[models.Date]bool, error) {
	rows, err := db.Query(`SELECT date, show FROM calendar_overrides WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[models.Date]bool)
	for rows.Next() {
		var date string
		var show bool
		if err := rows.Scan(&date, &show); err != nil {
			return nil, err
		}
		out[models.Date(date)] = show
	}
	return out, rows.Err()
}

// ActiveDates returns the effective active set, sorted ascending: derived
// membership with overrides applied on top. An override always wins — show
// forces a date in with no underlying activity, hide forces it out despite
// activity.
func ActiveDates(db *sql.DB, ownerID string, today models.Date) ([]models.Date, error) {
	dates, err := derivedDates(db, ownerID, today)
	if err != nil {
		return nil, err
	}
	ovr, err := overrides(db, ownerID)
	if err != nil {
		return nil, err
	}
	for d, show := range ovr {
		if show {
			dates[d] = true
		} else {
			delete(dates, d)
		}
	}

	out := make([]models.Date, 0, len(dates))
	for d := range dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Toggle flips the externally observed membership of a date: it reads the
// current effective value and writes an override with the opposite. Two
// toggles in a row restore what the user saw, regardless of what the
// override row held before.
func Toggle(db *sql.DB, ownerID string, date models.Date, today models.Date) (bool, error) {
	derived, err := derivedDates(db, ownerID, today)
	if err != nil {
		return false, err
	}
	ovr, err := overrides(db, ownerID)
	if err != nil {
		return false, err
	}
	effective := derived[date]
	if show, ok := ovr[date]; ok {
		effective = show
	}

	next := !effective
	_, err = db.Exec(`
	INSERT INTO calendar_overrides(owner_id, date, show) VALUES(?,?,?)
	ON CONFLICT(owner_id, date) DO UPDATE SET show=excluded.show
	`, ownerID, string(date), next)
	if err != nil {
		return false, err
	}
	return next, nil
}

// MonthSummary reports a month's reading figures. PagesFromFinished and
// PagesRecorded are independent: a finished book counts its full page_count
// whether or not its progress was ever tracked through events, so overlap
// between the two is expected.
type MonthSummary struct {
	PagesFromFinished  int           `json:"pages_from_finished"`
	PagesRecorded      int           `json:"pages_recorded"`
	FinishedItems      int           `json:"finished_items"`
	ActiveDatesInMonth []models.Date `json:"active_dates_in_month"`
}

func SummarizeMonth(db *sql.DB, ownerID string, year, month int, today models.Date) (MonthSummary, error) {
	var s MonthSummary

	finished, err := book.ListFinished(db, ownerID)
	if err != nil {
		return s, err
	}
	for _, e := range finished {
		if !e.FinishedDate.InMonth(year, month) {
			continue
		}
		s.FinishedItems++
		if e.PageCount != nil {
			s.PagesFromFinished += *e.PageCount
		}
	}

	rows, err := db.Query(`SELECT date, delta FROM progress_events WHERE owner_id = ?`, ownerID)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var date string
		var delta int
		if err := rows.Scan(&date, &delta); err != nil {
			return s, err
		}
		if models.Date(date).InMonth(year, month) {
			s.PagesRecorded += delta
		}
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	active, err := ActiveDates(db, ownerID, today)
	if err != nil {
		return s, err
	}
	s.ActiveDatesInMonth = make([]models.Date, 0)
	for _, d := range active {
		if d.InMonth(year, month) {
			s.ActiveDatesInMonth = append(s.ActiveDatesInMonth, d)
		}
	}
	return s, nil
}

// Stats is the overall dashboard shape: pages finished this month and year
// plus finished counts. The two counts are the same figure today; the UI
// keys off both names.
type Stats struct {
	PagesThisMonth     int `json:"pages_this_month"`
	PagesThisYear      int `json:"pages_this_year"`
	BooksFinishedCount int `json:"books_finished_count"`
	ItemsFinishedCount int `json:"items_finished_count"`
}

func Summarize(db *sql.DB, ownerID string, today models.Date) (Stats, error) {
	var s Stats
	finished, err := book.ListFinished(db, ownerID)
	if err != nil {
		return s, err
	}

	year, month := todayYearMonth(today)
	for _, e := range finished {
		s.ItemsFinishedCount++
		if e.PageCount == nil || e.FinishedDate.IsZero() {
			continue
		}
		if e.FinishedDate.InMonth(year, month) {
			s.PagesThisMonth += *e.PageCount
		}
		if e.FinishedDate.InYear(year) {
			s.PagesThisYear += *e.PageCount
		}
	}
	s.BooksFinishedCount = s.ItemsFinishedCount
	return s, nil
}

func todayYearMonth(today models.Date) (int, int) {
	t, err := time.Parse("2006-01-02", string(today))
	if err != nil {
		return 0, 0
	}
	return t.Year(), int(t.Month())
}
