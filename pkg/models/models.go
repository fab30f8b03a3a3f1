package models

import "time"

// Entry status values. StatusNone means the entry is known (looked up at some
// point) but not on any list.
type Status string

const (
	StatusNone       Status = "none"
	StatusBacklog    Status = "backlog"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusBacklog, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// Entry kinds. Books are keyed by ISBN; articles and poems get generated ids.
type Kind string

const (
	KindBook    Kind = "book"
	KindArticle Kind = "article"
	KindPoem    Kind = "poem"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBook, KindArticle, KindPoem:
		return true
	}
	return false
}

// entries table
type Entry struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Authors      []string  `json:"authors"`
	Publishers   []string  `json:"publishers"`
	PublishDate  string    `json:"publish_date,omitempty"`
	PageCount    *int      `json:"page_count,omitempty"`
	Description  string    `json:"description,omitempty"`
	CoverURL     string    `json:"cover_url,omitempty"`
	Subjects     []string  `json:"subjects"`
	Status       Status    `json:"status"`
	BacklogOrder *int      `json:"backlog_order,omitempty"`
	BacklogDate  Date      `json:"backlog_date,omitempty"`
	StartedDate  Date      `json:"started_date,omitempty"`
	FinishedDate Date      `json:"finished_date,omitempty"`
	LastProgress Date      `json:"last_progress_date,omitempty"`
	CurrentPage  *int      `json:"current_page,omitempty"`
	LastLookedUp time.Time `json:"last_looked_up"`
}

// progress_events table. Append-only; deltas may be negative (page
// corrections) and feed the monthly pages-recorded figure.
type ProgressEvent struct {
	EntryID string `json:"entry_id"`
	Date    Date   `json:"date"`
	Delta   int    `json:"delta"`
}

// calendar_overrides table. One row per (owner, date); Show forces the date in
// or out of the activity calendar regardless of derived activity.
type CalendarOverride struct {
	Date Date `json:"date"`
	Show bool `json:"show"`
}

// users table
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
