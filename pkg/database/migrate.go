package database

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE,
			password_hash TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			owner_id TEXT NOT NULL,
			id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'book',
			title TEXT NOT NULL,
			authors TEXT NOT NULL DEFAULT '[]', -- JSON array as text
			publishers TEXT NOT NULL DEFAULT '[]',
			publish_date TEXT,
			page_count INTEGER,
			description TEXT,
			cover_url TEXT,
			subjects TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'none',
			backlog_order INTEGER,
			backlog_date TEXT, -- dates stored as YYYY-MM-DD text
			started_date TEXT,
			finished_date TEXT,
			last_progress_date TEXT,
			current_page INTEGER,
			last_looked_up TIMESTAMP,
			PRIMARY KEY (owner_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS progress_events (
			owner_id TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			date TEXT NOT NULL,
			delta INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_events_owner
			ON progress_events (owner_id, entry_id);`,
		`CREATE TABLE IF NOT EXISTS calendar_overrides (
			owner_id TEXT NOT NULL,
			date TEXT NOT NULL,
			show INTEGER NOT NULL,
			PRIMARY KEY (owner_id, date)
		);`,
	}

	for i, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate stmt %d: %w", i, err)
		}
	}
	return nil
}
