package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The statements are portable between sqlite and postgres. Revisions carry
// no foreign key so history survives entry deletion.
var schema = []struct {
	name string
	stmt string
}{
	{"actors", `
		CREATE TABLE IF NOT EXISTS actors (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			telegram_chat_id BIGINT,
			created_at TIMESTAMP NOT NULL
		)`},
	{"categories", `
		CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`},
	{"entries", `
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			headword TEXT NOT NULL,
			language_id TEXT NOT NULL,
			meanings TEXT NOT NULL,
			translations TEXT NOT NULL,
			category_id TEXT,
			pronunciation TEXT NOT NULL DEFAULT '',
			audio TEXT NOT NULL,
			status TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(headword, language_id)
		)`},
	{"entries status index", `CREATE INDEX IF NOT EXISTS entries_status_idx ON entries (status, created_at)`},
	{"revisions", `
		CREATE TABLE IF NOT EXISTS revisions (
			id TEXT PRIMARY KEY,
			entry_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			change_set TEXT NOT NULL,
			submitted_by TEXT NOT NULL,
			submitted_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			reviewed_by TEXT,
			reviewed_at TIMESTAMP,
			review_notes TEXT
		)`},
	{"revisions entry index", `CREATE INDEX IF NOT EXISTS revisions_entry_idx ON revisions (entry_id, submitted_at)`},
	// At most one pending revision per entry
	{"revisions pending index", `CREATE UNIQUE INDEX IF NOT EXISTS revisions_one_pending_idx ON revisions (entry_id) WHERE status = 'pending'`},
	{"activity", `
		CREATE TABLE IF NOT EXISTS activity (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			metadata TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`},
	{"activity target index", `CREATE INDEX IF NOT EXISTS activity_target_idx ON activity (target_id, occurred_at)`},
	{"translation_links", `
		CREATE TABLE IF NOT EXISTS translation_links (
			source_entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
			target_entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
			PRIMARY KEY (source_entry_id, target_entry_id)
		)`},
	{"favorites", `
		CREATE TABLE IF NOT EXISTS favorites (
			entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
			actor_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (entry_id, actor_id)
		)`},
}

// Migrate creates the tables and indexes if they don't exist
func Migrate(db *sqlx.DB) error {
	for _, s := range schema {
		if _, err := db.Exec(s.stmt); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
