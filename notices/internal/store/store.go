// Package store persists crawled notices and the crawl target roster in
// sqlite. Notice identity is the source URL; re-crawling the same pages is
// a no-op at the storage layer.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/soopstat/dbopen"
)

const schema = `
CREATE TABLE IF NOT EXISTS notices (
	id            TEXT PRIMARY KEY,
	streamer_id   TEXT NOT NULL,
	streamer_name TEXT NOT NULL,
	title         TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	date          TEXT NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_notices_streamer_date ON notices(streamer_id, date DESC);

CREATE TABLE IF NOT EXISTS targets (
	streamer_id   TEXT PRIMARY KEY,
	streamer_name TEXT NOT NULL,
	note_url      TEXT NOT NULL DEFAULT '',
	monitor_url   TEXT NOT NULL DEFAULT '',
	enabled       INTEGER NOT NULL DEFAULT 1
);
`

// Store wraps the notices database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the notices database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithSchema(schema), dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open database, applying the schema. Used by tests
// with an in-memory database.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
