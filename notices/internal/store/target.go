package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a looked-up target is not in the roster.
var ErrNotFound = errors.New("store: target not found")

// Target is one streamer whose notice board gets crawled.
type Target struct {
	StreamerID   string `json:"streamerId"`
	StreamerName string `json:"streamerName"`
	// NoteURL overrides the crawler's URL patterns for this streamer's
	// notice board.
	NoteURL string `json:"noteUrl,omitempty"`
	// MonitorURL overrides the stats dashboard URL for this streamer.
	MonitorURL string `json:"monitorUrl,omitempty"`
	Enabled    bool   `json:"enabled"`
}

// PutTarget adds or updates a crawl target.
func (s *Store) PutTarget(ctx context.Context, t Target) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (streamer_id, streamer_name, note_url, monitor_url, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(streamer_id) DO UPDATE SET
			streamer_name = excluded.streamer_name,
			note_url = excluded.note_url,
			monitor_url = excluded.monitor_url,
			enabled = excluded.enabled`,
		t.StreamerID, t.StreamerName, t.NoteURL, t.MonitorURL, boolInt(t.Enabled))
	if err != nil {
		return fmt.Errorf("store: put target: %w", err)
	}
	return nil
}

// GetTarget looks up one target by streamer id.
func (s *Store) GetTarget(ctx context.Context, streamerID string) (Target, error) {
	var t Target
	var enabled int
	err := s.db.QueryRowContext(ctx, `
		SELECT streamer_id, streamer_name, note_url, monitor_url, enabled
		FROM targets WHERE streamer_id = ?`, streamerID).
		Scan(&t.StreamerID, &t.StreamerName, &t.NoteURL, &t.MonitorURL, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return Target{}, ErrNotFound
	}
	if err != nil {
		return Target{}, fmt.Errorf("store: get target: %w", err)
	}
	t.Enabled = enabled != 0
	return t, nil
}

// ListTargets returns the enabled crawl targets.
func (s *Store) ListTargets(ctx context.Context) ([]Target, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT streamer_id, streamer_name, note_url, monitor_url, enabled
		FROM targets WHERE enabled = 1 ORDER BY streamer_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list targets: %w", err)
	}
	defer rows.Close()

	var out []Target
	for rows.Next() {
		var t Target
		var enabled int
		if err := rows.Scan(&t.StreamerID, &t.StreamerName, &t.NoteURL, &t.MonitorURL, &enabled); err != nil {
			return nil, fmt.Errorf("store: scan target: %w", err)
		}
		t.Enabled = enabled != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
