package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hazyhaar/soopstat/dbopen"
)

// Notice is one channel notice post.
type Notice struct {
	ID           string `json:"id"`
	StreamerID   string `json:"streamerId"`
	StreamerName string `json:"streamerName"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	// Date is the post date normalized to YYYY-MM-DD.
	Date string `json:"date"`
	URL  string `json:"url"`
}

// UpsertNotices inserts notices, skipping rows whose URL is already stored.
// It returns the number of rows actually inserted. Missing IDs are filled
// in before insert.
func (s *Store) UpsertNotices(ctx context.Context, notices []Notice) (int, error) {
	if len(notices) == 0 {
		return 0, nil
	}

	inserted := 0
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		inserted = 0
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notices (id, streamer_id, streamer_name, title, content, date, url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, n := range notices {
			if n.ID == "" {
				n.ID = uuid.NewString()
			}
			res, err := stmt.ExecContext(ctx,
				n.ID, n.StreamerID, n.StreamerName, n.Title, n.Content, n.Date, n.URL)
			if err != nil {
				return err
			}
			if rows, err := res.RowsAffected(); err == nil && rows > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: upsert notices: %w", err)
	}
	return inserted, nil
}

// ListNotices returns stored notices, newest first. streamerID filters to
// one streamer when non-empty; limit caps the result when positive.
func (s *Store) ListNotices(ctx context.Context, streamerID string, limit int) ([]Notice, error) {
	q := `SELECT id, streamer_id, streamer_name, title, content, date, url
		FROM notices`
	var args []any
	if streamerID != "" {
		q += ` WHERE streamer_id = ?`
		args = append(args, streamerID)
	}
	q += ` ORDER BY date DESC, created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list notices: %w", err)
	}
	defer rows.Close()

	var out []Notice
	for rows.Next() {
		var n Notice
		if err := rows.Scan(&n.ID, &n.StreamerID, &n.StreamerName,
			&n.Title, &n.Content, &n.Date, &n.URL); err != nil {
			return nil, fmt.Errorf("store: scan notice: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountNotices reports how many notices are stored for streamerID, or all
// notices when streamerID is empty.
func (s *Store) CountNotices(ctx context.Context, streamerID string) (int, error) {
	q := `SELECT COUNT(*) FROM notices`
	var args []any
	if streamerID != "" {
		q += ` WHERE streamer_id = ?`
		args = append(args, streamerID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count notices: %w", err)
	}
	return n, nil
}
