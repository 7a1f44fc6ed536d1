// Package offsetstore persists the manual sync offset per video in SQLite so
// a viewer's correction is restored the next time the same item is played.
package offsetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSyncOffsets = `
CREATE TABLE IF NOT EXISTS sync_offsets (
	video_id TEXT NOT NULL PRIMARY KEY,
	offset_millis INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted and
// keeps the data for the life of the Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	if err := s.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("offsetstore: missing database connection")
	}
	if _, err := s.db.Exec(schemaSyncOffsets); err != nil {
		return fmt.Errorf("offsetstore: create schema: %w", err)
	}
	return nil
}

func (s *Store) LoadOffset(ctx context.Context, videoID string) (float64, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, fmt.Errorf("offsetstore: missing database connection")
	}

	var millis int64
	err := s.db.QueryRowContext(ctx,
		`SELECT offset_millis FROM sync_offsets WHERE video_id = ?`,
		videoID,
	).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("offsetstore: load %s: %w", videoID, err)
	}
	return float64(millis) / 1000, true, nil
}

// SaveOffset upserts the offset. A zero offset removes the row.
func (s *Store) SaveOffset(ctx context.Context, videoID string, seconds float64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("offsetstore: missing database connection")
	}

	millis := int64(math.Round(seconds * 1000))

	if millis == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_offsets WHERE video_id = ?`, videoID); err != nil {
			return fmt.Errorf("offsetstore: clear %s: %w", videoID, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_offsets (video_id, offset_millis, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			offset_millis=excluded.offset_millis,
			updated_at=excluded.updated_at
	`, videoID, millis, s.now().Unix())
	if err != nil {
		return fmt.Errorf("offsetstore: save %s: %w", videoID, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
