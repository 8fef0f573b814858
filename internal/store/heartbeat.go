package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SetSchedulerHeartbeat records that the scheduler completed an iteration.
func (s *Store) SetSchedulerHeartbeat() error {
	_, err := s.db.Exec(`
		INSERT INTO scheduler_heartbeat (id, last_beat_at) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_beat_at = excluded.last_beat_at`,
		s.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("set scheduler heartbeat: %w", mapSQLiteError(err))
	}
	return nil
}

// GetSchedulerHeartbeat returns the last heartbeat instant, or nil if none yet.
func (s *Store) GetSchedulerHeartbeat() (*time.Time, error) {
	var last sql.NullString
	err := s.db.QueryRow(`SELECT last_beat_at FROM scheduler_heartbeat WHERE id = 1`).Scan(&last)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get scheduler heartbeat: %w", mapSQLiteError(err))
	}
	if !last.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, last.String)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}
