package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetNextSyncTime returns the stored next_sync_time, or nil if unset.
func (s *Store) GetNextSyncTime(app string, instanceID int64) (*time.Time, error) {
	var next sql.NullString
	err := s.db.QueryRow(
		`SELECT next_sync_time FROM sync_status WHERE app = ? AND instance_id = ?`,
		app, instanceID,
	).Scan(&next)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get next sync time: %w", mapSQLiteError(err))
	}
	if !next.Valid || next.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, next.String)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}

// SetNextSyncTime records the next due instant for (app, instance).
func (s *Store) SetNextSyncTime(app string, instanceID int64, next time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_status (app, instance_id, next_sync_time) VALUES (?, ?, ?)
		ON CONFLICT (app, instance_id) DO UPDATE SET next_sync_time = excluded.next_sync_time`,
		app, instanceID, next.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("set next sync time: %w", mapSQLiteError(err))
	}
	return nil
}

// UpsertSyncStatus records both the last and next sync instants.
func (s *Store) UpsertSyncStatus(app string, instanceID int64, last, next time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_status (app, instance_id, last_sync_time, next_sync_time) VALUES (?, ?, ?, ?)
		ON CONFLICT (app, instance_id) DO UPDATE SET
			last_sync_time = excluded.last_sync_time,
			next_sync_time = excluded.next_sync_time`,
		app, instanceID, last.Format(time.RFC3339), next.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert sync status: %w", mapSQLiteError(err))
	}
	return nil
}

// SyncStatus is the per-instance last/next sync record.
type SyncStatus struct {
	App          string
	InstanceID   int64
	LastSyncTime *time.Time
	NextSyncTime *time.Time
}

// GetSyncStatuses returns every known (app, instance) sync status row.
func (s *Store) GetSyncStatuses() ([]SyncStatus, error) {
	rows, err := s.db.Query(`SELECT app, instance_id, last_sync_time, next_sync_time FROM sync_status`)
	if err != nil {
		return nil, fmt.Errorf("list sync statuses: %w", mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []SyncStatus
	for rows.Next() {
		var st SyncStatus
		var last, next sql.NullString
		if err := rows.Scan(&st.App, &st.InstanceID, &last, &next); err != nil {
			return nil, fmt.Errorf("scan sync status: %w", err)
		}
		if last.Valid {
			if t, err := time.Parse(time.RFC3339, last.String); err == nil {
				st.LastSyncTime = &t
			}
		}
		if next.Valid {
			if t, err := time.Parse(time.RFC3339, next.String); err == nil {
				st.NextSyncTime = &t
			}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
