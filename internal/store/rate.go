package store

import (
	"fmt"
	"time"
)

func recordSearchEvent(q querier, now time.Time, app string, instanceID int64) error {
	_, err := q.Exec(`INSERT INTO search_event (app, instance_id, occurred_at) VALUES (?, ?, ?)`,
		app, instanceID, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record search event: %w", mapSQLiteError(err))
	}
	return nil
}

// RecordSearchEvent appends a rolling-rate-window marker for (app, instance).
func (s *Store) RecordSearchEvent(app string, instanceID int64) error {
	return recordSearchEvent(s.db, s.Now(), app, instanceID)
}

func countSearchEventsSince(q querier, app string, instanceID int64, since time.Time) (int, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM search_event WHERE app = ? AND instance_id = ? AND occurred_at >= ?`,
		app, instanceID, since.Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count search events: %w", mapSQLiteError(err))
	}
	return count, nil
}

// CountSearchEventsSince returns the rolling count of triggers at or after since.
func (s *Store) CountSearchEventsSince(app string, instanceID int64, since time.Time) (int, error) {
	return countSearchEventsSince(s.db, app, instanceID, since)
}

func recordSearchAction(q querier, now time.Time, app string, instanceID int64, itemKey, title string) error {
	_, err := q.Exec(
		`INSERT INTO search_action (app, instance_id, item_key, title, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		app, instanceID, itemKey, title, now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record search action: %w", mapSQLiteError(err))
	}
	return nil
}

// RecordSearchAction appends a human-readable trigger-history row.
func (s *Store) RecordSearchAction(app string, instanceID int64, itemKey, title string) error {
	return recordSearchAction(s.db, s.Now(), app, instanceID, itemKey, title)
}

// SearchAction is one entry of trigger history.
type SearchAction struct {
	Title      string
	ItemKey    string
	OccurredAt time.Time
}

// GetRecentSearchActions returns up to limit most-recent trigger-history rows.
func (s *Store) GetRecentSearchActions(app string, instanceID int64, limit int) ([]SearchAction, error) {
	rows, err := s.db.Query(
		`SELECT title, item_key, occurred_at FROM search_action
		 WHERE app = ? AND instance_id = ? ORDER BY id DESC LIMIT ?`,
		app, instanceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list search actions: %w", mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []SearchAction
	for rows.Next() {
		var a SearchAction
		var occurredAt string
		if err := rows.Scan(&a.Title, &a.ItemKey, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan search action: %w", err)
		}
		a.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
