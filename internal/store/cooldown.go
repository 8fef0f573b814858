package store

import (
	"fmt"
	"time"
)

func itemOnCooldown(q querier, now time.Time, app string, instanceID int64, itemKey string, hours float64) (bool, error) {
	var lastActionAt string
	err := q.QueryRow(
		`SELECT last_action_at FROM item_action WHERE app = ? AND instance_id = ? AND item_key = ?`,
		app, instanceID, itemKey,
	).Scan(&lastActionAt)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("item cooldown lookup: %w", mapSQLiteError(err))
	}

	t, err := time.Parse(time.RFC3339, lastActionAt)
	if err != nil {
		// Unparseable timestamps resolve to "expired", never block an action.
		return false, nil
	}
	return now.Sub(t) < time.Duration(hours*float64(time.Hour)), nil
}

// ItemOnCooldown reports whether item_key last acted within hours of now.
func (s *Store) ItemOnCooldown(app string, instanceID int64, itemKey string, hours float64) (bool, error) {
	return itemOnCooldown(s.db, s.Now(), app, instanceID, itemKey, hours)
}

func markItemAction(q querier, now time.Time, app string, instanceID int64, itemKey, title string) error {
	_, err := q.Exec(`
		INSERT INTO item_action (app, instance_id, item_key, title, last_action_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (app, instance_id, item_key)
		DO UPDATE SET title = excluded.title, last_action_at = excluded.last_action_at`,
		app, instanceID, itemKey, title, now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mark item action: %w", mapSQLiteError(err))
	}
	return nil
}

// MarkItemAction upserts the last-action timestamp for an item key.
func (s *Store) MarkItemAction(app string, instanceID int64, itemKey, title string) error {
	return markItemAction(s.db, s.Now(), app, instanceID, itemKey, title)
}
