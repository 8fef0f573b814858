package store

import (
	"database/sql"
	"fmt"
	"time"
)

// StartRun inserts a new cycle_run row and returns its id.
func (s *Store) StartRun() (int64, error) {
	res, err := s.db.Exec(`INSERT INTO cycle_run (started_at, status) VALUES (?, 'running')`,
		s.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("start run: %w", mapSQLiteError(err))
	}
	return res.LastInsertId()
}

// FinishRun closes out a cycle_run row with its final status and stats.
func (s *Store) FinishRun(cycleID int64, status, statsJSON string) error {
	_, err := s.db.Exec(
		`UPDATE cycle_run SET finished_at = ?, status = ?, stats_json = ? WHERE id = ?`,
		s.Now().Format(time.RFC3339), status, statsJSON, cycleID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", mapSQLiteError(err))
	}
	return nil
}

// RecordInstanceRun appends a per-instance run record for a cycle.
func (s *Store) RecordInstanceRun(cycleID int64, app string, instanceID int64, started, finished time.Time, status, statsJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO instance_run (cycle_id, app, instance_id, started_at, finished_at, status, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycleID, app, instanceID, started.Format(time.RFC3339), finished.Format(time.RFC3339), status, statsJSON,
	)
	if err != nil {
		return fmt.Errorf("record instance run: %w", mapSQLiteError(err))
	}
	return nil
}

// Run is one cycle_run row.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	StatsJSON  string
}

// GetRecentRuns returns up to limit most-recent cycle runs, newest first.
func (s *Store) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, status, stats_json FROM cycle_run ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status, &r.StatsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339, finished.String); err == nil {
				r.FinishedAt = &t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLastInstanceRun returns the most recent instance_run row for (app, instance), if any.
func (s *Store) GetLastInstanceRun(app string, instanceID int64) (*Run, error) {
	var r Run
	var started string
	var finished sql.NullString
	err := s.db.QueryRow(
		`SELECT id, started_at, finished_at, status, stats_json FROM instance_run
		 WHERE app = ? AND instance_id = ? ORDER BY id DESC LIMIT 1`,
		app, instanceID,
	).Scan(&r.ID, &started, &finished, &r.Status, &r.StatsJSON)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get last instance run: %w", mapSQLiteError(err))
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		if t, err := time.Parse(time.RFC3339, finished.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return &r, nil
}
