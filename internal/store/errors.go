package store

import (
	"database/sql"
	"errors"
	"strings"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConstraint is returned when a write violates a schema constraint.
	ErrConstraint = errors.New("store: constraint violation")
)

// mapSQLiteError converts modernc.org/sqlite error strings into sentinels,
// since the driver does not expose typed errors.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return ErrConstraint
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"):
		return ErrConstraint
	default:
		return err
	}
}
