// Package store persists cooldowns, rate events, sync due-times, run
// statistics, encrypted Arr credentials, and Web UI state in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/searchd/internal/crypto"
	"github.com/vmunix/searchd/internal/store/migrations"
)

// querier abstracts *sql.DB and *sql.Tx so CRUD helpers work under both a
// bare connection and an explicit transaction.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// Store is the durable state backing the scheduler and Web UI.
type Store struct {
	db   *sql.DB
	keys *crypto.KeyFile

	// Now returns the current instant; overridable in tests.
	Now func() time.Time
}

// Open creates (if needed) and migrates the SQLite database at path, and
// prepares a file-backed master key beside it for credential encryption.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	keys, err := crypto.OpenKeyFile(crypto.MasterKeyPath(path))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open master key: %w", err)
	}

	return &Store{db: db, keys: keys, Now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx wraps a database transaction; it exposes only Commit and Rollback.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

// Begin starts a transaction.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, now: s.Now}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }
