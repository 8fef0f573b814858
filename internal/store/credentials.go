package store

import (
	"fmt"

	"github.com/vmunix/searchd/internal/crypto"
)

// SetArrAPIKey encrypts and persists the API key for (app, instance).
func (s *Store) SetArrAPIKey(app string, instanceID int64, apiKey string) error {
	enc, err := s.keys.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO arr_credentials (app, instance_id, api_key_enc) VALUES (?, ?, ?)
		ON CONFLICT (app, instance_id) DO UPDATE SET api_key_enc = excluded.api_key_enc`,
		app, instanceID, enc,
	)
	if err != nil {
		return fmt.Errorf("set arr api key: %w", mapSQLiteError(err))
	}
	return nil
}

// GetArrAPIKey returns the decrypted API key for (app, instance), or ""
// (with no error) if unset or the stored ciphertext is corrupt.
func (s *Store) GetArrAPIKey(app string, instanceID int64) (string, error) {
	var enc string
	err := s.db.QueryRow(
		`SELECT api_key_enc FROM arr_credentials WHERE app = ? AND instance_id = ?`,
		app, instanceID,
	).Scan(&enc)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("get arr api key: %w", mapSQLiteError(err))
	}
	plain, err := s.keys.Decrypt(enc)
	if err != nil {
		if err == crypto.ErrInvalidCiphertext {
			return "", nil
		}
		return "", fmt.Errorf("decrypt arr api key: %w", err)
	}
	return plain, nil
}

// HasArrAPIKey reports whether a credential row exists for (app, instance).
func (s *Store) HasArrAPIKey(app string, instanceID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM arr_credentials WHERE app = ? AND instance_id = ?`,
		app, instanceID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has arr api key: %w", mapSQLiteError(err))
	}
	return n > 0, nil
}

// ClearArrAPIKey removes a stored credential; idempotent.
func (s *Store) ClearArrAPIKey(app string, instanceID int64) error {
	_, err := s.db.Exec(`DELETE FROM arr_credentials WHERE app = ? AND instance_id = ?`, app, instanceID)
	if err != nil {
		return fmt.Errorf("clear arr api key: %w", mapSQLiteError(err))
	}
	return nil
}
