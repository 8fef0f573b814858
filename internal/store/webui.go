package store

import (
	"encoding/json"
	"fmt"
)

// GetWebUIPasswordHash returns the stored PBKDF2 hash, or "" if unset.
func (s *Store) GetWebUIPasswordHash() (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM webui_auth WHERE id = 1`).Scan(&hash)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("get webui password hash: %w", mapSQLiteError(err))
	}
	return hash, nil
}

// SetWebUIPasswordHash persists the single-row password hash.
func (s *Store) SetWebUIPasswordHash(hash string) error {
	_, err := s.db.Exec(`
		INSERT INTO webui_auth (id, password_hash) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET password_hash = excluded.password_hash`, hash)
	if err != nil {
		return fmt.Errorf("set webui password hash: %w", mapSQLiteError(err))
	}
	return nil
}

// uiAppSettings is the JSON blob backing ui_app_settings: dashboard-only
// preferences that should not be rewritten into the YAML config file.
type uiAppSettings struct {
	AutorunEnabled bool `json:"autorun_enabled"`
}

func (s *Store) loadUIAppSettings() (uiAppSettings, error) {
	settings := uiAppSettings{AutorunEnabled: true}
	var raw string
	err := s.db.QueryRow(`SELECT settings_json FROM ui_app_settings WHERE id = 1`).Scan(&raw)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return settings, nil
		}
		return settings, fmt.Errorf("load ui settings: %w", mapSQLiteError(err))
	}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &settings)
	}
	return settings, nil
}

func (s *Store) saveUIAppSettings(settings uiAppSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal ui settings: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO ui_app_settings (id, settings_json) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET settings_json = excluded.settings_json`, string(raw))
	if err != nil {
		return fmt.Errorf("save ui settings: %w", mapSQLiteError(err))
	}
	return nil
}

// GetAutorunEnabled reports whether the Web UI's scheduling loops are
// currently allowed to run, defaulting to true.
func (s *Store) GetAutorunEnabled() (bool, error) {
	settings, err := s.loadUIAppSettings()
	if err != nil {
		return true, err
	}
	return settings.AutorunEnabled, nil
}

// SetAutorunEnabled toggles the Web UI's autorun flag.
func (s *Store) SetAutorunEnabled(enabled bool) error {
	settings, err := s.loadUIAppSettings()
	if err != nil {
		return err
	}
	settings.AutorunEnabled = enabled
	return s.saveUIAppSettings(settings)
}
