package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// SettingsStorage implements interfaces.SettingStorage for SQLite
type SettingsStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewSettingsStorage creates a new SettingsStorage instance
func NewSettingsStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.SettingStorage {
	return &SettingsStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a raw setting value by key
func (s *SettingsStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %s: %w", key, interfaces.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// Set stores a raw setting value, overwriting any existing value
func (s *SettingsStorage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := s.db.DB().ExecContext(ctx, query, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	s.logger.Debug().Str("key", key).Msg("Setting stored")
	return nil
}

// Delete removes a stored setting so the default applies again
func (s *SettingsStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

// List returns all stored settings ordered by key
func (s *SettingsStorage) List(ctx context.Context) ([]*models.Setting, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		var setting models.Setting
		var updatedAt int64
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		setting.UpdatedAt = timeFromUnix(updatedAt)
		settings = append(settings, &setting)
	}

	return settings, rows.Err()
}
