package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// SettingsRepository implements secondary.SettingsRepository with SQLite.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SQLite settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

var _ secondary.SettingsRepository = (*SettingsRepository)(nil)

// Get reads a value.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := db.GetSetting(ctx, r.db, key)
	if errors.Is(err, db.ErrSettingNotFound) {
		return "", fmt.Errorf("setting %s: %w", key, secondary.ErrNotFound)
	}
	return value, err
}

// Set writes or replaces a value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	return db.SetSetting(ctx, r.db, key, value)
}

// Delete removes a value.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	return db.DeleteSetting(ctx, r.db, key)
}
