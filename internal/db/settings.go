package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// EncryptionKeySetting is the app_settings key holding the hex-encoded
// process encryption key.
const EncryptionKeySetting = "encryption_key"

// encryptionKeySize is the AES-256 key length in bytes.
const encryptionKeySize = 32

// ErrSettingNotFound is returned when a setting has never been written.
var ErrSettingNotFound = errors.New("setting not found")

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetSetting reads a value from app_settings.
func GetSetting(ctx context.Context, q Querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting writes (or replaces) a value in app_settings.
func SetSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a value from app_settings. Missing keys are ignored.
func DeleteSetting(ctx context.Context, q Querier, key string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM app_settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// EnsureEncryptionKey returns the process encryption key, generating and
// persisting it on first use. created reports whether a new key was minted.
//
// A stored value that does not decode to a full key is replaced. Anything
// encrypted under the previous key becomes unreadable; there is no recovery.
func EnsureEncryptionKey(ctx context.Context, database *sql.DB) (key []byte, created bool, err error) {
	err = WithTx(ctx, database, func(tx *sql.Tx) error {
		stored, err := GetSetting(ctx, tx, EncryptionKeySetting)
		if err != nil && !errors.Is(err, ErrSettingNotFound) {
			return err
		}
		if err == nil {
			decoded, decErr := hex.DecodeString(stored)
			if decErr == nil && len(decoded) == encryptionKeySize {
				key = decoded
				return nil
			}
		}

		key = make([]byte, encryptionKeySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate encryption key: %w", err)
		}
		created = true
		return SetSetting(ctx, tx, EncryptionKeySetting, hex.EncodeToString(key))
	})
	if err != nil {
		return nil, false, err
	}
	return key, created, nil
}
