package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the list of all migrations in order.
// Version 1 is the base schema; stores created before the outbox gained
// retry bookkeeping and before offline login caching get upgraded in place.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "base_schema",
		Up:      func(ctx context.Context, tx *sql.Tx) error { return nil },
	},
	{
		Version: 2,
		Name:    "add_backoff_columns_to_sync_queue",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_cached_password_to_users",
		Up:      migrationV3,
	},
	{
		Version: 4,
		Name:    "add_details_to_sync_history",
		Up:      migrationV4,
	},
	{
		Version: 5,
		Name:    "allow_cancelled_sync_history",
		Up:      migrationV5,
	},
	{
		Version: 6,
		Name:    "unique_subject_code",
		Up:      migrationV6,
	},
}

// LatestVersion returns the highest known schema version.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations applies every migration newer than the recorded schema version.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if err := ensureVersionTable(ctx, database); err != nil {
		return err
	}

	currentVersion, err := CurrentVersion(ctx, database)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := WithTx(ctx, database, func(tx *sql.Tx) error {
			if err := migration.Up(ctx, tx); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
				migration.Version, FormatTime(time.Now()),
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// CurrentVersion returns the highest applied schema version, or 0.
func CurrentVersion(ctx context.Context, q Querier) (int, error) {
	var version int
	err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

func ensureVersionTable(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// markAllApplied records every migration as applied for a fresh store.
func markAllApplied(ctx context.Context, database *sql.DB) error {
	if err := ensureVersionTable(ctx, database); err != nil {
		return err
	}
	now := FormatTime(time.Now())
	return WithTx(ctx, database, func(tx *sql.Tx) error {
		for _, m := range migrations {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)",
				m.Version, now,
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
		}
		return nil
	})
}

// migrationV2 adds retry bookkeeping to the outbox.
func migrationV2(ctx context.Context, tx *sql.Tx) error {
	for _, col := range []struct{ name, ddl string }{
		{"attempts", "ALTER TABLE sync_queue ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0"},
		{"last_error", "ALTER TABLE sync_queue ADD COLUMN last_error TEXT"},
		{"last_attempt_at", "ALTER TABLE sync_queue ADD COLUMN last_attempt_at TEXT"},
		{"next_attempt_at", "ALTER TABLE sync_queue ADD COLUMN next_attempt_at TEXT"},
	} {
		if err := addColumnIfMissing(ctx, tx, "sync_queue", col.name, col.ddl); err != nil {
			return err
		}
	}
	return nil
}

// migrationV3 adds the encrypted offline-login cache.
func migrationV3(ctx context.Context, tx *sql.Tx) error {
	return addColumnIfMissing(ctx, tx, "users", "cached_password",
		"ALTER TABLE users ADD COLUMN cached_password TEXT")
}

// migrationV4 adds per-category counts to sync history.
func migrationV4(ctx context.Context, tx *sql.Tx) error {
	return addColumnIfMissing(ctx, tx, "sync_history", "details",
		"ALTER TABLE sync_history ADD COLUMN details TEXT")
}

// migrationV5 rebuilds sync_history so its status check admits CANCELLED.
// SQLite cannot alter a CHECK constraint in place.
func migrationV5(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE sync_history_v5 (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sync_type TEXT NOT NULL CHECK(sync_type IN ('SEED', 'PUSH', 'PULL')),
			started_at TEXT NOT NULL,
			completed_at TEXT,
			records_synced INTEGER NOT NULL DEFAULT 0,
			records_failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL CHECK(status IN ('SUCCESS', 'PARTIAL', 'FAILED', 'CANCELLED')),
			error_message TEXT,
			details TEXT
		)`,
		`INSERT INTO sync_history_v5
			(id, sync_type, started_at, completed_at, records_synced, records_failed, status, error_message, details)
		SELECT id, sync_type, started_at, completed_at, records_synced, records_failed, status, error_message, details
		FROM sync_history`,
		`DROP TABLE sync_history`,
		`ALTER TABLE sync_history_v5 RENAME TO sync_history`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to rebuild sync_history: %w", err)
		}
	}
	return nil
}

// migrationV6 enforces subject code uniqueness in stores created before
// the column carried a UNIQUE constraint.
func migrationV6(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "CREATE UNIQUE INDEX IF NOT EXISTS idx_subjects_code ON subjects(code)")
	if err != nil {
		return fmt.Errorf("failed to add unique subject code index: %w", err)
	}
	return nil
}

func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, ddl string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
