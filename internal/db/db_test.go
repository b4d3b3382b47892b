package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesSchema(t *testing.T) {
	database := openMemory(t)

	for _, table := range []string{
		"users", "sessions", "audit_log", "class_sections", "students", "student_sections",
		"subjects", "subject_assignments", "grade_items", "student_scores", "quarterly_grades",
		"sync_queue", "sync_history", "app_settings", "schema_version",
	} {
		var count int
		err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := InitSchema(ctx, database); err != nil {
			t.Fatalf("InitSchema run %d failed: %v", i, err)
		}
	}

	version, err := CurrentVersion(ctx, database)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("expected schema version %d, got %d", LatestVersion(), version)
	}
}

func TestOpen_FileBackedUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gradebook.db")
	database, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	var mode string
	if err := database.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected journal_mode wal, got %s", mode)
	}

	var sync int
	if err := database.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if sync != 1 {
		t.Errorf("expected synchronous NORMAL (1), got %d", sync)
	}
}

func TestRunMigrations_UpgradesOldOutbox(t *testing.T) {
	ctx := context.Background()
	database, err := sql.Open("sqlite3", MemoryPath)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	// A version-1 store without retry bookkeeping.
	_, err = database.Exec(`
		CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_version VALUES (1, '2024-01-01T00:00:00.000000000Z');
		CREATE TABLE sync_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			operation TEXT NOT NULL,
			record_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			synced_at TEXT
		);
		CREATE TABLE sync_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sync_type TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			records_synced INTEGER NOT NULL DEFAULT 0,
			records_failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT
		);
	`)
	if err != nil {
		t.Fatalf("failed to build old schema: %v", err)
	}

	if err := InitSchema(ctx, database); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	_, err = database.Exec(
		"INSERT INTO sync_queue (table_name, operation, record_id, payload, created_at, attempts, next_attempt_at) VALUES ('students', 'INSERT', 's1', '{}', ?, 1, ?)",
		FormatTime(time.Now()), FormatTime(time.Now()),
	)
	if err != nil {
		t.Errorf("expected upgraded sync_queue to accept backoff columns: %v", err)
	}
}

func TestRunMigrations_RebuildsSyncHistoryAndSubjects(t *testing.T) {
	ctx := context.Background()
	database, err := sql.Open("sqlite3", MemoryPath)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	// A version-4 store whose history check predates cancelled passes.
	_, err = database.Exec(`
		CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_version VALUES (1, '2024-01-01T00:00:00.000000000Z');
		INSERT INTO schema_version VALUES (2, '2024-01-01T00:00:00.000000000Z');
		INSERT INTO schema_version VALUES (3, '2024-01-01T00:00:00.000000000Z');
		INSERT INTO schema_version VALUES (4, '2024-01-01T00:00:00.000000000Z');
		CREATE TABLE sync_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sync_type TEXT NOT NULL CHECK(sync_type IN ('SEED', 'PUSH', 'PULL')),
			started_at TEXT NOT NULL,
			completed_at TEXT,
			records_synced INTEGER NOT NULL DEFAULT 0,
			records_failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL CHECK(status IN ('SUCCESS', 'PARTIAL', 'FAILED')),
			error_message TEXT,
			details TEXT
		);
		INSERT INTO sync_history (sync_type, started_at, status) VALUES ('PUSH', '2024-01-01T00:00:00Z', 'SUCCESS');
		CREATE TABLE subjects (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			synced INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("failed to build old schema: %v", err)
	}

	if err := InitSchema(ctx, database); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	version, err := CurrentVersion(ctx, database)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("expected schema version %d, got %d", LatestVersion(), version)
	}

	var kept int
	if err := database.QueryRow("SELECT COUNT(*) FROM sync_history WHERE status = 'SUCCESS'").Scan(&kept); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if kept != 1 {
		t.Errorf("expected existing history to survive the rebuild, got %d rows", kept)
	}

	if _, err := database.Exec(
		"INSERT INTO sync_history (sync_type, started_at, status) VALUES ('PUSH', '2024-01-02T00:00:00Z', 'CANCELLED')",
	); err != nil {
		t.Errorf("expected CANCELLED history rows to be accepted: %v", err)
	}

	now := FormatTime(time.Now())
	if _, err := database.Exec("INSERT INTO subjects (id, code, name, created_at, updated_at) VALUES ('s1', 'MATH7', 'Math', ?, ?)", now, now); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := database.Exec("INSERT INTO subjects (id, code, name, created_at, updated_at) VALUES ('s2', 'MATH7', 'Math again', ?, ?)", now, now); err == nil {
		t.Error("expected duplicate subject code to be rejected")
	}
}

func TestInitSchema_FreshStoreAcceptsCancelledHistory(t *testing.T) {
	database := openMemory(t)
	if _, err := database.Exec(
		"INSERT INTO sync_history (sync_type, started_at, status) VALUES ('PULL', '2024-01-02T00:00:00Z', 'CANCELLED')",
	); err != nil {
		t.Errorf("expected CANCELLED history rows to be accepted: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, database, func(tx *sql.Tx) error {
		if err := SetSetting(ctx, tx, "k", "v"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := GetSetting(ctx, database, "k"); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("expected setting to be rolled back, got %v", err)
	}
}

func TestEnsureEncryptionKey_GeneratedOnce(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	first, created, err := EnsureEncryptionKey(ctx, database)
	if err != nil {
		t.Fatalf("EnsureEncryptionKey failed: %v", err)
	}
	if !created {
		t.Error("expected first call to create a key")
	}
	if len(first) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(first))
	}

	second, created, err := EnsureEncryptionKey(ctx, database)
	if err != nil {
		t.Fatalf("EnsureEncryptionKey failed: %v", err)
	}
	if created {
		t.Error("expected second call to reuse the key")
	}
	if string(first) != string(second) {
		t.Error("expected the same key on every call")
	}
}

func TestEnsureEncryptionKey_ReplacesCorruptValue(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	if err := SetSetting(ctx, database, EncryptionKeySetting, "not-hex"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	key, created, err := EnsureEncryptionKey(ctx, database)
	if err != nil {
		t.Fatalf("EnsureEncryptionKey failed: %v", err)
	}
	if !created || len(key) != 32 {
		t.Errorf("expected a fresh 32-byte key, created=%v len=%d", created, len(key))
	}
}

func TestFormatTime_FixedWidth(t *testing.T) {
	a := FormatTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := FormatTime(time.Date(2024, 1, 1, 0, 0, 0, 100, time.UTC))
	if len(a) != len(b) {
		t.Errorf("expected fixed width, got %q and %q", a, b)
	}
	if !(a < b) {
		t.Errorf("expected lexical order to follow time order: %q vs %q", a, b)
	}

	parsed, err := ParseTime(b)
	if err != nil {
		t.Fatalf("ParseTime failed: %v", err)
	}
	if parsed.Nanosecond() != 100 {
		t.Errorf("expected nanoseconds preserved, got %d", parsed.Nanosecond())
	}
}
