package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for a fresh local store.
// It reflects the current state after all migrations and is safe to run on
// every process start: every statement is IF NOT EXISTS.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the local schema. Repository tests
// load it through GetSchemaSQL() instead of hardcoding CREATE TABLE
// statements, so a column referenced by repository code but missing here
// fails the tests with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Bump the version list in migrations.go
const SchemaSQL = `
-- Credential domain
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	salt TEXT NOT NULL,
	first_name TEXT,
	last_name TEXT,
	role TEXT NOT NULL CHECK(role IN ('teacher', 'admin')) DEFAULT 'teacher',
	is_active INTEGER NOT NULL DEFAULT 1,
	failed_login_attempts INTEGER NOT NULL DEFAULT 0,
	last_login TEXT,
	last_failed_login TEXT,
	cached_password TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	last_activity TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT,
	action TEXT NOT NULL,
	details TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log(user_id);

-- Class sections (homeroom groups)
CREATE TABLE IF NOT EXISTS class_sections (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	grade_level TEXT,
	school_year TEXT,
	adviser TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	lrn TEXT,
	first_name TEXT NOT NULL,
	middle_name TEXT,
	last_name TEXT NOT NULL,
	gender TEXT,
	birth_date TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_students_name ON students(last_name, first_name);

-- Enrollment edge between students and class sections
CREATE TABLE IF NOT EXISTS student_sections (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	section_id TEXT NOT NULL,
	school_year TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(student_id, section_id)
);

CREATE INDEX IF NOT EXISTS idx_student_sections_section ON student_sections(section_id);

CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

-- Which subject is taught to which section
CREATE TABLE IF NOT EXISTS subject_assignments (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	section_id TEXT NOT NULL,
	teacher_id TEXT,
	school_year TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subject_assignments_section ON subject_assignments(section_id);

-- Assessment definitions
CREATE TABLE IF NOT EXISTS grade_items (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	section_id TEXT,
	category TEXT NOT NULL CHECK(category IN ('WW', 'PT', 'QA')),
	quarter INTEGER NOT NULL CHECK(quarter BETWEEN 1 AND 4),
	title TEXT NOT NULL,
	max_score REAL NOT NULL CHECK(max_score > 0),
	item_date TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grade_items_subject_quarter ON grade_items(subject_id, quarter);

CREATE TABLE IF NOT EXISTS student_scores (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	grade_item_id TEXT NOT NULL,
	score REAL NOT NULL,
	remarks TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(student_id, grade_item_id)
);

CREATE INDEX IF NOT EXISTS idx_student_scores_item ON student_scores(grade_item_id);

-- Materialized grade per student/subject/quarter
CREATE TABLE IF NOT EXISTS quarterly_grades (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	quarter INTEGER NOT NULL CHECK(quarter BETWEEN 1 AND 4),
	ww_percentage REAL NOT NULL DEFAULT 0,
	ww_weighted REAL NOT NULL DEFAULT 0,
	pt_percentage REAL NOT NULL DEFAULT 0,
	pt_weighted REAL NOT NULL DEFAULT 0,
	qa_percentage REAL NOT NULL DEFAULT 0,
	qa_weighted REAL NOT NULL DEFAULT 0,
	initial_grade REAL NOT NULL,
	quarterly_grade INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(student_id, subject_id, quarter)
);

-- Mutation outbox
CREATE TABLE IF NOT EXISTS sync_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	operation TEXT NOT NULL CHECK(operation IN ('INSERT', 'UPDATE', 'DELETE')),
	record_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	last_attempt_at TEXT,
	next_attempt_at TEXT,
	created_at TEXT NOT NULL,
	synced_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_queue_pending ON sync_queue(synced, created_at);
CREATE INDEX IF NOT EXISTS idx_sync_queue_record ON sync_queue(table_name, record_id);

CREATE TABLE IF NOT EXISTS sync_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_type TEXT NOT NULL CHECK(sync_type IN ('SEED', 'PUSH', 'PULL')),
	started_at TEXT NOT NULL,
	completed_at TEXT,
	records_synced INTEGER NOT NULL DEFAULT 0,
	records_failed INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK(status IN ('SUCCESS', 'PARTIAL', 'FAILED', 'CANCELLED')),
	error_message TEXT,
	details TEXT
);

CREATE TABLE IF NOT EXISTS app_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// InitSchema creates the local schema and applies pending migrations.
// Safe to call on every process start.
func InitSchema(ctx context.Context, database *sql.DB) error {
	var tableCount int
	err := database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if _, err := database.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if tableCount == 0 {
		// Fresh store: the schema above is already current.
		return markAllApplied(ctx, database)
	}

	return RunMigrations(ctx, database)
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
