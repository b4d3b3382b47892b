// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/gradebook/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
// The pool is pinned to one connection: every connection to ":memory:" is a
// separate database, and production runs single-writer anyway.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

const seedTime = "2024-06-01T08:00:00.000000000Z"

// seedStudent inserts a synced student directly and returns its ID.
func seedStudent(t *testing.T, db *sql.DB, id, lastName string) string {
	t.Helper()
	if id == "" {
		id = "STU-001"
	}
	if lastName == "" {
		lastName = "Dela Cruz"
	}
	_, err := db.Exec(
		"INSERT INTO students (id, first_name, last_name, synced, created_at, updated_at) VALUES (?, 'Juan', ?, 1, ?, ?)",
		id, lastName, seedTime, seedTime,
	)
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}
	return id
}

// seedSection inserts a synced class section directly and returns its ID.
func seedSection(t *testing.T, db *sql.DB, id, name string) string {
	t.Helper()
	if id == "" {
		id = "SEC-001"
	}
	if name == "" {
		name = "Grade 7 - Sampaguita"
	}
	_, err := db.Exec(
		"INSERT INTO class_sections (id, name, synced, created_at, updated_at) VALUES (?, ?, 1, ?, ?)",
		id, name, seedTime, seedTime,
	)
	if err != nil {
		t.Fatalf("failed to seed section: %v", err)
	}
	return id
}

// seedSubject inserts a synced subject directly and returns its ID.
func seedSubject(t *testing.T, db *sql.DB, id, code string) string {
	t.Helper()
	if id == "" {
		id = "SUBJ-001"
	}
	if code == "" {
		code = "MATH7"
	}
	_, err := db.Exec(
		"INSERT INTO subjects (id, code, name, synced, created_at, updated_at) VALUES (?, ?, 'Mathematics', 1, ?, ?)",
		id, code, seedTime, seedTime,
	)
	if err != nil {
		t.Fatalf("failed to seed subject: %v", err)
	}
	return id
}

// seedGradeItem inserts a synced grade item directly and returns its ID.
func seedGradeItem(t *testing.T, db *sql.DB, id, subjectID, category string, quarter int, maxScore float64) string {
	t.Helper()
	if id == "" {
		id = "ITEM-001"
	}
	if subjectID == "" {
		subjectID = "SUBJ-001"
	}
	if category == "" {
		category = "WW"
	}
	if quarter == 0 {
		quarter = 1
	}
	if maxScore == 0 {
		maxScore = 20
	}
	_, err := db.Exec(
		`INSERT INTO grade_items (id, subject_id, category, quarter, title, max_score, synced, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'Quiz', ?, 1, ?, ?)`,
		id, subjectID, category, quarter, maxScore, seedTime, seedTime,
	)
	if err != nil {
		t.Fatalf("failed to seed grade item: %v", err)
	}
	return id
}

// countRows returns the number of rows in a table.
func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// pendingEntries returns the number of unsynced outbox entries.
func pendingEntries(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sync_queue WHERE synced = 0").Scan(&n); err != nil {
		t.Fatalf("failed to count outbox: %v", err)
	}
	return n
}
