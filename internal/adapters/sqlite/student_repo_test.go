package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/gradebook/internal/adapters/sqlite"
	"github.com/example/gradebook/internal/ports/secondary"
)

func TestStudentRepository_CreateAndGet(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)
	ctx := context.Background()

	student := &secondary.StudentRecord{
		ID:         "stu-1",
		LRN:        "136514090001",
		FirstName:  "Maria",
		MiddleName: "Lopez",
		LastName:   "Santos",
		Gender:     "F",
		BirthDate:  "2012-03-14",
	}
	if err := repo.Create(ctx, student); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "stu-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.LRN != student.LRN || got.MiddleName != "Lopez" || got.BirthDate != "2012-03-14" {
		t.Errorf("unexpected student: %+v", got)
	}
	if got.Synced {
		t.Error("expected locally created student to be unsynced")
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped")
	}
}

func TestStudentRepository_GetByID_NotFound(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStudentRepository_UpdateFlipsSynced(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)
	ctx := context.Background()
	seedStudent(t, testDB, "stu-1", "Reyes")

	before, _ := repo.GetByID(ctx, "stu-1")
	if !before.Synced {
		t.Fatal("expected seeded student to be synced")
	}

	before.LastName = "Reyes-Garcia"
	if err := repo.Update(ctx, before); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	after, _ := repo.GetByID(ctx, "stu-1")
	if after.Synced {
		t.Error("expected local edit to flip synced back to false")
	}
	if after.LastName != "Reyes-Garcia" {
		t.Errorf("expected new last name, got %s", after.LastName)
	}
}

func TestStudentRepository_ListBySectionAndSearch(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)
	ctx := context.Background()

	seedSection(t, testDB, "sec-a", "A")
	seedStudent(t, testDB, "s1", "Aquino")
	seedStudent(t, testDB, "s2", "Bautista")
	seedStudent(t, testDB, "s3", "Castro")

	for _, id := range []string{"s1", "s3"} {
		if err := repo.Enroll(ctx, &secondary.EnrollmentRecord{ID: "e-" + id, StudentID: id, SectionID: "sec-a"}); err != nil {
			t.Fatalf("Enroll failed: %v", err)
		}
	}

	inSection, err := repo.List(ctx, secondary.StudentFilters{SectionID: "sec-a"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(inSection) != 2 || inSection[0].LastName != "Aquino" || inSection[1].LastName != "Castro" {
		t.Errorf("unexpected section roster: %d students", len(inSection))
	}

	found, err := repo.List(ctx, secondary.StudentFilters{Search: "baut"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != "s2" {
		t.Errorf("expected search to find s2, got %d results", len(found))
	}
}

func TestStudentRepository_EnrollTwiceFails(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)
	ctx := context.Background()
	seedStudent(t, testDB, "s1", "")
	seedSection(t, testDB, "sec-a", "")

	if err := repo.Enroll(ctx, &secondary.EnrollmentRecord{ID: "e1", StudentID: "s1", SectionID: "sec-a"}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := repo.Enroll(ctx, &secondary.EnrollmentRecord{ID: "e2", StudentID: "s1", SectionID: "sec-a"}); err == nil {
		t.Error("expected second enrollment in the same section to fail")
	}
	if got := pendingEntries(t, testDB); got != 1 {
		t.Errorf("expected 1 outbox entry, got %d", got)
	}
}

func TestStudentRepository_Unenroll(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)
	ctx := context.Background()
	seedStudent(t, testDB, "s1", "")
	seedSection(t, testDB, "sec-a", "")

	if err := repo.Enroll(ctx, &secondary.EnrollmentRecord{ID: "e1", StudentID: "s1", SectionID: "sec-a"}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := repo.Unenroll(ctx, "s1", "sec-a"); err != nil {
		t.Fatalf("Unenroll failed: %v", err)
	}

	enrollments, _ := repo.ListEnrollments(ctx, "sec-a")
	if len(enrollments) != 0 {
		t.Errorf("expected no enrollments, got %d", len(enrollments))
	}
	if err := repo.Unenroll(ctx, "s1", "sec-a"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second unenroll, got %v", err)
	}

	entries, _ := sqlite.NewOutboxRepository(testDB).Drain(ctx)
	if len(entries) != 2 || entries[1].Operation != "DELETE" || entries[1].RecordID != "e1" {
		t.Errorf("expected INSERT then DELETE for e1, got %d entries", len(entries))
	}
}

func TestStudentRepository_DeleteCascades(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewStudentRepository(testDB)
	ctx := context.Background()

	seedStudent(t, testDB, "s1", "")
	seedSection(t, testDB, "sec-a", "")
	seedSubject(t, testDB, "sub-1", "")
	seedGradeItem(t, testDB, "item-1", "sub-1", "WW", 1, 20)

	if err := repo.Enroll(ctx, &secondary.EnrollmentRecord{ID: "e1", StudentID: "s1", SectionID: "sec-a"}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if _, err := sqlite.NewScoreRepository(testDB).Save(ctx, &secondary.ScoreRecord{ID: "sc1", StudentID: "s1", GradeItemID: "item-1", Score: 10}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := sqlite.NewQuarterlyGradeRepository(testDB).Upsert(ctx, &secondary.QuarterlyGradeRecord{
		ID: "qg1", StudentID: "s1", SubjectID: "sub-1", Quarter: 1, InitialGrade: 50, QuarterlyGrade: 72,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	before := pendingEntries(t, testDB)

	if err := repo.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, table := range []string{"students", "student_sections", "student_scores", "quarterly_grades"} {
		if n := countRows(t, testDB, table); n != 0 {
			t.Errorf("expected %s to be empty, got %d rows", table, n)
		}
	}
	if got := pendingEntries(t, testDB); got != before+1 {
		t.Errorf("expected exactly one DELETE entry, got %d new", got-before)
	}
}
