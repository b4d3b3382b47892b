package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/gradebook/internal/adapters/sqlite"
	"github.com/example/gradebook/internal/ports/secondary"
)

func TestSectionRepository_CRUD(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewSectionRepository(testDB)
	ctx := context.Background()

	section := &secondary.SectionRecord{ID: "sec-1", Name: "Mabini", GradeLevel: "7", SchoolYear: "2024-2025"}
	if err := repo.Create(ctx, section); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	section.Adviser = "Ms. Cruz"
	if err := repo.Update(ctx, section); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "sec-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Adviser != "Ms. Cruz" || got.SchoolYear != "2024-2025" {
		t.Errorf("unexpected section: %+v", got)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 section, got %d", len(list))
	}

	if err := repo.Delete(ctx, "sec-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, "sec-1"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "sec-1"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	if got := pendingEntries(t, testDB); got != 3 {
		t.Errorf("expected INSERT, UPDATE and DELETE entries, got %d", got)
	}
}

func TestSectionRepository_DeleteCascades(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	seedSection(t, testDB, "sec-1", "")
	seedStudent(t, testDB, "s1", "")
	seedSubject(t, testDB, "sub-1", "")

	students := sqlite.NewStudentRepository(testDB)
	subjects := sqlite.NewSubjectRepository(testDB)
	items := sqlite.NewGradeItemRepository(testDB)

	if err := students.Enroll(ctx, &secondary.EnrollmentRecord{ID: "e1", StudentID: "s1", SectionID: "sec-1"}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := subjects.Assign(ctx, &secondary.AssignmentRecord{ID: "as1", SubjectID: "sub-1", SectionID: "sec-1"}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := items.Create(ctx, &secondary.GradeItemRecord{
		ID: "i1", SubjectID: "sub-1", SectionID: "sec-1", Category: "WW", Quarter: 1, Title: "Q", MaxScore: 10,
	}); err != nil {
		t.Fatalf("Create item failed: %v", err)
	}

	if err := sqlite.NewSectionRepository(testDB).Delete(ctx, "sec-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, table := range []string{"class_sections", "student_sections", "subject_assignments", "grade_items"} {
		if n := countRows(t, testDB, table); n != 0 {
			t.Errorf("expected %s to be empty, got %d", table, n)
		}
	}
	if n := countRows(t, testDB, "students"); n != 1 {
		t.Errorf("expected students to survive section delete, got %d", n)
	}
}

func TestSubjectRepository_AssignmentsAndCascade(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewSubjectRepository(testDB)
	ctx := context.Background()

	if err := repo.Create(ctx, &secondary.SubjectRecord{ID: "sub-1", Code: "FIL7", Name: "Filipino"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, a := range []*secondary.AssignmentRecord{
		{ID: "a1", SubjectID: "sub-1", SectionID: "sec-1"},
		{ID: "a2", SubjectID: "sub-1", SectionID: "sec-2"},
	} {
		if err := repo.Assign(ctx, a); err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
	}

	sec1, err := repo.ListAssignments(ctx, "sec-1")
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(sec1) != 1 || sec1[0].ID != "a1" {
		t.Errorf("expected a1 only, got %d", len(sec1))
	}
	all, _ := repo.ListAssignments(ctx, "")
	if len(all) != 2 {
		t.Errorf("expected 2 assignments, got %d", len(all))
	}

	if err := repo.Unassign(ctx, "a2"); err != nil {
		t.Fatalf("Unassign failed: %v", err)
	}

	seedGradeItem(t, testDB, "i1", "sub-1", "QA", 1, 40)
	if err := repo.Delete(ctx, "sub-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	for _, table := range []string{"subjects", "subject_assignments", "grade_items"} {
		if n := countRows(t, testDB, table); n != 0 {
			t.Errorf("expected %s to be empty, got %d", table, n)
		}
	}
}
