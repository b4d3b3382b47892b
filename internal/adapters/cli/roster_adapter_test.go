package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/gradebook/internal/ports/primary"
)

func newTestRosterAdapter() (*RosterAdapter, *mockSectionService, *mockStudentService, *mockSubjectService, *bytes.Buffer) {
	sections := &mockSectionService{}
	students := &mockStudentService{}
	subjects := &mockSubjectService{}
	out := &bytes.Buffer{}
	return NewRosterAdapter(sections, students, subjects, out), sections, students, subjects, out
}

func TestRosterAdapter_CreateSection(t *testing.T) {
	adapter, sections, _, _, out := newTestRosterAdapter()

	err := adapter.CreateSection(context.Background(), primary.SectionRequest{Name: "Rizal", GradeLevel: "7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sections.lastReq.Name != "Rizal" {
		t.Errorf("expected request name 'Rizal', got %q", sections.lastReq.Name)
	}
	if !strings.Contains(out.String(), "✓ Created section sec-1: Rizal") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestRosterAdapter_CreateSection_Error(t *testing.T) {
	adapter, sections, _, _, out := newTestRosterAdapter()
	sections.createErr = errors.New("name: this field cannot be blank")

	err := adapter.CreateSection(context.Background(), primary.SectionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output on error, got %q", out.String())
	}
}

func TestRosterAdapter_ListSections(t *testing.T) {
	tests := []struct {
		name     string
		sections []*primary.Section
		contains []string
	}{
		{
			name:     "empty",
			contains: []string{"No sections found"},
		},
		{
			name: "with rows",
			sections: []*primary.Section{
				{ID: "sec-1", Name: "Rizal", GradeLevel: "7", SchoolYear: "2024-2025", Synced: true},
				{ID: "sec-2", Name: "Bonifacio"},
			},
			contains: []string{"NAME", "Rizal", "2024-2025", "synced", "Bonifacio", "local"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, sections, _, _, out := newTestRosterAdapter()
			sections.sections = tt.sections

			if err := adapter.ListSections(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestRosterAdapter_ShowSection(t *testing.T) {
	adapter, sections, students, _, out := newTestRosterAdapter()
	sections.sections = []*primary.Section{{ID: "sec-1", Name: "Rizal", Adviser: "Ms. Reyes"}}
	students.students = []*primary.Student{{ID: "stu-1", FirstName: "Ana", MiddleName: "B", LastName: "Cruz"}}

	if err := adapter.ShowSection(context.Background(), "sec-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if students.lastFilters.SectionID != "sec-1" {
		t.Errorf("expected students filtered by section, got %+v", students.lastFilters)
	}
	for _, want := range []string{"Adviser: Ms. Reyes", "Students (1):", "Cruz, Ana B"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestRosterAdapter_StudentsAndSubjects(t *testing.T) {
	adapter, _, students, subjects, out := newTestRosterAdapter()
	ctx := context.Background()

	if err := adapter.CreateStudent(ctx, primary.StudentRequest{FirstName: "Ana", LastName: "Cruz"}); err != nil {
		t.Fatalf("CreateStudent failed: %v", err)
	}
	if err := adapter.Enroll(ctx, primary.EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if students.lastEnroll.SectionID != "sec-1" {
		t.Errorf("expected enroll in sec-1, got %+v", students.lastEnroll)
	}

	subjects.subjects = []*primary.Subject{{ID: "sub-1", Code: "MATH7", Name: "Mathematics"}}
	if err := adapter.ListSubjects(ctx); err != nil {
		t.Fatalf("ListSubjects failed: %v", err)
	}
	if err := adapter.Assign(ctx, primary.AssignRequest{SubjectID: "sub-1", SectionID: "sec-1"}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	for _, want := range []string{
		"✓ Created student stu-1: Cruz, Ana",
		"✓ Enrolled student stu-1 in section sec-1",
		"MATH7",
		"✓ Assigned subject sub-1 to section sec-1 (asg-1)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}
