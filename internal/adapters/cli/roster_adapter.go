// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/gradebook/internal/ports/primary"
)

const rule = "────────────────────────────────────────────────────────────────"

func okMark() string   { return color.New(color.FgGreen).Sprint("✓") }
func warnMark() string { return color.New(color.FgYellow).Sprint("!") }
func failMark() string { return color.New(color.FgRed).Sprint("✗") }

// syncedMark renders a record's synced flag.
func syncedMark(synced bool) string {
	if synced {
		return color.New(color.FgGreen).Sprint("synced")
	}
	return color.New(color.FgYellow).Sprint("local")
}

// RosterAdapter translates CLI operations to section, student and subject
// service calls.
type RosterAdapter struct {
	sections primary.SectionService
	students primary.StudentService
	subjects primary.SubjectService
	out      io.Writer
}

// NewRosterAdapter creates a new RosterAdapter.
func NewRosterAdapter(sections primary.SectionService, students primary.StudentService, subjects primary.SubjectService, out io.Writer) *RosterAdapter {
	return &RosterAdapter{sections: sections, students: students, subjects: subjects, out: out}
}

// ============================================================================
// Sections
// ============================================================================

// CreateSection creates a section.
func (a *RosterAdapter) CreateSection(ctx context.Context, req primary.SectionRequest) error {
	section, err := a.sections.CreateSection(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created section %s: %s\n", okMark(), section.ID, section.Name)
	return nil
}

// UpdateSection updates a section.
func (a *RosterAdapter) UpdateSection(ctx context.Context, sectionID string, req primary.SectionRequest) error {
	section, err := a.sections.UpdateSection(ctx, sectionID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Section %s updated\n", okMark(), section.ID)
	return nil
}

// DeleteSection deletes a section with its dependents.
func (a *RosterAdapter) DeleteSection(ctx context.Context, sectionID string) error {
	if err := a.sections.DeleteSection(ctx, sectionID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Deleted section %s\n", okMark(), sectionID)
	return nil
}

// ListSections lists all sections.
func (a *RosterAdapter) ListSections(ctx context.Context) error {
	sections, err := a.sections.ListSections(ctx)
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		fmt.Fprintln(a.out, "No sections found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-20s %-6s %-10s %s\n", "ID", "NAME", "GRADE", "YEAR", "STATE")
	fmt.Fprintln(a.out, rule)
	for _, s := range sections {
		fmt.Fprintf(a.out, "%-38s %-20s %-6s %-10s %s\n", s.ID, s.Name, s.GradeLevel, s.SchoolYear, syncedMark(s.Synced))
	}
	fmt.Fprintln(a.out)
	return nil
}

// ShowSection displays a section with its enrolled students.
func (a *RosterAdapter) ShowSection(ctx context.Context, sectionID string) error {
	section, err := a.sections.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nSection: %s\n", section.ID)
	fmt.Fprintf(a.out, "Name:    %s\n", section.Name)
	if section.GradeLevel != "" {
		fmt.Fprintf(a.out, "Grade:   %s\n", section.GradeLevel)
	}
	if section.SchoolYear != "" {
		fmt.Fprintf(a.out, "Year:    %s\n", section.SchoolYear)
	}
	if section.Adviser != "" {
		fmt.Fprintf(a.out, "Adviser: %s\n", section.Adviser)
	}
	fmt.Fprintf(a.out, "State:   %s\n", syncedMark(section.Synced))

	students, err := a.students.ListStudents(ctx, primary.StudentFilters{SectionID: sectionID})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Students (%d):\n", len(students))
	for _, s := range students {
		fmt.Fprintf(a.out, "  %s  %s\n", s.ID, fullName(s))
	}
	fmt.Fprintln(a.out)
	return nil
}

// ============================================================================
// Students
// ============================================================================

// CreateStudent creates a student.
func (a *RosterAdapter) CreateStudent(ctx context.Context, req primary.StudentRequest) error {
	student, err := a.students.CreateStudent(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created student %s: %s\n", okMark(), student.ID, fullName(student))
	return nil
}

// UpdateStudent updates a student.
func (a *RosterAdapter) UpdateStudent(ctx context.Context, studentID string, req primary.StudentRequest) error {
	student, err := a.students.UpdateStudent(ctx, studentID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Student %s updated\n", okMark(), student.ID)
	return nil
}

// DeleteStudent deletes a student with enrollments, scores and grades.
func (a *RosterAdapter) DeleteStudent(ctx context.Context, studentID string) error {
	if err := a.students.DeleteStudent(ctx, studentID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Deleted student %s\n", okMark(), studentID)
	return nil
}

// ListStudents lists students, optionally by section or name search.
func (a *RosterAdapter) ListStudents(ctx context.Context, filters primary.StudentFilters) error {
	students, err := a.students.ListStudents(ctx, filters)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		fmt.Fprintln(a.out, "No students found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-14s %-30s %s\n", "ID", "LRN", "NAME", "STATE")
	fmt.Fprintln(a.out, rule)
	for _, s := range students {
		fmt.Fprintf(a.out, "%-38s %-14s %-30s %s\n", s.ID, s.LRN, fullName(s), syncedMark(s.Synced))
	}
	fmt.Fprintln(a.out)
	return nil
}

// Enroll enrolls a student in a section.
func (a *RosterAdapter) Enroll(ctx context.Context, req primary.EnrollRequest) error {
	enrollment, err := a.students.EnrollStudent(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Enrolled student %s in section %s\n", okMark(), enrollment.StudentID, enrollment.SectionID)
	return nil
}

// Unenroll removes a student from a section.
func (a *RosterAdapter) Unenroll(ctx context.Context, studentID, sectionID string) error {
	if err := a.students.UnenrollStudent(ctx, studentID, sectionID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Removed student %s from section %s\n", okMark(), studentID, sectionID)
	return nil
}

func fullName(s *primary.Student) string {
	parts := []string{s.LastName + ","}
	parts = append(parts, s.FirstName)
	if s.MiddleName != "" {
		parts = append(parts, s.MiddleName)
	}
	return strings.Join(parts, " ")
}

// ============================================================================
// Subjects
// ============================================================================

// CreateSubject creates a subject.
func (a *RosterAdapter) CreateSubject(ctx context.Context, req primary.SubjectRequest) error {
	subject, err := a.subjects.CreateSubject(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created subject %s (%s): %s\n", okMark(), subject.ID, subject.Code, subject.Name)
	return nil
}

// DeleteSubject deletes a subject with its assignments, items, scores and grades.
func (a *RosterAdapter) DeleteSubject(ctx context.Context, subjectID string) error {
	if err := a.subjects.DeleteSubject(ctx, subjectID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Deleted subject %s\n", okMark(), subjectID)
	return nil
}

// ListSubjects lists all subjects.
func (a *RosterAdapter) ListSubjects(ctx context.Context) error {
	subjects, err := a.subjects.ListSubjects(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintln(a.out, "No subjects found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-10s %-30s %s\n", "ID", "CODE", "NAME", "STATE")
	fmt.Fprintln(a.out, rule)
	for _, s := range subjects {
		fmt.Fprintf(a.out, "%-38s %-10s %-30s %s\n", s.ID, s.Code, s.Name, syncedMark(s.Synced))
	}
	fmt.Fprintln(a.out)
	return nil
}

// Assign assigns a subject to a section.
func (a *RosterAdapter) Assign(ctx context.Context, req primary.AssignRequest) error {
	assignment, err := a.subjects.AssignSubject(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Assigned subject %s to section %s (%s)\n", okMark(), assignment.SubjectID, assignment.SectionID, assignment.ID)
	return nil
}

// Unassign removes a subject assignment.
func (a *RosterAdapter) Unassign(ctx context.Context, assignmentID string) error {
	if err := a.subjects.UnassignSubject(ctx, assignmentID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Removed assignment %s\n", okMark(), assignmentID)
	return nil
}
