// Package roster contains the pure business logic for sections, students
// and subjects. Guards are pure functions that evaluate preconditions
// without side effects.
package roster

import (
	"fmt"
	"strings"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	// Field names the request field at fault, when there is one.
	Field string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// EnrollContext provides context for enrollment guards.
type EnrollContext struct {
	StudentID       string
	StudentExists   bool
	SectionID       string
	SectionExists   bool
	AlreadyEnrolled bool
}

// CanEnroll evaluates whether a student can be enrolled in a section.
// Rules:
// - Student must exist
// - Section must exist
// - Student must not already be enrolled in the section
func CanEnroll(ctx EnrollContext) GuardResult {
	if !ctx.StudentExists {
		return GuardResult{Field: "student_id", Reason: fmt.Sprintf("student %s not found", ctx.StudentID)}
	}
	if !ctx.SectionExists {
		return GuardResult{Field: "section_id", Reason: fmt.Sprintf("section %s not found", ctx.SectionID)}
	}
	if ctx.AlreadyEnrolled {
		return GuardResult{
			Field:  "student_id",
			Reason: fmt.Sprintf("student %s is already enrolled in section %s", ctx.StudentID, ctx.SectionID),
		}
	}
	return GuardResult{Allowed: true}
}

// AssignContext provides context for subject assignment guards.
type AssignContext struct {
	SubjectID       string
	SubjectExists   bool
	SectionID       string
	SectionExists   bool
	AlreadyAssigned bool
}

// CanAssign evaluates whether a subject can be assigned to a section.
// Rules:
// - Subject must exist
// - Section must exist
// - The pair must not already be assigned
func CanAssign(ctx AssignContext) GuardResult {
	if !ctx.SubjectExists {
		return GuardResult{Field: "subject_id", Reason: fmt.Sprintf("subject %s not found", ctx.SubjectID)}
	}
	if !ctx.SectionExists {
		return GuardResult{Field: "section_id", Reason: fmt.Sprintf("section %s not found", ctx.SectionID)}
	}
	if ctx.AlreadyAssigned {
		return GuardResult{
			Field:  "subject_id",
			Reason: fmt.Sprintf("subject %s is already assigned to section %s", ctx.SubjectID, ctx.SectionID),
		}
	}
	return GuardResult{Allowed: true}
}

// SubjectCodeContext provides context for subject code guards.
type SubjectCodeContext struct {
	Code string
	// TakenBy is the ID of another subject already using Code, if any.
	TakenBy string
}

// CanUseSubjectCode evaluates whether a subject may carry a code.
// Rules:
// - Code must not be empty
// - Code must not be used by another subject (case-insensitive)
func CanUseSubjectCode(ctx SubjectCodeContext) GuardResult {
	if strings.TrimSpace(ctx.Code) == "" {
		return GuardResult{Field: "code", Reason: "subject code cannot be empty"}
	}
	if ctx.TakenBy != "" {
		return GuardResult{Field: "code", Reason: fmt.Sprintf("subject code %q is already used by %s", ctx.Code, ctx.TakenBy)}
	}
	return GuardResult{Allowed: true}
}

// NormalizeCode canonicalizes a subject code for storage and comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
