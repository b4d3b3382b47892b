package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/gradebook/internal/core/roster"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// guardError turns a rejected guard into a validation error.
func guardError(r roster.GuardResult) error {
	if r.Allowed {
		return nil
	}
	return validation.Invalid(r.Field, r.Reason)
}

// ============================================================================
// Sections
// ============================================================================

// SectionServiceImpl implements the SectionService interface.
type SectionServiceImpl struct {
	sectionRepo secondary.SectionRepository
	validator   *validation.Validator
}

// NewSectionService creates a new SectionService with injected dependencies.
func NewSectionService(sectionRepo secondary.SectionRepository, validator *validation.Validator) *SectionServiceImpl {
	return &SectionServiceImpl{
		sectionRepo: sectionRepo,
		validator:   validator,
	}
}

// CreateSection creates a new section.
func (s *SectionServiceImpl) CreateSection(ctx context.Context, req primary.SectionRequest) (*primary.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record := &secondary.SectionRecord{ID: newID()}
	applySectionRequest(record, req)
	if err := s.sectionRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}
	return s.GetSection(ctx, record.ID)
}

// UpdateSection replaces a section's editable fields.
func (s *SectionServiceImpl) UpdateSection(ctx context.Context, sectionID string, req primary.SectionRequest) (*primary.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record, err := s.sectionRepo.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	applySectionRequest(record, req)
	if err := s.sectionRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}
	return s.GetSection(ctx, sectionID)
}

// DeleteSection deletes a section and its dependents.
func (s *SectionServiceImpl) DeleteSection(ctx context.Context, sectionID string) error {
	return s.sectionRepo.Delete(ctx, sectionID)
}

// GetSection retrieves a section by ID.
func (s *SectionServiceImpl) GetSection(ctx context.Context, sectionID string) (*primary.Section, error) {
	record, err := s.sectionRepo.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return recordToSection(record), nil
}

// ListSections retrieves all sections.
func (s *SectionServiceImpl) ListSections(ctx context.Context) ([]*primary.Section, error) {
	records, err := s.sectionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	sections := make([]*primary.Section, len(records))
	for i, r := range records {
		sections[i] = recordToSection(r)
	}
	return sections, nil
}

func applySectionRequest(r *secondary.SectionRecord, req primary.SectionRequest) {
	r.Name = strings.TrimSpace(req.Name)
	r.GradeLevel = strings.TrimSpace(req.GradeLevel)
	r.SchoolYear = req.SchoolYear
	r.Adviser = strings.TrimSpace(req.Adviser)
}

func recordToSection(r *secondary.SectionRecord) *primary.Section {
	return &primary.Section{
		ID:         r.ID,
		Name:       r.Name,
		GradeLevel: r.GradeLevel,
		SchoolYear: r.SchoolYear,
		Adviser:    r.Adviser,
		Synced:     r.Synced,
		CreatedAt:  formatTime(r.CreatedAt),
		UpdatedAt:  formatTime(r.UpdatedAt),
	}
}

var _ primary.SectionService = (*SectionServiceImpl)(nil)

// ============================================================================
// Students
// ============================================================================

// StudentServiceImpl implements the StudentService interface.
type StudentServiceImpl struct {
	studentRepo secondary.StudentRepository
	sectionRepo secondary.SectionRepository
	validator   *validation.Validator
}

// NewStudentService creates a new StudentService with injected dependencies.
func NewStudentService(
	studentRepo secondary.StudentRepository,
	sectionRepo secondary.SectionRepository,
	validator *validation.Validator,
) *StudentServiceImpl {
	return &StudentServiceImpl{
		studentRepo: studentRepo,
		sectionRepo: sectionRepo,
		validator:   validator,
	}
}

// CreateStudent creates a new student.
func (s *StudentServiceImpl) CreateStudent(ctx context.Context, req primary.StudentRequest) (*primary.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record := &secondary.StudentRecord{ID: newID()}
	applyStudentRequest(record, req)
	if err := s.studentRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return s.GetStudent(ctx, record.ID)
}

// UpdateStudent replaces a student's editable fields.
func (s *StudentServiceImpl) UpdateStudent(ctx context.Context, studentID string, req primary.StudentRequest) (*primary.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	applyStudentRequest(record, req)
	if err := s.studentRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	return s.GetStudent(ctx, studentID)
}

// DeleteStudent deletes a student and their dependents.
func (s *StudentServiceImpl) DeleteStudent(ctx context.Context, studentID string) error {
	return s.studentRepo.Delete(ctx, studentID)
}

// GetStudent retrieves a student by ID.
func (s *StudentServiceImpl) GetStudent(ctx context.Context, studentID string) (*primary.Student, error) {
	record, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return recordToStudent(record), nil
}

// ListStudents retrieves students matching filters.
func (s *StudentServiceImpl) ListStudents(ctx context.Context, filters primary.StudentFilters) ([]*primary.Student, error) {
	records, err := s.studentRepo.List(ctx, secondary.StudentFilters{
		SectionID: filters.SectionID,
		Search:    strings.TrimSpace(filters.Search),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	students := make([]*primary.Student, len(records))
	for i, r := range records {
		students[i] = recordToStudent(r)
	}
	return students, nil
}

// EnrollStudent enrolls a student in a section.
func (s *StudentServiceImpl) EnrollStudent(ctx context.Context, req primary.EnrollRequest) (*primary.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	guardCtx := roster.EnrollContext{StudentID: req.StudentID, SectionID: req.SectionID}

	_, err := s.studentRepo.GetByID(ctx, req.StudentID)
	if guardCtx.StudentExists, err = found(err); err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	section, err := s.sectionRepo.GetByID(ctx, req.SectionID)
	if guardCtx.SectionExists, err = found(err); err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	if guardCtx.StudentExists && guardCtx.SectionExists {
		enrollments, err := s.studentRepo.ListEnrollments(ctx, req.SectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to list enrollments: %w", err)
		}
		for _, e := range enrollments {
			if e.StudentID == req.StudentID {
				guardCtx.AlreadyEnrolled = true
				break
			}
		}
	}
	if err := guardError(roster.CanEnroll(guardCtx)); err != nil {
		return nil, err
	}

	schoolYear := req.SchoolYear
	if schoolYear == "" {
		schoolYear = section.SchoolYear
	}
	record := &secondary.EnrollmentRecord{
		ID:         newID(),
		StudentID:  req.StudentID,
		SectionID:  req.SectionID,
		SchoolYear: schoolYear,
	}
	if err := s.studentRepo.Enroll(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to enroll student: %w", err)
	}
	return recordToEnrollment(record), nil
}

// UnenrollStudent removes a student from a section.
func (s *StudentServiceImpl) UnenrollStudent(ctx context.Context, studentID, sectionID string) error {
	return s.studentRepo.Unenroll(ctx, studentID, sectionID)
}

// ListEnrollments retrieves a section's enrollments.
func (s *StudentServiceImpl) ListEnrollments(ctx context.Context, sectionID string) ([]*primary.Enrollment, error) {
	records, err := s.studentRepo.ListEnrollments(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	enrollments := make([]*primary.Enrollment, len(records))
	for i, r := range records {
		enrollments[i] = recordToEnrollment(r)
	}
	return enrollments, nil
}

func applyStudentRequest(r *secondary.StudentRecord, req primary.StudentRequest) {
	r.LRN = strings.TrimSpace(req.LRN)
	r.FirstName = strings.TrimSpace(req.FirstName)
	r.MiddleName = strings.TrimSpace(req.MiddleName)
	r.LastName = strings.TrimSpace(req.LastName)
	r.Gender = req.Gender
	r.BirthDate = req.BirthDate
}

func recordToStudent(r *secondary.StudentRecord) *primary.Student {
	return &primary.Student{
		ID:         r.ID,
		LRN:        r.LRN,
		FirstName:  r.FirstName,
		MiddleName: r.MiddleName,
		LastName:   r.LastName,
		Gender:     r.Gender,
		BirthDate:  r.BirthDate,
		Synced:     r.Synced,
		CreatedAt:  formatTime(r.CreatedAt),
		UpdatedAt:  formatTime(r.UpdatedAt),
	}
}

func recordToEnrollment(r *secondary.EnrollmentRecord) *primary.Enrollment {
	return &primary.Enrollment{
		ID:         r.ID,
		StudentID:  r.StudentID,
		SectionID:  r.SectionID,
		SchoolYear: r.SchoolYear,
		Synced:     r.Synced,
	}
}

var _ primary.StudentService = (*StudentServiceImpl)(nil)

// ============================================================================
// Subjects
// ============================================================================

// SubjectServiceImpl implements the SubjectService interface.
type SubjectServiceImpl struct {
	subjectRepo secondary.SubjectRepository
	sectionRepo secondary.SectionRepository
	validator   *validation.Validator
}

// NewSubjectService creates a new SubjectService with injected dependencies.
func NewSubjectService(
	subjectRepo secondary.SubjectRepository,
	sectionRepo secondary.SectionRepository,
	validator *validation.Validator,
) *SubjectServiceImpl {
	return &SubjectServiceImpl{
		subjectRepo: subjectRepo,
		sectionRepo: sectionRepo,
		validator:   validator,
	}
}

// CreateSubject creates a new subject with a unique code.
func (s *SubjectServiceImpl) CreateSubject(ctx context.Context, req primary.SubjectRequest) (*primary.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record := &secondary.SubjectRecord{ID: newID()}
	applySubjectRequest(record, req)
	if err := s.checkCode(ctx, record); err != nil {
		return nil, err
	}
	if err := s.subjectRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}
	return s.GetSubject(ctx, record.ID)
}

// UpdateSubject replaces a subject's editable fields.
func (s *SubjectServiceImpl) UpdateSubject(ctx context.Context, subjectID string, req primary.SubjectRequest) (*primary.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record, err := s.subjectRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	applySubjectRequest(record, req)
	if err := s.checkCode(ctx, record); err != nil {
		return nil, err
	}
	if err := s.subjectRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update subject: %w", err)
	}
	return s.GetSubject(ctx, subjectID)
}

// DeleteSubject deletes a subject and its dependents.
func (s *SubjectServiceImpl) DeleteSubject(ctx context.Context, subjectID string) error {
	return s.subjectRepo.Delete(ctx, subjectID)
}

// GetSubject retrieves a subject by ID.
func (s *SubjectServiceImpl) GetSubject(ctx context.Context, subjectID string) (*primary.Subject, error) {
	record, err := s.subjectRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return recordToSubject(record), nil
}

// ListSubjects retrieves all subjects.
func (s *SubjectServiceImpl) ListSubjects(ctx context.Context) ([]*primary.Subject, error) {
	records, err := s.subjectRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	subjects := make([]*primary.Subject, len(records))
	for i, r := range records {
		subjects[i] = recordToSubject(r)
	}
	return subjects, nil
}

// AssignSubject assigns a subject to a section.
func (s *SubjectServiceImpl) AssignSubject(ctx context.Context, req primary.AssignRequest) (*primary.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	guardCtx := roster.AssignContext{SubjectID: req.SubjectID, SectionID: req.SectionID}

	_, err := s.subjectRepo.GetByID(ctx, req.SubjectID)
	if guardCtx.SubjectExists, err = found(err); err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	section, err := s.sectionRepo.GetByID(ctx, req.SectionID)
	if guardCtx.SectionExists, err = found(err); err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	if guardCtx.SubjectExists && guardCtx.SectionExists {
		assignments, err := s.subjectRepo.ListAssignments(ctx, req.SectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to list assignments: %w", err)
		}
		for _, a := range assignments {
			if a.SubjectID == req.SubjectID {
				guardCtx.AlreadyAssigned = true
				break
			}
		}
	}
	if err := guardError(roster.CanAssign(guardCtx)); err != nil {
		return nil, err
	}

	schoolYear := req.SchoolYear
	if schoolYear == "" {
		schoolYear = section.SchoolYear
	}
	record := &secondary.AssignmentRecord{
		ID:         newID(),
		SubjectID:  req.SubjectID,
		SectionID:  req.SectionID,
		TeacherID:  req.TeacherID,
		SchoolYear: schoolYear,
	}
	if err := s.subjectRepo.Assign(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to assign subject: %w", err)
	}
	return recordToAssignment(record), nil
}

// UnassignSubject removes an assignment.
func (s *SubjectServiceImpl) UnassignSubject(ctx context.Context, assignmentID string) error {
	return s.subjectRepo.Unassign(ctx, assignmentID)
}

// ListAssignments retrieves the assignments of a section, or all when
// sectionID is empty.
func (s *SubjectServiceImpl) ListAssignments(ctx context.Context, sectionID string) ([]*primary.Assignment, error) {
	records, err := s.subjectRepo.ListAssignments(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	assignments := make([]*primary.Assignment, len(records))
	for i, r := range records {
		assignments[i] = recordToAssignment(r)
	}
	return assignments, nil
}

// checkCode enforces unique subject codes.
func (s *SubjectServiceImpl) checkCode(ctx context.Context, record *secondary.SubjectRecord) error {
	subjects, err := s.subjectRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}

	guardCtx := roster.SubjectCodeContext{Code: record.Code}
	for _, other := range subjects {
		if other.ID != record.ID && roster.NormalizeCode(other.Code) == record.Code {
			guardCtx.TakenBy = other.ID
			break
		}
	}
	return guardError(roster.CanUseSubjectCode(guardCtx))
}

func applySubjectRequest(r *secondary.SubjectRecord, req primary.SubjectRequest) {
	r.Code = roster.NormalizeCode(req.Code)
	r.Name = strings.TrimSpace(req.Name)
	r.Description = strings.TrimSpace(req.Description)
}

func recordToSubject(r *secondary.SubjectRecord) *primary.Subject {
	return &primary.Subject{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Synced:      r.Synced,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

func recordToAssignment(r *secondary.AssignmentRecord) *primary.Assignment {
	return &primary.Assignment{
		ID:         r.ID,
		SubjectID:  r.SubjectID,
		SectionID:  r.SectionID,
		TeacherID:  r.TeacherID,
		SchoolYear: r.SchoolYear,
		Synced:     r.Synced,
	}
}

var _ primary.SubjectService = (*SubjectServiceImpl)(nil)
