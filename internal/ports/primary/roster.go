package primary

import "context"

// SectionService defines the primary port for class sections.
type SectionService interface {
	CreateSection(ctx context.Context, req SectionRequest) (*Section, error)
	UpdateSection(ctx context.Context, sectionID string, req SectionRequest) (*Section, error)
	// DeleteSection removes the section with its enrollments, assignments
	// and section-scoped grade items.
	DeleteSection(ctx context.Context, sectionID string) error
	GetSection(ctx context.Context, sectionID string) (*Section, error)
	ListSections(ctx context.Context) ([]*Section, error)
}

// SectionRequest contains the editable fields of a section.
type SectionRequest struct {
	Name       string `json:"name" validate:"notblank"`
	GradeLevel string `json:"grade_level"`
	SchoolYear string `json:"school_year" validate:"omitempty,schoolyear"`
	Adviser    string `json:"adviser"`
}

// Section represents a class section at the port boundary.
type Section struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GradeLevel string `json:"grade_level,omitempty"`
	SchoolYear string `json:"school_year,omitempty"`
	Adviser    string `json:"adviser,omitempty"`
	Synced     bool   `json:"synced"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// StudentService defines the primary port for students and enrollment.
type StudentService interface {
	CreateStudent(ctx context.Context, req StudentRequest) (*Student, error)
	UpdateStudent(ctx context.Context, studentID string, req StudentRequest) (*Student, error)
	// DeleteStudent removes the student with enrollments, scores and grades.
	DeleteStudent(ctx context.Context, studentID string) error
	GetStudent(ctx context.Context, studentID string) (*Student, error)
	ListStudents(ctx context.Context, filters StudentFilters) ([]*Student, error)

	EnrollStudent(ctx context.Context, req EnrollRequest) (*Enrollment, error)
	UnenrollStudent(ctx context.Context, studentID, sectionID string) error
	ListEnrollments(ctx context.Context, sectionID string) ([]*Enrollment, error)
}

// StudentRequest contains the editable fields of a student.
type StudentRequest struct {
	LRN        string `json:"lrn" validate:"omitempty,numeric,len=12"`
	FirstName  string `json:"first_name" validate:"notblank"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name" validate:"notblank"`
	Gender     string `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate  string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

// StudentFilters contains filter options for listing students.
type StudentFilters struct {
	SectionID string `json:"section_id"`
	Search    string `json:"search"`
}

// Student represents a learner at the port boundary.
type Student struct {
	ID         string `json:"id"`
	LRN        string `json:"lrn,omitempty"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Gender     string `json:"gender,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	Synced     bool   `json:"synced"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// EnrollRequest contains parameters for enrolling a student.
type EnrollRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	SectionID  string `json:"section_id" validate:"required"`
	SchoolYear string `json:"school_year" validate:"omitempty,schoolyear"`
}

// Enrollment links a student to a section.
type Enrollment struct {
	ID         string `json:"id"`
	StudentID  string `json:"student_id"`
	SectionID  string `json:"section_id"`
	SchoolYear string `json:"school_year,omitempty"`
	Synced     bool   `json:"synced"`
}

// SubjectService defines the primary port for subjects and assignments.
type SubjectService interface {
	CreateSubject(ctx context.Context, req SubjectRequest) (*Subject, error)
	UpdateSubject(ctx context.Context, subjectID string, req SubjectRequest) (*Subject, error)
	// DeleteSubject removes the subject with its assignments, grade items,
	// scores and quarterly grades.
	DeleteSubject(ctx context.Context, subjectID string) error
	GetSubject(ctx context.Context, subjectID string) (*Subject, error)
	ListSubjects(ctx context.Context) ([]*Subject, error)

	AssignSubject(ctx context.Context, req AssignRequest) (*Assignment, error)
	UnassignSubject(ctx context.Context, assignmentID string) error
	ListAssignments(ctx context.Context, sectionID string) ([]*Assignment, error)
}

// SubjectRequest contains the editable fields of a subject.
type SubjectRequest struct {
	Code        string `json:"code" validate:"notblank,max=20"`
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description"`
}

// Subject represents a subject at the port boundary.
type Subject struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Synced      bool   `json:"synced"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// AssignRequest contains parameters for assigning a subject to a section.
type AssignRequest struct {
	SubjectID  string `json:"subject_id" validate:"required"`
	SectionID  string `json:"section_id" validate:"required"`
	TeacherID  string `json:"teacher_id"`
	SchoolYear string `json:"school_year" validate:"omitempty,schoolyear"`
}

// Assignment says a subject is taught to a section.
type Assignment struct {
	ID         string `json:"id"`
	SubjectID  string `json:"subject_id"`
	SectionID  string `json:"section_id"`
	TeacherID  string `json:"teacher_id,omitempty"`
	SchoolYear string `json:"school_year,omitempty"`
	Synced     bool   `json:"synced"`
}
