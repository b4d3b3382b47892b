// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems:
// the local store and the remote REST API.
package secondary

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is wrapped by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Syncable table names. They double as outbox table names and select the
// remote endpoint an entry is replayed against.
const (
	TableClassSections      = "class_sections"
	TableStudents           = "students"
	TableStudentSections    = "student_sections"
	TableSubjects           = "subjects"
	TableSubjectAssignments = "subject_assignments"
	TableGradeItems         = "grade_items"
	TableStudentScores      = "student_scores"
	TableQuarterlyGrades    = "quarterly_grades"
)

// ============================================================================
// Credential domain
// ============================================================================

// UserRepository defines the secondary port for local user persistence.
type UserRepository interface {
	// Create persists a new user.
	Create(ctx context.Context, user *UserRecord) error

	// GetByID retrieves a user by ID. Wraps ErrNotFound.
	GetByID(ctx context.Context, id string) (*UserRecord, error)

	// GetByEmail retrieves a user by (case-insensitive) email. Wraps ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)

	// List retrieves all users ordered by email.
	List(ctx context.Context) ([]*UserRecord, error)

	// RecordLoginSuccess resets failed attempts and stamps last_login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	// RecordLoginFailure increments failed attempts and stamps last_failed_login.
	RecordLoginFailure(ctx context.Context, id string, at time.Time) error

	// UpdatePassword replaces the password hash and salt.
	UpdatePassword(ctx context.Context, id, hash, salt string) error

	// SetCachedPassword stores (or clears, when empty) the encrypted offline password.
	SetCachedPassword(ctx context.Context, id, encrypted string) error
}

// UserRecord represents a user as stored in persistence.
type UserRecord struct {
	ID                  string
	Email               string
	PasswordHash        string
	Salt                string
	FirstName           string
	LastName            string
	Role                string
	IsActive            bool
	FailedLoginAttempts int
	LastLogin           time.Time
	LastFailedLogin     time.Time
	CachedPassword      string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SessionRepository defines the secondary port for session persistence.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *SessionRecord) error

	// Get retrieves a session by token regardless of expiry. Wraps ErrNotFound.
	Get(ctx context.Context, id string) (*SessionRecord, error)

	// Touch stamps last_activity.
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes a session. Missing sessions are not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionRecord represents a login session.
type SessionRecord struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}

// AuditRepository defines the secondary port for the credential audit log.
type AuditRepository interface {
	// Append writes an audit entry.
	Append(ctx context.Context, entry *AuditRecord) error

	// List retrieves audit entries, newest first.
	List(ctx context.Context, filters AuditFilters) ([]*AuditRecord, error)
}

// AuditRecord is one audit log entry.
type AuditRecord struct {
	ID        int64
	UserID    string
	Action    string
	Details   string
	CreatedAt time.Time
}

// AuditFilters contains filter options for querying the audit log.
type AuditFilters struct {
	UserID string
	Limit  int
}

// ============================================================================
// Mutation outbox
// ============================================================================

// OutboxRepository defines the secondary port for the mutation outbox.
// Appends happen inside the repositories' own transactions; this port
// exposes the read and acknowledgement side used by the sync coordinator.
type OutboxRepository interface {
	// Drain returns every unsynced entry in global creation order.
	Drain(ctx context.Context) ([]*OutboxEntry, error)

	// MarkSynced flags entries as acknowledged by the server.
	MarkSynced(ctx context.Context, ids []int64, at time.Time) error

	// MarkFailed records a failed attempt and when the entry may be retried.
	MarkFailed(ctx context.Context, id int64, errMsg string, at, nextAttempt time.Time) error

	// CountPending returns the number of unsynced entries.
	CountPending(ctx context.Context) (int, error)

	// HasPending reports whether a record still has unsynced entries.
	HasPending(ctx context.Context, table, recordID string) (bool, error)

	// List retrieves entries matching filters, oldest first.
	List(ctx context.Context, filters OutboxFilters) ([]*OutboxEntry, error)
}

// OutboxEntry is one queued local mutation.
type OutboxEntry struct {
	ID            int64
	TableName     string
	Operation     string
	RecordID      string
	Payload       json.RawMessage
	Synced        bool
	Attempts      int
	LastError     string
	LastAttemptAt time.Time
	NextAttemptAt time.Time
	CreatedAt     time.Time
	SyncedAt      time.Time
}

// OutboxFilters contains filter options for listing outbox entries.
type OutboxFilters struct {
	TableName     string
	IncludeSynced bool
	Limit         int
}

// ============================================================================
// School records
// ============================================================================

// SectionRepository defines the secondary port for class section persistence.
// Mutating methods pair the local write with an outbox entry in one transaction.
type SectionRepository interface {
	Create(ctx context.Context, section *SectionRecord) error
	Update(ctx context.Context, section *SectionRecord) error
	// Delete removes the section with its enrollments, assignments and
	// section-scoped grade items.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*SectionRecord, error)
	List(ctx context.Context) ([]*SectionRecord, error)
	// BulkInsert stores server-seeded rows as synced, without outbox entries.
	BulkInsert(ctx context.Context, sections []*SectionRecord) (int, error)
}

// SectionRecord is a class section.
type SectionRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GradeLevel string    `json:"grade_level,omitempty"`
	SchoolYear string    `json:"school_year,omitempty"`
	Adviser    string    `json:"adviser,omitempty"`
	Synced     bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StudentRepository defines the secondary port for students and their enrollments.
type StudentRepository interface {
	Create(ctx context.Context, student *StudentRecord) error
	Update(ctx context.Context, student *StudentRecord) error
	// Delete removes the student with enrollments, scores and quarterly grades.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*StudentRecord, error)
	List(ctx context.Context, filters StudentFilters) ([]*StudentRecord, error)

	Enroll(ctx context.Context, enrollment *EnrollmentRecord) error
	Unenroll(ctx context.Context, studentID, sectionID string) error
	ListEnrollments(ctx context.Context, sectionID string) ([]*EnrollmentRecord, error)

	BulkInsert(ctx context.Context, students []*StudentRecord) (int, error)
	BulkInsertEnrollments(ctx context.Context, enrollments []*EnrollmentRecord) (int, error)
}

// StudentRecord is a learner.
type StudentRecord struct {
	ID         string    `json:"id"`
	LRN        string    `json:"lrn,omitempty"`
	FirstName  string    `json:"first_name"`
	MiddleName string    `json:"middle_name,omitempty"`
	LastName   string    `json:"last_name"`
	Gender     string    `json:"gender,omitempty"`
	BirthDate  string    `json:"birth_date,omitempty"`
	Synced     bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StudentFilters contains filter options for listing students.
type StudentFilters struct {
	SectionID string
	Search    string
}

// EnrollmentRecord links a student to a class section.
type EnrollmentRecord struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	SectionID  string    `json:"section_id"`
	SchoolYear string    `json:"school_year,omitempty"`
	Synced     bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubjectRepository defines the secondary port for subjects and their section assignments.
type SubjectRepository interface {
	Create(ctx context.Context, subject *SubjectRecord) error
	Update(ctx context.Context, subject *SubjectRecord) error
	// Delete removes the subject with its assignments, grade items, scores and quarterly grades.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*SubjectRecord, error)
	List(ctx context.Context) ([]*SubjectRecord, error)

	Assign(ctx context.Context, assignment *AssignmentRecord) error
	Unassign(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, sectionID string) ([]*AssignmentRecord, error)

	BulkInsert(ctx context.Context, subjects []*SubjectRecord) (int, error)
	BulkInsertAssignments(ctx context.Context, assignments []*AssignmentRecord) (int, error)
}

// SubjectRecord is a subject of study.
type SubjectRecord struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Synced      bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignmentRecord says a subject is taught to a section.
type AssignmentRecord struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subject_id"`
	SectionID  string    `json:"section_id"`
	TeacherID  string    `json:"teacher_id,omitempty"`
	SchoolYear string    `json:"school_year,omitempty"`
	Synced     bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GradeItemRepository defines the secondary port for assessment definitions.
type GradeItemRepository interface {
	Create(ctx context.Context, item *GradeItemRecord) error
	Update(ctx context.Context, item *GradeItemRecord) error
	// Delete removes the item with its scores.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*GradeItemRecord, error)
	List(ctx context.Context, filters GradeItemFilters) ([]*GradeItemRecord, error)
	// HighestScore returns the highest score recorded against an item (0 when none).
	HighestScore(ctx context.Context, id string) (float64, error)
}

// GradeItemRecord is an assessment definition.
type GradeItemRecord struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	SectionID string    `json:"section_id,omitempty"`
	Category  string    `json:"category"`
	Quarter   int       `json:"quarter"`
	Title     string    `json:"title"`
	MaxScore  float64   `json:"max_score"`
	ItemDate  string    `json:"item_date,omitempty"`
	Synced    bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GradeItemFilters contains filter options for listing grade items.
type GradeItemFilters struct {
	SubjectID string
	SectionID string
	Quarter   int
	Category  string
	// EnrolledStudentID keeps unscoped items and items of sections the
	// student is enrolled in.
	EnrolledStudentID string
}

// ScoreRepository defines the secondary port for student scores.
type ScoreRepository interface {
	// Save inserts or updates the score for (student, grade item); the
	// returned operation says which one happened.
	Save(ctx context.Context, score *ScoreRecord) (string, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, studentID, gradeItemID string) (*ScoreRecord, error)
	// ListForStudent returns the student's scores on the given grade items.
	ListForStudent(ctx context.Context, studentID string, gradeItemIDs []string) ([]*ScoreRecord, error)
	ListForItem(ctx context.Context, gradeItemID string) ([]*ScoreRecord, error)
}

// ScoreRecord is one student's score on one grade item.
type ScoreRecord struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	GradeItemID string    `json:"grade_item_id"`
	Score       float64   `json:"score"`
	Remarks     string    `json:"remarks,omitempty"`
	Synced      bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QuarterlyGradeRepository defines the secondary port for computed grades.
type QuarterlyGradeRepository interface {
	// Upsert stores the grade keyed by (student, subject, quarter) and
	// returns the operation that was queued.
	Upsert(ctx context.Context, grade *QuarterlyGradeRecord) (string, error)
	Get(ctx context.Context, studentID, subjectID string, quarter int) (*QuarterlyGradeRecord, error)
	List(ctx context.Context, filters QuarterlyGradeFilters) ([]*QuarterlyGradeRecord, error)
}

// QuarterlyGradeRecord is a materialized quarterly grade.
type QuarterlyGradeRecord struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	SubjectID      string    `json:"subject_id"`
	Quarter        int       `json:"quarter"`
	WWPercentage   float64   `json:"ww_percentage"`
	WWWeighted     float64   `json:"ww_weighted"`
	PTPercentage   float64   `json:"pt_percentage"`
	PTWeighted     float64   `json:"pt_weighted"`
	QAPercentage   float64   `json:"qa_percentage"`
	QAWeighted     float64   `json:"qa_weighted"`
	InitialGrade   float64   `json:"initial_grade"`
	QuarterlyGrade int       `json:"quarterly_grade"`
	Synced         bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// QuarterlyGradeFilters contains filter options for listing quarterly grades.
type QuarterlyGradeFilters struct {
	StudentID string
	SubjectID string
	Quarter   int
}

// ============================================================================
// Server snapshots
// ============================================================================

// SnapshotRepository defines the secondary port for ingesting server data.
type SnapshotRepository interface {
	// Import stores every row of the snapshot as synced, in one transaction,
	// without outbox entries.
	Import(ctx context.Context, snapshot *Snapshot, opts ImportOptions) (*ImportCounts, error)
}

// Snapshot is a set of authoritative rows fetched from the server.
type Snapshot struct {
	Sections    []*SectionRecord
	Subjects    []*SubjectRecord
	Students    []*StudentRecord
	Enrollments []*EnrollmentRecord
	Assignments []*AssignmentRecord
}

// ImportOptions tunes a snapshot import.
type ImportOptions struct {
	// SkipPending leaves alone any row that still has unsynced outbox entries.
	SkipPending bool
}

// ImportCounts reports how many rows of each kind were stored.
type ImportCounts struct {
	Sections    int
	Subjects    int
	Students    int
	Enrollments int
	Assignments int
	Skipped     int
}

// Total returns the number of stored rows.
func (c *ImportCounts) Total() int {
	return c.Sections + c.Subjects + c.Students + c.Enrollments + c.Assignments
}

// ============================================================================
// Settings
// ============================================================================

// SettingsRepository defines the secondary port for app_settings.
type SettingsRepository interface {
	// Get reads a value. Wraps ErrNotFound when the key was never written.
	Get(ctx context.Context, key string) (string, error)

	// Set writes or replaces a value.
	Set(ctx context.Context, key, value string) error

	// Delete removes a value. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// ============================================================================
// Sync history
// ============================================================================

// SyncHistoryRepository defines the secondary port for the sync pass log.
type SyncHistoryRepository interface {
	// Create appends a completed pass and returns its ID.
	Create(ctx context.Context, record *SyncHistoryRecord) (int64, error)

	// List retrieves passes, newest first.
	List(ctx context.Context, limit int) ([]*SyncHistoryRecord, error)
}

// SyncHistoryRecord summarizes one sync pass.
type SyncHistoryRecord struct {
	ID            int64
	SyncType      string
	StartedAt     time.Time
	CompletedAt   time.Time
	RecordsSynced int
	RecordsFailed int
	Status        string
	ErrorMessage  string
	Details       map[string]int
}
