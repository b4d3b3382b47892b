// Package ipc is the host boundary: line-delimited JSON requests naming an
// operation are decoded into a closed set of typed commands, validated, and
// dispatched to the application services.
package ipc

import (
	"context"

	"github.com/example/gradebook/internal/ports/primary"
)

// Services are the primary ports commands run against.
type Services struct {
	Auth       primary.AuthService
	Sections   primary.SectionService
	Students   primary.StudentService
	Subjects   primary.SubjectService
	GradeItems primary.GradeItemService
	Scores     primary.ScoreService
	Grades     primary.GradeService
	Sync       primary.SyncService
}

// Command is one decoded request. The set is closed: only this package can
// implement it.
type Command interface {
	Op() string
	execute(ctx context.Context, s *Services) (any, error)
}

// IDRequest addresses a single record.
type IDRequest struct {
	ID string `json:"id" validate:"required"`
}

// ============================================================================
// Auth
// ============================================================================

type CreateUserCommand struct {
	primary.CreateUserRequest
}

func (CreateUserCommand) Op() string { return "auth.create_user" }
func (c *CreateUserCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Auth.CreateUser(ctx, c.CreateUserRequest)
}

type LoginCommand struct {
	primary.LoginRequest
}

func (LoginCommand) Op() string { return "auth.login" }
func (c *LoginCommand) execute(ctx context.Context, s *Services) (any, error) {
	resp, err := s.Auth.Login(ctx, c.LoginRequest)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errInvalidCredentials
	}
	return resp, nil
}

type LogoutCommand struct {
	Token string `json:"token" validate:"required"`
}

func (LogoutCommand) Op() string { return "auth.logout" }
func (c *LogoutCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Auth.Logout(ctx, c.Token)
}

type ValidateSessionCommand struct {
	Token string `json:"token" validate:"required"`
}

func (ValidateSessionCommand) Op() string { return "auth.validate_session" }
func (c *ValidateSessionCommand) execute(ctx context.Context, s *Services) (any, error) {
	session, err := s.Auth.ValidateSession(ctx, c.Token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errUnauthenticated
	}
	return session, nil
}

type ChangePasswordCommand struct {
	primary.ChangePasswordRequest
}

func (ChangePasswordCommand) Op() string { return "auth.change_password" }
func (c *ChangePasswordCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Auth.ChangePassword(ctx, c.ChangePasswordRequest)
}

type AuditLogCommand struct {
	primary.AuditLogFilters
}

func (AuditLogCommand) Op() string { return "auth.audit_log" }
func (c *AuditLogCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Auth.ListAuditLog(ctx, c.AuditLogFilters)
}

type PurgeSessionsCommand struct{}

func (PurgeSessionsCommand) Op() string { return "auth.purge_sessions" }
func (c *PurgeSessionsCommand) execute(ctx context.Context, s *Services) (any, error) {
	n, err := s.Auth.PurgeExpiredSessions(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"purged": n}, nil
}

// ============================================================================
// Sections
// ============================================================================

type CreateSectionCommand struct {
	primary.SectionRequest
}

func (CreateSectionCommand) Op() string { return "section.create" }
func (c *CreateSectionCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sections.CreateSection(ctx, c.SectionRequest)
}

type UpdateSectionCommand struct {
	IDRequest
	primary.SectionRequest
}

func (UpdateSectionCommand) Op() string { return "section.update" }
func (c *UpdateSectionCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sections.UpdateSection(ctx, c.ID, c.SectionRequest)
}

type DeleteSectionCommand struct {
	IDRequest
}

func (DeleteSectionCommand) Op() string { return "section.delete" }
func (c *DeleteSectionCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Sections.DeleteSection(ctx, c.ID)
}

type GetSectionCommand struct {
	IDRequest
}

func (GetSectionCommand) Op() string { return "section.get" }
func (c *GetSectionCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sections.GetSection(ctx, c.ID)
}

type ListSectionsCommand struct{}

func (ListSectionsCommand) Op() string { return "section.list" }
func (c *ListSectionsCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sections.ListSections(ctx)
}

// ============================================================================
// Students
// ============================================================================

type CreateStudentCommand struct {
	primary.StudentRequest
}

func (CreateStudentCommand) Op() string { return "student.create" }
func (c *CreateStudentCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Students.CreateStudent(ctx, c.StudentRequest)
}

type UpdateStudentCommand struct {
	IDRequest
	primary.StudentRequest
}

func (UpdateStudentCommand) Op() string { return "student.update" }
func (c *UpdateStudentCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Students.UpdateStudent(ctx, c.ID, c.StudentRequest)
}

type DeleteStudentCommand struct {
	IDRequest
}

func (DeleteStudentCommand) Op() string { return "student.delete" }
func (c *DeleteStudentCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Students.DeleteStudent(ctx, c.ID)
}

type GetStudentCommand struct {
	IDRequest
}

func (GetStudentCommand) Op() string { return "student.get" }
func (c *GetStudentCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Students.GetStudent(ctx, c.ID)
}

type ListStudentsCommand struct {
	primary.StudentFilters
}

func (ListStudentsCommand) Op() string { return "student.list" }
func (c *ListStudentsCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Students.ListStudents(ctx, c.StudentFilters)
}

type EnrollStudentCommand struct {
	primary.EnrollRequest
}

func (EnrollStudentCommand) Op() string { return "student.enroll" }
func (c *EnrollStudentCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Students.EnrollStudent(ctx, c.EnrollRequest)
}

type UnenrollStudentCommand struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

func (UnenrollStudentCommand) Op() string { return "student.unenroll" }
func (c *UnenrollStudentCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Students.UnenrollStudent(ctx, c.StudentID, c.SectionID)
}

type ListEnrollmentsCommand struct {
	SectionID string `json:"section_id"`
}

func (ListEnrollmentsCommand) Op() string { return "student.enrollments" }
func (c *ListEnrollmentsCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Students.ListEnrollments(ctx, c.SectionID)
}

// ============================================================================
// Subjects
// ============================================================================

type CreateSubjectCommand struct {
	primary.SubjectRequest
}

func (CreateSubjectCommand) Op() string { return "subject.create" }
func (c *CreateSubjectCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Subjects.CreateSubject(ctx, c.SubjectRequest)
}

type UpdateSubjectCommand struct {
	IDRequest
	primary.SubjectRequest
}

func (UpdateSubjectCommand) Op() string { return "subject.update" }
func (c *UpdateSubjectCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Subjects.UpdateSubject(ctx, c.ID, c.SubjectRequest)
}

type DeleteSubjectCommand struct {
	IDRequest
}

func (DeleteSubjectCommand) Op() string { return "subject.delete" }
func (c *DeleteSubjectCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Subjects.DeleteSubject(ctx, c.ID)
}

type GetSubjectCommand struct {
	IDRequest
}

func (GetSubjectCommand) Op() string { return "subject.get" }
func (c *GetSubjectCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Subjects.GetSubject(ctx, c.ID)
}

type ListSubjectsCommand struct{}

func (ListSubjectsCommand) Op() string { return "subject.list" }
func (c *ListSubjectsCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Subjects.ListSubjects(ctx)
}

// AssignSubjectCommand assigns a subject to a section. An empty teacher_id
// falls back to the signed-in user.
type AssignSubjectCommand struct {
	primary.AssignRequest
}

func (AssignSubjectCommand) Op() string { return "subject.assign" }
func (c *AssignSubjectCommand) execute(ctx context.Context, s *Services) (any, error) {
	req := c.AssignRequest
	if req.TeacherID == "" {
		req.TeacherID = actorFrom(ctx)
	}
	return s.Subjects.AssignSubject(ctx, req)
}

type UnassignSubjectCommand struct {
	IDRequest
}

func (UnassignSubjectCommand) Op() string { return "subject.unassign" }
func (c *UnassignSubjectCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Subjects.UnassignSubject(ctx, c.ID)
}

type ListAssignmentsCommand struct {
	SectionID string `json:"section_id"`
}

func (ListAssignmentsCommand) Op() string { return "subject.assignments" }
func (c *ListAssignmentsCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Subjects.ListAssignments(ctx, c.SectionID)
}

// ============================================================================
// Grade items and scores
// ============================================================================

type CreateGradeItemCommand struct {
	primary.GradeItemRequest
}

func (CreateGradeItemCommand) Op() string { return "grade_item.create" }
func (c *CreateGradeItemCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.GradeItems.CreateGradeItem(ctx, c.GradeItemRequest)
}

type UpdateGradeItemCommand struct {
	IDRequest
	primary.GradeItemRequest
}

func (UpdateGradeItemCommand) Op() string { return "grade_item.update" }
func (c *UpdateGradeItemCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.GradeItems.UpdateGradeItem(ctx, c.ID, c.GradeItemRequest)
}

type DeleteGradeItemCommand struct {
	IDRequest
}

func (DeleteGradeItemCommand) Op() string { return "grade_item.delete" }
func (c *DeleteGradeItemCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.GradeItems.DeleteGradeItem(ctx, c.ID)
}

type GetGradeItemCommand struct {
	IDRequest
}

func (GetGradeItemCommand) Op() string { return "grade_item.get" }
func (c *GetGradeItemCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.GradeItems.GetGradeItem(ctx, c.ID)
}

type ListGradeItemsCommand struct {
	primary.GradeItemFilters
}

func (ListGradeItemsCommand) Op() string { return "grade_item.list" }
func (c *ListGradeItemsCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.GradeItems.ListGradeItems(ctx, c.GradeItemFilters)
}

type SaveScoreCommand struct {
	primary.SaveScoreRequest
}

func (SaveScoreCommand) Op() string { return "score.save" }
func (c *SaveScoreCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Scores.SaveScore(ctx, c.SaveScoreRequest)
}

type DeleteScoreCommand struct {
	IDRequest
}

func (DeleteScoreCommand) Op() string { return "score.delete" }
func (c *DeleteScoreCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Scores.DeleteScore(ctx, c.ID)
}

// GetScoreCommand answers with null data when the student is unscored.
type GetScoreCommand struct {
	StudentID   string `json:"student_id" validate:"required"`
	GradeItemID string `json:"grade_item_id" validate:"required"`
}

func (GetScoreCommand) Op() string { return "score.get" }
func (c *GetScoreCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Scores.GetScore(ctx, c.StudentID, c.GradeItemID)
}

type ListScoresCommand struct {
	GradeItemID string `json:"grade_item_id" validate:"required"`
}

func (ListScoresCommand) Op() string { return "score.list" }
func (c *ListScoresCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Scores.ListItemScores(ctx, c.GradeItemID)
}

// ============================================================================
// Quarterly grades
// ============================================================================

type CalculateGradeCommand struct {
	primary.CalculateGradeRequest
}

func (CalculateGradeCommand) Op() string { return "grade.calculate" }
func (c *CalculateGradeCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Grades.CalculateQuarterlyGrade(ctx, c.CalculateGradeRequest)
}

type PreviewGradeCommand struct {
	primary.CalculateGradeRequest
}

func (PreviewGradeCommand) Op() string { return "grade.preview" }
func (c *PreviewGradeCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Grades.PreviewQuarterlyGrade(ctx, c.CalculateGradeRequest)
}

type GetGradeCommand struct {
	primary.CalculateGradeRequest
}

func (GetGradeCommand) Op() string { return "grade.get" }
func (c *GetGradeCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Grades.GetQuarterlyGrade(ctx, c.CalculateGradeRequest)
}

type ListGradesCommand struct {
	primary.QuarterlyGradeFilters
}

func (ListGradesCommand) Op() string { return "grade.list" }
func (c *ListGradesCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Grades.ListQuarterlyGrades(ctx, c.QuarterlyGradeFilters)
}

type TransmuteCommand struct {
	InitialGrade float64 `json:"initial_grade"`
}

func (TransmuteCommand) Op() string { return "grade.transmute" }
func (c *TransmuteCommand) execute(_ context.Context, s *Services) (any, error) {
	return map[string]int{"quarterly_grade": s.Grades.Transmute(c.InitialGrade)}, nil
}

// ============================================================================
// Sync
// ============================================================================

type ConfigureRemoteCommand struct {
	primary.ConfigureRemoteRequest
}

func (ConfigureRemoteCommand) Op() string { return "sync.configure" }
func (c *ConfigureRemoteCommand) execute(ctx context.Context, s *Services) (any, error) {
	return nil, s.Sync.Configure(ctx, c.ConfigureRemoteRequest)
}

type SeedCommand struct {
	primary.SeedRequest
}

func (SeedCommand) Op() string { return "sync.seed" }
func (c *SeedCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sync.Seed(ctx, c.SeedRequest)
}

type PushCommand struct {
	primary.PushOptions
}

func (PushCommand) Op() string { return "sync.push" }
func (c *PushCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sync.Push(ctx, c.PushOptions)
}

type PullCommand struct{}

func (PullCommand) Op() string { return "sync.pull" }
func (c *PullCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sync.Pull(ctx)
}

type SyncNowCommand struct {
	primary.PushOptions
}

func (SyncNowCommand) Op() string { return "sync.now" }
func (c *SyncNowCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sync.SyncNow(ctx, c.PushOptions)
}

type SyncStatusCommand struct{}

func (SyncStatusCommand) Op() string { return "sync.status" }
func (c *SyncStatusCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sync.Status(ctx)
}

type SyncHistoryCommand struct {
	Limit int `json:"limit" validate:"gte=0"`
}

func (SyncHistoryCommand) Op() string { return "sync.history" }
func (c *SyncHistoryCommand) execute(ctx context.Context, s *Services) (any, error) {
	return s.Sync.History(ctx, c.Limit)
}

// registry maps each op to a constructor for its command.
var registry = map[string]func() Command{}

func register(fns ...func() Command) {
	for _, fn := range fns {
		registry[fn().Op()] = fn
	}
}

func init() {
	register(
		func() Command { return &CreateUserCommand{} },
		func() Command { return &LoginCommand{} },
		func() Command { return &LogoutCommand{} },
		func() Command { return &ValidateSessionCommand{} },
		func() Command { return &ChangePasswordCommand{} },
		func() Command { return &AuditLogCommand{} },
		func() Command { return &PurgeSessionsCommand{} },

		func() Command { return &CreateSectionCommand{} },
		func() Command { return &UpdateSectionCommand{} },
		func() Command { return &DeleteSectionCommand{} },
		func() Command { return &GetSectionCommand{} },
		func() Command { return &ListSectionsCommand{} },

		func() Command { return &CreateStudentCommand{} },
		func() Command { return &UpdateStudentCommand{} },
		func() Command { return &DeleteStudentCommand{} },
		func() Command { return &GetStudentCommand{} },
		func() Command { return &ListStudentsCommand{} },
		func() Command { return &EnrollStudentCommand{} },
		func() Command { return &UnenrollStudentCommand{} },
		func() Command { return &ListEnrollmentsCommand{} },

		func() Command { return &CreateSubjectCommand{} },
		func() Command { return &UpdateSubjectCommand{} },
		func() Command { return &DeleteSubjectCommand{} },
		func() Command { return &GetSubjectCommand{} },
		func() Command { return &ListSubjectsCommand{} },
		func() Command { return &AssignSubjectCommand{} },
		func() Command { return &UnassignSubjectCommand{} },
		func() Command { return &ListAssignmentsCommand{} },

		func() Command { return &CreateGradeItemCommand{} },
		func() Command { return &UpdateGradeItemCommand{} },
		func() Command { return &DeleteGradeItemCommand{} },
		func() Command { return &GetGradeItemCommand{} },
		func() Command { return &ListGradeItemsCommand{} },
		func() Command { return &SaveScoreCommand{} },
		func() Command { return &DeleteScoreCommand{} },
		func() Command { return &GetScoreCommand{} },
		func() Command { return &ListScoresCommand{} },

		func() Command { return &CalculateGradeCommand{} },
		func() Command { return &PreviewGradeCommand{} },
		func() Command { return &GetGradeCommand{} },
		func() Command { return &ListGradesCommand{} },
		func() Command { return &TransmuteCommand{} },

		func() Command { return &ConfigureRemoteCommand{} },
		func() Command { return &SeedCommand{} },
		func() Command { return &PushCommand{} },
		func() Command { return &PullCommand{} },
		func() Command { return &SyncNowCommand{} },
		func() Command { return &SyncStatusCommand{} },
		func() Command { return &SyncHistoryCommand{} },
	)
}

// Ops lists every supported operation name.
func Ops() []string {
	ops := make([]string, 0, len(registry))
	for op := range registry {
		ops = append(ops, op)
	}
	return ops
}
