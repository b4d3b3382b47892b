package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/gradebook/internal/adapters/remote"
	"github.com/example/gradebook/internal/adapters/sqlite"
	"github.com/example/gradebook/internal/app"
	"github.com/example/gradebook/internal/core/credential"
	"github.com/example/gradebook/internal/core/grading"
	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/validation"
)

// ============================================================================
// Fixture
// ============================================================================

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cipher, err := credential.NewCipher([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	v := validation.New()
	logger := zaptest.NewLogger(t)

	sections := sqlite.NewSectionRepository(database)
	students := sqlite.NewStudentRepository(database)
	subjects := sqlite.NewSubjectRepository(database)
	items := sqlite.NewGradeItemRepository(database)
	scores := sqlite.NewScoreRepository(database)

	services := Services{
		Auth: app.NewAuthService(
			sqlite.NewUserRepository(database),
			sqlite.NewSessionRepository(database),
			sqlite.NewAuditRepository(database),
			cipher, v, app.AuthConfig{Logger: logger},
		),
		Sections:   app.NewSectionService(sections, v),
		Students:   app.NewStudentService(students, sections, v),
		Subjects:   app.NewSubjectService(subjects, sections, v),
		GradeItems: app.NewGradeItemService(items, subjects, v),
		Scores:     app.NewScoreService(scores, students, items, v, logger),
		Grades:     app.NewGradeService(items, scores, sqlite.NewQuarterlyGradeRepository(database), students, subjects, grading.DefaultEngine(), v),
		Sync: app.NewSyncCoordinator(
			sqlite.NewOutboxRepository(database),
			sqlite.NewSnapshotRepository(database),
			sqlite.NewSyncHistoryRepository(database),
			sqlite.NewSettingsRepository(database),
			remote.Factory(),
			cipher, v, app.SyncConfig{Logger: logger},
		),
	}
	return NewDispatcher(services, v, logger)
}

// call sends op with payload and returns the response with Data re-encoded
// as raw JSON for decoding into a concrete type.
func call(t *testing.T, d *Dispatcher, token, op string, payload any) (Response, json.RawMessage) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	resp := d.Handle(context.Background(), Request{ID: "req-1", Op: op, Token: token, Payload: raw})
	assert.Equal(t, "req-1", resp.ID)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	return resp, data
}

func mustSucceed(t *testing.T, d *Dispatcher, token, op string, payload any, out any) {
	t.Helper()
	resp, data := call(t, d, token, op, payload)
	require.Truef(t, resp.Success, "%s failed: %+v", op, resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}

// ============================================================================
// Decode
// ============================================================================

func TestDecode(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		op        string
		payload   string
		wantCode  string
		wantField string
	}{
		{"unknown op", "section.rename", `{}`, CodeUnknownOp, ""},
		{"not json", "section.create", `{"name":`, CodeBadRequest, ""},
		{"unknown field", "section.create", `{"name":"Rizal","room":"12"}`, CodeBadRequest, ""},
		{"trailing data", "section.create", `{"name":"Rizal"} {}`, CodeBadRequest, ""},
		{"blank name", "section.create", `{"name":"  "}`, CodeValidation, "name"},
		{"missing id", "section.update", `{"name":"Rizal"}`, CodeValidation, "id"},
		{"missing payload", "score.save", ``, CodeValidation, "student_id"},
		{"bad quarter", "grade.calculate", `{"student_id":"s","subject_id":"x","quarter":5}`, CodeValidation, "quarter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(v, tt.op, json.RawMessage(tt.payload))
			require.Error(t, err)
			ipcErr, ok := err.(*Error)
			require.True(t, ok, "expected *Error, got %T", err)
			assert.Equal(t, tt.wantCode, ipcErr.Code)
			if tt.wantField != "" {
				assert.Contains(t, ipcErr.Fields, tt.wantField)
			}
		})
	}
}

func TestDecode_TypedCommands(t *testing.T) {
	v := validation.New()

	cmd, err := Decode(v, "section.update", json.RawMessage(`{"id":"sec-1","name":"Rizal","school_year":"2024-2025"}`))
	require.NoError(t, err)
	update, ok := cmd.(*UpdateSectionCommand)
	require.True(t, ok)
	assert.Equal(t, "sec-1", update.ID)
	assert.Equal(t, "Rizal", update.Name)
	assert.Equal(t, "section.update", cmd.Op())

	cmd, err = Decode(v, "section.list", nil)
	require.NoError(t, err)
	assert.IsType(t, &ListSectionsCommand{}, cmd)

	cmd, err = Decode(v, "sync.push", json.RawMessage(`null`))
	require.NoError(t, err)
	assert.False(t, cmd.(*PushCommand).Force)
}

func TestOps(t *testing.T) {
	ops := Ops()
	sort.Strings(ops)
	assert.Len(t, ops, 49)
	for _, prefix := range []string{"auth.", "section.", "student.", "subject.", "grade_item.", "score.", "grade.", "sync."} {
		found := false
		for _, op := range ops {
			if strings.HasPrefix(op, prefix) {
				found = true
				break
			}
		}
		assert.Truef(t, found, "no ops under %s", prefix)
	}
}

// ============================================================================
// Handle
// ============================================================================

func TestHandle_SectionLifecycle(t *testing.T) {
	d := newTestDispatcher(t)

	var section primary.Section
	mustSucceed(t, d, "", "section.create", map[string]any{"name": "Rizal", "grade_level": "7", "school_year": "2024-2025"}, &section)
	assert.NotEmpty(t, section.ID)
	assert.False(t, section.Synced)

	var listed []primary.Section
	mustSucceed(t, d, "", "section.list", nil, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "Rizal", listed[0].Name)

	mustSucceed(t, d, "", "section.update", map[string]any{"id": section.ID, "name": "Bonifacio"}, &section)
	assert.Equal(t, "Bonifacio", section.Name)

	mustSucceed(t, d, "", "section.delete", map[string]any{"id": section.ID}, nil)

	resp, _ := call(t, d, "", "section.get", map[string]any{"id": section.ID})
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestHandle_ValidationFromService(t *testing.T) {
	d := newTestDispatcher(t)

	var subject primary.Subject
	mustSucceed(t, d, "", "subject.create", map[string]any{"code": "math7", "name": "Mathematics"}, &subject)
	assert.Equal(t, "MATH7", subject.Code)

	// duplicate codes pass decode but are rejected by the service
	resp, _ := call(t, d, "", "subject.create", map[string]any{"code": "MATH7", "name": "Math again"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeValidation, resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "code")
}

func TestHandle_GradeFlow(t *testing.T) {
	d := newTestDispatcher(t)

	var student primary.Student
	mustSucceed(t, d, "", "student.create", map[string]any{"first_name": "Ana", "last_name": "Cruz"}, &student)
	var subject primary.Subject
	mustSucceed(t, d, "", "subject.create", map[string]any{"code": "SCI7", "name": "Science"}, &subject)

	for _, it := range []struct {
		category string
		max      float64
		score    float64
	}{{"WW", 20, 18}, {"PT", 50, 40}, {"QA", 10, 8}} {
		var item primary.GradeItem
		mustSucceed(t, d, "", "grade_item.create", map[string]any{
			"subject_id": subject.ID, "category": it.category, "quarter": 1, "title": it.category + " 1", "max_score": it.max,
		}, &item)
		mustSucceed(t, d, "", "score.save", map[string]any{
			"student_id": student.ID, "grade_item_id": item.ID, "score": it.score,
		}, nil)
	}

	var grade primary.QuarterlyGrade
	mustSucceed(t, d, "", "grade.calculate", map[string]any{"student_id": student.ID, "subject_id": subject.ID, "quarter": 1}, &grade)
	assert.InDelta(t, 83.0, grade.InitialGrade, 0.001)
	assert.Equal(t, 89, grade.QuarterlyGrade)

	var transmuted map[string]int
	mustSucceed(t, d, "", "grade.transmute", map[string]any{"initial_grade": 83}, &transmuted)
	assert.Equal(t, 89, transmuted["quarterly_grade"])
}

func TestHandle_SessionAndActor(t *testing.T) {
	d := newTestDispatcher(t)

	var user primary.User
	mustSucceed(t, d, "", "auth.create_user", map[string]any{
		"email": "teacher@school.edu", "password": "correct horse", "first_name": "Maria", "last_name": "Santos",
	}, &user)

	resp, _ := call(t, d, "", "auth.login", map[string]any{"email": "teacher@school.edu", "password": "wrong horse"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthenticated, resp.Error.Code)

	var login primary.LoginResponse
	mustSucceed(t, d, "", "auth.login", map[string]any{"email": "teacher@school.edu", "password": "correct horse"}, &login)
	token := login.Session.Token
	require.NotEmpty(t, token)

	var section primary.Section
	mustSucceed(t, d, token, "section.create", map[string]any{"name": "Rizal"}, &section)
	var subject primary.Subject
	mustSucceed(t, d, token, "subject.create", map[string]any{"code": "ENG7", "name": "English"}, &subject)

	var assignment primary.Assignment
	mustSucceed(t, d, token, "subject.assign", map[string]any{"subject_id": subject.ID, "section_id": section.ID}, &assignment)
	assert.Equal(t, user.ID, assignment.TeacherID, "acting user becomes the teacher")

	resp, _ = call(t, d, "not-a-token", "section.list", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthenticated, resp.Error.Code)

	mustSucceed(t, d, "", "auth.logout", map[string]any{"token": token}, nil)
	resp, _ = call(t, d, "", "auth.validate_session", map[string]any{"token": token})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthenticated, resp.Error.Code)
}

func TestHandle_SyncWithoutRemote(t *testing.T) {
	d := newTestDispatcher(t)

	resp, _ := call(t, d, "", "sync.push", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRemoteNotConfigured, resp.Error.Code)

	var status primary.SyncStatus
	mustSucceed(t, d, "", "sync.status", nil, &status)
	assert.False(t, status.Configured)
	assert.Zero(t, status.Pending)
}

// ============================================================================
// Serve
// ============================================================================

func TestServe(t *testing.T) {
	d := newTestDispatcher(t)

	in := strings.Join([]string{
		`{"id":"1","op":"section.create","payload":{"name":"Rizal"}}`,
		``,
		`not json`,
		`{"id":"2","op":"section.list"}`,
		`{"id":"3","op":"nope"}`,
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, d.Serve(context.Background(), strings.NewReader(in), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)

	var responses []Response
	for _, line := range lines {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}

	assert.True(t, responses[0].Success)
	assert.Equal(t, "1", responses[0].ID)
	assert.False(t, responses[1].Success)
	assert.Equal(t, CodeBadRequest, responses[1].Error.Code)
	assert.True(t, responses[2].Success)
	assert.Len(t, responses[2].Data, 1)
	assert.Equal(t, CodeUnknownOp, responses[3].Error.Code)
}

func TestServe_StopsOnCancelledContext(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := d.Serve(ctx, strings.NewReader(`{"op":"section.list"}`+"\n"), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}
