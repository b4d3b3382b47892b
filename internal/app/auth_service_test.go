package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/gradebook/internal/core/credential"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockUserRepository implements secondary.UserRepository for testing.
type mockUserRepository struct {
	users     map[string]*secondary.UserRecord
	createErr error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*secondary.UserRecord)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *secondary.UserRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*secondary.UserRecord, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, secondary.ErrNotFound)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*secondary.UserRecord, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, secondary.ErrNotFound)
}

func (m *mockUserRepository) List(ctx context.Context) ([]*secondary.UserRecord, error) {
	var result []*secondary.UserRecord
	for _, u := range m.users {
		result = append(result, u)
	}
	return result, nil
}

func (m *mockUserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.FailedLoginAttempts = 0
		u.LastLogin = at
	}
	return nil
}

func (m *mockUserRepository) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.FailedLoginAttempts++
		u.LastFailedLogin = at
	}
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, hash, salt string) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
		u.Salt = salt
	}
	return nil
}

func (m *mockUserRepository) SetCachedPassword(ctx context.Context, id, encrypted string) error {
	if u, ok := m.users[id]; ok {
		u.CachedPassword = encrypted
	}
	return nil
}

// mockSessionRepository implements secondary.SessionRepository for testing.
type mockSessionRepository struct {
	sessions map[string]*secondary.SessionRecord
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]*secondary.SessionRecord)}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *secondary.SessionRecord) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionRepository) Get(ctx context.Context, id string) (*secondary.SessionRecord, error) {
	if s, ok := m.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, fmt.Errorf("session: %w", secondary.ErrNotFound)
}

func (m *mockSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = at
	}
	return nil
}

func (m *mockSessionRepository) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// mockAuditRepository implements secondary.AuditRepository for testing.
type mockAuditRepository struct {
	entries   []*secondary.AuditRecord
	appendErr error
}

func (m *mockAuditRepository) Append(ctx context.Context, entry *secondary.AuditRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	var result []*secondary.AuditRecord
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filters.UserID != "" && e.UserID != filters.UserID {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *mockAuditRepository) actions() []string {
	actions := make([]string, len(m.entries))
	for i, e := range m.entries {
		actions[i] = e.Action
	}
	return actions
}

// ============================================================================
// Test Helpers
// ============================================================================

type authFixture struct {
	service  *AuthServiceImpl
	users    *mockUserRepository
	sessions *mockSessionRepository
	audit    *mockAuditRepository
	clock    *fakeClock
}

func newTestAuthService(t *testing.T) *authFixture {
	t.Helper()
	cipher, err := credential.NewCipher([]byte(strings.Repeat("a", 32)))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	f := &authFixture{
		users:    newMockUserRepository(),
		sessions: newMockSessionRepository(),
		audit:    &mockAuditRepository{},
		clock:    &fakeClock{now: time.Date(2024, 8, 1, 7, 30, 0, 0, time.UTC)},
	}
	f.service = NewAuthService(f.users, f.sessions, f.audit, cipher, validation.New(), AuthConfig{
		SessionTTL: time.Hour,
		Now:        f.clock.Now,
	})
	return f
}

func (f *authFixture) createUser(t *testing.T) *primary.User {
	t.Helper()
	user, err := f.service.CreateUser(context.Background(), primary.CreateUserRequest{
		Email:     "Teacher@School.edu",
		Password:  "correct horse",
		FirstName: "Maria",
		LastName:  "Clara",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// ============================================================================
// CreateUser Tests
// ============================================================================

func TestCreateUser_Success(t *testing.T) {
	f := newTestAuthService(t)

	user := f.createUser(t)

	if user.Email != "teacher@school.edu" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.Role != RoleTeacher {
		t.Errorf("expected default role %q, got %q", RoleTeacher, user.Role)
	}
	if !user.IsActive {
		t.Error("expected new user to be active")
	}

	stored := f.users.users[user.ID]
	if stored.PasswordHash == "correct horse" || stored.Salt == "" {
		t.Error("expected password to be stored hashed with a salt")
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != AuditUserCreated {
		t.Errorf("expected USER_CREATED audit entry, got %v", got)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	f := newTestAuthService(t)
	f.createUser(t)

	_, err := f.service.CreateUser(context.Background(), primary.CreateUserRequest{
		Email:     "teacher@school.edu",
		Password:  "another secret",
		FirstName: "Juan",
		LastName:  "Luna",
	})
	if !validation.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   primary.CreateUserRequest
		field string
	}{
		{"bad email", primary.CreateUserRequest{Email: "nope", Password: "longenough", FirstName: "A", LastName: "B"}, "email"},
		{"short password", primary.CreateUserRequest{Email: "a@b.co", Password: "short", FirstName: "A", LastName: "B"}, "password"},
		{"blank name", primary.CreateUserRequest{Email: "a@b.co", Password: "longenough", FirstName: "  ", LastName: "B"}, "first_name"},
		{"unknown role", primary.CreateUserRequest{Email: "a@b.co", Password: "longenough", FirstName: "A", LastName: "B", Role: "janitor"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestAuthService(t)
			_, err := f.service.CreateUser(context.Background(), tt.req)

			var verr *validation.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.FieldMap()[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, verr.FieldMap())
			}
		})
	}
}

// ============================================================================
// Authentication Tests
// ============================================================================

func TestAuthenticateUser(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)

	user, err := f.service.AuthenticateUser(ctx, "teacher@school.edu", "wrong password")
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) for wrong password, got (%v, %v)", user, err)
	}
	if f.users.users[created.ID].FailedLoginAttempts != 1 {
		t.Error("expected failed attempt to be recorded")
	}

	user, err = f.service.AuthenticateUser(ctx, "nobody@school.edu", "correct horse")
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) for unknown email, got (%v, %v)", user, err)
	}

	user, err = f.service.AuthenticateUser(ctx, " TEACHER@school.edu", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.ID != created.ID {
		t.Fatalf("expected user %s, got %v", created.ID, user)
	}
	if user.FailedLoginAttempts != 0 {
		t.Errorf("expected failed attempts reset, got %d", user.FailedLoginAttempts)
	}

	want := []string{AuditUserCreated, AuditLoginFailed, AuditLoginFailed, AuditLoginSuccess}
	if got := f.audit.actions(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected audit trail %v, got %v", want, got)
	}
}

func TestAuthenticateUser_InactiveAccount(t *testing.T) {
	f := newTestAuthService(t)
	created := f.createUser(t)
	f.users.users[created.ID].IsActive = false

	user, err := f.service.AuthenticateUser(context.Background(), "teacher@school.edu", "correct horse")
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) for inactive account, got (%v, %v)", user, err)
	}
}

func TestAuthenticateUser_AuditFailureDoesNotFailLogin(t *testing.T) {
	f := newTestAuthService(t)
	f.createUser(t)
	f.audit.appendErr = errors.New("disk full")

	user, err := f.service.AuthenticateUser(context.Background(), "teacher@school.edu", "correct horse")
	if err != nil || user == nil {
		t.Fatalf("expected login to succeed, got (%v, %v)", user, err)
	}
}

// ============================================================================
// Session Tests
// ============================================================================

func TestLogin_CreatesSessionAndRemembersPassword(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)

	resp, err := f.service.Login(ctx, primary.LoginRequest{
		Email:    "teacher@school.edu",
		Password: "correct horse",
		Remember: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.Session == nil {
		t.Fatal("expected a session")
	}
	if resp.Session.ExpiresAt != "2024-08-01T08:30:00Z" {
		t.Errorf("expected expiry one hour out, got %s", resp.Session.ExpiresAt)
	}

	cached := f.users.users[created.ID].CachedPassword
	if cached == "" || cached == "correct horse" {
		t.Errorf("expected encrypted cached password, got %q", cached)
	}
	recalled, err := f.service.RecallPassword(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recalled != "correct horse" {
		t.Errorf("expected recalled password, got %q", recalled)
	}
}

func TestLogin_WrongPasswordReturnsNil(t *testing.T) {
	f := newTestAuthService(t)
	f.createUser(t)

	resp, err := f.service.Login(context.Background(), primary.LoginRequest{Email: "teacher@school.edu", Password: "nope"})
	if err != nil || resp != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", resp, err)
	}
	if len(f.sessions.sessions) != 0 {
		t.Error("expected no session to be created")
	}
}

func TestValidateSession_Expiry(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)

	session, err := f.service.CreateSession(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.clock.Advance(30 * time.Minute)
	live, err := f.service.ValidateSession(ctx, session.Token)
	if err != nil || live == nil {
		t.Fatalf("expected live session, got (%v, %v)", live, err)
	}
	if live.LastActivity != "2024-08-01T08:00:00Z" {
		t.Errorf("expected last activity refreshed, got %s", live.LastActivity)
	}

	f.clock.Advance(30 * time.Minute)
	expired, err := f.service.ValidateSession(ctx, session.Token)
	if err != nil || expired != nil {
		t.Fatalf("expected session to expire at its deadline, got (%v, %v)", expired, err)
	}

	missing, err := f.service.ValidateSession(ctx, "no-such-token")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown token, got (%v, %v)", missing, err)
	}
}

func TestLogout(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)
	session, _ := f.service.CreateSession(ctx, created.ID, 0)

	if err := f.service.Logout(ctx, session.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.sessions.sessions[session.Token]; ok {
		t.Error("expected session to be deleted")
	}
	// logging out twice is harmless
	if err := f.service.Logout(ctx, session.Token); err != nil {
		t.Fatalf("unexpected error on second logout: %v", err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)

	_, _ = f.service.CreateSession(ctx, created.ID, 10*time.Minute)
	_, _ = f.service.CreateSession(ctx, created.ID, 0)
	_, _ = f.service.CreateSession(ctx, created.ID, 2*time.Hour)
	f.clock.Advance(time.Hour)

	n, err := f.service.PurgeExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 purged (10m and the 1h default), got %d", n)
	}
	if len(f.sessions.sessions) != 1 {
		t.Errorf("expected the 2h session to remain, got %d left", len(f.sessions.sessions))
	}
}

// ============================================================================
// Password Tests
// ============================================================================

func TestChangePassword(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)
	if err := f.service.RememberPassword(ctx, created.ID, "correct horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldSalt := f.users.users[created.ID].Salt

	err := f.service.ChangePassword(ctx, primary.ChangePasswordRequest{
		UserID:          created.ID,
		CurrentPassword: "wrong",
		NewPassword:     "battery staple",
	})
	if !validation.IsValidationError(err) {
		t.Fatalf("expected validation error for wrong current password, got %v", err)
	}

	err = f.service.ChangePassword(ctx, primary.ChangePasswordRequest{
		UserID:          created.ID,
		CurrentPassword: "correct horse",
		NewPassword:     "battery staple",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.users.users[created.ID]
	if stored.Salt == oldSalt {
		t.Error("expected a fresh salt")
	}
	if stored.CachedPassword != "" {
		t.Error("expected cached password to be cleared")
	}
	if user, _ := f.service.AuthenticateUser(ctx, "teacher@school.edu", "battery staple"); user == nil {
		t.Error("expected new password to authenticate")
	}
}

func TestChangePassword_SamePasswordRejected(t *testing.T) {
	f := newTestAuthService(t)
	created := f.createUser(t)

	err := f.service.ChangePassword(context.Background(), primary.ChangePasswordRequest{
		UserID:          created.ID,
		CurrentPassword: "correct horse",
		NewPassword:     "correct horse",
	})
	if !validation.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecallPassword_LostKey(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)

	other, err := credential.NewCipher([]byte(strings.Repeat("b", 32)))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	sealed, _ := other.Encrypt("correct horse")
	f.users.users[created.ID].CachedPassword = sealed

	recalled, err := f.service.RecallPassword(ctx, created.ID)
	if err != nil {
		t.Fatalf("expected no error for undecryptable cache, got %v", err)
	}
	if recalled != "" {
		t.Errorf("expected empty password, got %q", recalled)
	}
}

func TestListAuditLog(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created := f.createUser(t)
	_, _ = f.service.AuthenticateUser(ctx, "unknown@school.edu", "x")

	entries, err := f.service.ListAuditLog(ctx, primary.AuditLogFilters{UserID: created.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != AuditUserCreated {
		t.Errorf("expected only the user's own entry, got %v", entries)
	}
	if entries[0].CreatedAt != "2024-08-01T07:30:00Z" {
		t.Errorf("expected clock timestamp, got %s", entries[0].CreatedAt)
	}
}
