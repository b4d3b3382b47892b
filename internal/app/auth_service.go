package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/gradebook/internal/core/credential"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// DefaultSessionTTL is used when no session lifetime is configured.
const DefaultSessionTTL = 12 * time.Hour

// Audit log actions.
const (
	AuditUserCreated     = "USER_CREATED"
	AuditLoginSuccess    = "LOGIN_SUCCESS"
	AuditLoginFailed     = "LOGIN_FAILED"
	AuditLogout          = "LOGOUT"
	AuditPasswordChanged = "PASSWORD_CHANGED"
)

// RoleTeacher is the role of accounts created without one.
const RoleTeacher = "teacher"

// AuthConfig tunes the AuthService.
type AuthConfig struct {
	SessionTTL time.Duration
	// Now is the clock sessions are checked against. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// AuthServiceImpl implements the AuthService interface.
type AuthServiceImpl struct {
	userRepo    secondary.UserRepository
	sessionRepo secondary.SessionRepository
	auditRepo   secondary.AuditRepository
	cipher      *credential.Cipher
	validator   *validation.Validator
	sessionTTL  time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewAuthService creates a new AuthService with injected dependencies.
func NewAuthService(
	userRepo secondary.UserRepository,
	sessionRepo secondary.SessionRepository,
	auditRepo secondary.AuditRepository,
	cipher *credential.Cipher,
	validator *validation.Validator,
	cfg AuthConfig,
) *AuthServiceImpl {
	s := &AuthServiceImpl{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		auditRepo:   auditRepo,
		cipher:      cipher,
		validator:   validator,
		sessionTTL:  cfg.SessionTTL,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateUser registers a local account.
func (s *AuthServiceImpl) CreateUser(ctx context.Context, req primary.CreateUserRequest) (*primary.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	_, err := s.userRepo.GetByEmail(ctx, email)
	exists, err := found(err)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, validation.Invalid("email", fmt.Sprintf("email %s is already registered", email))
	}

	salt, err := credential.NewSalt()
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RoleTeacher
	}

	record := &secondary.UserRecord{
		ID:           newID(),
		Email:        email,
		PasswordHash: credential.HashPassword(req.Password, salt),
		Salt:         salt,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.audit(ctx, record.ID, AuditUserCreated, email)

	created, err := s.userRepo.GetByID(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created user: %w", err)
	}
	return recordToUser(created), nil
}

// AuthenticateUser checks credentials. A miss returns (nil, nil).
func (s *AuthServiceImpl) AuthenticateUser(ctx context.Context, email, password string) (*primary.User, error) {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.userRepo.GetByEmail(ctx, email)
	exists, err := found(err)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		s.audit(ctx, "", AuditLoginFailed, "unknown email "+email)
		return nil, nil
	}

	if !user.IsActive {
		s.audit(ctx, user.ID, AuditLoginFailed, "account inactive")
		return nil, nil
	}

	if !credential.VerifyPassword(password, user.PasswordHash, user.Salt) {
		if err := s.userRepo.RecordLoginFailure(ctx, user.ID, now); err != nil {
			return nil, fmt.Errorf("failed to record login failure: %w", err)
		}
		s.audit(ctx, user.ID, AuditLoginFailed, "wrong password")
		return nil, nil
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	s.audit(ctx, user.ID, AuditLoginSuccess, "")

	user.FailedLoginAttempts = 0
	user.LastLogin = now
	return recordToUser(user), nil
}

// Login authenticates and opens a session.
func (s *AuthServiceImpl) Login(ctx context.Context, req primary.LoginRequest) (*primary.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.AuthenticateUser(ctx, req.Email, req.Password)
	if err != nil || user == nil {
		return nil, err
	}

	session, err := s.CreateSession(ctx, user.ID, 0)
	if err != nil {
		return nil, err
	}

	if req.Remember {
		if err := s.RememberPassword(ctx, user.ID, req.Password); err != nil {
			return nil, err
		}
	}
	return &primary.LoginResponse{User: user, Session: session}, nil
}

// CreateSession opens a session for userID.
func (s *AuthServiceImpl) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*primary.Session, error) {
	if ttl <= 0 {
		ttl = s.sessionTTL
	}

	token, err := credential.NewSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &secondary.SessionRecord{
		ID:           token,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastActivity: now,
	}
	if err := s.sessionRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return recordToSession(record), nil
}

// ValidateSession returns the live session for token, refreshing its
// last activity. Missing or expired sessions yield (nil, nil).
func (s *AuthServiceImpl) ValidateSession(ctx context.Context, token string) (*primary.Session, error) {
	if token == "" {
		return nil, nil
	}

	record, err := s.sessionRepo.Get(ctx, token)
	exists, err := found(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !exists {
		return nil, nil
	}

	now := s.now()
	if !credential.SessionActive(record.ExpiresAt, now) {
		return nil, nil
	}

	if err := s.sessionRepo.Touch(ctx, token, now); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	record.LastActivity = now
	return recordToSession(record), nil
}

// Logout ends a session.
func (s *AuthServiceImpl) Logout(ctx context.Context, token string) error {
	record, err := s.sessionRepo.Get(ctx, token)
	exists, err := found(err)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if !exists {
		return nil
	}

	if err := s.sessionRepo.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.audit(ctx, record.UserID, AuditLogout, "")
	return nil
}

// ChangePassword replaces a user's password after checking the current one.
// Any cached offline password is dropped.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, req primary.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	exists, err := found(err)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !exists {
		return validation.Invalid("user_id", fmt.Sprintf("user %s not found", req.UserID))
	}
	if !credential.VerifyPassword(req.CurrentPassword, user.PasswordHash, user.Salt) {
		return validation.Invalid("current_password", "current password is incorrect")
	}

	salt, err := credential.NewSalt()
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, credential.HashPassword(req.NewPassword, salt), salt); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.userRepo.SetCachedPassword(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("failed to clear cached password: %w", err)
	}
	s.audit(ctx, user.ID, AuditPasswordChanged, "")
	return nil
}

// PurgeExpiredSessions deletes dead sessions.
func (s *AuthServiceImpl) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}

// ListAuditLog retrieves audit entries, newest first.
func (s *AuthServiceImpl) ListAuditLog(ctx context.Context, filters primary.AuditLogFilters) ([]*primary.AuditEntry, error) {
	records, err := s.auditRepo.List(ctx, secondary.AuditFilters{UserID: filters.UserID, Limit: filters.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}

	entries := make([]*primary.AuditEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.AuditEntry{
			ID:        r.ID,
			UserID:    r.UserID,
			Action:    r.Action,
			Details:   r.Details,
			CreatedAt: formatTime(r.CreatedAt),
		}
	}
	return entries, nil
}

// RememberPassword caches the password encrypted with the process key.
func (s *AuthServiceImpl) RememberPassword(ctx context.Context, userID, password string) error {
	sealed, err := s.cipher.Encrypt(password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	if err := s.userRepo.SetCachedPassword(ctx, userID, sealed); err != nil {
		return fmt.Errorf("failed to cache password: %w", err)
	}
	return nil
}

// RecallPassword returns the cached password. A cache written under a lost
// key is treated as absent.
func (s *AuthServiceImpl) RecallPassword(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	exists, err := found(err)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if !exists || user.CachedPassword == "" {
		return "", nil
	}

	password, err := s.cipher.Decrypt(user.CachedPassword)
	if errors.Is(err, credential.ErrUndecryptable) {
		s.logger.Warn("cached password cannot be decrypted", zap.String("user_id", userID))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return password, nil
}

// Helper methods

// audit appends an audit entry. Failures are logged, not returned.
func (s *AuthServiceImpl) audit(ctx context.Context, userID, action, details string) {
	err := s.auditRepo.Append(ctx, &secondary.AuditRecord{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error("failed to write audit entry", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func recordToUser(r *secondary.UserRecord) *primary.User {
	return &primary.User{
		ID:                  r.ID,
		Email:               r.Email,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Role:                r.Role,
		IsActive:            r.IsActive,
		FailedLoginAttempts: r.FailedLoginAttempts,
		LastLogin:           formatTime(r.LastLogin),
		CreatedAt:           formatTime(r.CreatedAt),
	}
}

func recordToSession(r *secondary.SessionRecord) *primary.Session {
	return &primary.Session{
		Token:        r.ID,
		UserID:       r.UserID,
		CreatedAt:    formatTime(r.CreatedAt),
		ExpiresAt:    formatTime(r.ExpiresAt),
		LastActivity: formatTime(r.LastActivity),
	}
}

// Ensure AuthServiceImpl implements the interface.
var _ primary.AuthService = (*AuthServiceImpl)(nil)
