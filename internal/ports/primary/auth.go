package primary

import (
	"context"
	"time"
)

// AuthService defines the primary port for local accounts and sessions.
//
// Authentication failures are not errors: a wrong password, an unknown email
// or an inactive account yields a nil user. Only storage failures propagate.
type AuthService interface {
	// CreateUser registers a local account.
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)

	// AuthenticateUser checks credentials and records the outcome.
	AuthenticateUser(ctx context.Context, email, password string) (*User, error)

	// Login authenticates and opens a session. A nil response means the
	// credentials were rejected.
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)

	// CreateSession opens a session for userID. A non-positive ttl uses the
	// configured default.
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (*Session, error)

	// ValidateSession returns the live session for token, or nil when it is
	// missing or expired.
	ValidateSession(ctx context.Context, token string) (*Session, error)

	// Logout ends a session.
	Logout(ctx context.Context, token string) error

	// ChangePassword replaces a user's password after checking the current one.
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error

	// PurgeExpiredSessions deletes dead sessions and returns how many.
	PurgeExpiredSessions(ctx context.Context) (int64, error)

	// ListAuditLog retrieves credential audit entries, newest first.
	ListAuditLog(ctx context.Context, filters AuditLogFilters) ([]*AuditEntry, error)

	// RememberPassword caches the password encrypted for offline login.
	RememberPassword(ctx context.Context, userID, password string) error

	// RecallPassword returns the cached password, or "" when none is cached
	// or it can no longer be decrypted.
	RecallPassword(ctx context.Context, userID string) (string, error)
}

// CreateUserRequest contains parameters for creating a user.
type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
	Role      string `json:"role" validate:"omitempty,oneof=teacher adviser admin"`
}

// LoginRequest contains credentials for Login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	// Remember caches the password for offline login.
	Remember bool `json:"remember"`
}

// LoginResponse contains the authenticated user and their new session.
type LoginResponse struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

// ChangePasswordRequest contains parameters for changing a password.
type ChangePasswordRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,nefield=CurrentPassword"`
}

// AuditLogFilters contains filter options for the audit log.
type AuditLogFilters struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// User represents a local account at the port boundary. Credentials never
// cross it.
type User struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Role                string `json:"role"`
	IsActive            bool   `json:"is_active"`
	FailedLoginAttempts int    `json:"failed_login_attempts"`
	LastLogin           string `json:"last_login,omitempty"`
	CreatedAt           string `json:"created_at"`
}

// Session represents a login session.
type Session struct {
	Token        string `json:"token"`
	UserID       string `json:"user_id"`
	CreatedAt    string `json:"created_at"`
	ExpiresAt    string `json:"expires_at"`
	LastActivity string `json:"last_activity"`
}

// AuditEntry is one credential audit log row.
type AuditEntry struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}
