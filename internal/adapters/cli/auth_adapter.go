package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/gradebook/internal/ports/primary"
)

// ErrLoginRejected is returned when credentials do not match an active account.
var ErrLoginRejected = errors.New("invalid email or password")

// AuthAdapter translates CLI operations to AuthService calls.
type AuthAdapter struct {
	service primary.AuthService
	out     io.Writer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(service primary.AuthService, out io.Writer) *AuthAdapter {
	return &AuthAdapter{service: service, out: out}
}

// CreateUser registers a local account.
func (a *AuthAdapter) CreateUser(ctx context.Context, req primary.CreateUserRequest) error {
	user, err := a.service.CreateUser(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created %s account %s for %s %s\n", okMark(), user.Role, user.Email, user.FirstName, user.LastName)
	return nil
}

// Login opens a session and returns it.
func (a *AuthAdapter) Login(ctx context.Context, req primary.LoginRequest) (*primary.Session, error) {
	resp, err := a.service.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrLoginRejected
	}
	fmt.Fprintf(a.out, "%s Signed in as %s (session expires %s)\n", okMark(), resp.User.Email, resp.Session.ExpiresAt)
	return resp.Session, nil
}

// Logout ends a session.
func (a *AuthAdapter) Logout(ctx context.Context, token string) error {
	if err := a.service.Logout(ctx, token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Signed out\n", okMark())
	return nil
}

// ChangePassword replaces the password of userID.
func (a *AuthAdapter) ChangePassword(ctx context.Context, req primary.ChangePasswordRequest) error {
	if err := a.service.ChangePassword(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Password changed\n", okMark())
	return nil
}

// AuditLog prints credential audit entries.
func (a *AuthAdapter) AuditLog(ctx context.Context, filters primary.AuditLogFilters) error {
	entries, err := a.service.ListAuditLog(ctx, filters)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No audit entries")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-30s %-18s %-38s %s\n", "WHEN", "ACTION", "USER", "DETAILS")
	fmt.Fprintln(a.out, rule)
	for _, e := range entries {
		fmt.Fprintf(a.out, "%-30s %-18s %-38s %s\n", e.CreatedAt, e.Action, e.UserID, e.Details)
	}
	fmt.Fprintln(a.out)
	return nil
}
