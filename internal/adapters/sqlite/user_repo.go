package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// UserRepository implements secondary.UserRepository with SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ secondary.UserRepository = (*UserRepository)(nil)

const userColumns = `id, email, password_hash, salt, first_name, last_name, role, is_active,
	failed_login_attempts, last_login, last_failed_login, cached_password, created_at, updated_at`

func scanUser(row rowScanner) (*secondary.UserRecord, error) {
	var (
		u                     secondary.UserRecord
		firstName, lastName   sql.NullString
		active                int
		lastLogin, lastFailed sql.NullString
		cachedPassword        sql.NullString
		createdAt, updatedAt  sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Salt, &firstName, &lastName, &u.Role, &active,
		&u.FailedLoginAttempts, &lastLogin, &lastFailed, &cachedPassword, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.IsActive = active == 1
	u.LastLogin = db.NullTime(lastLogin)
	u.LastFailedLogin = db.NullTime(lastFailed)
	u.CachedPassword = cachedPassword.String
	u.CreatedAt = db.NullTime(createdAt)
	u.UpdatedAt = db.NullTime(updatedAt)
	return &u, nil
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *secondary.UserRecord) error {
	stamp(&u.CreatedAt, &u.UpdatedAt)
	if u.Role == "" {
		u.Role = "teacher"
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, u.Salt, nullString(u.FirstName), nullString(u.LastName), u.Role,
		boolInt(u.IsActive), u.FailedLoginAttempts, db.TimeOrNull(u.LastLogin), db.TimeOrNull(u.LastFailedLogin),
		nullString(u.CachedPassword), db.FormatTime(u.CreatedAt), db.FormatTime(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by its ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*secondary.UserRecord, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*secondary.UserRecord, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? COLLATE NOCASE", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List retrieves all users ordered by email.
func (r *UserRepository) List(ctx context.Context) ([]*secondary.UserRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY email ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*secondary.UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// RecordLoginSuccess resets failed attempts and stamps last_login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, id, "record login",
		"UPDATE users SET failed_login_attempts = 0, last_login = ?, updated_at = ? WHERE id = ?",
		db.FormatTime(at), db.FormatTime(at), id,
	)
}

// RecordLoginFailure increments failed attempts and stamps last_failed_login.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, id, "record failed login",
		"UPDATE users SET failed_login_attempts = failed_login_attempts + 1, last_failed_login = ?, updated_at = ? WHERE id = ?",
		db.FormatTime(at), db.FormatTime(at), id,
	)
}

// UpdatePassword replaces the password hash and salt.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash, salt string) error {
	return r.exec(ctx, id, "update password",
		"UPDATE users SET password_hash = ?, salt = ?, updated_at = ? WHERE id = ?",
		hash, salt, db.FormatTime(time.Now()), id,
	)
}

// SetCachedPassword stores or clears the encrypted offline password.
func (r *UserRepository) SetCachedPassword(ctx context.Context, id, encrypted string) error {
	return r.exec(ctx, id, "cache password",
		"UPDATE users SET cached_password = ?, updated_at = ? WHERE id = ?",
		nullString(encrypted), db.FormatTime(time.Now()), id,
	)
}

func (r *UserRepository) exec(ctx context.Context, id, action, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return requireAffected(res, "user", id)
}
