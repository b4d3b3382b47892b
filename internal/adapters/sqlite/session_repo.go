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

// SessionRepository implements secondary.SessionRepository with SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ secondary.SessionRepository = (*SessionRepository)(nil)

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, s *secondary.SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, created_at, expires_at, last_activity) VALUES (?, ?, ?, ?, ?)",
		s.ID, s.UserID, db.FormatTime(s.CreatedAt), db.FormatTime(s.ExpiresAt), db.FormatTime(s.LastActivity),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by token. Expiry is the caller's concern.
func (r *SessionRepository) Get(ctx context.Context, id string) (*secondary.SessionRecord, error) {
	var (
		s                          secondary.SessionRecord
		created, expires, lastSeen string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, expires_at, last_activity FROM sessions WHERE id = ?", id,
	).Scan(&s.ID, &s.UserID, &created, &expires, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if s.ExpiresAt, err = db.ParseTime(expires); err != nil {
		return nil, err
	}
	if s.LastActivity, err = db.ParseTime(lastSeen); err != nil {
		return nil, err
	}
	return &s, nil
}

// Touch stamps last_activity.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE sessions SET last_activity = ? WHERE id = ?", db.FormatTime(at), id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session expired at now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", db.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}
