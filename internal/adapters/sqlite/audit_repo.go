package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with SQLite.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ secondary.AuditRepository = (*AuditRepository)(nil)

// Append writes an audit entry.
func (r *AuditRepository) Append(ctx context.Context, e *secondary.AuditRecord) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO audit_log (user_id, action, details, created_at) VALUES (?, ?, ?, ?)",
		nullString(e.UserID), e.Action, nullString(e.Details), db.FormatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// List retrieves audit entries, newest first.
func (r *AuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	query := "SELECT id, user_id, action, details, created_at FROM audit_log WHERE 1=1"
	var args []any

	if filters.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filters.UserID)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditRecord
	for rows.Next() {
		var (
			e               secondary.AuditRecord
			userID, details sql.NullString
			createdAt       sql.NullString
		)
		if err := rows.Scan(&e.ID, &userID, &e.Action, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.UserID = userID.String
		e.Details = details.String
		e.CreatedAt = db.NullTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
