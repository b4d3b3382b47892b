package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// SyncHistoryRepository implements secondary.SyncHistoryRepository with SQLite.
type SyncHistoryRepository struct {
	db *sql.DB
}

// NewSyncHistoryRepository creates a new SQLite sync history repository.
func NewSyncHistoryRepository(db *sql.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

var _ secondary.SyncHistoryRepository = (*SyncHistoryRepository)(nil)

// Create appends a completed sync pass.
func (r *SyncHistoryRepository) Create(ctx context.Context, h *secondary.SyncHistoryRecord) (int64, error) {
	var details sql.NullString
	if len(h.Details) > 0 {
		body, err := json.Marshal(h.Details)
		if err != nil {
			return 0, fmt.Errorf("failed to encode sync details: %w", err)
		}
		details = sql.NullString{String: string(body), Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_history (sync_type, started_at, completed_at, records_synced, records_failed, status, error_message, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.SyncType, db.FormatTime(h.StartedAt), db.TimeOrNull(h.CompletedAt),
		h.RecordsSynced, h.RecordsFailed, h.Status, nullString(h.ErrorMessage), details,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record sync history: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sync history id: %w", err)
	}
	h.ID = id
	return id, nil
}

// List retrieves passes, newest first.
func (r *SyncHistoryRepository) List(ctx context.Context, limit int) ([]*secondary.SyncHistoryRecord, error) {
	query := `SELECT id, sync_type, started_at, completed_at, records_synced, records_failed, status, error_message, details
		FROM sync_history ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}
	defer rows.Close()

	var history []*secondary.SyncHistoryRecord
	for rows.Next() {
		var (
			h                      secondary.SyncHistoryRecord
			startedAt, completedAt sql.NullString
			errMsg, details        sql.NullString
		)
		err := rows.Scan(&h.ID, &h.SyncType, &startedAt, &completedAt, &h.RecordsSynced, &h.RecordsFailed,
			&h.Status, &errMsg, &details)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync history: %w", err)
		}
		h.StartedAt = db.NullTime(startedAt)
		h.CompletedAt = db.NullTime(completedAt)
		h.ErrorMessage = errMsg.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &h.Details); err != nil {
				return nil, fmt.Errorf("failed to decode sync details: %w", err)
			}
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}
