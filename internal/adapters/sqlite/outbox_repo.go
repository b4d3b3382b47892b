// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/gradebook/internal/core/outbox"
	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// stamp fills created/updated for a new record.
func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// prefixColumns qualifies a column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// appendOutbox queues one mutation inside the caller's transaction.
func appendOutbox(ctx context.Context, tx *sql.Tx, table string, op outbox.Operation, recordID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", table, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sync_queue (table_name, operation, record_id, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		table, string(op), recordID, string(body), db.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to queue %s %s: %w", op, table, err)
	}
	return nil
}

// deletePayload is the body queued for DELETE entries.
func deletePayload(id string) map[string]string {
	return map[string]string{"id": id}
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, secondary.ErrNotFound)
	}
	return nil
}

// OutboxRepository implements secondary.OutboxRepository with SQLite.
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new SQLite outbox repository.
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

var _ secondary.OutboxRepository = (*OutboxRepository)(nil)

const outboxColumns = `id, table_name, operation, record_id, payload, synced, attempts,
	last_error, last_attempt_at, next_attempt_at, created_at, synced_at`

func scanOutboxEntry(row rowScanner) (*secondary.OutboxEntry, error) {
	var (
		entry                    secondary.OutboxEntry
		payload                  string
		synced                   int
		lastError                sql.NullString
		lastAttempt, nextAttempt sql.NullString
		createdAt, syncedAt      sql.NullString
	)
	err := row.Scan(&entry.ID, &entry.TableName, &entry.Operation, &entry.RecordID, &payload,
		&synced, &entry.Attempts, &lastError, &lastAttempt, &nextAttempt, &createdAt, &syncedAt)
	if err != nil {
		return nil, err
	}
	entry.Payload = json.RawMessage(payload)
	entry.Synced = synced == 1
	entry.LastError = lastError.String
	entry.LastAttemptAt = db.NullTime(lastAttempt)
	entry.NextAttemptAt = db.NullTime(nextAttempt)
	entry.CreatedAt = db.NullTime(createdAt)
	entry.SyncedAt = db.NullTime(syncedAt)
	return &entry, nil
}

func (r *OutboxRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.OutboxEntry
	for rows.Next() {
		entry, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Drain returns every unsynced entry in global creation order.
func (r *OutboxRepository) Drain(ctx context.Context) ([]*secondary.OutboxEntry, error) {
	return r.query(ctx,
		"SELECT "+outboxColumns+" FROM sync_queue WHERE synced = 0 ORDER BY created_at ASC, id ASC")
}

// List retrieves entries matching filters, oldest first.
func (r *OutboxRepository) List(ctx context.Context, filters secondary.OutboxFilters) ([]*secondary.OutboxEntry, error) {
	query := "SELECT " + outboxColumns + " FROM sync_queue WHERE 1=1"
	var args []any

	if !filters.IncludeSynced {
		query += " AND synced = 0"
	}
	if filters.TableName != "" {
		query += " AND table_name = ?"
		args = append(args, filters.TableName)
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.query(ctx, query, args...)
}

// MarkSynced flags entries as acknowledged by the server. Entries already
// synced keep their first sync time.
func (r *OutboxRepository) MarkSynced(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	args := []any{db.FormatTime(at)}
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE sync_queue SET synced = 1, synced_at = ?, last_error = NULL, next_attempt_at = NULL WHERE synced = 0 AND id IN ("+placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entries synced: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and the earliest retry time.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, errMsg string, at, nextAttempt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue
		 SET attempts = attempts + 1, last_error = ?, last_attempt_at = ?, next_attempt_at = ?
		 WHERE id = ? AND synced = 0`,
		nullString(errMsg), db.FormatTime(at), db.TimeOrNull(nextAttempt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return requireAffected(res, "outbox entry", fmt.Sprint(id))
}

// CountPending returns the number of unsynced entries.
func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue WHERE synced = 0").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return count, nil
}

// HasPending reports whether a record still has unsynced entries.
func (r *OutboxRepository) HasPending(ctx context.Context, table, recordID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sync_queue WHERE synced = 0 AND table_name = ? AND record_id = ?)",
		table, recordID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending entries: %w", err)
	}
	return exists == 1, nil
}
