package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/gradebook/internal/core/outbox"
	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// ScoreRepository implements secondary.ScoreRepository with SQLite.
type ScoreRepository struct {
	db *sql.DB
}

// NewScoreRepository creates a new SQLite score repository.
func NewScoreRepository(db *sql.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

var _ secondary.ScoreRepository = (*ScoreRepository)(nil)

const scoreColumns = "id, student_id, grade_item_id, score, remarks, synced, created_at, updated_at"

func scanScore(row rowScanner) (*secondary.ScoreRecord, error) {
	var (
		s                    secondary.ScoreRecord
		remarks              sql.NullString
		synced               int
		createdAt, updatedAt sql.NullString
	)
	err := row.Scan(&s.ID, &s.StudentID, &s.GradeItemID, &s.Score, &remarks, &synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.Remarks = remarks.String
	s.Synced = synced == 1
	s.CreatedAt = db.NullTime(createdAt)
	s.UpdatedAt = db.NullTime(updatedAt)
	return &s, nil
}

// Save inserts or updates the one score a student has on a grade item.
// An existing row keeps its ID; the record is rewritten in place.
func (r *ScoreRepository) Save(ctx context.Context, s *secondary.ScoreRecord) (string, error) {
	op := outbox.OpInsert
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var existingID, createdAt string
		err := tx.QueryRowContext(ctx,
			"SELECT id, created_at FROM student_scores WHERE student_id = ? AND grade_item_id = ?",
			s.StudentID, s.GradeItemID,
		).Scan(&existingID, &createdAt)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			stamp(&s.CreatedAt, &s.UpdatedAt)
			s.Synced = false
			_, err = tx.ExecContext(ctx,
				"INSERT INTO student_scores ("+scoreColumns+") VALUES (?, ?, ?, ?, ?, 0, ?, ?)",
				s.ID, s.StudentID, s.GradeItemID, s.Score, nullString(s.Remarks),
				db.FormatTime(s.CreatedAt), db.FormatTime(s.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("failed to create score: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to look up score: %w", err)
		default:
			op = outbox.OpUpdate
			s.ID = existingID
			s.CreatedAt, _ = db.ParseTime(createdAt)
			s.UpdatedAt = time.Now().UTC()
			s.Synced = false
			_, err = tx.ExecContext(ctx,
				"UPDATE student_scores SET score = ?, remarks = ?, synced = 0, updated_at = ? WHERE id = ?",
				s.Score, nullString(s.Remarks), db.FormatTime(s.UpdatedAt), s.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update score: %w", err)
			}
		}

		return appendOutbox(ctx, tx, secondary.TableStudentScores, op, s.ID, s)
	})
	if err != nil {
		return "", err
	}
	return string(op), nil
}

// Delete removes a score and queues its DELETE.
func (r *ScoreRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM student_scores WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete score: %w", err)
		}
		if err := requireAffected(res, "score", id); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, secondary.TableStudentScores, outbox.OpDelete, id, deletePayload(id))
	})
}

// Get retrieves the score a student has on a grade item.
func (r *ScoreRepository) Get(ctx context.Context, studentID, gradeItemID string) (*secondary.ScoreRecord, error) {
	s, err := scanScore(r.db.QueryRowContext(ctx,
		"SELECT "+scoreColumns+" FROM student_scores WHERE student_id = ? AND grade_item_id = ?",
		studentID, gradeItemID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("score of %s on %s: %w", studentID, gradeItemID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return s, nil
}

// ListForStudent returns the student's scores on the given grade items.
func (r *ScoreRepository) ListForStudent(ctx context.Context, studentID string, gradeItemIDs []string) ([]*secondary.ScoreRecord, error) {
	if len(gradeItemIDs) == 0 {
		return nil, nil
	}

	args := []any{studentID}
	for _, id := range gradeItemIDs {
		args = append(args, id)
	}

	return r.list(ctx,
		"SELECT "+scoreColumns+" FROM student_scores WHERE student_id = ? AND grade_item_id IN ("+placeholders(len(gradeItemIDs))+")",
		args...,
	)
}

// ListForItem returns every score recorded on a grade item.
func (r *ScoreRepository) ListForItem(ctx context.Context, gradeItemID string) ([]*secondary.ScoreRecord, error) {
	return r.list(ctx,
		"SELECT "+scoreColumns+" FROM student_scores WHERE grade_item_id = ? ORDER BY created_at ASC",
		gradeItemID,
	)
}

func (r *ScoreRepository) list(ctx context.Context, query string, args ...any) ([]*secondary.ScoreRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []*secondary.ScoreRecord
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
