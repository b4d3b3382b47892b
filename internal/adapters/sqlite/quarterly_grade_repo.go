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

// QuarterlyGradeRepository implements secondary.QuarterlyGradeRepository with SQLite.
type QuarterlyGradeRepository struct {
	db *sql.DB
}

// NewQuarterlyGradeRepository creates a new SQLite quarterly grade repository.
func NewQuarterlyGradeRepository(db *sql.DB) *QuarterlyGradeRepository {
	return &QuarterlyGradeRepository{db: db}
}

var _ secondary.QuarterlyGradeRepository = (*QuarterlyGradeRepository)(nil)

const quarterlyGradeColumns = `id, student_id, subject_id, quarter, ww_percentage, ww_weighted,
	pt_percentage, pt_weighted, qa_percentage, qa_weighted, initial_grade, quarterly_grade,
	synced, created_at, updated_at`

func scanQuarterlyGrade(row rowScanner) (*secondary.QuarterlyGradeRecord, error) {
	var (
		g                    secondary.QuarterlyGradeRecord
		synced               int
		createdAt, updatedAt sql.NullString
	)
	err := row.Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.Quarter,
		&g.WWPercentage, &g.WWWeighted, &g.PTPercentage, &g.PTWeighted, &g.QAPercentage, &g.QAWeighted,
		&g.InitialGrade, &g.QuarterlyGrade, &synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	g.Synced = synced == 1
	g.CreatedAt = db.NullTime(createdAt)
	g.UpdatedAt = db.NullTime(updatedAt)
	return &g, nil
}

// Upsert stores the grade for (student, subject, quarter): INSERT the first
// time, UPDATE in place afterwards. An existing row keeps its ID.
func (r *QuarterlyGradeRepository) Upsert(ctx context.Context, g *secondary.QuarterlyGradeRecord) (string, error) {
	op := outbox.OpInsert
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var existingID, createdAt string
		err := tx.QueryRowContext(ctx,
			"SELECT id, created_at FROM quarterly_grades WHERE student_id = ? AND subject_id = ? AND quarter = ?",
			g.StudentID, g.SubjectID, g.Quarter,
		).Scan(&existingID, &createdAt)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			stamp(&g.CreatedAt, &g.UpdatedAt)
			g.Synced = false
			_, err = tx.ExecContext(ctx,
				"INSERT INTO quarterly_grades ("+quarterlyGradeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)",
				g.ID, g.StudentID, g.SubjectID, g.Quarter,
				g.WWPercentage, g.WWWeighted, g.PTPercentage, g.PTWeighted, g.QAPercentage, g.QAWeighted,
				g.InitialGrade, g.QuarterlyGrade, db.FormatTime(g.CreatedAt), db.FormatTime(g.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("failed to create quarterly grade: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to look up quarterly grade: %w", err)
		default:
			op = outbox.OpUpdate
			g.ID = existingID
			g.CreatedAt, _ = db.ParseTime(createdAt)
			g.UpdatedAt = time.Now().UTC()
			g.Synced = false
			_, err = tx.ExecContext(ctx,
				`UPDATE quarterly_grades SET ww_percentage = ?, ww_weighted = ?, pt_percentage = ?, pt_weighted = ?,
				 qa_percentage = ?, qa_weighted = ?, initial_grade = ?, quarterly_grade = ?, synced = 0, updated_at = ?
				 WHERE id = ?`,
				g.WWPercentage, g.WWWeighted, g.PTPercentage, g.PTWeighted, g.QAPercentage, g.QAWeighted,
				g.InitialGrade, g.QuarterlyGrade, db.FormatTime(g.UpdatedAt), g.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update quarterly grade: %w", err)
			}
		}

		return appendOutbox(ctx, tx, secondary.TableQuarterlyGrades, op, g.ID, g)
	})
	if err != nil {
		return "", err
	}
	return string(op), nil
}

// Get retrieves the grade for (student, subject, quarter).
func (r *QuarterlyGradeRepository) Get(ctx context.Context, studentID, subjectID string, quarter int) (*secondary.QuarterlyGradeRecord, error) {
	g, err := scanQuarterlyGrade(r.db.QueryRowContext(ctx,
		"SELECT "+quarterlyGradeColumns+" FROM quarterly_grades WHERE student_id = ? AND subject_id = ? AND quarter = ?",
		studentID, subjectID, quarter,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quarterly grade of %s in %s Q%d: %w", studentID, subjectID, quarter, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quarterly grade: %w", err)
	}
	return g, nil
}

// List retrieves quarterly grades matching filters.
func (r *QuarterlyGradeRepository) List(ctx context.Context, filters secondary.QuarterlyGradeFilters) ([]*secondary.QuarterlyGradeRecord, error) {
	query := "SELECT " + quarterlyGradeColumns + " FROM quarterly_grades WHERE 1=1"
	var args []any

	if filters.StudentID != "" {
		query += " AND student_id = ?"
		args = append(args, filters.StudentID)
	}
	if filters.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, filters.SubjectID)
	}
	if filters.Quarter > 0 {
		query += " AND quarter = ?"
		args = append(args, filters.Quarter)
	}
	query += " ORDER BY subject_id ASC, quarter ASC, student_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarterly grades: %w", err)
	}
	defer rows.Close()

	var grades []*secondary.QuarterlyGradeRecord
	for rows.Next() {
		g, err := scanQuarterlyGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quarterly grade: %w", err)
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}
