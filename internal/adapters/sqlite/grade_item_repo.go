package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/gradebook/internal/core/outbox"
	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// GradeItemRepository implements secondary.GradeItemRepository with SQLite.
type GradeItemRepository struct {
	db *sql.DB
}

// NewGradeItemRepository creates a new SQLite grade item repository.
func NewGradeItemRepository(db *sql.DB) *GradeItemRepository {
	return &GradeItemRepository{db: db}
}

var _ secondary.GradeItemRepository = (*GradeItemRepository)(nil)

const gradeItemColumns = "id, subject_id, section_id, category, quarter, title, max_score, item_date, synced, created_at, updated_at"

func scanGradeItem(row rowScanner) (*secondary.GradeItemRecord, error) {
	var (
		g                    secondary.GradeItemRecord
		sectionID, itemDate  sql.NullString
		synced               int
		createdAt, updatedAt sql.NullString
	)
	err := row.Scan(&g.ID, &g.SubjectID, &sectionID, &g.Category, &g.Quarter, &g.Title, &g.MaxScore,
		&itemDate, &synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	g.SectionID = sectionID.String
	g.ItemDate = itemDate.String
	g.Synced = synced == 1
	g.CreatedAt = db.NullTime(createdAt)
	g.UpdatedAt = db.NullTime(updatedAt)
	return &g, nil
}

// Create persists a new grade item and queues its INSERT.
func (r *GradeItemRepository) Create(ctx context.Context, g *secondary.GradeItemRecord) error {
	stamp(&g.CreatedAt, &g.UpdatedAt)
	g.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO grade_items ("+gradeItemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)",
			g.ID, g.SubjectID, nullString(g.SectionID), g.Category, g.Quarter, g.Title, g.MaxScore,
			nullString(g.ItemDate), db.FormatTime(g.CreatedAt), db.FormatTime(g.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create grade item: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableGradeItems, outbox.OpInsert, g.ID, g)
	})
}

// Update rewrites a grade item and queues its UPDATE.
func (r *GradeItemRepository) Update(ctx context.Context, g *secondary.GradeItemRecord) error {
	stamp(&g.CreatedAt, &g.UpdatedAt)
	g.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE grade_items SET subject_id = ?, section_id = ?, category = ?, quarter = ?, title = ?,
			 max_score = ?, item_date = ?, synced = 0, updated_at = ? WHERE id = ?`,
			g.SubjectID, nullString(g.SectionID), g.Category, g.Quarter, g.Title, g.MaxScore,
			nullString(g.ItemDate), db.FormatTime(g.UpdatedAt), g.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update grade item: %w", err)
		}
		if err := requireAffected(res, "grade item", g.ID); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, secondary.TableGradeItems, outbox.OpUpdate, g.ID, g)
	})
}

// Delete removes a grade item with its scores and queues one DELETE.
func (r *GradeItemRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM grade_items WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete grade item: %w", err)
		}
		if err := requireAffected(res, "grade item", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM student_scores WHERE grade_item_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete grade item scores: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableGradeItems, outbox.OpDelete, id, deletePayload(id))
	})
}

// GetByID retrieves a grade item by its ID.
func (r *GradeItemRepository) GetByID(ctx context.Context, id string) (*secondary.GradeItemRecord, error) {
	g, err := scanGradeItem(r.db.QueryRowContext(ctx,
		"SELECT "+gradeItemColumns+" FROM grade_items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("grade item %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grade item: %w", err)
	}
	return g, nil
}

// List retrieves grade items matching filters.
// A section filter also matches items not scoped to any section.
func (r *GradeItemRepository) List(ctx context.Context, filters secondary.GradeItemFilters) ([]*secondary.GradeItemRecord, error) {
	query := "SELECT " + gradeItemColumns + " FROM grade_items WHERE 1=1"
	var args []any

	if filters.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, filters.SubjectID)
	}
	if filters.SectionID != "" {
		query += " AND (section_id = ? OR section_id IS NULL)"
		args = append(args, filters.SectionID)
	}
	if filters.EnrolledStudentID != "" {
		query += " AND (section_id IS NULL OR section_id IN (SELECT section_id FROM student_sections WHERE student_id = ?))"
		args = append(args, filters.EnrolledStudentID)
	}
	if filters.Quarter > 0 {
		query += " AND quarter = ?"
		args = append(args, filters.Quarter)
	}
	if filters.Category != "" {
		query += " AND category = ?"
		args = append(args, filters.Category)
	}
	query += " ORDER BY quarter ASC, category ASC, created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grade items: %w", err)
	}
	defer rows.Close()

	var items []*secondary.GradeItemRecord
	for rows.Next() {
		g, err := scanGradeItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grade item: %w", err)
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

// HighestScore returns the highest score recorded against an item.
func (r *GradeItemRepository) HighestScore(ctx context.Context, id string) (float64, error) {
	var highest float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(score), 0) FROM student_scores WHERE grade_item_id = ?", id,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("failed to read highest score: %w", err)
	}
	return highest, nil
}
