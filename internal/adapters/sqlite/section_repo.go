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

// SectionRepository implements secondary.SectionRepository with SQLite.
type SectionRepository struct {
	db *sql.DB
}

// NewSectionRepository creates a new SQLite section repository.
func NewSectionRepository(db *sql.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

var _ secondary.SectionRepository = (*SectionRepository)(nil)

const sectionColumns = "id, name, grade_level, school_year, adviser, synced, created_at, updated_at"

func scanSection(row rowScanner) (*secondary.SectionRecord, error) {
	var (
		s                               secondary.SectionRecord
		gradeLevel, schoolYear, adviser sql.NullString
		synced                          int
		createdAt, updatedAt            sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Name, &gradeLevel, &schoolYear, &adviser, &synced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.GradeLevel = gradeLevel.String
	s.SchoolYear = schoolYear.String
	s.Adviser = adviser.String
	s.Synced = synced == 1
	s.CreatedAt = db.NullTime(createdAt)
	s.UpdatedAt = db.NullTime(updatedAt)
	return &s, nil
}

// Create persists a new section and queues its INSERT.
func (r *SectionRepository) Create(ctx context.Context, s *secondary.SectionRecord) error {
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO class_sections ("+sectionColumns+") VALUES (?, ?, ?, ?, ?, 0, ?, ?)",
			s.ID, s.Name, nullString(s.GradeLevel), nullString(s.SchoolYear), nullString(s.Adviser),
			db.FormatTime(s.CreatedAt), db.FormatTime(s.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableClassSections, outbox.OpInsert, s.ID, s)
	})
}

// Update rewrites a section and queues its UPDATE.
func (r *SectionRepository) Update(ctx context.Context, s *secondary.SectionRecord) error {
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE class_sections SET name = ?, grade_level = ?, school_year = ?, adviser = ?, synced = 0, updated_at = ?
			 WHERE id = ?`,
			s.Name, nullString(s.GradeLevel), nullString(s.SchoolYear), nullString(s.Adviser),
			db.FormatTime(s.UpdatedAt), s.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update section: %w", err)
		}
		if err := requireAffected(res, "section", s.ID); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, secondary.TableClassSections, outbox.OpUpdate, s.ID, s)
	})
}

// Delete removes a section with its enrollments, assignments and
// section-scoped grade items, and queues one DELETE.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM class_sections WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete section: %w", err)
		}
		if err := requireAffected(res, "section", id); err != nil {
			return err
		}

		for _, stmt := range []string{
			"DELETE FROM student_sections WHERE section_id = ?",
			"DELETE FROM subject_assignments WHERE section_id = ?",
			"DELETE FROM student_scores WHERE grade_item_id IN (SELECT id FROM grade_items WHERE section_id = ?)",
			"DELETE FROM grade_items WHERE section_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete section dependents: %w", err)
			}
		}

		return appendOutbox(ctx, tx, secondary.TableClassSections, outbox.OpDelete, id, deletePayload(id))
	})
}

// GetByID retrieves a section by its ID.
func (r *SectionRepository) GetByID(ctx context.Context, id string) (*secondary.SectionRecord, error) {
	s, err := scanSection(r.db.QueryRowContext(ctx,
		"SELECT "+sectionColumns+" FROM class_sections WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return s, nil
}

// List retrieves all sections ordered by name.
func (r *SectionRepository) List(ctx context.Context) ([]*secondary.SectionRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+sectionColumns+" FROM class_sections ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var sections []*secondary.SectionRecord
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// BulkInsert stores server-seeded sections as synced without outbox entries.
func (r *SectionRepository) BulkInsert(ctx context.Context, sections []*secondary.SectionRecord) (int, error) {
	var stored int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		stored, _, err = importSections(ctx, tx, sections, false)
		return err
	})
	return stored, err
}
