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

// SubjectRepository implements secondary.SubjectRepository with SQLite.
type SubjectRepository struct {
	db *sql.DB
}

// NewSubjectRepository creates a new SQLite subject repository.
func NewSubjectRepository(db *sql.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

var _ secondary.SubjectRepository = (*SubjectRepository)(nil)

const subjectColumns = "id, code, name, description, synced, created_at, updated_at"

func scanSubject(row rowScanner) (*secondary.SubjectRecord, error) {
	var (
		s                    secondary.SubjectRecord
		desc                 sql.NullString
		synced               int
		createdAt, updatedAt sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Code, &s.Name, &desc, &synced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Description = desc.String
	s.Synced = synced == 1
	s.CreatedAt = db.NullTime(createdAt)
	s.UpdatedAt = db.NullTime(updatedAt)
	return &s, nil
}

// Create persists a new subject and queues its INSERT.
func (r *SubjectRepository) Create(ctx context.Context, s *secondary.SubjectRecord) error {
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO subjects ("+subjectColumns+") VALUES (?, ?, ?, ?, 0, ?, ?)",
			s.ID, s.Code, s.Name, nullString(s.Description),
			db.FormatTime(s.CreatedAt), db.FormatTime(s.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create subject: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableSubjects, outbox.OpInsert, s.ID, s)
	})
}

// Update rewrites a subject and queues its UPDATE.
func (r *SubjectRepository) Update(ctx context.Context, s *secondary.SubjectRecord) error {
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE subjects SET code = ?, name = ?, description = ?, synced = 0, updated_at = ? WHERE id = ?",
			s.Code, s.Name, nullString(s.Description), db.FormatTime(s.UpdatedAt), s.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update subject: %w", err)
		}
		if err := requireAffected(res, "subject", s.ID); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, secondary.TableSubjects, outbox.OpUpdate, s.ID, s)
	})
}

// Delete removes a subject with its assignments, grade items, scores and
// quarterly grades, and queues one DELETE.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM subjects WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete subject: %w", err)
		}
		if err := requireAffected(res, "subject", id); err != nil {
			return err
		}

		for _, stmt := range []string{
			"DELETE FROM subject_assignments WHERE subject_id = ?",
			"DELETE FROM student_scores WHERE grade_item_id IN (SELECT id FROM grade_items WHERE subject_id = ?)",
			"DELETE FROM grade_items WHERE subject_id = ?",
			"DELETE FROM quarterly_grades WHERE subject_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete subject dependents: %w", err)
			}
		}

		return appendOutbox(ctx, tx, secondary.TableSubjects, outbox.OpDelete, id, deletePayload(id))
	})
}

// GetByID retrieves a subject by its ID.
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*secondary.SubjectRecord, error) {
	s, err := scanSubject(r.db.QueryRowContext(ctx,
		"SELECT "+subjectColumns+" FROM subjects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subject %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return s, nil
}

// List retrieves all subjects ordered by code.
func (r *SubjectRepository) List(ctx context.Context) ([]*secondary.SubjectRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+subjectColumns+" FROM subjects ORDER BY code ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*secondary.SubjectRecord
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

const assignmentColumns = "id, subject_id, section_id, teacher_id, school_year, synced, created_at, updated_at"

func scanAssignment(row rowScanner) (*secondary.AssignmentRecord, error) {
	var (
		a                     secondary.AssignmentRecord
		teacherID, schoolYear sql.NullString
		synced                int
		createdAt, updatedAt  sql.NullString
	)
	err := row.Scan(&a.ID, &a.SubjectID, &a.SectionID, &teacherID, &schoolYear, &synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.TeacherID = teacherID.String
	a.SchoolYear = schoolYear.String
	a.Synced = synced == 1
	a.CreatedAt = db.NullTime(createdAt)
	a.UpdatedAt = db.NullTime(updatedAt)
	return &a, nil
}

// Assign records that a subject is taught to a section and queues the INSERT.
func (r *SubjectRepository) Assign(ctx context.Context, a *secondary.AssignmentRecord) error {
	stamp(&a.CreatedAt, &a.UpdatedAt)
	a.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO subject_assignments ("+assignmentColumns+") VALUES (?, ?, ?, ?, ?, 0, ?, ?)",
			a.ID, a.SubjectID, a.SectionID, nullString(a.TeacherID), nullString(a.SchoolYear),
			db.FormatTime(a.CreatedAt), db.FormatTime(a.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to assign subject: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableSubjectAssignments, outbox.OpInsert, a.ID, a)
	})
}

// Unassign removes an assignment and queues its DELETE.
func (r *SubjectRepository) Unassign(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM subject_assignments WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to unassign subject: %w", err)
		}
		if err := requireAffected(res, "assignment", id); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, secondary.TableSubjectAssignments, outbox.OpDelete, id, deletePayload(id))
	})
}

// ListAssignments retrieves assignments, optionally for one section.
func (r *SubjectRepository) ListAssignments(ctx context.Context, sectionID string) ([]*secondary.AssignmentRecord, error) {
	query := "SELECT " + assignmentColumns + " FROM subject_assignments"
	var args []any
	if sectionID != "" {
		query += " WHERE section_id = ?"
		args = append(args, sectionID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*secondary.AssignmentRecord
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// BulkInsert stores server-seeded subjects as synced without outbox entries.
func (r *SubjectRepository) BulkInsert(ctx context.Context, subjects []*secondary.SubjectRecord) (int, error) {
	var stored int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		stored, _, err = importSubjects(ctx, tx, subjects, false)
		return err
	})
	return stored, err
}

// BulkInsertAssignments stores server-seeded assignments as synced without outbox entries.
func (r *SubjectRepository) BulkInsertAssignments(ctx context.Context, assignments []*secondary.AssignmentRecord) (int, error) {
	var stored int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		stored, _, err = importAssignments(ctx, tx, assignments, false)
		return err
	})
	return stored, err
}
