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

// StudentRepository implements secondary.StudentRepository with SQLite.
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a new SQLite student repository.
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

var _ secondary.StudentRepository = (*StudentRepository)(nil)

const studentColumns = "id, lrn, first_name, middle_name, last_name, gender, birth_date, synced, created_at, updated_at"

func scanStudent(row rowScanner) (*secondary.StudentRecord, error) {
	var (
		s                              secondary.StudentRecord
		lrn, middle, gender, birthDate sql.NullString
		synced                         int
		createdAt, updatedAt           sql.NullString
	)
	err := row.Scan(&s.ID, &lrn, &s.FirstName, &middle, &s.LastName, &gender, &birthDate,
		&synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.LRN = lrn.String
	s.MiddleName = middle.String
	s.Gender = gender.String
	s.BirthDate = birthDate.String
	s.Synced = synced == 1
	s.CreatedAt = db.NullTime(createdAt)
	s.UpdatedAt = db.NullTime(updatedAt)
	return &s, nil
}

// Create persists a new student and queues its INSERT.
func (r *StudentRepository) Create(ctx context.Context, s *secondary.StudentRecord) error {
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)",
			s.ID, nullString(s.LRN), s.FirstName, nullString(s.MiddleName), s.LastName,
			nullString(s.Gender), nullString(s.BirthDate),
			db.FormatTime(s.CreatedAt), db.FormatTime(s.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create student: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableStudents, outbox.OpInsert, s.ID, s)
	})
}

// Update rewrites a student and queues its UPDATE.
func (r *StudentRepository) Update(ctx context.Context, s *secondary.StudentRecord) error {
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE students SET lrn = ?, first_name = ?, middle_name = ?, last_name = ?, gender = ?,
			 birth_date = ?, synced = 0, updated_at = ? WHERE id = ?`,
			nullString(s.LRN), s.FirstName, nullString(s.MiddleName), s.LastName,
			nullString(s.Gender), nullString(s.BirthDate), db.FormatTime(s.UpdatedAt), s.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}
		if err := requireAffected(res, "student", s.ID); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, secondary.TableStudents, outbox.OpUpdate, s.ID, s)
	})
}

// Delete removes a student with enrollments, scores and quarterly grades,
// and queues one DELETE.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete student: %w", err)
		}
		if err := requireAffected(res, "student", id); err != nil {
			return err
		}

		for _, stmt := range []string{
			"DELETE FROM student_sections WHERE student_id = ?",
			"DELETE FROM student_scores WHERE student_id = ?",
			"DELETE FROM quarterly_grades WHERE student_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete student dependents: %w", err)
			}
		}

		return appendOutbox(ctx, tx, secondary.TableStudents, outbox.OpDelete, id, deletePayload(id))
	})
}

// GetByID retrieves a student by its ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*secondary.StudentRecord, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

// List retrieves students matching filters, ordered by name.
func (r *StudentRepository) List(ctx context.Context, filters secondary.StudentFilters) ([]*secondary.StudentRecord, error) {
	query := "SELECT " + prefixColumns("s", studentColumns) + " FROM students s"
	var args []any

	if filters.SectionID != "" {
		query += " JOIN student_sections e ON e.student_id = s.id AND e.section_id = ?"
		args = append(args, filters.SectionID)
	}
	query += " WHERE 1=1"
	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query += " AND (s.first_name LIKE ? OR s.last_name LIKE ? OR s.lrn LIKE ?)"
		args = append(args, like, like, like)
	}
	query += " ORDER BY s.last_name ASC, s.first_name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*secondary.StudentRecord
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

const enrollmentColumns = "id, student_id, section_id, school_year, synced, created_at, updated_at"

func scanEnrollment(row rowScanner) (*secondary.EnrollmentRecord, error) {
	var (
		e                    secondary.EnrollmentRecord
		schoolYear           sql.NullString
		synced               int
		createdAt, updatedAt sql.NullString
	)
	if err := row.Scan(&e.ID, &e.StudentID, &e.SectionID, &schoolYear, &synced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.SchoolYear = schoolYear.String
	e.Synced = synced == 1
	e.CreatedAt = db.NullTime(createdAt)
	e.UpdatedAt = db.NullTime(updatedAt)
	return &e, nil
}

// Enroll links a student to a section and queues the INSERT.
func (r *StudentRepository) Enroll(ctx context.Context, e *secondary.EnrollmentRecord) error {
	stamp(&e.CreatedAt, &e.UpdatedAt)
	e.Synced = false

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO student_sections ("+enrollmentColumns+") VALUES (?, ?, ?, ?, 0, ?, ?)",
			e.ID, e.StudentID, e.SectionID, nullString(e.SchoolYear),
			db.FormatTime(e.CreatedAt), db.FormatTime(e.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to enroll student: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableStudentSections, outbox.OpInsert, e.ID, e)
	})
}

// Unenroll removes the (student, section) edge and queues its DELETE.
func (r *StudentRepository) Unenroll(ctx context.Context, studentID, sectionID string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM student_sections WHERE student_id = ? AND section_id = ?",
			studentID, sectionID,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("enrollment of %s in %s: %w", studentID, sectionID, secondary.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to find enrollment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM student_sections WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to unenroll student: %w", err)
		}
		return appendOutbox(ctx, tx, secondary.TableStudentSections, outbox.OpDelete, id, deletePayload(id))
	})
}

// ListEnrollments retrieves the enrollments of a section.
func (r *StudentRepository) ListEnrollments(ctx context.Context, sectionID string) ([]*secondary.EnrollmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+enrollmentColumns+" FROM student_sections WHERE section_id = ? ORDER BY created_at ASC",
		sectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*secondary.EnrollmentRecord
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// BulkInsert stores server-seeded students as synced without outbox entries.
func (r *StudentRepository) BulkInsert(ctx context.Context, students []*secondary.StudentRecord) (int, error) {
	var stored int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		stored, _, err = importStudents(ctx, tx, students, false)
		return err
	})
	return stored, err
}

// BulkInsertEnrollments stores server-seeded enrollments as synced without outbox entries.
func (r *StudentRepository) BulkInsertEnrollments(ctx context.Context, enrollments []*secondary.EnrollmentRecord) (int, error) {
	var stored int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		stored, _, err = importEnrollments(ctx, tx, enrollments, false)
		return err
	})
	return stored, err
}
