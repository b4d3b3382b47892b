package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ports/secondary"
)

// SnapshotRepository implements secondary.SnapshotRepository with SQLite.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var _ secondary.SnapshotRepository = (*SnapshotRepository)(nil)

// Import stores the snapshot in one transaction.
func (r *SnapshotRepository) Import(ctx context.Context, snap *secondary.Snapshot, opts secondary.ImportOptions) (*secondary.ImportCounts, error) {
	counts := &secondary.ImportCounts{}
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			stored, skipped int
			err             error
		)

		if stored, skipped, err = importSections(ctx, tx, snap.Sections, opts.SkipPending); err != nil {
			return err
		}
		counts.Sections, counts.Skipped = stored, counts.Skipped+skipped

		if stored, skipped, err = importSubjects(ctx, tx, snap.Subjects, opts.SkipPending); err != nil {
			return err
		}
		counts.Subjects, counts.Skipped = stored, counts.Skipped+skipped

		if stored, skipped, err = importStudents(ctx, tx, snap.Students, opts.SkipPending); err != nil {
			return err
		}
		counts.Students, counts.Skipped = stored, counts.Skipped+skipped

		if stored, skipped, err = importEnrollments(ctx, tx, snap.Enrollments, opts.SkipPending); err != nil {
			return err
		}
		counts.Enrollments, counts.Skipped = stored, counts.Skipped+skipped

		if stored, skipped, err = importAssignments(ctx, tx, snap.Assignments, opts.SkipPending); err != nil {
			return err
		}
		counts.Assignments, counts.Skipped = stored, counts.Skipped+skipped
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import snapshot: %w", err)
	}
	return counts, nil
}

// pendingInTx reports whether a record has unsynced outbox entries.
func pendingInTx(ctx context.Context, tx *sql.Tx, table, recordID string) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sync_queue WHERE synced = 0 AND table_name = ? AND record_id = ?)",
		table, recordID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending entries: %w", err)
	}
	return exists == 1, nil
}

// serverTimes fills timestamps the server left out.
func serverTimes(createdAt, updatedAt time.Time) (string, string) {
	now := time.Now()
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return db.FormatTime(createdAt), db.FormatTime(updatedAt)
}

func importSections(ctx context.Context, tx *sql.Tx, rows []*secondary.SectionRecord, skipPending bool) (stored, skipped int, err error) {
	for _, s := range rows {
		if skipPending {
			pending, err := pendingInTx(ctx, tx, secondary.TableClassSections, s.ID)
			if err != nil {
				return stored, skipped, err
			}
			if pending {
				skipped++
				continue
			}
		}
		created, updated := serverTimes(s.CreatedAt, s.UpdatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO class_sections (id, name, grade_level, school_year, adviser, synced, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			s.ID, s.Name, nullString(s.GradeLevel), nullString(s.SchoolYear), nullString(s.Adviser), created, updated,
		)
		if err != nil {
			return stored, skipped, fmt.Errorf("failed to import section %s: %w", s.ID, err)
		}
		stored++
	}
	return stored, skipped, nil
}

func importSubjects(ctx context.Context, tx *sql.Tx, rows []*secondary.SubjectRecord, skipPending bool) (stored, skipped int, err error) {
	for _, s := range rows {
		if skipPending {
			pending, err := pendingInTx(ctx, tx, secondary.TableSubjects, s.ID)
			if err != nil {
				return stored, skipped, err
			}
			if pending {
				skipped++
				continue
			}
		}
		created, updated := serverTimes(s.CreatedAt, s.UpdatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO subjects (id, code, name, description, synced, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			s.ID, s.Code, s.Name, nullString(s.Description), created, updated,
		)
		if err != nil {
			return stored, skipped, fmt.Errorf("failed to import subject %s: %w", s.ID, err)
		}
		stored++
	}
	return stored, skipped, nil
}

func importStudents(ctx context.Context, tx *sql.Tx, rows []*secondary.StudentRecord, skipPending bool) (stored, skipped int, err error) {
	for _, s := range rows {
		if skipPending {
			pending, err := pendingInTx(ctx, tx, secondary.TableStudents, s.ID)
			if err != nil {
				return stored, skipped, err
			}
			if pending {
				skipped++
				continue
			}
		}
		created, updated := serverTimes(s.CreatedAt, s.UpdatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO students (id, lrn, first_name, middle_name, last_name, gender, birth_date, synced, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			s.ID, nullString(s.LRN), s.FirstName, nullString(s.MiddleName), s.LastName,
			nullString(s.Gender), nullString(s.BirthDate), created, updated,
		)
		if err != nil {
			return stored, skipped, fmt.Errorf("failed to import student %s: %w", s.ID, err)
		}
		stored++
	}
	return stored, skipped, nil
}

// importEnrollments keeps any existing edge for the same (student, section)
// pair, whatever its id.
func importEnrollments(ctx context.Context, tx *sql.Tx, rows []*secondary.EnrollmentRecord, skipPending bool) (stored, skipped int, err error) {
	for _, e := range rows {
		if skipPending {
			pending, err := pendingInTx(ctx, tx, secondary.TableStudentSections, e.ID)
			if err != nil {
				return stored, skipped, err
			}
			if pending {
				skipped++
				continue
			}
		}
		created, updated := serverTimes(e.CreatedAt, e.UpdatedAt)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO student_sections (id, student_id, section_id, school_year, synced, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)
			 ON CONFLICT DO NOTHING`,
			e.ID, e.StudentID, e.SectionID, nullString(e.SchoolYear), created, updated,
		)
		if err != nil {
			return stored, skipped, fmt.Errorf("failed to import enrollment %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stored++
		}
	}
	return stored, skipped, nil
}

func importAssignments(ctx context.Context, tx *sql.Tx, rows []*secondary.AssignmentRecord, skipPending bool) (stored, skipped int, err error) {
	for _, a := range rows {
		if skipPending {
			pending, err := pendingInTx(ctx, tx, secondary.TableSubjectAssignments, a.ID)
			if err != nil {
				return stored, skipped, err
			}
			if pending {
				skipped++
				continue
			}
		}
		created, updated := serverTimes(a.CreatedAt, a.UpdatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO subject_assignments (id, subject_id, section_id, teacher_id, school_year, synced, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			a.ID, a.SubjectID, a.SectionID, nullString(a.TeacherID), nullString(a.SchoolYear), created, updated,
		)
		if err != nil {
			return stored, skipped, fmt.Errorf("failed to import assignment %s: %w", a.ID, err)
		}
		stored++
	}
	return stored, skipped, nil
}
