package assignment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"madrasa/internal/school"
	"madrasa/internal/store"
)

// Repository persists assignments in SQL.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// ListAssignments returns the assignments of teacherID.
func (r *Repository) ListAssignments(ctx context.Context, teacherID string) ([]school.TeacherAssignment, error) {
	query, args, err := r.db.Builder().
		Select("id", "teacher_id", "class_id", "assigned_at").
		From("teacher_class_assignments").
		Where(squirrel.Eq{"teacher_id": teacherID}).
		OrderBy("assigned_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build assignments query: %w", err)
	}
	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []school.TeacherAssignment{}
	for rows.Next() {
		var a school.TeacherAssignment
		if err := rows.Scan(&a.ID, &a.TeacherID, &a.ClassID, &a.AssignedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CommitAssignments applies b inside one transaction.
func (r *Repository) CommitAssignments(ctx context.Context, b Batch) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if len(b.Deletes) > 0 {
			query, args, err := r.db.Builder().Delete("teacher_class_assignments").
				Where(squirrel.Eq{"id": b.Deletes}).ToSql()
			if err != nil {
				return fmt.Errorf("build assignment delete: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		if len(b.Inserts) == 0 {
			return nil
		}
		ins := r.db.Builder().Insert("teacher_class_assignments").
			Columns("id", "teacher_id", "class_id", "assigned_at")
		for _, a := range b.Inserts {
			ins = ins.Values(a.ID, a.TeacherID, a.ClassID, a.AssignedAt)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build assignment insert: %w", err)
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
}

// ListAssignedClasses joins assignments with classes. Assignments pointing at
// deleted classes are dropped.
func (r *Repository) ListAssignedClasses(ctx context.Context, teacherID string) ([]school.ClassSection, error) {
	query, args, err := r.db.Builder().
		Select("DISTINCT c.id", "c.name", "c.description", "c.academic_year", "c.created_at", "c.updated_at").
		From("teacher_class_assignments a").
		Join("classes c ON c.id = a.class_id").
		Where(squirrel.Eq{"a.teacher_id": teacherID}).
		OrderBy("c.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build assigned classes query: %w", err)
	}
	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []school.ClassSection{}
	for rows.Next() {
		var c school.ClassSection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.AcademicYear, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
