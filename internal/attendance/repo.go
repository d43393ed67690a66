package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"madrasa/internal/apperrors"
	"madrasa/internal/store"
)

// Repository persists attendance records in SQL.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// ListRecords returns the records matching q.
func (r *Repository) ListRecords(ctx context.Context, q Query) ([]Record, error) {
	where := squirrel.Eq{"class_id": q.ClassID, "date": string(q.Date)}
	if q.TeacherID != "" {
		where["teacher_id"] = q.TeacherID
	}
	query, args, err := r.db.Builder().
		Select("id", "student_id", "class_id", "date", "status", "teacher_id", "created_at").
		From("attendance").
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attendance query: %w", err)
	}

	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Record{}
	for rows.Next() {
		var rec Record
		var date, status string
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &date, &status, &rec.TeacherID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Date, rec.Status = Date(date), Status(status)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CommitBatch applies b inside one transaction.
func (r *Repository) CommitBatch(ctx context.Context, b Batch) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range b.Creates {
			if err := r.insert(ctx, tx, rec); err != nil {
				return err
			}
		}
		for _, u := range b.Updates {
			if err := r.updateStatus(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, rec Record) error {
	if !rec.Status.Valid() {
		return apperrors.Validation("invalid status " + string(rec.Status))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query, args, err := r.db.Builder().
		Insert("attendance").
		Columns("id", "student_id", "class_id", "date", "status", "teacher_id", "created_at").
		Values(rec.ID, rec.StudentID, rec.ClassID, string(rec.Date), string(rec.Status), rec.TeacherID, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attendance insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if store.IsUniqueViolation(err) {
			return apperrors.Conflict("attendance for "+rec.StudentID+" on "+string(rec.Date)+" was recorded concurrently", err)
		}
		return err
	}
	return nil
}

func (r *Repository) updateStatus(ctx context.Context, tx *sql.Tx, u StatusUpdate) error {
	if !u.Status.Valid() {
		return apperrors.Validation("invalid status " + string(u.Status))
	}
	query, args, err := r.db.Builder().
		Update("attendance").
		Set("status", string(u.Status)).
		Where(squirrel.Eq{"id": u.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attendance update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.Conflict("attendance record "+u.ID+" disappeared during save", nil)
	}
	return nil
}
