package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"madrasa/internal/apperrors"
	"madrasa/internal/store"
)

// Repository persists classes, students and users in SQL.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

func now() time.Time { return time.Now().UTC() }

var classColumns = []string{"id", "name", "description", "academic_year", "created_at", "updated_at"}

func scanClass(row interface{ Scan(...any) error }) (ClassSection, error) {
	var c ClassSection
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.AcademicYear, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListClasses returns all classes.
func (r *Repository) ListClasses(ctx context.Context, sort Sort) ([]ClassSection, error) {
	order := "created_at DESC"
	if sort == SortName {
		order = "name ASC"
	}
	query, args, err := r.db.Builder().Select(classColumns...).From("classes").OrderBy(order).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build classes query: %w", err)
	}
	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := []ClassSection{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// GetClass returns a class or a not-found error.
func (r *Repository) GetClass(ctx context.Context, id string) (ClassSection, error) {
	query, args, err := r.db.Builder().Select(classColumns...).From("classes").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return ClassSection{}, fmt.Errorf("build class query: %w", err)
	}
	c, err := scanClass(r.db.Client.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ClassSection{}, apperrors.NotFound("Class details not found for ID: " + id + ".")
	}
	return c, err
}

// CreateClass inserts c and fills its id and timestamps.
func (r *Repository) CreateClass(ctx context.Context, c *ClassSection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	query, args, err := r.db.Builder().Insert("classes").
		Columns("id", "name", "description", "academic_year", "created_at", "updated_at").
		Values(c.ID, c.Name, c.Description, c.AcademicYear, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build class insert: %w", err)
	}
	_, err = r.db.Client.ExecContext(ctx, query, args...)
	return err
}

// UpdateClass overwrites the editable fields of c.
func (r *Repository) UpdateClass(ctx context.Context, c *ClassSection) error {
	c.UpdatedAt = now()
	query, args, err := r.db.Builder().Update("classes").
		Set("name", c.Name).
		Set("description", c.Description).
		Set("academic_year", c.AcademicYear).
		Set("updated_at", c.UpdatedAt).
		Where(squirrel.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build class update: %w", err)
	}
	return r.execOne(ctx, query, args, "class not found")
}

// DeleteClass removes the class row only.
func (r *Repository) DeleteClass(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "classes", id, "class not found")
}

func (r *Repository) studentSelect() squirrel.SelectBuilder {
	return r.db.Builder().
		Select("s.id", "s.name", "s.class_id", "COALESCE(c.name, '')", "s.guardian_name",
			"s.guardian_contact", "s.photo_url", "s.date_of_birth", "s.created_at", "s.updated_at").
		From("students s").
		LeftJoin("classes c ON c.id = s.class_id")
}

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.ClassID, &s.ClassName, &s.GuardianName,
		&s.GuardianContact, &s.PhotoURL, &s.DateOfBirth, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) queryStudents(ctx context.Context, b squirrel.SelectBuilder) ([]Student, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build students query: %w", err)
	}
	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// ListStudents returns every student, newest first.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	return r.queryStudents(ctx, r.studentSelect().OrderBy("s.created_at DESC"))
}

// ListStudentsByClass returns the roster of classID ordered by name.
func (r *Repository) ListStudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	return r.queryStudents(ctx, r.studentSelect().Where(squirrel.Eq{"s.class_id": classID}).OrderBy("s.name ASC", "s.id ASC"))
}

// GetStudent returns a student or a not-found error.
func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	query, args, err := r.studentSelect().Where(squirrel.Eq{"s.id": id}).ToSql()
	if err != nil {
		return Student{}, fmt.Errorf("build student query: %w", err)
	}
	s, err := scanStudent(r.db.Client.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, apperrors.NotFound("student not found")
	}
	return s, err
}

// CreateStudent inserts s and fills its id and timestamps.
func (r *Repository) CreateStudent(ctx context.Context, s *Student) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	query, args, err := r.db.Builder().Insert("students").
		Columns("id", "name", "class_id", "guardian_name", "guardian_contact", "photo_url", "date_of_birth", "created_at", "updated_at").
		Values(s.ID, s.Name, s.ClassID, s.GuardianName, s.GuardianContact, s.PhotoURL, s.DateOfBirth, s.CreatedAt, s.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build student insert: %w", err)
	}
	_, err = r.db.Client.ExecContext(ctx, query, args...)
	return err
}

// UpdateStudent overwrites the editable fields of s.
func (r *Repository) UpdateStudent(ctx context.Context, s *Student) error {
	s.UpdatedAt = now()
	query, args, err := r.db.Builder().Update("students").
		Set("name", s.Name).
		Set("class_id", s.ClassID).
		Set("guardian_name", s.GuardianName).
		Set("guardian_contact", s.GuardianContact).
		Set("photo_url", s.PhotoURL).
		Set("date_of_birth", s.DateOfBirth).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build student update: %w", err)
	}
	return r.execOne(ctx, query, args, "student not found")
}

// SetStudentPhoto stores an uploaded photo URL.
func (r *Repository) SetStudentPhoto(ctx context.Context, id, photoURL string) error {
	query, args, err := r.db.Builder().Update("students").
		Set("photo_url", photoURL).
		Set("updated_at", now()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build photo update: %w", err)
	}
	return r.execOne(ctx, query, args, "student not found")
}

// DeleteStudent removes the student row only.
func (r *Repository) DeleteStudent(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "students", id, "student not found")
}

var userColumns = []string{"id", "name", "email", "role", "photo_url", "created_at", "updated_at"}

func scanUser(row interface{ Scan(...any) error }, extra ...any) (UserProfile, error) {
	var u UserProfile
	var role string
	dest := append([]any{&u.ID, &u.Name, &u.Email, &role, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	u.Role = Role(role)
	return u, err
}

// ListTeachers returns users with the teacher role.
func (r *Repository) ListTeachers(ctx context.Context, sort Sort) ([]UserProfile, error) {
	order := "created_at DESC"
	if sort == SortName {
		order = "name ASC"
	}
	query, args, err := r.db.Builder().Select(userColumns...).From("users").
		Where(squirrel.Eq{"role": string(RoleTeacher)}).OrderBy(order).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build teachers query: %w", err)
	}
	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teachers := []UserProfile{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, u)
	}
	return teachers, rows.Err()
}

// GetUser returns a profile or a not-found error.
func (r *Repository) GetUser(ctx context.Context, id string) (UserProfile, error) {
	query, args, err := r.db.Builder().Select(userColumns...).From("users").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return UserProfile{}, fmt.Errorf("build user query: %w", err)
	}
	u, err := scanUser(r.db.Client.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, apperrors.NotFound("user not found")
	}
	return u, err
}

// FindCredentials returns the profile and password hash registered for email.
func (r *Repository) FindCredentials(ctx context.Context, email string) (UserProfile, string, error) {
	query, args, err := r.db.Builder().Select(append(userColumns, "password_hash")...).From("users").
		Where(squirrel.Eq{"email": strings.ToLower(email)}).ToSql()
	if err != nil {
		return UserProfile{}, "", fmt.Errorf("build credentials query: %w", err)
	}
	var hash string
	u, err := scanUser(r.db.Client.QueryRowContext(ctx, query, args...), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, "", apperrors.NotFound("user not found")
	}
	return u, hash, err
}

// CreateUser inserts u with its password hash.
func (r *Repository) CreateUser(ctx context.Context, u *UserProfile, passwordHash string) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	query, args, err := r.db.Builder().Insert("users").
		Columns("id", "name", "email", "role", "password_hash", "photo_url", "created_at", "updated_at").
		Values(u.ID, u.Name, u.Email, string(u.Role), passwordHash, u.PhotoURL, u.CreatedAt, u.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user insert: %w", err)
	}
	_, err = r.db.Client.ExecContext(ctx, query, args...)
	if store.IsUniqueViolation(err) {
		return apperrors.Conflict("an account with this email already exists", err)
	}
	return err
}

// RenameUser updates the display name.
func (r *Repository) RenameUser(ctx context.Context, id, name string) error {
	query, args, err := r.db.Builder().Update("users").
		Set("name", name).
		Set("updated_at", now()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user update: %w", err)
	}
	return r.execOne(ctx, query, args, "user not found")
}

// DeleteUser removes the profile row.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "users", id, "user not found")
}

// Overview counts classes, students and teachers.
func (r *Repository) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	counts := []struct {
		dest  *int
		table string
		where squirrel.Sqlizer
	}{
		{&o.Classes, "classes", nil},
		{&o.Students, "students", nil},
		{&o.Teachers, "users", squirrel.Eq{"role": string(RoleTeacher)}},
	}
	for _, c := range counts {
		b := r.db.Builder().Select("COUNT(*)").From(c.table)
		if c.where != nil {
			b = b.Where(c.where)
		}
		query, args, err := b.ToSql()
		if err != nil {
			return Overview{}, fmt.Errorf("build count query: %w", err)
		}
		if err := r.db.Client.QueryRowContext(ctx, query, args...).Scan(c.dest); err != nil {
			return Overview{}, err
		}
	}
	return o, nil
}

func (r *Repository) deleteByID(ctx context.Context, table, id, notFound string) error {
	query, args, err := r.db.Builder().Delete(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return r.execOne(ctx, query, args, notFound)
}

func (r *Repository) execOne(ctx context.Context, query string, args []any, notFound string) error {
	res, err := r.db.Client.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound(notFound)
	}
	return nil
}
