package school

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"madrasa/internal/apperrors"
)

// MinPasswordLength is enforced when provisioning accounts.
const MinPasswordLength = 6

var validate = validator.New()

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// HashPassword returns a bcrypt hash suitable for Users.CreateUser.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// NewTeacher is the input for teacher provisioning.
type NewTeacher struct {
	Name     string
	Email    string
	Password string
}

// Service validates admin CRUD input before it reaches the store.
type Service struct {
	store Store
}

// NewService creates a service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Store exposes the underlying store for read paths.
func (s *Service) Store() Store { return s.store }

// CreateClass validates and persists a new class.
func (s *Service) CreateClass(ctx context.Context, in ClassSection) (ClassSection, error) {
	if err := in.Normalize(); err != nil {
		return ClassSection{}, err
	}
	in.ID = ""
	if err := s.store.CreateClass(ctx, &in); err != nil {
		return ClassSection{}, apperrors.Store("Failed to create class", err)
	}
	return in, nil
}

// UpdateClass overwrites the editable fields of an existing class.
func (s *Service) UpdateClass(ctx context.Context, id string, in ClassSection) (ClassSection, error) {
	current, err := s.store.GetClass(ctx, id)
	if err != nil {
		return ClassSection{}, apperrors.Store("Failed to load class", err)
	}
	current.Name = in.Name
	current.Description = in.Description
	current.AcademicYear = in.AcademicYear
	if err := current.Normalize(); err != nil {
		return ClassSection{}, err
	}
	if err := s.store.UpdateClass(ctx, &current); err != nil {
		return ClassSection{}, apperrors.Store("Failed to update class", err)
	}
	return current, nil
}

// DeleteClass removes a class. Students and attendance are left untouched.
func (s *Service) DeleteClass(ctx context.Context, id string) error {
	return apperrors.Store("Failed to delete class", s.store.DeleteClass(ctx, id))
}

// CreateStudent validates and persists a new student.
func (s *Service) CreateStudent(ctx context.Context, in Student) (Student, error) {
	if err := in.Normalize(); err != nil {
		return Student{}, err
	}
	if err := s.requireClass(ctx, in.ClassID); err != nil {
		return Student{}, err
	}
	in.ID = ""
	if err := s.store.CreateStudent(ctx, &in); err != nil {
		return Student{}, apperrors.Store("Failed to add student", err)
	}
	return in, nil
}

// UpdateStudent overwrites the editable fields of an existing student.
func (s *Service) UpdateStudent(ctx context.Context, id string, in Student) (Student, error) {
	current, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, apperrors.Store("Failed to load student", err)
	}
	in.ID = current.ID
	in.CreatedAt = current.CreatedAt
	if err := in.Normalize(); err != nil {
		return Student{}, err
	}
	if err := s.requireClass(ctx, in.ClassID); err != nil {
		return Student{}, err
	}
	if err := s.store.UpdateStudent(ctx, &in); err != nil {
		return Student{}, apperrors.Store("Failed to update student", err)
	}
	return in, nil
}

// DeleteStudent removes a student. Attendance history is kept.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	return apperrors.Store("Failed to delete student", s.store.DeleteStudent(ctx, id))
}

// CreateTeacher provisions a teacher identity and profile.
func (s *Service) CreateTeacher(ctx context.Context, in NewTeacher) (UserProfile, error) {
	return s.createUser(ctx, in, RoleTeacher)
}

// CreateAdmin provisions a super admin. Only reachable from the admin CLI.
func (s *Service) CreateAdmin(ctx context.Context, in NewTeacher) (UserProfile, error) {
	return s.createUser(ctx, in, RoleSuperAdmin)
}

func (s *Service) createUser(ctx context.Context, in NewTeacher, role Role) (UserProfile, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return UserProfile{}, apperrors.Validation("Name is required.")
	}
	if !ValidEmail(email) {
		return UserProfile{}, apperrors.Validation("A valid email is required.")
	}
	if len(in.Password) < MinPasswordLength {
		return UserProfile{}, apperrors.Validation("Password must be at least 6 characters.")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return UserProfile{}, apperrors.Store("Failed to create account", err)
	}
	u := UserProfile{Name: name, Email: email, Role: role}
	if err := s.store.CreateUser(ctx, &u, hash); err != nil {
		return UserProfile{}, apperrors.Store("Failed to create account", err)
	}
	return u, nil
}

// RenameTeacher changes a teacher's display name.
func (s *Service) RenameTeacher(ctx context.Context, id, name string) (UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UserProfile{}, apperrors.Validation("Name is required.")
	}
	u, err := s.Teacher(ctx, id)
	if err != nil {
		return UserProfile{}, err
	}
	if err := s.store.RenameUser(ctx, id, name); err != nil {
		return UserProfile{}, apperrors.Store("Failed to update teacher", err)
	}
	u.Name = name
	return u, nil
}

// DeleteTeacher removes the teacher profile. Recorded attendance keeps the id.
func (s *Service) DeleteTeacher(ctx context.Context, id string) error {
	if _, err := s.Teacher(ctx, id); err != nil {
		return err
	}
	return apperrors.Store("Failed to delete teacher", s.store.DeleteUser(ctx, id))
}

// Teacher returns the profile of id, or a not-found error when id is missing
// or not a teacher.
func (s *Service) Teacher(ctx context.Context, id string) (UserProfile, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return UserProfile{}, apperrors.Store("Failed to load teacher", err)
	}
	if u.Role != RoleTeacher {
		return UserProfile{}, apperrors.NotFound("teacher not found")
	}
	return u, nil
}

// TeacherDirectory indexes every teacher for report rendering.
func (s *Service) TeacherDirectory(ctx context.Context) (Directory, error) {
	teachers, err := s.store.ListTeachers(ctx, SortName)
	if err != nil {
		return nil, apperrors.Store("Failed to load teachers", err)
	}
	return NewDirectory(teachers), nil
}

func (s *Service) requireClass(ctx context.Context, classID string) error {
	if _, err := s.store.GetClass(ctx, classID); err != nil {
		return apperrors.Store("Failed to load class", err)
	}
	return nil
}
