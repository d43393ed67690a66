package school

import (
	"strings"
	"time"

	"madrasa/internal/apperrors"
)

// Role tags a user profile.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleTeacher    Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleTeacher
}

// ClassSection is a class students belong to.
type ClassSection struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	AcademicYear string    `json:"academic_year,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Normalize trims user input and checks required fields.
func (c *ClassSection) Normalize() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	c.AcademicYear = strings.TrimSpace(c.AcademicYear)
	if c.Name == "" {
		return apperrors.Validation("Class Name is required.")
	}
	return nil
}

// Student belongs to at most one class. ClassName is filled by read-time joins
// and is never stored on the student.
type Student struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ClassID         string    `json:"class_id"`
	ClassName       string    `json:"class_name,omitempty"`
	GuardianName    string    `json:"guardian_name,omitempty"`
	GuardianContact string    `json:"guardian_contact,omitempty"`
	PhotoURL        string    `json:"photo_url,omitempty"`
	DateOfBirth     string    `json:"date_of_birth,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Normalize trims user input and checks required fields.
func (s *Student) Normalize() error {
	s.Name = strings.TrimSpace(s.Name)
	s.ClassID = strings.TrimSpace(s.ClassID)
	s.GuardianName = strings.TrimSpace(s.GuardianName)
	s.GuardianContact = strings.TrimSpace(s.GuardianContact)
	s.PhotoURL = strings.TrimSpace(s.PhotoURL)
	s.DateOfBirth = strings.TrimSpace(s.DateOfBirth)
	if s.Name == "" {
		return apperrors.Validation("Student Name is required.")
	}
	if s.ClassID == "" {
		return apperrors.Validation("Please select a class.")
	}
	if s.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, s.DateOfBirth); err != nil {
			return apperrors.Validation("Date of birth must be YYYY-MM-DD.")
		}
	}
	return nil
}

// UserProfile is the portal's view of an identity.
type UserProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeacherAssignment links a teacher to a class.
type TeacherAssignment struct {
	ID         string    `json:"id"`
	TeacherID  string    `json:"teacher_id"`
	ClassID    string    `json:"class_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Overview is the admin dashboard summary.
type Overview struct {
	Classes  int `json:"classes"`
	Students int `json:"students"`
	Teachers int `json:"teachers"`
}
