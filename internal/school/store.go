package school

import "context"

// Sort selects list ordering.
type Sort int

const (
	// SortNewest orders by creation time, newest first.
	SortNewest Sort = iota
	// SortName orders alphabetically by name.
	SortName
)

// Classes persists class sections.
type Classes interface {
	ListClasses(ctx context.Context, sort Sort) ([]ClassSection, error)
	GetClass(ctx context.Context, id string) (ClassSection, error)
	CreateClass(ctx context.Context, c *ClassSection) error
	UpdateClass(ctx context.Context, c *ClassSection) error
	DeleteClass(ctx context.Context, id string) error
}

// Students persists students. List methods fill ClassName at read time.
type Students interface {
	ListStudents(ctx context.Context) ([]Student, error)
	// ListStudentsByClass returns the roster ordered by name.
	ListStudentsByClass(ctx context.Context, classID string) ([]Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	CreateStudent(ctx context.Context, s *Student) error
	UpdateStudent(ctx context.Context, s *Student) error
	SetStudentPhoto(ctx context.Context, id, photoURL string) error
	DeleteStudent(ctx context.Context, id string) error
}

// Users persists user profiles and their password hashes.
type Users interface {
	ListTeachers(ctx context.Context, sort Sort) ([]UserProfile, error)
	GetUser(ctx context.Context, id string) (UserProfile, error)
	// FindCredentials returns the profile and bcrypt hash for email.
	FindCredentials(ctx context.Context, email string) (UserProfile, string, error)
	CreateUser(ctx context.Context, u *UserProfile, passwordHash string) error
	RenameUser(ctx context.Context, id, name string) error
	DeleteUser(ctx context.Context, id string) error
}

// Store is everything the admin views need.
type Store interface {
	Classes
	Students
	Users
	Overview(ctx context.Context) (Overview, error)
}
