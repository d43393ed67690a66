package attendance

import (
	"context"
	"time"

	"madrasa/internal/school"
)

// Record is one student's status on one class-day. (StudentID, ClassID, Date)
// is the natural key: at most one record exists per triple.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      Date      `json:"date"`
	Status    Status    `json:"status"`
	TeacherID string    `json:"teacher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Query selects records by equality. TeacherID is optional.
type Query struct {
	ClassID   string
	Date      Date
	TeacherID string
}

// StatusUpdate changes the status of an existing record and nothing else.
type StatusUpdate struct {
	ID     string
	Status Status
}

// Batch is committed all-or-nothing.
type Batch struct {
	Creates []Record
	Updates []StatusUpdate
}

// Empty reports whether the batch has no operations.
func (b Batch) Empty() bool { return len(b.Creates) == 0 && len(b.Updates) == 0 }

// Store is the attendance record collection.
type Store interface {
	ListRecords(ctx context.Context, q Query) ([]Record, error)
	// CommitBatch applies every operation or none. Creates without an ID get a
	// generated one and a store-assigned CreatedAt.
	CommitBatch(ctx context.Context, b Batch) error
}

// Roster looks up students.
type Roster interface {
	// ListStudentsByClass returns the class roster ordered by name.
	ListStudentsByClass(ctx context.Context, classID string) ([]school.Student, error)
	GetStudent(ctx context.Context, id string) (school.Student, error)
}

// TeacherDirectory resolves the teacher who recorded a status.
type TeacherDirectory interface {
	ResolveName(teacherID string) (string, bool)
}
