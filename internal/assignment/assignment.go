package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"madrasa/internal/apperrors"
	"madrasa/internal/school"
)

// Batch is applied atomically: Deletes first, then Inserts.
type Batch struct {
	Deletes []string
	Inserts []school.TeacherAssignment
}

// Store persists teacher-class assignments.
type Store interface {
	ListAssignments(ctx context.Context, teacherID string) ([]school.TeacherAssignment, error)
	CommitAssignments(ctx context.Context, b Batch) error
	// ListAssignedClasses returns the classes teacherID is assigned to, by name.
	ListAssignedClasses(ctx context.Context, teacherID string) ([]school.ClassSection, error)
}

// Replacer swaps a teacher's assignment set in one step.
type Replacer struct {
	store Store
	now   func() time.Time
}

// NewReplacer creates a replacer.
func NewReplacer(store Store) *Replacer {
	return &Replacer{store: store, now: time.Now}
}

// Current returns the assignments of teacherID.
func (r *Replacer) Current(ctx context.Context, teacherID string) ([]school.TeacherAssignment, error) {
	if teacherID == "" {
		return nil, apperrors.Validation("teacher id is required")
	}
	list, err := r.store.ListAssignments(ctx, teacherID)
	if err != nil {
		return nil, apperrors.Store("Failed to load assignments", err)
	}
	return list, nil
}

// Classes returns the classes a teacher may see.
func (r *Replacer) Classes(ctx context.Context, teacherID string) ([]school.ClassSection, error) {
	list, err := r.store.ListAssignedClasses(ctx, teacherID)
	if err != nil {
		return nil, apperrors.Store("Failed to load classes", err)
	}
	return list, nil
}

// Replace makes classIDs the complete assignment set of teacherID. Duplicate
// and empty ids are ignored; an empty list clears every assignment. Either the
// whole replacement lands or nothing changes.
func (r *Replacer) Replace(ctx context.Context, teacherID string, classIDs []string) ([]school.TeacherAssignment, error) {
	if teacherID == "" {
		return nil, apperrors.Validation("teacher id is required")
	}
	existing, err := r.store.ListAssignments(ctx, teacherID)
	if err != nil {
		return nil, apperrors.Store("Failed to update assignments", err)
	}

	var b Batch
	for _, a := range existing {
		b.Deletes = append(b.Deletes, a.ID)
	}
	assignedAt := r.now().UTC()
	seen := make(map[string]bool, len(classIDs))
	for _, id := range classIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		b.Inserts = append(b.Inserts, school.TeacherAssignment{
			ID:         uuid.NewString(),
			TeacherID:  teacherID,
			ClassID:    id,
			AssignedAt: assignedAt,
		})
	}

	if len(b.Deletes) == 0 && len(b.Inserts) == 0 {
		return []school.TeacherAssignment{}, nil
	}
	if err := r.store.CommitAssignments(ctx, b); err != nil {
		return nil, apperrors.Store("Failed to update assignments", err)
	}
	if b.Inserts == nil {
		return []school.TeacherAssignment{}, nil
	}
	return b.Inserts, nil
}
