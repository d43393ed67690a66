// Package memstore keeps every collection in process memory. It backs
// STORE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"madrasa/internal/apperrors"
	"madrasa/internal/assignment"
	"madrasa/internal/attendance"
	"madrasa/internal/school"
)

type user struct {
	profile school.UserProfile
	hash    string
}

type refreshToken struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

// Store is safe for concurrent use. Batches apply under one lock, so they are
// all-or-nothing.
type Store struct {
	mu sync.RWMutex

	classes     map[string]school.ClassSection
	students    map[string]school.Student
	users       map[string]user
	records     map[string]attendance.Record
	assignments map[string]school.TeacherAssignment
	tokens      map[string]refreshToken

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		classes:     map[string]school.ClassSection{},
		students:    map[string]school.Student{},
		users:       map[string]user{},
		records:     map[string]attendance.Record{},
		assignments: map[string]school.TeacherAssignment{},
		tokens:      map[string]refreshToken{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// ---- classes

func (s *Store) ListClasses(_ context.Context, order school.Sort) ([]school.ClassSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]school.ClassSection, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == school.SortName {
			return out[i].Name < out[j].Name
		}
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) GetClass(_ context.Context, id string) (school.ClassSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return school.ClassSection{}, apperrors.NotFound("Class details not found for ID: " + id + ".")
	}
	return c, nil
}

func (s *Store) CreateClass(_ context.Context, c *school.ClassSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID(c.ID)
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.classes[c.ID] = *c
	return nil
}

func (s *Store) UpdateClass(_ context.Context, c *school.ClassSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.classes[c.ID]
	if !ok {
		return apperrors.NotFound("class not found")
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now()
	s.classes[c.ID] = *c
	return nil
}

func (s *Store) DeleteClass(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[id]; !ok {
		return apperrors.NotFound("class not found")
	}
	delete(s.classes, id)
	return nil
}

// ---- students

func (s *Store) withClassName(st school.Student) school.Student {
	st.ClassName = s.classes[st.ClassID].Name
	return st
}

func (s *Store) ListStudents(_ context.Context) ([]school.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]school.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, s.withClassName(st))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) ListStudentsByClass(_ context.Context, classID string) ([]school.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []school.Student{}
	for _, st := range s.students {
		if st.ClassID == classID {
			out = append(out, s.withClassName(st))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetStudent(_ context.Context, id string) (school.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return school.Student{}, apperrors.NotFound("student not found")
	}
	return s.withClassName(st), nil
}

func (s *Store) CreateStudent(_ context.Context, st *school.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = newID(st.ID)
	st.CreatedAt = s.now()
	st.UpdatedAt = st.CreatedAt
	stored := *st
	stored.ClassName = ""
	s.students[st.ID] = stored
	st.ClassName = s.classes[st.ClassID].Name
	return nil
}

func (s *Store) UpdateStudent(_ context.Context, st *school.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.students[st.ID]
	if !ok {
		return apperrors.NotFound("student not found")
	}
	st.CreatedAt = cur.CreatedAt
	st.UpdatedAt = s.now()
	stored := *st
	stored.ClassName = ""
	s.students[st.ID] = stored
	st.ClassName = s.classes[st.ClassID].Name
	return nil
}

func (s *Store) SetStudentPhoto(_ context.Context, id, photoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return apperrors.NotFound("student not found")
	}
	st.PhotoURL = photoURL
	st.UpdatedAt = s.now()
	s.students[id] = st
	return nil
}

func (s *Store) DeleteStudent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return apperrors.NotFound("student not found")
	}
	delete(s.students, id)
	return nil
}

// ---- users

func (s *Store) ListTeachers(_ context.Context, order school.Sort) ([]school.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []school.UserProfile{}
	for _, u := range s.users {
		if u.profile.Role == school.RoleTeacher {
			out = append(out, u.profile)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == school.SortName {
			return out[i].Name < out[j].Name
		}
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id string) (school.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return school.UserProfile{}, apperrors.NotFound("user not found")
	}
	return u.profile, nil
}

func (s *Store) FindCredentials(_ context.Context, email string) (school.UserProfile, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.profile.Email == email {
			return u.profile, u.hash, nil
		}
	}
	return school.UserProfile{}, "", apperrors.NotFound("user not found")
}

func (s *Store) CreateUser(_ context.Context, u *school.UserProfile, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.profile.Email == u.Email {
			return apperrors.Conflict("an account with this email already exists", nil)
		}
	}
	u.ID = newID(u.ID)
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = user{profile: *u, hash: passwordHash}
	return nil
}

func (s *Store) RenameUser(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.profile.Name = name
	u.profile.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return apperrors.NotFound("user not found")
	}
	delete(s.users, id)
	return nil
}

func (s *Store) Overview(_ context.Context) (school.Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := school.Overview{Classes: len(s.classes), Students: len(s.students)}
	for _, u := range s.users {
		if u.profile.Role == school.RoleTeacher {
			o.Teachers++
		}
	}
	return o, nil
}

// ---- attendance

func (s *Store) ListRecords(_ context.Context, q attendance.Query) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []attendance.Record{}
	for _, r := range s.records {
		if r.ClassID != q.ClassID || r.Date != q.Date {
			continue
		}
		if q.TeacherID != "" && r.TeacherID != q.TeacherID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CommitBatch validates every operation before applying any of them.
func (s *Store) CommitBatch(_ context.Context, b attendance.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make(map[string]bool, len(s.records)+len(b.Creates))
	for _, r := range s.records {
		keys[naturalKey(r)] = true
	}
	creates := make([]attendance.Record, 0, len(b.Creates))
	for _, r := range b.Creates {
		if !r.Status.Valid() {
			return apperrors.Validation("invalid status " + string(r.Status))
		}
		k := naturalKey(r)
		if keys[k] {
			return apperrors.Conflict("attendance for "+r.StudentID+" on "+string(r.Date)+" was recorded concurrently", nil)
		}
		keys[k] = true
		r.ID = newID(r.ID)
		r.CreatedAt = s.now()
		creates = append(creates, r)
	}
	for _, u := range b.Updates {
		if !u.Status.Valid() {
			return apperrors.Validation("invalid status " + string(u.Status))
		}
		if _, ok := s.records[u.ID]; !ok {
			return apperrors.Conflict("attendance record "+u.ID+" disappeared during save", nil)
		}
	}

	for _, r := range creates {
		s.records[r.ID] = r
	}
	for _, u := range b.Updates {
		r := s.records[u.ID]
		r.Status = u.Status
		s.records[u.ID] = r
	}
	return nil
}

// Records returns every stored record, for assertions.
func (s *Store) Records() []attendance.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]attendance.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutRecord stores r as is, bypassing the natural key check.
func (s *Store) PutRecord(r attendance.Record) attendance.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = newID(r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.records[r.ID] = r
	return r
}

func naturalKey(r attendance.Record) string {
	return r.StudentID + "\x00" + r.ClassID + "\x00" + string(r.Date)
}

// ---- assignments

func (s *Store) ListAssignments(_ context.Context, teacherID string) ([]school.TeacherAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []school.TeacherAssignment{}
	for _, a := range s.assignments {
		if a.TeacherID == teacherID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CommitAssignments(_ context.Context, b assignment.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range b.Deletes {
		delete(s.assignments, id)
	}
	for _, a := range b.Inserts {
		a.ID = newID(a.ID)
		s.assignments[a.ID] = a
	}
	return nil
}

func (s *Store) ListAssignedClasses(_ context.Context, teacherID string) ([]school.ClassSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	out := []school.ClassSection{}
	for _, a := range s.assignments {
		if a.TeacherID != teacherID || seen[a.ClassID] {
			continue
		}
		c, ok := s.classes[a.ClassID]
		if !ok {
			continue
		}
		seen[a.ClassID] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- refresh tokens

func (s *Store) SaveRefreshToken(_ context.Context, token, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = refreshToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Store) FindRefreshToken(_ context.Context, token string) (string, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return "", time.Time{}, false, apperrors.NotFound("refresh token not found")
	}
	return t.userID, t.expiresAt, t.revoked, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil
	}
	t.revoked = true
	s.tokens[token] = t
	return nil
}

// Healthy always reports true.
func (s *Store) Healthy(context.Context) bool { return true }

func newer(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}
