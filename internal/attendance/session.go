package attendance

import (
	"madrasa/internal/apperrors"
	"madrasa/internal/school"
)

// Entry is one row of a roll-call, in roster order.
type Entry struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Status      Status `json:"status"`
	Marked      bool   `json:"marked"`
}

// SessionStats summarises a roll-call.
type SessionStats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Pending int `json:"pending"`
}

// Session is the editable roll-call for one class-day. It holds exactly one
// mark per roster student.
type Session struct {
	ClassID string
	Date    Date

	roster   []school.Student
	marks    map[string]Mark
	degraded bool
}

func newSession(classID string, date Date, roster []school.Student) *Session {
	s := &Session{
		ClassID: classID,
		Date:    date,
		roster:  roster,
		marks:   make(map[string]Mark, len(roster)),
	}
	for _, st := range roster {
		s.marks[st.ID] = NotRecorded()
	}
	return s
}

// Len returns the roster size.
func (s *Session) Len() int { return len(s.roster) }

// SetStatus records a decision for studentID. Setting the same status twice
// has no further effect.
func (s *Session) SetStatus(studentID string, status Status) error {
	if !status.Persistable() {
		return apperrors.Validation("status must be one of present, absent, late")
	}
	if _, ok := s.marks[studentID]; !ok {
		return apperrors.NotFound("student " + studentID + " is not on this roll-call")
	}
	s.marks[studentID] = Recorded(status)
	return nil
}

// Degraded reports whether existing attendance could not be read when the
// session was loaded, so every entry started out unrecorded.
func (s *Session) Degraded() bool { return s.degraded }

// Mark returns the current mark for studentID.
func (s *Session) Mark(studentID string) (Mark, bool) {
	m, ok := s.marks[studentID]
	return m, ok
}

// merge overwrites marks for roster students only. A stored pending
// placeholder is not a decision and stays unrecorded.
func (s *Session) merge(records []Record) {
	for _, r := range records {
		if _, ok := s.marks[r.StudentID]; !ok || !r.Status.Persistable() {
			continue
		}
		s.marks[r.StudentID] = Recorded(r.Status)
	}
}

// Entries lists the roll-call in roster order.
func (s *Session) Entries() []Entry {
	out := make([]Entry, 0, len(s.roster))
	for _, st := range s.roster {
		m := s.marks[st.ID]
		out = append(out, Entry{
			StudentID:   st.ID,
			StudentName: st.Name,
			Status:      m.SessionStatus(),
			Marked:      m.IsRecorded(),
		})
	}
	return out
}

// Statuses returns student id -> displayed status.
func (s *Session) Statuses() map[string]Status {
	out := make(map[string]Status, len(s.marks))
	for id, m := range s.marks {
		out[id] = m.SessionStatus()
	}
	return out
}

// Stats counts the displayed statuses.
func (s *Session) Stats() SessionStats {
	stats := SessionStats{Total: len(s.roster)}
	for _, m := range s.marks {
		switch m.SessionStatus() {
		case StatusPresent:
			stats.Present++
		case StatusAbsent:
			stats.Absent++
		case StatusLate:
			stats.Late++
		default:
			stats.Pending++
		}
	}
	return stats
}
