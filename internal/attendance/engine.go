package attendance

import (
	"context"
	"errors"

	"madrasa/internal/apperrors"
	"madrasa/internal/logger"
)

// SaveResult counts the operations of a committed roll-call.
type SaveResult struct {
	Created int
	Updated int
	Skipped int
}

// SavedFunc is called after a roll-call commits.
type SavedFunc func(ctx context.Context, classID string, date Date)

// Engine reconciles class rosters with attendance records.
type Engine struct {
	roster         Roster
	records        Store
	persistPending bool
	onSaved        []SavedFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersistPending controls whether undecided roll-call entries are written
// as pending records (true) or left out of the batch (false).
func WithPersistPending(on bool) Option {
	return func(e *Engine) { e.persistPending = on }
}

// WithSavedHook registers fn to run after every successful save.
func WithSavedHook(fn SavedFunc) Option {
	return func(e *Engine) { e.onSaved = append(e.onSaved, fn) }
}

// NewEngine creates an engine. Pending entries are persisted by default.
func NewEngine(roster Roster, records Store, opts ...Option) *Engine {
	e := &Engine{roster: roster, records: records, persistPending: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PersistsPending reports the pending policy in effect.
func (e *Engine) PersistsPending() bool { return e.persistPending }

// LoadSession builds the roll-call for classID on date. The roster is
// required; existing attendance is best effort and a failed lookup yields an
// all-pending session.
func (e *Engine) LoadSession(ctx context.Context, classID string, date Date) (*Session, error) {
	if err := checkKey(classID, date); err != nil {
		return nil, err
	}

	students, err := e.roster.ListStudentsByClass(ctx, classID)
	if err != nil {
		return nil, apperrors.Store("Failed to load data for attendance", err)
	}
	s := newSession(classID, date, students)
	if len(students) == 0 {
		return s, nil
	}

	records, err := e.records.ListRecords(ctx, Query{ClassID: classID, Date: date})
	if err != nil {
		logger.Warn().Err(err).Str("class_id", classID).Str("date", date.String()).
			Msg("existing attendance unavailable, defaulting roll-call to pending")
		s.degraded = true
		return s, nil
	}
	s.merge(records)
	return s, nil
}

// SaveSession writes the session as one atomic batch: existing records for
// the class-day get a status update, every other student gets a new record.
// Undecided entries never overwrite a stored record, so saving a session
// loaded without its history cannot erase what is stored.
// Running it twice with the same session leaves the same records behind.
func (e *Engine) SaveSession(ctx context.Context, s *Session, teacherID string) (SaveResult, error) {
	if s == nil || s.Len() == 0 {
		return SaveResult{}, apperrors.Validation("Error: Missing class, students, or date.")
	}
	if err := checkKey(s.ClassID, s.Date); err != nil {
		return SaveResult{}, err
	}

	existing, err := e.records.ListRecords(ctx, Query{ClassID: s.ClassID, Date: s.Date})
	if err != nil {
		return SaveResult{}, apperrors.Store("Failed to save attendance", err)
	}
	recordIDs := make(map[string]string, len(existing))
	for _, r := range existing {
		if _, dup := recordIDs[r.StudentID]; !dup {
			recordIDs[r.StudentID] = r.ID
		}
	}

	var (
		batch  Batch
		result SaveResult
	)
	for _, st := range s.roster {
		id, exists := recordIDs[st.ID]
		status, decided := s.marks[st.ID].Status()
		if !decided {
			// never downgrade a stored record to a placeholder
			if exists || !e.persistPending {
				result.Skipped++
				continue
			}
			status = StatusPending
		}
		if exists {
			batch.Updates = append(batch.Updates, StatusUpdate{ID: id, Status: status})
			continue
		}
		batch.Creates = append(batch.Creates, Record{
			StudentID: st.ID,
			ClassID:   s.ClassID,
			Date:      s.Date,
			Status:    status,
			TeacherID: teacherID,
		})
	}
	result.Created = len(batch.Creates)
	result.Updated = len(batch.Updates)

	if batch.Empty() {
		return result, nil
	}
	if err := e.records.CommitBatch(ctx, batch); err != nil {
		return SaveResult{}, apperrors.Store("Failed to save attendance", err)
	}

	for _, fn := range e.onSaved {
		fn(ctx, s.ClassID, s.Date)
	}
	return result, nil
}

// HistoryEntry is one stored record with its student's name.
type HistoryEntry struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Status      Status `json:"status"`
}

// History lists what was recorded for a class-day, as the teacher dashboard
// shows it. Totals are over the records found, not the roster.
type History struct {
	ClassID string         `json:"class_id"`
	Date    Date           `json:"date"`
	Total   int            `json:"total"`
	Present int            `json:"present"`
	Absent  int            `json:"absent"`
	Late    int            `json:"late"`
	Entries []HistoryEntry `json:"entries"`
}

// History loads the stored records of a class-day. Records of deleted
// students are dropped.
func (e *Engine) History(ctx context.Context, classID string, date Date) (*History, error) {
	if err := checkKey(classID, date); err != nil {
		return nil, err
	}
	records, err := e.records.ListRecords(ctx, Query{ClassID: classID, Date: date})
	if err != nil {
		return nil, apperrors.Store("Failed to load attendance history", err)
	}

	h := &History{ClassID: classID, Date: date, Entries: make([]HistoryEntry, 0, len(records))}
	for _, r := range records {
		st, err := e.roster.GetStudent(ctx, r.StudentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.Store("Failed to load attendance history", err)
		}
		h.Entries = append(h.Entries, HistoryEntry{StudentID: st.ID, StudentName: st.Name, Status: r.Status})
		switch r.Status {
		case StatusPresent:
			h.Present++
		case StatusAbsent:
			h.Absent++
		case StatusLate:
			h.Late++
		}
	}
	h.Total = len(h.Entries)
	return h, nil
}

func checkKey(classID string, date Date) error {
	if classID == "" {
		return apperrors.Validation("Please select a class.")
	}
	if _, err := ParseDate(string(date)); err != nil {
		return err
	}
	return nil
}
