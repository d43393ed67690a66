package attendance

import (
	"strconv"

	"madrasa/internal/apperrors"
)

// Status is the value stored on an attendance record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	// StatusPending means no decision has been taken. It is written to the
	// store only when the engine runs with persist-pending enabled.
	StatusPending Status = "pending"
)

// LabelUnmarked is the report label for a student without a record.
const LabelUnmarked = "Unmarked"

// Persistable reports whether s is a decision a caller may set.
func (s Status) Persistable() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Valid reports whether s may appear on a stored record.
func (s Status) Valid() bool {
	return s.Persistable() || s == StatusPending
}

// ParseStatus accepts only the three decision values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Persistable() {
		return "", apperrors.Validation("status must be one of present, absent, late")
	}
	return s, nil
}

// Mark is the state of one student on one class-day: either a recorded
// status or nothing recorded yet.
type Mark struct {
	status   Status
	recorded bool
}

// Recorded returns a mark holding s.
func Recorded(s Status) Mark { return Mark{status: s, recorded: true} }

// NotRecorded returns the empty mark.
func NotRecorded() Mark { return Mark{} }

// Status returns the recorded status, if any.
func (m Mark) Status() (Status, bool) { return m.status, m.recorded }

// IsRecorded reports whether a status exists.
func (m Mark) IsRecorded() bool { return m.recorded }

// SessionStatus is what the roll-call view shows: pending when nothing is recorded.
func (m Mark) SessionStatus() Status {
	if !m.recorded {
		return StatusPending
	}
	return m.status
}

// ReportLabel is what the report shows: Unmarked when nothing is recorded.
func (m Mark) ReportLabel() string {
	if !m.recorded {
		return LabelUnmarked
	}
	return string(m.status)
}

// Tone maps a status or label to a presentation tone.
func Tone(label string) string {
	switch Status(label) {
	case StatusPresent:
		return "success"
	case StatusAbsent:
		return "danger"
	case StatusLate:
		return "warning"
	}
	return "muted"
}

// Percent returns count as a percentage of total, 0 when total is 0.
func Percent(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) * 100 / float64(total)
}

// FormatPercent renders Percent with one decimal, or "0" for an empty total.
func FormatPercent(count, total int) string {
	if total <= 0 {
		return "0"
	}
	return strconv.FormatFloat(Percent(count, total), 'f', 1, 64)
}
