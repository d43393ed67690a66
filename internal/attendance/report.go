package attendance

import (
	"context"
	"sort"
	"strings"

	"madrasa/internal/apperrors"
)

// Teacher name placeholders used in report details.
const (
	TeacherNotApplicable = "N/A"
	TeacherUnknown       = "Unknown"
)

// ReportRequest selects a class-day, optionally narrowed to one teacher's records.
type ReportRequest struct {
	ClassID   string
	Date      Date
	TeacherID string
}

// Detail is one roster student in a report.
type Detail struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Status      string `json:"status"`
	TeacherName string `json:"teacher_name"`
}

// Report aggregates one class-day. Details has one row per roster student.
type Report struct {
	ClassID       string   `json:"class_id"`
	Date          Date     `json:"date"`
	TeacherID     string   `json:"teacher_id,omitempty"`
	TotalStudents int      `json:"total_students"`
	Present       int      `json:"present"`
	Absent        int      `json:"absent"`
	Late          int      `json:"late"`
	Details       []Detail `json:"details"`
}

// Percentages are derived from a report's counts.
type Percentages struct {
	Present float64 `json:"present"`
	Absent  float64 `json:"absent"`
	Late    float64 `json:"late"`
}

// Percentages returns the counts relative to TotalStudents.
func (r *Report) Percentages() Percentages {
	return Percentages{
		Present: Percent(r.Present, r.TotalStudents),
		Absent:  Percent(r.Absent, r.TotalStudents),
		Late:    Percent(r.Late, r.TotalStudents),
	}
}

// BuildReport joins the roster of req.ClassID with the class-day's records.
// Students without a record are reported as Unmarked and count only toward
// the total. An empty class yields a zero report.
func (e *Engine) BuildReport(ctx context.Context, req ReportRequest, dir TeacherDirectory) (*Report, error) {
	if err := checkKey(req.ClassID, req.Date); err != nil {
		return nil, err
	}
	rep := &Report{ClassID: req.ClassID, Date: req.Date, TeacherID: req.TeacherID, Details: []Detail{}}

	students, err := e.roster.ListStudentsByClass(ctx, req.ClassID)
	if err != nil {
		return nil, apperrors.Store("Failed to generate report", err)
	}
	if len(students) == 0 {
		return rep, nil
	}

	records, err := e.records.ListRecords(ctx, Query{ClassID: req.ClassID, Date: req.Date, TeacherID: req.TeacherID})
	if err != nil {
		return nil, apperrors.Store("Failed to generate report", err)
	}
	byStudent := make(map[string]Record, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	rep.TotalStudents = len(students)
	rep.Details = make([]Detail, 0, len(students))
	for _, st := range students {
		mark := NotRecorded()
		teacherName := TeacherNotApplicable
		if r, ok := byStudent[st.ID]; ok {
			mark = Recorded(r.Status)
			if r.TeacherID != "" {
				teacherName = resolveTeacher(dir, r.TeacherID)
			}
		}
		switch s, _ := mark.Status(); s {
		case StatusPresent:
			rep.Present++
		case StatusAbsent:
			rep.Absent++
		case StatusLate:
			rep.Late++
		}
		rep.Details = append(rep.Details, Detail{
			StudentID:   st.ID,
			StudentName: st.Name,
			Status:      mark.ReportLabel(),
			TeacherName: teacherName,
		})
	}

	sort.SliceStable(rep.Details, func(i, j int) bool {
		return strings.ToLower(rep.Details[i].StudentName) < strings.ToLower(rep.Details[j].StudentName)
	})
	return rep, nil
}

func resolveTeacher(dir TeacherDirectory, id string) string {
	if dir == nil {
		return TeacherUnknown
	}
	if name, ok := dir.ResolveName(id); ok && name != "" {
		return name
	}
	return TeacherUnknown
}
