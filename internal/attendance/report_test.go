package attendance_test

import (
	"context"
	"testing"

	"madrasa/internal/attendance"
	"madrasa/internal/school"
)

func TestBuildReportScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Sara", "bilal", "Ali")
	eng := attendance.NewEngine(f.mem, f.mem)

	s, _ := eng.LoadSession(ctx, f.class.ID, day)
	_ = s.SetStatus(f.ids["Ali"], attendance.StatusPresent)
	_ = s.SetStatus(f.ids["bilal"], attendance.StatusAbsent)
	if _, err := eng.SaveSession(ctx, s, "t1"); err != nil {
		t.Fatal(err)
	}

	dir := school.Directory{"t1": "Ustadh Omar"}
	rep, err := eng.BuildReport(ctx, attendance.ReportRequest{ClassID: f.class.ID, Date: day}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalStudents != 3 || rep.Present != 1 || rep.Absent != 1 || rep.Late != 0 {
		t.Fatalf("counts = %+v", rep)
	}
	want := []string{"Ali:present", "bilal:absent", "Sara:pending"}
	if len(rep.Details) != len(want) {
		t.Fatalf("details = %+v", rep.Details)
	}
	for i, d := range rep.Details {
		if got := d.StudentName + ":" + d.Status; got != want[i] {
			t.Fatalf("detail %d = %s, want %s", i, got, want[i])
		}
		if d.TeacherName != "Ustadh Omar" {
			t.Fatalf("teacher = %q", d.TeacherName)
		}
	}
	pct := rep.Percentages()
	if pct.Present < 33.3 || pct.Present > 33.4 {
		t.Fatalf("present pct = %v", pct.Present)
	}
}

func TestBuildReportEmptyClass(t *testing.T) {
	f := newFixture(t)
	eng := attendance.NewEngine(f.mem, f.mem)
	rep, err := eng.BuildReport(context.Background(), attendance.ReportRequest{ClassID: f.class.ID, Date: day}, nil)
	if err != nil {
		t.Fatalf("empty class is not an error: %v", err)
	}
	if rep.TotalStudents != 0 || rep.Details == nil || len(rep.Details) != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Percentages().Present != 0 {
		t.Fatal("percentages of an empty class must be 0")
	}
}

func TestBuildReportTeacherFilterAndLabels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Ali", "Bilal", "Sara", "Zaid")
	f.mem.PutRecord(attendance.Record{StudentID: f.ids["Ali"], ClassID: f.class.ID, Date: day, Status: attendance.StatusPresent, TeacherID: "t1"})
	f.mem.PutRecord(attendance.Record{StudentID: f.ids["Bilal"], ClassID: f.class.ID, Date: day, Status: attendance.StatusLate, TeacherID: "t2"})
	f.mem.PutRecord(attendance.Record{StudentID: f.ids["Sara"], ClassID: f.class.ID, Date: day, Status: attendance.StatusAbsent})
	// orphan record of a student no longer on the roster
	f.mem.PutRecord(attendance.Record{StudentID: "gone", ClassID: f.class.ID, Date: day, Status: attendance.StatusPresent, TeacherID: "t1"})
	eng := attendance.NewEngine(f.mem, f.mem)
	dir := school.Directory{"t1": "Ustadh Omar"}

	rep, err := eng.BuildReport(ctx, attendance.ReportRequest{ClassID: f.class.ID, Date: day}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalStudents != 4 || rep.Present != 1 || rep.Late != 1 || rep.Absent != 1 {
		t.Fatalf("orphans must not be counted: %+v", rep)
	}
	byName := map[string]attendance.Detail{}
	for _, d := range rep.Details {
		byName[d.StudentName] = d
	}
	if byName["Bilal"].TeacherName != attendance.TeacherUnknown {
		t.Fatalf("unresolved teacher = %q", byName["Bilal"].TeacherName)
	}
	if byName["Sara"].TeacherName != attendance.TeacherNotApplicable {
		t.Fatalf("no teacher = %q", byName["Sara"].TeacherName)
	}
	if byName["Zaid"].Status != attendance.LabelUnmarked || byName["Zaid"].TeacherName != attendance.TeacherNotApplicable {
		t.Fatalf("unmarked = %+v", byName["Zaid"])
	}

	filtered, err := eng.BuildReport(ctx, attendance.ReportRequest{ClassID: f.class.ID, Date: day, TeacherID: "t1"}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if filtered.TotalStudents != 4 || filtered.Present != 1 || filtered.Late != 0 || filtered.Absent != 0 {
		t.Fatalf("filtered = %+v", filtered)
	}
	unmarked := 0
	for _, d := range filtered.Details {
		if d.Status == attendance.LabelUnmarked {
			unmarked++
		}
	}
	if unmarked != 3 {
		t.Fatalf("filtered unmarked = %d", unmarked)
	}
}
