// Package export renders attendance reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"madrasa/internal/attendance"
)

// SheetName is the single sheet of an exported report.
const SheetName = "Attendance"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename suggests a download name for rep.
func Filename(className string, rep *attendance.Report) string {
	if className == "" {
		className = rep.ClassID
	}
	return fmt.Sprintf("attendance_%s_%s.xlsx", sanitize(className), rep.Date)
}

// WriteReport writes rep as an XLSX workbook: a summary block followed by one
// row per roster student.
func WriteReport(w io.Writer, className string, rep *attendance.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	pct := rep.Percentages()
	summary := [][]any{
		{"Class", className},
		{"Date", rep.Date.String()},
		{"Total students", rep.TotalStudents},
		{"Present", rep.Present, pct.Present},
		{"Absent", rep.Absent, pct.Absent},
		{"Late", rep.Late, pct.Late},
	}
	row := 1
	for _, values := range summary {
		if err := setRow(f, row, values); err != nil {
			return err
		}
		row++
	}

	row++
	headerRow := row
	if err := setRow(f, row, []any{"Student", "Status", "Recorded by"}); err != nil {
		return err
	}
	for _, d := range rep.Details {
		row++
		if err := setRow(f, row, []any{d.StudentName, d.Status, d.TeacherName}); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, cell(1, headerRow), cell(3, headerRow), bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "C", 24); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	if err := f.SetSheetRow(SheetName, cell(1, row), &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
