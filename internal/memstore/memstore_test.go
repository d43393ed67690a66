package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"madrasa/internal/apperrors"
	"madrasa/internal/attendance"
	"madrasa/internal/school"
)

func TestCommitBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	ok := attendance.Record{StudentID: "s1", ClassID: "c1", Date: "2024-05-01", Status: attendance.StatusPresent}
	dup := ok

	err := s.CommitBatch(ctx, attendance.Batch{Creates: []attendance.Record{ok, dup}})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Records()) != 0 {
		t.Fatal("partial batch applied")
	}

	bad := attendance.Batch{
		Creates: []attendance.Record{ok},
		Updates: []attendance.StatusUpdate{{ID: "missing", Status: attendance.StatusLate}},
	}
	if err := s.CommitBatch(ctx, bad); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Records()) != 0 {
		t.Fatal("create applied despite failing update")
	}
}

func TestCreatedAtIsStoreAssigned(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })
	err := s.CommitBatch(ctx, attendance.Batch{Creates: []attendance.Record{
		{StudentID: "s1", ClassID: "c1", Date: "2024-05-01", Status: attendance.StatusPresent, CreatedAt: at.Add(-time.Hour)},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Records()[0]; !got.CreatedAt.Equal(at) || got.ID == "" {
		t.Fatalf("record = %+v", got)
	}
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"B", "A", "C"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.SetClock(func() time.Time { return at })
		c := school.ClassSection{Name: name}
		_ = s.CreateClass(ctx, &c)
	}
	newest, _ := s.ListClasses(ctx, school.SortNewest)
	byName, _ := s.ListClasses(ctx, school.SortName)
	if newest[0].Name != "C" || byName[0].Name != "A" {
		t.Fatalf("newest = %s, by name = %s", newest[0].Name, byName[0].Name)
	}
}
