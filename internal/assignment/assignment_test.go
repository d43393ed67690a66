package assignment_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"madrasa/internal/apperrors"
	"madrasa/internal/assignment"
	"madrasa/internal/memstore"
	"madrasa/internal/school"
)

func classIDs(list []school.TeacherAssignment) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ClassID)
	}
	sort.Strings(out)
	return out
}

func TestReplaceSetsExactTarget(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	r := assignment.NewReplacer(mem)

	if _, err := r.Replace(ctx, "t1", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	first, _ := r.Current(ctx, "t1")

	if _, err := r.Replace(ctx, "t1", []string{"b", "c", "c", ""}); err != nil {
		t.Fatal(err)
	}
	cur, _ := r.Current(ctx, "t1")
	if got := classIDs(cur); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("assignments = %v", got)
	}
	for _, old := range first {
		for _, a := range cur {
			if a.ID == old.ID {
				t.Fatal("replacement must insert fresh rows")
			}
		}
	}
}

func TestReplaceEmptyClearsAndIsolatesTeachers(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	r := assignment.NewReplacer(mem)
	_, _ = r.Replace(ctx, "t1", []string{"a"})
	_, _ = r.Replace(ctx, "t2", []string{"a"})

	out, err := r.Replace(ctx, "t1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", out)
	}
	if cur, _ := r.Current(ctx, "t1"); len(cur) != 0 {
		t.Fatalf("t1 still has %v", cur)
	}
	if cur, _ := r.Current(ctx, "t2"); len(cur) != 1 {
		t.Fatal("other teachers must be untouched")
	}
}

func TestReplaceRequiresTeacher(t *testing.T) {
	r := assignment.NewReplacer(memstore.New())
	if _, err := r.Replace(context.Background(), "", []string{"a"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestClassesJoinsExistingClasses(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	b := school.ClassSection{Name: "B"}
	a := school.ClassSection{Name: "A"}
	_ = mem.CreateClass(ctx, &b)
	_ = mem.CreateClass(ctx, &a)
	r := assignment.NewReplacer(mem)
	_, _ = r.Replace(ctx, "t1", []string{b.ID, a.ID, "deleted-class"})

	list, err := r.Classes(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "A" || list[1].Name != "B" {
		t.Fatalf("classes = %+v", list)
	}
}
