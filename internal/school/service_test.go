package school_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"madrasa/internal/apperrors"
	"madrasa/internal/memstore"
	"madrasa/internal/school"
)

func TestCreateClassValidation(t *testing.T) {
	svc := school.NewService(memstore.New())
	if _, err := svc.CreateClass(context.Background(), school.ClassSection{Name: "   "}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("blank name: %v", err)
	}
	c, err := svc.CreateClass(context.Background(), school.ClassSection{Name: " Hifz ", AcademicYear: " 2024/25 "})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Hifz" || c.AcademicYear != "2024/25" || c.ID == "" || c.CreatedAt.IsZero() {
		t.Fatalf("class = %+v", c)
	}
}

func TestStudentRequiresExistingClass(t *testing.T) {
	ctx := context.Background()
	svc := school.NewService(memstore.New())
	tests := []struct {
		name string
		in   school.Student
		kind error
	}{
		{"no name", school.Student{ClassID: "x"}, apperrors.ErrValidation},
		{"no class", school.Student{Name: "Ali"}, apperrors.ErrValidation},
		{"bad birth date", school.Student{Name: "Ali", ClassID: "x", DateOfBirth: "yesterday"}, apperrors.ErrValidation},
		{"unknown class", school.Student{Name: "Ali", ClassID: "x"}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateStudent(ctx, tt.in); !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestDeletesDoNotCascade(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	svc := school.NewService(mem)
	c, _ := svc.CreateClass(ctx, school.ClassSection{Name: "Hifz"})
	st, err := svc.CreateStudent(ctx, school.Student{Name: "Ali", ClassID: c.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteClass(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	got, err := mem.GetStudent(ctx, st.ID)
	if err != nil {
		t.Fatalf("student removed with its class: %v", err)
	}
	if got.ClassName != "" {
		t.Fatalf("class name of a deleted class = %q", got.ClassName)
	}
}

func TestCreateTeacher(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	svc := school.NewService(mem)

	if _, err := svc.CreateTeacher(ctx, school.NewTeacher{Name: "Omar", Email: "omar@x.test", Password: "12345"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("short password: %v", err)
	}
	if _, err := svc.CreateTeacher(ctx, school.NewTeacher{Name: "Omar", Email: "omar", Password: "123456"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("bad email: %v", err)
	}
	u, err := svc.CreateTeacher(ctx, school.NewTeacher{Name: " Omar ", Email: "Omar@X.test", Password: "123456"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != school.RoleTeacher || u.Email != "omar@x.test" || u.Name != "Omar" {
		t.Fatalf("teacher = %+v", u)
	}
	_, hash, err := mem.FindCredentials(ctx, "omar@x.test")
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte("123456")) != nil {
		t.Fatal("password not stored as bcrypt hash")
	}
	if _, err := svc.CreateTeacher(ctx, school.NewTeacher{Name: "Again", Email: "omar@x.test", Password: "123456"}); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("duplicate: %v", err)
	}
}

func TestTeacherLookupRejectsAdmins(t *testing.T) {
	ctx := context.Background()
	svc := school.NewService(memstore.New())
	admin, _ := svc.CreateAdmin(ctx, school.NewTeacher{Name: "Admin", Email: "a@x.test", Password: "123456"})
	if _, err := svc.Teacher(ctx, admin.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("admin treated as teacher: %v", err)
	}
	if _, err := svc.RenameTeacher(ctx, admin.ID, "x"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("rename admin: %v", err)
	}
}

func TestTeacherDirectory(t *testing.T) {
	ctx := context.Background()
	svc := school.NewService(memstore.New())
	u, _ := svc.CreateTeacher(ctx, school.NewTeacher{Name: "Omar", Email: "o@x.test", Password: "123456"})
	dir, err := svc.TeacherDirectory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := dir.ResolveName(u.ID); !ok || name != "Omar" {
		t.Fatalf("resolve = %q, %v", name, ok)
	}
	if _, ok := dir.ResolveName("nobody"); ok {
		t.Fatal("unknown id resolved")
	}
}
