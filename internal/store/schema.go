package store

import (
	"context"
	"fmt"
	"strings"
)

// Timestamps are TIMESTAMPTZ on Postgres and DATETIME on SQLite; %s is
// replaced per driver. Attendance dates stay plain TEXT (YYYY-MM-DD).
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	photo_url     TEXT NOT NULL DEFAULT '',
	created_at    %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS classes (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	academic_year TEXT NOT NULL DEFAULT '',
	created_at    %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS students (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	class_id         TEXT NOT NULL DEFAULT '',
	guardian_name    TEXT NOT NULL DEFAULT '',
	guardian_contact TEXT NOT NULL DEFAULT '',
	photo_url        TEXT NOT NULL DEFAULT '',
	date_of_birth    TEXT NOT NULL DEFAULT '',
	created_at       %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id, name);

CREATE TABLE IF NOT EXISTS attendance (
	id         TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	class_id   TEXT NOT NULL,
	date       TEXT NOT NULL,
	status     TEXT NOT NULL,
	teacher_id TEXT NOT NULL DEFAULT '',
	created_at %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (student_id, class_id, date)
);
CREATE INDEX IF NOT EXISTS idx_attendance_class_date ON attendance(class_id, date);

CREATE TABLE IF NOT EXISTS teacher_class_assignments (
	id          TEXT PRIMARY KEY,
	teacher_id  TEXT NOT NULL,
	class_id    TEXT NOT NULL,
	assigned_at %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_assignments_teacher ON teacher_class_assignments(teacher_id);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	expires_at %[1]s NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Migrate creates the tables if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	tsType := "TIMESTAMPTZ"
	if d.Driver == DriverSQLite {
		tsType = "DATETIME"
	}
	ddl := fmt.Sprintf(schema, tsType)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
