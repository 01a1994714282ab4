// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/presenca-io/presenca/internal/metrics"
	"github.com/presenca-io/presenca/internal/models"
)

// Postgres implements Store on top of Postgres using the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgres opens a connection pool and verifies connectivity.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies connectivity, for health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// EnsureSchema creates the tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS lessons (
	id          BIGSERIAL PRIMARY KEY,
	room        TEXT        NOT NULL,
	subject     TEXT        NOT NULL,
	start_time  TIMESTAMPTZ NOT NULL,
	end_time    TIMESTAMPTZ NOT NULL,
	opened      BOOLEAN     NOT NULL DEFAULT FALSE,
	closed      BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS students (
	id      BIGSERIAL PRIMARY KEY,
	name    TEXT NOT NULL,
	tag_id  TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS attendance (
	lesson_id   BIGINT  NOT NULL REFERENCES lessons(id),
	student_id  BIGINT  NOT NULL REFERENCES students(id),
	present     BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (lesson_id, student_id)
);
CREATE INDEX IF NOT EXISTS idx_lessons_open_room ON lessons (room, start_time DESC) WHERE opened AND NOT closed;
`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

const lessonColumns = `id, room, subject, start_time, end_time, opened, closed, created_at`

func scanLesson(row interface{ Scan(...any) error }) (models.Lesson, error) {
	var l models.Lesson
	err := row.Scan(&l.ID, &l.Room, &l.Subject, &l.StartTime, &l.EndTime, &l.Opened, &l.Closed, &l.CreatedAt)
	return l, err
}

// CreateLesson inserts a lesson in the "neither opened nor closed" state.
func (p *Postgres) CreateLesson(ctx context.Context, in NewLesson) (models.Lesson, error) {
	start := time.Now()
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO lessons (room, subject, start_time, end_time, opened, closed)
		VALUES ($1, $2, $3, $4, FALSE, FALSE)
		RETURNING `+lessonColumns,
		in.Room, in.Subject, in.StartTime, in.EndTime)
	l, err := scanLesson(row)
	metrics.RecordDirectoryQuery("create_lesson", time.Since(start), err)
	if err != nil {
		return models.Lesson{}, fmt.Errorf("create lesson: %w", err)
	}
	return l, nil
}

// GetLesson returns a lesson by id.
func (p *Postgres) GetLesson(ctx context.Context, id int64) (models.Lesson, error) {
	start := time.Now()
	row := p.db.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id)
	l, err := scanLesson(row)
	metrics.RecordDirectoryQuery("get_lesson", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lesson{}, ErrLessonNotFound
	}
	if err != nil {
		return models.Lesson{}, fmt.Errorf("get lesson %d: %w", id, err)
	}
	return l, nil
}

// ListLessons returns all lessons, most recent start first.
func (p *Postgres) ListLessons(ctx context.Context) ([]models.Lesson, error) {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons ORDER BY start_time DESC`)
	metrics.RecordDirectoryQuery("list_lessons", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()
	return collectLessons(rows)
}

// OpenLesson marks the lesson opened. The same statement forces
// closed=false so the two flags can never be true together.
func (p *Postgres) OpenLesson(ctx context.Context, id int64) (models.Lesson, error) {
	return p.setLessonState(ctx, "open_lesson", id, true, false)
}

// CloseLesson marks the lesson closed and forces opened=false.
func (p *Postgres) CloseLesson(ctx context.Context, id int64) (models.Lesson, error) {
	return p.setLessonState(ctx, "close_lesson", id, false, true)
}

func (p *Postgres) setLessonState(ctx context.Context, op string, id int64, opened, closed bool) (models.Lesson, error) {
	start := time.Now()
	row := p.db.QueryRowContext(ctx, `
		UPDATE lessons SET opened = $2, closed = $3 WHERE id = $1
		RETURNING `+lessonColumns, id, opened, closed)
	l, err := scanLesson(row)
	metrics.RecordDirectoryQuery(op, time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lesson{}, ErrLessonNotFound
	}
	if err != nil {
		return models.Lesson{}, fmt.Errorf("%s %d: %w", op, id, err)
	}
	return l, nil
}

// FindOpenLessonByRoom returns the most recently started open lesson whose
// room label matches exactly, or nil.
func (p *Postgres) FindOpenLessonByRoom(ctx context.Context, room string) (*models.Lesson, error) {
	start := time.Now()
	row := p.db.QueryRowContext(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE room = $1 AND opened AND NOT closed
		ORDER BY start_time DESC
		LIMIT 1`, room)
	l, err := scanLesson(row)
	metrics.RecordDirectoryQuery("find_open_lesson", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open lesson for room %q: %w", room, err)
	}
	return &l, nil
}

// ListOpenLessons returns every open lesson, most recent start first.
func (p *Postgres) ListOpenLessons(ctx context.Context) ([]models.Lesson, error) {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE opened AND NOT closed
		ORDER BY start_time DESC`)
	metrics.RecordDirectoryQuery("list_open_lessons", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list open lessons: %w", err)
	}
	defer rows.Close()
	return collectLessons(rows)
}

// FindStudentByTag returns the student owning the tag, or nil.
func (p *Postgres) FindStudentByTag(ctx context.Context, tagID string) (*models.Student, error) {
	start := time.Now()
	row := p.db.QueryRowContext(ctx,
		`SELECT id, name, tag_id FROM students WHERE tag_id = $1`, tagID)
	var s models.Student
	err := row.Scan(&s.ID, &s.Name, &s.TagID)
	metrics.RecordDirectoryQuery("find_student_by_tag", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find student by tag: %w", err)
	}
	return &s, nil
}

// UpsertAttendance performs the atomic insert-or-update keyed by the unique
// (lesson_id, student_id) pair. Concurrent attempts for the same key from
// redundant message deliveries collapse into a single record.
func (p *Postgres) UpsertAttendance(ctx context.Context, lessonID, studentID int64, present bool) (models.Attendance, error) {
	start := time.Now()
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO attendance (lesson_id, student_id, present, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (lesson_id, student_id) DO UPDATE
			SET present = EXCLUDED.present, updated_at = NOW()
		RETURNING lesson_id, student_id, present, updated_at`,
		lessonID, studentID, present)
	var a models.Attendance
	err := row.Scan(&a.LessonID, &a.StudentID, &a.Present, &a.UpdatedAt)
	metrics.RecordDirectoryQuery("upsert_attendance", time.Since(start), err)
	if err != nil {
		return models.Attendance{}, fmt.Errorf("upsert attendance (%d,%d): %w", lessonID, studentID, err)
	}
	return a, nil
}

// ListLessonAttendance returns a lesson's attendance records with students.
func (p *Postgres) ListLessonAttendance(ctx context.Context, lessonID int64) ([]models.LessonAttendance, error) {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx, `
		SELECT a.lesson_id, a.student_id, a.present, a.updated_at, s.id, s.name, s.tag_id
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE a.lesson_id = $1
		ORDER BY s.name`, lessonID)
	metrics.RecordDirectoryQuery("list_lesson_attendance", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list attendance for lesson %d: %w", lessonID, err)
	}
	defer rows.Close()

	var res []models.LessonAttendance
	for rows.Next() {
		var la models.LessonAttendance
		if err := rows.Scan(&la.LessonID, &la.StudentID, &la.Present, &la.UpdatedAt,
			&la.Student.ID, &la.Student.Name, &la.Student.TagID); err != nil {
			return nil, err
		}
		res = append(res, la)
	}
	return res, rows.Err()
}

func collectLessons(rows *sql.Rows) ([]models.Lesson, error) {
	var res []models.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
