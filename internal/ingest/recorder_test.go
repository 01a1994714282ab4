// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/presenca-io/presenca/internal/directory"
	"github.com/presenca-io/presenca/internal/models"
)

// failingStore wraps Memory and fails selected operations.
type failingStore struct {
	directory.Store
	findStudentErr error
	upsertErr      error
}

func (f *failingStore) FindStudentByTag(ctx context.Context, tagID string) (*models.Student, error) {
	if f.findStudentErr != nil {
		return nil, f.findStudentErr
	}
	return f.Store.FindStudentByTag(ctx, tagID)
}

func (f *failingStore) UpsertAttendance(ctx context.Context, lessonID, studentID int64, present bool) (models.Attendance, error) {
	if f.upsertErr != nil {
		return models.Attendance{}, f.upsertErr
	}
	return f.Store.UpsertAttendance(ctx, lessonID, studentID, present)
}

func recorderFixture(t *testing.T) (*directory.Memory, models.Lesson, models.Student) {
	t.Helper()
	store := directory.NewMemory()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	lesson, err := store.CreateLesson(context.Background(), directory.NewLesson{
		Room:      "Sala 101",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateLesson: %v", err)
	}
	student := store.AddStudent("Alice", "TAG-1")
	return store, lesson, student
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordWindowEnforcement(t *testing.T) {
	store, lesson, _ := recorderFixture(t)

	tests := []struct {
		name string
		now  time.Time
		want Code
	}{
		{"before start", lesson.StartTime.Add(-time.Second), CodeOutsideWindow},
		{"at start", lesson.StartTime, CodeRecorded},
		{"mid window", lesson.StartTime.Add(30 * time.Minute), CodeRecorded},
		{"at end", lesson.EndTime, CodeRecorded},
		{"after end", lesson.EndTime.Add(time.Second), CodeOutsideWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(store)
			r.now = fixedClock(tt.now)

			got := r.Record(context.Background(), &lesson, "TAG-1")
			if got.Code != tt.want {
				t.Errorf("code = %s, want %s", got.Code, tt.want)
			}
			if tt.want == CodeOutsideWindow && got.LessonID != lesson.ID {
				t.Errorf("outcome must carry the matched lesson id, got %d", got.LessonID)
			}
		})
	}
}

func TestRecordOutsideWindowResolvesStudent(t *testing.T) {
	t.Run("known tag", func(t *testing.T) {
		store, lesson, student := recorderFixture(t)
		r := NewRecorder(store)
		r.now = fixedClock(lesson.StartTime.Add(-time.Hour))

		got := r.Record(context.Background(), &lesson, student.TagID)
		if got.Code != CodeOutsideWindow {
			t.Fatalf("code = %s", got.Code)
		}
		if got.StudentID != student.ID || got.StudentName != "Alice" {
			t.Errorf("student not resolved for logging: %+v", got)
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		store, lesson, _ := recorderFixture(t)
		r := NewRecorder(store)
		r.now = fixedClock(lesson.StartTime.Add(-time.Hour))

		got := r.Record(context.Background(), &lesson, "NO-SUCH-TAG")
		if got.Code != CodeOutsideWindow {
			t.Fatalf("code = %s", got.Code)
		}
		if got.StudentID != 0 || got.StudentName != "Unknown" {
			t.Errorf("want the Unknown placeholder, got %+v", got)
		}
	})

	t.Run("lookup failure keeps the outcome", func(t *testing.T) {
		store, lesson, student := recorderFixture(t)
		r := NewRecorder(&failingStore{Store: store, findStudentErr: errors.New("connection refused")})
		r.now = fixedClock(lesson.StartTime.Add(-time.Hour))

		got := r.Record(context.Background(), &lesson, student.TagID)
		if got.Code != CodeOutsideWindow {
			t.Fatalf("code = %s", got.Code)
		}
		if got.StudentName != "Unknown" {
			t.Errorf("student name = %q, want the Unknown placeholder", got.StudentName)
		}
	})
}

func TestRecordUnknownTag(t *testing.T) {
	store, lesson, _ := recorderFixture(t)
	r := NewRecorder(store)
	r.now = fixedClock(lesson.StartTime)

	got := r.Record(context.Background(), &lesson, "NO-SUCH-TAG")
	if got.Code != CodeUnknownTag {
		t.Fatalf("code = %s, want %s", got.Code, CodeUnknownTag)
	}
	if got.StudentName != "" {
		t.Errorf("no student name expected, got %q", got.StudentName)
	}
	if store.AttendanceCount() != 0 {
		t.Error("unknown tag must not create attendance")
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	store, lesson, student := recorderFixture(t)
	r := NewRecorder(store)
	r.now = fixedClock(lesson.StartTime)

	for i := 0; i < 3; i++ {
		got := r.Record(context.Background(), &lesson, student.TagID)
		if got.Code != CodeRecorded {
			t.Fatalf("attempt %d: code = %s", i, got.Code)
		}
		if got.StudentID != student.ID || got.StudentName != "Alice" {
			t.Errorf("attempt %d: student = %d %q", i, got.StudentID, got.StudentName)
		}
	}
	if store.AttendanceCount() != 1 {
		t.Errorf("attendance records = %d, want 1", store.AttendanceCount())
	}
}

func TestRecordCollaboratorFailure(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("student lookup fails", func(t *testing.T) {
		store, lesson, _ := recorderFixture(t)
		r := NewRecorder(&failingStore{Store: store, findStudentErr: boom})
		r.now = fixedClock(lesson.StartTime)

		got := r.Record(context.Background(), &lesson, "TAG-1")
		if got.Code != CodeCollaboratorFailure {
			t.Fatalf("code = %s", got.Code)
		}
		if !errors.Is(got.Err, boom) {
			t.Errorf("cause not preserved: %v", got.Err)
		}
		if !strings.Contains(got.Message, "connection refused") {
			t.Errorf("message must carry the error text, got %q", got.Message)
		}
	})

	t.Run("upsert fails", func(t *testing.T) {
		store, lesson, student := recorderFixture(t)
		r := NewRecorder(&failingStore{Store: store, upsertErr: boom})
		r.now = fixedClock(lesson.StartTime)

		got := r.Record(context.Background(), &lesson, student.TagID)
		if got.Code != CodeCollaboratorFailure {
			t.Fatalf("code = %s", got.Code)
		}
		if got.LessonID != lesson.ID {
			t.Errorf("outcome must carry the lesson id, got %d", got.LessonID)
		}
	})
}
