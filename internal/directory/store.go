// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

// Package directory is the session directory: persistent storage for
// lessons, students, and attendance records. The ingestion engine consumes
// it through the narrow Store interface; the Postgres implementation is
// the production backend and the Memory implementation serves tests and
// ephemeral deployments.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/presenca-io/presenca/internal/models"
)

// ErrLessonNotFound is returned when a lesson id does not exist.
var ErrLessonNotFound = errors.New("lesson not found")

// ErrLessonNotOpen is returned when attendance is marked on a lesson that
// is not open.
var ErrLessonNotOpen = errors.New("lesson is not open for attendance")

// NewLesson carries the fields required to create a lesson. Lessons are
// created neither opened nor closed.
type NewLesson struct {
	Room      string
	Subject   string
	StartTime time.Time
	EndTime   time.Time
}

// Store is the session directory contract.
//
// Lookups that can legitimately find nothing (FindOpenLessonByRoom,
// FindStudentByTag) return a nil pointer and a nil error; an error means
// the directory itself failed.
type Store interface {
	// CreateLesson inserts a lesson in the "neither opened nor closed"
	// state and returns it with its assigned id.
	CreateLesson(ctx context.Context, in NewLesson) (models.Lesson, error)

	// GetLesson returns a lesson by id, or ErrLessonNotFound.
	GetLesson(ctx context.Context, id int64) (models.Lesson, error)

	// ListLessons returns all lessons, most recent start first.
	ListLessons(ctx context.Context) ([]models.Lesson, error)

	// OpenLesson marks the lesson opened and forces closed=false.
	OpenLesson(ctx context.Context, id int64) (models.Lesson, error)

	// CloseLesson marks the lesson closed and forces opened=false.
	CloseLesson(ctx context.Context, id int64) (models.Lesson, error)

	// FindOpenLessonByRoom returns the open lesson whose room label
	// matches exactly (case-sensitive), picking the most recent start
	// time among matches. Returns nil when no open lesson matches.
	FindOpenLessonByRoom(ctx context.Context, room string) (*models.Lesson, error)

	// ListOpenLessons returns every open lesson, most recent start first.
	ListOpenLessons(ctx context.Context) ([]models.Lesson, error)

	// FindStudentByTag returns the student owning the tag, or nil.
	FindStudentByTag(ctx context.Context, tagID string) (*models.Student, error)

	// UpsertAttendance atomically inserts or updates the attendance
	// record for (lessonID, studentID). The write is keyed on the unique
	// pair, so concurrent attempts for the same key collapse into one
	// record.
	UpsertAttendance(ctx context.Context, lessonID, studentID int64, present bool) (models.Attendance, error)

	// ListLessonAttendance returns the attendance records of a lesson
	// with their students.
	ListLessonAttendance(ctx context.Context, lessonID int64) ([]models.LessonAttendance, error)
}
