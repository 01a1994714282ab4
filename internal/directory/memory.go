// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/presenca-io/presenca/internal/models"
)

// Memory is an in-memory Store used by tests and ephemeral deployments.
// All operations are serialized by a single mutex, which also makes the
// attendance upsert atomic per (lesson, student) key.
type Memory struct {
	mu           sync.Mutex
	lessons      map[int64]models.Lesson
	students     map[int64]models.Student
	attendance   map[[2]int64]models.Attendance
	nextLesson   int64
	nextStudent  int64
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		lessons:    make(map[int64]models.Lesson),
		students:   make(map[int64]models.Student),
		attendance: make(map[[2]int64]models.Attendance),
	}
}

// AddStudent registers a student and returns it with its assigned id.
func (m *Memory) AddStudent(name, tagID string) models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStudent++
	s := models.Student{ID: m.nextStudent, Name: name, TagID: tagID}
	m.students[s.ID] = s
	return s
}

// CreateLesson inserts a lesson in the "neither opened nor closed" state.
func (m *Memory) CreateLesson(_ context.Context, in NewLesson) (models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLesson++
	l := models.Lesson{
		ID:        m.nextLesson,
		Room:      in.Room,
		Subject:   in.Subject,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		CreatedAt: time.Now().UTC(),
	}
	m.lessons[l.ID] = l
	return l, nil
}

// GetLesson returns a lesson by id.
func (m *Memory) GetLesson(_ context.Context, id int64) (models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return models.Lesson{}, ErrLessonNotFound
	}
	return l, nil
}

// ListLessons returns all lessons, most recent start first.
func (m *Memory) ListLessons(_ context.Context) ([]models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]models.Lesson, 0, len(m.lessons))
	for _, l := range m.lessons {
		res = append(res, l)
	}
	sortLessons(res)
	return res, nil
}

// OpenLesson marks the lesson opened and forces closed=false.
func (m *Memory) OpenLesson(_ context.Context, id int64) (models.Lesson, error) {
	return m.setState(id, true, false)
}

// CloseLesson marks the lesson closed and forces opened=false.
func (m *Memory) CloseLesson(_ context.Context, id int64) (models.Lesson, error) {
	return m.setState(id, false, true)
}

func (m *Memory) setState(id int64, opened, closed bool) (models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return models.Lesson{}, ErrLessonNotFound
	}
	l.Opened = opened
	l.Closed = closed
	m.lessons[id] = l
	return l, nil
}

// FindOpenLessonByRoom returns the most recently started open lesson whose
// room matches exactly, or nil.
func (m *Memory) FindOpenLessonByRoom(ctx context.Context, room string) (*models.Lesson, error) {
	open, err := m.ListOpenLessons(ctx)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if open[i].Room == room {
			return &open[i], nil
		}
	}
	return nil, nil
}

// ListOpenLessons returns every open lesson, most recent start first.
func (m *Memory) ListOpenLessons(_ context.Context) ([]models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []models.Lesson
	for _, l := range m.lessons {
		if l.IsOpen() {
			res = append(res, l)
		}
	}
	sortLessons(res)
	return res, nil
}

// FindStudentByTag returns the student owning the tag, or nil.
func (m *Memory) FindStudentByTag(_ context.Context, tagID string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.TagID == tagID {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

// UpsertAttendance inserts or updates the record for (lessonID, studentID).
func (m *Memory) UpsertAttendance(_ context.Context, lessonID, studentID int64, present bool) (models.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := models.Attendance{
		LessonID:  lessonID,
		StudentID: studentID,
		Present:   present,
		UpdatedAt: time.Now().UTC(),
	}
	m.attendance[[2]int64{lessonID, studentID}] = a
	return a, nil
}

// ListLessonAttendance returns a lesson's attendance records with students.
func (m *Memory) ListLessonAttendance(_ context.Context, lessonID int64) ([]models.LessonAttendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []models.LessonAttendance
	for key, a := range m.attendance {
		if key[0] != lessonID {
			continue
		}
		res = append(res, models.LessonAttendance{
			Attendance: a,
			Student:    m.students[key[1]],
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Student.Name < res[j].Student.Name })
	return res, nil
}

// AttendanceCount reports the number of stored attendance records.
// Test helper for idempotence assertions.
func (m *Memory) AttendanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendance)
}

func sortLessons(ls []models.Lesson) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].StartTime.After(ls[j].StartTime) })
}
