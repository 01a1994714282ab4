// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

// Package models defines the entities shared between the session directory
// and the ingestion engine.
package models

import "time"

// Lesson is a scheduled class instance with a room, a time window, and an
// open/closed state. A lesson is never opened and closed at the same time:
// OpenLesson forces closed=false and CloseLesson forces opened=false.
type Lesson struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	Subject   string    `json:"subject"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Opened    bool      `json:"opened"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsOpen reports whether the lesson currently accepts attendance.
func (l *Lesson) IsOpen() bool {
	return l.Opened && !l.Closed
}

// InWindow reports whether t falls inside the lesson's valid time window.
// Both bounds are inclusive.
func (l *Lesson) InWindow(t time.Time) bool {
	return !t.Before(l.StartTime) && !t.After(l.EndTime)
}

// Student is a registered student with a unique RFID tag.
type Student struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	TagID string `json:"tagId"`
}

// Attendance is the unique presence flag for one (lesson, student) pair.
// Writes are upserts keyed by (LessonID, StudentID); there is never more
// than one record per pair.
type Attendance struct {
	LessonID  int64     `json:"lessonId"`
	StudentID int64     `json:"studentId"`
	Present   bool      `json:"present"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LessonAttendance pairs an attendance record with its student for listings.
type LessonAttendance struct {
	Attendance
	Student Student `json:"student"`
}
