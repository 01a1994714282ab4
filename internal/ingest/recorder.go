// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/presenca-io/presenca/internal/directory"
	"github.com/presenca-io/presenca/internal/models"
)

// Code classifies the outcome of processing one tag read. The values
// double as the metric label for ingest outcomes.
type Code string

const (
	// CodeRecorded means presence was recorded (or re-confirmed).
	CodeRecorded Code = "recorded"
	// CodeRoomUnresolved means no open lesson matched the room label.
	CodeRoomUnresolved Code = "room_unresolved"
	// CodeOutsideWindow means the matched lesson is open but the read
	// arrived outside its scheduled time window.
	CodeOutsideWindow Code = "outside_window"
	// CodeUnknownTag means the tag is not registered to any student.
	CodeUnknownTag Code = "unknown_tag"
	// CodeCollaboratorFailure means the directory or another dependency
	// failed; the read itself may have been valid.
	CodeCollaboratorFailure Code = "collaborator_error"
)

// Messages returned to the device, keyed by outcome.
const (
	msgRecorded       = "Attendance recorded"
	msgRoomUnresolved = "No open lesson for this room"
	msgOutsideWindow  = "Lesson is outside its scheduled time window"
	msgUnknownTag     = "Tag not registered to any student"
	msgInternalError  = "Internal error while recording attendance"
)

// unknownStudentName is the audit placeholder for a tag that resolved
// to no student.
const unknownStudentName = "Unknown"

// RecordOutcome is the value every recording attempt reduces to.
// Failures are data here, not errors: the pipeline audits and answers
// the device for every outcome alike. StudentID is 0 whenever the tag
// did not resolve to a student.
type RecordOutcome struct {
	Code        Code
	LessonID    int64
	StudentID   int64
	StudentName string
	Message     string
	Err         error // set only for CodeCollaboratorFailure
}

// Success reports whether presence was recorded.
func (o RecordOutcome) Success() bool {
	return o.Code == CodeRecorded
}

// Recorder applies the recording preconditions, in order, against the
// directory and upserts presence when they all hold.
type Recorder struct {
	store directory.Store
	now   func() time.Time
}

// NewRecorder creates a recorder backed by the given directory.
func NewRecorder(store directory.Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record checks the lesson's time window, resolves the tag to a
// student, and upserts (lesson, student, present=true). The upsert key
// makes repeated reads of the same tag idempotent. The lesson must
// already be resolved; callers handle the no-lesson case themselves.
func (r *Recorder) Record(ctx context.Context, lesson *models.Lesson, tagID string) RecordOutcome {
	if !lesson.InWindow(r.now()) {
		out := RecordOutcome{
			Code:        CodeOutsideWindow,
			LessonID:    lesson.ID,
			StudentName: unknownStudentName,
			Message:     msgOutsideWindow,
		}
		// Best-effort lookup so the rejection is audited against the
		// student when the tag resolves; a lookup failure must not
		// change the outcome.
		if student, err := r.store.FindStudentByTag(ctx, tagID); err == nil && student != nil {
			out.StudentID = student.ID
			out.StudentName = student.Name
		}
		return out
	}

	student, err := r.store.FindStudentByTag(ctx, tagID)
	if err != nil {
		return collaboratorFailure(lesson.ID, fmt.Errorf("find student by tag: %w", err))
	}
	if student == nil {
		return RecordOutcome{
			Code:     CodeUnknownTag,
			LessonID: lesson.ID,
			Message:  msgUnknownTag,
		}
	}

	if _, err := r.store.UpsertAttendance(ctx, lesson.ID, student.ID, true); err != nil {
		return collaboratorFailure(lesson.ID, fmt.Errorf("upsert attendance: %w", err))
	}

	return RecordOutcome{
		Code:        CodeRecorded,
		LessonID:    lesson.ID,
		StudentID:   student.ID,
		StudentName: student.Name,
		Message:     msgRecorded,
	}
}

// collaboratorFailure carries the failing error's text as the outcome
// message so the device and the audit trail see the actual cause.
func collaboratorFailure(lessonID int64, err error) RecordOutcome {
	msg := msgInternalError
	if err != nil {
		msg = err.Error()
	}
	return RecordOutcome{
		Code:     CodeCollaboratorFailure,
		LessonID: lessonID,
		Message:  msg,
		Err:      err,
	}
}
