// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// DefaultSubjectPrefix is the first token of every subject this system
// publishes or consumes.
const DefaultSubjectPrefix = "presenca"

// UnknownDevice is used when neither the payload nor the subject carries
// a device identifier.
const UnknownDevice = "unknown"

var eventValidate = validator.New(validator.WithRequiredStructEnabled())

// TagReadEvent is the inbound payload published by a tag reader when a
// tag is presented. Room and device also appear as subject tokens; the
// payload copy of the room is authoritative for matching.
type TagReadEvent struct {
	TagID     string `json:"tagId" validate:"required"`
	Room      string `json:"room" validate:"required"`
	ESP32ID   string `json:"esp32Id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // device-local, informational only
}

// ParseTagRead decodes and validates an inbound tag-read payload.
// Any decode or validation failure means the message is malformed and
// must be dropped without producing an audit entry or a response.
func ParseTagRead(payload []byte) (*TagReadEvent, error) {
	var ev TagReadEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode tag read: %w", err)
	}
	if err := eventValidate.Struct(&ev); err != nil {
		return nil, fmt.Errorf("validate tag read: %w", err)
	}
	return &ev, nil
}

// Device returns the device identifier for the response subject: the
// payload esp32Id when present, otherwise the device token of the
// inbound subject, otherwise UnknownDevice.
func (e *TagReadEvent) Device(subject string) string {
	if e.ESP32ID != "" {
		return e.ESP32ID
	}
	return DeviceFromSubject(subject)
}

// AttendanceResponse is published back to the originating device after
// every well-formed tag read, success or failure.
type AttendanceResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TagID       string `json:"tagId"`
	LessonID    int64  `json:"lessonId,omitempty"`
	StudentName string `json:"studentName,omitempty"`
}

// Lesson status values carried in LessonStatusEvent.
const (
	StatusOpened = "opened"
	StatusClosed = "closed"
)

// LessonStatusEvent is broadcast to a room's devices when a lesson is
// opened or closed.
type LessonStatusEvent struct {
	LessonID  int64     `json:"lessonId"`
	Room      string    `json:"room"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Subject scheme:
//
//	<prefix>.attendance.<room>.<device>.tag-read    inbound
//	<prefix>.response.<device>.attendance-result    per-device response
//	<prefix>.commands.<room>.lesson-status          per-room broadcast

// TagReadWildcard returns the subscription subject matching every
// inbound tag read under the given prefix.
func TagReadWildcard(prefix string) string {
	return prefix + ".attendance.>"
}

// ResponseSubject returns the subject a device listens on for results.
func ResponseSubject(prefix, device string) string {
	return prefix + ".response." + SanitizeToken(device) + ".attendance-result"
}

// StatusSubject returns the per-room broadcast subject for lesson
// status changes.
func StatusSubject(prefix, room string) string {
	return prefix + ".commands." + SanitizeToken(room) + ".lesson-status"
}

// IsTagReadSubject reports whether a concrete subject belongs to the
// inbound tag-read scheme under the given prefix. Foreign subjects
// arriving on a shared connection are ignored, not treated as
// malformed.
func IsTagReadSubject(prefix, subject string) bool {
	tokens := strings.Split(subject, ".")
	return len(tokens) == 5 && tokens[0] == prefix && tokens[1] == "attendance" && tokens[4] == "tag-read"
}

// DeviceFromSubject extracts the device token from an inbound subject,
// or UnknownDevice when the subject does not follow the scheme.
func DeviceFromSubject(subject string) string {
	tokens := strings.Split(subject, ".")
	if len(tokens) != 5 || tokens[4] != "tag-read" || tokens[3] == "" {
		return UnknownDevice
	}
	return tokens[3]
}

// SanitizeToken makes a label usable as a single NATS subject token.
// Room labels may contain spaces ("Sala 101"); subjects may not.
func SanitizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch r {
		case ' ', '\t', '.', '*', '>':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return UnknownDevice
	}
	return b.String()
}
