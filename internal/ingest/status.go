// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/presenca-io/presenca/internal/logging"
	"github.com/presenca-io/presenca/internal/metrics"
	"github.com/presenca-io/presenca/internal/models"
)

// StatusPublisher broadcasts lesson open/close transitions to the
// devices in a room. Broadcasts are fire-and-forget: a failed or
// disconnected publish is logged and dropped, and never blocks or fails
// the state change that triggered it.
type StatusPublisher struct {
	sender Sender
	prefix string
	now    func() time.Time
}

// NewStatusPublisher creates a publisher for the given subject prefix.
// A nil sender disables broadcasting entirely.
func NewStatusPublisher(sender Sender, prefix string) *StatusPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &StatusPublisher{sender: sender, prefix: prefix, now: time.Now}
}

// NotifyLessonOpened broadcasts that attendance is being accepted.
func (p *StatusPublisher) NotifyLessonOpened(ctx context.Context, lesson models.Lesson) {
	p.notify(ctx, lesson, StatusOpened)
}

// NotifyLessonClosed broadcasts that the lesson stopped accepting
// attendance.
func (p *StatusPublisher) NotifyLessonClosed(ctx context.Context, lesson models.Lesson) {
	p.notify(ctx, lesson, StatusClosed)
}

func (p *StatusPublisher) notify(ctx context.Context, lesson models.Lesson, status string) {
	if p.sender == nil {
		return
	}

	payload, err := json.Marshal(LessonStatusEvent{
		LessonID:  lesson.ID,
		Room:      lesson.Room,
		Status:    status,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		logging.Error().Err(err).Int64("lesson_id", lesson.ID).Msg("encode lesson status")
		return
	}

	subject := StatusSubject(p.prefix, lesson.Room)
	err = p.sender.Send(ctx, subject, payload)
	metrics.RecordTransportPublish("status", err)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("subject", subject).
			Str("status", status).
			Msg("lesson status not delivered")
	}
}
