// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/presenca-io/presenca/internal/models"
)

func TestNotifyLessonStatus(t *testing.T) {
	sender := &captureSender{}
	pub := NewStatusPublisher(sender, "presenca")
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	pub.now = fixedClock(at)

	lesson := models.Lesson{ID: 7, Room: "Sala 101"}

	t.Run("opened", func(t *testing.T) {
		pub.NotifyLessonOpened(context.Background(), lesson)

		sent := sender.last(t)
		if sent.subject != "presenca.commands.Sala-101.lesson-status" {
			t.Errorf("subject = %s", sent.subject)
		}
		var ev LessonStatusEvent
		if err := json.Unmarshal(sent.payload, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.LessonID != 7 || ev.Room != "Sala 101" || ev.Status != StatusOpened {
			t.Errorf("unexpected event: %+v", ev)
		}
		if !ev.Timestamp.Equal(at) {
			t.Errorf("timestamp = %v, want %v", ev.Timestamp, at)
		}
	})

	t.Run("closed", func(t *testing.T) {
		pub.NotifyLessonClosed(context.Background(), lesson)

		var ev LessonStatusEvent
		if err := json.Unmarshal(sender.last(t).payload, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Status != StatusClosed {
			t.Errorf("status = %s", ev.Status)
		}
	})
}

func TestNotifyIsFireAndForget(t *testing.T) {
	t.Run("send failure", func(t *testing.T) {
		sender := &captureSender{err: errors.New("not connected")}
		pub := NewStatusPublisher(sender, "presenca")
		pub.NotifyLessonOpened(context.Background(), models.Lesson{ID: 1, Room: "101"})
		// Nothing to assert beyond not panicking and not blocking.
	})

	t.Run("nil sender", func(t *testing.T) {
		pub := NewStatusPublisher(nil, "presenca")
		pub.NotifyLessonClosed(context.Background(), models.Lesson{ID: 1, Room: "101"})
	})
}
