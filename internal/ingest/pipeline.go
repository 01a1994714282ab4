// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/presenca-io/presenca/internal/directory"
	"github.com/presenca-io/presenca/internal/logging"
	"github.com/presenca-io/presenca/internal/metrics"
)

// Pipeline is the terminal consumer for inbound tag reads. Every
// well-formed read produces exactly one audit entry and exactly one
// response publication, whatever the outcome; malformed payloads are
// dropped with a trace log and nothing else. Handle never returns an
// error: there is no caller above this to recover, so every
// collaborator failure is absorbed into an outcome.
type Pipeline struct {
	resolver *RoomResolver
	recorder *Recorder
	audit    *AuditLog
	sender   Sender
	prefix   string
}

// NewPipeline wires the engine stages over a directory, audit log, and
// outbound sender.
func NewPipeline(store directory.Store, audit *AuditLog, sender Sender, prefix string) *Pipeline {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Pipeline{
		resolver: NewRoomResolver(store),
		recorder: NewRecorder(store),
		audit:    audit,
		sender:   sender,
		prefix:   prefix,
	}
}

// Handle processes one delivered message. It satisfies watermill's
// NoPublishHandlerFunc; returning nil acks the message, and it always
// returns nil.
func (p *Pipeline) Handle(msg *message.Message) error {
	subject := msg.Metadata.Get(MetadataSubject)
	if !IsTagReadSubject(p.prefix, subject) {
		logging.Trace().Str("subject", subject).Msg("ignoring foreign subject")
		return nil
	}

	start := time.Now()
	metrics.TagReadsConsumed.Inc()

	ev, err := ParseTagRead(msg.Payload)
	if err != nil {
		metrics.TagReadParseFailures.Inc()
		logging.Trace().Err(err).Str("subject", subject).Msg("dropping malformed tag read")
		return nil
	}

	ctx := msg.Context()
	device := ev.Device(subject)

	var outcome RecordOutcome
	lesson, err := p.resolver.Resolve(ctx, ev.Room)
	switch {
	case err != nil:
		outcome = collaboratorFailure(0, err)
	case lesson == nil:
		outcome = RecordOutcome{Code: CodeRoomUnresolved, Message: msgRoomUnresolved}
	default:
		outcome = p.recorder.Record(ctx, lesson, ev.TagID)
	}

	if outcome.Err != nil {
		logging.Error().
			Err(outcome.Err).
			Str("tag_id", ev.TagID).
			Str("room", ev.Room).
			Msg("tag read failed on a collaborator")
	}
	metrics.RecordTagReadOutcome(string(outcome.Code))

	entry := p.audit.Append(AuditEntry{
		LessonID:    outcome.LessonID,
		StudentID:   outcome.StudentID,
		TagID:       ev.TagID,
		Device:      device,
		Room:        ev.Room,
		StudentName: outcome.StudentName,
		Code:        outcome.Code,
		Message:     outcome.Message,
		Success:     outcome.Success(),
	})

	p.respond(msg, device, AttendanceResponse{
		Success:     outcome.Success(),
		Message:     outcome.Message,
		TagID:       ev.TagID,
		LessonID:    outcome.LessonID,
		StudentName: outcome.StudentName,
	})

	logging.Debug().
		Str("audit_id", entry.ID).
		Str("tag_id", ev.TagID).
		Str("room", ev.Room).
		Str("device", device).
		Str("outcome", string(outcome.Code)).
		Dur("elapsed", time.Since(start)).
		Msg("tag read processed")
	metrics.RecordIngestDuration(time.Since(start))
	return nil
}

// respond publishes the device response. Publish failures are logged
// and counted; the read has already been recorded and audited.
func (p *Pipeline) respond(msg *message.Message, device string, resp AttendanceResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Str("device", device).Msg("encode attendance response")
		return
	}

	subject := ResponseSubject(p.prefix, device)
	err = p.sender.Send(msg.Context(), subject, payload)
	metrics.RecordTransportPublish("response", err)
	if err != nil {
		logging.Warn().Err(err).Str("subject", subject).Msg("attendance response not delivered")
	}
}
