// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

// Package ingest implements the attendance ingestion engine.
//
// Tag readers publish reads on <prefix>.attendance.<room>.<device>.tag-read.
// The consumer feeds every delivery through the Pipeline: strict parse,
// room resolution against the session directory, time-window and tag
// checks, and an idempotent presence upsert. Each well-formed read yields
// exactly one AuditLog entry and one response on the device's
// attendance-result subject; malformed payloads are dropped with a trace
// log only.
//
// The pipeline is the terminal consumer: collaborator failures become
// RecordOutcome values, never returned errors. Lesson open/close
// transitions are broadcast per room by StatusPublisher on a best-effort
// basis.
package ingest
