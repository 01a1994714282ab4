// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/presenca-io/presenca/internal/directory"
	"github.com/presenca-io/presenca/internal/models"
)

// RoomResolver maps the room label carried by a tag read to the open
// lesson that attendance should be recorded against.
//
// Devices are flashed with free-form room labels that drift from the
// labels lessons are scheduled under ("Sala 101" vs "101" vs "sala 101").
// Resolution therefore runs a fixed sequence of strategies, strictest
// first, and stops at the first hit:
//
//  1. exact label match
//  2. case-insensitive label match
//  3. normalized match ("sala" prefix stripped, whitespace collapsed)
//  4. normalized substring containment, either direction
//
// Within a strategy, candidates are considered most-recent-start first.
// No open lesson matching is a normal outcome, reported as (nil, nil).
type RoomResolver struct {
	store directory.Store
}

// NewRoomResolver creates a resolver backed by the given directory.
func NewRoomResolver(store directory.Store) *RoomResolver {
	return &RoomResolver{store: store}
}

// Resolve returns the open lesson for the room label, or (nil, nil)
// when no strategy matches. A non-nil error means the directory itself
// failed, not that the room is unknown.
func (r *RoomResolver) Resolve(ctx context.Context, room string) (*models.Lesson, error) {
	lesson, err := r.store.FindOpenLessonByRoom(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("find open lesson: %w", err)
	}
	if lesson != nil {
		return lesson, nil
	}

	open, err := r.store.ListOpenLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open lessons: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	want := strings.ToLower(strings.TrimSpace(room))
	for i := range open {
		if strings.ToLower(strings.TrimSpace(open[i].Room)) == want {
			return &open[i], nil
		}
	}

	norm := normalizeRoom(room)
	if norm == "" {
		return nil, nil
	}
	for i := range open {
		if normalizeRoom(open[i].Room) == norm {
			return &open[i], nil
		}
	}
	for i := range open {
		candidate := normalizeRoom(open[i].Room)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, norm) || strings.Contains(norm, candidate) {
			return &open[i], nil
		}
	}
	return nil, nil
}

// normalizeRoom lowercases a label, strips a leading "sala" prefix, and
// collapses interior whitespace. "Sala 101", "sala101" and " SALA  101 "
// all normalize to "101".
func normalizeRoom(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "sala")
	return strings.Join(strings.Fields(s), " ")
}
