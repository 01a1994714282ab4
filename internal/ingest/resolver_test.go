// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/presenca-io/presenca/internal/directory"
)

func openLesson(t *testing.T, store *directory.Memory, room string, start time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	l, err := store.CreateLesson(ctx, directory.NewLesson{
		Room:      room,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateLesson: %v", err)
	}
	if _, err := store.OpenLesson(ctx, l.ID); err != nil {
		t.Fatalf("OpenLesson: %v", err)
	}
	return l.ID
}

func TestResolveMatchStrategies(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		lessonRoom string
		query      string
		wantMatch  bool
	}{
		{"exact", "Sala 101", "Sala 101", true},
		{"case insensitive", "Sala 101", "sala 101", true},
		{"uppercase extra spaces", "Sala 101", "SALA  101", true},
		{"query without prefix", "Sala 101", "101", true},
		{"lesson without prefix", "101", "Sala 101", true},
		{"joined prefix", "Sala 101", "sala101", true},
		{"different room", "Sala 102", "Sala 101", false},
		{"empty query", "Sala 101", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := directory.NewMemory()
			id := openLesson(t, store, tt.lessonRoom, base)

			got, err := NewRoomResolver(store).Resolve(ctx, tt.query)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if tt.wantMatch {
				if got == nil || got.ID != id {
					t.Errorf("expected lesson %d, got %+v", id, got)
				}
			} else if got != nil {
				t.Errorf("expected no match, got %+v", got)
			}
		})
	}
}

func TestResolvePrefersMostRecentStart(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemory()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	openLesson(t, store, "Sala 101", base)
	latest := openLesson(t, store, "sala 101", base.Add(2*time.Hour))

	got, err := NewRoomResolver(store).Resolve(ctx, "SALA 101")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil || got.ID != latest {
		t.Errorf("expected most recent lesson %d, got %+v", latest, got)
	}
}

func TestResolveIgnoresClosedAndUnopened(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemory()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	// Never opened.
	if _, err := store.CreateLesson(ctx, directory.NewLesson{Room: "Sala 101", StartTime: base, EndTime: base.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateLesson: %v", err)
	}
	// Opened then closed.
	closed := openLesson(t, store, "Sala 101", base.Add(time.Hour))
	if _, err := store.CloseLesson(ctx, closed); err != nil {
		t.Fatalf("CloseLesson: %v", err)
	}

	got, err := NewRoomResolver(store).Resolve(ctx, "Sala 101")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Errorf("expected no open lesson, got %+v", got)
	}
}

func TestNormalizeRoom(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sala 101", "101"},
		{"sala101", "101"},
		{" SALA  101 ", "101"},
		{"101", "101"},
		{"Lab  B", "lab b"},
	}
	for _, tt := range tests {
		if got := normalizeRoom(tt.in); got != tt.want {
			t.Errorf("normalizeRoom(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
