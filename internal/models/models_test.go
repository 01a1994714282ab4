// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package models

import (
	"testing"
	"time"
)

func TestLessonIsOpen(t *testing.T) {
	tests := []struct {
		name           string
		opened, closed bool
		want           bool
	}{
		{"never opened", false, false, false},
		{"opened", true, false, true},
		{"closed", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Lesson{Opened: tt.opened, Closed: tt.closed}
			if got := l.IsOpen(); got != tt.want {
				t.Errorf("IsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLessonInWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	l := Lesson{StartTime: start, EndTime: end}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"one minute early", start.Add(-time.Minute), false},
		{"exactly at start", start, true},
		{"mid lesson", start.Add(30 * time.Minute), true},
		{"one second before end", end.Add(-time.Second), true},
		{"exactly at end", end, true},
		{"one minute late", end.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.InWindow(tt.at); got != tt.want {
				t.Errorf("InWindow(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
