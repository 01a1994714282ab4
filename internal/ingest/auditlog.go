// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/presenca-io/presenca/internal/metrics"
)

// AuditCapacity is the maximum number of retained audit entries. When
// full, the oldest entry is evicted to make room for the newest.
const AuditCapacity = 1000

// AuditEntry records one processed tag read, success or failure.
// Entries are in-memory only and do not survive a restart.
type AuditEntry struct {
	ID          string    `json:"id"`
	LessonID    int64     `json:"lessonId"`
	StudentID   int64     `json:"studentId"`
	TagID       string    `json:"tagId"`
	Device      string    `json:"esp32Id"`
	Room        string    `json:"room"`
	StudentName string    `json:"studentName,omitempty"`
	Code        Code      `json:"code"`
	Message     string    `json:"message"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuditLog is a bounded, mutex-serialized log of processed tag reads.
// The pipeline is the only appender; the HTTP surface reads and clears.
type AuditLog struct {
	mu       sync.Mutex
	entries  []AuditEntry // oldest first
	capacity int
	now      func() time.Time
}

// NewAuditLog creates an empty log with the standard capacity.
func NewAuditLog() *AuditLog {
	return &AuditLog{
		entries:  make([]AuditEntry, 0, AuditCapacity),
		capacity: AuditCapacity,
		now:      time.Now,
	}
}

// Append assigns the entry an id and timestamp, stores it, and evicts
// the oldest entry if the log is at capacity. The stored entry is
// returned.
func (l *AuditLog) Append(e AuditEntry) AuditEntry {
	e.ID = uuid.New().String()
	e.Timestamp = l.now().UTC()

	l.mu.Lock()
	if len(l.entries) >= l.capacity {
		evict := len(l.entries) - l.capacity + 1
		l.entries = append(l.entries[:0], l.entries[evict:]...)
		metrics.AuditLogEvictions.Add(float64(evict))
	}
	l.entries = append(l.entries, e)
	size := len(l.entries)
	l.mu.Unlock()

	metrics.AuditLogEntries.Set(float64(size))
	return e
}

// All returns every retained entry, newest first.
func (l *AuditLog) All() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// ByLesson returns the retained entries for one lesson, newest first.
func (l *AuditLog) ByLesson(lessonID int64) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []AuditEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].LessonID == lessonID {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// Clear removes every entry for the lesson and returns how many were
// removed. Entries for other lessons are untouched.
func (l *AuditLog) Clear(lessonID int64) int {
	l.mu.Lock()
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.LessonID == lessonID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	size := len(l.entries)
	l.mu.Unlock()

	metrics.AuditLogEntries.Set(float64(size))
	return removed
}

// Len returns the number of retained entries.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
