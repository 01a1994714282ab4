// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"fmt"
	"sync"
	"testing"
)

func TestAuditLogAppendAssignsIdentity(t *testing.T) {
	log := NewAuditLog()
	e := log.Append(AuditEntry{LessonID: 1, TagID: "TAG-1", Code: CodeRecorded})
	if e.ID == "" {
		t.Error("entry must get an id")
	}
	if e.Timestamp.IsZero() {
		t.Error("entry must get a timestamp")
	}
	if log.Len() != 1 {
		t.Errorf("Len = %d, want 1", log.Len())
	}
}

func TestAuditLogNewestFirst(t *testing.T) {
	log := NewAuditLog()
	for i := 0; i < 3; i++ {
		log.Append(AuditEntry{LessonID: 1, TagID: fmt.Sprintf("TAG-%d", i)})
	}

	all := log.All()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"TAG-2", "TAG-1", "TAG-0"} {
		if all[i].TagID != want {
			t.Errorf("all[%d].TagID = %s, want %s", i, all[i].TagID, want)
		}
	}
}

func TestAuditLogEvictsOldestAtCapacity(t *testing.T) {
	log := NewAuditLog()
	for i := 0; i < AuditCapacity+1; i++ {
		log.Append(AuditEntry{LessonID: 1, TagID: fmt.Sprintf("TAG-%d", i)})
	}

	if log.Len() != AuditCapacity {
		t.Fatalf("Len = %d, want %d", log.Len(), AuditCapacity)
	}
	all := log.All()
	if all[0].TagID != fmt.Sprintf("TAG-%d", AuditCapacity) {
		t.Errorf("newest entry missing, got %s", all[0].TagID)
	}
	if all[len(all)-1].TagID != "TAG-1" {
		t.Errorf("oldest retained should be TAG-1, got %s", all[len(all)-1].TagID)
	}
}

func TestAuditLogByLesson(t *testing.T) {
	log := NewAuditLog()
	log.Append(AuditEntry{LessonID: 1, TagID: "A"})
	log.Append(AuditEntry{LessonID: 2, TagID: "B"})
	log.Append(AuditEntry{LessonID: 1, TagID: "C"})

	got := log.ByLesson(1)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TagID != "C" || got[1].TagID != "A" {
		t.Errorf("wrong order: %s, %s", got[0].TagID, got[1].TagID)
	}
	if len(log.ByLesson(3)) != 0 {
		t.Error("unknown lesson should return no entries")
	}
}

func TestAuditLogClearIsSelective(t *testing.T) {
	log := NewAuditLog()
	log.Append(AuditEntry{LessonID: 1, TagID: "A"})
	log.Append(AuditEntry{LessonID: 2, TagID: "B"})
	log.Append(AuditEntry{LessonID: 1, TagID: "C"})

	if removed := log.Clear(1); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if log.Len() != 1 {
		t.Errorf("Len = %d, want 1", log.Len())
	}
	if left := log.All(); len(left) != 1 || left[0].LessonID != 2 {
		t.Errorf("other lesson's entries must survive: %+v", left)
	}
	if removed := log.Clear(1); removed != 0 {
		t.Errorf("second clear removed = %d, want 0", removed)
	}
}

func TestAuditLogConcurrentAppend(t *testing.T) {
	log := NewAuditLog()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log.Append(AuditEntry{LessonID: int64(n)})
			}
		}(i)
	}
	wg.Wait()

	if log.Len() != 400 {
		t.Errorf("Len = %d, want 400", log.Len())
	}
}
