// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import "testing"

func TestParseTagRead(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"tagId":"ABC123","room":"Sala 101"}`, false},
		{"valid with device and timestamp", `{"tagId":"ABC123","room":"101","esp32Id":"esp-7","timestamp":"2026-03-02T10:00:00Z"}`, false},
		{"missing tagId", `{"room":"Sala 101"}`, true},
		{"empty tagId", `{"tagId":"","room":"Sala 101"}`, true},
		{"missing room", `{"tagId":"ABC123"}`, true},
		{"not json", `tagId=ABC123`, true},
		{"empty payload", ``, true},
		{"wrong type", `{"tagId":12345,"room":"Sala 101"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseTagRead([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.TagID == "" || ev.Room == "" {
				t.Errorf("incomplete event: %+v", ev)
			}
		})
	}
}

func TestDeviceFromSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"presenca.attendance.101.esp-7.tag-read", "esp-7"},
		{"presenca.attendance.sala-101.reader-2.tag-read", "reader-2"},
		{"presenca.attendance.101.tag-read", UnknownDevice},
		{"presenca.response.esp-7.attendance-result", UnknownDevice},
		{"", UnknownDevice},
	}
	for _, tt := range tests {
		if got := DeviceFromSubject(tt.subject); got != tt.want {
			t.Errorf("DeviceFromSubject(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}

func TestDeviceFallsBackToSubject(t *testing.T) {
	ev := &TagReadEvent{TagID: "T", Room: "101"}
	if got := ev.Device("presenca.attendance.101.esp-9.tag-read"); got != "esp-9" {
		t.Errorf("got %q, want esp-9", got)
	}

	ev.ESP32ID = "esp-payload"
	if got := ev.Device("presenca.attendance.101.esp-9.tag-read"); got != "esp-payload" {
		t.Errorf("payload id must win, got %q", got)
	}
}

func TestIsTagReadSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    bool
	}{
		{"presenca.attendance.101.esp-7.tag-read", true},
		{"presenca.attendance.101.esp-7.heartbeat", false},
		{"presenca.response.esp-7.attendance-result", false},
		{"presenca.attendance.101.tag-read", false},
		{"other.attendance.101.esp-7.tag-read", false},
	}
	for _, tt := range tests {
		if got := IsTagReadSubject("presenca", tt.subject); got != tt.want {
			t.Errorf("IsTagReadSubject(%q) = %v, want %v", tt.subject, got, tt.want)
		}
	}
}

func TestSubjectBuilders(t *testing.T) {
	if got := TagReadWildcard("presenca"); got != "presenca.attendance.>" {
		t.Errorf("TagReadWildcard = %q", got)
	}
	if got := ResponseSubject("presenca", "esp-7"); got != "presenca.response.esp-7.attendance-result" {
		t.Errorf("ResponseSubject = %q", got)
	}
	if got := StatusSubject("presenca", "Sala 101"); got != "presenca.commands.Sala-101.lesson-status" {
		t.Errorf("StatusSubject = %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sala 101", "Sala-101"},
		{"101", "101"},
		{"lab.b>2", "lab-b-2"},
		{"  ", UnknownDevice},
		{"", UnknownDevice},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
