// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/presenca-io/presenca/internal/directory"
	"github.com/presenca-io/presenca/internal/ingest"
)

var requestValidate = validator.New(validator.WithRequiredStructEnabled())

// Handler serves the attendance management surface: lesson lifecycle,
// teacher-initiated attendance marks, and the audit trail.
type Handler struct {
	store  directory.Store
	audit  *ingest.AuditLog
	status *ingest.StatusPublisher
	health func(ctx context.Context) error
}

// NewHandler creates a handler. health is consulted by the readiness
// endpoint and may be nil.
func NewHandler(store directory.Store, audit *ingest.AuditLog, status *ingest.StatusPublisher, health func(ctx context.Context) error) *Handler {
	return &Handler{store: store, audit: audit, status: status, health: health}
}

// CreateLessonRequest is the body for POST /api/v1/lessons.
type CreateLessonRequest struct {
	Room      string    `json:"room" validate:"required"`
	Subject   string    `json:"subject"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
}

// CreateLesson handles POST /api/v1/lessons.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var req CreateLessonRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", nil)
		return
	}
	if err := requestValidate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if !req.EndTime.After(req.StartTime) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "endTime must be after startTime", nil)
		return
	}

	lesson, err := h.store.CreateLesson(r.Context(), directory.NewLesson{
		Room:      req.Room,
		Subject:   req.Subject,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not create lesson", err)
		return
	}
	respondJSON(w, http.StatusCreated, lesson)
}

// ListLessons handles GET /api/v1/lessons.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.store.ListLessons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not list lessons", err)
		return
	}
	respondJSON(w, http.StatusOK, lessons)
}

// GetLesson handles GET /api/v1/lessons/{id}.
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Lesson id must be a positive integer", nil)
		return
	}

	lesson, err := h.store.GetLesson(r.Context(), id)
	if errors.Is(err, directory.ErrLessonNotFound) {
		respondError(w, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson does not exist", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not load lesson", err)
		return
	}
	respondJSON(w, http.StatusOK, lesson)
}

// OpenLesson handles POST /api/v1/lessons/{id}/open. The state change
// is persisted first; the room broadcast is fire-and-forget.
func (h *Handler) OpenLesson(w http.ResponseWriter, r *http.Request) {
	h.setLessonState(w, r, true)
}

// CloseLesson handles POST /api/v1/lessons/{id}/close.
func (h *Handler) CloseLesson(w http.ResponseWriter, r *http.Request) {
	h.setLessonState(w, r, false)
}

func (h *Handler) setLessonState(w http.ResponseWriter, r *http.Request, open bool) {
	id, ok := lessonID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Lesson id must be a positive integer", nil)
		return
	}
	ctx := r.Context()

	if open {
		lesson, err := h.store.OpenLesson(ctx, id)
		if errors.Is(err, directory.ErrLessonNotFound) {
			respondError(w, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson does not exist", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not open lesson", err)
			return
		}
		if h.status != nil {
			h.status.NotifyLessonOpened(ctx, lesson)
		}
		respondJSON(w, http.StatusOK, lesson)
		return
	}

	lesson, err := h.store.CloseLesson(ctx, id)
	if errors.Is(err, directory.ErrLessonNotFound) {
		respondError(w, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson does not exist", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not close lesson", err)
		return
	}
	if h.status != nil {
		h.status.NotifyLessonClosed(ctx, lesson)
	}
	respondJSON(w, http.StatusOK, lesson)
}

// MarkAttendanceRequest is the body for POST /api/v1/lessons/{id}/attendance.
type MarkAttendanceRequest struct {
	StudentID int64 `json:"studentId" validate:"required"`
	Present   *bool `json:"present" validate:"required"`
}

// MarkAttendance handles the teacher-initiated toggle. Unlike tag
// reads, manual marks can set present to false, but only while the
// lesson is open.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Lesson id must be a positive integer", nil)
		return
	}

	var req MarkAttendanceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", nil)
		return
	}
	if err := requestValidate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	ctx := r.Context()
	lesson, err := h.store.GetLesson(ctx, id)
	if errors.Is(err, directory.ErrLessonNotFound) {
		respondError(w, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson does not exist", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not load lesson", err)
		return
	}
	if !lesson.IsOpen() {
		respondError(w, http.StatusConflict, "LESSON_NOT_OPEN", directory.ErrLessonNotOpen.Error(), nil)
		return
	}

	attendance, err := h.store.UpsertAttendance(ctx, id, req.StudentID, *req.Present)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not record attendance", err)
		return
	}
	respondJSON(w, http.StatusOK, attendance)
}

// LessonStudents handles GET /api/v1/lessons/{id}/students.
func (h *Handler) LessonStudents(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Lesson id must be a positive integer", nil)
		return
	}

	roster, err := h.store.ListLessonAttendance(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Could not load lesson roster", err)
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

// LessonLogs handles GET /api/v1/lessons/{id}/logs.
func (h *Handler) LessonLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Lesson id must be a positive integer", nil)
		return
	}
	respondJSON(w, http.StatusOK, h.audit.ByLesson(id))
}

// ClearLessonLogs handles DELETE /api/v1/lessons/{id}/logs.
func (h *Handler) ClearLessonLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Lesson id must be a positive integer", nil)
		return
	}
	removed := h.audit.Clear(id)
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// AllLogs handles GET /api/v1/logs.
func (h *Handler) AllLogs(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.audit.All())
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "UNHEALTHY", "Dependency check failed", err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
