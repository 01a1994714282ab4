// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

// Package api provides HTTP routing using the chi router.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/presenca-io/presenca/internal/metrics"
)

// Routes assembles the full HTTP surface over the handler.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(prometheusMetrics)

		r.Get("/logs", h.AllLogs)

		r.Route("/lessons", func(r chi.Router) {
			r.Post("/", h.CreateLesson)
			r.Get("/", h.ListLessons)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetLesson)
				r.Post("/open", h.OpenLesson)
				r.Post("/close", h.CloseLesson)
				r.Post("/attendance", h.MarkAttendance)
				r.Get("/students", h.LessonStudents)
				r.Get("/logs", h.LessonLogs)
				r.Delete("/logs", h.ClearLessonLogs)
			})
		})
	})

	return r
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// prometheusMetrics records request counts and latency per route
// pattern, so path parameters don't explode label cardinality.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
