// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

// Package metrics provides Prometheus instrumentation for Presenca:
// tag-read ingestion throughput and outcomes, transport publishes,
// directory query latency, and audit log occupancy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	TagReadsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenca_tagreads_consumed_total",
			Help: "Total number of tag-read messages consumed from the transport",
		},
	)

	TagReadOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenca_tagread_outcomes_total",
			Help: "Total number of processed tag-read events by outcome",
		},
		[]string{"outcome"}, // recorded, room_unresolved, outside_window, unknown_tag, collaborator_error
	)

	TagReadParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenca_tagread_parse_failures_total",
			Help: "Total number of tag-read messages dropped as malformed",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presenca_ingest_duration_seconds",
			Help:    "End-to-end tag-read processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Transport metrics
	TransportPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenca_transport_publishes_total",
			Help: "Total number of messages published to the transport",
		},
		[]string{"kind"}, // response, status
	)

	TransportPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenca_transport_publish_errors_total",
			Help: "Total number of failed or skipped transport publishes",
		},
		[]string{"kind"},
	)

	// Directory metrics
	DirectoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presenca_directory_query_duration_seconds",
			Help:    "Duration of session directory queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DirectoryQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenca_directory_query_errors_total",
			Help: "Total number of session directory query errors",
		},
		[]string{"operation"},
	)

	// Audit log metrics
	AuditLogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presenca_audit_log_entries",
			Help: "Current number of entries held in the in-memory audit log",
		},
	)

	AuditLogEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenca_audit_log_evictions_total",
			Help: "Total number of audit entries evicted by the capacity bound",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenca_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presenca_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTagReadOutcome increments the outcome counter for a processed event.
func RecordTagReadOutcome(outcome string) {
	TagReadOutcomes.WithLabelValues(outcome).Inc()
}

// RecordIngestDuration observes the processing latency of one tag-read event.
func RecordIngestDuration(d time.Duration) {
	IngestDuration.Observe(d.Seconds())
}

// RecordTransportPublish records a publish attempt result for the given kind.
func RecordTransportPublish(kind string, err error) {
	if err != nil {
		TransportPublishErrors.WithLabelValues(kind).Inc()
		return
	}
	TransportPublishes.WithLabelValues(kind).Inc()
}

// RecordDirectoryQuery records duration and error state of a directory call.
func RecordDirectoryQuery(operation string, d time.Duration, err error) {
	DirectoryQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		DirectoryQueryErrors.WithLabelValues(operation).Inc()
	}
}
