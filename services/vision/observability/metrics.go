// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the vision service.
//
// Metrics cover the upload pipeline: classification counts by outcome and
// label, classification latency, upload payload sizes, and best-effort
// persistence failures. Exposed on /metrics for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "aleutian"

// Subsystem for the classification pipeline.
const visionSubsystem = "vision"

// Outcome values for ClassificationsTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus metrics for the classification pipeline.
type Metrics struct {
	// ClassificationsTotal counts upload requests by outcome and label.
	// Label is "none" for rejected and failed uploads.
	ClassificationsTotal *prometheus.CounterVec

	// ClassificationDurationSeconds observes end-to-end classifier
	// invocation latency for accepted uploads.
	ClassificationDurationSeconds prometheus.Histogram

	// UploadBytes observes accepted upload payload sizes.
	UploadBytes prometheus.Histogram

	// PersistFailuresTotal counts records lost to the best-effort
	// persistence policy (classification succeeded, insert did not).
	PersistFailuresTotal prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics against the given
// registerer. Pass prometheus.DefaultRegisterer in main; tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: visionSubsystem,
				Name:      "classifications_total",
				Help:      "Total upload requests by outcome and predicted label",
			},
			[]string{"outcome", "label"},
		),

		ClassificationDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: visionSubsystem,
				Name:      "classification_duration_seconds",
				Help:      "End-to-end classifier invocation latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),

		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: visionSubsystem,
				Name:      "upload_bytes",
				Help:      "Accepted upload payload size in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		PersistFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: visionSubsystem,
				Name:      "persist_failures_total",
				Help:      "Classifications returned to the caller but not retained for history",
			},
		),
	}
}
