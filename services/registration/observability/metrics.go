// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the registration
// service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the webhook
// ingestion pipeline and the registration API. Metrics include:
//   - Webhook counters (by priority tier and disposition)
//   - Job outcome counters and processing latency histograms
//   - Queue depth and dashboard connection gauges
//   - Registration lifecycle counters and revenue
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "foundersday"

// Subsystem for the webhook pipeline
const webhookSubsystem = "webhooks"

// Subsystem for the registration API
const registrationSubsystem = "registrations"

// Metrics holds all Prometheus metrics for the registration service.
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// WebhooksReceivedTotal counts accepted webhook deliveries.
	// Labels: tier (critical, high, normal, low), disposition (enqueued,
	// duplicate, rejected_signature, rejected_payload, queue_full)
	WebhooksReceivedTotal *prometheus.CounterVec

	// JobsTotal counts drained jobs by final outcome.
	// Labels: tier, outcome (succeeded, retried, dead)
	JobsTotal *prometheus.CounterVec

	// ProcessingDurationSeconds measures per-job processing time,
	// including retries. Labels: tier
	ProcessingDurationSeconds *prometheus.HistogramVec

	// QueueDepth tracks the number of jobs waiting in the priority queue.
	QueueDepth prometheus.Gauge

	// RegistrationsTotal counts registration lifecycle transitions.
	// Labels: status (pending, paid, payment_failed, cancelled, expired,
	// refund_requested, refunded)
	RegistrationsTotal *prometheus.CounterVec

	// RevenueCentsTotal accumulates settled payment amounts.
	RevenueCentsTotal prometheus.Counter

	// ActiveDashboards tracks open dashboard websocket connections.
	ActiveDashboards prometheus.Gauge
}

// NewMetrics creates and registers all metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests use their own
// registry to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		WebhooksReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: webhookSubsystem,
				Name:      "received_total",
				Help:      "Total webhook deliveries by priority tier and disposition",
			},
			[]string{"tier", "disposition"},
		),

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: webhookSubsystem,
				Name:      "jobs_total",
				Help:      "Total processed webhook jobs by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),

		ProcessingDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: webhookSubsystem,
				Name:      "processing_duration_seconds",
				Help:      "Per-job processing time in seconds, including retries",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"tier"},
		),

		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: webhookSubsystem,
				Name:      "queue_depth",
				Help:      "Number of jobs waiting in the priority queue",
			},
		),

		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: registrationSubsystem,
				Name:      "transitions_total",
				Help:      "Total registration lifecycle transitions by resulting status",
			},
			[]string{"status"},
		),

		RevenueCentsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: registrationSubsystem,
				Name:      "revenue_cents_total",
				Help:      "Total settled payment amounts in cents",
			},
		),

		ActiveDashboards: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_dashboards",
				Help:      "Number of open dashboard websocket connections",
			},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// Disposition categorizes what the ingestion endpoint did with a delivery.
type Disposition string

const (
	// DispositionEnqueued means the delivery was accepted and queued.
	DispositionEnqueued Disposition = "enqueued"

	// DispositionDuplicate means the event id was already seen.
	DispositionDuplicate Disposition = "duplicate"

	// DispositionRejectedSignature means signature verification failed.
	DispositionRejectedSignature Disposition = "rejected_signature"

	// DispositionRejectedPayload means the body was malformed.
	DispositionRejectedPayload Disposition = "rejected_payload"

	// DispositionQueueFull means the queue had no capacity.
	DispositionQueueFull Disposition = "queue_full"
)

// Outcome categorizes how a drained job finished.
type Outcome string

const (
	// OutcomeSucceeded means the job processed cleanly.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeRetried means an attempt failed and the job will run again.
	OutcomeRetried Outcome = "retried"

	// OutcomeDead means retries were exhausted.
	OutcomeDead Outcome = "dead"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordWebhook records one delivery hitting the ingestion endpoint.
func (m *Metrics) RecordWebhook(tier string, disposition Disposition) {
	m.WebhooksReceivedTotal.WithLabelValues(tier, string(disposition)).Inc()
}

// RecordJob records a drained job's outcome.
func (m *Metrics) RecordJob(tier string, outcome Outcome) {
	m.JobsTotal.WithLabelValues(tier, string(outcome)).Inc()
}

// RecordProcessing records a job's total processing time.
func (m *Metrics) RecordProcessing(tier string, seconds float64) {
	m.ProcessingDurationSeconds.WithLabelValues(tier).Observe(seconds)
}

// SetQueueDepth updates the queue depth gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordTransition records a registration entering a lifecycle status.
func (m *Metrics) RecordTransition(status string) {
	m.RegistrationsTotal.WithLabelValues(status).Inc()
}

// RecordRevenue adds a settled payment amount.
func (m *Metrics) RecordRevenue(cents int64) {
	if cents > 0 {
		m.RevenueCentsTotal.Add(float64(cents))
	}
}

// DashboardOpened increments the active dashboards gauge.
func (m *Metrics) DashboardOpened() {
	m.ActiveDashboards.Inc()
}

// DashboardClosed decrements the active dashboards gauge.
func (m *Metrics) DashboardClosed() {
	m.ActiveDashboards.Dec()
}
