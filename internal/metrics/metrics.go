// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package metrics defines the Prometheus instrumentation for the engine.
// All collectors are registered on the default registry via promauto and
// exposed on the ops API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adwatch"

var (
	// EventsProcessed counts every event entering the engine, by type.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_processed_total",
		Help:      "Total events processed by the integrity engine",
	}, []string{"event_type"})

	// EventsRejected counts events rejected by high-severity rule failures.
	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_rejected_total",
		Help:      "Total events rejected by integrity validation",
	}, []string{"event_type"})

	// AlertsRaised counts alerts by kind and severity.
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_raised_total",
		Help:      "Total alerts raised, by kind and severity",
	}, []string{"kind", "severity"})

	// DetectionDuration observes per-event detection latency.
	DetectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "detection_duration_seconds",
		Help:      "Latency of per-event validation and anomaly detection",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	// WindowUsers tracks the number of users with active windows.
	WindowUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_users",
		Help:      "Users currently tracked by the window store",
	})

	// DriftEvaluations counts drift detection runs by verdict.
	DriftEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drift_evaluations_total",
		Help:      "Drift detection runs, by overall verdict",
	}, []string{"verdict"})

	// NotifierDeliveries counts outbound alert notifications by outcome.
	NotifierDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifier_deliveries_total",
		Help:      "Outbound alert notification attempts, by outcome",
	}, []string{"notifier", "outcome"})

	// PipelineMessages counts bus messages by handler outcome.
	PipelineMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_messages_total",
		Help:      "Event bus messages handled, by outcome",
	}, []string{"outcome"})
)
