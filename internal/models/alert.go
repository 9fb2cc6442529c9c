// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Severity indicates the severity level of an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertKind identifies what class of finding an alert reports.
type AlertKind string

const (
	// AlertRuleViolation covers range, enum, referential, and temporal
	// business-rule failures.
	AlertRuleViolation AlertKind = "rule_violation"

	// AlertBotSuspicion flags click volumes consistent with automation.
	AlertBotSuspicion AlertKind = "bot_suspicion"

	// AlertStatisticalOutlier flags observations beyond the 3-sigma band.
	AlertStatisticalOutlier AlertKind = "statistical_outlier"

	// AlertDriftDetected flags a distribution shift against the baseline.
	AlertDriftDetected AlertKind = "drift_detected"
)

// Alert is an immutable finding raised by a detector. The raising detector
// owns creation; the alert sink owns storage and ordering. Alerts are never
// mutated after creation.
type Alert struct {
	AlertID   string          `json:"alert_id"`
	Kind      AlertKind       `json:"kind"`
	Severity  Severity        `json:"severity"`
	Subject   string          `json:"subject"` // event ID or feature name
	Detail    string          `json:"detail"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAlert creates an alert with a unique ID and UTC creation time.
func NewAlert(kind AlertKind, severity Severity, subject, detail string) *Alert {
	return &Alert{
		AlertID:   uuid.New().String(),
		Kind:      kind,
		Severity:  severity,
		Subject:   subject,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}

// WithMetadata attaches marshaled metadata and returns the alert for chaining
// at construction time. It must not be called after the alert is appended to
// the sink.
func (a *Alert) WithMetadata(v any) *Alert {
	if raw, err := json.Marshal(v); err == nil {
		a.Metadata = raw
	}
	return a
}
