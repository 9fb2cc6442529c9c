// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package alerts provides the append-only alert sink and the optional
// outbound notifier. The sink preserves insertion order, never deduplicates,
// and exposes read-only filtered views to consumers.
package alerts

import (
	"sync"
	"time"

	"github.com/tomtom215/adwatch/internal/models"
)

// Filter selects a subset of alerts from the sink. Zero-value fields match
// everything.
type Filter struct {
	// Kinds restricts to the listed alert kinds (empty = all).
	Kinds []models.AlertKind

	// Severities restricts to the listed severities (empty = all).
	Severities []models.Severity

	// Since restricts to alerts created at or after this time.
	Since time.Time

	// Limit caps the number of returned alerts, newest last (0 = all).
	Limit int
}

func (f Filter) matches(a *models.Alert) bool {
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, a.Kind) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, a.Severity) {
		return false
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func containsKind(kinds []models.AlertKind, k models.AlertKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func containsSeverity(severities []models.Severity, s models.Severity) bool {
	for _, severity := range severities {
		if severity == s {
			return true
		}
	}
	return false
}

// Sink is the append-only ordered alert store. Concurrent appends are safe;
// alerts from a single producer keep their relative order.
type Sink struct {
	mu     sync.RWMutex
	alerts []*models.Alert
}

// NewSink creates an empty alert sink.
func NewSink() *Sink {
	return &Sink{}
}

// Append adds alerts to the sink in the given order.
func (s *Sink) Append(alerts ...*models.Alert) {
	if len(alerts) == 0 {
		return
	}
	s.mu.Lock()
	s.alerts = append(s.alerts, alerts...)
	s.mu.Unlock()
}

// List returns the alerts matching the filter in insertion order. The
// returned slice is a copy; the stored alerts themselves are never mutated.
func (s *Sink) List(f Filter) []*models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Alert
	for _, a := range s.alerts {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Count returns the number of alerts matching the filter.
func (s *Sink) Count(f Filter) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.alerts {
		if f.matches(a) {
			count++
		}
	}
	return count
}

// Len returns the total number of stored alerts.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
