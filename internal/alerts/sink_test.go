// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package alerts

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/adwatch/internal/models"
)

func TestSinkAppendOrder(t *testing.T) {
	s := NewSink()

	for i := 0; i < 5; i++ {
		s.Append(models.NewAlert(models.AlertRuleViolation, models.SeverityMedium,
			fmt.Sprintf("ev-%d", i), "detail"))
	}

	got := s.List(Filter{})
	if len(got) != 5 {
		t.Fatalf("expected 5 alerts, got %d", len(got))
	}
	for i, a := range got {
		if a.Subject != fmt.Sprintf("ev-%d", i) {
			t.Errorf("insertion order broken at %d: %s", i, a.Subject)
		}
	}
}

func TestSinkNoDeduplication(t *testing.T) {
	s := NewSink()

	// Repeated violations for the same subject each produce a distinct alert.
	s.Append(models.NewAlert(models.AlertBotSuspicion, models.SeverityHigh, "user-1", "burst"))
	s.Append(models.NewAlert(models.AlertBotSuspicion, models.SeverityHigh, "user-1", "burst"))

	if got := s.Len(); got != 2 {
		t.Errorf("expected 2 alerts without deduplication, got %d", got)
	}
}

func TestSinkFilters(t *testing.T) {
	s := NewSink()
	s.Append(
		models.NewAlert(models.AlertRuleViolation, models.SeverityMedium, "ev-1", "d"),
		models.NewAlert(models.AlertRuleViolation, models.SeverityHigh, "ev-2", "d"),
		models.NewAlert(models.AlertBotSuspicion, models.SeverityHigh, "user-1", "d"),
		models.NewAlert(models.AlertDriftDetected, models.SeverityMedium, "device_type", "d"),
	)

	if got := s.Count(Filter{Severities: []models.Severity{models.SeverityHigh}}); got != 2 {
		t.Errorf("severity filter: expected 2, got %d", got)
	}
	if got := s.Count(Filter{Kinds: []models.AlertKind{models.AlertRuleViolation}}); got != 2 {
		t.Errorf("kind filter: expected 2, got %d", got)
	}

	got := s.List(Filter{
		Kinds:      []models.AlertKind{models.AlertRuleViolation},
		Severities: []models.Severity{models.SeverityHigh},
	})
	if len(got) != 1 || got[0].Subject != "ev-2" {
		t.Errorf("combined filter: expected only ev-2, got %+v", got)
	}

	got = s.List(Filter{Limit: 2})
	if len(got) != 2 || got[1].Subject != "device_type" {
		t.Errorf("limit filter: expected newest 2 ending with device_type, got %+v", got)
	}
}

func TestSinkConcurrentAppend(t *testing.T) {
	s := NewSink()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(models.NewAlert(models.AlertStatisticalOutlier, models.SeverityMedium, "x", "d"))
			}
		}()
	}
	wg.Wait()

	if got := s.Len(); got != 1000 {
		t.Errorf("expected 1000 alerts, got %d", got)
	}
}
