// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package simulator

import (
	"context"
	"testing"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/models"
)

// capturePublisher records published events in order.
type capturePublisher struct {
	events []*models.Event
}

func (c *capturePublisher) Publish(ev *models.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func simulatorConfig(anomalyRate float64) config.SimulatorConfig {
	return config.SimulatorConfig{
		Enabled:         true,
		EventsPerSecond: 1000,
		Users:           50,
		Campaigns:       5,
		AnomalyRate:     anomalyRate,
		Seed:            42,
	}
}

func TestSimulatorParentBeforeChild(t *testing.T) {
	pub := &capturePublisher{}
	s := New(simulatorConfig(0), pub)

	for i := 0; i < 500; i++ {
		if err := s.emitFunnel(context.Background()); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}

	impressions := make(map[string]struct{})
	clicks := make(map[string]struct{})
	for _, ev := range pub.events {
		switch ev.Type {
		case models.EventTypeImpression:
			impressions[ev.EventID] = struct{}{}
		case models.EventTypeClick:
			if _, ok := impressions[ev.ImpressionID]; !ok {
				t.Fatalf("click %s published before its impression", ev.EventID)
			}
			clicks[ev.EventID] = struct{}{}
		case models.EventTypeConversion:
			if _, ok := clicks[ev.ClickID]; !ok {
				t.Fatalf("conversion %s published before its click", ev.EventID)
			}
		}
	}
}

func TestSimulatorCleanTrafficIsValid(t *testing.T) {
	pub := &capturePublisher{}
	s := New(simulatorConfig(0), pub)

	for i := 0; i < 300; i++ {
		if err := s.emitFunnel(context.Background()); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}

	for _, ev := range pub.events {
		if ev.Type != models.EventTypeImpression {
			continue
		}
		if ev.UserAge < 13 || ev.UserAge > 100 {
			t.Errorf("clean traffic produced invalid age %d", ev.UserAge)
		}
		if ev.BidAmount <= 0 {
			t.Errorf("clean traffic produced non-positive bid %g", ev.BidAmount)
		}
	}
}

func TestSimulatorSeedsAnomalies(t *testing.T) {
	pub := &capturePublisher{}
	s := New(simulatorConfig(0.2), pub)

	for i := 0; i < 500; i++ {
		if err := s.emitFunnel(context.Background()); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}

	invalidAges := 0
	bursts := 0
	clicksByImpression := make(map[string]int)
	for _, ev := range pub.events {
		switch ev.Type {
		case models.EventTypeImpression:
			if ev.UserAge < 13 || ev.UserAge > 100 {
				invalidAges++
			}
		case models.EventTypeClick:
			clicksByImpression[ev.ImpressionID]++
		}
	}
	for _, n := range clicksByImpression {
		if n >= botBurstClicks {
			bursts++
		}
	}

	if invalidAges == 0 {
		t.Error("expected some invalid-age impressions at 20% anomaly rate")
	}
	if bursts == 0 {
		t.Error("expected some bot bursts at 20% anomaly rate")
	}
}

func TestSimulatorDeterministicWithSeed(t *testing.T) {
	pub1 := &capturePublisher{}
	s1 := New(simulatorConfig(0.1), pub1)
	pub2 := &capturePublisher{}
	s2 := New(simulatorConfig(0.1), pub2)

	for i := 0; i < 100; i++ {
		_ = s1.emitFunnel(context.Background())
		_ = s2.emitFunnel(context.Background())
	}

	if len(pub1.events) != len(pub2.events) {
		t.Fatalf("same seed must produce same event counts: %d vs %d", len(pub1.events), len(pub2.events))
	}
	for i := range pub1.events {
		if pub1.events[i].Type != pub2.events[i].Type || pub1.events[i].UserID != pub2.events[i].UserID {
			t.Fatalf("same seed must produce same sequence, diverged at %d", i)
		}
	}
}
