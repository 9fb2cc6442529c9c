// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package detection

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/adwatch/internal/models"
	"github.com/tomtom215/adwatch/internal/window"
)

func clickAt(userID string, ts time.Time) *models.Event {
	ev := models.NewClick(userID, "camp-1", "ad-1", "imp-1")
	ev.Timestamp = ts
	return ev
}

func TestClickSpikeFiresAboveThreshold(t *testing.T) {
	windows := window.NewStore(5*time.Minute, 0)
	d := NewClickSpikeDetector(DefaultClickSpikeConfig(), windows)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var fired []*models.Alert
	for i := 0; i < 11; i++ {
		ev := clickAt("user-1", base.Add(time.Duration(i)*2*time.Second))
		windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})

		alerts, err := d.Check(context.Background(), ev)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fired = append(fired, alerts...)
	}

	if len(fired) != 1 {
		t.Fatalf("expected exactly one alert from 11 clicks, got %d", len(fired))
	}
	a := fired[0]
	if a.Kind != models.AlertBotSuspicion {
		t.Errorf("expected bot suspicion, got %s", a.Kind)
	}
	if a.Severity != models.SeverityHigh {
		t.Errorf("expected high severity, got %s", a.Severity)
	}
	if a.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %s", a.Subject)
	}
	if !strings.Contains(a.Detail, "11 clicks") || !strings.Contains(a.Detail, "threshold 10") {
		t.Errorf("detail must report count and threshold: %s", a.Detail)
	}
}

func TestClickSpikeSilentAtThreshold(t *testing.T) {
	windows := window.NewStore(5*time.Minute, 0)
	d := NewClickSpikeDetector(DefaultClickSpikeConfig(), windows)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ev := clickAt("user-1", base.Add(time.Duration(i)*time.Second))
		windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})

		alerts, _ := d.Check(context.Background(), ev)
		if len(alerts) != 0 {
			t.Fatalf("click %d: count at or below threshold must not fire", i+1)
		}
	}
}

func TestClickSpikeWindowSlides(t *testing.T) {
	windows := window.NewStore(5*time.Minute, 0)
	d := NewClickSpikeDetector(DefaultClickSpikeConfig(), windows)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 10 clicks in the first minute, then 10 more spread over the next
	// minutes so no 60-second window ever holds more than 10.
	for i := 0; i < 10; i++ {
		ev := clickAt("user-1", base.Add(time.Duration(i)*5*time.Second))
		windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})
		if alerts, _ := d.Check(context.Background(), ev); len(alerts) != 0 {
			t.Fatal("first burst is within threshold, must not fire")
		}
	}
	for i := 0; i < 10; i++ {
		ev := clickAt("user-1", base.Add(2*time.Minute).Add(time.Duration(i)*7*time.Second))
		windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})
		if alerts, _ := d.Check(context.Background(), ev); len(alerts) != 0 {
			t.Fatal("second burst after the window slid must not fire")
		}
	}
}

func TestClickSpikePerUserIsolation(t *testing.T) {
	windows := window.NewStore(5*time.Minute, 0)
	d := NewClickSpikeDetector(DefaultClickSpikeConfig(), windows)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 6 clicks each from two users in the same window: neither crosses
	// the per-user threshold even though the total does.
	for i := 0; i < 6; i++ {
		for _, userID := range []string{"user-a", "user-b"} {
			ev := clickAt(userID, base.Add(time.Duration(i)*3*time.Second))
			windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})
			if alerts, _ := d.Check(context.Background(), ev); len(alerts) != 0 {
				t.Fatalf("user %s must not fire from pooled traffic", userID)
			}
		}
	}
}

func TestClickSpikeIgnoresNonClicks(t *testing.T) {
	windows := window.NewStore(5*time.Minute, 0)
	d := NewClickSpikeDetector(ClickSpikeConfig{Threshold: 1, Window: time.Minute}, windows)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ev := models.NewImpression("user-1", "camp-1", "ad-1")
		ev.Timestamp = base.Add(time.Duration(i) * time.Second)
		windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})
		if alerts, _ := d.Check(context.Background(), ev); len(alerts) != 0 {
			t.Fatal("impressions must not trigger the click rule")
		}
	}
}

func TestClickSpikeDisabled(t *testing.T) {
	windows := window.NewStore(5*time.Minute, 0)
	d := NewClickSpikeDetector(ClickSpikeConfig{Threshold: 1, Window: time.Minute}, windows)
	d.SetEnabled(false)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ev := clickAt("user-1", base.Add(time.Duration(i)*time.Second))
		windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})
		if alerts, _ := d.Check(context.Background(), ev); len(alerts) != 0 {
			t.Fatal("disabled detector must not fire")
		}
	}
}
