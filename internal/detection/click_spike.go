// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package detection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tomtom215/adwatch/internal/models"
	"github.com/tomtom215/adwatch/internal/window"
)

// ClickSpikeConfig configures the click-spike rule.
type ClickSpikeConfig struct {
	// Threshold is the click count within Window above which the rule
	// fires. Strictly greater-than: a count equal to the threshold is
	// still considered plausible human behavior.
	Threshold int

	// Window is the trailing window measured backwards from the event's
	// own timestamp. The window start is inclusive.
	Window time.Duration
}

// DefaultClickSpikeConfig returns the default click-spike configuration:
// more than 10 clicks in 60 seconds flags a user.
func DefaultClickSpikeConfig() ClickSpikeConfig {
	return ClickSpikeConfig{
		Threshold: 10,
		Window:    60 * time.Second,
	}
}

// ClickSpikeDetector flags users whose click rate within a trailing window
// exceeds the threshold. Rates that high are consistent with automation, not
// human browsing.
type ClickSpikeDetector struct {
	cfg     ClickSpikeConfig
	windows *window.Store
	enabled atomic.Bool
}

// NewClickSpikeDetector creates the detector against the shared window store.
func NewClickSpikeDetector(cfg ClickSpikeConfig, windows *window.Store) *ClickSpikeDetector {
	d := &ClickSpikeDetector{cfg: cfg, windows: windows}
	d.enabled.Store(true)
	return d
}

// Type returns the rule identifier.
func (d *ClickSpikeDetector) Type() RuleType { return RuleClickSpike }

// Enabled reports whether the detector is active.
func (d *ClickSpikeDetector) Enabled() bool { return d.enabled.Load() }

// SetEnabled toggles the detector.
func (d *ClickSpikeDetector) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Check counts the user's clicks in the trailing window, including the event
// under inspection, and flags when the count exceeds the threshold.
func (d *ClickSpikeDetector) Check(_ context.Context, ev *models.Event) ([]*models.Alert, error) {
	if !d.Enabled() || ev.Type != models.EventTypeClick {
		return nil, nil
	}

	cutoff := ev.Timestamp.Add(-d.cfg.Window)
	count := d.windows.CountSince(ev.UserID, models.EventTypeClick, cutoff)
	if count <= d.cfg.Threshold {
		return nil, nil
	}

	alert := models.NewAlert(models.AlertBotSuspicion, models.SeverityHigh, ev.UserID,
		fmt.Sprintf("user %s made %d clicks in %s (threshold %d)",
			ev.UserID, count, d.cfg.Window, d.cfg.Threshold)).
		WithMetadata(map[string]any{
			"count":     count,
			"threshold": d.cfg.Threshold,
			"window":    d.cfg.Window.String(),
			"event_id":  ev.EventID,
		})
	return []*models.Alert{alert}, nil
}
