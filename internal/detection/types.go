// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package detection implements the streaming anomaly detectors and the
// engine that runs every accepted event through them.
//
// Detectors observe events already past integrity validation; they flag,
// they never reject. Each detector is independently toggleable and carries
// its own configuration.
package detection

import (
	"context"

	"github.com/tomtom215/adwatch/internal/models"
)

// RuleType identifies a detection rule.
type RuleType string

const (
	RuleClickSpike RuleType = "click_spike"
	RuleOutlier    RuleType = "statistical_outlier"
)

// Detector is the contract every detection rule implements.
//
// Check is invoked once per accepted event after the window store has been
// updated with it. A nil alert slice means nothing suspicious. Detectors
// must be safe for concurrent Check calls.
type Detector interface {
	// Type returns the rule identifier.
	Type() RuleType

	// Check inspects the event and returns any alerts it warrants.
	Check(ctx context.Context, ev *models.Event) ([]*models.Alert, error)

	// Enabled reports whether the detector is active.
	Enabled() bool

	// SetEnabled toggles the detector at runtime.
	SetEnabled(enabled bool)
}
