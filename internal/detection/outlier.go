// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package detection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/adwatch/internal/models"
	"github.com/tomtom215/adwatch/internal/window"
)

// OutlierConfig configures the sigma-band outlier rule.
type OutlierConfig struct {
	// SigmaMultiplier is the band width in standard deviations.
	SigmaMultiplier float64

	// MinSamples is the population floor below which the rule is inert.
	// Insufficient data must never produce alerts.
	MinSamples int

	// PopulationSize is the trailing sample count retained; older samples
	// roll off so the population tracks recent traffic.
	PopulationSize int

	// Window is the trailing window the observed feature (clicks per user)
	// is measured over.
	Window time.Duration
}

// DefaultOutlierConfig returns the default outlier configuration: 3-sigma
// band over the last 100 samples, inert below 30 samples.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		SigmaMultiplier: 3.0,
		MinSamples:      30,
		PopulationSize:  100,
		Window:          60 * time.Second,
	}
}

// population is a fixed-capacity ring of recent observations.
type population struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

func newPopulation(capacity int) *population {
	return &population{samples: make([]float64, capacity)}
}

// len returns the current sample count. Callers must hold mu.
func (p *population) len() int {
	if p.full {
		return len(p.samples)
	}
	return p.next
}

// stats returns mean and standard deviation of the retained samples.
// Callers must hold mu.
func (p *population) stats() (mean, stddev float64) {
	n := p.len()
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += p.samples[i]
	}
	mean = sum / float64(n)

	variance := 0.0
	for i := 0; i < n; i++ {
		d := p.samples[i] - mean
		variance += d * d
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance)
}

// add appends a sample, rolling off the oldest at capacity. Callers must
// hold mu.
func (p *population) add(x float64) {
	p.samples[p.next] = x
	p.next++
	if p.next == len(p.samples) {
		p.next = 0
		p.full = true
	}
}

// PopulationStats is a point-in-time view of the outlier population:
// the trailing click-rate observations the sigma band is computed from.
type PopulationStats struct {
	Mean    float64 `json:"mean"`
	Stddev  float64 `json:"stddev"`
	Samples int     `json:"samples"`
}

// OutlierDetector flags per-user click volumes that sit far outside the
// recent population of click volumes across all users.
//
// The observed feature is the user's click count within the trailing window
// at the moment of each click. The population is global: one user clicking
// wildly more than everyone else is the signal.
type OutlierDetector struct {
	cfg     OutlierConfig
	windows *window.Store
	pop     *population
	enabled atomic.Bool
}

// NewOutlierDetector creates the detector against the shared window store.
func NewOutlierDetector(cfg OutlierConfig, windows *window.Store) *OutlierDetector {
	d := &OutlierDetector{
		cfg:     cfg,
		windows: windows,
		pop:     newPopulation(cfg.PopulationSize),
	}
	d.enabled.Store(true)
	return d
}

// Type returns the rule identifier.
func (d *OutlierDetector) Type() RuleType { return RuleOutlier }

// Enabled reports whether the detector is active.
func (d *OutlierDetector) Enabled() bool { return d.enabled.Load() }

// SetEnabled toggles the detector.
func (d *OutlierDetector) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// PopulationStats returns the current mean, stddev, and sample count of the
// click-rate population.
func (d *OutlierDetector) PopulationStats() PopulationStats {
	d.pop.mu.Lock()
	defer d.pop.mu.Unlock()

	mean, stddev := d.pop.stats()
	return PopulationStats{
		Mean:    mean,
		Stddev:  stddev,
		Samples: d.pop.len(),
	}
}

// Check measures the user's click volume, tests it against the existing
// population, then folds it into the population for later events.
//
// The test runs before the fold so the observation cannot shift the band it
// is judged against. Zero stddev and a population below the sample floor
// short-circuit to inert: degenerate statistics never raise.
func (d *OutlierDetector) Check(_ context.Context, ev *models.Event) ([]*models.Alert, error) {
	if !d.Enabled() || ev.Type != models.EventTypeClick {
		return nil, nil
	}

	cutoff := ev.Timestamp.Add(-d.cfg.Window)
	x := float64(d.windows.CountSince(ev.UserID, models.EventTypeClick, cutoff))

	d.pop.mu.Lock()
	defer d.pop.mu.Unlock()

	var alerts []*models.Alert
	if d.pop.len() >= d.cfg.MinSamples {
		mean, stddev := d.pop.stats()
		if stddev > 0 && math.Abs(x-mean) > d.cfg.SigmaMultiplier*stddev {
			alerts = append(alerts, models.NewAlert(
				models.AlertStatisticalOutlier, models.SeverityMedium, ev.UserID,
				fmt.Sprintf("click volume %.0f deviates from population mean %.2f by more than %.1f sigma (stddev %.2f)",
					x, mean, d.cfg.SigmaMultiplier, stddev)).
				WithMetadata(map[string]any{
					"observation": x,
					"mean":        mean,
					"stddev":      stddev,
					"sigma":       d.cfg.SigmaMultiplier,
					"event_id":    ev.EventID,
				}))
		}
	}
	d.pop.add(x)

	return alerts, nil
}
