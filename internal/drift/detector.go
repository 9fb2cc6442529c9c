// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package drift

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/metrics"
	"github.com/tomtom215/adwatch/internal/models"
)

// ErrNoBaseline is returned when drift detection runs before any baseline
// has been set. This is a caller sequencing error and must be surfaced, not
// swallowed.
var ErrNoBaseline = errors.New("no baseline snapshot set")

// Sink receives the alert a drift run raises.
type Sink interface {
	Append(alerts ...*models.Alert)
}

// Detector holds the current baseline and compares snapshots against it.
//
// The baseline is swapped atomically: a detection in progress observes
// either the old or the new baseline in full, never a partial replacement.
type Detector struct {
	cfg      config.DriftConfig
	baseline atomic.Pointer[Snapshot]
	sink     Sink
}

// NewDetector creates a drift detector with no baseline. The sink may be nil
// when alert routing is handled by the caller.
func NewDetector(cfg config.DriftConfig, sink Sink) *Detector {
	return &Detector{cfg: cfg, sink: sink}
}

// SetBaseline replaces the stored baseline unconditionally. Setting the same
// snapshot again is a no-op in effect: subsequent detections are unchanged.
func (d *Detector) SetBaseline(snap *Snapshot) {
	d.baseline.Store(snap)
	logging.Info().
		Str("baseline", snap.Name).
		Time("captured_at", snap.CapturedAt).
		Int("numeric_features", len(snap.Numeric)).
		Int("categorical_features", len(snap.Categorical)).
		Msg("Drift baseline replaced")
}

// Baseline returns the current baseline, or nil when none is set.
func (d *Detector) Baseline() *Snapshot {
	return d.baseline.Load()
}

// DetectDrift compares the current snapshot against the baseline and returns
// the per-feature report. Features present in either snapshot are evaluated;
// a feature missing from one side, or below the sample floor on either side,
// is skipped without an alert. When any feature drifts, one DriftDetected
// alert summarizing the run is appended to the sink.
func (d *Detector) DetectDrift(current *Snapshot) (*Report, error) {
	baseline := d.baseline.Load()
	if baseline == nil {
		return nil, ErrNoBaseline
	}

	report := &Report{
		Baseline:    baseline.Name,
		Current:     current.Name,
		EvaluatedAt: time.Now().UTC(),
		PerFeature:  make(map[string]FeatureResult),
	}

	for _, name := range unionKeysNumeric(baseline.Numeric, current.Numeric) {
		report.PerFeature[name] = d.compareNumeric(baseline.Numeric[name], current.Numeric[name])
	}
	for _, name := range unionKeysCategorical(baseline.Categorical, current.Categorical) {
		report.PerFeature[name] = d.compareCategorical(baseline.Categorical[name], current.Categorical[name])
	}

	drifted := report.DriftedFeatures()
	report.OverallDrifted = len(drifted) > 0

	verdict := "stable"
	if report.OverallDrifted {
		verdict = "drifted"
		d.raiseAlert(report, drifted)
	}
	metrics.DriftEvaluations.WithLabelValues(verdict).Inc()

	logging.Info().
		Str("baseline", report.Baseline).
		Str("current", report.Current).
		Bool("overall_drifted", report.OverallDrifted).
		Int("features_evaluated", report.EvaluatedCount()).
		Strs("drifted_features", drifted).
		Msg("Drift detection completed")

	return report, nil
}

// raiseAlert appends the single summarizing alert for a drifted run.
// Severity is high when more than half of the evaluated features drifted.
func (d *Detector) raiseAlert(report *Report, drifted []string) {
	severity := models.SeverityMedium
	if evaluated := report.EvaluatedCount(); evaluated > 0 && len(drifted)*2 > evaluated {
		severity = models.SeverityHigh
	}

	alert := models.NewAlert(models.AlertDriftDetected, severity,
		strings.Join(drifted, ","),
		fmt.Sprintf("distribution drift detected in %d of %d evaluated features: %s",
			len(drifted), report.EvaluatedCount(), strings.Join(drifted, ", "))).
		WithMetadata(map[string]any{
			"baseline": report.Baseline,
			"current":  report.Current,
			"features": drifted,
		})

	if d.sink != nil {
		d.sink.Append(alert)
		metrics.AlertsRaised.WithLabelValues(string(alert.Kind), string(alert.Severity)).Inc()
	}
}

// compareNumeric flags drift when the standardized mean difference exceeds
// the threshold or the variance ratio leaves the configured band.
func (d *Detector) compareNumeric(base, cur []float64) FeatureResult {
	res := FeatureResult{Kind: FeatureNumeric}
	if len(base) < d.cfg.MinSamples || len(cur) < d.cfg.MinSamples {
		res.Skipped = true
		res.Reason = fmt.Sprintf("insufficient samples (baseline %d, current %d, need %d)",
			len(base), len(cur), d.cfg.MinSamples)
		return res
	}

	baseMean, baseVar := meanVariance(base)
	curMean, curVar := meanVariance(cur)

	// Standardized mean difference, scaled by the baseline spread. A zero
	// baseline spread falls back to the raw difference so a genuine shift
	// off a constant baseline still registers.
	baseStd := math.Sqrt(baseVar)
	meanDiff := math.Abs(curMean - baseMean)
	if baseStd > 0 {
		meanDiff /= baseStd
	}
	res.Score = meanDiff

	meanShifted := meanDiff > d.cfg.MeanShiftThreshold

	varianceShifted := false
	switch {
	case baseVar == 0 && curVar == 0:
		// Both degenerate: identical spread, no variance signal.
	case baseVar == 0 || curVar == 0:
		varianceShifted = true
	default:
		ratio := curVar / baseVar
		varianceShifted = ratio < d.cfg.VarianceRatioLow || ratio > d.cfg.VarianceRatioHigh
	}

	res.Drifted = meanShifted || varianceShifted
	return res
}

// compareCategorical flags drift when the total variation distance between
// the two frequency distributions exceeds the threshold.
func (d *Detector) compareCategorical(base, cur []string) FeatureResult {
	res := FeatureResult{Kind: FeatureCategorical}
	if len(base) < d.cfg.MinSamples || len(cur) < d.cfg.MinSamples {
		res.Skipped = true
		res.Reason = fmt.Sprintf("insufficient samples (baseline %d, current %d, need %d)",
			len(base), len(cur), d.cfg.MinSamples)
		return res
	}

	baseFreq := frequencies(base)
	curFreq := frequencies(cur)

	tvd := 0.0
	for category := range union(baseFreq, curFreq) {
		tvd += math.Abs(baseFreq[category] - curFreq[category])
	}
	tvd /= 2

	res.Score = tvd
	res.Drifted = tvd > d.cfg.TVDThreshold
	return res
}

// meanVariance returns the mean and population variance of the samples.
func meanVariance(samples []float64) (mean, variance float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range samples {
		sum += x
	}
	mean = sum / n
	for _, x := range samples {
		d := x - mean
		variance += d * d
	}
	variance /= n
	return mean, variance
}

// frequencies returns the relative frequency of each category.
func frequencies(samples []string) map[string]float64 {
	freq := make(map[string]float64, 8)
	for _, s := range samples {
		freq[s]++
	}
	n := float64(len(samples))
	for category := range freq {
		freq[category] /= n
	}
	return freq
}

func union(a, b map[string]float64) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func unionKeysNumeric(a, b map[string][]float64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

func unionKeysCategorical(a, b map[string][]string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
