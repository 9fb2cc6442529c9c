// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package drift

import (
	"errors"
	"math"
	"testing"

	"github.com/tomtom215/adwatch/internal/alerts"
	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/models"
)

func driftConfig() config.DriftConfig {
	return config.DriftConfig{
		MeanShiftThreshold: 0.1,
		VarianceRatioLow:   0.5,
		VarianceRatioHigh:  2.0,
		TVDThreshold:       0.1,
		MinSamples:         30,
	}
}

// repeatCategories builds n samples with the given relative frequencies.
func repeatCategories(n int, freqs map[string]float64) []string {
	var out []string
	for category, f := range freqs {
		count := int(math.Round(f * float64(n)))
		for i := 0; i < count; i++ {
			out = append(out, category)
		}
	}
	return out
}

// linearSamples builds n evenly spaced numeric samples in [lo, hi].
func linearSamples(n int, lo, hi float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func TestDetectDriftWithoutBaselineFails(t *testing.T) {
	d := NewDetector(driftConfig(), alerts.NewSink())

	snap := NewSnapshot("current")
	snap.Numeric["bid_amount"] = linearSamples(50, 1, 2)

	_, err := d.DetectDrift(snap)
	if !errors.Is(err, ErrNoBaseline) {
		t.Fatalf("expected ErrNoBaseline, got %v", err)
	}
}

func TestSelfComparisonNeverDrifts(t *testing.T) {
	sink := alerts.NewSink()
	d := NewDetector(driftConfig(), sink)

	snap := NewSnapshot("snap")
	snap.Numeric["user_age"] = linearSamples(100, 18, 65)
	snap.Numeric["bid_amount"] = linearSamples(100, 0.5, 3.0)
	snap.Categorical["device_type"] = repeatCategories(100, map[string]float64{"mobile": 0.5, "desktop": 0.5})

	d.SetBaseline(snap)
	report, err := d.DetectDrift(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OverallDrifted {
		t.Error("a snapshot compared against itself must never drift")
	}
	for name, res := range report.PerFeature {
		if res.Drifted || res.Skipped {
			t.Errorf("feature %s: expected evaluated and stable, got %+v", name, res)
		}
	}
	if sink.Len() != 0 {
		t.Errorf("stable run must not raise alerts, got %d", sink.Len())
	}
}

func TestSetBaselineIdempotent(t *testing.T) {
	d := NewDetector(driftConfig(), alerts.NewSink())

	baseline := NewSnapshot("baseline")
	baseline.Numeric["bid_amount"] = linearSamples(60, 1, 2)

	current := NewSnapshot("current")
	current.Numeric["bid_amount"] = linearSamples(60, 5, 9)

	d.SetBaseline(baseline)
	first, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.SetBaseline(baseline)
	second, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.OverallDrifted != second.OverallDrifted {
		t.Error("setting the same baseline twice must not change the verdict")
	}
	f1, f2 := first.PerFeature["bid_amount"], second.PerFeature["bid_amount"]
	if f1.Drifted != f2.Drifted || f1.Score != f2.Score {
		t.Errorf("per-feature results must be unchanged: %+v vs %+v", f1, f2)
	}
}

func TestCategoricalShiftFlagsDriftWithHighSeverity(t *testing.T) {
	sink := alerts.NewSink()
	d := NewDetector(driftConfig(), sink)

	baseline := NewSnapshot("baseline")
	baseline.Categorical["device_type"] = repeatCategories(100, map[string]float64{"mobile": 0.5, "desktop": 0.5})

	current := NewSnapshot("current")
	current.Categorical["device_type"] = repeatCategories(100, map[string]float64{"mobile": 0.9, "desktop": 0.1})

	d.SetBaseline(baseline)
	report, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := report.PerFeature["device_type"]
	if !res.Drifted {
		t.Fatal("device_type must be flagged drifted")
	}
	if math.Abs(res.Score-0.4) > 1e-9 {
		t.Errorf("expected total variation distance 0.4, got %g", res.Score)
	}
	if !report.OverallDrifted {
		t.Error("overall verdict must be drifted")
	}

	got := sink.List(alerts.Filter{Kinds: []models.AlertKind{models.AlertDriftDetected}})
	if len(got) != 1 {
		t.Fatalf("expected exactly one drift alert, got %d", len(got))
	}
	if got[0].Severity != models.SeverityHigh {
		t.Errorf("all evaluated features drifted, expected high severity, got %s", got[0].Severity)
	}
}

func TestNumericMeanShiftFlagsDrift(t *testing.T) {
	d := NewDetector(driftConfig(), alerts.NewSink())

	baseline := NewSnapshot("baseline")
	baseline.Numeric["bid_amount"] = linearSamples(100, 1.0, 2.0)

	current := NewSnapshot("current")
	current.Numeric["bid_amount"] = linearSamples(100, 1.5, 2.5)

	d.SetBaseline(baseline)
	report, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.PerFeature["bid_amount"].Drifted {
		t.Error("a half-unit mean shift on a 1-2 range must be flagged")
	}
}

func TestNumericVarianceShiftFlagsDrift(t *testing.T) {
	d := NewDetector(driftConfig(), alerts.NewSink())

	// Same mean, spread tripled: the variance ratio leaves [0.5, 2.0]
	// even though the means are identical.
	baseline := NewSnapshot("baseline")
	baseline.Numeric["user_age"] = linearSamples(100, 30, 40)

	current := NewSnapshot("current")
	current.Numeric["user_age"] = linearSamples(100, 20, 50)

	d.SetBaseline(baseline)
	report, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.PerFeature["user_age"].Drifted {
		t.Error("a variance blow-up with a stable mean must be flagged")
	}
}

func TestInsufficientSamplesSkippedSilently(t *testing.T) {
	sink := alerts.NewSink()
	d := NewDetector(driftConfig(), sink)

	baseline := NewSnapshot("baseline")
	baseline.Numeric["bid_amount"] = linearSamples(10, 1, 2)
	baseline.Categorical["region"] = repeatCategories(10, map[string]float64{"us": 1.0})

	current := NewSnapshot("current")
	current.Numeric["bid_amount"] = linearSamples(10, 100, 200)
	current.Categorical["region"] = repeatCategories(10, map[string]float64{"eu": 1.0})

	d.SetBaseline(baseline)
	report, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, res := range report.PerFeature {
		if !res.Skipped {
			t.Errorf("feature %s: expected skipped below the sample floor", name)
		}
		if res.Drifted {
			t.Errorf("feature %s: skipped features must never count as drifted", name)
		}
	}
	if report.OverallDrifted {
		t.Error("insufficient data is not drift")
	}
	if sink.Len() != 0 {
		t.Errorf("skipped features must not raise alerts, got %d", sink.Len())
	}
}

func TestMixedDriftSeverityMedium(t *testing.T) {
	sink := alerts.NewSink()
	d := NewDetector(driftConfig(), sink)

	// Three evaluated features, one drifted: not more than half, so the
	// summary alert is medium.
	baseline := NewSnapshot("baseline")
	baseline.Numeric["user_age"] = linearSamples(100, 18, 65)
	baseline.Numeric["bid_amount"] = linearSamples(100, 1, 2)
	baseline.Categorical["device_type"] = repeatCategories(100, map[string]float64{"mobile": 0.5, "desktop": 0.5})

	current := NewSnapshot("current")
	current.Numeric["user_age"] = linearSamples(100, 18, 65)
	current.Numeric["bid_amount"] = linearSamples(100, 1, 2)
	current.Categorical["device_type"] = repeatCategories(100, map[string]float64{"mobile": 0.9, "desktop": 0.1})

	d.SetBaseline(baseline)
	report, err := d.DetectDrift(current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if drifted := report.DriftedFeatures(); len(drifted) != 1 || drifted[0] != "device_type" {
		t.Fatalf("expected only device_type drifted, got %v", drifted)
	}

	got := sink.List(alerts.Filter{Kinds: []models.AlertKind{models.AlertDriftDetected}})
	if len(got) != 1 {
		t.Fatalf("expected one drift alert, got %d", len(got))
	}
	if got[0].Severity != models.SeverityMedium {
		t.Errorf("one of three features drifted, expected medium severity, got %s", got[0].Severity)
	}
}
