// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package drift compares a baseline snapshot of feature distributions
// against a current snapshot and reports which features have shifted.
//
// The numeric comparison uses summary statistics (standardized mean
// difference and variance ratio) rather than a goodness-of-fit test. That is
// a deliberate simplification: it is cheap, dependency-free, and catches the
// gross shifts that matter for reliability monitoring, at the cost of
// missing same-mean same-variance shape changes.
package drift

import (
	"sort"
	"time"
)

// FeatureKind discriminates how a feature's samples are compared.
type FeatureKind string

const (
	FeatureNumeric     FeatureKind = "numeric"
	FeatureCategorical FeatureKind = "categorical"
)

// Snapshot is an immutable, named collection of feature samples captured at
// a point in time. Snapshots are never mutated after construction; the
// detector only reads them.
type Snapshot struct {
	Name       string    `json:"name"`
	CapturedAt time.Time `json:"captured_at"`

	// Numeric maps feature name to raw samples.
	Numeric map[string][]float64 `json:"numeric"`

	// Categorical maps feature name to raw category labels.
	Categorical map[string][]string `json:"categorical"`
}

// NewSnapshot creates an empty named snapshot stamped with the current time.
func NewSnapshot(name string) *Snapshot {
	return &Snapshot{
		Name:        name,
		CapturedAt:  time.Now().UTC(),
		Numeric:     make(map[string][]float64),
		Categorical: make(map[string][]string),
	}
}

// FeatureResult is the verdict for one feature.
type FeatureResult struct {
	Kind    FeatureKind `json:"kind"`
	Drifted bool        `json:"drifted"`

	// Score is the comparison statistic: standardized mean difference for
	// numeric features, total variation distance for categorical ones.
	Score float64 `json:"score"`

	// Skipped is true when either snapshot had too few samples for the
	// feature to be evaluated. Skipped features never count as drifted.
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// Report is the outcome of one drift detection run.
type Report struct {
	Baseline       string                   `json:"baseline"`
	Current        string                   `json:"current"`
	EvaluatedAt    time.Time                `json:"evaluated_at"`
	PerFeature     map[string]FeatureResult `json:"per_feature"`
	OverallDrifted bool                     `json:"overall_drifted"`
}

// DriftedFeatures returns the names of flagged features in sorted order.
func (r *Report) DriftedFeatures() []string {
	var out []string
	for name, res := range r.PerFeature {
		if res.Drifted {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// EvaluatedCount returns the number of features that were actually compared
// (not skipped).
func (r *Report) EvaluatedCount() int {
	count := 0
	for _, res := range r.PerFeature {
		if !res.Skipped {
			count++
		}
	}
	return count
}
