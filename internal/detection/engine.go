// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package detection

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/adwatch/internal/alerts"
	"github.com/tomtom215/adwatch/internal/integrity"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/metrics"
	"github.com/tomtom215/adwatch/internal/models"
	"github.com/tomtom215/adwatch/internal/window"
)

// DatasetAppender receives accepted events for later drift snapshots.
type DatasetAppender interface {
	Append(ev *models.Event)
}

// DetectorStats tracks per-detector activity counters.
type DetectorStats struct {
	Checks uint64 `json:"checks"`
	Alerts uint64 `json:"alerts"`
	Errors uint64 `json:"errors"`
}

// detectorState pairs a detector with its live counters.
type detectorState struct {
	detector Detector
	checks   atomic.Uint64
	alerts   atomic.Uint64
	errors   atomic.Uint64
}

// Engine runs every incoming event through validation, window bookkeeping,
// and the registered detectors, routing all resulting alerts to the sink.
//
// Flow per event: validate, sink any rule alerts; rejected events stop here
// and never touch the window store or the dataset. Accepted events are
// indexed for referential checks, folded into the user's window, run through
// each enabled detector, then appended to the dataset.
type Engine struct {
	validator *integrity.Validator
	index     *integrity.Index
	windows   *window.Store
	sink      *alerts.Sink
	notifier  alerts.Notifier
	dataset   DatasetAppender
	detectors []*detectorState

	processed atomic.Uint64
	accepted  atomic.Uint64
	rejected  atomic.Uint64
}

// NewEngine wires the engine. The notifier and dataset may be nil when those
// stages are disabled.
func NewEngine(
	validator *integrity.Validator,
	index *integrity.Index,
	windows *window.Store,
	sink *alerts.Sink,
	notifier alerts.Notifier,
	dataset DatasetAppender,
	detectors ...Detector,
) *Engine {
	e := &Engine{
		validator: validator,
		index:     index,
		windows:   windows,
		sink:      sink,
		notifier:  notifier,
		dataset:   dataset,
	}
	for _, d := range detectors {
		e.detectors = append(e.detectors, &detectorState{detector: d})
	}
	return e
}

// Ingest processes one event end to end. It never returns an error for a
// malformed or rejected event; the pipeline must keep flowing. The returned
// error is reserved for internal failures worth a retry.
func (e *Engine) Ingest(ctx context.Context, ev *models.Event) error {
	start := time.Now()
	e.processed.Add(1)
	metrics.EventsProcessed.WithLabelValues(string(ev.Type)).Inc()

	outcome := e.validator.Validate(ev)
	e.raise(ctx, outcome.Alerts)

	if !outcome.Accepted {
		e.rejected.Add(1)
		metrics.EventsRejected.WithLabelValues(string(ev.Type)).Inc()
		logging.Debug().
			Str("event_id", ev.EventID).
			Str("event_type", string(ev.Type)).
			Int("alerts", len(outcome.Alerts)).
			Msg("Event rejected by integrity validation")
		return nil
	}
	e.accepted.Add(1)

	e.index.Record(ev)
	e.windows.Observe(ev.UserID, window.Record{Timestamp: ev.Timestamp, Type: ev.Type})
	metrics.WindowUsers.Set(float64(e.windows.Users()))

	for _, st := range e.detectors {
		if !st.detector.Enabled() {
			continue
		}
		st.checks.Add(1)
		found, err := st.detector.Check(ctx, ev)
		if err != nil {
			st.errors.Add(1)
			logging.Error().
				Err(err).
				Str("detector", string(st.detector.Type())).
				Str("event_id", ev.EventID).
				Msg("Detector check failed")
			continue
		}
		if len(found) > 0 {
			st.alerts.Add(uint64(len(found)))
			e.raise(ctx, found)
		}
	}

	if e.dataset != nil {
		e.dataset.Append(ev)
	}

	metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	return nil
}

// raise appends alerts to the sink, records metrics, and dispatches them to
// the notifier.
func (e *Engine) raise(ctx context.Context, found []*models.Alert) {
	if len(found) == 0 {
		return
	}
	e.sink.Append(found...)
	for _, a := range found {
		metrics.AlertsRaised.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	}
	alerts.Dispatch(ctx, e.notifier, found)
}

// populationReporter is implemented by detectors that maintain a sample
// population worth exposing to operators.
type populationReporter interface {
	PopulationStats() PopulationStats
}

// Stats returns a snapshot of engine and per-detector counters, including
// the outlier population summary when an outlier detector is registered.
func (e *Engine) Stats() EngineStats {
	s := EngineStats{
		Processed: e.processed.Load(),
		Accepted:  e.accepted.Load(),
		Rejected:  e.rejected.Load(),
		Detectors: make(map[RuleType]DetectorStats, len(e.detectors)),
	}
	for _, st := range e.detectors {
		s.Detectors[st.detector.Type()] = DetectorStats{
			Checks: st.checks.Load(),
			Alerts: st.alerts.Load(),
			Errors: st.errors.Load(),
		}
		if pr, ok := st.detector.(populationReporter); ok {
			pop := pr.PopulationStats()
			s.Population = &pop
		}
	}
	return s
}

// EngineStats is a point-in-time snapshot of engine activity.
type EngineStats struct {
	Processed uint64                     `json:"processed"`
	Accepted  uint64                     `json:"accepted"`
	Rejected  uint64                     `json:"rejected"`
	Detectors map[RuleType]DetectorStats `json:"detectors"`

	// Population summarizes the outlier detector's click-rate population,
	// when one is registered.
	Population *PopulationStats `json:"click_rate_population,omitempty"`
}

// SetDetectorEnabled toggles a detector by rule type. Returns false when no
// detector with that type is registered.
func (e *Engine) SetDetectorEnabled(rule RuleType, enabled bool) bool {
	for _, st := range e.detectors {
		if st.detector.Type() == rule {
			st.detector.SetEnabled(enabled)
			return true
		}
	}
	return false
}
