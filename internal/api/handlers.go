// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/adwatch/internal/alerts"
	"github.com/tomtom215/adwatch/internal/detection"
	"github.com/tomtom215/adwatch/internal/drift"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/models"
)

type handlers struct {
	deps Deps
}

// writeJSON renders a JSON response. Encoding failures after the header is
// written can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) healthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) healthReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"window_users": h.deps.Windows.Users(),
		"alerts":       h.deps.Sink.Len(),
	})
}

// parseAlertFilter builds a sink filter from query parameters. Unknown
// severity or kind values are rejected rather than silently matching
// nothing.
func parseAlertFilter(r *http.Request) (alerts.Filter, error) {
	var f alerts.Filter

	for _, s := range splitParam(r.URL.Query().Get("severity")) {
		sev := models.Severity(s)
		switch sev {
		case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
			f.Severities = append(f.Severities, sev)
		default:
			return f, errors.New("unknown severity: " + s)
		}
	}

	for _, k := range splitParam(r.URL.Query().Get("kind")) {
		kind := models.AlertKind(k)
		switch kind {
		case models.AlertRuleViolation, models.AlertBotSuspicion,
			models.AlertStatisticalOutlier, models.AlertDriftDetected:
			f.Kinds = append(f.Kinds, kind)
		default:
			return f, errors.New("unknown kind: " + k)
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return f, errors.New("invalid limit: " + limitStr)
		}
		f.Limit = limit
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return f, errors.New("invalid since timestamp: " + sinceStr)
		}
		f.Since = since
	}

	return f, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	f, err := parseAlertFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	found := h.deps.Sink.List(f)
	if found == nil {
		found = []*models.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": found,
		"count":  len(found),
	})
}

func (h *handlers) countAlerts(w http.ResponseWriter, r *http.Request) {
	f, err := parseAlertFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": h.deps.Sink.Count(f)})
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"engine":         h.deps.Engine.Stats(),
		"window_users":   h.deps.Windows.Users(),
		"dataset_events": h.deps.Dataset.Len(),
		"alerts_total":   h.deps.Sink.Len(),
	})
}

func (h *handlers) setDetectorEnabled(w http.ResponseWriter, r *http.Request) {
	rule := detection.RuleType(chi.URLParam(r, "rule"))

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
		return
	}

	if !h.deps.Engine.SetDetectorEnabled(rule, *body.Enabled) {
		writeError(w, http.StatusNotFound, "unknown detector: "+string(rule))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rule":    rule,
		"enabled": *body.Enabled,
	})
}

// snapshotSummary is the compact view of a snapshot returned to operators.
type snapshotSummary struct {
	Name        string         `json:"name"`
	CapturedAt  time.Time      `json:"captured_at"`
	Numeric     map[string]int `json:"numeric_samples"`
	Categorical map[string]int `json:"categorical_samples"`
}

func summarize(s *drift.Snapshot) snapshotSummary {
	sum := snapshotSummary{
		Name:        s.Name,
		CapturedAt:  s.CapturedAt,
		Numeric:     make(map[string]int, len(s.Numeric)),
		Categorical: make(map[string]int, len(s.Categorical)),
	}
	for name, samples := range s.Numeric {
		sum.Numeric[name] = len(samples)
	}
	for name, samples := range s.Categorical {
		sum.Categorical[name] = len(samples)
	}
	return sum
}

func (h *handlers) baselineSummary(w http.ResponseWriter, _ *http.Request) {
	baseline := h.deps.Drift.Baseline()
	if baseline == nil {
		writeError(w, http.StatusNotFound, "no baseline set")
		return
	}
	writeJSON(w, http.StatusOK, summarize(baseline))
}

// setBaseline snapshots the current dataset and installs it as the drift
// baseline. The operator decides when traffic is representative; the engine
// never baselines implicitly.
func (h *handlers) setBaseline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	// An empty body is fine; the name defaults.
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Name == "" {
		body.Name = "baseline-" + time.Now().UTC().Format("20060102T150405Z")
	}

	snap := h.deps.Dataset.Snapshot(body.Name)
	h.deps.Drift.SetBaseline(snap)
	writeJSON(w, http.StatusCreated, summarize(snap))
}

// detectDrift snapshots the current dataset and compares it against the
// stored baseline.
func (h *handlers) detectDrift(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Name == "" {
		body.Name = "current-" + time.Now().UTC().Format("20060102T150405Z")
	}

	report, err := h.deps.Drift.DetectDrift(h.deps.Dataset.Snapshot(body.Name))
	if err != nil {
		if errors.Is(err, drift.ErrNoBaseline) {
			writeError(w, http.StatusConflict, "no baseline set; POST /api/v1/drift/baseline first")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
