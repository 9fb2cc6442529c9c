// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package api exposes the operator HTTP surface: health probes, Prometheus
// metrics, read-only alert queries, engine statistics, and the drift
// baseline/detect operator actions.
//
// This is an ops plane, not an ingestion path: events never enter the
// system through HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/adwatch/internal/alerts"
	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/dataset"
	"github.com/tomtom215/adwatch/internal/detection"
	"github.com/tomtom215/adwatch/internal/drift"
	"github.com/tomtom215/adwatch/internal/window"
)

// Deps carries everything the handlers need.
type Deps struct {
	Config  config.ServerConfig
	Sink    *alerts.Sink
	Engine  *detection.Engine
	Drift   *drift.Detector
	Dataset *dataset.Store
	Windows *window.Store
}

// NewRouter builds the chi router with the standard middleware stack and all
// operator routes mounted.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(deps.Config.Timeout))
	if deps.Config.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(deps.Config.RateLimitReqs, deps.Config.RateLimitWindow))
	}

	h := &handlers{deps: deps}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/live", h.healthLive)
		r.Get("/health/ready", h.healthReady)

		r.Get("/alerts", h.listAlerts)
		r.Get("/alerts/count", h.countAlerts)

		r.Get("/stats", h.stats)

		r.Put("/detectors/{rule}", h.setDetectorEnabled)

		r.Route("/drift", func(r chi.Router) {
			r.Get("/baseline", h.baselineSummary)
			r.Post("/baseline", h.setBaseline)
			r.Post("/detect", h.detectDrift)
		})
	})

	return r
}
