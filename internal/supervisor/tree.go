// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package supervisor builds the suture supervision tree for the engine's
// long-running services.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when the threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree manages the supervision hierarchy.
//
// Two layers: pipeline (event bus, simulator, window janitor) and api (the
// ops HTTP server). A crash in the pipeline layer restarts independently of
// the API layer, so operators keep visibility while detection recovers.
type Tree struct {
	root     *suture.Supervisor
	pipeline *suture.Supervisor
	api      *suture.Supervisor
}

// NewTree creates the supervisor tree. The slog logger feeds suture's event
// hook; zero config fields fall back to defaults.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("adwatch", rootSpec)
	pipeline := suture.New("pipeline-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(pipeline)
	root.Add(api)

	return &Tree{root: root, pipeline: pipeline, api: api}
}

// AddPipelineService adds a service to the pipeline layer.
func (t *Tree) AddPipelineService(svc suture.Service) suture.ServiceToken {
	return t.pipeline.Add(svc)
}

// AddAPIService adds a service to the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve starts the tree and blocks until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within the
// shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
