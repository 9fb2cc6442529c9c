// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package services wraps the engine's long-running components as suture
// services. Each wrapper defines the narrow interface it needs instead of
// importing the concrete package, keeping the supervision layer free of
// dependency cycles.
package services

import (
	"context"
)

// EventBus matches the pipeline bus's Run method. Satisfied by
// *pipeline.Bus.
type EventBus interface {
	Run(ctx context.Context) error
}

// PipelineService supervises the event bus router.
type PipelineService struct {
	bus EventBus
}

// NewPipelineService wraps the bus as a supervised service.
func NewPipelineService(bus EventBus) *PipelineService {
	return &PipelineService{bus: bus}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	return s.bus.Run(ctx)
}

// String identifies the service in supervisor logs.
func (s *PipelineService) String() string {
	return "event-pipeline"
}
