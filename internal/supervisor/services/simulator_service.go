// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package services

import (
	"context"
)

// TrafficSource matches the simulator's Run method. Satisfied by
// *simulator.Simulator.
type TrafficSource interface {
	Run(ctx context.Context) error
}

// SimulatorService supervises the synthetic traffic generator.
type SimulatorService struct {
	source TrafficSource
}

// NewSimulatorService wraps the traffic source as a supervised service.
func NewSimulatorService(source TrafficSource) *SimulatorService {
	return &SimulatorService{source: source}
}

// Serve implements suture.Service.
func (s *SimulatorService) Serve(ctx context.Context) error {
	return s.source.Run(ctx)
}

// String identifies the service in supervisor logs.
func (s *SimulatorService) String() string {
	return "traffic-simulator"
}
