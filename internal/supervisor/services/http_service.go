// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package services

import (
	"context"
)

// HTTPServer matches the ops API server's Serve method. Satisfied by
// *api.Server.
type HTTPServer interface {
	Serve(ctx context.Context) error
}

// HTTPService supervises the ops API server.
type HTTPService struct {
	server HTTPServer
}

// NewHTTPService wraps the server as a supervised service.
func NewHTTPService(server HTTPServer) *HTTPService {
	return &HTTPService{server: server}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	return s.server.Serve(ctx)
}

// String identifies the service in supervisor logs.
func (s *HTTPService) String() string {
	return "ops-api"
}
