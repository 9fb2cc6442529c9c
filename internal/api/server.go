// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/adwatch/internal/logging"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 10 * time.Second

// Server wraps the ops HTTP server with context-driven lifecycle.
type Server struct {
	srv *http.Server
}

// NewServer builds the HTTP server around the router.
func NewServer(deps Deps) *Server {
	addr := fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port)
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       deps.Config.Timeout,
			WriteTimeout:      deps.Config.Timeout,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Serve runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("Starting ops API server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops API shutdown failed: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
