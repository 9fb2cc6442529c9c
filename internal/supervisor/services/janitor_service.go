// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/adwatch/internal/logging"
)

// WindowCleaner matches the window store's expiry sweep. Satisfied by
// *window.Store.
type WindowCleaner interface {
	CleanupExpired(now time.Time) int
}

// JanitorService periodically sweeps idle users out of the window store.
// Per-event pruning bounds records per user; this sweep bounds the user map
// itself when traffic for a user stops entirely.
type JanitorService struct {
	cleaner  WindowCleaner
	interval time.Duration
}

// NewJanitorService creates the sweep service. A zero interval defaults to
// one minute.
func NewJanitorService(cleaner WindowCleaner, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &JanitorService{cleaner: cleaner, interval: interval}
}

// Serve implements suture.Service.
func (s *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.cleaner.CleanupExpired(time.Now().UTC()); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("Swept idle users from window store")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *JanitorService) String() string {
	return "window-janitor"
}
