// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package dataset accumulates accepted events and materializes feature
// snapshots for drift detection. Only events past integrity validation ever
// land here; rejected events are excluded upstream.
package dataset

import (
	"sync"

	"github.com/tomtom215/adwatch/internal/drift"
	"github.com/tomtom215/adwatch/internal/models"
)

// Monitored feature names. Numeric features come from impression fields;
// categorical features from impression demographics.
const (
	FeatureUserAge    = "user_age"
	FeatureBidAmount  = "bid_amount"
	FeatureRevenue    = "revenue"
	FeatureDeviceType = "device_type"
	FeatureRegion     = "region"
	FeaturePlatform   = "platform"
)

// Store is a bounded in-memory buffer of accepted events. When full, the
// oldest events roll off so snapshots always reflect recent traffic.
type Store struct {
	mu       sync.RWMutex
	events   []*models.Event
	capacity int
}

// NewStore creates a dataset store holding at most capacity events.
// A capacity of 0 falls back to a sane default.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &Store{capacity: capacity}
}

// Append adds an accepted event, evicting the oldest when at capacity.
func (s *Store) Append(ev *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == s.capacity {
		copy(s.events, s.events[1:])
		s.events[len(s.events)-1] = ev
		return
	}
	s.events = append(s.events, ev)
}

// Len returns the number of buffered events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Events returns a read-only copy of the buffered events in arrival order.
func (s *Store) Events() []*models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Snapshot materializes a named drift snapshot from the buffered events.
//
// Numeric features: user_age and bid_amount from impressions, revenue from
// conversions. Categorical features: device_type, region, and platform from
// impressions. Features with no samples are omitted entirely so the drift
// detector does not evaluate empty slices.
func (s *Store) Snapshot(name string) *drift.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := drift.NewSnapshot(name)
	for _, ev := range s.events {
		switch ev.Type {
		case models.EventTypeImpression:
			snap.Numeric[FeatureUserAge] = append(snap.Numeric[FeatureUserAge], float64(ev.UserAge))
			snap.Numeric[FeatureBidAmount] = append(snap.Numeric[FeatureBidAmount], ev.BidAmount)
			snap.Categorical[FeatureDeviceType] = append(snap.Categorical[FeatureDeviceType], string(ev.DeviceType))
			snap.Categorical[FeatureRegion] = append(snap.Categorical[FeatureRegion], ev.Region)
			snap.Categorical[FeaturePlatform] = append(snap.Categorical[FeaturePlatform], ev.Platform)
		case models.EventTypeConversion:
			snap.Numeric[FeatureRevenue] = append(snap.Numeric[FeatureRevenue], ev.Revenue)
		}
	}
	return snap
}
