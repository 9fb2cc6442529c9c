// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package integrity

import (
	"sync"

	"github.com/tomtom215/adwatch/internal/models"
)

// Index tracks accepted impressions and clicks so later events can be checked
// for referential integrity. Only accepted events are recorded: a rejected
// impression must not legitimize the clicks that reference it.
type Index struct {
	mu sync.RWMutex

	// impression ID -> owning user ID, so click ownership can be verified
	impressions map[string]string

	// accepted click IDs
	clicks map[string]struct{}
}

// NewIndex creates an empty referential index.
func NewIndex() *Index {
	return &Index{
		impressions: make(map[string]string),
		clicks:      make(map[string]struct{}),
	}
}

// Record registers an accepted event. Conversions carry no referents of
// their own and are ignored.
func (ix *Index) Record(ev *models.Event) {
	switch ev.Type {
	case models.EventTypeImpression:
		ix.mu.Lock()
		ix.impressions[ev.EventID] = ev.UserID
		ix.mu.Unlock()
	case models.EventTypeClick:
		ix.mu.Lock()
		ix.clicks[ev.EventID] = struct{}{}
		ix.mu.Unlock()
	}
}

// Impression returns the user ID owning the accepted impression, if known.
func (ix *Index) Impression(impressionID string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	userID, ok := ix.impressions[impressionID]
	return userID, ok
}

// Click reports whether the click ID belongs to an accepted click.
func (ix *Index) Click(clickID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.clicks[clickID]
	return ok
}

// Len returns the number of indexed impressions and clicks.
func (ix *Index) Len() (impressions, clicks int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.impressions), len(ix.clicks)
}
