// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package window maintains bounded, time-ordered per-user event history for
// the rate-based detectors.
//
// The store keeps exact (timestamp, event type) records rather than bucketed
// counters because the click-spike rule needs exact counts at the window
// edge. Entries are pruned on every observation, so memory is bounded by the
// retention horizon regardless of event volume.
//
// Concurrency: a single writer per user is enforced with a per-entry mutex;
// events for different users proceed in parallel, taking only a read lock on
// the user map.
package window

import (
	"sync"
	"time"

	"github.com/tomtom215/adwatch/internal/models"
)

// Record is one observed event in a user's window.
type Record struct {
	Timestamp time.Time
	Type      models.EventType
}

// entry holds one user's time-bounded history. dead marks an entry the
// janitor has removed from the map; a writer that still holds a reference
// to it must retry through the map instead of appending into the orphan.
type entry struct {
	mu      sync.Mutex
	records []Record
	latest  time.Time
	dead    bool
}

// Store maintains per-user event windows with a fixed retention horizon.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	retention time.Duration
	maxUsers  int
}

// NewStore creates a window store. Records older than retention (relative to
// the newest record for that user) are dropped. maxUsers bounds the number
// of tracked users; 0 means unlimited.
func NewStore(retention time.Duration, maxUsers int) *Store {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &Store{
		entries:   make(map[string]*entry),
		retention: retention,
		maxUsers:  maxUsers,
	}
}

// Observe appends a record to the user's window and prunes stale records.
// Entries are created lazily on the first event per user.
//
// Out-of-order arrivals are appended as-is; the prune policy is re-applied
// on every observation, so a late record either lands inside the horizon or
// is dropped on the next prune. Counting scans all retained records, so
// ordering within the window does not affect correctness.
func (s *Store) Observe(userID string, rec Record) {
	for {
		if s.getOrCreate(userID).observe(rec, s.retention) {
			return
		}
		// The janitor removed the entry between lookup and lock;
		// retry against a fresh one so the observation is not lost.
	}
}

// observe appends under the entry lock. Returns false when the entry was
// concurrently removed from the map.
func (e *entry) observe(rec Record, retention time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return false
	}
	e.records = append(e.records, rec)
	if rec.Timestamp.After(e.latest) {
		e.latest = rec.Timestamp
	}
	e.prune(retention)
	return true
}

// CountSince returns the number of records of the given type for the user
// with a timestamp at or after cutoff. The scan is bounded by the retention
// horizon.
func (s *Store) CountSince(userID string, eventType models.EventType, cutoff time.Time) int {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, rec := range e.records {
		if rec.Type == eventType && !rec.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}

// Records returns a copy of the user's retained records, pruned first.
func (s *Store) Records(userID string) []Record {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.prune(s.retention)
	out := make([]Record, len(e.records))
	copy(out, e.records)
	return out
}

// Users returns the number of tracked users.
func (s *Store) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CleanupExpired drops users whose entire history has aged out of the
// horizon relative to now. Returns the number of users removed. Intended to
// be called periodically; Observe alone never removes a user's map entry.
func (s *Store) CleanupExpired(now time.Time) int {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, e := range s.entries {
		e.mu.Lock()
		stale := e.latest.Before(cutoff)
		if stale {
			e.dead = true
		}
		e.mu.Unlock()
		if stale {
			delete(s.entries, userID)
			removed++
		}
	}
	return removed
}

// getOrCreate returns the user's entry, creating it lazily.
func (s *Store) getOrCreate(userID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[userID]; ok {
		return e
	}
	if s.maxUsers > 0 && len(s.entries) >= s.maxUsers {
		s.evictOne()
	}
	e = &entry{}
	s.entries[userID] = e
	return e
}

// evictOne removes an arbitrary entry when at capacity.
// Must be called with the write lock held.
func (s *Store) evictOne() {
	for userID, e := range s.entries {
		e.mu.Lock()
		e.dead = true
		e.mu.Unlock()
		delete(s.entries, userID)
		return
	}
}

// prune drops records older than retention relative to the user's newest
// record. Must be called with the entry lock held. Cost is O(records in
// horizon) because records outside the horizon are discarded as they age,
// never accumulated.
func (e *entry) prune(retention time.Duration) {
	if len(e.records) == 0 {
		return
	}
	cutoff := e.latest.Add(-retention)

	kept := e.records[:0]
	for _, rec := range e.records {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	// Zero the tail so dropped records are collectable.
	for i := len(kept); i < len(e.records); i++ {
		e.records[i] = Record{}
	}
	e.records = kept
}
