// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package window

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/adwatch/internal/models"
)

func TestStoreCountSince(t *testing.T) {
	s := NewStore(5*time.Minute, 0)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Observe("user-1", Record{
			Timestamp: base.Add(time.Duration(i) * 10 * time.Second),
			Type:      models.EventTypeClick,
		})
	}
	s.Observe("user-1", Record{Timestamp: base.Add(20 * time.Second), Type: models.EventTypeImpression})

	got := s.CountSince("user-1", models.EventTypeClick, base)
	if got != 5 {
		t.Errorf("expected 5 clicks, got %d", got)
	}

	// Cutoff is inclusive: a record exactly at the window start counts.
	got = s.CountSince("user-1", models.EventTypeClick, base.Add(20*time.Second))
	if got != 3 {
		t.Errorf("expected 3 clicks at inclusive cutoff, got %d", got)
	}

	if got := s.CountSince("user-1", models.EventTypeImpression, base); got != 1 {
		t.Errorf("expected 1 impression, got %d", got)
	}

	if got := s.CountSince("unknown", models.EventTypeClick, base); got != 0 {
		t.Errorf("expected 0 for unknown user, got %d", got)
	}
}

func TestStorePruneByEventTime(t *testing.T) {
	s := NewStore(time.Minute, 0)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s.Observe("user-1", Record{Timestamp: base, Type: models.EventTypeClick})
	s.Observe("user-1", Record{Timestamp: base.Add(30 * time.Second), Type: models.EventTypeClick})

	// Advancing event time past the horizon drops the old records.
	s.Observe("user-1", Record{Timestamp: base.Add(2 * time.Minute), Type: models.EventTypeClick})

	records := s.Records("user-1")
	if len(records) != 1 {
		t.Fatalf("expected 1 record after prune, got %d", len(records))
	}
	if !records[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("wrong record survived prune: %v", records[0].Timestamp)
	}
}

func TestStoreOutOfOrderWithinHorizon(t *testing.T) {
	s := NewStore(time.Minute, 0)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s.Observe("user-1", Record{Timestamp: base.Add(30 * time.Second), Type: models.EventTypeClick})
	// Late arrival still inside the horizon relative to the newest record.
	s.Observe("user-1", Record{Timestamp: base, Type: models.EventTypeClick})

	if got := s.CountSince("user-1", models.EventTypeClick, base); got != 2 {
		t.Errorf("expected late record to be retained, got count %d", got)
	}

	// Late arrival outside the horizon is dropped on the next prune.
	s.Observe("user-1", Record{Timestamp: base.Add(-2 * time.Minute), Type: models.EventTypeClick})
	s.Observe("user-1", Record{Timestamp: base.Add(40 * time.Second), Type: models.EventTypeClick})

	if got := s.CountSince("user-1", models.EventTypeClick, base.Add(-5*time.Minute)); got != 3 {
		t.Errorf("expected stale late record to be dropped, got count %d", got)
	}
}

func TestStoreMaxUsersEviction(t *testing.T) {
	s := NewStore(time.Minute, 3)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		s.Observe(fmt.Sprintf("user-%d", i), Record{Timestamp: now, Type: models.EventTypeClick})
	}

	if got := s.Users(); got > 3 {
		t.Errorf("expected at most 3 tracked users, got %d", got)
	}
}

func TestStoreCleanupExpired(t *testing.T) {
	s := NewStore(time.Minute, 0)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s.Observe("stale", Record{Timestamp: base, Type: models.EventTypeClick})
	s.Observe("fresh", Record{Timestamp: base.Add(5 * time.Minute), Type: models.EventTypeClick})

	removed := s.CleanupExpired(base.Add(5 * time.Minute))
	if removed != 1 {
		t.Errorf("expected 1 user removed, got %d", removed)
	}
	if got := s.Users(); got != 1 {
		t.Errorf("expected 1 user remaining, got %d", got)
	}
	if got := s.CountSince("stale", models.EventTypeClick, base.Add(-time.Hour)); got != 0 {
		t.Errorf("expected stale user history gone, got %d", got)
	}
}

func TestStoreObserveRetriesRemovedEntry(t *testing.T) {
	s := NewStore(time.Minute, 0)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s.Observe("user-1", Record{Timestamp: base, Type: models.EventTypeClick})

	// Hold a reference the way a writer between lookup and lock would,
	// then let the janitor remove the user.
	s.mu.RLock()
	stale := s.entries["user-1"]
	s.mu.RUnlock()

	if removed := s.CleanupExpired(base.Add(5 * time.Minute)); removed != 1 {
		t.Fatalf("expected janitor to remove the idle user, got %d", removed)
	}

	// The orphaned entry must refuse the write so the caller retries.
	rec := Record{Timestamp: base.Add(5 * time.Minute), Type: models.EventTypeClick}
	if stale.observe(rec, time.Minute) {
		t.Fatal("a removed entry must reject writes")
	}

	// The public path lands the observation in a fresh entry.
	s.Observe("user-1", rec)
	if got := s.CountSince("user-1", models.EventTypeClick, base); got != 1 {
		t.Errorf("expected the retried observation to be visible, got %d", got)
	}
}

func TestStoreConcurrentObserve(t *testing.T) {
	s := NewStore(5*time.Minute, 0)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", g%2)
			for i := 0; i < 100; i++ {
				s.Observe(userID, Record{Timestamp: now.Add(time.Duration(i) * time.Millisecond), Type: models.EventTypeClick})
				s.CountSince(userID, models.EventTypeClick, now.Add(-time.Minute))
			}
		}(g)
	}
	wg.Wait()

	total := s.CountSince("user-0", models.EventTypeClick, now.Add(-time.Minute)) +
		s.CountSince("user-1", models.EventTypeClick, now.Add(-time.Minute))
	if total != 800 {
		t.Errorf("expected 800 records total, got %d", total)
	}
}
