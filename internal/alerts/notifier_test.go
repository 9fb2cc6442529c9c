// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package alerts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/models"
)

func notifyConfig(url string) config.NotifyConfig {
	return config.NotifyConfig{
		Enabled:            true,
		WebhookURL:         url,
		Timeout:            2 * time.Second,
		MinSeverity:        "high",
		BreakerMaxFailures: 3,
		BreakerOpenTimeout: time.Second,
	}
}

func TestWebhookNotifierSends(t *testing.T) {
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(notifyConfig(srv.URL))

	err := n.Send(context.Background(), models.NewAlert(models.AlertBotSuspicion, models.SeverityHigh, "user-1", "burst"))
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if received.Load() != 1 {
		t.Errorf("expected 1 delivery, got %d", received.Load())
	}
}

func TestWebhookNotifierSeverityGate(t *testing.T) {
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(notifyConfig(srv.URL))

	// Below the minimum severity: skipped, not an error.
	err := n.Send(context.Background(), models.NewAlert(models.AlertRuleViolation, models.SeverityMedium, "ev-1", "d"))
	if err != nil {
		t.Fatalf("gated send must not error: %v", err)
	}
	if received.Load() != 0 {
		t.Errorf("expected no delivery below minimum severity, got %d", received.Load())
	}
}

func TestWebhookNotifierBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := notifyConfig(srv.URL)
	n := NewWebhookNotifier(cfg)

	alert := models.NewAlert(models.AlertDriftDetected, models.SeverityHigh, "device_type", "d")
	for i := 0; i < int(cfg.BreakerMaxFailures); i++ {
		if err := n.Send(context.Background(), alert); err == nil {
			t.Fatal("expected error from failing endpoint")
		}
	}

	// The breaker is open now; sends fail fast without hitting the endpoint.
	if err := n.Send(context.Background(), alert); err == nil {
		t.Error("expected open-breaker error")
	}
}

func TestNopNotifier(t *testing.T) {
	n := NopNotifier{}
	if n.Enabled() {
		t.Error("nop notifier must report disabled")
	}
	if err := n.Send(context.Background(), nil); err != nil {
		t.Errorf("nop send must not error: %v", err)
	}
}
