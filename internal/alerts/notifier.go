// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package alerts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/metrics"
	"github.com/tomtom215/adwatch/internal/models"
)

// Notifier forwards alerts to an external destination. Implementations must
// be safe for concurrent use and must never block event processing on a slow
// destination beyond their configured timeout.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *models.Alert) error
}

// severityRank orders severities for the minimum-severity gate.
var severityRank = map[models.Severity]int{
	models.SeverityLow:    0,
	models.SeverityMedium: 1,
	models.SeverityHigh:   2,
}

// WebhookNotifier POSTs alerts as JSON to a configured endpoint, wrapped in
// a circuit breaker so a failing endpoint cannot back up the pipeline.
type WebhookNotifier struct {
	cfg     config.NotifyConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	minRank int
}

// NewWebhookNotifier creates a webhook notifier from config. The breaker
// opens after the configured number of consecutive failures and probes again
// after the open timeout.
func NewWebhookNotifier(cfg config.NotifyConfig) *WebhookNotifier {
	settings := gobreaker.Settings{
		Name:    "alert-webhook",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Alert webhook circuit breaker state changed")
		},
	}

	return &WebhookNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		minRank: severityRank[models.Severity(cfg.MinSeverity)],
	}
}

// Name identifies the notifier in logs.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Enabled reports whether the notifier is configured to send.
func (n *WebhookNotifier) Enabled() bool { return n.cfg.Enabled && n.cfg.WebhookURL != "" }

// Send posts the alert if it meets the minimum severity. Alerts below the
// gate are silently skipped, not errors.
func (n *WebhookNotifier) Send(ctx context.Context, alert *models.Alert) error {
	if !n.Enabled() {
		return nil
	}
	if severityRank[alert.Severity] < n.minRank {
		return nil
	}

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, alert)
	})
	if err != nil {
		metrics.NotifierDeliveries.WithLabelValues(n.Name(), "error").Inc()
		logging.Warn().
			Err(err).
			Str("alert_id", alert.AlertID).
			Str("kind", string(alert.Kind)).
			Msg("Failed to deliver alert webhook")
		return err
	}
	metrics.NotifierDeliveries.WithLabelValues(n.Name(), "ok").Inc()
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier discards all alerts. Used when notification is disabled.
type NopNotifier struct{}

func (NopNotifier) Name() string                                  { return "nop" }
func (NopNotifier) Enabled() bool                                 { return false }
func (NopNotifier) Send(_ context.Context, _ *models.Alert) error { return nil }

// notifierTimeout bounds a single send when the caller's context has no
// deadline of its own.
const notifierTimeout = 15 * time.Second

// Dispatch sends each alert through the notifier, bounding each send. Errors
// are logged by the notifier; dispatch never fails the caller.
func Dispatch(ctx context.Context, n Notifier, alerts []*models.Alert) {
	if n == nil || !n.Enabled() {
		return
	}
	for _, a := range alerts {
		sendCtx, cancel := context.WithTimeout(ctx, notifierTimeout)
		_ = n.Send(sendCtx, a)
		cancel()
	}
}
