// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package config defines the Adwatch configuration model and its koanf-based
// layered loader. Every detection threshold the engine uses lives here as a
// named field so the statistical behavior is tunable without code changes.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Adwatch engine.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Window    WindowConfig    `koanf:"window"`
	Integrity IntegrityConfig `koanf:"integrity"`
	Detection DetectionConfig `koanf:"detection"`
	Drift     DriftConfig     `koanf:"drift"`
	Notify    NotifyConfig    `koanf:"notify"`
	Simulator SimulatorConfig `koanf:"simulator"`
}

// LoggingConfig controls the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the ops/operator HTTP API.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// PipelineConfig controls the in-process Watermill event bus.
type PipelineConfig struct {
	// Topic is the bus topic decoded events are published on.
	Topic string `koanf:"topic"`

	// BufferSize is the GoChannel output buffer per subscriber.
	BufferSize int64 `koanf:"buffer_size"`

	// RetryCount and RetryInterval configure the router retry middleware.
	RetryCount    int           `koanf:"retry_count"`
	RetryInterval time.Duration `koanf:"retry_interval"`

	// CloseTimeout bounds graceful router shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// WindowConfig controls the per-user event window store.
type WindowConfig struct {
	// Retention is the horizon beyond which window entries are dropped.
	// Must be at least Detection.ClickSpikeWindow.
	Retention time.Duration `koanf:"retention"`

	// MaxUsers bounds the number of tracked users (0 = unlimited).
	MaxUsers int `koanf:"max_users"`
}

// IntegrityConfig controls the per-event business-rule validator.
type IntegrityConfig struct {
	// MinTimestamp rejects events backdated before this horizon.
	// Zero disables the backdating check.
	MinTimestamp time.Time `koanf:"min_timestamp"`

	// SkewTolerance is how far into the future a timestamp may run
	// before it is flagged.
	SkewTolerance time.Duration `koanf:"skew_tolerance"`

	// HighRevenueCap flags (but accepts) conversions above this revenue.
	// Zero disables the advisory check.
	HighRevenueCap float64 `koanf:"high_revenue_cap"`
}

// DetectionConfig controls the statistical anomaly detectors.
type DetectionConfig struct {
	// ClickSpikeThreshold is the per-user click count within
	// ClickSpikeWindow above which a BotSuspicion alert fires.
	ClickSpikeThreshold int `koanf:"click_spike_threshold"`

	// ClickSpikeWindow is the trailing window for the click-spike rule.
	ClickSpikeWindow time.Duration `koanf:"click_spike_window"`

	// SigmaMultiplier is the outlier band width in standard deviations.
	SigmaMultiplier float64 `koanf:"sigma_multiplier"`

	// MinSamples is the population size below which the outlier rule is
	// inert. Prevents false positives from insufficient data.
	MinSamples int `koanf:"min_samples"`

	// PopulationSize is the trailing sample count the outlier population
	// retains (older samples roll off).
	PopulationSize int `koanf:"population_size"`
}

// DriftConfig controls the distribution-drift detector.
type DriftConfig struct {
	// MeanShiftThreshold flags a numeric feature when the standardized
	// difference in means exceeds it.
	MeanShiftThreshold float64 `koanf:"mean_shift_threshold"`

	// VarianceRatioLow/High bound the acceptable current/baseline
	// variance ratio for numeric features.
	VarianceRatioLow  float64 `koanf:"variance_ratio_low"`
	VarianceRatioHigh float64 `koanf:"variance_ratio_high"`

	// TVDThreshold flags a categorical feature when total variation
	// distance exceeds it.
	TVDThreshold float64 `koanf:"tvd_threshold"`

	// MinSamples is the per-feature sample floor on both snapshots;
	// features below it are skipped (insufficient data is not drift).
	MinSamples int `koanf:"min_samples"`
}

// NotifyConfig controls the optional alert webhook notifier.
type NotifyConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`

	// MinSeverity is the lowest severity forwarded (low, medium, high).
	MinSeverity string `koanf:"min_severity"`

	// Circuit breaker settings for the webhook endpoint.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// SimulatorConfig controls the built-in traffic generator.
type SimulatorConfig struct {
	Enabled bool `koanf:"enabled"`

	// EventsPerSecond paces generation via a token-bucket limiter.
	EventsPerSecond float64 `koanf:"events_per_second"`

	// Users is the size of the synthetic user pool.
	Users int `koanf:"users"`

	// Campaigns is the size of the synthetic campaign pool.
	Campaigns int `koanf:"campaigns"`

	// AnomalyRate is the fraction of events seeded with integrity
	// anomalies (invalid ages, negative revenue, bot bursts).
	AnomalyRate float64 `koanf:"anomaly_rate"`

	// Seed fixes the RNG for reproducible runs (0 = time-seeded).
	Seed int64 `koanf:"seed"`
}

// Validate checks configuration invariants. It returns the first violation
// found so startup fails loudly on a bad config rather than misdetecting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Window.Retention <= 0 {
		return fmt.Errorf("window.retention must be positive, got %s", c.Window.Retention)
	}
	if c.Detection.ClickSpikeWindow <= 0 {
		return fmt.Errorf("detection.click_spike_window must be positive, got %s", c.Detection.ClickSpikeWindow)
	}
	if c.Window.Retention < c.Detection.ClickSpikeWindow {
		return fmt.Errorf("window.retention (%s) must cover detection.click_spike_window (%s)",
			c.Window.Retention, c.Detection.ClickSpikeWindow)
	}
	if c.Detection.ClickSpikeThreshold <= 0 {
		return fmt.Errorf("detection.click_spike_threshold must be positive, got %d", c.Detection.ClickSpikeThreshold)
	}
	if c.Detection.SigmaMultiplier <= 0 {
		return fmt.Errorf("detection.sigma_multiplier must be positive, got %g", c.Detection.SigmaMultiplier)
	}
	if c.Detection.MinSamples <= 1 {
		return fmt.Errorf("detection.min_samples must be greater than 1, got %d", c.Detection.MinSamples)
	}
	if c.Detection.PopulationSize < c.Detection.MinSamples {
		return fmt.Errorf("detection.population_size (%d) must be at least detection.min_samples (%d)",
			c.Detection.PopulationSize, c.Detection.MinSamples)
	}
	if c.Drift.MeanShiftThreshold <= 0 {
		return fmt.Errorf("drift.mean_shift_threshold must be positive, got %g", c.Drift.MeanShiftThreshold)
	}
	if c.Drift.VarianceRatioLow <= 0 || c.Drift.VarianceRatioHigh <= c.Drift.VarianceRatioLow {
		return fmt.Errorf("drift variance ratio bounds invalid: [%g, %g]",
			c.Drift.VarianceRatioLow, c.Drift.VarianceRatioHigh)
	}
	if c.Drift.TVDThreshold <= 0 || c.Drift.TVDThreshold > 1 {
		return fmt.Errorf("drift.tvd_threshold must be in (0, 1], got %g", c.Drift.TVDThreshold)
	}
	if c.Drift.MinSamples <= 1 {
		return fmt.Errorf("drift.min_samples must be greater than 1, got %d", c.Drift.MinSamples)
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.enabled is true")
	}
	if c.Simulator.Enabled && c.Simulator.EventsPerSecond <= 0 {
		return fmt.Errorf("simulator.events_per_second must be positive, got %g", c.Simulator.EventsPerSecond)
	}
	return nil
}
