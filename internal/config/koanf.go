// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched in order of
// priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/adwatch/config.yaml",
	"/etc/adwatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all documented default values. Thresholds
// match the behavior described in the detector docs: 10 clicks per 60 s
// window, 3-sigma outlier band over the last 100 samples with a 30-sample
// floor, 0.1 drift thresholds with a 30-sample per-feature floor.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Pipeline: PipelineConfig{
			Topic:         "adevents.ingest",
			BufferSize:    1024,
			RetryCount:    3,
			RetryInterval: 100 * time.Millisecond,
			CloseTimeout:  30 * time.Second,
		},
		Window: WindowConfig{
			Retention: 5 * time.Minute,
			MaxUsers:  100_000,
		},
		Integrity: IntegrityConfig{
			MinTimestamp:   time.Time{}, // backdating check disabled by default
			SkewTolerance:  5 * time.Minute,
			HighRevenueCap: 10_000,
		},
		Detection: DetectionConfig{
			ClickSpikeThreshold: 10,
			ClickSpikeWindow:    60 * time.Second,
			SigmaMultiplier:     3.0,
			MinSamples:          30,
			PopulationSize:      100,
		},
		Drift: DriftConfig{
			MeanShiftThreshold: 0.1,
			VarianceRatioLow:   0.5,
			VarianceRatioHigh:  2.0,
			TVDThreshold:       0.1,
			MinSamples:         30,
		},
		Notify: NotifyConfig{
			Enabled:            false,
			WebhookURL:         "",
			Timeout:            10 * time.Second,
			MinSeverity:        "high",
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Simulator: SimulatorConfig{
			Enabled:         false,
			EventsPerSecond: 50,
			Users:           200,
			Campaigns:       10,
			AnomalyRate:     0.05,
			Seed:            0,
		},
	}
}

// Load loads configuration using koanf v2 with layered sources:
//  1. Defaults: built-in values from Default()
//  2. Config file: optional YAML (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: highest priority
//
// The merged result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so unrelated environment does not pollute
// the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Ops server
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		// Pipeline
		"pipeline_topic":          "pipeline.topic",
		"pipeline_buffer_size":    "pipeline.buffer_size",
		"pipeline_retry_count":    "pipeline.retry_count",
		"pipeline_retry_interval": "pipeline.retry_interval",
		"pipeline_close_timeout":  "pipeline.close_timeout",

		// Window store
		"window_retention": "window.retention",
		"window_max_users": "window.max_users",

		// Integrity validator
		"integrity_skew_tolerance":   "integrity.skew_tolerance",
		"integrity_high_revenue_cap": "integrity.high_revenue_cap",

		// Anomaly detection
		"detection_click_spike_threshold": "detection.click_spike_threshold",
		"detection_click_spike_window":    "detection.click_spike_window",
		"detection_sigma_multiplier":      "detection.sigma_multiplier",
		"detection_min_samples":           "detection.min_samples",
		"detection_population_size":       "detection.population_size",

		// Drift detection
		"drift_mean_shift_threshold": "drift.mean_shift_threshold",
		"drift_variance_ratio_low":   "drift.variance_ratio_low",
		"drift_variance_ratio_high":  "drift.variance_ratio_high",
		"drift_tvd_threshold":        "drift.tvd_threshold",
		"drift_min_samples":          "drift.min_samples",

		// Webhook notifier
		"notify_enabled":              "notify.enabled",
		"notify_webhook_url":          "notify.webhook_url",
		"notify_timeout":              "notify.timeout",
		"notify_min_severity":         "notify.min_severity",
		"notify_breaker_max_failures": "notify.breaker_max_failures",
		"notify_breaker_open_timeout": "notify.breaker_open_timeout",

		// Simulator
		"simulator_enabled":           "simulator.enabled",
		"simulator_events_per_second": "simulator.events_per_second",
		"simulator_users":             "simulator.users",
		"simulator_campaigns":         "simulator.campaigns",
		"simulator_anomaly_rate":      "simulator.anomaly_rate",
		"simulator_seed":              "simulator.seed",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when swapping configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
