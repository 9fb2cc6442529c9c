// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Command server runs the Adwatch engine: the event pipeline, the anomaly
// and drift detectors, and the operator API, all under one supervision tree.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/adwatch/internal/alerts"
	"github.com/tomtom215/adwatch/internal/api"
	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/dataset"
	"github.com/tomtom215/adwatch/internal/detection"
	"github.com/tomtom215/adwatch/internal/drift"
	"github.com/tomtom215/adwatch/internal/integrity"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/pipeline"
	"github.com/tomtom215/adwatch/internal/simulator"
	"github.com/tomtom215/adwatch/internal/supervisor"
	"github.com/tomtom215/adwatch/internal/supervisor/services"
	"github.com/tomtom215/adwatch/internal/window"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Adwatch exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting Adwatch")

	// Core state: referential index, per-user windows, alert sink, dataset.
	index := integrity.NewIndex()
	windows := window.NewStore(cfg.Window.Retention, cfg.Window.MaxUsers)
	sink := alerts.NewSink()
	data := dataset.NewStore(0)

	var notifier alerts.Notifier = alerts.NopNotifier{}
	if cfg.Notify.Enabled {
		notifier = alerts.NewWebhookNotifier(cfg.Notify)
	}

	validator := integrity.NewValidator(index, cfg.Integrity)
	engine := detection.NewEngine(validator, index, windows, sink, notifier, data,
		detection.NewClickSpikeDetector(detection.ClickSpikeConfig{
			Threshold: cfg.Detection.ClickSpikeThreshold,
			Window:    cfg.Detection.ClickSpikeWindow,
		}, windows),
		detection.NewOutlierDetector(detection.OutlierConfig{
			SigmaMultiplier: cfg.Detection.SigmaMultiplier,
			MinSamples:      cfg.Detection.MinSamples,
			PopulationSize:  cfg.Detection.PopulationSize,
			Window:          cfg.Detection.ClickSpikeWindow,
		}, windows),
	)

	driftDetector := drift.NewDetector(cfg.Drift, sink)

	bus, err := pipeline.NewBus(cfg.Pipeline, engine)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Config:  cfg.Server,
		Sink:    sink,
		Engine:  engine,
		Drift:   driftDetector,
		Dataset: data,
		Windows: windows,
	})

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewPipelineService(bus))
	tree.AddPipelineService(services.NewJanitorService(windows, 0))
	tree.AddAPIService(services.NewHTTPService(server))
	if cfg.Simulator.Enabled {
		tree.AddPipelineService(services.NewSimulatorService(simulator.New(cfg.Simulator, bus)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if closeErr := bus.Close(); closeErr != nil {
		logging.Warn().Err(closeErr).Msg("Event pipeline close failed")
	}
	logging.Info().Msg("Adwatch stopped")
	return err
}
