// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package pipeline wires the in-process event bus: producers publish decoded
// events onto a Watermill GoChannel topic, and a router handler feeds them
// to the integrity engine one at a time.
//
// The bus decouples event production (simulator, future ingestion layers)
// from detection. A malformed payload is logged and acked, never retried:
// retrying cannot fix a payload that does not decode.
package pipeline

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/metrics"
	"github.com/tomtom215/adwatch/internal/models"
)

// Metadata keys set on every published message.
const (
	MetadataEventID   = "event_id"
	MetadataEventType = "event_type"
)

// handlerName identifies the engine handler in router logs.
const handlerName = "integrity-engine"

// Ingestor consumes one decoded event. Satisfied by the detection engine.
type Ingestor interface {
	Ingest(ctx context.Context, ev *models.Event) error
}

// Bus is the in-process event pipeline: a GoChannel pub/sub plus a router
// that delivers every published event to the engine.
type Bus struct {
	cfg      config.PipelineConfig
	pubsub   *gochannel.GoChannel
	router   *message.Router
	ingestor Ingestor
}

// NewBus builds the bus and registers the engine handler. Run must be
// called before published events are delivered.
func NewBus(cfg config.PipelineConfig, ingestor Ingestor) (*Bus, error) {
	logger := NewLoggerAdapter()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.RetryCount,
			InitialInterval: cfg.RetryInterval,
			Logger:          logger,
		}.Middleware,
	)

	b := &Bus{
		cfg:      cfg,
		pubsub:   pubsub,
		router:   router,
		ingestor: ingestor,
	}

	router.AddNoPublisherHandler(
		handlerName,
		cfg.Topic,
		pubsub,
		b.handle,
	)

	return b, nil
}

// Publish marshals the event and puts it on the bus. Safe for concurrent use.
func (b *Bus) Publish(ev *models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", ev.EventID, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventID, ev.EventID)
	msg.Metadata.Set(MetadataEventType, string(ev.Type))
	middleware.SetCorrelationID(watermill.NewUUID(), msg)

	return b.pubsub.Publish(b.cfg.Topic, msg)
}

// handle decodes one message and runs it through the engine. Decode failures
// are acked after logging: the payload will not improve on retry. Engine
// errors propagate so the retry middleware can have a go.
func (b *Bus) handle(msg *message.Message) error {
	var ev models.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping undecodable event payload")
		metrics.PipelineMessages.WithLabelValues("decode_error").Inc()
		return nil
	}

	if err := b.ingestor.Ingest(msg.Context(), &ev); err != nil {
		metrics.PipelineMessages.WithLabelValues("error").Inc()
		return err
	}
	metrics.PipelineMessages.WithLabelValues("ok").Inc()
	return nil
}

// Run starts the router and blocks until the context is canceled or the
// router stops.
func (b *Bus) Run(ctx context.Context) error {
	logging.Info().
		Str("topic", b.cfg.Topic).
		Int64("buffer_size", b.cfg.BufferSize).
		Msg("Starting event pipeline")
	return b.router.Run(ctx)
}

// Running returns a channel closed once the router is running and handlers
// are ready to receive.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close shuts down the router and the pub/sub, in that order.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return fmt.Errorf("failed to close router: %w", err)
	}
	return b.pubsub.Close()
}
