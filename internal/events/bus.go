// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/metrics"
	"github.com/tomtom215/drivelog/internal/models"
)

// Bus is an in-process pub/sub with a handler router.
//
// The gochannel pub/sub is not persistent: messages published before the
// router is running are dropped, so the router must be started first.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewBus creates the bus and its router with recovery and retry middleware.
func NewBus(cfg config.EventsConfig) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	return &Bus{pubsub: pubsub, router: router, logger: logger}, nil
}

// AddConsumer registers a handler for topic. It must be called before Run.
func (b *Bus) AddConsumer(name, topic string, handler message.NoPublishHandlerFunc) {
	b.router.AddConsumerHandler(name, topic, b.pubsub, handler)
}

// Publisher returns a publisher writing to the bus.
func (b *Bus) Publisher() *Publisher {
	return &Publisher{pub: b.pubsub}
}

// Run starts the router and blocks until ctx is canceled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once all handlers are subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return fmt.Errorf("close event router: %w", err)
	}
	return b.pubsub.Close()
}

// Publisher publishes domain events. A nil *Publisher is a no-op.
type Publisher struct {
	pub message.Publisher
}

// PublishTripSynced publishes one event per created entry. Failures are
// logged and counted; they never fail the sync run.
func (p *Publisher) PublishTripSynced(ctx context.Context, entries []*models.JournalEntry) {
	if p == nil || len(entries) == 0 {
		return
	}

	correlationID := logging.CorrelationIDFromContext(ctx)
	for _, entry := range entries {
		evt := NewTripSynced(entry)
		payload, err := evt.Marshal()
		if err != nil {
			metrics.RecordEventPublished(TopicTripSynced, err)
			logging.Ctx(ctx).Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to encode trip event")
			continue
		}

		msg := message.NewMessage(evt.EventID, payload)
		if correlationID != "" {
			middleware.SetCorrelationID(correlationID, msg)
		}

		err = p.pub.Publish(TopicTripSynced, msg)
		metrics.RecordEventPublished(TopicTripSynced, err)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("entry_id", entry.ID).Msg("Failed to publish trip event")
		}
	}
}
