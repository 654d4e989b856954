// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package eventbus republishes realtime events onto a message bus so other
// local processes (notifiers, exporters) can consume them.
//
// Two backends are available: an in-process Go channel bus and core NATS.
// Topics are derived from event names by replacing ':' with '.', so
// "planner:task:created" is published to "<prefix>.planner.task.created"
// and NATS consumers can use wildcards such as "tempo.planner.>".
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/metrics"
)

// MetadataEvent holds the original event name on every published message.
const MetadataEvent = "event"

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "tempo"

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("eventbus: closed")

// Config configures a NATS-backed Bus.
type Config struct {
	URL           string
	TopicPrefix   string
	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// Bus publishes events to watermill topics.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool
	prefix     string

	mu     sync.RWMutex
	closed bool
}

func newWatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger("eventbus"))
}

// NewLocal returns an in-process bus. Messages published before a
// subscriber exists are dropped.
func NewLocal(prefix string) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, newWatermillLogger())
	b := newBus(ch, ch, prefix)
	b.shared = true
	return b
}

// NewNATS connects to a NATS server. JetStream is not used: events are
// fire-and-forget notifications and the backend remains the source of truth.
func NewNATS(cfg Config) (*Bus, error) {
	if cfg.URL == "" {
		return nil, errors.New("eventbus: NATS URL is required")
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}

	logger := newWatermillLogger()
	natsOpts := []natsgo.Option{
		natsgo.Name("tempo"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return newBus(pub, sub, cfg.TopicPrefix), nil
}

func newBus(pub message.Publisher, sub message.Subscriber, prefix string) *Bus {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Bus{
		publisher:  pub,
		subscriber: sub,
		prefix:     strings.TrimSuffix(prefix, "."),
	}
}

// Topic returns the topic an event is published to.
func (b *Bus) Topic(event string) string {
	return b.prefix + "." + strings.ReplaceAll(event, ":", ".")
}

// Publish sends payload as a message on the event's topic. The message UUID
// doubles as the NATS message id.
func (b *Bus) Publish(ctx context.Context, event string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		metrics.BusPublished.WithLabelValues("closed").Inc()
		return ErrClosed
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetadataEvent, event)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.Topic(event), msg); err != nil {
		metrics.BusPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("eventbus: publish %s: %w", event, err)
	}
	metrics.BusPublished.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe returns messages published for event. The channel closes when
// ctx is cancelled or the bus is closed. Callers must Ack each message.
func (b *Bus) Subscribe(ctx context.Context, event string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.subscriber.Subscribe(ctx, b.Topic(event))
}

// Close shuts down the publisher and subscriber. It is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if !b.shared {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
