// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package events announces recorded interactions and feedback on a message
// bus and consumes them to keep derived recommendation state fresh.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/metrics"
	"github.com/tomtom215/newsroom/internal/recommend"
)

// Metadata keys set on every message.
const (
	MetadataEventType = "event_type"
	MetadataSubjectID = "subject_id"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// Bus publishes domain events and hands out a subscriber for consumers.
// It implements recommend.EventPublisher.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[any]
	logger     watermill.LoggerAdapter
	backend    string

	mu     sync.RWMutex
	closed bool
}

// NewLogger adapts the global zerolog logger for watermill.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewComponentSlogLogger("events"))
}

// NewBus creates the transport selected by cfg.Backend.
func NewBus(cfg *Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid events config: %w", err)
	}
	if logger == nil {
		logger = NewLogger()
	}

	b := &Bus{
		logger:  logger,
		backend: cfg.Backend,
		breaker: newPublishBreaker(logger),
	}

	switch cfg.Backend {
	case BackendNATS:
		pub, err := newNATSPublisher(&cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		sub, err := newNATSSubscriber(&cfg.NATS, logger)
		if err != nil {
			_ = pub.Close()
			return nil, err
		}
		b.publisher, b.subscriber = pub, sub
	default:
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger)
		b.publisher, b.subscriber = ch, ch
	}

	logger.Info("Event bus ready", watermill.LogFields{"backend": cfg.Backend})
	return b, nil
}

// newPublishBreaker stops publish attempts while the broker is unreachable so
// request paths are not slowed down by failing publishes.
func newPublishBreaker(logger watermill.LoggerAdapter) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "event-bus",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("[CIRCUIT BREAKER] State changed", watermill.LogFields{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
}

func newNATSPublisher(cfg *NATSConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: false,
			TrackMsgId:    cfg.JetStream,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

func newNATSSubscriber(cfg *NATSConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	var subOpts []natsgo.SubOpt
	if cfg.JetStream {
		subOpts = append(subOpts,
			natsgo.AckWait(cfg.AckWaitTimeout),
			natsgo.DeliverNew(),
			natsgo.BindStream(cfg.StreamName),
		)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         !cfg.JetStream,
			AutoProvision:    false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

func natsOptions(cfg *NATSConfig, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("newsroom"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

// Subscriber returns the subscriber side of the bus.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// Publisher returns the raw publisher, used for the poison queue.
func (b *Bus) Publisher() message.Publisher {
	return b.publisher
}

// PublishInteraction implements recommend.EventPublisher.
//
//nolint:gocritic // hugeParam: ev passed by value to satisfy the interface
func (b *Bus) PublishInteraction(ctx context.Context, ev recommend.InteractionEvent) error {
	return b.publish(ctx, TopicInteractionRecorded, string(ev.Type), ev.SubjectID, &ev)
}

// PublishFeedback implements recommend.EventPublisher.
//
//nolint:gocritic // hugeParam: fb passed by value to satisfy the interface
func (b *Bus) PublishFeedback(ctx context.Context, fb recommend.Feedback) error {
	return b.publish(ctx, TopicFeedbackRecorded, string(fb.Type), fb.SubjectID, &fb)
}

func (b *Bus) publish(ctx context.Context, topic, eventType, subjectID string, payload any) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set(MetadataEventType, eventType)
	msg.Metadata.Set(MetadataSubjectID, subjectID)
	if b.backend == BackendNATS {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(topic, msg)
	})
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// The memory backend uses one value for both sides.
	if b.backend == BackendNATS {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ recommend.EventPublisher = (*Bus)(nil)
