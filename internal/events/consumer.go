// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/newsroom/internal/metrics"
	"github.com/tomtom215/newsroom/internal/recommend"
)

// Invalidator drops derived state for a subject.
type Invalidator interface {
	InvalidateSubject(subjectID string)
}

// Consumer routes recorded events to an Invalidator. With the NATS backend
// this keeps caches of every instance consistent with writes made elsewhere.
type Consumer struct {
	router *message.Router
	target Invalidator
	logger watermill.LoggerAdapter
}

// NewConsumer builds the router and registers one handler per topic.
//
// Middleware order (outer to inner): Poison Queue, Recoverer, Retry.
func NewConsumer(cfg *RouterConfig, bus *Bus, target Invalidator, logger watermill.LoggerAdapter) (*Consumer, error) {
	if logger == nil {
		logger = NewLogger()
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	if cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(bus.Publisher(), cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		router.AddMiddleware(poison)
	}
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	c := &Consumer{router: router, target: target, logger: logger}
	router.AddConsumerHandler("interaction-invalidator", TopicInteractionRecorded, bus.Subscriber(), c.handleInteraction)
	router.AddConsumerHandler("feedback-invalidator", TopicFeedbackRecorded, bus.Subscriber(), c.handleFeedback)
	return c, nil
}

func (c *Consumer) handleInteraction(msg *message.Message) error {
	var ev recommend.InteractionEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		metrics.RecordEventConsume(TopicInteractionRecorded, err)
		// Malformed payloads never succeed on retry.
		c.logger.Error("Dropping malformed interaction event", err, watermill.LogFields{"uuid": msg.UUID})
		return nil
	}
	c.target.InvalidateSubject(ev.SubjectID)
	metrics.RecordEventConsume(TopicInteractionRecorded, nil)
	return nil
}

func (c *Consumer) handleFeedback(msg *message.Message) error {
	var fb recommend.Feedback
	if err := json.Unmarshal(msg.Payload, &fb); err != nil {
		metrics.RecordEventConsume(TopicFeedbackRecorded, err)
		c.logger.Error("Dropping malformed feedback event", err, watermill.LogFields{"uuid": msg.UUID})
		return nil
	}
	c.target.InvalidateSubject(fb.SubjectID)
	metrics.RecordEventConsume(TopicFeedbackRecorded, nil)
	return nil
}

// Serve runs the router until ctx is canceled. It satisfies suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	if err := c.router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// Running is closed once every handler is subscribed.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// String names the service for supervisor logs.
func (c *Consumer) String() string {
	return "event-consumer"
}
