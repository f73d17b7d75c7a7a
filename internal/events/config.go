// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package events

import (
	"errors"
	"fmt"
	"time"
)

// Topics carrying domain events.
const (
	TopicInteractionRecorded = "interaction.recorded"
	TopicFeedbackRecorded    = "feedback.recorded"
)

// Backends
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config selects the message transport and tunes the consumer router.
type Config struct {
	// Enabled turns event publishing and consumption on.
	Enabled bool `koanf:"enabled"`

	// Backend is "memory" (in-process Go channels) or "nats".
	Backend string `koanf:"backend"`

	// BufferSize is the output channel buffer of the memory backend.
	BufferSize int64 `koanf:"buffer_size"`

	NATS   NATSConfig   `koanf:"nats"`
	Router RouterConfig `koanf:"router"`
}

// NATSConfig configures the NATS backend.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	// QueueGroup load-balances consumption across instances. Leave empty so
	// every instance sees every event and invalidates its own caches.
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`

	// JetStream enables durable delivery through StreamName, which must
	// already exist and cover both topics.
	JetStream   bool   `koanf:"jetstream"`
	StreamName  string `koanf:"stream_name"`
	DurableName string `koanf:"durable_name"`
}

// RouterConfig holds configuration for the consumer router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// PoisonQueueTopic receives messages that fail after all retries. Empty
	// disables the poison queue.
	PoisonQueueTopic string `koanf:"poison_queue_topic"`
}

// DefaultConfig returns defaults for a single-instance deployment.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		Backend:    BackendMemory,
		BufferSize: 256,
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			CloseTimeout:     30 * time.Second,
			DurableName:      "newsroom",
		},
		Router: RouterConfig{
			CloseTimeout:         30 * time.Second,
			RetryMaxRetries:      3,
			RetryInitialInterval: 100 * time.Millisecond,
			RetryMaxInterval:     5 * time.Second,
			RetryMultiplier:      2.0,
			PoisonQueueTopic:     "dlq.newsroom",
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case BackendMemory:
		if c.BufferSize < 0 {
			return fmt.Errorf("events.buffer_size must not be negative, got %d", c.BufferSize)
		}
	case BackendNATS:
		if c.NATS.URL == "" {
			return errors.New("events.nats.url is required for the nats backend")
		}
		if c.NATS.JetStream && c.NATS.StreamName == "" {
			return errors.New("events.nats.stream_name is required when jetstream is enabled")
		}
	default:
		return fmt.Errorf("events.backend must be %q or %q, got %q", BackendMemory, BackendNATS, c.Backend)
	}
	if c.Router.RetryMaxRetries < 0 {
		return fmt.Errorf("events.router.retry_max_retries must not be negative, got %d", c.Router.RetryMaxRetries)
	}
	if c.Router.RetryMultiplier < 1 {
		return fmt.Errorf("events.router.retry_multiplier must be at least 1, got %f", c.Router.RetryMultiplier)
	}
	return nil
}
