// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/newsroom/internal/recommend"
)

type recordingInvalidator struct {
	subjects chan string
}

func (r *recordingInvalidator) InvalidateSubject(subjectID string) {
	r.subjects <- subjectID
}

func startConsumer(t *testing.T) (*Bus, *recordingInvalidator) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Router.PoisonQueueTopic = ""
	bus, err := NewBus(cfg, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	target := &recordingInvalidator{subjects: make(chan string, 16)}
	consumer, err := NewConsumer(&cfg.Router, bus, target, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = bus.Close()
	})

	select {
	case <-consumer.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return bus, target
}

func expectSubject(t *testing.T, target *recordingInvalidator, want string) {
	t.Helper()
	select {
	case got := <-target.subjects:
		if got != want {
			t.Errorf("invalidated %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for invalidation of %q", want)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"disabled ignores backend", func(c *Config) { c.Enabled = false; c.Backend = "kafka" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "kafka" }, true},
		{"nats without url", func(c *Config) { c.Backend = BackendNATS; c.NATS.URL = "" }, true},
		{"jetstream without stream", func(c *Config) { c.Backend = BackendNATS; c.NATS.JetStream = true }, true},
		{"nats core", func(c *Config) { c.Backend = BackendNATS }, false},
		{"negative retries", func(c *Config) { c.Router.RetryMaxRetries = -1 }, true},
		{"shrinking backoff", func(c *Config) { c.Router.RetryMultiplier = 0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishedEventsInvalidateSubjects(t *testing.T) {
	t.Parallel()

	bus, target := startConsumer(t)
	ctx := context.Background()

	err := bus.PublishInteraction(ctx, recommend.InteractionEvent{
		SubjectID: "u1", ArticleID: "a1", Type: recommend.EventLike, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishInteraction: %v", err)
	}
	expectSubject(t, target, "u1")

	err = bus.PublishFeedback(ctx, recommend.Feedback{
		SubjectID: "u2", ArticleID: "a1", Type: recommend.FeedbackDislike, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishFeedback: %v", err)
	}
	expectSubject(t, target, "u2")
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	t.Parallel()

	bus, target := startConsumer(t)

	if err := bus.Publisher().Publish(TopicInteractionRecorded, message.NewMessage("bad", []byte("{not json"))); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.PublishInteraction(context.Background(), recommend.InteractionEvent{SubjectID: "u3", ArticleID: "a", Type: recommend.EventView}); err != nil {
		t.Fatalf("PublishInteraction: %v", err)
	}
	expectSubject(t, target, "u3")
}

func TestPublishAfterClose(t *testing.T) {
	t.Parallel()

	bus, err := NewBus(DefaultConfig(), watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	err = bus.PublishFeedback(context.Background(), recommend.Feedback{ArticleID: "a", Type: recommend.FeedbackLike})
	if !errors.Is(err, ErrBusClosed) {
		t.Errorf("err = %v, want ErrBusClosed", err)
	}
}
