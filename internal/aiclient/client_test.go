// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package aiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/newsroom/internal/recommend"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL + "/", APIKey: "secret", Timeout: 2 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestRecommendSendsRequest(t *testing.T) {
	t.Parallel()

	received := make(chan RecommendRequest, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/recommend" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		var body RecommendRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recommendations":[{"articleId":"a1","score":0.9,"confidence":0.8,"explanation":"fits","reasoning":"topic","tags":["x"]}],"metadata":{"model":"m1"}}`))
	})

	resp, err := c.Recommend(context.Background(), RecommendRequest{
		UserID:      "u1",
		Preferences: DefaultPreferences(),
		ContentContext: ContentContext{
			Liked: []string{"a9"},
		},
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	got := <-received
	if got.UserID != "u1" || got.Limit != 5 || len(got.ContentContext.Liked) != 1 {
		t.Errorf("server received %+v", got)
	}
	if got.Preferences.ContentLength != "any" || len(got.Preferences.Languages) != 2 {
		t.Errorf("preferences = %+v", got.Preferences)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].ArticleID != "a1" {
		t.Fatalf("recommendations = %+v", resp.Recommendations)
	}
	if resp.Recommendations[0].Confidence != 0.8 {
		t.Errorf("confidence = %f", resp.Recommendations[0].Confidence)
	}
	if resp.Metadata["model"] != "m1" {
		t.Errorf("metadata = %v", resp.Metadata)
	}
}

func TestRecommendErrorsAreUpstream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"recommendations":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, tt.handler)
			_, err := c.Recommend(context.Background(), RecommendRequest{UserID: "u1", Limit: 1})
			if !errors.Is(err, recommend.ErrUpstreamUnavailable) {
				t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
			}
		})
	}
}

func TestRecommendHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Recommend(ctx, RecommendRequest{UserID: "u1", Limit: 1})
	if !errors.Is(err, recommend.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Recommend took %v after context deadline", elapsed)
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 10; i++ {
		_, _ = c.Recommend(context.Background(), RecommendRequest{UserID: "u1", Limit: 1})
	}
	if c.State() != "open" {
		t.Fatalf("state = %s, want open", c.State())
	}

	before := calls.Load()
	_, err := c.Recommend(context.Background(), RecommendRequest{UserID: "u1", Limit: 1})
	if !errors.Is(err, recommend.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if calls.Load() != before {
		t.Errorf("open circuit still reached the server")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if err := healthy.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}

	unhealthy := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := unhealthy.Health(context.Background()); !errors.Is(err, recommend.ErrUpstreamUnavailable) {
		t.Errorf("Health err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestStateMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		f     float64
		s     string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
	}
	for _, tt := range tests {
		if got := stateToFloat(tt.state); got != tt.f {
			t.Errorf("stateToFloat(%v) = %f, want %f", tt.state, got, tt.f)
		}
		if got := stateToString(tt.state); got != tt.s {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.s)
		}
	}
}
