// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package aiclient is the HTTP client for the external AI scoring service.
//
// Every call is rate limited by a token bucket and guarded by a circuit
// breaker. Any failure to obtain a usable response wraps
// recommend.ErrUpstreamUnavailable so the engine can exclude the strategy
// without surfacing the error.
package aiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/newsroom/internal/metrics"
	"github.com/tomtom215/newsroom/internal/recommend"
)

// maxResponseBytes bounds how much of a response body is decoded.
const maxResponseBytes = 4 << 20

// Config configures the AI client.
type Config struct {
	URL               string        `koanf:"url" validate:"required,url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	HealthTimeout     time.Duration `koanf:"health_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// DefaultConfig returns the production defaults without a URL.
func DefaultConfig() Config {
	return Config{
		Timeout:           15 * time.Second,
		HealthTimeout:     5 * time.Second,
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// Preferences tune the AI service's ranking.
type Preferences struct {
	DiversityFactor float64  `json:"diversityFactor"`
	FreshnessFactor float64  `json:"freshnessFactor"`
	ContentLength   string   `json:"contentLength"`
	Languages       []string `json:"languages"`
}

// DefaultPreferences are sent when the caller has none.
func DefaultPreferences() Preferences {
	return Preferences{
		DiversityFactor: 0.3,
		FreshnessFactor: 0.2,
		ContentLength:   "any",
		Languages:       []string{"ar", "en"},
	}
}

// ContentContext summarizes the subject's recent reading.
type ContentContext struct {
	RecentlyViewed      []string `json:"recentlyViewed"`
	Liked               []string `json:"liked"`
	PreferredCategories []string `json:"preferredCategories"`
}

// RecommendRequest is the body of POST /recommend.
type RecommendRequest struct {
	UserID         string             `json:"userId"`
	UserProfile    *recommend.Profile `json:"userProfile,omitempty"`
	ContentContext ContentContext     `json:"contentContext"`
	Preferences    Preferences        `json:"preferences"`
	Limit          int                `json:"limit"`
}

// Recommendation is one scored article returned by the AI service.
type Recommendation struct {
	ArticleID   string   `json:"articleId"`
	Score       float64  `json:"score"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Reasoning   string   `json:"reasoning"`
	Tags        []string `json:"tags"`
}

// RecommendResponse is the body returned by POST /recommend.
type RecommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// Client talks to the AI service. It is safe for concurrent use.
type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	healthTimeout time.Duration
	limiter       *rate.Limiter
	cb            *gobreaker.CircuitBreaker[any]
	name          string
	logger        zerolog.Logger
}

// New creates a client. The HTTP timeout of cfg.Timeout applies to every call.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("ai service URL is required")
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaults.HealthTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		apiKey:        cfg.APIKey,
		http:          &http.Client{Timeout: cfg.Timeout},
		healthTimeout: cfg.HealthTimeout,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		name:          "ai-service",
		logger:        logger.With().Str("component", "aiclient").Logger(),
	}
	c.cb = newBreaker(c.name, c.logger)
	return c, nil
}

// newBreaker opens after a 60% failure rate over at least 10 requests in a
// one minute window and probes again after two minutes.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func newBreaker(name string, logger zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logger.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

// Recommend asks the AI service to score articles for req.UserID.
//
//nolint:gocritic // hugeParam: request is encoded once
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", recommend.ErrUpstreamUnavailable, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode ai request: %w", err)
	}

	result, err := c.execute(func() (any, error) {
		return c.postRecommend(ctx, body)
	})
	resp, err := castResult[RecommendResponse](result, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recommend.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

func (c *Client) postRecommend(ctx context.Context, body []byte) (*RecommendResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ai service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out RecommendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ai response: %w", err)
	}
	return &out, nil
}

// Health checks GET /health with its own short timeout. It bypasses the
// circuit breaker so that it reports the service's actual state.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check: %v", recommend.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned status %d", recommend.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// State returns the circuit breaker state name.
func (c *Client) State() string {
	return stateToString(c.cb.State())
}

// execute runs fn through the circuit breaker and records the outcome.
func (c *Client) execute(fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			c.logger.Debug().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
			counts := c.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(0)
	return result, nil
}

// castResult type-asserts the circuit breaker result.
func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
