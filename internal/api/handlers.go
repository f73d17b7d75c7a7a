// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package api

import (
	"context"
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// RecommendationService is the engine surface used by the handlers.
type RecommendationService interface {
	GetRecommendations(ctx context.Context, req recommend.Request) (*recommend.Response, error)
	RecordFeedback(ctx context.Context, fb recommend.Feedback) error
	RecordInteraction(ctx context.Context, ev recommend.InteractionEvent) error
	GetStats(ctx context.Context, days int) (*recommend.Stats, error)
	AnalyzeGraph(ctx context.Context) (*recommend.GraphAnalysis, error)
	Stats() recommend.EngineStats
}

// Pinger checks a dependency's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AIHealthChecker checks the external scoring service.
type AIHealthChecker interface {
	Health(ctx context.Context) error
	State() string
}

// HandlerOptions holds optional collaborators and settings.
type HandlerOptions struct {
	// Store is pinged by the health endpoints.
	Store Pinger

	// AI is reported by the health endpoint when the ai strategy is enabled.
	AI AIHealthChecker

	// TrustSubjectParam lets requests name their subject directly
	// (auth.mode=none on a trusted network).
	TrustSubjectParam bool

	// RequestTimeout bounds every handler's work.
	RequestTimeout time.Duration

	// Version is reported by the health endpoint.
	Version string
}

// Handler serves the recommendation API.
type Handler struct {
	service   RecommendationService
	opts      HandlerOptions
	startTime time.Time
}

// NewHandler creates the API handler.
//
//nolint:gocritic // hugeParam: options are copied once at startup
func NewHandler(service RecommendationService, opts HandlerOptions) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Handler{
		service:   service,
		opts:      opts,
		startTime: time.Now(),
	}
}

func (h *Handler) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, h.opts.RequestTimeout)
}
