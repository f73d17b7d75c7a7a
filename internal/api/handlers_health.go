// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 5 * time.Second

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status         string                `json:"status"`
	Version        string                `json:"version"`
	Uptime         float64               `json:"uptime_seconds"`
	StoreConnected bool                  `json:"store_connected"`
	AI             *AIHealth             `json:"ai,omitempty"`
	Engine         recommend.EngineStats `json:"engine"`
}

// AIHealth reports the external scoring service.
type AIHealth struct {
	Healthy bool   `json:"healthy"`
	Breaker string `json:"circuit_breaker"`
	Error   string `json:"error,omitempty"`
}

// Health handles GET /api/v1/health
//
// The service is "degraded" when the store is unreachable. An unhealthy AI
// service is reported but does not degrade the status, since mixed results
// are served without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthStatus{
		Status:         "healthy",
		Version:        h.opts.Version,
		Uptime:         time.Since(h.startTime).Seconds(),
		StoreConnected: h.storeConnected(ctx),
		Engine:         h.service.Stats(),
	}
	if !health.StoreConnected {
		health.Status = "degraded"
	}

	if h.opts.AI != nil {
		ai := &AIHealth{Healthy: true, Breaker: h.opts.AI.State()}
		if err := h.opts.AI.Health(ctx); err != nil {
			ai.Healthy = false
			ai.Error = sanitizeLogValue(err.Error())
		}
		health.AI = ai
	}

	respondSuccess(w, r, http.StatusOK, health, Metadata{})
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, Metadata{})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only if the store is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if !h.storeConnected(ctx) {
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    CodeUnavailable,
			Message: "Store is not reachable",
		}, nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]any{"ready": true}, Metadata{})
}

func (h *Handler) storeConnected(ctx context.Context) bool {
	return h.opts.Store == nil || h.opts.Store.Ping(ctx) == nil
}
