// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package api serves the recommendation engine over HTTP using the Chi router.
// Every JSON response uses the APIResponse envelope.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/newsroom/internal/middleware"
)

// slowRequestThreshold is the latency above which requests are logged at warn.
const slowRequestThreshold = time.Second

// Authenticator resolves the request subject.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// Router wires handlers and middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	auth          Authenticator
}

// NewRouter creates a router. auth may be nil for anonymous-only deployments.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, auth Authenticator) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMW, auth: auth}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global Middleware Stack
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recoverer(respondPanic))
	r.Use(middleware.AccessLog(slowRequestThreshold))
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "Route not found"}, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, &APIError{Code: CodeValidation, Message: "Method not allowed"}, nil)
	})

	// promhttp negotiates its own compression.
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)
		if router.auth != nil {
			r.Use(router.auth.Authenticate)
		}

		r.Get("/recommendations", router.handler.GetRecommendations)
		r.Post("/recommendations/feedback", router.handler.RecordFeedback)
		r.Get("/recommendations/stats", router.handler.GetStats)
		r.Post("/interactions", router.handler.RecordInteraction)
		r.Get("/graph/analysis", router.handler.GraphAnalysis)
	})

	return r
}

func respondPanic(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: "Internal server error"}, nil)
}

// AuthErrorResponder writes authentication failures in the API envelope.
// Pass it to auth.NewMiddleware.
func AuthErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, http.StatusUnauthorized, &APIError{Code: CodeUnauthorized, Message: "Invalid or missing bearer token"}, err)
}
