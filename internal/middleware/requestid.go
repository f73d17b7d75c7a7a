// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package middleware holds the HTTP middleware shared by every route:
// request IDs, access logging, panic recovery, Prometheus instrumentation and
// gzip compression. All middleware has the chi signature
// func(http.Handler) http.Handler.
package middleware

import (
	"context"
	"net/http"

	"github.com/tomtom215/newsroom/internal/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds IDs accepted from upstream proxies.
const maxRequestIDLength = 128

// RequestID adds a unique request ID to each request for distributed tracing.
// An ID supplied by an upstream proxy is kept when it is printable ASCII of
// reasonable length; otherwise a UUID v4 is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = logging.GenerateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from context.
// Returns empty string if no request ID is found.
func GetRequestID(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}
