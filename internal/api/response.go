// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/validation"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation   = validation.ErrorCode
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
)

// APIResponse is the envelope of every JSON response.
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "limit must be less than or equal to 100",
//	    "details": {"field": "limit"}
//	  },
//	  "metadata": {"timestamp": "2026-05-10T12:00:00Z", "request_id": "..."}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError represents an error response with structured error details.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&result, "\\x%02x", r)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers. Responses are
// personalized, so they are never cacheable by intermediaries.
func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data any, meta Metadata) {
	meta.Timestamp = time.Now().UTC()
	meta.RequestID = logging.RequestIDFromContext(r.Context())
	respondJSON(w, status, &APIResponse{Status: "success", Data: data, Metadata: meta})
}

// respondError sends an error response. err, when set, is logged and never
// sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError, err error) {
	if err != nil {
		event := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Error()
		}
		event.Str("code", apiErr.Code).
			Str("path", r.URL.Path).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &APIResponse{
		Status: "error",
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Error: apiErr,
	})
}

// respondValidation sends a 400 for a failed struct validation.
func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondError(w, r, http.StatusBadRequest, &APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}, nil)
}

// respondEngineError maps engine errors to the envelope. Validation errors
// are the caller's fault; unknown articles are 404; everything else is 500
// and the cause stays in the log.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *recommend.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    CodeValidation,
			Message: fmt.Sprintf("%s %s", ve.Field, ve.Reason),
			Details: map[string]any{"field": ve.Field},
		}, nil)
	case errors.Is(err, recommend.ErrArticleNotFound):
		respondError(w, r, http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "Article not found"}, nil)
	case errors.Is(err, recommend.ErrStrategyNotRegistered):
		respondError(w, r, http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "Feature is not enabled"}, err)
	default:
		respondError(w, r, http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: "Internal server error"}, err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    CodeValidation,
			Message: "Request body must be a valid JSON object",
		}, err)
		return false
	}
	return true
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10
