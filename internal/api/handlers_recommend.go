// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/validation"
)

// subjectParam names the subject on trusted deployments.
const subjectParam = "subject"

// subject returns the caller's subject: the token's, else a trusted
// parameter, else "".
func (h *Handler) subject(r *http.Request, trusted string) string {
	if id := auth.SubjectID(r.Context()); id != "" {
		return id
	}
	if h.opts.TrustSubjectParam {
		return trusted
	}
	return ""
}

// GetRecommendations handles GET /api/v1/recommendations
//
// Query parameters: algorithm, limit, category, exclude (comma separated or
// repeated), session. Anonymous callers get trending or mixed results only.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	limit, ok := intParam(w, r, "limit", 0)
	if !ok {
		return
	}
	query := validation.RecommendationQuery{
		Algorithm: values.Get("algorithm"),
		Limit:     limit,
		Category:  values.Get("category"),
		SessionID: values.Get("session"),
		Exclude:   listParam(values["exclude"]),
	}
	if verr := validation.ValidateStruct(&query); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	ctx, cancel := h.context(r.Context())
	defer cancel()

	subjectID := h.subject(r, values.Get(subjectParam))
	req := query.ToRequest(subjectID, logging.RequestIDFromContext(r.Context()))
	resp, err := h.service.GetRecommendations(ctx, req)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, resp, Metadata{
		QueryTimeMS: resp.Metadata.LatencyMS,
		Cached:      resp.Metadata.CacheHit,
	})
}

// RecordFeedback handles POST /api/v1/recommendations/feedback
func (h *Handler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		validation.FeedbackRequest
		SubjectID string `json:"subject_id,omitempty"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if verr := validation.ValidateStruct(&body.FeedbackRequest); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	ctx, cancel := h.context(r.Context())
	defer cancel()

	fb := body.ToFeedback(h.subject(r, body.SubjectID))
	if err := h.service.RecordFeedback(ctx, fb); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, map[string]any{"recorded": true}, Metadata{})
}

// RecordInteraction handles POST /api/v1/interactions
//
// The token's subject wins over subject_id in the body; without a token the
// body's subject is used only on trusted deployments.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var body validation.InteractionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.SubjectID = h.subject(r, body.SubjectID)
	if verr := validation.ValidateStruct(&body); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	ctx, cancel := h.context(r.Context())
	defer cancel()

	if err := h.service.RecordInteraction(ctx, body.ToEvent()); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, map[string]any{"recorded": true}, Metadata{})
}

// GetStats handles GET /api/v1/recommendations/stats?days=
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", 7)
	if !ok {
		return
	}
	query := validation.StatsQuery{Days: days}
	if verr := validation.ValidateStruct(&query); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	ctx, cancel := h.context(r.Context())
	defer cancel()

	stats, err := h.service.GetStats(ctx, query.Days)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, stats, Metadata{})
}

// GraphAnalysis handles GET /api/v1/graph/analysis
func (h *Handler) GraphAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r.Context())
	defer cancel()

	analysis, err := h.service.AnalyzeGraph(ctx)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, analysis, Metadata{})
}

// intParam parses an optional integer query parameter. A malformed value is
// answered with a 400 and ok=false.
func intParam(w http.ResponseWriter, r *http.Request, key string, defaultValue int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultValue, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    CodeValidation,
			Message: key + " must be an integer",
			Details: map[string]any{"field": key, "value": raw},
		}, nil)
		return 0, false
	}
	return n, true
}

// listParam flattens repeated and comma separated values, dropping blanks.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
