// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package validation

import (
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// RecommendationQuery holds the query parameters of GET /api/v1/recommendations.
// A zero Limit selects the engine default.
type RecommendationQuery struct {
	Algorithm string   `query:"algorithm" validate:"algorithm"`
	Limit     int      `query:"limit" validate:"gte=0,lte=100"`
	Category  string   `query:"category" validate:"max=128"`
	SessionID string   `query:"session" validate:"max=128"`
	Exclude   []string `query:"exclude" validate:"max=500,dive,required,max=128"`
}

// ToRequest converts the query into an engine request for subjectID.
func (q *RecommendationQuery) ToRequest(subjectID, requestID string) recommend.Request {
	// Algorithm is already validated; ParseAlgorithm only normalizes here.
	alg, _ := recommend.ParseAlgorithm(q.Algorithm)
	return recommend.Request{
		SubjectID:         subjectID,
		SessionID:         q.SessionID,
		Algorithm:         alg,
		Limit:             q.Limit,
		ExcludeArticleIDs: q.Exclude,
		Category:          q.Category,
		RequestID:         requestID,
	}
}

// StatsQuery holds the query parameters of GET /api/v1/recommendations/stats.
type StatsQuery struct {
	Days int `query:"days" validate:"gte=1,lte=365"`
}

// FeedbackRequest is the body of POST /api/v1/recommendations/feedback.
type FeedbackRequest struct {
	ArticleID         string `json:"article_id" validate:"required,max=128"`
	FeedbackType      string `json:"feedback_type" validate:"required,feedback_type"`
	RecommendationRef string `json:"recommendation_ref,omitempty" validate:"max=128"`
}

// ToFeedback converts the request into a feedback record for subjectID.
func (f *FeedbackRequest) ToFeedback(subjectID string) recommend.Feedback {
	return recommend.Feedback{
		SubjectID:         subjectID,
		ArticleID:         f.ArticleID,
		Type:              recommend.FeedbackType(f.FeedbackType),
		RecommendationRef: f.RecommendationRef,
	}
}

// InteractionRequest is the body of POST /api/v1/interactions. SubjectID is
// filled from the authenticated subject when the token carries one.
type InteractionRequest struct {
	SubjectID string    `json:"subject_id" validate:"required,max=128"`
	ArticleID string    `json:"article_id" validate:"required,max=128"`
	EventType string    `json:"event_type" validate:"required,event_type"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ToEvent converts the request into an interaction event.
func (i *InteractionRequest) ToEvent() recommend.InteractionEvent {
	return recommend.InteractionEvent{
		SubjectID: i.SubjectID,
		ArticleID: i.ArticleID,
		Type:      recommend.EventType(i.EventType),
		Timestamp: i.Timestamp,
	}
}
