// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"context"
	"time"
)

// ArticleOrder selects the ordering of catalog queries.
type ArticleOrder int

const (
	// OrderNewest sorts by publishedAt desc.
	OrderNewest ArticleOrder = iota

	// OrderPopular sorts by viewCount desc, likeCount desc, publishedAt desc.
	OrderPopular
)

// ArticleQuery filters published articles.
type ArticleQuery struct {
	Category   string
	Since      time.Time
	ExcludeIDs []string
	Order      ArticleOrder
	Limit      int
}

// ArticleCatalog is read access to article metadata.
type ArticleCatalog interface {
	// PublishedArticles returns published articles matching q, ordered by q.Order.
	PublishedArticles(ctx context.Context, q ArticleQuery) ([]Article, error)

	// ArticlesByID returns the known articles among ids in any status. Unknown
	// IDs are skipped.
	ArticlesByID(ctx context.Context, ids []string) ([]Article, error)

	// FeaturedArticles returns published featured articles, newest first.
	FeaturedArticles(ctx context.Context, excludeIDs []string, limit int) ([]Article, error)
}

// InteractionStore is read access to the interaction event stream. Results
// are ordered newest first. An empty types list means all event types.
type InteractionStore interface {
	EventsBySubjects(ctx context.Context, subjectIDs []string, types ...EventType) ([]InteractionEvent, error)
	EventsByArticles(ctx context.Context, articleIDs []string, types ...EventType) ([]InteractionEvent, error)
	RecentEvents(ctx context.Context, limit int, types ...EventType) ([]InteractionEvent, error)
}

// InteractionRecorder appends new interaction events.
type InteractionRecorder interface {
	AppendEvent(ctx context.Context, ev InteractionEvent) error
}

// FeedbackStore persists explicit feedback.
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, fb Feedback) error
	FeedbackBySubject(ctx context.Context, subjectID string) ([]Feedback, error)
}

// RecommendationLogStore persists served items and their daily attribution counters.
type RecommendationLogStore interface {
	AppendRecommendationLogs(ctx context.Context, logs []RecommendationLog) error

	// LatestLog returns the newest log entry for (subject, article). ok is
	// false when the article was never served to the subject.
	LatestLog(ctx context.Context, subjectID, articleID string) (log RecommendationLog, ok bool, err error)

	// MarkClicked flags the log entry with logID as clicked.
	MarkClicked(ctx context.Context, logID string) error

	// IncrementDaily adds delta to the counters of (delta.Day, delta.Algorithm).
	IncrementDaily(ctx context.Context, delta DailyCounters) error

	// DailyCounters returns counters for days in [from, to], inclusive.
	DailyCounters(ctx context.Context, from, to time.Time) ([]DailyCounters, error)
}

// ProfileSource resolves subject profiles. Implementations cache and rebuild.
type ProfileSource interface {
	Profile(ctx context.Context, subjectID string) (*Profile, error)
	Invalidate(subjectID string)
}

// Strategy is one interchangeable scoring strategy. Score returns at most
// req.Limit eligible items ordered best first. An empty slice with a nil error
// means the strategy has no signal for the request.
type Strategy interface {
	Name() Algorithm
	Score(ctx context.Context, req *Request) ([]Item, error)
}

// TimeoutStrategy is implemented by strategies that need a run budget other
// than the engine's default.
type TimeoutStrategy interface {
	Timeout() time.Duration
}

// Reranker adjusts a merged candidate list. items are the quota picks and
// reserve the deeper candidates that may fill slots the picks leave open. It
// returns at most limit items drawn from both and never adds others.
type Reranker interface {
	Name() string
	Rerank(ctx context.Context, items, reserve []Item, limit int) []Item
}

// GraphAnalyzer exposes diagnostics of the interaction graph.
type GraphAnalyzer interface {
	AnalyzeGraph(ctx context.Context) (*GraphAnalysis, error)
}

// EventPublisher announces domain events after they are persisted.
type EventPublisher interface {
	PublishInteraction(ctx context.Context, ev InteractionEvent) error
	PublishFeedback(ctx context.Context, fb Feedback) error
}
