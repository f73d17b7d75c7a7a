// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EventType is the kind of engagement recorded in an InteractionEvent.
type EventType string

const (
	EventView        EventType = "view"
	EventLike        EventType = "like"
	EventShare       EventType = "share"
	EventComment     EventType = "comment"
	EventReadingTime EventType = "readingTime"
)

// unknownEventWeight is used for event types not in the weight table.
const unknownEventWeight = 0.1

// Weight returns the contribution of one event of this type to interest,
// similarity and graph edge weights.
func (t EventType) Weight() float64 {
	switch t {
	case EventLike:
		return 1.0
	case EventShare:
		return 0.9
	case EventComment:
		return 0.8
	case EventReadingTime:
		return 0.6
	case EventView:
		return 0.2
	default:
		return unknownEventWeight
	}
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventLike, EventShare, EventComment, EventReadingTime:
		return true
	}
	return false
}

// EngagementEvents are the explicit positive signals used by collaborative filtering.
var EngagementEvents = []EventType{EventLike, EventShare, EventComment}

// GraphEvents are the signals that create edges in the interaction graph.
var GraphEvents = []EventType{EventLike, EventShare, EventComment, EventReadingTime}

// InteractionEvent is one engagement of a subject with an article. Immutable.
type InteractionEvent struct {
	SubjectID string    `json:"subject_id"`
	ArticleID string    `json:"article_id"`
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ArticleStatus is the editorial state of an article.
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusArchived  ArticleStatus = "archived"
)

// Article is the read-only projection of catalog metadata the engine scores.
type Article struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Slug        string        `json:"slug,omitempty" yaml:"slug,omitempty"`
	Summary     string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	CategoryID  string        `json:"category_id" yaml:"category_id"`
	Tags        []string      `json:"tags" yaml:"tags"`
	PublishedAt time.Time     `json:"published_at" yaml:"published_at"`
	ViewCount   int64         `json:"view_count" yaml:"view_count"`
	LikeCount   int64         `json:"like_count" yaml:"like_count"`
	ReadingTime int           `json:"reading_time,omitempty" yaml:"reading_time,omitempty"`
	Status      ArticleStatus `json:"status" yaml:"status"`
	Featured    bool          `json:"featured,omitempty" yaml:"featured,omitempty"`
}

// Published reports whether the article may appear in a result.
func (a *Article) Published() bool {
	return a.Status == StatusPublished
}

// DaysSincePublished returns the fractional age of the article at now.
func (a *Article) DaysSincePublished(now time.Time) float64 {
	return now.Sub(a.PublishedAt).Hours() / 24
}

// Profile is a subject's derived interest vector. An empty profile is valid and
// means there is no personalization signal.
type Profile struct {
	SubjectID       string             `json:"subject_id"`
	CategoryWeights map[string]float64 `json:"category_weights"`
	InterestWeights map[string]float64 `json:"interest_weights"`
	UpdatedAt       time.Time          `json:"updated_at"`
	EventCount      int                `json:"event_count"`
	FeedbackCount   int                `json:"feedback_count"`
}

// NewProfile returns an empty profile for subjectID.
func NewProfile(subjectID string, now time.Time) *Profile {
	return &Profile{
		SubjectID:       subjectID,
		CategoryWeights: make(map[string]float64),
		InterestWeights: make(map[string]float64),
		UpdatedAt:       now,
	}
}

// Empty reports whether the profile carries no signal at all.
func (p *Profile) Empty() bool {
	if p == nil {
		return true
	}
	for _, w := range p.CategoryWeights {
		if w > 0 {
			return false
		}
	}
	for _, w := range p.InterestWeights {
		if w > 0 {
			return false
		}
	}
	return true
}

// CategoryWeight returns the weight for categoryID, 0 if unknown.
func (p *Profile) CategoryWeight(categoryID string) float64 {
	if p == nil {
		return 0
	}
	return p.CategoryWeights[categoryID]
}

// MeanTagWeight averages the interest weights of tags. Unknown tags count as 0.
func (p *Profile) MeanTagWeight(tags []string) float64 {
	if p == nil || len(tags) == 0 {
		return 0
	}
	var sum float64
	for _, tag := range tags {
		sum += p.InterestWeights[tag]
	}
	return sum / float64(len(tags))
}

// TopCategories returns up to n category IDs ordered by weight.
func (p *Profile) TopCategories(n int) []string {
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.CategoryWeights))
	for id, w := range p.CategoryWeights {
		if w > 0 {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		wa, wb := p.CategoryWeights[a], p.CategoryWeights[b]
		switch {
		case wa > wb:
			return -1
		case wa < wb:
			return 1
		}
		return strings.Compare(a, b)
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// Algorithm names a recommendation strategy or the blended mode.
type Algorithm string

const (
	AlgorithmPersonal      Algorithm = "personal"
	AlgorithmCollaborative Algorithm = "collaborative"
	AlgorithmGraph         Algorithm = "graph"
	AlgorithmTrending      Algorithm = "trending"
	AlgorithmMixed         Algorithm = "mixed"
	AlgorithmAI            Algorithm = "ai"
	AlgorithmFallback      Algorithm = "fallback"
)

// ParseAlgorithm converts a request string to an Algorithm. The empty
// string selects the mixed blend.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AlgorithmMixed, nil
	case AlgorithmPersonal, AlgorithmCollaborative, AlgorithmGraph, AlgorithmTrending, AlgorithmMixed, AlgorithmAI:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// ReasonType classifies why an item was recommended.
type ReasonType string

const (
	ReasonInterest          ReasonType = "interest"
	ReasonCollaborativeUser ReasonType = "collaborative_user"
	ReasonItemSimilarity    ReasonType = "item_similarity"
	ReasonGraphPath         ReasonType = "graph_path"
	ReasonTrending          ReasonType = "trending"
	ReasonAI                ReasonType = "ai_recommendation"
	ReasonFallback          ReasonType = "fallback"
)

// Item is one ranked recommendation.
type Item struct {
	Article     Article        `json:"article"`
	Score       float64        `json:"score"`
	ReasonType  ReasonType     `json:"reason_type"`
	Explanation string         `json:"explanation"`
	Algorithm   Algorithm      `json:"algorithm_type"`
	Context     map[string]any `json:"context_data,omitempty"`
}

// Request is the input to GetRecommendations.
type Request struct {
	SubjectID         string    `json:"subject_id,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	Algorithm         Algorithm `json:"algorithm_type"`
	Limit             int       `json:"limit"`
	ExcludeArticleIDs []string  `json:"exclude_article_ids,omitempty"`
	Category          string    `json:"category_filter,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`

	exclude map[string]struct{}
}

// Excluded reports whether articleID is on the request's exclusion list.
func (r *Request) Excluded(articleID string) bool {
	if r.exclude != nil {
		_, ok := r.exclude[articleID]
		return ok
	}
	return slices.Contains(r.ExcludeArticleIDs, articleID)
}

// Identity names who the request is for: "s:" plus the quoted subject, else
// "x:" plus the quoted session, else "anon". Subjects and sessions never share
// a value even when their IDs are equal.
func (r *Request) Identity() string {
	switch {
	case r.SubjectID != "":
		return subjectIdentity(r.SubjectID)
	case r.SessionID != "":
		return "x:" + strconv.Quote(r.SessionID)
	default:
		return "anon"
	}
}

func subjectIdentity(subjectID string) string {
	return "s:" + strconv.Quote(subjectID)
}

// WithLimit returns a copy of the request asking for n items.
//
//nolint:gocritic // hugeParam: copy is the point
func (r Request) WithLimit(n int) *Request {
	r.Limit = n
	return &r
}

// Eligible reports whether a catalog article may be returned for this request.
func (r *Request) Eligible(a *Article) bool {
	if !a.Published() || r.Excluded(a.ID) {
		return false
	}
	return r.Category == "" || a.CategoryID == r.Category
}

func (r *Request) buildExcludeSet() {
	if len(r.ExcludeArticleIDs) == 0 {
		return
	}
	r.exclude = make(map[string]struct{}, len(r.ExcludeArticleIDs))
	for _, id := range r.ExcludeArticleIDs {
		r.exclude[id] = struct{}{}
	}
}

// Response is the output of GetRecommendations.
type Response struct {
	Items    []Item           `json:"items"`
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	RequestID      string            `json:"request_id"`
	SubjectID      string            `json:"subject_id,omitempty"`
	Algorithm      Algorithm         `json:"algorithm_type"`
	StrategiesUsed []Algorithm       `json:"strategies_used"`
	Excluded       map[string]string `json:"excluded_strategies,omitempty"`
	CacheHit       bool              `json:"cache_hit"`
	Fallback       bool              `json:"fallback"`
	LatencyMS      int64             `json:"latency_ms"`
	Timestamp      time.Time         `json:"timestamp"`
}

// FeedbackType is the kind of explicit feedback on a recommended article.
type FeedbackType string

const (
	FeedbackLike          FeedbackType = "like"
	FeedbackDislike       FeedbackType = "dislike"
	FeedbackNotInterested FeedbackType = "not_interested"
	FeedbackAlreadyRead   FeedbackType = "already_read"
	FeedbackClicked       FeedbackType = "clicked"
	FeedbackShared        FeedbackType = "shared"
)

// Valid reports whether f is a known feedback type.
func (f FeedbackType) Valid() bool {
	switch f {
	case FeedbackLike, FeedbackDislike, FeedbackNotInterested, FeedbackAlreadyRead, FeedbackClicked, FeedbackShared:
		return true
	}
	return false
}

// Weight is the signed adjustment feedback applies to the article's category
// and tags on the next profile rebuild.
func (f FeedbackType) Weight() float64 {
	switch f {
	case FeedbackLike:
		return 1.0
	case FeedbackShared:
		return 0.9
	case FeedbackClicked:
		return 0.3
	case FeedbackDislike:
		return -0.5
	case FeedbackNotInterested:
		return -1.0
	default:
		return 0
	}
}

// Feedback is an append-only feedback record.
type Feedback struct {
	SubjectID         string       `json:"subject_id,omitempty"`
	ArticleID         string       `json:"article_id"`
	Type              FeedbackType `json:"feedback_type"`
	RecommendationRef string       `json:"recommendation_ref,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// RecommendationLog attributes a served item to the strategy that produced it.
type RecommendationLog struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"request_id"`
	SubjectID  string     `json:"subject_id,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	ArticleID  string     `json:"article_id"`
	Algorithm  Algorithm  `json:"algorithm_type"`
	ReasonType ReasonType `json:"reason_type"`
	Score      float64    `json:"score"`
	Position   int        `json:"position"`
	Shown      bool       `json:"shown"`
	Clicked    bool       `json:"clicked"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DailyCounters are per-day, per-algorithm attribution counters.
type DailyCounters struct {
	Day       string    `json:"day"` // YYYY-MM-DD, UTC
	Algorithm Algorithm `json:"algorithm_type"`
	Shown     int64     `json:"shown"`
	Clicked   int64     `json:"clicked"`
	Liked     int64     `json:"liked"`
	Disliked  int64     `json:"disliked"`
}

// Add accumulates other into c.
func (c *DailyCounters) Add(other DailyCounters) {
	c.Shown += other.Shown
	c.Clicked += other.Clicked
	c.Liked += other.Liked
	c.Disliked += other.Disliked
}

// Stats aggregates DailyCounters over a window.
type Stats struct {
	Days         int                         `json:"days"`
	Totals       DailyCounters               `json:"totals"`
	CTR          float64                     `json:"ctr"`
	Satisfaction float64                     `json:"satisfaction"`
	ByAlgorithm  map[Algorithm]DailyCounters `json:"by_algorithm"`
	Daily        []DailyCounters             `json:"daily"`
}

// SimilarityScore is a symmetric similarity between two subjects or two articles.
type SimilarityScore struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Value       float64 `json:"value"`
	CommonCount int     `json:"common_count"`
}

// NodeKind distinguishes the two sides of the interaction graph.
type NodeKind string

const (
	NodeUser    NodeKind = "user"
	NodeArticle NodeKind = "article"
)

// NodeDegree is a graph node with its number of neighbors.
type NodeDegree struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"type"`
	Connections int      `json:"connections"`
}

// GraphAnalysis summarizes the current interaction graph snapshot.
type GraphAnalysis struct {
	TotalNodes         int          `json:"total_nodes"`
	TotalEdges         int          `json:"total_edges"`
	UserNodes          int          `json:"user_nodes"`
	ArticleNodes       int          `json:"article_nodes"`
	AverageConnections float64      `json:"average_connections"`
	TopConnectedNodes  []NodeDegree `json:"top_connected_nodes"`
	BuiltAt            time.Time    `json:"built_at"`
}
