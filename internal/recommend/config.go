// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"fmt"
	"math"
	"time"
)

// Config contains all tunables of the recommendation engine. It is validated
// once by NewEngine and treated as immutable afterwards.
type Config struct {
	// Quotas is the share of a mixed result allocated to each strategy.
	Quotas QuotaConfig `json:"quotas" koanf:"quotas"`

	// Rerank controls the diversity and freshness adjustment of mixed results.
	Rerank RerankConfig `json:"rerank" koanf:"rerank"`

	// Scoring holds the shared recency and candidate window parameters.
	Scoring ScoringConfig `json:"scoring" koanf:"scoring"`

	// Collaborative contains parameters for user- and item-based CF.
	Collaborative CollaborativeConfig `json:"collaborative" koanf:"collaborative"`

	// Graph contains parameters for the interaction graph.
	Graph GraphConfig `json:"graph" koanf:"graph"`

	// Profile contains parameters for profile aggregation.
	Profile ProfileConfig `json:"profile" koanf:"profile"`

	// Limits contains request and timeout limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`

	// Cache contains response caching parameters.
	Cache CacheConfig `json:"cache" koanf:"cache"`
}

// QuotaConfig is the per-strategy share of the mixed blend. Graph defaults to
// whatever the other shares leave over.
type QuotaConfig struct {
	Personal      float64 `json:"personal" koanf:"personal"`
	Collaborative float64 `json:"collaborative" koanf:"collaborative"`
	Trending      float64 `json:"trending" koanf:"trending"`
	Graph         float64 `json:"graph" koanf:"graph"`
	AI            float64 `json:"ai" koanf:"ai"`
}

// Shares returns the quotas keyed by strategy, in blend order.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (q QuotaConfig) Shares() []StrategyShare {
	return []StrategyShare{
		{Algorithm: AlgorithmPersonal, Share: q.Personal},
		{Algorithm: AlgorithmCollaborative, Share: q.Collaborative},
		{Algorithm: AlgorithmTrending, Share: q.Trending},
		{Algorithm: AlgorithmAI, Share: q.AI},
		{Algorithm: AlgorithmGraph, Share: q.Graph},
	}
}

// StrategyShare pairs a strategy with its quota.
type StrategyShare struct {
	Algorithm Algorithm
	Share     float64
}

// Allocate splits limit across strategies: every strategy but the last gets
// ceil(share·limit), the last gets the remainder (never negative).
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (q QuotaConfig) Allocate(limit int) map[Algorithm]int {
	shares := q.Shares()
	out := make(map[Algorithm]int, len(shares))
	used := 0
	for i, s := range shares {
		if s.Share <= 0 {
			continue
		}
		n := int(math.Ceil(s.Share * float64(limit)))
		if i == len(shares)-1 {
			n = limit - used
		}
		if n <= 0 {
			continue
		}
		out[s.Algorithm] = n
		used += n
	}
	return out
}

// RerankConfig controls the post-merge adjustment.
type RerankConfig struct {
	// DiversityFactor weights 1 - sameCategory/total.
	DiversityFactor float64 `json:"diversity_factor" koanf:"diversity_factor"`

	// FreshnessFactor weights max(0, 1 - days/RecencyWindowDays).
	FreshnessFactor float64 `json:"freshness_factor" koanf:"freshness_factor"`

	// MaxCategoryShare caps how much of a result one category may take when
	// DiversityFactor > 0 and more than one category is available.
	MaxCategoryShare float64 `json:"max_category_share" koanf:"max_category_share"`
}

// ScoringConfig holds the shared scoring windows.
type ScoringConfig struct {
	// RecencyWindowDays is the age at which recency reaches 0.
	RecencyWindowDays float64 `json:"recency_window_days" koanf:"recency_window_days"`

	// TrendingWindow restricts trending candidates to recent publications.
	TrendingWindow time.Duration `json:"trending_window" koanf:"trending_window"`

	// CandidateMultiplier sizes the personal candidate set as limit × multiplier.
	CandidateMultiplier int `json:"candidate_multiplier" koanf:"candidate_multiplier"`
}

// CollaborativeConfig contains parameters for collaborative filtering.
type CollaborativeConfig struct {
	// SimilarUsers is how many neighbors are kept in the similarity cache.
	SimilarUsers int `json:"similar_users" koanf:"similar_users"`

	// Neighbors is how many of the cached neighbors contribute to scores.
	Neighbors int `json:"neighbors" koanf:"neighbors"`

	// SimilarItems is how many similar articles are kept per seed.
	SimilarItems int `json:"similar_items" koanf:"similar_items"`

	// MaxSeeds bounds the seed articles used by item-based CF.
	MaxSeeds int `json:"max_seeds" koanf:"max_seeds"`

	// MaxCandidates bounds the users or items compared against a target.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`

	// UserShare is the fraction of hybrid results taken from user-based CF.
	UserShare float64 `json:"user_share" koanf:"user_share"`

	// SimilarityTTL is how long similarity neighborhoods are cached.
	SimilarityTTL time.Duration `json:"similarity_ttl" koanf:"similarity_ttl"`
}

// GraphConfig contains parameters for the interaction graph.
type GraphConfig struct {
	// EventWindow is how many of the most recent events build the graph.
	EventWindow int `json:"event_window" koanf:"event_window"`

	// TTL is the age after which a snapshot is considered stale.
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// MaxPathNodes bounds path length in nodes: 4 is user→article→user→article,
	// 6 adds one more user→article step.
	MaxPathNodes int `json:"max_path_nodes" koanf:"max_path_nodes"`

	// FanOut caps the neighbors explored per node, strongest edges first.
	FanOut int `json:"fan_out" koanf:"fan_out"`

	// VisitBudget caps the total frontier expansions per request.
	VisitBudget int `json:"visit_budget" koanf:"visit_budget"`

	// PathPenalty is the per-hop length penalty base.
	PathPenalty float64 `json:"path_penalty" koanf:"path_penalty"`
}

// ProfileConfig contains parameters for profile building.
type ProfileConfig struct {
	// TTL is how long a built profile is reused before a rebuild.
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// DecayHalfLife halves an event's contribution per elapsed period. Zero disables decay.
	DecayHalfLife time.Duration `json:"decay_half_life" koanf:"decay_half_life"`

	// MaxEvents bounds the events read per rebuild, newest first.
	MaxEvents int `json:"max_events" koanf:"max_events"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	DefaultLimit int `json:"default_limit" koanf:"default_limit"`
	MaxLimit     int `json:"max_limit" koanf:"max_limit"`

	// MaxCandidates bounds the candidate set fetched for a single strategy.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`

	// StrategyTimeout bounds each strategy run. The AI strategy enforces its own HTTP timeout on top.
	StrategyTimeout time.Duration `json:"strategy_timeout" koanf:"strategy_timeout"`

	// RequestTimeout bounds a whole GetRecommendations call.
	RequestTimeout time.Duration `json:"request_timeout" koanf:"request_timeout"`
}

// CacheConfig contains response caching parameters.
type CacheConfig struct {
	Enabled bool          `json:"enabled" koanf:"enabled"`
	TTL     time.Duration `json:"ttl" koanf:"ttl"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Quotas: QuotaConfig{
			Personal:      0.4,
			Collaborative: 0.3,
			Trending:      0.2,
			Graph:         0.1,
		},
		Rerank: RerankConfig{
			DiversityFactor:  0.3,
			FreshnessFactor:  0.2,
			MaxCategoryShare: 0.6,
		},
		Scoring: ScoringConfig{
			RecencyWindowDays:   30,
			TrendingWindow:      7 * 24 * time.Hour,
			CandidateMultiplier: 3,
		},
		Collaborative: CollaborativeConfig{
			SimilarUsers:  50,
			Neighbors:     20,
			SimilarItems:  20,
			MaxSeeds:      20,
			MaxCandidates: 500,
			UserShare:     0.6,
			SimilarityTTL: time.Hour,
		},
		Graph: GraphConfig{
			EventWindow:  100000,
			TTL:          30 * time.Minute,
			MaxPathNodes: 4,
			FanOut:       10,
			VisitBudget:  5000,
			PathPenalty:  0.8,
		},
		Profile: ProfileConfig{
			TTL:           10 * time.Minute,
			DecayHalfLife: 30 * 24 * time.Hour,
			MaxEvents:     5000,
		},
		Limits: LimitsConfig{
			DefaultLimit:    10,
			MaxLimit:        100,
			MaxCandidates:   500,
			StrategyTimeout: 5 * time.Second,
			RequestTimeout:  20 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
	}
}

// quotaTolerance is how far the quota sum may drift from 1.
const quotaTolerance = 0.01

// Validate checks that all values are in range.
func (c *Config) Validate() error {
	q := c.Quotas
	for _, s := range q.Shares() {
		if s.Share < 0 || s.Share > 1 {
			return fmt.Errorf("quotas.%s must be in [0, 1], got %f", s.Algorithm, s.Share)
		}
	}
	if sum := q.Personal + q.Collaborative + q.Trending + q.Graph + q.AI; math.Abs(sum-1) > quotaTolerance {
		return fmt.Errorf("quotas must sum to 1, got %f", sum)
	}

	if c.Rerank.DiversityFactor < 0 || c.Rerank.DiversityFactor > 1 {
		return fmt.Errorf("rerank.diversity_factor must be in [0, 1], got %f", c.Rerank.DiversityFactor)
	}
	if c.Rerank.FreshnessFactor < 0 || c.Rerank.FreshnessFactor > 1 {
		return fmt.Errorf("rerank.freshness_factor must be in [0, 1], got %f", c.Rerank.FreshnessFactor)
	}
	if c.Rerank.MaxCategoryShare <= 0 || c.Rerank.MaxCategoryShare > 1 {
		return fmt.Errorf("rerank.max_category_share must be in (0, 1], got %f", c.Rerank.MaxCategoryShare)
	}

	if c.Scoring.RecencyWindowDays <= 0 {
		return fmt.Errorf("scoring.recency_window_days must be positive, got %f", c.Scoring.RecencyWindowDays)
	}
	if c.Scoring.TrendingWindow <= 0 {
		return fmt.Errorf("scoring.trending_window must be positive, got %v", c.Scoring.TrendingWindow)
	}
	if c.Scoring.CandidateMultiplier < 1 {
		return fmt.Errorf("scoring.candidate_multiplier must be positive, got %d", c.Scoring.CandidateMultiplier)
	}

	cf := c.Collaborative
	if cf.SimilarUsers < 1 || cf.Neighbors < 1 || cf.SimilarItems < 1 || cf.MaxSeeds < 1 || cf.MaxCandidates < 1 {
		return fmt.Errorf("collaborative neighborhood sizes must be positive, got %+v", cf)
	}
	if cf.Neighbors > cf.SimilarUsers {
		return fmt.Errorf("collaborative.neighbors must be <= collaborative.similar_users, got %d > %d", cf.Neighbors, cf.SimilarUsers)
	}
	if cf.UserShare < 0 || cf.UserShare > 1 {
		return fmt.Errorf("collaborative.user_share must be in [0, 1], got %f", cf.UserShare)
	}
	if cf.SimilarityTTL <= 0 {
		return fmt.Errorf("collaborative.similarity_ttl must be positive, got %v", cf.SimilarityTTL)
	}

	g := c.Graph
	if g.EventWindow < 1 {
		return fmt.Errorf("graph.event_window must be positive, got %d", g.EventWindow)
	}
	if g.TTL <= 0 {
		return fmt.Errorf("graph.ttl must be positive, got %v", g.TTL)
	}
	if g.MaxPathNodes != 4 && g.MaxPathNodes != 6 {
		return fmt.Errorf("graph.max_path_nodes must be 4 or 6, got %d", g.MaxPathNodes)
	}
	if g.FanOut < 1 || g.VisitBudget < 1 {
		return fmt.Errorf("graph.fan_out and graph.visit_budget must be positive, got %d, %d", g.FanOut, g.VisitBudget)
	}
	if g.PathPenalty <= 0 || g.PathPenalty > 1 {
		return fmt.Errorf("graph.path_penalty must be in (0, 1], got %f", g.PathPenalty)
	}

	if c.Profile.TTL <= 0 {
		return fmt.Errorf("profile.ttl must be positive, got %v", c.Profile.TTL)
	}
	if c.Profile.DecayHalfLife < 0 {
		return fmt.Errorf("profile.decay_half_life must be non-negative, got %v", c.Profile.DecayHalfLife)
	}
	if c.Profile.MaxEvents < 1 {
		return fmt.Errorf("profile.max_events must be positive, got %d", c.Profile.MaxEvents)
	}

	l := c.Limits
	if l.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", l.DefaultLimit)
	}
	if l.MaxLimit < l.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d", l.MaxLimit, l.DefaultLimit)
	}
	if l.MaxCandidates < 1 {
		return fmt.Errorf("limits.max_candidates must be positive, got %d", l.MaxCandidates)
	}
	if l.StrategyTimeout <= 0 || l.RequestTimeout <= 0 {
		return fmt.Errorf("limits timeouts must be positive, got %v, %v", l.StrategyTimeout, l.RequestTimeout)
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when enabled, got %v", c.Cache.TTL)
	}

	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	clone := *c
	return &clone
}
