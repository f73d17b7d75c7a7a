// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/cache"
	"github.com/tomtom215/newsroom/internal/metrics"
)

// Engine serves recommendations by dispatching to registered strategies or
// blending them. It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger
	now    func() time.Time

	strategies map[Algorithm]Strategy
	rerankers  []Reranker
	graph      GraphAnalyzer
	regMu      sync.RWMutex

	catalog   ArticleCatalog
	profiles  ProfileSource
	recorder  InteractionRecorder
	feedback  FeedbackStore
	logs      RecommendationLogStore
	publisher EventPublisher

	responses *cache.TTL[*Response]

	requestCount  atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	fallbackCount atomic.Int64
	failureCount  atomic.Int64
}

// Dependencies are the collaborators of an Engine. Catalog is required; the
// others are optional and the matching features are skipped when nil.
type Dependencies struct {
	Catalog   ArticleCatalog
	Profiles  ProfileSource
	Recorder  InteractionRecorder
	Feedback  FeedbackStore
	Logs      RecommendationLogStore
	Publisher EventPublisher

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// EngineStats are cumulative counters since start.
type EngineStats struct {
	Requests         int64       `json:"requests"`
	CacheHits        int64       `json:"cache_hits"`
	CacheMisses      int64       `json:"cache_misses"`
	Fallbacks        int64       `json:"fallbacks"`
	StrategyFailures int64       `json:"strategy_failures"`
	Strategies       []Algorithm `json:"strategies"`
	CachedResponses  int         `json:"cached_responses"`
}

// NewEngine creates an engine with no strategies registered.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, deps Dependencies, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Catalog == nil {
		return nil, errors.New("article catalog is required")
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Engine{
		config:     cfg,
		logger:     logger.With().Str("component", "recommend").Logger(),
		now:        now,
		strategies: make(map[Algorithm]Strategy),
		catalog:    deps.Catalog,
		profiles:   deps.Profiles,
		recorder:   deps.Recorder,
		feedback:   deps.Feedback,
		logs:       deps.Logs,
		publisher:  deps.Publisher,
		responses:  cache.New[*Response](cfg.Cache.TTL, cache.WithClock(now)),
	}, nil
}

// RegisterStrategy adds or replaces the strategy serving s.Name().
func (e *Engine) RegisterStrategy(s Strategy) {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	e.strategies[s.Name()] = s
	e.logger.Info().Str("strategy", string(s.Name())).Msg("registered strategy")
}

// RegisterReranker appends a reranker to the mixed-mode pipeline.
func (e *Engine) RegisterReranker(rr Reranker) {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	e.rerankers = append(e.rerankers, rr)
	e.logger.Info().Str("reranker", rr.Name()).Msg("registered reranker")
}

// SetGraphAnalyzer wires the diagnostics source for AnalyzeGraph.
func (e *Engine) SetGraphAnalyzer(g GraphAnalyzer) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	e.graph = g
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

func (e *Engine) strategy(alg Algorithm) (Strategy, bool) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	s, ok := e.strategies[alg]
	return s, ok
}

func (e *Engine) registeredRerankers() []Reranker {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	return slices.Clone(e.rerankers)
}

// GetRecommendations returns up to req.Limit published, distinct, non-excluded
// articles. The only error it returns is a *ValidationError; every other
// failure degrades to a fallback list.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) GetRecommendations(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.requestCount.Add(1)

	req, err := e.prepareRequest(req)
	if err != nil {
		label := string(req.Algorithm)
		if errors.Is(err, ErrUnknownAlgorithm) {
			label = "unknown"
		}
		metrics.RecordRecommendation(label, "invalid", 0, time.Since(start))
		return nil, err
	}
	logger := e.requestLogger(&req)

	key := e.cacheKey(&req)
	if resp := e.tryGetCachedResponse(key, start); resp != nil {
		logger.Debug().Msg("cache hit")
		e.logServed(ctx, &req, resp.Items)
		metrics.RecordRecommendation(string(req.Algorithm), "cached", len(resp.Items), time.Since(start))
		return resp, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Limits.RequestTimeout)
	defer cancel()

	items, meta := e.dispatch(reqCtx, &req, logger)
	items = e.sanitize(&req, items)

	if len(items) == 0 {
		logger.Info().Msg("no strategy produced results, serving fallback")
		items = e.sanitize(&req, e.fallback(reqCtx, &req, logger))
		meta.Fallback = true
	}

	resp := &Response{
		Items: items,
		Metadata: ResponseMetadata{
			RequestID:      req.RequestID,
			SubjectID:      req.SubjectID,
			Algorithm:      req.Algorithm,
			StrategiesUsed: meta.StrategiesUsed,
			Excluded:       meta.Excluded,
			Fallback:       meta.Fallback,
			LatencyMS:      time.Since(start).Milliseconds(),
			Timestamp:      e.now(),
		},
	}

	result := "ok"
	if meta.Fallback {
		e.fallbackCount.Add(1)
		result = "fallback"
	} else if e.config.Cache.Enabled {
		e.responses.Set(key, copyResponse(resp))
	}

	e.logServed(ctx, &req, resp.Items)
	metrics.RecordRecommendation(string(req.Algorithm), result, len(resp.Items), time.Since(start))

	logger.Debug().
		Int("returned", len(resp.Items)).
		Bool("fallback", meta.Fallback).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("recommendation complete")

	return resp, nil
}

// prepareRequest validates req and fills defaults.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) (Request, error) {
	alg, err := ParseAlgorithm(string(req.Algorithm))
	if err != nil {
		return req, &ValidationError{Field: "algorithm_type", Reason: err.Error(), Err: err}
	}
	req.Algorithm = alg

	if req.Limit == 0 {
		req.Limit = e.config.Limits.DefaultLimit
	}
	if req.Limit < 1 || req.Limit > e.config.Limits.MaxLimit {
		return req, &ValidationError{
			Field:  "limit",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", e.config.Limits.MaxLimit, req.Limit),
		}
	}

	if requiresIdentity(alg) && req.SubjectID == "" && req.SessionID == "" {
		return req, &ValidationError{
			Field:  "subject_id",
			Reason: fmt.Sprintf("subject_id or session_id is required for %s recommendations", alg),
		}
	}

	if alg != AlgorithmMixed {
		if _, ok := e.strategy(alg); !ok {
			return req, &ValidationError{
				Field:  "algorithm_type",
				Reason: fmt.Sprintf("%s recommendations are not enabled", alg),
				Err:    ErrStrategyNotRegistered,
			}
		}
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	req.buildExcludeSet()
	return req, nil
}

func requiresIdentity(alg Algorithm) bool {
	switch alg {
	case AlgorithmCollaborative, AlgorithmGraph, AlgorithmAI:
		return true
	}
	return false
}

func (e *Engine) requestLogger(req *Request) zerolog.Logger {
	return e.logger.With().
		Str("request_id", req.RequestID).
		Str("subject_id", req.SubjectID).
		Str("algorithm", string(req.Algorithm)).
		Int("limit", req.Limit).
		Logger()
}

// dispatchMeta describes which strategies contributed.
type dispatchMeta struct {
	StrategiesUsed []Algorithm
	Excluded       map[string]string
	Fallback       bool
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) dispatch(ctx context.Context, req *Request, logger zerolog.Logger) ([]Item, dispatchMeta) {
	if req.Algorithm == AlgorithmMixed {
		return e.blend(ctx, req, logger)
	}

	meta := dispatchMeta{Excluded: map[string]string{}}
	s, _ := e.strategy(req.Algorithm)
	res := e.runStrategy(ctx, s, req, logger)
	if res.err == nil && len(res.items) > 0 {
		meta.StrategiesUsed = []Algorithm{res.name}
		return res.items, meta
	}
	if res.err != nil {
		meta.Excluded[string(res.name)] = res.kind
	}

	// Personalized strategies without signal degrade to trending.
	if req.Algorithm == AlgorithmTrending {
		return nil, meta
	}
	trending, ok := e.strategy(AlgorithmTrending)
	if !ok {
		return nil, meta
	}
	tr := e.runStrategy(ctx, trending, req, logger)
	if tr.err != nil {
		meta.Excluded[string(tr.name)] = tr.kind
		return nil, meta
	}
	meta.StrategiesUsed = []Algorithm{AlgorithmTrending}
	return tr.items, meta
}

// sanitize enforces the result contract: published, not excluded, category
// filter honored, distinct, at most limit.
func (e *Engine) sanitize(req *Request, items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, min(len(items), req.Limit))
	for _, it := range items {
		if !req.Eligible(&it.Article) {
			continue
		}
		if _, dup := seen[it.Article.ID]; dup {
			continue
		}
		seen[it.Article.ID] = struct{}{}
		out = append(out, it)
		if len(out) == req.Limit {
			break
		}
	}
	return out
}

// fallback serves editor-featured articles, then trending, so that a
// response is never empty while the catalog has eligible articles.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) fallback(ctx context.Context, req *Request, logger zerolog.Logger) []Item {
	// Use a fresh budget: the request context may already be exhausted.
	fbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Limits.StrategyTimeout)
	defer cancel()

	featured, err := e.catalog.FeaturedArticles(fbCtx, req.ExcludeArticleIDs, req.Limit*e.config.Scoring.CandidateMultiplier)
	if err != nil {
		logger.Error().Err(err).Msg("featured fallback failed")
	}

	items := make([]Item, 0, req.Limit)
	for i := range featured {
		a := featured[i]
		if !req.Eligible(&a) {
			continue
		}
		items = append(items, Item{
			Article:     a,
			Score:       0.5,
			ReasonType:  ReasonFallback,
			Explanation: "Selected by our editors",
			Algorithm:   AlgorithmFallback,
		})
		if len(items) == req.Limit {
			return items
		}
	}
	if len(items) > 0 {
		return items
	}

	if trending, ok := e.strategy(AlgorithmTrending); ok && req.Algorithm != AlgorithmTrending {
		res := e.runStrategy(fbCtx, trending, req, logger)
		if res.err == nil {
			return res.items
		}
	}
	return nil
}

// cacheKey is rec_{identity}_{algorithm}_{limit}_{category|all}, with a hash
// suffix when the request carries exclusions. Identity and category are quoted
// so no ID can produce another request's key.
func (e *Engine) cacheKey(req *Request) string {
	category := "all"
	if req.Category != "" {
		category = strconv.Quote(req.Category)
	}
	var b strings.Builder
	b.WriteString("rec_")
	b.WriteString(req.Identity())
	b.WriteByte('_')
	b.WriteString(string(req.Algorithm))
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(req.Limit))
	b.WriteByte('_')
	b.WriteString(category)
	if len(req.ExcludeArticleIDs) > 0 {
		ids := slices.Clone(req.ExcludeArticleIDs)
		slices.Sort(ids)
		b.WriteByte('_')
		b.WriteString(cache.GenerateKey("x", slices.Compact(ids)))
	}
	return b.String()
}

func (e *Engine) tryGetCachedResponse(key string, start time.Time) *Response {
	if !e.config.Cache.Enabled {
		return nil
	}
	cached, ok := e.responses.Get(key)
	metrics.RecordCacheLookup("responses", ok)
	if !ok {
		e.cacheMisses.Add(1)
		return nil
	}
	e.cacheHits.Add(1)

	resp := copyResponse(cached)
	resp.Metadata.CacheHit = true
	resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
	return resp
}

// copyResponse copies the item slice so callers cannot mutate cached state.
func copyResponse(resp *Response) *Response {
	items := make([]Item, len(resp.Items))
	copy(items, resp.Items)
	out := &Response{Items: items, Metadata: resp.Metadata}
	out.Metadata.StrategiesUsed = slices.Clone(resp.Metadata.StrategiesUsed)
	return out
}

// InvalidateSubject drops the subject's profile and cached responses.
func (e *Engine) InvalidateSubject(subjectID string) {
	if subjectID == "" {
		return
	}
	if e.profiles != nil {
		e.profiles.Invalidate(subjectID)
	}
	prefix := "rec_" + subjectIdentity(subjectID) + "_"
	e.responses.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// AnalyzeGraph returns diagnostics of the interaction graph.
func (e *Engine) AnalyzeGraph(ctx context.Context) (*GraphAnalysis, error) {
	e.regMu.RLock()
	g := e.graph
	e.regMu.RUnlock()
	if g == nil {
		return nil, fmt.Errorf("graph analysis: %w", ErrStrategyNotRegistered)
	}
	return g.AnalyzeGraph(ctx)
}

// Stats returns cumulative engine counters.
func (e *Engine) Stats() EngineStats {
	e.regMu.RLock()
	names := make([]Algorithm, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	e.regMu.RUnlock()
	slices.Sort(names)

	return EngineStats{
		Requests:         e.requestCount.Load(),
		CacheHits:        e.cacheHits.Load(),
		CacheMisses:      e.cacheMisses.Load(),
		Fallbacks:        e.fallbackCount.Load(),
		StrategyFailures: e.failureCount.Load(),
		Strategies:       names,
		CachedResponses:  e.responses.Len(),
	}
}

// Sweepers exposes the engine's caches to the periodic sweeper.
func (e *Engine) Sweepers() map[string]cache.Sweeper {
	return map[string]cache.Sweeper{"responses": e.responses}
}
