// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/metrics"
)

// strategyResult holds the outcome of one strategy run.
type strategyResult struct {
	name     Algorithm
	items    []Item
	err      error
	kind     string
	duration time.Duration
}

// runStrategy runs s under its own timeout and turns panics, timeouts and
// errors into an excluded result. It returns once the timeout fires even if
// the strategy ignores its context.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) runStrategy(ctx context.Context, s Strategy, req *Request, logger zerolog.Logger) strategyResult {
	name := s.Name()
	timeout := e.config.Limits.StrategyTimeout
	if ts, ok := s.(TimeoutStrategy); ok && ts.Timeout() > 0 {
		timeout = ts.Timeout()
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan strategyResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- strategyResult{name: name, err: &ComputationError{Strategy: name, Err: fmt.Errorf("panic: %v", r)}, kind: "panic"}
			}
		}()
		items, err := s.Score(runCtx, req)
		done <- strategyResult{name: name, items: items, err: err}
	}()

	var res strategyResult
	select {
	case res = <-done:
	case <-runCtx.Done():
		res = strategyResult{name: name, err: runCtx.Err()}
	}
	res.duration = time.Since(start)

	if res.err != nil && res.kind == "" {
		res.kind = classifyFailure(res.err)
		if res.kind == "error" {
			var ce *ComputationError
			if !errors.As(res.err, &ce) {
				res.err = &ComputationError{Strategy: name, Err: res.err}
			}
		}
	}
	metrics.RecordStrategyRun(string(name), res.kind, res.duration)

	if res.err != nil {
		e.failureCount.Add(1)
		event := logger.Warn()
		if res.kind == "upstream" {
			event = logger.Info()
		}
		event.
			Err(res.err).
			Str("strategy", string(name)).
			Str("kind", res.kind).
			Dur("duration", res.duration).
			Msg("strategy excluded")
		res.items = nil
	}
	return res
}

func classifyFailure(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// blendEligible reports whether alg can contribute to a mixed result for req.
// Strategies that key on a subject have no signal for anonymous sessions.
func blendEligible(alg Algorithm, req *Request) bool {
	switch alg {
	case AlgorithmCollaborative, AlgorithmGraph, AlgorithmAI:
		return req.SubjectID != ""
	case AlgorithmPersonal:
		// Without a subject personal delegates to trending, which already runs.
		return req.SubjectID != ""
	}
	return true
}

// blend runs every quota-carrying strategy concurrently, asking each for
// quota×CandidateMultiplier items. The first quota items of each are the
// picks, merged keeping each article's best-scoring entry; the rest form the
// reserve the rerankers draw on when a category is capped or picks run short.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) blend(ctx context.Context, req *Request, logger zerolog.Logger) ([]Item, dispatchMeta) {
	meta := dispatchMeta{Excluded: map[string]string{}}
	quotas := e.config.Quotas.Allocate(req.Limit)

	type job struct {
		strategy Strategy
		quota    int
	}
	jobs := make([]job, 0, len(quotas))
	for _, share := range e.config.Quotas.Shares() {
		n, ok := quotas[share.Algorithm]
		if !ok || !blendEligible(share.Algorithm, req) {
			continue
		}
		s, ok := e.strategy(share.Algorithm)
		if !ok {
			continue
		}
		jobs = append(jobs, job{strategy: s, quota: n})
	}

	// Trending also backs a mixed request whose personalized shares come up short.
	if _, queued := quotas[AlgorithmTrending]; !queued {
		if s, ok := e.strategy(AlgorithmTrending); ok {
			jobs = append(jobs, job{strategy: s, quota: 0})
		}
	}

	results := make([]strategyResult, len(jobs))
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(idx int, j job) {
			defer wg.Done()
			limit := j.quota
			if j.strategy.Name() == AlgorithmTrending {
				limit = max(limit, req.Limit)
			}
			limit = min(limit*e.config.Scoring.CandidateMultiplier, max(e.config.Limits.MaxCandidates, limit))
			results[idx] = e.runStrategy(ctx, j.strategy, req.WithLimit(limit), logger)
		}(i, jobs[i])
	}
	wg.Wait()

	primary := make([][]Item, 0, len(results))
	var reserve []Item
	for i, res := range results {
		if res.err != nil {
			meta.Excluded[string(res.name)] = res.kind
			continue
		}
		if len(res.items) == 0 {
			continue
		}
		quota := jobs[i].quota
		if quota > 0 {
			meta.StrategiesUsed = append(meta.StrategiesUsed, res.name)
		}
		if len(res.items) > quota {
			reserve = append(reserve, res.items[quota:]...)
		}
		primary = append(primary, Truncate(res.items, quota))
	}

	merged := MergeMax(primary...)
	reserve = withoutIDs(MergeMax(reserve), merged)
	if len(merged) == 0 && len(reserve) == 0 {
		return nil, meta
	}
	if len(meta.StrategiesUsed) == 0 {
		meta.StrategiesUsed = []Algorithm{AlgorithmTrending}
	}

	SortItems(merged)
	SortItems(reserve)
	rerankers := e.registeredRerankers()
	if len(rerankers) == 0 {
		return Truncate(e.backfill(merged, reserve, req.Limit), req.Limit), meta
	}
	for _, rr := range rerankers {
		merged = rr.Rerank(ctx, merged, reserve, req.Limit)
		reserve = nil
	}
	return Truncate(merged, req.Limit), meta
}

// withoutIDs drops the items whose article already appears in taken.
func withoutIDs(items, taken []Item) []Item {
	seen := make(map[string]struct{}, len(taken))
	for _, it := range taken {
		seen[it.Article.ID] = struct{}{}
	}
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it.Article.ID]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// backfill tops merged up to limit with reserve items not already present.
func (e *Engine) backfill(merged, reserve []Item, limit int) []Item {
	if len(merged) >= limit || len(reserve) == 0 {
		return merged
	}
	seen := make(map[string]struct{}, len(merged))
	for _, it := range merged {
		seen[it.Article.ID] = struct{}{}
	}
	for _, it := range reserve {
		if len(merged) >= limit {
			break
		}
		if _, ok := seen[it.Article.ID]; ok {
			continue
		}
		seen[it.Article.ID] = struct{}{}
		merged = append(merged, it)
	}
	return merged
}
