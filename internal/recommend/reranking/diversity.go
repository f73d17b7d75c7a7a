// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package reranking adjusts merged recommendation lists.
package reranking

import (
	"context"
	"math"
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// DiversityFreshness adds a diversity and a freshness bonus to each item and
// then caps how many items a single category may take.
//
//	diversity = 1 - sameCategory/total
//	freshness = max(0, 1 - days/windowDays)
//	final     = base + DiversityFactor·diversity + FreshnessFactor·freshness
//
// Counts come from the quota picks. Reserve items are scored the same way and
// only fill slots the picks leave open. The category cap applies when
// DiversityFactor is positive and picks and reserve together span more than
// one category. Slots a capped category gives up go to the best items of other
// categories; when those run out the list stays short of limit.
type DiversityFreshness struct {
	cfg        recommend.RerankConfig
	windowDays float64
	now        func() time.Time
}

// NewDiversityFreshness creates the reranker.
func NewDiversityFreshness(cfg recommend.RerankConfig, windowDays float64, now func() time.Time) *DiversityFreshness {
	if now == nil {
		now = time.Now
	}
	return &DiversityFreshness{cfg: cfg, windowDays: windowDays, now: now}
}

// Name implements recommend.Reranker.
func (d *DiversityFreshness) Name() string {
	return "diversity_freshness"
}

// Rerank implements recommend.Reranker.
func (d *DiversityFreshness) Rerank(_ context.Context, items, reserve []recommend.Item, limit int) []recommend.Item {
	if len(items) == 0 {
		items, reserve = reserve, nil
	}
	if len(items) == 0 || limit <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Article.CategoryID]++
	}
	picks := d.score(items, counts, len(items), nil)
	spare := d.score(reserve, counts, len(items), picks)

	categories := len(counts)
	for _, it := range spare {
		if _, ok := counts[it.Article.CategoryID]; !ok {
			counts[it.Article.CategoryID] = 0
			categories++
		}
	}

	perCategory := limit
	if d.cfg.DiversityFactor > 0 && categories > 1 {
		perCategory = CategoryCap(d.cfg.MaxCategoryShare, limit)
	}
	out := selectCapped(append(picks, spare...), limit, perCategory)
	recommend.SortItems(out)
	return out
}

// score returns sorted copies of items with the bonuses applied, skipping IDs
// already present in taken.
func (d *DiversityFreshness) score(items []recommend.Item, counts map[string]int, total int, taken []recommend.Item) []recommend.Item {
	skip := make(map[string]struct{}, len(taken))
	for _, it := range taken {
		skip[it.Article.ID] = struct{}{}
	}

	now := d.now()
	out := make([]recommend.Item, 0, len(items))
	for _, it := range items {
		if _, dup := skip[it.Article.ID]; dup {
			continue
		}
		skip[it.Article.ID] = struct{}{}

		diversity := 1 - float64(counts[it.Article.CategoryID])/float64(total)
		freshness := recommend.Recency(&it.Article, now, d.windowDays)

		ctx := make(map[string]any, len(it.Context)+3)
		for k, v := range it.Context {
			ctx[k] = v
		}
		ctx["baseScore"] = it.Score
		ctx["diversityBonus"] = diversity
		ctx["freshnessBonus"] = freshness

		it.Score += d.cfg.DiversityFactor*diversity + d.cfg.FreshnessFactor*freshness
		it.Context = ctx
		out = append(out, it)
	}
	recommend.SortItems(out)
	return out
}

// selectCapped takes up to limit items in order with at most perCategory per
// category.
func selectCapped(ordered []recommend.Item, limit, perCategory int) []recommend.Item {
	out := make([]recommend.Item, 0, min(limit, len(ordered)))
	taken := make(map[string]int)
	for _, it := range ordered {
		if len(out) == limit {
			break
		}
		if taken[it.Article.CategoryID] >= perCategory {
			continue
		}
		taken[it.Article.CategoryID]++
		out = append(out, it)
	}
	return out
}

// CategoryCap is the most items of one category allowed in a list of limit:
// ceil(share·limit), but at least 1.
func CategoryCap(share float64, limit int) int {
	return max(1, int(math.Ceil(share*float64(limit)-1e-9)))
}

var _ recommend.Reranker = (*DiversityFreshness)(nil)
