// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package strategies

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// Trending ranks recently published articles by popularity plus recency. It
// needs no subject and is the engine's universal backstop.
type Trending struct {
	catalog recommend.ArticleCatalog
	cfg     recommend.ScoringConfig
	now     func() time.Time
}

// NewTrending creates the trending strategy.
func NewTrending(catalog recommend.ArticleCatalog, cfg recommend.ScoringConfig, opts ...Option) *Trending {
	o := buildOptions(opts)
	return &Trending{catalog: catalog, cfg: cfg, now: o.now}
}

// Name implements recommend.Strategy.
func (t *Trending) Name() recommend.Algorithm {
	return recommend.AlgorithmTrending
}

// Score returns articles published within the trending window in catalog
// popularity order (views, likes, newest). The score is raw popularity plus
// recency and is not used to reorder.
func (t *Trending) Score(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	now := t.now()
	articles, err := t.catalog.PublishedArticles(ctx, recommend.ArticleQuery{
		Category:   req.Category,
		Since:      now.Add(-t.cfg.TrendingWindow),
		ExcludeIDs: req.ExcludeArticleIDs,
		Order:      recommend.OrderPopular,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load trending articles: %w", err)
	}

	items := make([]recommend.Item, 0, len(articles))
	for i := range articles {
		a := &articles[i]
		if !req.Eligible(a) {
			continue
		}
		recency := recommend.Recency(a, now, t.cfg.RecencyWindowDays)
		items = append(items, recommend.Item{
			Article:     *a,
			Score:       recommend.Popularity(a) + recency,
			ReasonType:  recommend.ReasonTrending,
			Explanation: fmt.Sprintf("Trending now with %d views", a.ViewCount),
			Algorithm:   recommend.AlgorithmTrending,
			Context: map[string]any{
				"views":   a.ViewCount,
				"likes":   a.LikeCount,
				"recency": recency,
			},
		})
	}
	return recommend.Truncate(items, req.Limit), nil
}
