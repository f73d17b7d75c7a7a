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

// Content-based score weights.
const (
	categoryWeight   = 0.4
	tagWeight        = 0.3
	recencyWeight    = 0.2
	popularityWeight = 0.1

	// strongCategoryMatch switches the explanation to the category wording.
	strongCategoryMatch = 0.5

	// topCategories widens the candidate set beyond the newest articles.
	topCategories = 3
)

// Personal scores candidates against the subject's interest profile.
type Personal struct {
	catalog       recommend.ArticleCatalog
	profiles      recommend.ProfileSource
	trending      recommend.Strategy
	cfg           recommend.ScoringConfig
	maxCandidates int
	now           func() time.Time
}

// NewPersonal creates the personal strategy. trending serves subjects that
// have no profile signal.
func NewPersonal(catalog recommend.ArticleCatalog, profiles recommend.ProfileSource, trending recommend.Strategy, cfg *recommend.Config, opts ...Option) *Personal {
	o := buildOptions(opts)
	return &Personal{
		catalog:       catalog,
		profiles:      profiles,
		trending:      trending,
		cfg:           cfg.Scoring,
		maxCandidates: cfg.Limits.MaxCandidates,
		now:           o.now,
	}
}

// Name implements recommend.Strategy.
func (p *Personal) Name() recommend.Algorithm {
	return recommend.AlgorithmPersonal
}

// Score ranks candidates by
// 0.4·category + 0.3·tags + 0.2·recency + 0.1·popularity.
func (p *Personal) Score(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	if req.SubjectID == "" {
		return p.trending.Score(ctx, req)
	}

	profile, err := p.profiles.Profile(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.Empty() {
		return p.trending.Score(ctx, req)
	}

	candidates, err := p.candidates(ctx, req, profile)
	if err != nil {
		return nil, err
	}

	now := p.now()
	items := make([]recommend.Item, 0, len(candidates))
	for i := range candidates {
		a := &candidates[i]
		if !req.Eligible(a) {
			continue
		}
		items = append(items, p.scoreArticle(profile, a, now))
	}

	recommend.SortItems(items)
	return recommend.Truncate(items, req.Limit), nil
}

// candidates are the newest limit×multiplier articles plus, without a category
// filter, the newest of each of the subject's top categories, so an older
// article in a strong category still gets scored.
func (p *Personal) candidates(ctx context.Context, req *recommend.Request, profile *recommend.Profile) ([]recommend.Article, error) {
	depth := min(req.Limit*p.cfg.CandidateMultiplier, p.maxCandidates)
	categories := []string{req.Category}
	if req.Category == "" {
		categories = append(categories, profile.TopCategories(topCategories)...)
	}

	seen := make(map[string]struct{})
	var out []recommend.Article
	for _, category := range categories {
		list, err := p.catalog.PublishedArticles(ctx, recommend.ArticleQuery{
			Category:   category,
			ExcludeIDs: req.ExcludeArticleIDs,
			Order:      recommend.OrderNewest,
			Limit:      depth,
		})
		if err != nil {
			return nil, fmt.Errorf("load candidates: %w", err)
		}
		for i := range list {
			if _, dup := seen[list[i].ID]; dup {
				continue
			}
			seen[list[i].ID] = struct{}{}
			out = append(out, list[i])
		}
		if len(out) >= p.maxCandidates {
			return out[:p.maxCandidates], nil
		}
	}
	return out, nil
}

func (p *Personal) scoreArticle(profile *recommend.Profile, a *recommend.Article, now time.Time) recommend.Item {
	category := profile.CategoryWeight(a.CategoryID)
	tags := profile.MeanTagWeight(a.Tags)
	recency := recommend.Recency(a, now, p.cfg.RecencyWindowDays)
	popularity := recommend.NormalizedPopularity(a)

	explanation := "Based on your reading interests"
	if category > strongCategoryMatch {
		explanation = "Because you often read " + a.CategoryID
	}

	return recommend.Item{
		Article:     *a,
		Score:       categoryWeight*category + tagWeight*tags + recencyWeight*recency + popularityWeight*popularity,
		ReasonType:  recommend.ReasonInterest,
		Explanation: explanation,
		Algorithm:   recommend.AlgorithmPersonal,
		Context: map[string]any{
			"categoryMatch": category,
			"tagMatch":      tags,
			"recency":       recency,
			"popularity":    popularity,
		},
	}
}
