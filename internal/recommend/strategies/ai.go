// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package strategies

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/aiclient"
	"github.com/tomtom215/newsroom/internal/recommend"
)

const (
	aiRecentViews         = 20
	aiRecentLikes         = 10
	aiPreferredCategories = 5
	aiDefaultExplanation  = "Recommended by our AI model"
)

// AIRecommender is the external AI scoring service.
type AIRecommender interface {
	Recommend(ctx context.Context, req aiclient.RecommendRequest) (*aiclient.RecommendResponse, error)
}

// AI delegates scoring to the external AI service. Returned article IDs are
// re-fetched from the catalog and only eligible ones are kept.
type AI struct {
	client      AIRecommender
	catalog     recommend.ArticleCatalog
	events      recommend.InteractionStore
	profiles    recommend.ProfileSource
	timeout     time.Duration
	preferences aiclient.Preferences
	logger      zerolog.Logger
}

// NewAI creates the AI strategy. timeout is the strategy's run budget; the
// engine applies it in place of its default.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAI(client AIRecommender, catalog recommend.ArticleCatalog, events recommend.InteractionStore, profiles recommend.ProfileSource, timeout time.Duration, logger zerolog.Logger) *AI {
	return &AI{
		client:      client,
		catalog:     catalog,
		events:      events,
		profiles:    profiles,
		timeout:     timeout,
		preferences: aiclient.DefaultPreferences(),
		logger:      logger.With().Str("component", "ai_strategy").Logger(),
	}
}

// Name implements recommend.Strategy.
func (s *AI) Name() recommend.Algorithm {
	return recommend.AlgorithmAI
}

// Timeout implements recommend.TimeoutStrategy.
func (s *AI) Timeout() time.Duration {
	return s.timeout
}

// Score implements recommend.Strategy.
func (s *AI) Score(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	if req.SubjectID == "" {
		return nil, nil
	}

	aiReq, err := s.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Recommend(ctx, aiReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Recommendations) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(resp.Recommendations))
	for _, rec := range resp.Recommendations {
		ids = append(ids, rec.ArticleID)
	}
	found, err := s.catalog.ArticlesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ai candidates: %w", err)
	}
	articles := make(map[string]*recommend.Article, len(found))
	for i := range found {
		articles[found[i].ID] = &found[i]
	}

	items := make([]recommend.Item, 0, len(resp.Recommendations))
	seen := make(set, len(resp.Recommendations))
	dropped := 0
	for _, rec := range resp.Recommendations {
		a, ok := articles[rec.ArticleID]
		if !ok || !req.Eligible(a) || seen.has(rec.ArticleID) {
			dropped++
			continue
		}
		seen.add(rec.ArticleID)

		explanation := rec.Explanation
		if explanation == "" {
			explanation = aiDefaultExplanation
		}
		itemCtx := map[string]any{
			"confidence": rec.Confidence,
			"reasoning":  rec.Reasoning,
			"tags":       rec.Tags,
		}
		if model, ok := resp.Metadata["model"]; ok {
			itemCtx["model"] = model
		}
		items = append(items, recommend.Item{
			Article:     *a,
			Score:       min(max(rec.Score, 0), 1),
			ReasonType:  recommend.ReasonAI,
			Explanation: explanation,
			Algorithm:   recommend.AlgorithmAI,
			Context:     itemCtx,
		})
	}
	if dropped > 0 {
		s.logger.Debug().Str("subject_id", req.SubjectID).Int("dropped", dropped).Msg("dropped ai recommendations not in catalog or not eligible")
	}

	recommend.SortItems(items)
	return recommend.Truncate(items, req.Limit), nil
}

// buildRequest assembles the profile and reading context sent to the service.
// A profile that cannot be loaded is omitted rather than failing the call.
func (s *AI) buildRequest(ctx context.Context, req *recommend.Request) (aiclient.RecommendRequest, error) {
	out := aiclient.RecommendRequest{
		UserID:      req.SubjectID,
		Preferences: s.preferences,
		Limit:       req.Limit + len(req.ExcludeArticleIDs),
		ContentContext: aiclient.ContentContext{
			RecentlyViewed:      []string{},
			Liked:               []string{},
			PreferredCategories: []string{},
		},
	}

	if s.profiles != nil {
		profile, err := s.profiles.Profile(ctx, req.SubjectID)
		if err != nil {
			s.logger.Debug().Err(err).Str("subject_id", req.SubjectID).Msg("ai request without profile")
		} else {
			out.UserProfile = profile
			out.ContentContext.PreferredCategories = profile.TopCategories(aiPreferredCategories)
		}
	}

	events, err := s.events.EventsBySubjects(ctx, []string{req.SubjectID}, recommend.EventView, recommend.EventLike)
	if err != nil {
		return out, fmt.Errorf("load ai context: %w", err)
	}
	for _, ev := range events {
		switch ev.Type {
		case recommend.EventView:
			if len(out.ContentContext.RecentlyViewed) < aiRecentViews && !slices.Contains(out.ContentContext.RecentlyViewed, ev.ArticleID) {
				out.ContentContext.RecentlyViewed = append(out.ContentContext.RecentlyViewed, ev.ArticleID)
			}
		case recommend.EventLike:
			if len(out.ContentContext.Liked) < aiRecentLikes && !slices.Contains(out.ContentContext.Liked, ev.ArticleID) {
				out.ContentContext.Liked = append(out.ContentContext.Liked, ev.ArticleID)
			}
		}
	}
	return out, nil
}

var (
	_ recommend.Strategy        = (*AI)(nil)
	_ recommend.TimeoutStrategy = (*AI)(nil)
)
