// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package app assembles the recommendation engine from configuration. The
// server and newsctl share it so both serve identical recommendations over
// the same store.
package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/aiclient"
	"github.com/tomtom215/newsroom/internal/cache"
	"github.com/tomtom215/newsroom/internal/config"
	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/recommend/profile"
	"github.com/tomtom215/newsroom/internal/recommend/reranking"
	"github.com/tomtom215/newsroom/internal/recommend/strategies"
)

// Backend is everything the engine persists to and reads from.
// *store.Store and recommendtest.Store implement it.
type Backend interface {
	recommend.ArticleCatalog
	recommend.InteractionStore
	recommend.InteractionRecorder
	recommend.FeedbackStore
	recommend.RecommendationLogStore
}

// Recommender holds the engine and the parts the supervisor and the HTTP
// layer need direct access to.
type Recommender struct {
	Engine   *recommend.Engine
	Profiles *profile.Builder
	Graph    *strategies.Graph

	// AI is nil unless ai.enabled is set.
	AI *aiclient.Client

	sweepers []map[string]cache.Sweeper
}

// Options tune NewRecommender for tests and offline tools.
type Options struct {
	// Publisher receives domain events after persistence. Nil disables
	// publishing.
	Publisher recommend.EventPublisher

	// Clock overrides time.Now everywhere in the engine.
	Clock func() time.Time
}

// NewRecommender builds the engine over backend and registers the personal,
// collaborative, graph and trending strategies, the diversity reranker and,
// when cfg.AI.Enabled, the AI strategy.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func NewRecommender(cfg *config.Config, backend Backend, opts Options, logger zerolog.Logger) (*Recommender, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rcfg := &cfg.Recommend

	profiles := profile.NewBuilder(rcfg.Profile, backend, backend, logger,
		profile.WithClock(clock), profile.WithFeedback(backend))

	engine, err := recommend.NewEngine(rcfg, recommend.Dependencies{
		Catalog:   backend,
		Profiles:  profiles,
		Recorder:  backend,
		Feedback:  backend,
		Logs:      backend,
		Publisher: opts.Publisher,
		Clock:     clock,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create recommendation engine: %w", err)
	}

	withClock := strategies.WithClock(clock)
	trending := strategies.NewTrending(backend, rcfg.Scoring, withClock)
	collaborative := strategies.NewCollaborative(rcfg.Collaborative, backend, backend, logger, withClock)
	graph := strategies.NewGraph(rcfg, backend, backend, logger, withClock)

	engine.RegisterStrategy(trending)
	engine.RegisterStrategy(strategies.NewPersonal(backend, profiles, trending, rcfg, withClock))
	engine.RegisterStrategy(collaborative)
	engine.RegisterStrategy(graph)
	engine.SetGraphAnalyzer(graph)
	engine.RegisterReranker(reranking.NewDiversityFreshness(rcfg.Rerank, rcfg.Scoring.RecencyWindowDays, clock))

	r := &Recommender{
		Engine:   engine,
		Profiles: profiles,
		Graph:    graph,
		sweepers: []map[string]cache.Sweeper{engine.Sweepers(), profiles.Sweepers(), collaborative.Sweepers()},
	}

	if cfg.AI.Enabled {
		client, err := aiclient.New(cfg.AI.ClientConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("create AI client: %w", err)
		}
		engine.RegisterStrategy(strategies.NewAI(client, backend, backend, profiles, cfg.AI.Timeout, logger))
		r.AI = client
	}

	logger.Info().
		Strs("strategies", algorithmNames(engine.Stats().Strategies)).
		Dur("cache_ttl", rcfg.Cache.TTL).
		Msg("recommendation engine ready")
	return r, nil
}

// Sweepers returns every TTL cache owned by the engine and its strategies.
func (r *Recommender) Sweepers() []map[string]cache.Sweeper {
	return r.sweepers
}

func algorithmNames(algs []recommend.Algorithm) []string {
	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = string(a)
	}
	return names
}
