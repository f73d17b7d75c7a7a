// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package recommend ranks published articles for a subject or an anonymous
// session.
//
// The Engine owns request validation, the response cache, fallback and
// feedback attribution. Scoring lives behind the Strategy interface and is
// registered at startup:
//
//	engine, err := recommend.NewEngine(cfg, recommend.Dependencies{Catalog: store}, logger)
//	engine.RegisterStrategy(strategies.NewTrending(store, cfg))
//	engine.RegisterReranker(reranking.NewDiversityFreshness(cfg.Rerank, cfg.Scoring))
//
// Mixed requests run every strategy that carries a quota concurrently, each
// under its own timeout. A failing or slow strategy is logged and left out of
// the blend; when nothing survives the engine serves editor-featured articles.
//
// This package depends only on the cache and metrics packages. Concrete
// strategies, profile building and reranking live in subpackages so they can
// be composed and tested in isolation.
package recommend
