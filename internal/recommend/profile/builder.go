// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package profile aggregates interaction events and feedback into per-subject
// interest profiles.
package profile

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/newsroom/internal/cache"
	"github.com/tomtom215/newsroom/internal/metrics"
	"github.com/tomtom215/newsroom/internal/recommend"
)

// Builder builds and caches profiles. It implements recommend.ProfileSource.
type Builder struct {
	cfg      recommend.ProfileConfig
	catalog  recommend.ArticleCatalog
	events   recommend.InteractionStore
	feedback recommend.FeedbackStore
	logger   zerolog.Logger
	now      func() time.Time

	profiles *cache.TTL[*recommend.Profile]
	group    singleflight.Group

	// generations guards against an in-flight rebuild caching a profile
	// that was invalidated while it ran.
	genMu       sync.Mutex
	generations map[string]uint64
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithFeedback folds explicit feedback into rebuilt profiles.
func WithFeedback(fs recommend.FeedbackStore) Option {
	return func(b *Builder) { b.feedback = fs }
}

// NewBuilder creates a profile builder.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBuilder(cfg recommend.ProfileConfig, catalog recommend.ArticleCatalog, events recommend.InteractionStore, logger zerolog.Logger, opts ...Option) *Builder {
	b := &Builder{
		cfg:     cfg,
		catalog: catalog,
		events:  events,
		logger:  logger.With().Str("component", "profile").Logger(),
		now:     time.Now,

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.profiles = cache.New[*recommend.Profile](cfg.TTL, cache.WithClock(b.now))
	return b
}

// Profile returns the cached profile for subjectID, rebuilding it when absent
// or invalidated. Concurrent callers for the same subject share one rebuild.
func (b *Builder) Profile(ctx context.Context, subjectID string) (*recommend.Profile, error) {
	if p, ok := b.profiles.Get(subjectID); ok {
		metrics.RecordCacheLookup("profiles", true)
		return p, nil
	}
	metrics.RecordCacheLookup("profiles", false)

	v, err, _ := b.group.Do(subjectID, func() (any, error) {
		gen := b.generation(subjectID)
		p, err := b.Build(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		if b.generation(subjectID) == gen {
			b.profiles.Set(subjectID, p)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*recommend.Profile), nil
}

// Invalidate forces the next Profile call for subjectID to rebuild.
func (b *Builder) Invalidate(subjectID string) {
	b.genMu.Lock()
	b.generations[subjectID]++
	b.genMu.Unlock()

	b.profiles.Delete(subjectID)
	b.group.Forget(subjectID)
}

func (b *Builder) generation(subjectID string) uint64 {
	b.genMu.Lock()
	defer b.genMu.Unlock()
	return b.generations[subjectID]
}

// Sweepers exposes the profile cache to the periodic sweeper.
func (b *Builder) Sweepers() map[string]cache.Sweeper {
	return map[string]cache.Sweeper{"profiles": b.profiles}
}

// Build aggregates a fresh profile without consulting the cache.
func (b *Builder) Build(ctx context.Context, subjectID string) (*recommend.Profile, error) {
	events, err := b.events.EventsBySubjects(ctx, []string{subjectID})
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", subjectID, err)
	}
	if len(events) > b.cfg.MaxEvents {
		events = events[:b.cfg.MaxEvents]
	}

	var feedback []recommend.Feedback
	if b.feedback != nil {
		feedback, err = b.feedback.FeedbackBySubject(ctx, subjectID)
		if err != nil {
			return nil, fmt.Errorf("load feedback for %s: %w", subjectID, err)
		}
	}

	now := b.now()
	if len(events) == 0 && len(feedback) == 0 {
		return recommend.NewProfile(subjectID, now), nil
	}

	ids := make([]string, 0, len(events)+len(feedback))
	for _, ev := range events {
		ids = append(ids, ev.ArticleID)
	}
	for _, fb := range feedback {
		ids = append(ids, fb.ArticleID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	list, err := b.catalog.ArticlesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load articles for %s: %w", subjectID, err)
	}
	articles := make(map[string]*recommend.Article, len(list))
	for i := range list {
		articles[list[i].ID] = &list[i]
	}

	p := Aggregate(subjectID, events, feedback, articles, now, b.cfg.DecayHalfLife)
	b.logger.Debug().
		Str("subject_id", subjectID).
		Int("events", p.EventCount).
		Int("feedback", p.FeedbackCount).
		Int("categories", len(p.CategoryWeights)).
		Msg("profile rebuilt")
	return p, nil
}

// Aggregate is the pure profile computation. Each event adds its type weight
// to the article's category and to each distinct tag; feedback adds its signed
// weight the same way. Contributions decay by half every halfLife (zero
// disables decay). Negative totals clamp to zero and each map is then scaled
// so its largest weight is 1. For a fixed now the result depends only on the
// input sets.
func Aggregate(subjectID string, events []recommend.InteractionEvent, feedback []recommend.Feedback, articles map[string]*recommend.Article, now time.Time, halfLife time.Duration) *recommend.Profile {
	p := recommend.NewProfile(subjectID, now)

	add := func(a *recommend.Article, w float64) {
		if a.CategoryID != "" {
			p.CategoryWeights[a.CategoryID] += w
		}
		for _, tag := range distinct(a.Tags) {
			p.InterestWeights[tag] += w
		}
	}

	for _, ev := range events {
		a, ok := articles[ev.ArticleID]
		if !ok {
			continue
		}
		add(a, ev.Type.Weight()*decay(now.Sub(ev.Timestamp), halfLife))
		p.EventCount++
	}
	for _, fb := range feedback {
		a, ok := articles[fb.ArticleID]
		if !ok {
			continue
		}
		add(a, fb.Type.Weight()*decay(now.Sub(fb.CreatedAt), halfLife))
		p.FeedbackCount++
	}

	normalize(p.CategoryWeights)
	normalize(p.InterestWeights)
	return p
}

// decay returns 0.5^(age/halfLife), 1 for future timestamps or no decay.
func decay(age, halfLife time.Duration) float64 {
	if halfLife <= 0 || age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}

// normalize drops non-positive weights and scales the rest into (0, 1].
func normalize(weights map[string]float64) {
	var hi float64
	for k, w := range weights {
		if w <= 0 {
			delete(weights, k)
			continue
		}
		hi = math.Max(hi, w)
	}
	if hi == 0 {
		return
	}
	for k, w := range weights {
		weights[k] = w / hi
	}
}

func distinct(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
