// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package strategies

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/newsroom/internal/cache"
	"github.com/tomtom215/newsroom/internal/metrics"
	"github.com/tomtom215/newsroom/internal/recommend"
)

// seedConcurrency bounds the seeds of item-based CF resolved in parallel.
const seedConcurrency = 4

// Collaborative blends user-based and item-based collaborative filtering.
// Neighborhoods are cached per key and computed once for concurrent callers.
type Collaborative struct {
	cfg     recommend.CollaborativeConfig
	catalog recommend.ArticleCatalog
	events  recommend.InteractionStore
	logger  zerolog.Logger

	users     *cache.TTL[[]recommend.SimilarityScore]
	items     *cache.TTL[[]recommend.SimilarityScore]
	userGroup singleflight.Group
	itemGroup singleflight.Group
}

// NewCollaborative creates the collaborative strategy.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCollaborative(cfg recommend.CollaborativeConfig, catalog recommend.ArticleCatalog, events recommend.InteractionStore, logger zerolog.Logger, opts ...Option) *Collaborative {
	o := buildOptions(opts)
	return &Collaborative{
		cfg:     cfg,
		catalog: catalog,
		events:  events,
		logger:  logger.With().Str("component", "collaborative").Logger(),
		users:   cache.New[[]recommend.SimilarityScore](cfg.SimilarityTTL, cache.WithClock(o.now)),
		items:   cache.New[[]recommend.SimilarityScore](cfg.SimilarityTTL, cache.WithClock(o.now)),
	}
}

// Name implements recommend.Strategy.
func (c *Collaborative) Name() recommend.Algorithm {
	return recommend.AlgorithmCollaborative
}

// Sweepers exposes the similarity caches to the periodic sweeper.
func (c *Collaborative) Sweepers() map[string]cache.Sweeper {
	return map[string]cache.Sweeper{
		"similar_users": c.users,
		"similar_items": c.items,
	}
}

// Score takes ceil(UserShare·limit) items from user-based CF and the rest from
// item-based CF. A side that comes up short is topped up from the other. One
// side failing is tolerated; both failing is an error.
func (c *Collaborative) Score(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	if req.SubjectID == "" {
		return nil, nil
	}

	var (
		userItems, itemItems []recommend.Item
		userErr, itemErr     error
		wg                   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userItems, userErr = c.UserBased(ctx, req)
	}()
	go func() {
		defer wg.Done()
		itemItems, itemErr = c.ItemBased(ctx, req)
	}()
	wg.Wait()

	if userErr != nil && itemErr != nil {
		return nil, fmt.Errorf("collaborative filtering: user-based: %w; item-based: %v", userErr, itemErr)
	}
	if userErr != nil {
		c.logger.Warn().Err(userErr).Str("subject_id", req.SubjectID).Msg("user-based CF failed, using item-based only")
	}
	if itemErr != nil {
		c.logger.Warn().Err(itemErr).Str("subject_id", req.SubjectID).Msg("item-based CF failed, using user-based only")
	}

	userQuota := int(math.Ceil(c.cfg.UserShare * float64(req.Limit)))
	itemQuota := req.Limit - userQuota

	merged := recommend.MergeMax(recommend.Truncate(userItems, userQuota), recommend.Truncate(itemItems, itemQuota))
	if len(merged) < req.Limit {
		var rest []recommend.Item
		if len(userItems) > userQuota {
			rest = append(rest, userItems[userQuota:]...)
		}
		if len(itemItems) > itemQuota {
			rest = append(rest, itemItems[itemQuota:]...)
		}
		recommend.SortItems(rest)
		merged = topUp(merged, rest, req.Limit)
	}

	recommend.SortItems(merged)
	return recommend.Truncate(merged, req.Limit), nil
}

// topUp appends items from rest whose articles are not yet present until
// limit is reached.
func topUp(items, rest []recommend.Item, limit int) []recommend.Item {
	seen := make(set, len(items))
	for _, it := range items {
		seen.add(it.Article.ID)
	}
	for _, it := range rest {
		if len(items) >= limit {
			break
		}
		if seen.has(it.Article.ID) {
			continue
		}
		seen.add(it.Article.ID)
		items = append(items, it)
	}
	return items
}

// UserBased scores articles engaged with by the subject's nearest neighbors.
// An article's raw score is the sum of similarity × event weight over every
// neighbor event on it. Raw scores are divided by the largest one, so the best
// candidate scores 1 and the order is unchanged.
func (c *Collaborative) UserBased(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	own, err := c.events.EventsBySubjects(ctx, []string{req.SubjectID}, recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load subject events: %w", err)
	}
	engaged := articleSet(own)
	if len(engaged) == 0 {
		return nil, nil
	}

	similar, err := c.SimilarUsers(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	neighbors := similar[:min(len(similar), c.cfg.Neighbors)]
	if len(neighbors) == 0 {
		return nil, nil
	}

	simByUser := make(map[string]float64, len(neighbors))
	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		simByUser[n.B] = n.Value
		ids = append(ids, n.B)
	}

	events, err := c.events.EventsBySubjects(ctx, ids, recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load neighbor events: %w", err)
	}

	type candidate struct {
		score   float64
		bestSim float64
		voters  set
	}
	candidates := make(map[string]*candidate)
	var top float64
	for _, ev := range events {
		if engaged.has(ev.ArticleID) || req.Excluded(ev.ArticleID) {
			continue
		}
		cand, ok := candidates[ev.ArticleID]
		if !ok {
			cand = &candidate{voters: make(set)}
			candidates[ev.ArticleID] = cand
		}
		sim := simByUser[ev.SubjectID]
		cand.score += sim * ev.Type.Weight()
		cand.bestSim = max(cand.bestSim, sim)
		cand.voters.add(ev.SubjectID)
	}
	for _, cand := range candidates {
		top = max(top, cand.score)
	}
	if top > 0 {
		for _, cand := range candidates {
			cand.score /= top
		}
	}

	articles, err := c.loadEligible(ctx, req, mapKeys(candidates))
	if err != nil {
		return nil, err
	}

	items := make([]recommend.Item, 0, len(articles))
	for i := range articles {
		a := &articles[i]
		cand := candidates[a.ID]
		items = append(items, recommend.Item{
			Article:     *a,
			Score:       cand.score,
			ReasonType:  recommend.ReasonCollaborativeUser,
			Explanation: fmt.Sprintf("Similar users (%d%% similarity) liked this", int(math.Round(cand.bestSim*100))),
			Algorithm:   recommend.AlgorithmCollaborative,
			Context: map[string]any{
				"similarity": cand.bestSim,
				"neighbors":  len(cand.voters),
			},
		})
	}

	recommend.SortItems(items)
	return recommend.Truncate(items, req.Limit), nil
}

// SimilarUsers returns up to SimilarUsers neighbors of subjectID ordered by
// similarity. Results are cached; concurrent misses share one computation.
func (c *Collaborative) SimilarUsers(ctx context.Context, subjectID string) ([]recommend.SimilarityScore, error) {
	if scores, ok := c.users.Get(subjectID); ok {
		metrics.RecordCacheLookup("similar_users", true)
		return scores, nil
	}
	metrics.RecordCacheLookup("similar_users", false)

	v, err, _ := c.userGroup.Do(subjectID, func() (any, error) {
		scores, err := c.computeSimilarUsers(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		c.users.Set(subjectID, scores)
		return scores, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]recommend.SimilarityScore), nil
}

func (c *Collaborative) computeSimilarUsers(ctx context.Context, subjectID string) ([]recommend.SimilarityScore, error) {
	own, err := c.events.EventsBySubjects(ctx, []string{subjectID}, recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load subject events: %w", err)
	}
	target := articleSet(own)
	if len(target) == 0 {
		return []recommend.SimilarityScore{}, nil
	}

	coEvents, err := c.events.EventsByArticles(ctx, mapKeys(target), recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load co-engagement: %w", err)
	}
	overlap := make(map[string]int)
	seen := make(set)
	for _, ev := range coEvents {
		if ev.SubjectID == subjectID {
			continue
		}
		pair := ev.SubjectID + "\x00" + ev.ArticleID
		if seen.has(pair) {
			continue
		}
		seen.add(pair)
		overlap[ev.SubjectID]++
	}
	if len(overlap) == 0 {
		return []recommend.SimilarityScore{}, nil
	}
	candidates := topByCount(overlap, c.cfg.MaxCandidates)

	events, err := c.events.EventsBySubjects(ctx, candidates, recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load candidate events: %w", err)
	}
	sets := make(map[string]set, len(candidates))
	for _, ev := range events {
		s, ok := sets[ev.SubjectID]
		if !ok {
			s = make(set)
			sets[ev.SubjectID] = s
		}
		s.add(ev.ArticleID)
	}

	scores := make([]recommend.SimilarityScore, 0, len(sets))
	for userID, s := range sets {
		value, common := Similarity(target, s)
		if value <= 0 {
			continue
		}
		scores = append(scores, recommend.SimilarityScore{A: subjectID, B: userID, Value: value, CommonCount: common})
	}
	slices.SortFunc(scores, compareSimilarity)
	if len(scores) > c.cfg.SimilarUsers {
		scores = scores[:c.cfg.SimilarUsers]
	}

	c.logger.Debug().
		Str("subject_id", subjectID).
		Int("candidates", len(candidates)).
		Int("neighbors", len(scores)).
		Msg("computed similar users")
	return scores, nil
}

// ItemBased scores articles similar to the subject's most recent engagements.
// An article's score is its mean similarity over the seeds that have
// neighbors, and each item is attributed to the seed contributing most.
func (c *Collaborative) ItemBased(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	own, err := c.events.EventsBySubjects(ctx, []string{req.SubjectID}, recommend.GraphEvents...)
	if err != nil {
		return nil, fmt.Errorf("load subject events: %w", err)
	}
	engaged := articleSet(own)
	seeds := make([]string, 0, c.cfg.MaxSeeds)
	for _, ev := range own {
		if len(seeds) == c.cfg.MaxSeeds {
			break
		}
		if !slices.Contains(seeds, ev.ArticleID) {
			seeds = append(seeds, ev.ArticleID)
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	neighborhoods := make([][]recommend.SimilarityScore, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for i, seed := range seeds {
		g.Go(func() error {
			scores, err := c.SimilarItems(gctx, seed)
			if err != nil {
				return err
			}
			neighborhoods[i] = scores
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type candidate struct {
		total   float64
		best    float64
		basedOn string
	}
	candidates := make(map[string]*candidate)
	contributing := 0
	for i, scores := range neighborhoods {
		if len(scores) == 0 {
			continue
		}
		contributing++
		for _, s := range scores {
			if engaged.has(s.B) || req.Excluded(s.B) {
				continue
			}
			cand, ok := candidates[s.B]
			if !ok {
				cand = &candidate{}
				candidates[s.B] = cand
			}
			cand.total += s.Value
			if s.Value > cand.best {
				cand.best = s.Value
				cand.basedOn = seeds[i]
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := mapKeys(candidates)
	articles, err := c.loadEligible(ctx, req, ids)
	if err != nil {
		return nil, err
	}
	seedArticles, err := c.catalog.ArticlesByID(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("load seed articles: %w", err)
	}
	titles := make(map[string]string, len(seedArticles))
	for _, a := range seedArticles {
		titles[a.ID] = a.Title
	}

	items := make([]recommend.Item, 0, len(articles))
	for i := range articles {
		a := &articles[i]
		cand := candidates[a.ID]
		explanation := "Similar to articles you engaged with"
		if title := titles[cand.basedOn]; title != "" {
			explanation = fmt.Sprintf("Because you read %q", title)
		}
		items = append(items, recommend.Item{
			Article:     *a,
			Score:       cand.total / float64(contributing),
			ReasonType:  recommend.ReasonItemSimilarity,
			Explanation: explanation,
			Algorithm:   recommend.AlgorithmCollaborative,
			Context: map[string]any{
				"basedOnArticle": cand.basedOn,
				"similarity":     cand.best,
			},
		})
	}

	recommend.SortItems(items)
	return recommend.Truncate(items, req.Limit), nil
}

// SimilarItems returns up to SimilarItems articles similar to articleID,
// measured over the sets of subjects engaging with each article.
func (c *Collaborative) SimilarItems(ctx context.Context, articleID string) ([]recommend.SimilarityScore, error) {
	if scores, ok := c.items.Get(articleID); ok {
		metrics.RecordCacheLookup("similar_items", true)
		return scores, nil
	}
	metrics.RecordCacheLookup("similar_items", false)

	v, err, _ := c.itemGroup.Do(articleID, func() (any, error) {
		scores, err := c.computeSimilarItems(ctx, articleID)
		if err != nil {
			return nil, err
		}
		c.items.Set(articleID, scores)
		return scores, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]recommend.SimilarityScore), nil
}

func (c *Collaborative) computeSimilarItems(ctx context.Context, articleID string) ([]recommend.SimilarityScore, error) {
	seedEvents, err := c.events.EventsByArticles(ctx, []string{articleID}, recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load article events: %w", err)
	}
	audience := subjectSet(seedEvents)
	if len(audience) == 0 {
		return []recommend.SimilarityScore{}, nil
	}

	// Articles the audience also engaged with, by co-engagement count.
	audienceEvents, err := c.events.EventsBySubjects(ctx, topByCount(countOnes(audience), c.cfg.MaxCandidates), recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load audience events: %w", err)
	}
	co := make(map[string]int)
	seen := make(set)
	for _, ev := range audienceEvents {
		if ev.ArticleID == articleID {
			continue
		}
		pair := ev.SubjectID + "\x00" + ev.ArticleID
		if seen.has(pair) {
			continue
		}
		seen.add(pair)
		co[ev.ArticleID]++
	}
	if len(co) == 0 {
		return []recommend.SimilarityScore{}, nil
	}
	candidates := topByCount(co, c.cfg.MaxCandidates)

	candidateEvents, err := c.events.EventsByArticles(ctx, candidates, recommend.EngagementEvents...)
	if err != nil {
		return nil, fmt.Errorf("load candidate events: %w", err)
	}
	audiences := make(map[string]set, len(candidates))
	for _, ev := range candidateEvents {
		s, ok := audiences[ev.ArticleID]
		if !ok {
			s = make(set)
			audiences[ev.ArticleID] = s
		}
		s.add(ev.SubjectID)
	}

	scores := make([]recommend.SimilarityScore, 0, len(audiences))
	for other, s := range audiences {
		value, common := Similarity(audience, s)
		if value <= 0 {
			continue
		}
		scores = append(scores, recommend.SimilarityScore{A: articleID, B: other, Value: value, CommonCount: common})
	}
	slices.SortFunc(scores, compareSimilarity)
	if len(scores) > c.cfg.SimilarItems {
		scores = scores[:c.cfg.SimilarItems]
	}
	return scores, nil
}

// loadEligible fetches ids from the catalog and keeps those req may return.
func (c *Collaborative) loadEligible(ctx context.Context, req *recommend.Request, ids []string) ([]recommend.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)
	articles, err := c.catalog.ArticlesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate articles: %w", err)
	}
	return slices.DeleteFunc(articles, func(a recommend.Article) bool {
		return !req.Eligible(&a)
	}), nil
}

func articleSet(events []recommend.InteractionEvent) set {
	s := make(set, len(events))
	for _, ev := range events {
		s.add(ev.ArticleID)
	}
	return s
}

func subjectSet(events []recommend.InteractionEvent) set {
	s := make(set, len(events))
	for _, ev := range events {
		s.add(ev.SubjectID)
	}
	return s
}

// countOnes gives every member of s a count of one, so topByCount orders by key.
func countOnes(s set) map[string]int {
	out := make(map[string]int, len(s))
	for k := range s {
		out[k] = 1
	}
	return out
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Compile-time interface checks.
var (
	_ recommend.Strategy = (*Collaborative)(nil)
	_ recommend.Strategy = (*Personal)(nil)
	_ recommend.Strategy = (*Trending)(nil)
)
