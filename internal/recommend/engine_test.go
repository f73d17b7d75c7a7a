// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/recommend/profile"
	"github.com/tomtom215/newsroom/internal/recommend/recommendtest"
	"github.com/tomtom215/newsroom/internal/recommend/reranking"
	"github.com/tomtom215/newsroom/internal/recommend/strategies"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func article(id, category string, ageDays float64, views, likes int64) recommend.Article {
	return recommend.Article{
		ID:          id,
		Title:       "Title " + id,
		CategoryID:  category,
		Tags:        []string{category + "-tag"},
		PublishedAt: testNow.Add(-time.Duration(ageDays * 24 * float64(time.Hour))),
		ViewCount:   views,
		LikeCount:   likes,
		Status:      recommend.StatusPublished,
	}
}

func like(subject, articleID string, ageHours int) recommend.InteractionEvent {
	return recommend.InteractionEvent{
		SubjectID: subject,
		ArticleID: articleID,
		Type:      recommend.EventLike,
		Timestamp: testNow.Add(-time.Duration(ageHours) * time.Hour),
	}
}

// newsroom is a catalog with a dominant news category, a tech niche shared by
// u1's neighbor u2, and drafts that must never be served.
func newsroom() *recommendtest.Store {
	store := recommendtest.NewStore()
	for i, views := range []int64{6000, 5000, 4000, 3000, 2000, 1000} {
		store.AddArticles(article("n"+string(rune('1'+i)), "news", float64(i%3)+0.5, views, views/10))
	}
	store.AddArticles(
		article("t1", "tech", 1, 20, 3),
		article("t2", "tech", 2, 15, 2),
		article("t3", "tech", 3, 10, 1),
	)
	draft := article("draft", "news", 0.1, 99999, 9999)
	draft.Status = recommend.StatusDraft
	featured := article("editor", "opinion", 10, 5, 1)
	featured.Featured = true
	store.AddArticles(draft, featured)

	store.AddEvents(
		like("u1", "n1", 20), like("u1", "n2", 19),
		like("u2", "n1", 30), like("u2", "n2", 29),
		like("u2", "t1", 10), like("u2", "t2", 9), like("u2", "t3", 8),
		like("u3", "draft", 1),
	)
	return store
}

type testEngine struct {
	*recommend.Engine
	store *recommendtest.Store
	graph *strategies.Graph
}

func newEngine(t *testing.T, store *recommendtest.Store, mutate func(*recommend.Config)) *testEngine {
	t.Helper()

	cfg := recommend.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	profiles := profile.NewBuilder(cfg.Profile, store, store, zerolog.Nop(), profile.WithClock(clock), profile.WithFeedback(store))
	engine, err := recommend.NewEngine(cfg, recommend.Dependencies{
		Catalog:  store,
		Profiles: profiles,
		Recorder: store,
		Feedback: store,
		Logs:     store,
		Clock:    clock,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	trending := strategies.NewTrending(store, cfg.Scoring, strategies.WithClock(clock))
	graph := strategies.NewGraph(cfg, store, store, zerolog.Nop(), strategies.WithClock(clock))
	engine.RegisterStrategy(trending)
	engine.RegisterStrategy(strategies.NewPersonal(store, profiles, trending, cfg, strategies.WithClock(clock)))
	engine.RegisterStrategy(strategies.NewCollaborative(cfg.Collaborative, store, store, zerolog.Nop(), strategies.WithClock(clock)))
	engine.RegisterStrategy(graph)
	engine.SetGraphAnalyzer(graph)
	engine.RegisterReranker(reranking.NewDiversityFreshness(cfg.Rerank, cfg.Scoring.RecencyWindowDays, clock))

	return &testEngine{Engine: engine, store: store, graph: graph}
}

func ids(items []recommend.Item) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Article.ID
	}
	return strings.Join(out, ",")
}

func mustRecommend(t *testing.T, e *testEngine, req recommend.Request) *recommend.Response {
	t.Helper()
	resp, err := e.GetRecommendations(context.Background(), req)
	if err != nil {
		t.Fatalf("GetRecommendations(%+v): %v", req, err)
	}
	return resp
}

func assertContract(t *testing.T, e *testEngine, req recommend.Request, resp *recommend.Response) {
	t.Helper()

	limit := req.Limit
	if limit == 0 {
		limit = e.Config().Limits.DefaultLimit
	}
	if len(resp.Items) > limit {
		t.Errorf("%d items exceed limit %d", len(resp.Items), limit)
	}
	seen := make(map[string]bool)
	for _, it := range resp.Items {
		if seen[it.Article.ID] {
			t.Errorf("duplicate article %s", it.Article.ID)
		}
		seen[it.Article.ID] = true
		if !it.Article.Published() {
			t.Errorf("unpublished article %s", it.Article.ID)
		}
		for _, x := range req.ExcludeArticleIDs {
			if x == it.Article.ID {
				t.Errorf("excluded article %s returned", x)
			}
		}
		if req.Category != "" && it.Article.CategoryID != req.Category {
			t.Errorf("article %s outside category %s", it.Article.ID, req.Category)
		}
	}
}

func TestGetRecommendationsValidation(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)

	tests := []struct {
		name    string
		req     recommend.Request
		field   string
		wrapped error
	}{
		{"limit too large", recommend.Request{SubjectID: "u1", Limit: 101}, "limit", nil},
		{"negative limit", recommend.Request{SubjectID: "u1", Limit: -1}, "limit", nil},
		{"unknown algorithm", recommend.Request{SubjectID: "u1", Algorithm: "magic"}, "algorithm_type", recommend.ErrUnknownAlgorithm},
		{"collaborative without identity", recommend.Request{Algorithm: recommend.AlgorithmCollaborative}, "subject_id", nil},
		{"graph without identity", recommend.Request{Algorithm: recommend.AlgorithmGraph}, "subject_id", nil},
		{"ai not registered", recommend.Request{SubjectID: "u1", Algorithm: recommend.AlgorithmAI}, "algorithm_type", recommend.ErrStrategyNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := e.GetRecommendations(context.Background(), tt.req)
			if resp != nil {
				t.Errorf("expected nil response, got %d items", len(resp.Items))
			}
			var verr *recommend.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %s, want %s", verr.Field, tt.field)
			}
			if tt.wrapped != nil && !errors.Is(err, tt.wrapped) {
				t.Errorf("err = %v, want wrapping %v", err, tt.wrapped)
			}
		})
	}
}

func TestAnonymousTrendingAndMixedAllowed(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	for _, alg := range []recommend.Algorithm{recommend.AlgorithmTrending, recommend.AlgorithmMixed, ""} {
		req := recommend.Request{Algorithm: alg, Limit: 4}
		resp := mustRecommend(t, e, req)
		assertContract(t, e, req, resp)
		if len(resp.Items) == 0 {
			t.Errorf("%q: no items for anonymous request", alg)
		}
	}
}

func TestResultContract(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)

	tests := []recommend.Request{
		{SubjectID: "u1", Limit: 5},
		{SubjectID: "u1", Limit: 3, ExcludeArticleIDs: []string{"n3", "t1"}},
		{SubjectID: "u1", Algorithm: recommend.AlgorithmPersonal, Limit: 10},
		{SubjectID: "u1", Algorithm: recommend.AlgorithmCollaborative, Limit: 2},
		{SubjectID: "u1", Algorithm: recommend.AlgorithmGraph, Limit: 4},
		{SubjectID: "u3", Algorithm: recommend.AlgorithmTrending, Limit: 4, Category: "tech"},
		{SessionID: "s1", Limit: 0},
	}
	for _, req := range tests {
		resp := mustRecommend(t, e, req)
		assertContract(t, e, req, resp)
		if resp.Metadata.RequestID == "" {
			t.Errorf("%+v: missing request id", req)
		}
	}
}

func TestIdempotentWithinTTL(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	req := recommend.Request{SubjectID: "u1", Limit: 5, ExcludeArticleIDs: []string{"n4"}}

	first := mustRecommend(t, e, req)
	second := mustRecommend(t, e, req)
	if ids(first.Items) != ids(second.Items) {
		t.Errorf("results differ: %s vs %s", ids(first.Items), ids(second.Items))
	}
	if first.Metadata.CacheHit || !second.Metadata.CacheHit {
		t.Errorf("cache hits = %v, %v; want false, true", first.Metadata.CacheHit, second.Metadata.CacheHit)
	}

	other := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Limit: 5, ExcludeArticleIDs: []string{"n5"}})
	if other.Metadata.CacheHit {
		t.Error("different exclusions shared a cache entry")
	}

	if err := e.RecordInteraction(context.Background(), like("u1", "t3", 0)); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if again := mustRecommend(t, e, req); again.Metadata.CacheHit {
		t.Error("cache entry survived a new interaction")
	}
}

func TestColdStartPersonalMatchesTrending(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)

	personal := mustRecommend(t, e, recommend.Request{SubjectID: "newcomer", Algorithm: recommend.AlgorithmPersonal, Limit: 5})
	trending := mustRecommend(t, e, recommend.Request{SubjectID: "newcomer", Algorithm: recommend.AlgorithmTrending, Limit: 5})
	if len(personal.Items) == 0 {
		t.Fatal("no items for cold start")
	}
	if ids(personal.Items) != ids(trending.Items) {
		t.Errorf("personal %s != trending %s", ids(personal.Items), ids(trending.Items))
	}
}

func TestCollaborativePrefersNeighborArticles(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	resp := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Algorithm: recommend.AlgorithmCollaborative, Limit: 3})

	if len(resp.Items) == 0 {
		t.Fatal("no collaborative items")
	}
	for i, it := range resp.Items {
		if it.Article.CategoryID != "tech" {
			t.Errorf("position %d: %s (%s) ranked above neighbor articles", i, it.Article.ID, it.Article.CategoryID)
		}
		if it.Algorithm != recommend.AlgorithmCollaborative {
			t.Errorf("algorithm = %s", it.Algorithm)
		}
	}
}

func TestMixedCapsCategoryShare(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), func(cfg *recommend.Config) {
		cfg.Quotas = recommend.QuotaConfig{Personal: 0.4, Collaborative: 0.3, Trending: 0.3}
	})

	req := recommend.Request{SubjectID: "u1", Limit: 5}
	resp := mustRecommend(t, e, req)
	assertContract(t, e, req, resp)

	counts := map[string]int{}
	for _, it := range resp.Items {
		counts[it.Article.CategoryID]++
	}
	if len(counts) < 2 {
		t.Fatalf("expected at least two categories, got %v", counts)
	}
	for category, n := range counts {
		if n > 3 {
			t.Errorf("category %s occupies %d of 5 slots", category, n)
		}
	}
	for _, it := range resp.Items {
		if _, ok := it.Context["diversityBonus"]; !ok {
			t.Errorf("%s was not reranked", it.Article.ID)
		}
	}
}

// stubStrategy is a scripted strategy.
type stubStrategy struct {
	name   recommend.Algorithm
	items  []recommend.Item
	err    error
	panics bool
	block  chan struct{}
}

func (s *stubStrategy) Name() recommend.Algorithm { return s.name }

func (s *stubStrategy) Score(_ context.Context, _ *recommend.Request) ([]recommend.Item, error) {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("scorer bug")
	}
	return s.items, s.err
}

func TestFailingStrategiesAreExcluded(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), func(cfg *recommend.Config) {
		cfg.Limits.StrategyTimeout = 50 * time.Millisecond
	})
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	e.RegisterStrategy(&stubStrategy{name: recommend.AlgorithmGraph, err: errors.New("graph store corrupted")})
	e.RegisterStrategy(&stubStrategy{name: recommend.AlgorithmCollaborative, panics: true})
	e.RegisterStrategy(&stubStrategy{name: recommend.AlgorithmPersonal, block: block})

	// Every share is non-zero at limit 10, so each stub gets to run.
	start := time.Now()
	req := recommend.Request{SubjectID: "u1", Limit: 10}
	resp := mustRecommend(t, e, req)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("blend took %v despite strategy timeout", elapsed)
	}
	assertContract(t, e, req, resp)

	if len(resp.Items) == 0 {
		t.Fatal("blend returned nothing although trending succeeded")
	}
	want := map[string]string{"graph": "error", "collaborative": "panic", "personal": "timeout"}
	for name, kind := range want {
		if got := resp.Metadata.Excluded[name]; got != kind {
			t.Errorf("excluded[%s] = %q, want %q", name, got, kind)
		}
	}
	if resp.Metadata.Fallback {
		t.Error("unexpected fallback")
	}
}

func TestUpstreamFailureDegradesToTrending(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	e.RegisterStrategy(&stubStrategy{name: recommend.AlgorithmAI, err: recommend.ErrUpstreamUnavailable})

	resp := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Algorithm: recommend.AlgorithmAI, Limit: 3})
	if len(resp.Items) == 0 {
		t.Fatal("no items")
	}
	if resp.Metadata.Excluded["ai"] != "upstream" {
		t.Errorf("excluded = %v", resp.Metadata.Excluded)
	}
	if len(resp.Metadata.StrategiesUsed) != 1 || resp.Metadata.StrategiesUsed[0] != recommend.AlgorithmTrending {
		t.Errorf("strategies used = %v", resp.Metadata.StrategiesUsed)
	}
}

func TestFallbackToFeaturedWhenEverythingFails(t *testing.T) {
	t.Parallel()

	store := newsroom()
	cfg := recommend.DefaultConfig()
	engine, err := recommend.NewEngine(cfg, recommend.Dependencies{Catalog: store, Logs: store, Clock: clock}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for _, alg := range []recommend.Algorithm{recommend.AlgorithmTrending, recommend.AlgorithmPersonal} {
		engine.RegisterStrategy(&stubStrategy{name: alg, err: errors.New("down")})
	}
	e := &testEngine{Engine: engine, store: store}

	req := recommend.Request{SubjectID: "u1", Limit: 3}
	resp := mustRecommend(t, e, req)
	if !resp.Metadata.Fallback {
		t.Fatal("expected fallback")
	}
	if ids(resp.Items) != "editor" {
		t.Fatalf("fallback = %s, want editor", ids(resp.Items))
	}
	it := resp.Items[0]
	if it.ReasonType != recommend.ReasonFallback || it.Score != 0.5 || it.Algorithm != recommend.AlgorithmFallback {
		t.Errorf("fallback item = %+v", it)
	}

	if again := mustRecommend(t, e, req); again.Metadata.CacheHit {
		t.Error("fallback response was cached")
	}

	// Excluding the only featured article leaves nothing to serve.
	empty := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Limit: 3, ExcludeArticleIDs: []string{"editor"}})
	if len(empty.Items) != 0 {
		t.Errorf("got %s, want empty", ids(empty.Items))
	}
}

func TestFeedbackAttributionAndStats(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	resp := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Algorithm: recommend.AlgorithmTrending, Limit: 4})
	if len(resp.Items) != 4 {
		t.Fatalf("got %d items", len(resp.Items))
	}
	logs := e.store.Logs()
	if len(logs) != 4 || logs[0].Position != 1 || !logs[0].Shown {
		t.Fatalf("logs = %+v", logs)
	}

	first := resp.Items[0].Article.ID
	ctx := context.Background()
	for _, fb := range []recommend.Feedback{
		{SubjectID: "u1", ArticleID: first, Type: recommend.FeedbackClicked},
		{SubjectID: "u1", ArticleID: first, Type: recommend.FeedbackClicked},
		{SubjectID: "u1", ArticleID: first, Type: recommend.FeedbackLike},
		{SubjectID: "u1", ArticleID: resp.Items[1].Article.ID, Type: recommend.FeedbackDislike},
		{SubjectID: "u1", ArticleID: "never-served", Type: recommend.FeedbackLike},
	} {
		if err := e.RecordFeedback(ctx, fb); err != nil {
			t.Fatalf("RecordFeedback(%+v): %v", fb, err)
		}
	}

	clicked := 0
	for _, l := range e.store.Logs() {
		if l.Clicked {
			clicked++
			if l.ArticleID != first {
				t.Errorf("wrong log marked clicked: %s", l.ArticleID)
			}
		}
	}
	if clicked != 1 {
		t.Errorf("clicked logs = %d, want 1", clicked)
	}
	if n := len(e.store.Feedback()); n != 5 {
		t.Errorf("stored feedback = %d, want 5", n)
	}

	stats, err := e.GetStats(ctx, 7)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Totals.Shown != 4 || stats.Totals.Clicked != 1 {
		t.Errorf("totals = %+v", stats.Totals)
	}
	if math.Abs(stats.CTR-0.25) > 1e-9 {
		t.Errorf("CTR = %f, want 0.25", stats.CTR)
	}
	if math.Abs(stats.Satisfaction-0.5) > 1e-9 {
		t.Errorf("satisfaction = %f, want 0.5", stats.Satisfaction)
	}
	if stats.ByAlgorithm[recommend.AlgorithmTrending].Shown != 4 {
		t.Errorf("by algorithm = %+v", stats.ByAlgorithm)
	}
	if len(stats.Daily) != 1 || stats.Daily[0].Day != recommend.DayKey(testNow) {
		t.Errorf("daily = %+v", stats.Daily)
	}

	if _, err := e.GetStats(ctx, 0); !recommend.IsValidation(err) {
		t.Errorf("GetStats(0) err = %v", err)
	}
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	ctx := context.Background()

	if err := e.RecordFeedback(ctx, recommend.Feedback{ArticleID: "n1", Type: "meh"}); !recommend.IsValidation(err) {
		t.Errorf("unknown feedback type err = %v", err)
	}
	if err := e.RecordFeedback(ctx, recommend.Feedback{Type: recommend.FeedbackLike}); !recommend.IsValidation(err) {
		t.Errorf("missing article err = %v", err)
	}
	if err := e.RecordInteraction(ctx, recommend.InteractionEvent{SubjectID: "u1", ArticleID: "n1", Type: "stare"}); !recommend.IsValidation(err) {
		t.Errorf("unknown event type err = %v", err)
	}
}

func TestAnalyzeGraph(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)
	if err := e.graph.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	analysis, err := e.AnalyzeGraph(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeGraph: %v", err)
	}
	// u1, u2, u3 and n1, n2, t1, t2, t3, draft
	if analysis.UserNodes != 3 || analysis.ArticleNodes != 6 || analysis.TotalEdges != 8 {
		t.Errorf("analysis = %+v", analysis)
	}

	bare, err := recommend.NewEngine(nil, recommend.Dependencies{Catalog: recommendtest.NewStore()}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bare.AnalyzeGraph(context.Background()); !errors.Is(err, recommend.ErrStrategyNotRegistered) {
		t.Errorf("err = %v, want ErrStrategyNotRegistered", err)
	}
}

func TestMixedBackfillsOtherCategories(t *testing.T) {
	t.Parallel()

	store := recommendtest.NewStore()
	for i := range 7 {
		store.AddArticles(article("n"+string(rune('1'+i)), "news", float64(i)*0.5+0.5, int64(7000-i*1000), 50))
	}
	store.AddArticles(
		article("s1", "sport", 2, 300, 5),
		article("s2", "sport", 3, 200, 4),
		article("s3", "sport", 4, 100, 3),
	)
	store.AddEvents(like("u1", "n1", 5))

	e := newEngine(t, store, func(cfg *recommend.Config) {
		cfg.Quotas = recommend.QuotaConfig{Personal: 0.4, Collaborative: 0.3, Trending: 0.3}
	})
	req := recommend.Request{SubjectID: "u1", Limit: 5}
	resp := mustRecommend(t, e, req)
	assertContract(t, e, req, resp)

	if len(resp.Items) != 5 {
		t.Fatalf("got %s, want 5 items", ids(resp.Items))
	}
	counts := map[string]int{}
	for _, it := range resp.Items {
		counts[it.Article.CategoryID]++
	}
	if counts["news"] > 3 {
		t.Errorf("news occupies %d of 5 slots: %s", counts["news"], ids(resp.Items))
	}
}

func TestCacheSeparatesSubjectsAndSessions(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newsroom(), nil)

	personal := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Limit: 5})
	if personal.Metadata.CacheHit {
		t.Fatal("first request was a cache hit")
	}

	for _, req := range []recommend.Request{
		{SessionID: "u1", Limit: 5},
		{SubjectID: "anon", Limit: 5},
		{Limit: 5},
	} {
		resp := mustRecommend(t, e, req)
		if resp.Metadata.CacheHit {
			t.Errorf("%+v: served another identity's cached response", req)
		}
		if resp.Metadata.SubjectID != req.SubjectID {
			t.Errorf("%+v: subject_id = %q", req, resp.Metadata.SubjectID)
		}
	}

	if again := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Limit: 5}); !again.Metadata.CacheHit {
		t.Error("subject response was not cached")
	}
	e.InvalidateSubject("u1")
	if again := mustRecommend(t, e, recommend.Request{SubjectID: "u1", Limit: 5}); again.Metadata.CacheHit {
		t.Error("InvalidateSubject kept the subject's response")
	}
	if session := mustRecommend(t, e, recommend.Request{SessionID: "u1", Limit: 5}); !session.Metadata.CacheHit {
		t.Error("InvalidateSubject dropped a session response")
	}
}
