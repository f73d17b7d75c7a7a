// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package profile

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/recommend/recommendtest"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testArticles() map[string]*recommend.Article {
	return map[string]*recommend.Article{
		"a1": {ID: "a1", CategoryID: "politics", Tags: []string{"election", "senate"}, Status: recommend.StatusPublished},
		"a2": {ID: "a2", CategoryID: "sports", Tags: []string{"football"}, Status: recommend.StatusPublished},
		"a3": {ID: "a3", CategoryID: "politics", Tags: []string{"election", "election"}, Status: recommend.StatusPublished},
	}
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	p := Aggregate("u1", nil, nil, testArticles(), testNow, 0)
	if !p.Empty() {
		t.Errorf("expected empty profile, got %+v", p)
	}
	if p.SubjectID != "u1" {
		t.Errorf("subject = %q", p.SubjectID)
	}
}

func TestAggregateWeights(t *testing.T) {
	t.Parallel()

	events := []recommend.InteractionEvent{
		{SubjectID: "u1", ArticleID: "a1", Type: recommend.EventLike, Timestamp: testNow},
		{SubjectID: "u1", ArticleID: "a2", Type: recommend.EventView, Timestamp: testNow},
		{SubjectID: "u1", ArticleID: "a3", Type: recommend.EventShare, Timestamp: testNow},
		{SubjectID: "u1", ArticleID: "missing", Type: recommend.EventLike, Timestamp: testNow},
	}

	p := Aggregate("u1", events, nil, testArticles(), testNow, 0)

	// politics = 1.0 + 0.9, sports = 0.2; scaled by 1.9
	if !approx(p.CategoryWeights["politics"], 1) {
		t.Errorf("politics = %f, want 1", p.CategoryWeights["politics"])
	}
	if !approx(p.CategoryWeights["sports"], 0.2/1.9) {
		t.Errorf("sports = %f, want %f", p.CategoryWeights["sports"], 0.2/1.9)
	}
	// election counted once per article: 1.0 + 0.9
	if !approx(p.InterestWeights["election"], 1) {
		t.Errorf("election = %f, want 1", p.InterestWeights["election"])
	}
	if !approx(p.InterestWeights["senate"], 1.0/1.9) {
		t.Errorf("senate = %f, want %f", p.InterestWeights["senate"], 1.0/1.9)
	}
	if p.EventCount != 3 {
		t.Errorf("event count = %d, want 3", p.EventCount)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	t.Parallel()

	events := []recommend.InteractionEvent{
		{SubjectID: "u1", ArticleID: "a1", Type: recommend.EventComment, Timestamp: testNow.Add(-48 * time.Hour)},
		{SubjectID: "u1", ArticleID: "a2", Type: recommend.EventReadingTime, Timestamp: testNow.Add(-time.Hour)},
	}
	a := Aggregate("u1", events, nil, testArticles(), testNow, 24*time.Hour)
	b := Aggregate("u1", events, nil, testArticles(), testNow, 24*time.Hour)

	for k, w := range a.CategoryWeights {
		if b.CategoryWeights[k] != w {
			t.Errorf("category %s differs: %f vs %f", k, w, b.CategoryWeights[k])
		}
	}
	for k, w := range a.InterestWeights {
		if b.InterestWeights[k] != w {
			t.Errorf("tag %s differs: %f vs %f", k, w, b.InterestWeights[k])
		}
	}
}

func TestDecay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		age      time.Duration
		halfLife time.Duration
		want     float64
	}{
		{"disabled", 100 * time.Hour, 0, 1},
		{"future event", -time.Hour, time.Hour, 1},
		{"one half-life", 24 * time.Hour, 24 * time.Hour, 0.5},
		{"two half-lives", 48 * time.Hour, 24 * time.Hour, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := decay(tt.age, tt.halfLife); !approx(got, tt.want) {
				t.Errorf("decay(%v, %v) = %f, want %f", tt.age, tt.halfLife, got, tt.want)
			}
		})
	}
}

func TestDecayFavorsRecentInterest(t *testing.T) {
	t.Parallel()

	events := []recommend.InteractionEvent{
		{SubjectID: "u1", ArticleID: "a1", Type: recommend.EventLike, Timestamp: testNow.Add(-90 * 24 * time.Hour)},
		{SubjectID: "u1", ArticleID: "a2", Type: recommend.EventLike, Timestamp: testNow},
	}
	p := Aggregate("u1", events, nil, testArticles(), testNow, 30*24*time.Hour)

	if p.CategoryWeights["sports"] <= p.CategoryWeights["politics"] {
		t.Errorf("recent sports like should outweigh old politics like: %+v", p.CategoryWeights)
	}
}

func TestDislikeNeverIncreasesTagWeight(t *testing.T) {
	t.Parallel()

	events := []recommend.InteractionEvent{
		{SubjectID: "u1", ArticleID: "a1", Type: recommend.EventLike, Timestamp: testNow},
		{SubjectID: "u1", ArticleID: "a1", Type: recommend.EventShare, Timestamp: testNow},
		{SubjectID: "u1", ArticleID: "a2", Type: recommend.EventView, Timestamp: testNow},
	}
	feedback := []recommend.Feedback{
		{SubjectID: "u1", ArticleID: "a1", Type: recommend.FeedbackDislike, CreatedAt: testNow},
	}

	before := Aggregate("u1", events, nil, testArticles(), testNow, 0)
	after := Aggregate("u1", events, feedback, testArticles(), testNow, 0)

	for _, tag := range testArticles()["a1"].Tags {
		if after.InterestWeights[tag] > before.InterestWeights[tag] {
			t.Errorf("tag %s increased after dislike: %f > %f", tag, after.InterestWeights[tag], before.InterestWeights[tag])
		}
	}
}

func TestNotInterestedClampsToZero(t *testing.T) {
	t.Parallel()

	events := []recommend.InteractionEvent{
		{SubjectID: "u1", ArticleID: "a2", Type: recommend.EventView, Timestamp: testNow},
	}
	feedback := []recommend.Feedback{
		{SubjectID: "u1", ArticleID: "a2", Type: recommend.FeedbackNotInterested, CreatedAt: testNow},
	}

	p := Aggregate("u1", events, feedback, testArticles(), testNow, 0)
	if w, ok := p.InterestWeights["football"]; ok {
		t.Errorf("expected football to be dropped, got %f", w)
	}
	if !p.Empty() {
		t.Errorf("expected empty profile after negative feedback, got %+v", p)
	}
}

func newTestBuilder(store *recommendtest.Store) *Builder {
	return NewBuilder(recommend.DefaultConfig().Profile, store, store, zerolog.Nop(),
		WithFeedback(store), WithClock(func() time.Time { return testNow }))
}

func seedStore() *recommendtest.Store {
	store := recommendtest.NewStore()
	for _, a := range testArticles() {
		store.AddArticles(*a)
	}
	store.AddEvents(recommend.InteractionEvent{SubjectID: "u1", ArticleID: "a1", Type: recommend.EventLike, Timestamp: testNow})
	return store
}

func TestBuilderCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	store := seedStore()
	b := newTestBuilder(store)
	ctx := context.Background()

	p1, err := b.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p1.CategoryWeight("politics") != 1 {
		t.Fatalf("politics = %f, want 1", p1.CategoryWeight("politics"))
	}

	store.AddEvents(recommend.InteractionEvent{SubjectID: "u1", ArticleID: "a2", Type: recommend.EventLike, Timestamp: testNow})

	p2, _ := b.Profile(ctx, "u1")
	if p2 != p1 {
		t.Error("expected cached profile before invalidation")
	}

	b.Invalidate("u1")
	p3, _ := b.Profile(ctx, "u1")
	if p3.CategoryWeight("sports") != 1 {
		t.Errorf("expected rebuilt profile to include sports, got %+v", p3.CategoryWeights)
	}
}

func TestBuilderColdStart(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(seedStore())
	p, err := b.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Empty() {
		t.Errorf("expected empty profile, got %+v", p)
	}
}

func TestBuilderPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := seedStore()
	store.Err = errors.New("disk gone")
	b := newTestBuilder(store)

	if _, err := b.Profile(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuilderConcurrentCallers(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(seedStore())
	var wg sync.WaitGroup
	results := make([]*recommend.Profile, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := b.Profile(context.Background(), "u1")
			if err != nil {
				t.Errorf("Profile: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		if p == nil || p.CategoryWeight("politics") != 1 {
			t.Fatalf("unexpected profile %+v", p)
		}
	}
}
