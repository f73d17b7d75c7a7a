// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package reranking

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func item(id, category string, score, ageDays float64) recommend.Item {
	return recommend.Item{
		Article: recommend.Article{
			ID:          id,
			CategoryID:  category,
			PublishedAt: testNow.Add(-time.Duration(ageDays * 24 * float64(time.Hour))),
			Status:      recommend.StatusPublished,
		},
		Score:   score,
		Context: map[string]any{"source": "test"},
	}
}

func newReranker(diversity, freshness float64) *DiversityFreshness {
	return NewDiversityFreshness(recommend.RerankConfig{
		DiversityFactor:  diversity,
		FreshnessFactor:  freshness,
		MaxCategoryShare: 0.6,
	}, 30, func() time.Time { return testNow })
}

func TestCategoryCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		share float64
		limit int
		want  int
	}{
		{0.6, 5, 3},
		{0.6, 10, 6},
		{0.6, 1, 1},
		{0.6, 3, 2},
		{0.1, 3, 1},
		{1, 4, 4},
	}
	for _, tt := range tests {
		if got := CategoryCap(tt.share, tt.limit); got != tt.want {
			t.Errorf("CategoryCap(%v, %d) = %d, want %d", tt.share, tt.limit, got, tt.want)
		}
	}
}

func TestRerankBonuses(t *testing.T) {
	t.Parallel()

	items := []recommend.Item{
		item("a", "news", 0.5, 0),
		item("b", "news", 0.5, 15),
		item("c", "tech", 0.1, 60),
	}
	out := newReranker(0.3, 0.2).Rerank(context.Background(), items, nil, 3)

	if len(out) != 3 {
		t.Fatalf("got %d items", len(out))
	}
	byID := make(map[string]recommend.Item)
	for _, it := range out {
		byID[it.Article.ID] = it
	}

	// news: diversity 1-2/3, tech: 1-1/3
	want := map[string]float64{
		"a": 0.5 + 0.3*(1.0/3) + 0.2*1,
		"b": 0.5 + 0.3*(1.0/3) + 0.2*0.5,
		"c": 0.1 + 0.3*(2.0/3) + 0,
	}
	for id, w := range want {
		if got := byID[id].Score; math.Abs(got-w) > 1e-9 {
			t.Errorf("%s score = %f, want %f", id, got, w)
		}
	}

	a := byID["a"]
	if a.Context["baseScore"] != 0.5 || a.Context["source"] != "test" {
		t.Errorf("context = %v", a.Context)
	}
	if items[0].Context["baseScore"] != nil {
		t.Error("input item context was mutated")
	}
	if out[0].Article.ID != "a" {
		t.Errorf("first = %s, want a", out[0].Article.ID)
	}
}

func TestRerankCapsDominantCategory(t *testing.T) {
	t.Parallel()

	items := []recommend.Item{
		item("n1", "news", 0.9, 1),
		item("n2", "news", 0.8, 1),
		item("n3", "news", 0.7, 1),
		item("n4", "news", 0.6, 1),
		item("t1", "tech", 0.1, 1),
	}

	tests := []struct {
		name      string
		diversity float64
		want      int
	}{
		{"capped", 0.3, 4},
		{"no diversity", 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := append([]recommend.Item(nil), items...)
			out := newReranker(tt.diversity, 0.2).Rerank(context.Background(), in, nil, 5)
			if len(out) != tt.want {
				t.Fatalf("got %d items, want %d", len(out), tt.want)
			}
			news := 0
			for _, it := range out {
				if it.Article.CategoryID == "news" {
					news++
				}
			}
			if tt.diversity > 0 && news > 3 {
				t.Errorf("news occupies %d of 5 slots", news)
			}
		})
	}
}

func TestRerankSingleCategoryUncapped(t *testing.T) {
	t.Parallel()

	items := []recommend.Item{
		item("n1", "news", 0.9, 1),
		item("n2", "news", 0.8, 1),
		item("n3", "news", 0.7, 1),
		item("n4", "news", 0.6, 1),
	}
	if out := newReranker(0.3, 0.2).Rerank(context.Background(), items, nil, 4); len(out) != 4 {
		t.Errorf("got %d items, want 4", len(out))
	}
}

func TestRerankBackfillsFromReserve(t *testing.T) {
	t.Parallel()

	// The quota picks are all news; the reserve holds the other categories.
	picks := []recommend.Item{
		item("n1", "news", 0.9, 1),
		item("n2", "news", 0.85, 1),
		item("n3", "news", 0.8, 1),
		item("n4", "news", 0.75, 1),
		item("n5", "news", 0.7, 1),
	}
	reserve := []recommend.Item{
		item("n6", "news", 0.65, 1),
		item("n1", "news", 0.1, 1),
		item("s1", "sport", 0.2, 1),
		item("s2", "sport", 0.15, 1),
		item("s3", "sport", 0.1, 1),
	}

	out := newReranker(0.3, 0.2).Rerank(context.Background(), picks, reserve, 5)
	if len(out) != 5 {
		t.Fatalf("got %d items, want 5", len(out))
	}
	counts := map[string]int{}
	seen := map[string]bool{}
	for _, it := range out {
		counts[it.Article.CategoryID]++
		if seen[it.Article.ID] {
			t.Errorf("duplicate %s", it.Article.ID)
		}
		seen[it.Article.ID] = true
	}
	if counts["news"] != 3 || counts["sport"] != 2 {
		t.Errorf("categories = %v, want news:3 sport:2", counts)
	}
	if !seen["n1"] || !seen["s1"] || !seen["s2"] {
		t.Errorf("picked %v, want the best news picks and the best sport reserve", seen)
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Score < out[i].Score {
			t.Errorf("position %d scores %f above %f", i, out[i].Score, out[i-1].Score)
		}
	}
}

func TestRerankUsesReserveWhenPicksEmpty(t *testing.T) {
	t.Parallel()

	reserve := []recommend.Item{item("a", "news", 0.5, 1), item("b", "tech", 0.4, 1)}
	if out := newReranker(0.3, 0.2).Rerank(context.Background(), nil, reserve, 2); len(out) != 2 {
		t.Errorf("got %d items, want 2", len(out))
	}
}
