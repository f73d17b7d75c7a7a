// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Recency is max(0, 1 - age/windowDays) for an article age in days.
func Recency(a *Article, now time.Time, windowDays float64) float64 {
	days := a.DaysSincePublished(now)
	if days < 0 {
		days = 0
	}
	return math.Max(0, 1-days/windowDays)
}

// Popularity is 0.1·ln(views+1) + 0.2·ln(likes+1). Unbounded.
func Popularity(a *Article) float64 {
	return 0.1*math.Log(float64(max(a.ViewCount, 0))+1) + 0.2*math.Log(float64(max(a.LikeCount, 0))+1)
}

// NormalizedPopularity maps Popularity into [0, 1) with p/(1+p). The mapping
// is monotonic and independent of the candidate set.
func NormalizedPopularity(a *Article) float64 {
	p := Popularity(a)
	return p / (1 + p)
}

// CompareItems orders by score desc, then newest publish date, then article ID.
func CompareItems(a, b Item) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Article.PublishedAt.Compare(a.Article.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Article.ID, b.Article.ID)
}

// SortItems sorts in place with CompareItems.
func SortItems(items []Item) {
	slices.SortStableFunc(items, CompareItems)
}

// ComparePopular is the trending order: views desc, likes desc, newest, ID.
func ComparePopular(a, b *Article) int {
	if c := cmp.Compare(b.ViewCount, a.ViewCount); c != 0 {
		return c
	}
	if c := cmp.Compare(b.LikeCount, a.LikeCount); c != 0 {
		return c
	}
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// CompareNewest orders by publish date desc, then ID.
func CompareNewest(a, b *Article) int {
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// MergeMax dedupes items by article ID keeping, for each article, the entry
// with the highest score (and therefore its reason). The first occurrence wins
// ties. Output order is unspecified; callers sort.
func MergeMax(lists ...[]Item) []Item {
	index := make(map[string]int)
	out := make([]Item, 0)
	for _, list := range lists {
		for _, it := range list {
			if i, ok := index[it.Article.ID]; ok {
				if it.Score > out[i].Score {
					out[i] = it
				}
				continue
			}
			index[it.Article.ID] = len(out)
			out = append(out, it)
		}
	}
	return out
}

// Truncate returns at most n leading items.
func Truncate(items []Item, n int) []Item {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
