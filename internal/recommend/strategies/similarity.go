// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package strategies

import (
	"cmp"
	"math"
	"slices"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// set is a string set.
type set map[string]struct{}

func (s set) add(v string) { s[v] = struct{}{} }

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

// Similarity is the mean of the Jaccard index and the cosine similarity of two
// binary sets. It is symmetric, lies in [0, 1] and is 0 when either set is
// empty. common is |a ∩ b|.
func Similarity(a, b set) (value float64, common int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	for k := range small {
		if large.has(k) {
			common++
		}
	}
	if common == 0 {
		return 0, 0
	}
	union := len(a) + len(b) - common
	jaccard := float64(common) / float64(union)
	cosine := float64(common) / math.Sqrt(float64(len(a))*float64(len(b)))
	return (jaccard + cosine) / 2, common
}

// compareSimilarity orders by value desc, common count desc, then B.
func compareSimilarity(x, y recommend.SimilarityScore) int {
	if c := cmp.Compare(y.Value, x.Value); c != 0 {
		return c
	}
	if c := cmp.Compare(y.CommonCount, x.CommonCount); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}

// topByCount returns the keys of counts ordered by count desc then key, at most n.
func topByCount(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
