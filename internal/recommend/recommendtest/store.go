// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package recommendtest provides an in-memory implementation of the
// recommendation collaborator interfaces for tests.
package recommendtest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// Store implements ArticleCatalog, InteractionStore, InteractionRecorder,
// FeedbackStore and RecommendationLogStore in memory.
type Store struct {
	mu       sync.RWMutex
	articles map[string]recommend.Article
	events   []recommend.InteractionEvent
	feedback []recommend.Feedback
	logs     []recommend.RecommendationLog
	daily    map[string]recommend.DailyCounters

	// Err, when set, is returned by every read method.
	Err error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		articles: make(map[string]recommend.Article),
		daily:    make(map[string]recommend.DailyCounters),
	}
}

// AddArticles upserts articles.
func (s *Store) AddArticles(articles ...recommend.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range articles {
		s.articles[a.ID] = a
	}
}

// AddEvents appends events without touching article counters.
func (s *Store) AddEvents(events ...recommend.InteractionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// Feedback returns a copy of the stored feedback.
func (s *Store) Feedback() []recommend.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.feedback)
}

// Logs returns a copy of the stored recommendation logs.
func (s *Store) Logs() []recommend.RecommendationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs)
}

// PublishedArticles implements recommend.ArticleCatalog.
func (s *Store) PublishedArticles(_ context.Context, q recommend.ArticleQuery) ([]recommend.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]recommend.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if !a.Published() || (q.Category != "" && a.CategoryID != q.Category) {
			continue
		}
		if !q.Since.IsZero() && a.PublishedAt.Before(q.Since) {
			continue
		}
		if slices.Contains(q.ExcludeIDs, a.ID) {
			continue
		}
		out = append(out, a)
	}
	cmpFn := recommend.CompareNewest
	if q.Order == recommend.OrderPopular {
		cmpFn = recommend.ComparePopular
	}
	slices.SortFunc(out, func(a, b recommend.Article) int { return cmpFn(&a, &b) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ArticlesByID implements recommend.ArticleCatalog.
func (s *Store) ArticlesByID(_ context.Context, ids []string) ([]recommend.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]recommend.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// FeaturedArticles implements recommend.ArticleCatalog.
func (s *Store) FeaturedArticles(_ context.Context, excludeIDs []string, limit int) ([]recommend.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]recommend.Article, 0)
	for _, a := range s.articles {
		if a.Published() && a.Featured && !slices.Contains(excludeIDs, a.ID) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b recommend.Article) int { return recommend.CompareNewest(&a, &b) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) filterEvents(match func(ev *recommend.InteractionEvent) bool, types []recommend.EventType, limit int) []recommend.InteractionEvent {
	out := make([]recommend.InteractionEvent, 0)
	for i := range s.events {
		ev := &s.events[i]
		if len(types) > 0 && !slices.Contains(types, ev.Type) {
			continue
		}
		if match(ev) {
			out = append(out, *ev)
		}
	}
	// Newest first; later appends win ties.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b recommend.InteractionEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EventsBySubjects implements recommend.InteractionStore.
func (s *Store) EventsBySubjects(_ context.Context, subjectIDs []string, types ...recommend.EventType) ([]recommend.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.filterEvents(func(ev *recommend.InteractionEvent) bool {
		return slices.Contains(subjectIDs, ev.SubjectID)
	}, types, 0), nil
}

// EventsByArticles implements recommend.InteractionStore.
func (s *Store) EventsByArticles(_ context.Context, articleIDs []string, types ...recommend.EventType) ([]recommend.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.filterEvents(func(ev *recommend.InteractionEvent) bool {
		return slices.Contains(articleIDs, ev.ArticleID)
	}, types, 0), nil
}

// RecentEvents implements recommend.InteractionStore.
func (s *Store) RecentEvents(_ context.Context, limit int, types ...recommend.EventType) ([]recommend.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.filterEvents(func(*recommend.InteractionEvent) bool { return true }, types, limit), nil
}

// AppendEvent implements recommend.InteractionRecorder.
func (s *Store) AppendEvent(_ context.Context, ev recommend.InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if a, ok := s.articles[ev.ArticleID]; ok {
		switch ev.Type {
		case recommend.EventView:
			a.ViewCount++
		case recommend.EventLike:
			a.LikeCount++
		}
		s.articles[ev.ArticleID] = a
	}
	return nil
}

// AppendFeedback implements recommend.FeedbackStore.
func (s *Store) AppendFeedback(_ context.Context, fb recommend.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
	return nil
}

// FeedbackBySubject implements recommend.FeedbackStore.
func (s *Store) FeedbackBySubject(_ context.Context, subjectID string) ([]recommend.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]recommend.Feedback, 0)
	for _, fb := range s.feedback {
		if fb.SubjectID == subjectID {
			out = append(out, fb)
		}
	}
	return out, nil
}

// AppendRecommendationLogs implements recommend.RecommendationLogStore.
func (s *Store) AppendRecommendationLogs(_ context.Context, logs []recommend.RecommendationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logs...)
	return nil
}

// LatestLog implements recommend.RecommendationLogStore.
func (s *Store) LatestLog(_ context.Context, subjectID, articleID string) (recommend.RecommendationLog, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		if l := s.logs[i]; l.SubjectID == subjectID && l.ArticleID == articleID {
			return l, true, nil
		}
	}
	return recommend.RecommendationLog{}, false, nil
}

// MarkClicked implements recommend.RecommendationLogStore.
func (s *Store) MarkClicked(_ context.Context, logID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.logs {
		if s.logs[i].ID == logID {
			s.logs[i].Clicked = true
			return nil
		}
	}
	return errors.New("recommendation log not found")
}

// IncrementDaily implements recommend.RecommendationLogStore.
func (s *Store) IncrementDaily(_ context.Context, delta recommend.DailyCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := delta.Day + "/" + string(delta.Algorithm)
	c := s.daily[key]
	c.Day, c.Algorithm = delta.Day, delta.Algorithm
	c.Add(delta)
	s.daily[key] = c
	return nil
}

// DailyCounters implements recommend.RecommendationLogStore.
func (s *Store) DailyCounters(_ context.Context, from, to time.Time) ([]recommend.DailyCounters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi := recommend.DayKey(from), recommend.DayKey(to)
	out := make([]recommend.DailyCounters, 0, len(s.daily))
	for _, c := range s.daily {
		if c.Day >= lo && c.Day <= hi {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b recommend.DailyCounters) int {
		if a.Day != b.Day {
			if a.Day < b.Day {
				return -1
			}
			return 1
		}
		switch {
		case a.Algorithm < b.Algorithm:
			return -1
		case a.Algorithm > b.Algorithm:
			return 1
		}
		return 0
	})
	return out, nil
}
