// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/newsroom/internal/metrics"
)

const dayLayout = "2006-01-02"

// DayKey formats t as the UTC day used by daily counters.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// RecordFeedback appends fb, attributes it to the recommendation that served
// the article and invalidates the subject's profile so the next rebuild picks
// it up.
//
//nolint:gocritic // hugeParam: fb passed by value for immutability
func (e *Engine) RecordFeedback(ctx context.Context, fb Feedback) error {
	if fb.ArticleID == "" {
		return &ValidationError{Field: "article_id", Reason: "is required"}
	}
	if !fb.Type.Valid() {
		return &ValidationError{Field: "feedback_type", Reason: fmt.Sprintf("unknown feedback type %q", fb.Type)}
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = e.now()
	}

	if e.feedback != nil {
		if err := e.feedback.AppendFeedback(ctx, fb); err != nil {
			return fmt.Errorf("append feedback: %w", err)
		}
	}
	metrics.FeedbackRecorded.WithLabelValues(string(fb.Type)).Inc()

	if fb.SubjectID != "" {
		e.attributeFeedback(ctx, &fb)
		e.InvalidateSubject(fb.SubjectID)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishFeedback(ctx, fb); err != nil {
			e.logger.Warn().Err(err).Str("article_id", fb.ArticleID).Msg("failed to publish feedback event")
		}
	}

	e.logger.Debug().
		Str("subject_id", fb.SubjectID).
		Str("article_id", fb.ArticleID).
		Str("feedback_type", string(fb.Type)).
		Msg("feedback recorded")
	return nil
}

// attributeFeedback updates the recommendation log and daily counters. Errors
// are logged; attribution never fails the feedback call.
func (e *Engine) attributeFeedback(ctx context.Context, fb *Feedback) {
	if e.logs == nil {
		return
	}
	entry, ok, err := e.logs.LatestLog(ctx, fb.SubjectID, fb.ArticleID)
	if err != nil {
		e.logger.Warn().Err(err).Str("article_id", fb.ArticleID).Msg("failed to look up recommendation log")
		return
	}
	if !ok {
		return
	}

	delta := DailyCounters{Day: DayKey(fb.CreatedAt), Algorithm: entry.Algorithm}
	switch fb.Type {
	case FeedbackClicked:
		if entry.Clicked {
			return
		}
		if err := e.logs.MarkClicked(ctx, entry.ID); err != nil {
			e.logger.Warn().Err(err).Str("log_id", entry.ID).Msg("failed to mark recommendation clicked")
			return
		}
		delta.Clicked = 1
	case FeedbackLike, FeedbackShared:
		delta.Liked = 1
	case FeedbackDislike, FeedbackNotInterested:
		delta.Disliked = 1
	default:
		return
	}

	if err := e.logs.IncrementDaily(ctx, delta); err != nil {
		e.logger.Warn().Err(err).Msg("failed to update daily counters")
	}
}

// RecordInteraction appends an engagement event and invalidates the
// subject's derived state.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (e *Engine) RecordInteraction(ctx context.Context, ev InteractionEvent) error {
	if ev.SubjectID == "" {
		return &ValidationError{Field: "subject_id", Reason: "is required"}
	}
	if ev.ArticleID == "" {
		return &ValidationError{Field: "article_id", Reason: "is required"}
	}
	if !ev.Type.Valid() {
		return &ValidationError{Field: "event_type", Reason: fmt.Sprintf("unknown event type %q", ev.Type)}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if e.recorder == nil {
		return fmt.Errorf("record interaction: %w", ErrStrategyNotRegistered)
	}

	if err := e.recorder.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	metrics.InteractionsIngested.WithLabelValues(string(ev.Type)).Inc()
	e.InvalidateSubject(ev.SubjectID)

	if e.publisher != nil {
		if err := e.publisher.PublishInteraction(ctx, ev); err != nil {
			e.logger.Warn().Err(err).Str("article_id", ev.ArticleID).Msg("failed to publish interaction event")
		}
	}
	return nil
}

// logServed appends one log entry per item and bumps the shown counters.
func (e *Engine) logServed(ctx context.Context, req *Request, items []Item) {
	if e.logs == nil || len(items) == 0 {
		return
	}
	now := e.now()
	entries := make([]RecommendationLog, len(items))
	shown := make(map[Algorithm]int64)
	for i, it := range items {
		entries[i] = RecommendationLog{
			ID:         uuid.New().String(),
			RequestID:  req.RequestID,
			SubjectID:  req.SubjectID,
			SessionID:  req.SessionID,
			ArticleID:  it.Article.ID,
			Algorithm:  it.Algorithm,
			ReasonType: it.ReasonType,
			Score:      it.Score,
			Position:   i + 1,
			Shown:      true,
			CreatedAt:  now,
		}
		shown[it.Algorithm]++
	}

	if err := e.logs.AppendRecommendationLogs(ctx, entries); err != nil {
		e.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("failed to log recommendations")
		return
	}
	day := DayKey(now)
	for alg, n := range shown {
		if err := e.logs.IncrementDaily(ctx, DailyCounters{Day: day, Algorithm: alg, Shown: n}); err != nil {
			e.logger.Warn().Err(err).Msg("failed to update daily counters")
		}
	}
}

// GetStats aggregates daily counters over the last days days, today included.
func (e *Engine) GetStats(ctx context.Context, days int) (*Stats, error) {
	if days < 1 || days > 365 {
		return nil, &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and 365, got %d", days)}
	}
	stats := &Stats{Days: days, ByAlgorithm: map[Algorithm]DailyCounters{}, Daily: []DailyCounters{}}
	if e.logs == nil {
		return stats, nil
	}

	to := e.now().UTC()
	from := to.AddDate(0, 0, -(days - 1))
	rows, err := e.logs.DailyCounters(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load daily counters: %w", err)
	}

	perDay := map[string]DailyCounters{}
	for _, r := range rows {
		stats.Totals.Add(r)

		byAlg := stats.ByAlgorithm[r.Algorithm]
		byAlg.Algorithm = r.Algorithm
		byAlg.Add(r)
		stats.ByAlgorithm[r.Algorithm] = byAlg

		d := perDay[r.Day]
		d.Day = r.Day
		d.Add(r)
		perDay[r.Day] = d
	}
	for _, d := range perDay {
		stats.Daily = append(stats.Daily, d)
	}
	slices.SortFunc(stats.Daily, func(a, b DailyCounters) int {
		switch {
		case a.Day < b.Day:
			return -1
		case a.Day > b.Day:
			return 1
		}
		return 0
	})

	if stats.Totals.Shown > 0 {
		stats.CTR = float64(stats.Totals.Clicked) / float64(stats.Totals.Shown)
	}
	if rated := stats.Totals.Liked + stats.Totals.Disliked; rated > 0 {
		stats.Satisfaction = float64(stats.Totals.Liked) / float64(rated)
	}
	return stats, nil
}
