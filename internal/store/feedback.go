// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// AppendFeedback implements recommend.FeedbackStore.
//
//nolint:gocritic // hugeParam: fb passed by value to satisfy the interface
func (s *Store) AppendFeedback(ctx context.Context, fb recommend.Feedback) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	seq, err := s.nextSeq()
	if err != nil {
		return err
	}
	key := feedbackPrefix + fb.SubjectID + idSep + invertedTime(fb.CreatedAt) + ":" + seq
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, key, &fb)
	})
}

// FeedbackBySubject implements recommend.FeedbackStore. Results are newest first.
func (s *Store) FeedbackBySubject(ctx context.Context, subjectID string) ([]recommend.Feedback, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if subjectID == "" {
		return nil, nil
	}

	var out []recommend.Feedback
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, feedbackPrefix+subjectID+idSep, "", func(fb *recommend.Feedback) bool {
			out = append(out, *fb)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan feedback: %w", err)
	}
	return out, nil
}

// AppendRecommendationLogs implements recommend.RecommendationLogStore.
func (s *Store) AppendRecommendationLogs(ctx context.Context, logs []recommend.RecommendationLog) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		for i := range logs {
			l := &logs[i]
			if err := setJSON(txn, recLogPrefix+l.ID, l); err != nil {
				return err
			}
			if l.SubjectID == "" {
				continue
			}
			if err := txn.Set([]byte(latestLogKey(l.SubjectID, l.ArticleID)), []byte(l.ID)); err != nil {
				return fmt.Errorf("set latest log: %w", err)
			}
		}
		return nil
	})
}

func latestLogKey(subjectID, articleID string) string {
	return recLogLatestPrefix + subjectID + idSep + articleID
}

// LatestLog implements recommend.RecommendationLogStore.
func (s *Store) LatestLog(ctx context.Context, subjectID, articleID string) (recommend.RecommendationLog, bool, error) {
	var l recommend.RecommendationLog
	if err := s.check(ctx); err != nil {
		return l, false, err
	}
	if subjectID == "" {
		return l, false, nil
	}

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestLogKey(subjectID, articleID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get latest log: %w", err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read latest log: %w", err)
		}
		found, err = getJSON(txn, recLogPrefix+string(id), &l)
		return err
	})
	return l, found, err
}

// MarkClicked implements recommend.RecommendationLogStore.
func (s *Store) MarkClicked(ctx context.Context, logID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		var l recommend.RecommendationLog
		found, err := getJSON(txn, recLogPrefix+logID, &l)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("recommendation log %s not found", logID)
		}
		l.Clicked = true
		return setJSON(txn, recLogPrefix+logID, &l)
	})
}

func dailyKey(day string, alg recommend.Algorithm) string {
	return dailyPrefix + day + ":" + string(alg)
}

// IncrementDaily implements recommend.RecommendationLogStore.
//
//nolint:gocritic // hugeParam: delta passed by value to satisfy the interface
func (s *Store) IncrementDaily(ctx context.Context, delta recommend.DailyCounters) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	key := dailyKey(delta.Day, delta.Algorithm)
	return s.update(func(txn *badger.Txn) error {
		var c recommend.DailyCounters
		if _, err := getJSON(txn, key, &c); err != nil {
			return err
		}
		c.Day, c.Algorithm = delta.Day, delta.Algorithm
		c.Add(delta)
		return setJSON(txn, key, &c)
	})
}

// DailyCounters implements recommend.RecommendationLogStore. Rows are ordered
// by day, then algorithm.
func (s *Store) DailyCounters(ctx context.Context, from, to time.Time) ([]recommend.DailyCounters, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	lo, hi := recommend.DayKey(from), recommend.DayKey(to)

	var out []recommend.DailyCounters
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, dailyPrefix, dailyPrefix+lo, func(c *recommend.DailyCounters) bool {
			if c.Day > hi {
				return false
			}
			out = append(out, *c)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan daily counters: %w", err)
	}
	return out, nil
}

var (
	_ recommend.FeedbackStore          = (*Store)(nil)
	_ recommend.RecommendationLogStore = (*Store)(nil)
)
