// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// AppendEvent implements recommend.InteractionRecorder. The article's view
// and like counters are bumped in the same transaction.
//
//nolint:gocritic // hugeParam: ev passed by value to satisfy the interface
func (s *Store) AppendEvent(ctx context.Context, ev recommend.InteractionEvent) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	seq, err := s.nextSeq()
	if err != nil {
		return err
	}
	suffix := invertedTime(ev.Timestamp) + ":" + seq
	primary := eventPrefix + suffix

	return s.update(func(txn *badger.Txn) error {
		if err := setJSON(txn, primary, &ev); err != nil {
			return err
		}
		if err := txn.Set([]byte(eventSubjectPrefix+ev.SubjectID+idSep+suffix), []byte(primary)); err != nil {
			return fmt.Errorf("set subject index: %w", err)
		}
		if err := txn.Set([]byte(eventArticlePrefix+ev.ArticleID+idSep+suffix), []byte(primary)); err != nil {
			return fmt.Errorf("set article index: %w", err)
		}

		if ev.Type != recommend.EventView && ev.Type != recommend.EventLike {
			return nil
		}
		var a recommend.Article
		found, err := getJSON(txn, articlePrefix+ev.ArticleID, &a)
		if err != nil || !found {
			return err
		}
		if ev.Type == recommend.EventView {
			a.ViewCount++
		} else {
			a.LikeCount++
		}
		return setJSON(txn, articlePrefix+a.ID, &a)
	})
}

// EventsBySubjects implements recommend.InteractionStore.
func (s *Store) EventsBySubjects(ctx context.Context, subjectIDs []string, types ...recommend.EventType) ([]recommend.InteractionEvent, error) {
	return s.eventsByIndex(ctx, eventSubjectPrefix, subjectIDs, types)
}

// EventsByArticles implements recommend.InteractionStore.
func (s *Store) EventsByArticles(ctx context.Context, articleIDs []string, types ...recommend.EventType) ([]recommend.InteractionEvent, error) {
	return s.eventsByIndex(ctx, eventArticlePrefix, articleIDs, types)
}

// RecentEvents implements recommend.InteractionStore.
func (s *Store) RecentEvents(ctx context.Context, limit int, types ...recommend.EventType) ([]recommend.InteractionEvent, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out []recommend.InteractionEvent
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, eventPrefix, "", func(ev *recommend.InteractionEvent) bool {
			if len(types) == 0 || slices.Contains(types, ev.Type) {
				out = append(out, *ev)
			}
			return limit <= 0 || len(out) < limit
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

// eventsByIndex resolves index entries under prefix+id for every id and
// returns the events newest first.
func (s *Store) eventsByIndex(ctx context.Context, prefix string, ids []string, types []recommend.EventType) ([]recommend.InteractionEvent, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	type keyed struct {
		key string
		ev  recommend.InteractionEvent
	}
	var found []keyed

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
			p := []byte(prefix + id + idSep)
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				primary, err := it.Item().ValueCopy(nil)
				if err != nil {
					return fmt.Errorf("read index: %w", err)
				}
				var ev recommend.InteractionEvent
				ok, err := getJSON(txn, string(primary), &ev)
				if err != nil {
					return err
				}
				if !ok || (len(types) > 0 && !slices.Contains(types, ev.Type)) {
					continue
				}
				found = append(found, keyed{key: string(primary), ev: ev})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	// Primary keys sort newest first.
	slices.SortFunc(found, func(a, b keyed) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		return 0
	})
	out := make([]recommend.InteractionEvent, len(found))
	for i := range found {
		out[i] = found[i].ev
	}
	return out, nil
}

var (
	_ recommend.InteractionStore    = (*Store)(nil)
	_ recommend.InteractionRecorder = (*Store)(nil)
)
