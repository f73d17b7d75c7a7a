// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// PutArticles upserts articles in one transaction.
func (s *Store) PutArticles(ctx context.Context, articles ...recommend.Article) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	for i := range articles {
		if articles[i].ID == "" {
			return fmt.Errorf("article %d: id is required", i)
		}
	}
	return s.update(func(txn *badger.Txn) error {
		for i := range articles {
			if err := setJSON(txn, articlePrefix+articles[i].ID, &articles[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Article returns one article by ID in any status.
func (s *Store) Article(ctx context.Context, id string) (*recommend.Article, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var a recommend.Article
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := getJSON(txn, articlePrefix+id, &a)
		if err != nil {
			return err
		}
		if !found {
			return recommend.ErrArticleNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteArticle removes an article. Events that reference it are kept.
func (s *Store) DeleteArticle(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(articlePrefix + id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete article: %w", err)
		}
		return nil
	})
}

// PublishedArticles implements recommend.ArticleCatalog.
func (s *Store) PublishedArticles(ctx context.Context, q recommend.ArticleQuery) ([]recommend.Article, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out []recommend.Article
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, articlePrefix, "", func(a *recommend.Article) bool {
			if !a.Published() || (q.Category != "" && a.CategoryID != q.Category) {
				return true
			}
			if !q.Since.IsZero() && a.PublishedAt.Before(q.Since) {
				return true
			}
			if slices.Contains(q.ExcludeIDs, a.ID) {
				return true
			}
			out = append(out, *a)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan articles: %w", err)
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
func (s *Store) ArticlesByID(ctx context.Context, ids []string) ([]recommend.Article, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	out := make([]recommend.Article, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var a recommend.Article
			found, err := getJSON(txn, articlePrefix+id, &a)
			if err != nil {
				return err
			}
			if found {
				out = append(out, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	return out, nil
}

// FeaturedArticles implements recommend.ArticleCatalog.
func (s *Store) FeaturedArticles(ctx context.Context, excludeIDs []string, limit int) ([]recommend.Article, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out []recommend.Article
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, articlePrefix, "", func(a *recommend.Article) bool {
			if a.Featured && a.Published() && !slices.Contains(excludeIDs, a.ID) {
				out = append(out, *a)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan featured articles: %w", err)
	}

	slices.SortFunc(out, func(a, b recommend.Article) int { return recommend.CompareNewest(&a, &b) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ recommend.ArticleCatalog = (*Store)(nil)
