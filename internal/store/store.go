// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package store persists the article catalog, interaction events, feedback and
// recommendation attribution in BadgerDB.
//
// Key layout (all values are JSON unless noted):
//
//	article:{id}                                  Article
//	event:{invts}:{seq}                           InteractionEvent
//	event_subject:{subject}\x00{invts}:{seq}      primary event key (raw)
//	event_article:{article}\x00{invts}:{seq}      primary event key (raw)
//	feedback:{subject}\x00{invts}:{seq}           Feedback
//	reclog:{id}                                   RecommendationLog
//	reclog_latest:{subject}\x00{article}          log id (raw)
//	daily:{YYYY-MM-DD}:{algorithm}                DailyCounters
//
// invts is the inverted Unix-nanosecond timestamp, zero padded, so that a
// forward prefix scan yields newest entries first. Caller-supplied IDs end at
// a NUL byte, so the prefix scan for one ID never reaches another ID that
// extends it. Anonymous feedback has an empty subject.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Key prefixes for BadgerDB storage
const (
	articlePrefix       = "article:"
	eventPrefix         = "event:"
	eventSubjectPrefix  = "event_subject:"
	eventArticlePrefix  = "event_article:"
	feedbackPrefix      = "feedback:"
	recLogPrefix        = "reclog:"
	recLogLatestPrefix  = "reclog_latest:"
	dailyPrefix         = "daily:"
	idSep               = "\x00"
	sequenceKey         = "seq:events"
	sequenceBandwidth   = 1000
	maxConflictAttempts = 10
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the BadgerDB-backed implementation of the recommendation
// collaborator interfaces. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	cfg    Config
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database described by cfg.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg *Config, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	if cfg.BlockCacheSize > 0 {
		opts.BlockCacheSize = cfg.BlockCacheSize
	}
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open event sequence: %w", err)
	}

	s := &Store{
		db:     db,
		seq:    seq,
		cfg:    *cfg,
		logger: logger.With().Str("component", "store").Logger(),
	}
	s.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("store opened")
	return s, nil
}

// Close releases the event sequence and closes the database, giving up after
// the configured close timeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.seq.Release(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to release event sequence")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		s.logger.Info().Msg("store closed")
		return nil
	case <-time.After(s.cfg.CloseTimeout):
		s.logger.Warn().Dur("timeout", s.cfg.CloseTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", s.cfg.CloseTimeout)
	}
}

// RunGC reclaims value log space until BadgerDB reports nothing to rewrite.
func (s *Store) RunGC() error {
	if err := s.check(context.Background()); err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Ping reports whether the store accepts reads.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Counts are the number of stored records per kind.
type Counts struct {
	Articles int `json:"articles" yaml:"articles"`
	Events   int `json:"events" yaml:"events"`
	Feedback int `json:"feedback" yaml:"feedback"`
	Logs     int `json:"recommendation_logs" yaml:"recommendation_logs"`
}

// Counts scans every primary prefix without loading values.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.check(ctx); err != nil {
		return c, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		c.Articles = countPrefix(txn, articlePrefix)
		c.Events = countPrefix(txn, eventPrefix)
		c.Feedback = countPrefix(txn, feedbackPrefix)
		c.Logs = countPrefix(txn, recLogPrefix)
		return nil
	})
	return c, err
}

func countPrefix(txn *badger.Txn, prefix string) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		n++
	}
	return n
}

func (s *Store) check(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent writers.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictAttempts {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// invertedTime orders keys newest first under a forward scan.
func invertedTime(t time.Time) string {
	return fmt.Sprintf("%019d", math.MaxInt64-t.UnixNano())
}

func (s *Store) nextSeq() (string, error) {
	n, err := s.seq.Next()
	if err != nil {
		return "", fmt.Errorf("next sequence: %w", err)
	}
	// Inverted so that later appends sort first among equal timestamps.
	return fmt.Sprintf("%016x", uint64(math.MaxUint64)-n), nil
}

func getJSON(txn *badger.Txn, key string, v any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// scanJSON decodes every value under prefix, starting at seek, until visit
// returns false.
func scanJSON[T any](txn *badger.Txn, prefix, seek string, visit func(v *T) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	if seek == "" {
		seek = prefix
	}
	p := []byte(prefix)
	for it.Seek([]byte(seek)); it.ValidForPrefix(p); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if !visit(&v) {
			return nil
		}
	}
	return nil
}
