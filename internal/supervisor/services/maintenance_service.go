// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package services

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/newsroom/internal/cache"
	"github.com/tomtom215/newsroom/internal/metrics"
)

// every calls fn each interval until ctx is canceled.
func every(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}

// CacheSweepService evicts expired entries from TTL caches. Caches only drop
// expired entries lazily on Get, so without sweeping keys that are never read
// again would stay resident.
type CacheSweepService struct {
	caches   map[string]cache.Sweeper
	names    []string
	interval time.Duration
	logger   zerolog.Logger
}

// NewCacheSweepService sweeps every cache in caches each interval. Later maps
// override earlier ones for duplicate names.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCacheSweepService(interval time.Duration, logger zerolog.Logger, caches ...map[string]cache.Sweeper) (*CacheSweepService, error) {
	if interval <= 0 {
		return nil, errors.New("cache sweep service: interval must be positive")
	}
	merged := make(map[string]cache.Sweeper)
	for _, m := range caches {
		maps.Copy(merged, m)
	}
	return &CacheSweepService{
		caches:   merged,
		names:    slices.Sorted(maps.Keys(merged)),
		interval: interval,
		logger:   logger.With().Str("service", "cache-sweep").Logger(),
	}, nil
}

// Serve implements suture.Service.
func (s *CacheSweepService) Serve(ctx context.Context) error {
	s.logger.Debug().Strs("caches", s.names).Dur("interval", s.interval).Msg("cache sweeper running")
	return every(ctx, s.interval, s.SweepOnce)
}

// SweepOnce runs one pass over every cache.
func (s *CacheSweepService) SweepOnce() {
	total := 0
	for _, name := range s.names {
		c := s.caches[name]
		evicted := c.Sweep()
		metrics.RecordCacheSweep(name, evicted, c.Len())
		total += evicted
	}
	if total > 0 {
		s.logger.Debug().Int("evicted", total).Msg("expired cache entries evicted")
	}
}

// String implements fmt.Stringer.
func (s *CacheSweepService) String() string {
	return "cache-sweep"
}

// GarbageCollector reclaims storage space.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService runs value log GC on the store at a fixed interval.
type StoreGCService struct {
	store    GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
}

// NewStoreGCService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStoreGCService(store GarbageCollector, interval time.Duration, logger zerolog.Logger) (*StoreGCService, error) {
	if store == nil {
		return nil, errors.New("store gc service: store is required")
	}
	if interval <= 0 {
		return nil, errors.New("store gc service: interval must be positive")
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "store-gc").Logger(),
	}, nil
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	return every(ctx, s.interval, func() {
		start := time.Now()
		if err := s.store.RunGC(); err != nil {
			s.logger.Warn().Err(err).Msg("value log GC failed")
			return
		}
		s.logger.Debug().Dur("duration", time.Since(start)).Msg("value log GC complete")
	})
}

// String implements fmt.Stringer.
func (s *StoreGCService) String() string {
	return "store-gc"
}
