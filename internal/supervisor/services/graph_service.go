// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// GraphRebuilder rebuilds the interaction graph snapshot.
type GraphRebuilder interface {
	Rebuild(ctx context.Context) error
}

// GraphRebuildConfig holds configuration for GraphRebuildService.
type GraphRebuildConfig struct {
	// Schedule decides when rebuilds run. Parse it with config.ScheduleParser.
	Schedule cron.Schedule

	// RebuildOnStartup rebuilds once before waiting for the first tick.
	RebuildOnStartup bool

	// Timeout bounds a single rebuild. Default: 5m
	Timeout time.Duration
}

// GraphRebuildService rebuilds the graph strategy's snapshot on a cron
// schedule. A failed rebuild keeps the previous snapshot and is retried at
// the next tick.
type GraphRebuildService struct {
	graph  GraphRebuilder
	config GraphRebuildConfig
	logger zerolog.Logger
	now    func() time.Time
	name   string
}

// NewGraphRebuildService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGraphRebuildService(graph GraphRebuilder, cfg GraphRebuildConfig, logger zerolog.Logger) (*GraphRebuildService, error) {
	if graph == nil {
		return nil, errors.New("graph rebuild service: rebuilder is required")
	}
	if cfg.Schedule == nil {
		return nil, errors.New("graph rebuild service: schedule is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &GraphRebuildService{
		graph:  graph,
		config: cfg,
		logger: logger.With().Str("service", "graph-rebuild").Logger(),
		now:    time.Now,
		name:   "graph-rebuild",
	}, nil
}

// Serve implements suture.Service.
func (s *GraphRebuildService) Serve(ctx context.Context) error {
	if s.config.RebuildOnStartup {
		s.rebuild(ctx, "startup")
	}

	for {
		next := s.config.Schedule.Next(s.now())
		if next.IsZero() {
			s.logger.Warn().Msg("graph rebuild schedule has no future activation, stopping")
			<-ctx.Done()
			return ctx.Err()
		}
		s.logger.Debug().Time("next_run", next).Msg("graph rebuild scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.rebuild(ctx, "schedule")
		}
	}
}

func (s *GraphRebuildService) rebuild(ctx context.Context, trigger string) {
	rebuildCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.graph.Rebuild(rebuildCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("graph rebuild failed, keeping previous snapshot")
	}
}

// String implements fmt.Stringer.
func (s *GraphRebuildService) String() string {
	return s.name
}
