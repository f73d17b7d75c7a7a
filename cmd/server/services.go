// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package main

import (
	"fmt"

	"github.com/tomtom215/newsroom/internal/app"
	"github.com/tomtom215/newsroom/internal/config"
	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/store"
	"github.com/tomtom215/newsroom/internal/supervisor"
	"github.com/tomtom215/newsroom/internal/supervisor/services"
)

// addDataServices registers the maintenance jobs of the data layer.
func addDataServices(tree *supervisor.SupervisorTree, cfg *config.Config, st *store.Store, rec *app.Recommender) error {
	logger := logging.WithComponent("maintenance")

	gc, err := services.NewStoreGCService(st, cfg.Storage.GCInterval, logger)
	if err != nil {
		return err
	}
	tree.AddDataService(gc)

	sweeper, err := services.NewCacheSweepService(cfg.Maintenance.CacheSweepInterval, logger, rec.Sweepers()...)
	if err != nil {
		return err
	}
	tree.AddDataService(sweeper)

	schedule, err := config.ScheduleParser.Parse(cfg.Graph.Schedule)
	if err != nil {
		return fmt.Errorf("graph.schedule: %w", err)
	}
	rebuild, err := services.NewGraphRebuildService(rec.Graph, services.GraphRebuildConfig{
		Schedule:         schedule,
		RebuildOnStartup: cfg.Graph.RebuildOnStartup,
	}, logger)
	if err != nil {
		return err
	}
	tree.AddDataService(rebuild)
	return nil
}
