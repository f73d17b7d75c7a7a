// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/newsroom/internal/api"
	"github.com/tomtom215/newsroom/internal/app"
	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/config"
	"github.com/tomtom215/newsroom/internal/events"
	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/store"
	"github.com/tomtom215/newsroom/internal/supervisor"
	"github.com/tomtom215/newsroom/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Newsroom exited with error")
	}
}

//nolint:gocyclo // Sequential setup steps
func run() error {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging.LoggerConfig())

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("storage", storageDescription(&cfg.Storage)).
		Str("auth_mode", cfg.Auth.Mode).
		Bool("events_enabled", cfg.Events.Enabled).
		Bool("ai_enabled", cfg.AI.Enabled).
		Msg("Starting Newsroom")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin; set CORS_ORIGINS for production")
	}

	st, err := store.Open(&cfg.Storage, logging.WithComponent("store"))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	var bus *events.Bus
	if cfg.Events.Enabled {
		bus, err = events.NewBus(&cfg.Events, events.NewLogger())
		if err != nil {
			return err
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
	}

	var opts app.Options
	if bus != nil {
		opts.Publisher = bus
	}
	rec, err := app.NewRecommender(cfg, st, opts, logging.WithComponent("recommend"))
	if err != nil {
		return err
	}

	slogLogger := logging.NewComponentSlogLogger("supervisor")
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	if err := addDataServices(tree, cfg, st, rec); err != nil {
		return err
	}

	if bus != nil {
		consumer, err := events.NewConsumer(&cfg.Events.Router, bus, rec.Engine, events.NewLogger())
		if err != nil {
			return err
		}
		tree.AddMessagingService(consumer)
	}

	handler, err := buildHTTPHandler(cfg, st, rec)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")
	err = tree.Serve(ctx)

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Newsroom stopped")
	return nil
}

func buildHTTPHandler(cfg *config.Config, st *store.Store, rec *app.Recommender) (http.Handler, error) {
	opts := api.HandlerOptions{
		Store:             st,
		TrustSubjectParam: cfg.Auth.Mode == auth.ModeNone,
		RequestTimeout:    cfg.Recommend.Limits.RequestTimeout,
		Version:           version,
	}
	if rec.AI != nil {
		opts.AI = rec.AI
	}

	var authenticator api.Authenticator
	if cfg.Auth.Mode != auth.ModeNone {
		manager, err := auth.NewJWTManager(&cfg.Auth)
		if err != nil {
			return nil, err
		}
		authenticator = auth.NewMiddleware(manager, cfg.Auth.Mode, api.AuthErrorResponder)
	} else {
		logging.Warn().Msg("Authentication disabled; subjects are taken from the request")
	}

	chiCfg := api.DefaultChiMiddlewareConfig()
	chiCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	chiCfg.RateLimitRequests = cfg.Server.RateLimitRequests
	chiCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	chiCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled

	router := api.NewRouter(api.NewHandler(rec.Engine, opts), api.NewChiMiddleware(chiCfg), authenticator)
	return router.SetupChi(), nil
}

func storageDescription(cfg *store.Config) string {
	if cfg.InMemory {
		return "memory"
	}
	return cfg.Path
}
