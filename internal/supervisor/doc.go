// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

/*
Package supervisor provides process supervision for Newsroom using suture v4.

The supervisor tree organizes long-running services into three layers:

	RootSupervisor ("newsroom")
	├── DataSupervisor ("data-layer")
	│   ├── StoreGCService
	│   ├── CacheSweepService
	│   └── GraphRebuildService (if the graph strategy is registered)
	├── MessagingSupervisor ("messaging-layer")
	│   └── events.Consumer (if events are enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing graph rebuild or a broken broker connection is restarted inside its
own layer and never takes the HTTP server down with it.

# Usage

	handler := &sutureslog.Handler{Logger: slogLogger}
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))
	tree.AddMessagingService(consumer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Serve returns once every service has stopped or ShutdownTimeout elapsed.
UnstoppedServiceReport lists the services that did not stop in time.

# Logging

Supervisor events (start, failure, backoff, restart) are emitted through
sutureslog onto the slog logger passed to NewSupervisorTree. Use
logging.NewComponentSlogLogger("supervisor") to route them into zerolog.
*/
package supervisor
