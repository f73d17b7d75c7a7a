// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

/*
Package main is the entry point for the Newsroom recommendation server.

Newsroom serves personalized article recommendations for a news site. It reads
the article catalog and the interaction log from BadgerDB, builds reader
profiles on demand, and blends personal, collaborative, graph, trending and
(optionally) AI-scored candidates into one diversified, freshness-weighted list.

# Application Architecture

	RootSupervisor ("newsroom")
	├── DataSupervisor ("data-layer")
	│   ├── Store GC
	│   ├── Cache sweeper
	│   └── Graph rebuild (cron schedule)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Event consumer (if EVENTS_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Store: BadgerDB catalog, interaction log and attribution counters
 4. Engine: strategies, reranker and graph analyzer
 5. Events: watermill bus (in-memory or NATS) and the invalidation consumer
 6. Authentication: JWT bearer tokens (none, optional or required)
 7. Supervisor Tree: Suture v4 process supervision
 8. HTTP Server: Chi router with middleware stack

# Configuration

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	BADGER_PATH=/data/newsroom
	AUTH_MODE=optional           # none, optional, required
	JWT_SECRET=<32+ chars>       # required unless AUTH_MODE=none
	AI_ENABLED=false
	AI_URL=http://ai:8000
	EVENTS_BACKEND=memory        # memory or nats
	GRAPH_REBUILD_SCHEDULE="@every 30m"

# Signal Handling

SIGINT and SIGTERM cancel the supervisor context. The HTTP server drains
in-flight requests for HTTP_SHUTDOWN_TIMEOUT, background jobs stop, the
event bus closes and BadgerDB is flushed last.
*/
package main
