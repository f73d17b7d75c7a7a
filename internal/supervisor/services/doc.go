// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

/*
Package services provides suture.Service wrappers for Newsroom components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern and implements fmt.Stringer so supervisor events name it.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve

Graph Rebuild (GraphRebuildService):
  - Rebuilds the interaction graph on a cron schedule
  - Optionally rebuilds once on startup so the graph strategy has a snapshot

Cache Sweep (CacheSweepService):
  - Evicts expired entries from the TTL caches at a fixed interval
  - Publishes evictions and sizes as Prometheus metrics

Store GC (StoreGCService):
  - Runs BadgerDB value log GC at a fixed interval

Failures of a single scheduled run are logged and do not stop the service.
Only configuration errors and server crashes reach the supervisor.
*/
package services
