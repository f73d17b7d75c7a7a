// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package config loads the server configuration with koanf: struct defaults,
// then an optional YAML file, then a fixed table of environment variables.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("failed to load config")
//	}
//	logging.Init(cfg.Logging.LoggerConfig())
//	db, err := store.Open(&cfg.Storage, logger)
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/newsroom/internal/aiclient"
	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/events"
	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Storage     store.Config      `koanf:"storage"`
	Events      events.Config     `koanf:"events"`
	Auth        auth.Config       `koanf:"auth"`
	Recommend   recommend.Config  `koanf:"recommend"`
	AI          AIConfig          `koanf:"ai"`
	Graph       GraphConfig       `koanf:"graph"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns host:port for http.Server.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// LoggerConfig converts to the logging package's configuration.
func (l *LoggingConfig) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}

// AIConfig configures the optional external scoring service. When Enabled is
// false the ai algorithm is not registered and mixed requests skip it.
type AIConfig struct {
	Enabled           bool          `koanf:"enabled"`
	URL               string        `koanf:"url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	HealthTimeout     time.Duration `koanf:"health_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// ClientConfig converts to the aiclient configuration.
func (a *AIConfig) ClientConfig() aiclient.Config {
	return aiclient.Config{
		URL:               a.URL,
		APIKey:            a.APIKey,
		Timeout:           a.Timeout,
		HealthTimeout:     a.HealthTimeout,
		RequestsPerSecond: a.RequestsPerSecond,
		Burst:             a.Burst,
	}
}

// GraphConfig schedules background rebuilds of the interaction graph.
type GraphConfig struct {
	// Schedule is a cron expression or descriptor such as "@every 30m".
	Schedule string `koanf:"schedule"`

	// RebuildOnStartup builds the first snapshot as soon as the supervisor starts.
	RebuildOnStartup bool `koanf:"rebuild_on_startup"`
}

// MaintenanceConfig holds intervals of housekeeping services.
type MaintenanceConfig struct {
	// CacheSweepInterval is how often expired cache entries are dropped.
	CacheSweepInterval time.Duration `koanf:"cache_sweep_interval"`
}

// String summarizes the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("server=%s storage=%s events=%t/%s auth=%s ai=%t graph=%q",
		c.Server.Addr(), c.storageDescription(), c.Events.Enabled, c.Events.Backend, c.Auth.Mode, c.AI.Enabled, c.Graph.Schedule)
}

func (c *Config) storageDescription() string {
	if c.Storage.InMemory {
		return "memory"
	}
	return c.Storage.Path
}
