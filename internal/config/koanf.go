// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/newsroom/internal/aiclient"
	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/events"
	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/store"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/newsroom/config.yaml",
	"/etc/newsroom/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	ai := aiclient.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			Host:              "0.0.0.0",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage:   *store.DefaultConfig(),
		Events:    *events.DefaultConfig(),
		Auth:      *auth.DefaultConfig(),
		Recommend: *recommend.DefaultConfig(),
		AI: AIConfig{
			Enabled:           false,
			Timeout:           ai.Timeout,
			HealthTimeout:     ai.HealthTimeout,
			RequestsPerSecond: ai.RequestsPerSecond,
			Burst:             ai.Burst,
		},
		Graph: GraphConfig{
			Schedule:         "@every 30m",
			RebuildOnStartup: true,
		},
		Maintenance: MaintenanceConfig{
			CacheSweepInterval: time.Minute,
		},
	}
}

// Default returns the built-in configuration without reading files or the
// environment. Useful for tools and tests.
func Default() *Config {
	return defaultConfig()
}

// Load reads configuration from multiple sources with the following priority:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//  4. Overrides: Values passed with WithOverrides
func Load(opts ...LoadOption) (*Config, error) {
	return LoadFile(findConfigFile(), opts...)
}

// LoadOption adjusts how configuration is loaded.
type LoadOption func(*loadOptions)

type loadOptions struct {
	overrides map[string]any
}

// WithOverrides sets koanf keys after every other layer. Offline tools use it
// to switch off the parts of the server they do not run.
func WithOverrides(values map[string]any) LoadOption {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]any, len(values))
		}
		for key, v := range values {
			o.overrides[key] = v
		}
	}
}

// LoadFile is Load with an explicit config file. An empty path skips the file layer.
func LoadFile(configPath string, opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Layer 4: Explicit overrides
	for key, v := range o.overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower case) to koanf paths.
// Unmapped variables are ignored so the environment cannot pollute config.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Storage
	"badger_path":        "storage.path",
	"badger_in_memory":   "storage.in_memory",
	"badger_sync_writes": "storage.sync_writes",
	"badger_gc_interval": "storage.gc_interval",

	// Events
	"events_enabled":       "events.enabled",
	"events_backend":       "events.backend",
	"nats_url":             "events.nats.url",
	"nats_queue_group":     "events.nats.queue_group",
	"nats_subscribers":     "events.nats.subscribers_count",
	"nats_jetstream":       "events.nats.jetstream",
	"nats_stream_name":     "events.nats.stream_name",
	"nats_durable_name":    "events.nats.durable_name",
	"events_retry_count":   "events.router.retry_max_retries",
	"events_poison_topic":  "events.router.poison_queue_topic",
	"events_close_timeout": "events.router.close_timeout",

	// Auth
	"auth_mode":     "auth.mode",
	"jwt_secret":    "auth.jwt_secret",
	"jwt_issuer":    "auth.issuer",
	"jwt_token_ttl": "auth.token_ttl",

	// Recommendation engine
	"recommend_quota_personal":       "recommend.quotas.personal",
	"recommend_quota_collaborative":  "recommend.quotas.collaborative",
	"recommend_quota_trending":       "recommend.quotas.trending",
	"recommend_quota_graph":          "recommend.quotas.graph",
	"recommend_quota_ai":             "recommend.quotas.ai",
	"recommend_diversity_factor":     "recommend.rerank.diversity_factor",
	"recommend_freshness_factor":     "recommend.rerank.freshness_factor",
	"recommend_max_category_share":   "recommend.rerank.max_category_share",
	"recommend_trending_window":      "recommend.scoring.trending_window",
	"recommend_default_limit":        "recommend.limits.default_limit",
	"recommend_max_limit":            "recommend.limits.max_limit",
	"recommend_strategy_timeout":     "recommend.limits.strategy_timeout",
	"recommend_request_timeout":      "recommend.limits.request_timeout",
	"recommend_cache_enabled":        "recommend.cache.enabled",
	"recommend_cache_ttl":            "recommend.cache.ttl",
	"recommend_similarity_ttl":       "recommend.collaborative.similarity_ttl",
	"recommend_graph_event_window":   "recommend.graph.event_window",
	"recommend_graph_max_path_nodes": "recommend.graph.max_path_nodes",
	"recommend_graph_ttl":            "recommend.graph.ttl",
	"recommend_profile_ttl":          "recommend.profile.ttl",

	// AI scoring service
	"ai_enabled":             "ai.enabled",
	"ai_service_url":         "ai.url",
	"ai_api_key":             "ai.api_key",
	"ai_timeout":             "ai.timeout",
	"ai_health_timeout":      "ai.health_timeout",
	"ai_requests_per_second": "ai.requests_per_second",

	// Background jobs
	"graph_rebuild_schedule":   "graph.schedule",
	"graph_rebuild_on_startup": "graph.rebuild_on_startup",
	"cache_sweep_interval":     "maintenance.cache_sweep_interval",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - JWT_SECRET -> auth.jwt_secret
//   - RECOMMEND_DIVERSITY_FACTOR -> recommend.rerank.diversity_factor
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
