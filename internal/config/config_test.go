// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/events"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// isolate clears config discovery so tests never read a developer's config.yaml.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.Mode != auth.ModeOptional {
		t.Errorf("Auth.Mode = %q, want optional", cfg.Auth.Mode)
	}
	if cfg.Events.Backend != events.BackendMemory {
		t.Errorf("Events.Backend = %q, want memory", cfg.Events.Backend)
	}
	if cfg.Graph.Schedule != "@every 30m" {
		t.Errorf("Graph.Schedule = %q", cfg.Graph.Schedule)
	}
	if cfg.Recommend.Rerank.DiversityFactor != 0.3 {
		t.Errorf("DiversityFactor = %v, want 0.3", cfg.Recommend.Rerank.DiversityFactor)
	}
	if cfg.AI.Enabled {
		t.Error("AI should be disabled by default")
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Errorf("AI.Timeout = %v, want 15s", cfg.AI.Timeout)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Error("JWT_SECRET not applied")
	}
	if cfg.Recommend.Quotas.Personal != 0.4 {
		t.Errorf("Quotas.Personal = %v", cfg.Recommend.Quotas.Personal)
	}
	if cfg.Storage.GCInterval != 10*time.Minute {
		t.Errorf("Storage.GCInterval = %v", cfg.Storage.GCInterval)
	}
}

func TestLoadRequiresSecretForBearerAuth(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET in optional mode")
	}

	t.Setenv("AUTH_MODE", auth.ModeNone)
	if _, err := Load(); err != nil {
		t.Fatalf("auth.mode=none should not need a secret: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RECOMMEND_DIVERSITY_FACTOR", "0.5")
	t.Setenv("RECOMMEND_CACHE_TTL", "2m")
	t.Setenv("BADGER_IN_MEMORY", "true")
	t.Setenv("GRAPH_REBUILD_SCHEDULE", "*/15 * * * *")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Recommend.Rerank.DiversityFactor != 0.5 {
		t.Errorf("DiversityFactor = %v", cfg.Recommend.Rerank.DiversityFactor)
	}
	if cfg.Recommend.Cache.TTL != 2*time.Minute {
		t.Errorf("Cache.TTL = %v", cfg.Recommend.Cache.TTL)
	}
	if !cfg.Storage.InMemory {
		t.Error("BADGER_IN_MEMORY not applied")
	}
	if cfg.Graph.Schedule != "*/15 * * * *" {
		t.Errorf("Graph.Schedule = %q", cfg.Graph.Schedule)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "newsroom.yaml")
	content := strings.Join([]string{
		"server:",
		"  port: 7000",
		"events:",
		"  backend: nats",
		"  nats:",
		"    url: nats://broker:4222",
		"recommend:",
		"  quotas:",
		"    personal: 0.5",
		"    collaborative: 0.3",
		"    trending: 0.2",
		"    graph: 0",
		"ai:",
		"  enabled: true",
		"  url: http://ai.internal/v1",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	// Environment still wins over the file.
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Port = %d, want env override 7001", cfg.Server.Port)
	}
	if cfg.Events.Backend != events.BackendNATS || cfg.Events.NATS.URL != "nats://broker:4222" {
		t.Errorf("Events = %+v", cfg.Events)
	}
	if cfg.Recommend.Quotas.Personal != 0.5 || cfg.Recommend.Quotas.Graph != 0 {
		t.Errorf("Quotas = %+v", cfg.Recommend.Quotas)
	}
	if cfg.Recommend.Rerank.FreshnessFactor != 0.2 {
		t.Errorf("unset fields keep defaults, FreshnessFactor = %v", cfg.Recommend.Rerank.FreshnessFactor)
	}
	if got := cfg.AI.ClientConfig(); got.URL != "http://ai.internal/v1" || got.Timeout != 15*time.Second {
		t.Errorf("ClientConfig() = %+v", got)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_MODE", auth.ModeRequired)
	t.Setenv("EVENTS_ENABLED", "true")

	cfg, err := Load(WithOverrides(map[string]any{
		"auth.mode":      auth.ModeNone,
		"events.enabled": false,
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Mode != auth.ModeNone || cfg.Events.Enabled {
		t.Errorf("overrides lost against env: auth=%q events=%v", cfg.Auth.Mode, cfg.Events.Enabled)
	}
}

func TestLoadFileMissing(t *testing.T) {
	isolate(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "server.read_timeout"},
		{"wildcard cors with required auth", func(c *Config) { c.Auth.Mode = auth.ModeRequired }, "cors_origins"},
		{"explicit cors with required auth", func(c *Config) {
			c.Auth.Mode = auth.ModeRequired
			c.Server.CORSOrigins = []string{"https://news.example"}
		}, ""},
		{"rate limit", func(c *Config) { c.Server.RateLimitRequests = 0 }, "rate_limit_requests"},
		{"rate limit disabled", func(c *Config) { c.Server.RateLimitDisabled = true; c.Server.RateLimitRequests = 0 }, ""},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"nats scheme", func(c *Config) { c.Events.Backend = events.BackendNATS; c.Events.NATS.URL = "http://broker" }, "events.nats.url"},
		{"quota sum", func(c *Config) { c.Recommend.Quotas.Personal = 0.9 }, "quota"},
		{"ai without url", func(c *Config) { c.AI.Enabled = true }, "ai.url"},
		{"ai with query", func(c *Config) { c.AI.Enabled = true; c.AI.URL = "https://ai.example?x=1" }, "query"},
		{"ai ok", func(c *Config) { c.AI.Enabled = true; c.AI.URL = "https://ai.example/scoring" }, ""},
		{"bad schedule", func(c *Config) { c.Graph.Schedule = "every half hour" }, "graph.schedule"},
		{"cron schedule", func(c *Config) { c.Graph.Schedule = "0 */2 * * *" }, ""},
		{"sweep interval", func(c *Config) { c.Maintenance.CacheSweepInterval = 0 }, "cache_sweep_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			cfg.Auth.JWTSecret = testSecret
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard CORS with optional auth should warn")
	}
	cfg.Auth.Mode = auth.ModeNone
	if cfg.ShouldWarnAboutCORS() {
		t.Error("no auth should not warn")
	}
}
