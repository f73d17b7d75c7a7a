// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/events"
	"github.com/tomtom215/newsroom/internal/logging"
)

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// ScheduleParser parses graph rebuild schedules. The supervisor uses the same
// parser so anything accepted here runs there.
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.Storage.Validate,
		c.validateEvents,
		c.Auth.Validate,
		c.Recommend.Validate,
		c.validateAI,
		c.validateJobs,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateCORS rejects wildcard origins when every request must carry a token,
// since such a deployment is never meant to be called from arbitrary sites.
func (c *Config) validateCORS() error {
	if c.Auth.Mode == auth.ModeRequired && c.hasWildcardCORS() {
		return fmt.Errorf("server.cors_origins=* is not allowed with auth.mode=required; list the allowed origins")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	return slices.Contains(c.Server.CORSOrigins, "*")
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Auth.Mode != auth.ModeNone && c.hasWildcardCORS()
}

func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitRequests < minRateLimitRequests || c.Server.RateLimitRequests > maxRateLimitRequests {
		return fmt.Errorf("server.rate_limit_requests must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("server.rate_limit_window must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if err := c.Events.Validate(); err != nil {
		return err
	}
	if c.Events.Enabled && c.Events.Backend == events.BackendNATS {
		if err := validateNATSURL(c.Events.NATS.URL); err != nil {
			return fmt.Errorf("events.nats.url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateAI() error {
	if !c.AI.Enabled {
		return nil
	}
	if err := validateServiceURL(c.AI.URL, "ai.url"); err != nil {
		return err
	}
	if c.AI.Timeout <= 0 || c.AI.HealthTimeout <= 0 {
		return fmt.Errorf("ai.timeout and ai.health_timeout must be positive")
	}
	if c.AI.RequestsPerSecond <= 0 {
		return fmt.Errorf("ai.requests_per_second must be positive, got %v", c.AI.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validateJobs() error {
	if _, err := ScheduleParser.Parse(c.Graph.Schedule); err != nil {
		return fmt.Errorf("graph.schedule %q: %w", c.Graph.Schedule, err)
	}
	if c.Maintenance.CacheSweepInterval <= 0 {
		return fmt.Errorf("maintenance.cache_sweep_interval must be positive, got %v", c.Maintenance.CacheSweepInterval)
	}
	return nil
}

// validateServiceURL accepts http(s) URLs with a host. Paths are allowed since
// scoring services are often mounted below a prefix.
func validateServiceURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
	}
	return nil
}
