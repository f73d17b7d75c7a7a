// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package auth

import (
	"fmt"
	"time"
)

// Modes
const (
	// ModeNone ignores Authorization headers. Callers on a trusted network
	// name the subject in the request instead.
	ModeNone = "none"

	// ModeOptional authenticates when a bearer token is present and serves
	// anonymous requests otherwise.
	ModeOptional = "optional"

	// ModeRequired rejects requests without a valid token.
	ModeRequired = "required"
)

// Config configures bearer authentication.
type Config struct {
	Mode      string        `koanf:"mode"`
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// DefaultConfig serves anonymous and authenticated requests alike.
func DefaultConfig() *Config {
	return &Config{
		Mode:     ModeOptional,
		TokenTTL: 24 * time.Hour,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeNone:
		return nil
	case ModeOptional, ModeRequired:
	default:
		return fmt.Errorf("auth.mode must be one of none, optional, required, got %q", c.Mode)
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters when auth.mode is %s", minSecretLength, c.Mode)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %v", c.TokenTTL)
	}
	return nil
}
