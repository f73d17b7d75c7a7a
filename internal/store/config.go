// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package store

import (
	"errors"
	"fmt"
	"time"
)

// Config holds BadgerDB settings.
type Config struct {
	// Path is the directory where BadgerDB stores its files. Ignored when
	// InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps all data in memory. Intended for tests and demos.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites forces fsync after every write.
	SyncWrites bool `koanf:"sync_writes"`

	// Compression enables Snappy compression of values.
	Compression bool `koanf:"compression"`

	// BlockCacheSize is the size of the block cache in bytes. 0 keeps the
	// BadgerDB default.
	BlockCacheSize int64 `koanf:"block_cache_size"`

	// GCInterval is the time between value log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCRatio is the discard ratio for value log GC.
	GCRatio float64 `koanf:"gc_ratio"`

	// CloseTimeout bounds how long Close waits for BadgerDB.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:         "/data/newsroom",
		SyncWrites:   true,
		Compression:  true,
		GCInterval:   10 * time.Minute,
		GCRatio:      0.5,
		CloseTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("storage.path is required unless storage.in_memory is set")
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return fmt.Errorf("storage.gc_ratio must be in (0, 1), got %f", c.GCRatio)
	}
	if c.GCInterval <= 0 {
		return fmt.Errorf("storage.gc_interval must be positive, got %v", c.GCInterval)
	}
	if c.CloseTimeout <= 0 {
		return fmt.Errorf("storage.close_timeout must be positive, got %v", c.CloseTimeout)
	}
	return nil
}
