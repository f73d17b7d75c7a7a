// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package recommend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAlgorithm is wrapped by ValidationError for bad algorithm names.
	ErrUnknownAlgorithm = errors.New("unknown algorithm type")

	// ErrUpstreamUnavailable marks failures of an external scoring service.
	// The blender drops such strategies from the result without surfacing the error.
	ErrUpstreamUnavailable = errors.New("upstream scoring service unavailable")

	// ErrArticleNotFound is returned by catalogs for unknown article IDs.
	ErrArticleNotFound = errors.New("article not found")

	// ErrStrategyNotRegistered is returned when a request names a strategy the
	// engine was built without.
	ErrStrategyNotRegistered = errors.New("strategy not registered")
)

// ValidationError rejects a request before any computation happens.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ComputationError wraps an unexpected failure inside one strategy.
type ComputationError struct {
	Strategy Algorithm
	Err      error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
