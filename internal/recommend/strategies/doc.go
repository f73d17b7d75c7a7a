// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

/*
Package strategies contains the scoring strategies registered with the
recommendation engine.

Each strategy implements recommend.Strategy and returns at most req.Limit
eligible items ordered best first:

  - Trending: popularity plus recency over recently published articles.
  - Personal: content-based scoring against the subject's interest profile.
    Subjects without a profile get the trending list.
  - Collaborative: a hybrid of user-based and item-based collaborative
    filtering over explicit engagement events.
  - Graph: bounded multi-hop exploration of the subject/article interaction
    graph, served from a snapshot that is rebuilt in the background.
  - AI: delegates scoring to the external AI service and re-validates every
    returned article against the catalog.

Strategies never mutate shared state on the request path other than their
own caches, and every cache is safe for concurrent use.
*/
package strategies

import "time"

// Option configures a strategy.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
