// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRecommendation(t *testing.T) {
	before := testutil.ToFloat64(RecommendationRequests.WithLabelValues("mixed", "ok"))
	RecordRecommendation("mixed", "ok", 10, 20*time.Millisecond)
	after := testutil.ToFloat64(RecommendationRequests.WithLabelValues("mixed", "ok"))

	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %f", after-before)
	}
}

func TestRecordStrategyRun(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		wantFail float64
	}{
		{name: "success does not count a failure", kind: "", wantFail: 0},
		{name: "timeout counts a failure", kind: "timeout", wantFail: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label := tt.kind
			if label == "" {
				label = "none"
			}
			before := testutil.ToFloat64(StrategyFailures.WithLabelValues("graph_"+tt.name, label))
			RecordStrategyRun("graph_"+tt.name, tt.kind, time.Millisecond)
			after := testutil.ToFloat64(StrategyFailures.WithLabelValues("graph_"+tt.name, label))
			if after-before != tt.wantFail {
				t.Errorf("failure delta = %f, want %f", after-before, tt.wantFail)
			}
		})
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("test_lookup"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("test_lookup"))

	RecordCacheLookup("test_lookup", true)
	RecordCacheLookup("test_lookup", false)
	RecordCacheLookup("test_lookup", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("test_lookup")) - hits; got != 1 {
		t.Errorf("hits delta = %f", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("test_lookup")) - misses; got != 2 {
		t.Errorf("misses delta = %f", got)
	}
}

func TestRecordGraphRebuild(t *testing.T) {
	RecordGraphRebuild(time.Second, 3, 7, 12, nil)

	if got := testutil.ToFloat64(GraphNodes.WithLabelValues("article")); got != 7 {
		t.Errorf("article nodes = %f, want 7", got)
	}
	if got := testutil.ToFloat64(GraphEdges); got != 12 {
		t.Errorf("edges = %f, want 12", got)
	}

	before := testutil.ToFloat64(GraphRebuildErrors)
	RecordGraphRebuild(0, 0, 0, 0, errors.New("boom"))
	if testutil.ToFloat64(GraphRebuildErrors)-before != 1 {
		t.Error("expected rebuild error to be counted")
	}
	if got := testutil.ToFloat64(GraphEdges); got != 12 {
		t.Errorf("failed rebuild must not reset gauges, edges = %f", got)
	}
}

func TestRecordEventPublish(t *testing.T) {
	before := testutil.ToFloat64(EventsPublished.WithLabelValues("test.topic", "error"))
	RecordEventPublish("test.topic", errors.New("nats down"))
	if testutil.ToFloat64(EventsPublished.WithLabelValues("test.topic", "error"))-before != 1 {
		t.Error("expected error publish to be counted")
	}
}
