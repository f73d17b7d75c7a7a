// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/newsroom/internal/config"
	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/store"
)

// testCLI returns a cli over a fresh in-memory store.
func testCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.InMemory = true
	st, err := store.Open(&cfg.Storage, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	env, err := newEnvironment(cfg, st, zerolog.Nop())
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &cli{out: out, env: env}, out
}

func execute(c *cli, out *bytes.Buffer, args ...string) error {
	out.Reset()
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func writeCatalog(t *testing.T) string {
	t.Helper()

	published := func(hours int) string {
		return time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
	}
	doc := fmt.Sprintf(`articles:
  - id: a1
    title: Council approves budget
    category_id: news
    tags: [politics, budget]
    published_at: %s
    view_count: 900
    like_count: 40
  - id: a2
    title: New chip announced
    category_id: tech
    tags: [hardware]
    published_at: %s
    view_count: 500
    like_count: 25
  - id: a3
    title: Derby ends in a draw
    category_id: sport
    tags: [football]
    published_at: %s
    view_count: 300
    like_count: 10
    status: draft
events:
  - subject_id: reader-1
    article_id: a1
    event_type: like
  - subject_id: reader-2
    article_id: a2
    event_type: readingTime
`, published(2), published(5), published(1))

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func decodeYAML(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &m), out.String())
	return m
}

func TestImportAndStatus(t *testing.T) {
	c, out := testCLI(t)

	require.NoError(t, execute(c, out, "import", writeCatalog(t)))
	result := decodeYAML(t, out)
	assert.Equal(t, 3, result["articles"])
	assert.Equal(t, 2, result["events"])

	require.NoError(t, execute(c, out, "status"))
	counts := decodeYAML(t, out)
	assert.Equal(t, 3, counts["articles"])
	assert.Equal(t, 2, counts["events"])

	a3, err := c.env.store.Article(context.Background(), "a3")
	require.NoError(t, err)
	assert.Equal(t, recommend.StatusDraft, a3.Status, "explicit status must survive import")
}

func TestImportRejectsInvalidEvents(t *testing.T) {
	c, out := testCLI(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events:\n  - subject_id: r1\n    article_id: a1\n    event_type: poke\n"), 0o600))

	err := execute(c, out, "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 0")
}

func TestRecommend(t *testing.T) {
	c, out := testCLI(t)
	require.NoError(t, execute(c, out, "import", writeCatalog(t)))

	require.NoError(t, execute(c, out, "recommend", "--algorithm", "trending", "--limit", "5", "--output", "json"))
	var resp recommend.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), out.String())

	require.Len(t, resp.Items, 2, "drafts are never served")
	assert.Equal(t, "a1", resp.Items[0].Article.ID)
	assert.Equal(t, recommend.AlgorithmTrending, resp.Metadata.Algorithm)
	assert.Equal(t, "newsctl", resp.Metadata.RequestID)
}

func TestRecommendValidation(t *testing.T) {
	c, out := testCLI(t)

	tests := [][]string{
		{"recommend", "--limit", "500"},
		{"recommend", "--algorithm", "random"},
		{"recommend", "--output", "xml"},
	}
	for _, args := range tests {
		assert.Error(t, execute(c, out, args...), "%v", args)
	}
}

func TestFeedbackAndStats(t *testing.T) {
	c, out := testCLI(t)
	require.NoError(t, execute(c, out, "import", writeCatalog(t)))

	assert.Error(t, execute(c, out, "feedback", "--subject", "reader-1", "--article", "a1", "--type", "love"))

	require.NoError(t, execute(c, out, "recommend", "--subject", "reader-1", "--algorithm", "trending"))
	require.NoError(t, execute(c, out, "feedback", "--subject", "reader-1", "--article", "a2", "--type", "clicked"))
	assert.Equal(t, true, decodeYAML(t, out)["recorded"])

	require.NoError(t, execute(c, out, "stats", "--days", "7", "--output", "json"))
	var stats recommend.Stats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 7, stats.Days)
	assert.Positive(t, stats.Totals.Shown)

	assert.Error(t, execute(c, out, "stats", "--days", "0"))
}

func TestInteract(t *testing.T) {
	c, out := testCLI(t)
	require.NoError(t, execute(c, out, "import", writeCatalog(t)))

	require.NoError(t, execute(c, out, "interact", "--subject", "reader-3", "--article", "a2", "--type", "share"))
	assert.Equal(t, true, decodeYAML(t, out)["recorded"])

	assert.Error(t, execute(c, out, "interact", "--article", "a2", "--type", "share"))
}

func TestAnalyzeGraph(t *testing.T) {
	c, out := testCLI(t)
	require.NoError(t, execute(c, out, "import", writeCatalog(t)))

	require.NoError(t, execute(c, out, "analyze-graph", "--output", "json"))
	var analysis recommend.GraphAnalysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &analysis))
	assert.Equal(t, 2, analysis.UserNodes)
	assert.Equal(t, 2, analysis.ArticleNodes)
	assert.Equal(t, 2, analysis.TotalEdges)
}

func TestVersion(t *testing.T) {
	out := &bytes.Buffer{}
	c := &cli{out: out}
	require.NoError(t, execute(c, out, "version"))
	assert.Equal(t, "newsctl dev\n", out.String())
	assert.Nil(t, c.env, "version must not open the store")
}

func TestRenderYAMLKeepsJSONNames(t *testing.T) {
	var out bytes.Buffer
	v := struct {
		ID    string `json:"id"`
		Count string `json:"count"`
		Tags  []string
	}{ID: "a1", Count: "123", Tags: []string{"x"}}

	require.NoError(t, render(&out, formatYAML, v))
	assert.Equal(t, "id: a1\ncount: \"123\"\nTags:\n  - x\n", out.String())
}
