// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package strategies

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/newsroom/internal/metrics"
	"github.com/tomtom215/newsroom/internal/recommend"
)

const (
	userPrefix    = "u:"
	articlePrefix = "a:"

	// topConnectedNodes is how many nodes AnalyzeGraph reports.
	topConnectedNodes = 10

	// rebuildTimeout bounds a background rebuild started from the request path.
	rebuildTimeout = 2 * time.Minute
)

// Graph recommends articles reachable from the subject through shared
// engagement. It reads an immutable snapshot that is swapped atomically, so
// requests never wait on a rebuild once the first snapshot exists.
type Graph struct {
	cfg     recommend.GraphConfig
	scoring recommend.ScoringConfig
	catalog recommend.ArticleCatalog
	events  recommend.InteractionStore
	logger  zerolog.Logger
	now     func() time.Time

	snapshot   atomic.Pointer[graphSnapshot]
	rebuilds   singleflight.Group
	refreshing atomic.Bool
}

type graphEdge struct {
	to     string
	weight float64
}

type graphNode struct {
	id   string
	kind recommend.NodeKind

	// edges holds neighbors ordered by weight desc, then key.
	edges []graphEdge
}

type graphSnapshot struct {
	nodes    map[string]*graphNode
	users    int
	articles int
	edges    int
	builtAt  time.Time
}

// NewGraph creates the graph strategy. No snapshot exists until Rebuild runs
// or the first request triggers one.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGraph(cfg *recommend.Config, catalog recommend.ArticleCatalog, events recommend.InteractionStore, logger zerolog.Logger, opts ...Option) *Graph {
	o := buildOptions(opts)
	return &Graph{
		cfg:     cfg.Graph,
		scoring: cfg.Scoring,
		catalog: catalog,
		events:  events,
		logger:  logger.With().Str("component", "graph").Logger(),
		now:     o.now,
	}
}

// Name implements recommend.Strategy.
func (g *Graph) Name() recommend.Algorithm {
	return recommend.AlgorithmGraph
}

// Rebuild replaces the snapshot with one built from the most recent
// EventWindow graph events. Concurrent calls share one build. On error the
// previous snapshot stays in place.
func (g *Graph) Rebuild(ctx context.Context) error {
	_, err, _ := g.rebuilds.Do("rebuild", func() (any, error) {
		start := time.Now()
		snap, err := g.build(ctx)
		if err != nil {
			metrics.RecordGraphRebuild(time.Since(start), 0, 0, 0, err)
			return nil, err
		}
		g.snapshot.Store(snap)
		metrics.RecordGraphRebuild(time.Since(start), snap.users, snap.articles, snap.edges, nil)

		g.logger.Info().
			Int("users", snap.users).
			Int("articles", snap.articles).
			Int("edges", snap.edges).
			Dur("duration", time.Since(start)).
			Msg("interaction graph rebuilt")
		return nil, nil
	})
	return err
}

// BuiltAt returns when the current snapshot was built, zero if none exists.
func (g *Graph) BuiltAt() time.Time {
	if snap := g.snapshot.Load(); snap != nil {
		return snap.builtAt
	}
	return time.Time{}
}

func (g *Graph) build(ctx context.Context) (*graphSnapshot, error) {
	events, err := g.events.RecentEvents(ctx, g.cfg.EventWindow, recommend.GraphEvents...)
	if err != nil {
		return nil, fmt.Errorf("load graph events: %w", err)
	}

	weights := make(map[string]map[string]float64)
	kinds := make(map[string]*graphNode)
	link := func(from, to string, w float64) {
		m, ok := weights[from]
		if !ok {
			m = make(map[string]float64)
			weights[from] = m
		}
		m[to] += w
	}
	for _, ev := range events {
		if ev.SubjectID == "" || ev.ArticleID == "" {
			continue
		}
		u := userPrefix + ev.SubjectID
		a := articlePrefix + ev.ArticleID
		if _, ok := kinds[u]; !ok {
			kinds[u] = &graphNode{id: ev.SubjectID, kind: recommend.NodeUser}
		}
		if _, ok := kinds[a]; !ok {
			kinds[a] = &graphNode{id: ev.ArticleID, kind: recommend.NodeArticle}
		}
		w := ev.Type.Weight()
		link(u, a, w)
		link(a, u, w)
	}

	snap := &graphSnapshot{nodes: kinds, builtAt: g.now()}
	degrees := 0
	for key, n := range kinds {
		for to, w := range weights[key] {
			n.edges = append(n.edges, graphEdge{to: to, weight: w})
		}
		slices.SortFunc(n.edges, func(x, y graphEdge) int {
			if c := cmp.Compare(y.weight, x.weight); c != 0 {
				return c
			}
			return cmp.Compare(x.to, y.to)
		})
		degrees += len(n.edges)
		if n.kind == recommend.NodeUser {
			snap.users++
		} else {
			snap.articles++
		}
	}
	snap.edges = degrees / 2
	return snap, nil
}

// current returns the snapshot, building one synchronously when none exists
// and refreshing a stale one in the background.
func (g *Graph) current(ctx context.Context) *graphSnapshot {
	snap := g.snapshot.Load()
	if snap == nil {
		if err := g.Rebuild(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("initial graph build failed")
		}
		return g.snapshot.Load()
	}
	if g.now().Sub(snap.builtAt) > g.cfg.TTL && g.refreshing.CompareAndSwap(false, true) {
		go func() {
			defer g.refreshing.Store(false)
			bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
			defer cancel()
			if err := g.Rebuild(bgCtx); err != nil {
				g.logger.Warn().Err(err).Msg("background graph rebuild failed")
			}
		}()
	}
	return snap
}

// pathState is one partial path in the frontier.
type pathState struct {
	nodes   []string
	product float64
}

// graphCandidate accumulates the paths reaching one article.
type graphCandidate struct {
	pathScore     float64
	paths         int
	shortestNodes int
}

// explore walks paths from start breadth first. Each node expands at most
// FanOut strongest edges, a path never revisits a node, paths stop at
// MaxPathNodes nodes and the walk stops after VisitBudget expansions. The
// subject's own articles are never candidates.
func (g *Graph) explore(snap *graphSnapshot, start string) map[string]*graphCandidate {
	origin := snap.nodes[start]
	if origin == nil {
		return nil
	}
	direct := make(set, len(origin.edges))
	for _, e := range origin.edges {
		direct.add(e.to)
	}

	candidates := make(map[string]*graphCandidate)
	frontier := []pathState{{nodes: []string{start}, product: 1}}
	budget := g.cfg.VisitBudget

	for len(frontier) > 0 && budget > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		node := snap.nodes[cur.nodes[len(cur.nodes)-1]]
		if node == nil {
			continue
		}

		expanded := 0
		for _, e := range node.edges {
			if expanded == g.cfg.FanOut || budget == 0 {
				break
			}
			if slices.Contains(cur.nodes, e.to) {
				continue
			}
			expanded++
			budget--

			next := pathState{
				nodes:   append(slices.Clip(cur.nodes), e.to),
				product: cur.product * e.weight,
			}
			length := len(next.nodes)
			if strings.HasPrefix(e.to, articlePrefix) && length >= 4 && !direct.has(e.to) {
				cand, ok := candidates[e.to]
				if !ok {
					cand = &graphCandidate{shortestNodes: length}
					candidates[e.to] = cand
				}
				cand.pathScore += next.product * math.Pow(g.cfg.PathPenalty, float64(length-2))
				cand.paths++
				cand.shortestNodes = min(cand.shortestNodes, length)
			}
			if length < g.cfg.MaxPathNodes {
				frontier = append(frontier, next)
			}
		}
	}
	return candidates
}

// Score ranks articles by the sum over discovered paths of the product of the
// edge weights times PathPenalty^(nodes-2), plus recency and popularity
// bonuses. The raw score r is reported as r/(1+r).
func (g *Graph) Score(ctx context.Context, req *recommend.Request) ([]recommend.Item, error) {
	if req.SubjectID == "" {
		return nil, nil
	}
	snap := g.current(ctx)
	if snap == nil {
		return nil, nil
	}

	candidates := g.explore(snap, userPrefix+req.SubjectID)
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for key := range candidates {
		ids = append(ids, strings.TrimPrefix(key, articlePrefix))
	}
	slices.Sort(ids)
	articles, err := g.catalog.ArticlesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load graph candidates: %w", err)
	}

	now := g.now()
	items := make([]recommend.Item, 0, len(articles))
	for i := range articles {
		a := &articles[i]
		if !req.Eligible(a) {
			continue
		}
		cand := candidates[articlePrefix+a.ID]
		bonus := 0.1*recommend.Recency(a, now, g.scoring.RecencyWindowDays) +
			0.01*math.Log(float64(max(a.ViewCount, 0))+1) +
			0.02*math.Log(float64(max(a.LikeCount, 0))+1)
		raw := cand.pathScore + bonus

		explanation := "Discovered through your reading network"
		if cand.shortestNodes <= 4 {
			explanation = "Users who engaged with the same content also liked this"
		}
		items = append(items, recommend.Item{
			Article:     *a,
			Score:       raw / (1 + raw),
			ReasonType:  recommend.ReasonGraphPath,
			Explanation: explanation,
			Algorithm:   recommend.AlgorithmGraph,
			Context: map[string]any{
				"pathScore": cand.pathScore,
				"paths":     cand.paths,
				"hops":      cand.shortestNodes - 1,
			},
		})
	}

	recommend.SortItems(items)
	return recommend.Truncate(items, req.Limit), nil
}

// AnalyzeGraph implements recommend.GraphAnalyzer. Without any snapshot it
// reports an empty graph.
func (g *Graph) AnalyzeGraph(ctx context.Context) (*recommend.GraphAnalysis, error) {
	snap := g.current(ctx)
	if snap == nil {
		return &recommend.GraphAnalysis{TopConnectedNodes: []recommend.NodeDegree{}}, nil
	}

	degrees := make([]recommend.NodeDegree, 0, len(snap.nodes))
	total := 0
	for _, n := range snap.nodes {
		degrees = append(degrees, recommend.NodeDegree{ID: n.id, Kind: n.kind, Connections: len(n.edges)})
		total += len(n.edges)
	}
	slices.SortFunc(degrees, func(x, y recommend.NodeDegree) int {
		if c := cmp.Compare(y.Connections, x.Connections); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})

	analysis := &recommend.GraphAnalysis{
		TotalNodes:        len(snap.nodes),
		TotalEdges:        snap.edges,
		UserNodes:         snap.users,
		ArticleNodes:      snap.articles,
		TopConnectedNodes: degrees[:min(len(degrees), topConnectedNodes)],
		BuiltAt:           snap.builtAt,
	}
	if len(snap.nodes) > 0 {
		analysis.AverageConnections = float64(total) / float64(len(snap.nodes))
	}
	return analysis, nil
}

var (
	_ recommend.Strategy      = (*Graph)(nil)
	_ recommend.GraphAnalyzer = (*Graph)(nil)
)
