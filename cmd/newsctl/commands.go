// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/newsroom/internal/recommend"
	"github.com/tomtom215/newsroom/internal/validation"
)

// catalogFile is the import document. JSON files parse too.
type catalogFile struct {
	Articles []recommend.Article `yaml:"articles"`
	Events   []eventRecord       `yaml:"events"`
}

type eventRecord struct {
	SubjectID string    `yaml:"subject_id"`
	ArticleID string    `yaml:"article_id"`
	EventType string    `yaml:"event_type"`
	Timestamp time.Time `yaml:"timestamp"`
}

type importResult struct {
	Articles int `json:"articles"`
	Events   int `json:"events"`
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Upsert articles and replay interaction events from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			var doc catalogFile
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			ctx := cmd.Context()

			for i := range doc.Articles {
				if doc.Articles[i].Status == "" {
					doc.Articles[i].Status = recommend.StatusPublished
				}
			}
			if err := c.env.store.PutArticles(ctx, doc.Articles...); err != nil {
				return err
			}

			for i, rec := range doc.Events {
				req := validation.InteractionRequest{
					SubjectID: rec.SubjectID,
					ArticleID: rec.ArticleID,
					EventType: rec.EventType,
					Timestamp: rec.Timestamp,
				}
				if verr := validation.ValidateStruct(&req); verr != nil {
					return fmt.Errorf("event %d: %w", i, verr)
				}
				if err := c.env.rec.Engine.RecordInteraction(ctx, req.ToEvent()); err != nil {
					return fmt.Errorf("event %d: %w", i, err)
				}
			}
			return render(c.out, c.output, importResult{Articles: len(doc.Articles), Events: len(doc.Events)})
		},
	}
}

func newRecommendCmd(c *cli) *cobra.Command {
	var (
		query   validation.RecommendationQuery
		subject string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Compute recommendations exactly as the server would",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verr := validation.ValidateStruct(&query); verr != nil {
				return verr
			}
			resp, err := c.env.rec.Engine.GetRecommendations(cmd.Context(), query.ToRequest(subject, "newsctl"))
			if err != nil {
				return err
			}
			return render(c.out, c.output, resp)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&subject, "subject", "", "Subject (reader) ID; empty for an anonymous request")
	flags.StringVar(&query.SessionID, "session", "", "Session ID for anonymous requests")
	flags.StringVarP(&query.Algorithm, "algorithm", "a", "", "personal, collaborative, graph, trending, ai or mixed (default mixed)")
	flags.IntVarP(&query.Limit, "limit", "n", 0, "Number of items (default from recommend.limits.default_limit)")
	flags.StringVar(&query.Category, "category", "", "Restrict to one category ID")
	flags.StringSliceVar(&query.Exclude, "exclude", nil, "Article IDs to exclude")
	return cmd
}

func newFeedbackCmd(c *cli) *cobra.Command {
	var (
		req     validation.FeedbackRequest
		subject string
	)
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record explicit feedback on an article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verr := validation.ValidateStruct(&req); verr != nil {
				return verr
			}
			fb := req.ToFeedback(subject)
			if err := c.env.rec.Engine.RecordFeedback(cmd.Context(), fb); err != nil {
				return err
			}
			return render(c.out, c.output, map[string]any{"recorded": true, "feedback": fb})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&subject, "subject", "", "Subject (reader) ID")
	flags.StringVar(&req.ArticleID, "article", "", "Article ID")
	flags.StringVarP(&req.FeedbackType, "type", "t", "", "like, dislike, not_interested, already_read, clicked or shared")
	flags.StringVar(&req.RecommendationRef, "ref", "", "Recommendation log ID the feedback refers to")
	return cmd
}

func newInteractCmd(c *cli) *cobra.Command {
	var req validation.InteractionRequest
	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Record one interaction event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verr := validation.ValidateStruct(&req); verr != nil {
				return verr
			}
			ev := req.ToEvent()
			if err := c.env.rec.Engine.RecordInteraction(cmd.Context(), ev); err != nil {
				return err
			}
			return render(c.out, c.output, map[string]any{"recorded": true, "event": ev})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.SubjectID, "subject", "", "Subject (reader) ID")
	flags.StringVar(&req.ArticleID, "article", "", "Article ID")
	flags.StringVarP(&req.EventType, "type", "t", "", "view, like, share, comment or readingTime")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	var query validation.StatsQuery
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show attribution statistics per algorithm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verr := validation.ValidateStruct(&query); verr != nil {
				return verr
			}
			stats, err := c.env.rec.Engine.GetStats(cmd.Context(), query.Days)
			if err != nil {
				return err
			}
			return render(c.out, c.output, stats)
		},
	}
	cmd.Flags().IntVarP(&query.Days, "days", "d", 7, "Window in days (1-365)")
	return cmd
}

func newGraphCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze-graph",
		Short: "Rebuild the interaction graph and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if err := c.env.rec.Graph.Rebuild(ctx); err != nil {
				return err
			}
			analysis, err := c.env.rec.Engine.AnalyzeGraph(ctx)
			if err != nil {
				return err
			}
			return render(c.out, c.output, analysis)
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, err := c.env.store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			return render(c.out, c.output, counts)
		},
	}
}
