// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Command newsctl is an offline companion to the Newsroom server. It opens the
// BadgerDB store directly to seed the catalog, inspect recommendations and
// read attribution statistics. Stop the server first: BadgerDB allows only one
// process per directory.
//
//	newsctl import catalog.yaml
//	newsctl recommend --subject reader-1 --algorithm personal --limit 5
//	newsctl feedback --subject reader-1 --article a1 --type like
//	newsctl stats --days 30 --output json
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tomtom215/newsroom/internal/app"
	"github.com/tomtom215/newsroom/internal/auth"
	"github.com/tomtom215/newsroom/internal/config"
	"github.com/tomtom215/newsroom/internal/logging"
	"github.com/tomtom215/newsroom/internal/store"
)

var version = "dev"

// offlineOverrides switch off the server parts newsctl never runs, so it does
// not need a JWT secret or a reachable broker.
var offlineOverrides = map[string]any{
	"auth.mode":      auth.ModeNone,
	"events.enabled": false,
}

func main() {
	c := &cli{out: os.Stdout}
	err := newRootCmd(c).Execute()
	if closeErr := c.close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "closing store:", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// cli carries flags and the lazily opened environment across commands.
type cli struct {
	out        io.Writer
	configPath string
	output     string
	verbose    bool

	env   *environment
	owned bool
}

// environment is an opened store with an engine on top.
type environment struct {
	cfg   *config.Config
	store *store.Store
	rec   *app.Recommender
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "newsctl",
		Short:         "Offline tooling for the Newsroom recommendation store",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(c.out)
			if c.output != formatYAML && c.output != formatJSON {
				return fmt.Errorf("--output must be %s or %s, got %q", formatYAML, formatJSON, c.output)
			}
			if cmd.Name() == "version" {
				return nil
			}
			return c.open()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to config file (defaults to the server's search path)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", formatYAML, "Output format: yaml or json")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log engine activity to stderr")

	root.AddCommand(
		newVersionCmd(c),
		newImportCmd(c),
		newRecommendCmd(c),
		newFeedbackCmd(c),
		newInteractCmd(c),
		newStatsCmd(c),
		newGraphCmd(c),
		newStatusCmd(c),
	)
	return root
}

func (c *cli) open() error {
	if c.env != nil {
		return nil
	}

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = "console"
	logCfg.Output = os.Stderr
	logging.Init(logCfg)

	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath, config.WithOverrides(offlineOverrides))
	} else {
		cfg, err = config.Load(config.WithOverrides(offlineOverrides))
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(&cfg.Storage, logging.WithComponent("store"))
	if err != nil {
		return err
	}
	env, err := newEnvironment(cfg, st, logging.WithComponent("recommend"))
	if err != nil {
		_ = st.Close()
		return err
	}
	c.env = env
	c.owned = true
	return nil
}

func (c *cli) close() error {
	if c.env == nil || !c.owned {
		return nil
	}
	err := c.env.store.Close()
	c.env = nil
	c.owned = false
	return err
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newEnvironment(cfg *config.Config, st *store.Store, logger zerolog.Logger) (*environment, error) {
	rec, err := app.NewRecommender(cfg, st, app.Options{}, logger)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, store: st, rec: rec}, nil
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(c.out, "newsctl", version)
		},
	}
}
