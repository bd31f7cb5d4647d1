// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/gaissmai/phtree"
	"github.com/gaissmai/phtree/internal/logx"
	"github.com/gaissmai/phtree/internal/source"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds the global flags and the state built before every command.
type app struct {
	configPath string
	dims       int
	width      int

	// point source, one of
	jsonPath   string
	sqlitePath string
	table      string
	random     int
	seed       uint64

	cfg    settings
	log    zerolog.Logger
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "phtree",
		Short:         "Multi-dimensional point index, load, query and benchmark",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	defaultConfig := os.Getenv(envConfigPath)
	if defaultConfig == "" {
		defaultConfig = "phtree.json"
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfig, "JSON config file, env "+envConfigPath)
	pf.IntVar(&a.dims, "dims", 2, "number of key dimensions")
	pf.IntVar(&a.width, "width", 64, "key bit width per dimension")
	pf.StringVar(&a.jsonPath, "json", "", "read points from JSON file")
	pf.StringVar(&a.sqlitePath, "sqlite", "", "read points from SQLite database")
	pf.StringVar(&a.table, "table", "points", "SQLite table with columns k0..kN, value")
	pf.IntVar(&a.random, "random", 0, "generate random points")
	pf.Uint64Var(&a.seed, "seed", 42, "seed for random points")

	root.AddCommand(
		newBenchCmd(a),
		newLoadCmd(a),
		newQueryCmd(a),
		newKnnCmd(a),
		newDumpCmd(a),
	)

	return root
}

// setup loads the settings and builds the root logger.
func (a *app) setup(cmd *cobra.Command) (err error) {
	if a.cfg, err = loadSettings(a.configPath, os.Environ()); err != nil {
		return err
	}

	if a.log, a.closer, err = logx.New(a.cfg.log, cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.log = a.log.With().Str("cmd", cmd.Name()).Logger()
	return nil
}

// newTree returns an empty tree with the loaded config.
func (a *app) newTree() (*phtree.Tree[int64], error) {
	return phtree.New[int64](a.dims, a.width,
		phtree.WithConfig(a.cfg.tree),
		phtree.WithLogger(a.log),
	)
}

// points reads the points from the selected source.
func (a *app) points(ctx context.Context) (pts []source.Point, err error) {
	switch {
	case a.jsonPath != "":
		pts, err = source.ReadJSONFile(a.jsonPath)
	case a.sqlitePath != "":
		db, err := source.OpenSQLite(a.sqlitePath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		pts, err = source.ReadSQLite(ctx, db, a.table, a.dims)
		if err != nil {
			return nil, err
		}
	case a.random > 0:
		prng := rand.New(rand.NewPCG(a.seed, a.seed))
		pts = source.Random(prng, a.random, a.dims, a.width)
	default:
		return nil, fmt.Errorf("no point source, use --json, --sqlite or --random")
	}
	if err != nil {
		return nil, err
	}

	if err := source.Validate(pts, a.dims, a.width); err != nil {
		return nil, err
	}
	return pts, nil
}

// loadTree builds a tree from the selected point source.
func (a *app) loadTree(ctx context.Context) (*phtree.Tree[int64], error) {
	tree, err := a.newTree()
	if err != nil {
		return nil, err
	}

	pts, err := a.points(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range pts {
		tree.Put(p.Key, p.Value)
	}

	a.log.Info().
		Int("points", len(pts)).
		Int("size", tree.Len()).
		Int("dims", a.dims).
		Int("width", a.width).
		Msg("tree loaded")

	return tree, nil
}

// parseKey parses a comma separated list of dims unsigned integers,
// decimal or with 0x prefix.
func parseKey(s string, dims int) ([]uint64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != dims {
		return nil, fmt.Errorf("key %q has %d values, want %d", s, len(fields), dims)
	}

	key := make([]uint64, dims)
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", s, err)
		}
		key[i] = v
	}
	return key, nil
}
