// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/gaissmai/phtree/internal/source"
	"github.com/spf13/cobra"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		n       int
		queries int
		side    uint64
		k       int
		check   bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark put, get, window query, knn and remove with random points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n <= 0 {
				return fmt.Errorf("--n must be positive, got %d", n)
			}

			tree, err := a.newTree()
			if err != nil {
				return err
			}

			prng := rand.New(rand.NewPCG(a.seed, a.seed))
			pts := source.Random(prng, n, a.dims, a.width)
			limit := ^uint64(0) >> (64 - a.width)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dims %d, width %d, points %d\n", a.dims, a.width, n)

			start := time.Now()
			for _, p := range pts {
				tree.Put(p.Key, p.Value)
			}
			report(out, "put", n, time.Since(start))

			start = time.Now()
			for _, p := range pts {
				tree.Get(p.Key)
			}
			report(out, "get", n, time.Since(start))

			// windows of the given side length around random points,
			// one iterator reused for all queries
			lo := make([]uint64, a.dims)
			hi := make([]uint64, a.dims)
			it := tree.Query(lo, hi)

			matches := 0
			start = time.Now()
			for range queries {
				c := pts[prng.IntN(len(pts))].Key
				for d, v := range c {
					lo[d] = v - min(v, side/2)
					hi[d] = v + min(limit-v, side/2)
				}
				it.Reset(lo, hi)
				for it.HasNext() {
					it.NextReuse()
					matches++
				}
			}
			report(out, "query", queries, time.Since(start))

			start = time.Now()
			for range queries {
				c := pts[prng.IntN(len(pts))].Key
				tree.NearestNeighbors(c, k, nil)
			}
			report(out, "knn", queries, time.Since(start))

			stats := tree.Stats()
			pools := tree.PoolStats()

			if check {
				if err := tree.Check(); err != nil {
					return err
				}
			}

			start = time.Now()
			for _, p := range pts {
				tree.Remove(p.Key)
			}
			report(out, "remove", n, time.Since(start))

			a.log.Info().
				Int("size", stats.Size).
				Int("nodes", stats.Nodes).
				Int("dense", stats.DenseNodes).
				Int("sparse", stats.SparseNodes).
				Int("ntree", stats.DelegatedNodes).
				Int("maxDepth", stats.MaxDepth).
				Int64("totalNodes", pools.TotalNodes).
				Int("matches", matches).
				Msg("bench done")

			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 100_000, "number of random points")
	cmd.Flags().IntVar(&queries, "queries", 1_000, "number of window and knn queries")
	cmd.Flags().Uint64Var(&side, "side", 1<<10, "side length of the query windows")
	cmd.Flags().IntVar(&k, "k", 10, "number of neighbors for the knn queries")
	cmd.Flags().BoolVar(&check, "check", false, "validate the tree invariants before removal")

	return cmd
}

func report(w io.Writer, op string, n int, d time.Duration) {
	perOp := float64(d.Nanoseconds()) / float64(max(n, 1))
	fmt.Fprintf(w, "%-8s %10d ops %14s %10.1f ns/op\n", op, n, d.Round(time.Microsecond), perOp)
}
