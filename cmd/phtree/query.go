// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/gaissmai/phtree"
	"github.com/gaissmai/phtree/internal/source"
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		minStr, maxStr string
		mask           bool
		countOnly      bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a window or mask query, print the matching points as JSON",
		Example: `  phtree query --random 1000 --dims 2 --width 8 --min 0,0 --max 15,15
  phtree query --json points.json --dims 1 --mask --min 0 --max 0xfffffffe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lo, err := parseKey(minStr, a.dims)
			if err != nil {
				return err
			}
			hi, err := parseKey(maxStr, a.dims)
			if err != nil {
				return err
			}

			tree, err := a.loadTree(cmd.Context())
			if err != nil {
				return err
			}

			var it *phtree.Iterator[int64]
			if mask {
				it = tree.QueryMask(lo, hi)
			} else {
				it = tree.Query(lo, hi)
			}

			var pts []source.Point
			count := 0
			for it.HasNext() {
				count++
				if countOnly {
					it.NextReuse()
					continue
				}
				e := it.Next()
				pts = append(pts, source.Point{Key: e.Key, Value: e.Value})
			}

			a.log.Debug().Bool("mask", mask).Int("matches", count).Msg("query done")

			out := cmd.OutOrStdout()
			if countOnly {
				fmt.Fprintln(out, count)
				return nil
			}
			if err := source.WriteJSON(out, pts); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&minStr, "min", "", "lower window corner or min mask, comma separated")
	cmd.Flags().StringVar(&maxStr, "max", "", "upper window corner or max mask, comma separated")
	cmd.Flags().BoolVar(&mask, "mask", false, "mask query, ((key|min)&max) == key")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of matches")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")

	return cmd
}
