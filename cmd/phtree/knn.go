// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/gaissmai/phtree"
	"github.com/gaissmai/phtree/internal/source"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
)

// neighbor is the JSON output of the knn command.
type neighbor struct {
	Key   []uint64 `json:"key"`
	Value int64    `json:"value"`
	Dist  float64  `json:"dist"`
}

func newKnnCmd(a *app) *cobra.Command {
	var (
		centerStr string
		k         int
		distName  string
	)

	cmd := &cobra.Command{
		Use:   "knn",
		Short: "Find the k nearest neighbors of a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			center, err := parseKey(centerStr, a.dims)
			if err != nil {
				return err
			}

			var dist phtree.DistFunc
			switch strings.ToLower(distName) {
			case "euclidean", "l2":
				dist = phtree.Euclidean
			case "chebyshev", "linf":
				dist = phtree.Chebyshev
			default:
				return fmt.Errorf("unknown distance %q, use euclidean or chebyshev", distName)
			}

			tree, err := a.loadTree(cmd.Context())
			if err != nil {
				return err
			}
			if err := source.Validate([]source.Point{{Key: center}}, a.dims, a.width); err != nil {
				return err
			}

			nbs := tree.NearestNeighbors(center, k, dist)

			out := make([]neighbor, 0, len(nbs))
			for _, nb := range nbs {
				out = append(out, neighbor{Key: nb.Key, Value: nb.Value, Dist: nb.Dist})
			}

			data, err := sonnet.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&centerStr, "center", "", "query point, comma separated")
	cmd.Flags().IntVar(&k, "k", 5, "number of neighbors")
	cmd.Flags().StringVar(&distName, "dist", "euclidean", "distance, euclidean or chebyshev")
	_ = cmd.MarkFlagRequired("center")

	return cmd
}
