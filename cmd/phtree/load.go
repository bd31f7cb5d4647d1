// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/gaissmai/phtree/internal/source"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		check    bool
		toJSON   string
		toSQLite string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load points into a tree and print the tree statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			tree, err := a.loadTree(ctx)
			if err != nil {
				return err
			}

			if check {
				if err := tree.Check(); err != nil {
					a.log.Error().Err(err).Msg("tree check failed")
					return err
				}
				a.log.Info().Msg("tree check passed")
			}

			stats, err := sonnet.Marshal(tree.Stats())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(stats))

			if toJSON == "" && toSQLite == "" {
				return nil
			}

			// export in z-order
			var pts []source.Point
			for k, v := range tree.All() {
				pts = append(pts, source.Point{Key: append([]uint64(nil), k...), Value: v})
			}

			if toJSON != "" {
				f, err := os.Create(toJSON)
				if err != nil {
					return err
				}
				defer f.Close()

				if err := source.WriteJSON(f, pts); err != nil {
					return err
				}
				a.log.Info().Str("file", toJSON).Int("points", len(pts)).Msg("points written")
			}

			if toSQLite != "" {
				db, err := source.OpenSQLite(toSQLite)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := source.WriteSQLite(ctx, db, a.table, a.dims, pts); err != nil {
					return err
				}
				a.log.Info().Str("file", toSQLite).Str("table", a.table).Int("points", len(pts)).Msg("points written")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "validate the tree invariants after loading")
	cmd.Flags().StringVar(&toJSON, "to-json", "", "write the points in z-order to a JSON file")
	cmd.Flags().StringVar(&toSQLite, "to-sqlite", "", "write the points in z-order to a SQLite database, see --table")

	return cmd
}
