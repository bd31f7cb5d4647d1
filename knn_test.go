// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestNearestNeighbors(t *testing.T) {
	t.Parallel()

	for _, tc := range treeConfigs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			prng := rand.New(rand.NewPCG(42, 42))

			tree := MustNew[int](tc.dims, tc.width, tc.opts...)
			keys := randomKeys(prng, 1_000, tc.dims, tc.width)
			for i, k := range keys {
				tree.Put(k, i)
			}

			for _, dist := range []DistFunc{Euclidean, Chebyshev} {
				for range 20 {
					center := randomKeys(prng, 1, tc.dims, tc.width)[0]
					k := 1 + prng.IntN(10)

					want := make([]float64, 0, len(keys))
					for _, key := range keys {
						want = append(want, dist(center, key))
					}
					slices.Sort(want)
					want = want[:k]

					got := tree.NearestNeighbors(center, k, dist)
					if len(got) != k {
						t.Fatalf("NearestNeighbors, expected %d results, got %d", k, len(got))
					}

					for i, nb := range got {
						if nb.Dist != want[i] {
							t.Fatalf("NearestNeighbors(%v, %d), result %d: expected dist %v, got %v", center, k, i, want[i], nb.Dist)
						}
						if d := dist(center, nb.Key); d != nb.Dist {
							t.Fatalf("NearestNeighbors, dist of key %v is %v, reported %v", nb.Key, d, nb.Dist)
						}
						if v, _ := tree.Get(nb.Key); v != nb.Value {
							t.Fatalf("NearestNeighbors, value mismatch for %v", nb.Key)
						}
					}
				}
			}
		})
	}
}

func TestNearestNeighborsEdgeCases(t *testing.T) {
	t.Parallel()

	tree := MustNew[string](2, 8)
	if got := tree.NearestNeighbors([]uint64{1, 1}, 3, nil); got != nil {
		t.Errorf("empty tree, expected nil, got %v", got)
	}

	tree.Put([]uint64{0, 0}, "origin")
	tree.Put([]uint64{255, 255}, "corner")

	if got := tree.NearestNeighbors([]uint64{1, 1}, 0, nil); got != nil {
		t.Errorf("k = 0, expected nil, got %v", got)
	}

	// k larger than the tree
	got := tree.NearestNeighbors([]uint64{200, 200}, 5, nil)
	if len(got) != 2 || got[0].Value != "corner" || got[1].Value != "origin" {
		t.Errorf("k > Len, expected [corner origin], got %v", got)
	}

	// exact hit
	got = tree.NearestNeighbors([]uint64{0, 0}, 1, Chebyshev)
	if len(got) != 1 || got[0].Dist != 0 || got[0].Value != "origin" {
		t.Errorf("exact hit, expected origin at 0, got %v", got)
	}
}
