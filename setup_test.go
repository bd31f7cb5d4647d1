// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"math/rand/v2"
	"slices"
	"testing"
)

// treeConfig is a test setup covering one storage strategy.
type treeConfig struct {
	name  string
	dims  int
	width int
	opts  []Option
}

// treeConfigs cover dense, sparse, delegated and mixed trees.
var treeConfigs = []treeConfig{
	{name: "1d", dims: 1, width: 64},
	{name: "2d-dense", dims: 2, width: 16},
	{name: "3d-mixed", dims: 3, width: 12},
	{name: "3d-sparse", dims: 3, width: 12, opts: []Option{WithDenseMaxDims(0)}},
	{name: "5d-ntree", dims: 5, width: 10, opts: []Option{WithNodeTreeMinDims(2)}},
	{name: "10d-sparse", dims: 10, width: 20},
	{name: "20d-ntree", dims: 20, width: 8},
	{name: "64d-ntree", dims: 64, width: 4},
}

// randomKeys returns n distinct random keys.
func randomKeys(prng *rand.Rand, n, dims, width int) [][]uint64 {
	mask := ^uint64(0) >> (64 - width)

	seen := make(map[string]bool, n)
	keys := make([][]uint64, 0, n)
	for len(keys) < n {
		key := make([]uint64, dims)
		for d := range key {
			key[d] = prng.Uint64() & mask
		}
		if s := keyFmt(key); !seen[s] {
			seen[s] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// randomWindow returns a random window, sometimes wide, sometimes narrow.
func randomWindow(prng *rand.Rand, dims, width int) (min, max []uint64) {
	mask := ^uint64(0) >> (64 - width)

	min = make([]uint64, dims)
	max = make([]uint64, dims)
	for d := range dims {
		a, b := prng.Uint64()&mask, prng.Uint64()&mask
		if a > b {
			a, b = b, a
		}
		min[d], max[d] = a, b
	}
	return min, max
}

// zCmp compares two keys in z-order, the order of the hypercube trie:
// the highest differing bit decides, dimension 0 first.
func zCmp(a, b []uint64) int {
	for bit := 63; bit >= 0; bit-- {
		for d := range a {
			x, y := a[d]>>bit&1, b[d]>>bit&1
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

// bruteWindow returns the keys within [min, max] in z-order.
func bruteWindow(keys [][]uint64, min, max []uint64) [][]uint64 {
	var got [][]uint64
	for _, k := range keys {
		in := true
		for d := range k {
			if k[d] < min[d] || k[d] > max[d] {
				in = false
				break
			}
		}
		if in {
			got = append(got, k)
		}
	}
	slices.SortFunc(got, zCmp)
	return got
}

// collect drains the iterator, the keys are cloned.
func collect[V any](it *Iterator[V]) [][]uint64 {
	var got [][]uint64
	for it.HasNext() {
		got = append(got, it.Next().Key)
	}
	return got
}

func equalKeys(a, b [][]uint64) bool {
	return slices.EqualFunc(a, b, func(x, y []uint64) bool { return slices.Equal(x, y) })
}

// mustCheck fails the test on any invariant violation.
func mustCheck[V any](t *testing.T, tree *Tree[V]) {
	t.Helper()
	if err := tree.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

// mustPanic fails the test if fn does not panic.
func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s, expected panic", name)
		}
	}()
	fn()
}
