// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"math"
	"slices"

	"github.com/gaissmai/phtree/internal/bitutil"
)

// DistFunc returns the distance between two keys.
//
// A DistFunc for NearestNeighbors must never be smaller than the largest
// per-dimension difference, otherwise candidates outside of the search
// window are missed. The Euclidean and the Chebyshev distance qualify.
type DistFunc func(a, b []uint64) float64

// Euclidean is the default distance for NearestNeighbors.
func Euclidean(a, b []uint64) float64 {
	var sum float64
	for i := range a {
		d := absDiff(a[i], b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Chebyshev is the max. distance over all dimensions.
func Chebyshev(a, b []uint64) float64 {
	var m float64
	for i := range a {
		m = max(m, absDiff(a[i], b[i]))
	}
	return m
}

func absDiff(a, b uint64) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

// Neighbor is an entry returned by NearestNeighbors with its distance.
type Neighbor[V any] struct {
	Entry[V]
	Dist float64
}

// NearestNeighbors returns the k entries closest to center in ascending
// order of their distance, dist may be nil for Euclidean distance.
//
// The search starts with a small window around center and doubles it
// until k candidates are found. The final window query shrinks with
// every better candidate via AdjustMinMax.
func (t *Tree[V]) NearestNeighbors(center []uint64, k int, dist DistFunc) []Neighbor[V] {
	if t == nil || k <= 0 || t.size == 0 {
		return nil
	}
	t.checkKey(center)

	if dist == nil {
		dist = Euclidean
	}
	k = min(k, t.size)

	limit := bitutil.LowMask(uint(t.width))
	lo := make([]uint64, t.dims)
	hi := make([]uint64, t.dims)

	// grow a window around center until it holds k entries, the
	// farthest of them bounds the distance of the k-th neighbor
	var it *Iterator[V]
	var bound float64
	for radius := uint64(1); ; {
		window(center, radius, limit, lo, hi)
		if it == nil {
			it = t.Query(lo, hi)
		} else {
			it.Reset(lo, hi)
		}

		found := 0
		bound = 0
		for found < k && it.HasNext() {
			bound = max(bound, dist(center, it.NextReuse().Key))
			found++
		}
		if found == k || radius == limit {
			break
		}

		if radius > limit>>1 {
			radius = limit
		} else {
			radius <<= 1
		}
	}

	best := make([]Neighbor[V], 0, k+1)

	window(center, ceilRadius(bound, limit), limit, lo, hi)
	it.Reset(lo, hi)
	for it.HasNext() {
		e := it.NextReuse()
		d := dist(center, e.Key)

		if len(best) == k && d >= best[k-1].Dist {
			continue
		}
		best = insertNeighbor(best, Neighbor[V]{
			Entry: Entry[V]{Key: slices.Clone(e.Key), Value: e.Value},
			Dist:  d,
		}, k)

		if len(best) == k {
			// shrink the window to the current k-th distance
			window(center, ceilRadius(best[k-1].Dist, limit), limit, lo, hi)
			it.AdjustMinMax(lo, hi)
		}
	}

	return best
}

// ceilRadius converts a distance to a window radius, clamped to limit.
// The radius is slightly enlarged to cover the rounding errors of large
// distances in float64.
func ceilRadius(d float64, limit uint64) uint64 {
	r := math.Ceil(d*(1+1e-9)) + 1
	if r >= float64(limit) {
		return limit
	}
	return uint64(r)
}

// insertNeighbor inserts nb sorted by distance and caps the slice at k.
func insertNeighbor[V any](best []Neighbor[V], nb Neighbor[V], k int) []Neighbor[V] {
	i, _ := slices.BinarySearchFunc(best, nb.Dist, func(x Neighbor[V], d float64) int {
		switch {
		case x.Dist < d:
			return -1
		case x.Dist > d:
			return 1
		}
		return 0
	})
	best = slices.Insert(best, i, nb)
	if len(best) > k {
		best = best[:k]
	}
	return best
}

// window sets [lo, hi] to the box of the given radius around center,
// clamped to [0, limit].
func window(center []uint64, radius, limit uint64, lo, hi []uint64) {
	for d, c := range center {
		if c > radius {
			lo[d] = c - radius
		} else {
			lo[d] = 0
		}

		if limit-c > radius {
			hi[d] = c + radius
		} else {
			hi[d] = limit
		}
	}
}
