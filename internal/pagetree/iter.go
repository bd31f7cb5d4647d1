// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pagetree

import (
	"github.com/gaissmai/phtree/internal/bitutil"
)

// Iter is a reusable forward iterator over a page tree.
//
// The masked mode only yields keys k with ((k | lower) & upper) == k,
// a page tree ordered by key yields them in ascending order and the
// scan stops as soon as a key exceeds upper.
//
// An Iter does not allocate, it's invalidated by any mutation of the tree.
type Iter[T any] struct {
	tree *Tree[T]
	leaf *page[T]
	idx  int

	lower, upper uint64
	single       bool // lower == upper, at most one key matches
	done         bool
}

// Reset the iterator for a full ordered scan of t.
func (it *Iter[T]) Reset(t *Tree[T]) {
	it.ResetMasked(t, 0, ^uint64(0))
}

// ResetMasked resets the iterator for a masked scan of t.
func (it *Iter[T]) ResetMasked(t *Tree[T], lower, upper uint64) {
	*it = Iter[T]{tree: t, lower: lower, upper: upper}

	if t == nil || t.root == nil || lower&^upper != 0 {
		it.done = true
		return
	}

	if lower == upper {
		it.single = true
		return
	}

	// lower is the smallest key that can match, start there
	it.leaf = t.findLeaf(lower)
	it.idx = lowerBound(it.leaf.keys[:it.leaf.n], lower)
}

// SetMasks changes the masks during a scan, keys already
// passed are not visited again.
func (it *Iter[T]) SetMasks(lower, upper uint64) {
	if it.done {
		return
	}
	if lower&^upper != 0 {
		it.done = true
		return
	}
	if it.single {
		// the single key is not yet visited, keep the shortcut only if still valid
		if !bitutil.Matches(it.lower, lower, upper) {
			it.done = true
		}
		return
	}

	it.lower, it.upper = lower, upper

	// skip forward to the smallest possible key
	if it.leaf != nil && it.idx < it.leaf.n && it.leaf.keys[it.idx] < lower {
		if it.leaf.keys[it.leaf.n-1] < lower {
			it.leaf = it.tree.findLeaf(lower)
		}
		it.idx = lowerBound(it.leaf.keys[:it.leaf.n], lower)
	}
}

// Next returns the next matching key and value.
func (it *Iter[T]) Next() (key uint64, val T, ok bool) {
	if it.done {
		return
	}

	if it.single {
		it.done = true
		if val, ok = it.tree.Get(it.lower); ok {
			return it.lower, val, true
		}
		return
	}

	for {
		if it.idx >= it.leaf.n {
			it.leaf = it.leaf.next
			it.idx = 0
			if it.leaf == nil {
				it.done = true
				return
			}
		}

		k := it.leaf.keys[it.idx]
		if k > it.upper {
			it.done = true
			return
		}

		i := it.idx
		it.idx++

		if bitutil.Matches(k, it.lower, it.upper) {
			return k, it.leaf.vals[i], true
		}
	}
}

// Done reports whether the iterator is exhausted.
func (it *Iter[T]) Done() bool {
	return it.done
}
