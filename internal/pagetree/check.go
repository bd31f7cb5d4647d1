// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pagetree

import (
	"errors"
	"fmt"
)

// ErrCorrupt is wrapped by all errors returned from Check.
var ErrCorrupt = errors.New("pagetree: corrupt")

// Check validates the page tree invariants: sorted keys, separator
// bounds, occupancy, equal leaf depth, leaf links and the running count.
//
// Useful during development, debugging and testing.
func (t *Tree[T]) Check() error {
	if t == nil || t.root == nil {
		if t != nil && t.count != 0 {
			return fmt.Errorf("%w: empty root but count %d", ErrCorrupt, t.count)
		}
		return nil
	}

	if t.root.n == 0 {
		return fmt.Errorf("%w: empty root page in non-empty tree", ErrCorrupt)
	}

	c := checker[T]{leafDepth: -1}
	c.page(t.root, 0, 0, ^uint64(0), true, false)
	if c.err != nil {
		return c.err
	}

	// the linked leaves must reach all keys in ascending order
	var n int
	var prev uint64
	for p := t.firstLeaf(); p != nil; p = p.next {
		for _, k := range p.keys[:p.n] {
			if n > 0 && k <= prev {
				return fmt.Errorf("%w: leaf chain out of order at key %d", ErrCorrupt, k)
			}
			prev = k
			n++
		}
	}

	if n != c.keys {
		return fmt.Errorf("%w: leaf chain has %d keys, tree has %d", ErrCorrupt, n, c.keys)
	}
	if n != t.count {
		return fmt.Errorf("%w: count is %d, tree has %d keys", ErrCorrupt, t.count, n)
	}
	return nil
}

type checker[T any] struct {
	leafDepth int
	keys      int
	err       error
}

// page checks p recursively, all keys must be within [lo, hi].
func (c *checker[T]) page(p *page[T], depth int, lo, hi uint64, isRoot, hiOpen bool) {
	if c.err != nil {
		return
	}

	if p.leaf {
		if c.leafDepth < 0 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			c.err = fmt.Errorf("%w: leaf at depth %d, expected %d", ErrCorrupt, depth, c.leafDepth)
			return
		}

		if p.n > MaxLeafKeys || (!isRoot && p.n < minLeafKeys) {
			c.err = fmt.Errorf("%w: leaf occupancy %d out of [%d, %d]", ErrCorrupt, p.n, minLeafKeys, MaxLeafKeys)
			return
		}

		for i, k := range p.keys[:p.n] {
			if i > 0 && k <= p.keys[i-1] {
				c.err = fmt.Errorf("%w: leaf keys not sorted at %d", ErrCorrupt, i)
				return
			}
			if k < lo || k > hi || (hiOpen && k == hi) {
				c.err = fmt.Errorf("%w: leaf key %d out of bounds [%d, %d]", ErrCorrupt, k, lo, hi)
				return
			}
		}
		c.keys += p.n
		return
	}

	minKids := minInnerKids
	if isRoot {
		minKids = 2
	}
	if p.n > MaxInnerKids || p.n < minKids {
		c.err = fmt.Errorf("%w: inner occupancy %d out of [%d, %d]", ErrCorrupt, p.n, minKids, MaxInnerKids)
		return
	}

	seps := p.keys[:p.n-1]
	for i, s := range seps {
		if i > 0 && s <= seps[i-1] {
			c.err = fmt.Errorf("%w: separators not sorted at %d", ErrCorrupt, i)
			return
		}
	}

	for i, kid := range p.kids[:p.n] {
		kidLo, kidHi, kidOpen := lo, hi, hiOpen
		if i > 0 {
			kidLo = seps[i-1]
		}
		if i < len(seps) {
			kidHi, kidOpen = seps[i], true
		}
		c.page(kid, depth+1, kidLo, kidHi, false, kidOpen)
	}
}
