// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"fmt"
	"iter"
	"slices"

	"github.com/gaissmai/phtree/internal/bitutil"
	"github.com/gaissmai/phtree/internal/pagetree"
)

// Entry is a key/value pair returned by iterators.
type Entry[V any] struct {
	Key   []uint64
	Value V
}

// Filter is an optional predicate for queries, it's applied in
// addition to the window.
//
// IsNodeValid is called for every subtree before it is entered, all
// keys below share the bits of prefix above postLen. Returning false
// prunes the whole subtree. IsValid is called for every candidate key.
type Filter interface {
	IsValid(key []uint64) bool
	IsNodeValid(prefix []uint64, postLen int) bool
}

type queryMode uint8

const (
	windowQuery queryMode = iota // min[d] <= key[d] <= max[d]
	maskQuery                    // ((key[d] | min[d]) & max[d]) == key[d]
)

// frame is the scan state of one trie node on the iterator stack.
type frame[V any] struct {
	n *node[V]

	// hypercube address masks of this node for the query
	lower, upper uint64

	pos  uint64 // dense: next address to examine
	done bool   // dense: exhausted

	pages pagetree.Iter[any]
	nt    ntIter[V]
}

// Iterator is a stack based query iterator over a tree.
//
// The frame stack has the depth of the key bit width and is reused by
// Reset, as are the two result buffers. An iterator does not allocate
// after construction.
//
// An iterator must not be used across mutations of the tree.
type Iterator[V any] struct {
	tree   *Tree[V]
	mode   queryMode
	min    []uint64
	max    []uint64
	filter Filter

	frames []frame[V]
	depth  int

	// double buffered results, buf[cur] holds the prepared next entry
	buf     [2]Entry[V]
	cur     int
	hasNext bool
}

// newIterator returns an iterator over t, for a nil tree the
// iterator is empty forever.
func (t *Tree[V]) newIterator() *Iterator[V] {
	if t == nil {
		return &Iterator[V]{}
	}

	it := &Iterator[V]{
		tree:   t,
		min:    make([]uint64, t.dims),
		max:    make([]uint64, t.dims),
		frames: make([]frame[V], t.width+1),
	}
	it.buf[0].Key = make([]uint64, t.dims)
	it.buf[1].Key = make([]uint64, t.dims)
	return it
}

// Query returns an iterator over all entries with
// min[d] <= key[d] <= max[d] for every dimension d.
// The iterator of a nil tree is empty.
func (t *Tree[V]) Query(min, max []uint64) *Iterator[V] {
	it := t.newIterator()
	it.Reset(min, max)
	return it
}

// QueryMask returns an iterator over all entries with
// ((key[d] | minMask[d]) & maxMask[d]) == key[d] for every dimension d.
func (t *Tree[V]) QueryMask(minMask, maxMask []uint64) *Iterator[V] {
	it := t.newIterator()
	it.ResetMask(minMask, maxMask)
	return it
}

// QueryFilter is like Query with an additional filter.
func (t *Tree[V]) QueryFilter(min, max []uint64, f Filter) *Iterator[V] {
	it := t.newIterator()
	it.ResetFilter(min, max, f)
	return it
}

// Reset restarts the iterator as a window query, all buffers are reused.
func (it *Iterator[V]) Reset(min, max []uint64) {
	it.reset(windowQuery, min, max, nil)
}

// ResetMask restarts the iterator as a mask query.
func (it *Iterator[V]) ResetMask(minMask, maxMask []uint64) {
	it.reset(maskQuery, minMask, maxMask, nil)
}

// ResetFilter restarts the iterator as a window query with filter.
func (it *Iterator[V]) ResetFilter(min, max []uint64, f Filter) {
	it.reset(windowQuery, min, max, f)
}

func (it *Iterator[V]) reset(mode queryMode, min, max []uint64, f Filter) {
	t := it.tree
	if t == nil {
		return
	}
	if len(min) != t.dims || len(max) != t.dims {
		panic(fmt.Errorf("%w: got %d/%d, want %d", ErrKeyLength, len(min), len(max), t.dims))
	}

	it.mode = mode
	it.filter = f
	copy(it.min, min)
	copy(it.max, max)

	it.depth = 0
	it.hasNext = false

	if t.size == 0 || !it.nodeMatches(t.root) {
		return
	}

	it.push(t.root)
	it.findNext()
}

// HasNext reports whether another entry is available.
func (it *Iterator[V]) HasNext() bool {
	return it.hasNext
}

// NextReuse returns the next entry. The returned entry, including the
// key slice, is owned by the iterator and valid only until the next call
// of a Next method or Reset, it's overwritten afterwards.
//
// NextReuse panics if there is no next entry, check HasNext first.
func (it *Iterator[V]) NextReuse() *Entry[V] {
	if !it.hasNext {
		panic(ErrNoSuchElement)
	}

	e := &it.buf[it.cur]

	// prepare the next result in the other buffer
	it.cur ^= 1
	it.findNext()

	return e
}

// Next returns a stable copy of the next entry.
//
// Next panics if there is no next entry, check HasNext first.
func (it *Iterator[V]) Next() Entry[V] {
	e := it.NextReuse()
	return Entry[V]{Key: slices.Clone(e.Key), Value: e.Value}
}

// NextValue returns only the value of the next entry.
//
// NextValue panics if there is no next entry, check HasNext first.
func (it *Iterator[V]) NextValue() V {
	return it.NextReuse().Value
}

// Remove is not supported, entries must be removed via the tree
// after the iteration.
func (it *Iterator[V]) Remove() {
	panic(fmt.Errorf("%w: remove during iteration", ErrUnsupported))
}

// AdjustMinMax shrinks (or changes) the query window during the iteration,
// e.g. for a nearest neighbor search with a shrinking radius.
//
// Entries already returned are not returned again, entries not yet
// passed are returned if they match the new window. Frames whose nodes
// don't intersect the new window are dropped, the iteration is not
// restarted from the root. For mask queries min and max are the masks.
func (it *Iterator[V]) AdjustMinMax(min, max []uint64) {
	t := it.tree
	if t == nil {
		return
	}
	if len(min) != t.dims || len(max) != t.dims {
		panic(fmt.Errorf("%w: got %d/%d, want %d", ErrKeyLength, len(min), len(max), t.dims))
	}

	copy(it.min, min)
	copy(it.max, max)

	// revalidate the stack top-down
	for i := range it.depth {
		f := &it.frames[i]

		if !it.nodeMatches(f.n) {
			it.depth = i
			break
		}

		f.lower, f.upper = it.hcMasks(f.n)

		switch f.n.kind {
		case denseNode:
			if f.lower&^f.upper != 0 {
				f.done = true
			}
		case delegatedNode:
			f.nt.setMasks(f.lower, f.upper)
		default:
			f.pages.SetMasks(f.lower, f.upper)
		}
	}

	// the prepared result may be out of the new window
	if it.hasNext && !it.keyMatches(it.buf[it.cur].Key) {
		it.findNext()
	}
}

// push a frame for n onto the stack, n must match the query.
func (it *Iterator[V]) push(n *node[V]) {
	f := &it.frames[it.depth]
	it.depth++

	f.n = n
	f.lower, f.upper = it.hcMasks(n)

	switch n.kind {
	case denseNode:
		f.pos = f.lower
		f.done = f.lower&^f.upper != 0
	case delegatedNode:
		f.nt.reset(n.nt, f.lower, f.upper)
	default:
		f.pages.ResetMasked(&n.sparse, f.lower, f.upper)
	}
}

// findNext advances the stack to the next matching entry and copies
// it into buf[cur].
func (it *Iterator[V]) findNext() {
	for it.depth > 0 {
		f := &it.frames[it.depth-1]

		slot, ok := f.next()
		if !ok {
			// frame exhausted, pop
			it.depth--
			continue
		}

		switch x := slot.(type) {
		case *entry[V]:
			if it.keyMatches(x.key) {
				e := &it.buf[it.cur]
				copy(e.Key, x.key)
				e.Value = x.value
				it.hasNext = true
				return
			}
		case *node[V]:
			// prune subtrees outside of the query
			if it.nodeMatches(x) {
				it.push(x)
			}
		}
	}

	it.hasNext = false
}

// next returns the next slot of the frame's node matching the hypercube masks.
func (f *frame[V]) next() (any, bool) {
	switch f.n.kind {
	case denseNode:
		slots := uint64(len(f.n.dense))
		for !f.done {
			hc, ok := bitutil.NextGE(f.pos, f.lower, f.upper)
			if !ok || hc >= slots {
				f.done = true
				break
			}
			f.pos = hc + 1

			if v := f.n.dense[hc]; v != nil {
				return v, true
			}
		}
		return nil, false

	case delegatedNode:
		_, v, ok := f.nt.next()
		return v, ok

	default:
		_, v, ok := f.pages.Next()
		return v, ok
	}
}

// hcMasks computes the hypercube address masks of node n for the query.
//
// For a window query a 1 in lower means the lower half of the dimension
// is below min and needs no scan, a 0 in upper means the upper half is
// above max. For a mask query the masks are just the bits at postLen.
func (it *Iterator[V]) hcMasks(n *node[V]) (lower, upper uint64) {
	pos := uint(n.postLen)

	if it.mode == maskQuery {
		return bitutil.HcAddr(it.min, pos), bitutil.HcAddr(it.max, pos)
	}

	bisect := uint64(1) << pos
	for d, p := range n.prefix {
		mid := p | bisect

		lower <<= 1
		upper <<= 1
		if it.min[d] >= mid {
			lower |= 1
		}
		if it.max[d] >= mid {
			upper |= 1
		}
	}
	return lower, upper
}

// nodeMatches reports whether any key below n may match the query.
func (it *Iterator[V]) nodeMatches(n *node[V]) bool {
	if it.mode == maskQuery {
		above := bitutil.AboveMask(uint(n.postLen))
		for d, p := range n.prefix {
			if (((p|it.min[d])&it.max[d])^p)&above != 0 {
				return false
			}
		}
	} else {
		low := n.rangeMask()
		for d, p := range n.prefix {
			if p > it.max[d] || p|low < it.min[d] {
				return false
			}
		}
	}

	if it.filter != nil {
		return it.filter.IsNodeValid(n.prefix, int(n.postLen))
	}
	return true
}

// keyMatches reports whether the key matches the query.
func (it *Iterator[V]) keyMatches(key []uint64) bool {
	var ok bool
	if it.mode == maskQuery {
		ok = bitutil.MatchMask(key, it.min, it.max)
	} else {
		ok = bitutil.InRange(key, it.min, it.max)
	}

	if ok && it.filter != nil {
		return it.filter.IsValid(key)
	}
	return ok
}

// ############################################################
//  range-over-func iterators
// ############################################################

// All returns an iterator over all entries in z-order.
// The key passed to yield is only valid during the call.
func (t *Tree[V]) All() iter.Seq2[[]uint64, V] {
	return func(yield func([]uint64, V) bool) {
		if t == nil || t.size == 0 {
			return
		}
		min := make([]uint64, t.dims)
		max := make([]uint64, t.dims)
		for d := range max {
			max[d] = bitutil.LowMask(uint(t.width))
		}
		yieldAll(t.Query(min, max), yield)
	}
}

// Range returns an iterator over all entries within the window [min, max].
// The key passed to yield is only valid during the call.
func (t *Tree[V]) Range(min, max []uint64) iter.Seq2[[]uint64, V] {
	return func(yield func([]uint64, V) bool) {
		yieldAll(t.Query(min, max), yield)
	}
}

// RangeMask returns an iterator over all entries matching the masks.
// The key passed to yield is only valid during the call.
func (t *Tree[V]) RangeMask(minMask, maxMask []uint64) iter.Seq2[[]uint64, V] {
	return func(yield func([]uint64, V) bool) {
		yieldAll(t.QueryMask(minMask, maxMask), yield)
	}
}

func yieldAll[V any](it *Iterator[V], yield func([]uint64, V) bool) {
	for it.HasNext() {
		e := it.NextReuse()
		if !yield(e.Key, e.Value) {
			return
		}
	}
}
