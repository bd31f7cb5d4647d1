// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package pagetree implements an ordered multi-way tree of small
// bucket pages, mapping uint64 keys to values of type T.
//
// It's a classic B+tree: all values live in the leaf pages, the leaves
// are linked in key order and the occupancy of every page except the
// root is kept within [max/2, max] by split, borrow and merge.
//
// The page tree is the sparse storage of a single trie node, the pages
// are therefore tiny and the tree is shallow.
package pagetree

import (
	"github.com/gaissmai/phtree/internal/pool"
)

const (
	// MaxLeafKeys is the max. number of keys in a leaf page.
	MaxLeafKeys = 10

	// MaxInnerKids is the max. number of children of an inner page.
	MaxInnerKids = 11

	minLeafKeys  = MaxLeafKeys / 2
	minInnerKids = (MaxInnerKids + 1) / 2
)

// page is either a leaf or an inner page.
//
// leaf:  keys[0:n] and vals[0:n], next is the right neighbor leaf.
// inner: kids[0:n] and the separators keys[0:n-1],
// keys[i] is the smallest key in the subtree kids[i+1].
//
// All arrays have room for one surplus item, a page may overflow
// temporarily before it's split.
type page[T any] struct {
	leaf bool
	n    int

	keys [MaxInnerKids + 1]uint64
	vals [MaxLeafKeys + 1]T
	kids [MaxInnerKids + 1]*page[T]

	next *page[T]
}

// reset clears the page before reuse, references are dropped for the GC.
func (p *page[T]) reset() {
	*p = page[T]{}
}

// PagePool is a bounded free-list of pages, it may be shared
// by many page trees with the same payload type.
type PagePool[T any] struct {
	p *pool.Pool[page[T]]
}

// NewPagePool returns a page pool with room for capacity idle pages.
func NewPagePool[T any](capacity int) *PagePool[T] {
	return &PagePool[T]{
		p: pool.New(capacity, func() *page[T] { return new(page[T]) }, (*page[T]).reset),
	}
}

// Stats returns the number of live pages and the number of
// pages ever allocated by this pool.
func (pp *PagePool[T]) Stats() (live, total int64) {
	if pp == nil {
		return 0, 0
	}
	return pp.p.Stats()
}

func (pp *PagePool[T]) get(leaf bool) *page[T] {
	var p *page[T]
	if pp == nil {
		p = new(page[T])
	} else {
		p = pp.p.Get()
	}
	p.leaf = leaf
	return p
}

func (pp *PagePool[T]) put(p *page[T]) {
	if pp == nil {
		return
	}
	pp.p.Put(p)
}

// Tree is an ordered map from uint64 to T.
//
// The zero value is an empty tree without page pooling.
// A Tree is not safe for concurrent mutation.
type Tree[T any] struct {
	root  *page[T]
	count int
	pages *PagePool[T]
}

// New returns an empty tree, pages are borrowed from pp, pp may be nil.
func New[T any](pp *PagePool[T]) *Tree[T] {
	return &Tree[T]{pages: pp}
}

// Init resets t to an empty tree using the page pool pp.
// Any former content must have been cleared.
func (t *Tree[T]) Init(pp *PagePool[T]) {
	*t = Tree[T]{pages: pp}
}

// Len returns the number of keys in the tree.
func (t *Tree[T]) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

// Get returns the value for key.
func (t *Tree[T]) Get(key uint64) (val T, ok bool) {
	if t == nil || t.root == nil {
		return
	}

	p := t.findLeaf(key)
	if i := lowerBound(p.keys[:p.n], key); i < p.n && p.keys[i] == key {
		return p.vals[i], true
	}
	return
}

// Put inserts or overwrites the value for key.
// It returns the previous value if the key already existed.
func (t *Tree[T]) Put(key uint64, val T) (old T, existed bool) {
	if t.root == nil {
		t.root = t.pages.get(true)
	}

	old, existed, sep, right := t.put(t.root, key, val)
	if right != nil {
		// the root was split, grow the tree by one level
		root := t.pages.get(false)
		root.n = 2
		root.kids[0] = t.root
		root.kids[1] = right
		root.keys[0] = sep
		t.root = root
	}

	if !existed {
		t.count++
	}
	return old, existed
}

// put inserts recursively, if the page p overflows it is split and
// the new right sibling is returned together with its separator key.
func (t *Tree[T]) put(p *page[T], key uint64, val T) (old T, existed bool, sep uint64, right *page[T]) {
	if p.leaf {
		i := lowerBound(p.keys[:p.n], key)
		if i < p.n && p.keys[i] == key {
			old = p.vals[i]
			p.vals[i] = val
			return old, true, 0, nil
		}

		copy(p.keys[i+1:p.n+1], p.keys[i:p.n])
		copy(p.vals[i+1:p.n+1], p.vals[i:p.n])
		p.keys[i] = key
		p.vals[i] = val
		p.n++

		if p.n > MaxLeafKeys {
			sep, right = t.splitLeaf(p)
		}
		return old, false, sep, right
	}

	ci := upperBound(p.keys[:p.n-1], key)

	old, existed, childSep, childRight := t.put(p.kids[ci], key, val)
	if childRight == nil {
		return old, existed, 0, nil
	}

	// insert the new child right of ci
	copy(p.keys[ci+1:p.n], p.keys[ci:p.n-1])
	copy(p.kids[ci+2:p.n+1], p.kids[ci+1:p.n])
	p.keys[ci] = childSep
	p.kids[ci+1] = childRight
	p.n++

	if p.n > MaxInnerKids {
		sep, right = t.splitInner(p)
	}
	return old, existed, sep, right
}

// splitLeaf moves the upper half of p into a new right sibling.
func (t *Tree[T]) splitLeaf(p *page[T]) (uint64, *page[T]) {
	mid := p.n / 2
	right := t.pages.get(true)

	right.n = copy(right.keys[:], p.keys[mid:p.n])
	copy(right.vals[:], p.vals[mid:p.n])

	clear(p.vals[mid:p.n])
	p.n = mid

	right.next = p.next
	p.next = right

	return right.keys[0], right
}

// splitInner moves the upper half of the children of p into a new right sibling,
// the separator between both halves moves up.
func (t *Tree[T]) splitInner(p *page[T]) (uint64, *page[T]) {
	mid := p.n / 2
	right := t.pages.get(false)

	sep := p.keys[mid-1]

	right.n = copy(right.kids[:], p.kids[mid:p.n])
	copy(right.keys[:], p.keys[mid:p.n-1])

	clear(p.kids[mid:p.n])
	p.n = mid

	return sep, right
}

// Remove deletes the key and returns its value.
func (t *Tree[T]) Remove(key uint64) (old T, existed bool) {
	if t == nil || t.root == nil {
		return
	}

	old, existed = t.remove(t.root, key)
	if !existed {
		return
	}
	t.count--

	// shrink the tree if the root has a single child
	if !t.root.leaf && t.root.n == 1 {
		oldRoot := t.root
		t.root = oldRoot.kids[0]
		t.pages.put(oldRoot)
	}

	if t.count == 0 {
		t.pages.put(t.root)
		t.root = nil
	}
	return old, existed
}

func (t *Tree[T]) remove(p *page[T], key uint64) (old T, existed bool) {
	if p.leaf {
		i := lowerBound(p.keys[:p.n], key)
		if i >= p.n || p.keys[i] != key {
			return
		}
		old = p.vals[i]

		copy(p.keys[i:p.n-1], p.keys[i+1:p.n])
		copy(p.vals[i:p.n-1], p.vals[i+1:p.n])

		var zero T
		p.vals[p.n-1] = zero
		p.n--

		return old, true
	}

	ci := upperBound(p.keys[:p.n-1], key)
	if old, existed = t.remove(p.kids[ci], key); existed {
		t.rebalance(p, ci)
	}
	return old, existed
}

// rebalance the child ci of p after a removal,
// borrow from a sibling or merge with it.
func (t *Tree[T]) rebalance(p *page[T], ci int) {
	c := p.kids[ci]

	minFill := minInnerKids
	if c.leaf {
		minFill = minLeafKeys
	}

	if c.n >= minFill {
		return
	}

	switch {
	case ci > 0 && p.kids[ci-1].n > minFill:
		t.borrowLeft(p, ci)
	case ci < p.n-1 && p.kids[ci+1].n > minFill:
		t.borrowRight(p, ci)
	case ci > 0:
		t.merge(p, ci-1)
	default:
		t.merge(p, ci)
	}
}

// borrowLeft moves the last item of the left sibling to the front of kids[ci].
func (t *Tree[T]) borrowLeft(p *page[T], ci int) {
	c, l := p.kids[ci], p.kids[ci-1]

	if c.leaf {
		copy(c.keys[1:c.n+1], c.keys[:c.n])
		copy(c.vals[1:c.n+1], c.vals[:c.n])
		c.keys[0] = l.keys[l.n-1]
		c.vals[0] = l.vals[l.n-1]
		c.n++

		var zero T
		l.vals[l.n-1] = zero
		l.n--

		p.keys[ci-1] = c.keys[0]
		return
	}

	copy(c.kids[1:c.n+1], c.kids[:c.n])
	copy(c.keys[1:c.n], c.keys[:c.n-1])
	c.kids[0] = l.kids[l.n-1]
	c.keys[0] = p.keys[ci-1]
	c.n++

	p.keys[ci-1] = l.keys[l.n-2]
	l.kids[l.n-1] = nil
	l.n--
}

// borrowRight moves the first item of the right sibling to the end of kids[ci].
func (t *Tree[T]) borrowRight(p *page[T], ci int) {
	c, r := p.kids[ci], p.kids[ci+1]

	if c.leaf {
		c.keys[c.n] = r.keys[0]
		c.vals[c.n] = r.vals[0]
		c.n++

		copy(r.keys[:r.n-1], r.keys[1:r.n])
		copy(r.vals[:r.n-1], r.vals[1:r.n])

		var zero T
		r.vals[r.n-1] = zero
		r.n--

		p.keys[ci] = r.keys[0]
		return
	}

	c.kids[c.n] = r.kids[0]
	c.keys[c.n-1] = p.keys[ci]
	c.n++

	p.keys[ci] = r.keys[0]

	copy(r.kids[:r.n-1], r.kids[1:r.n])
	copy(r.keys[:r.n-2], r.keys[1:r.n-1])
	r.kids[r.n-1] = nil
	r.n--
}

// merge the children li and li+1 of p into kids[li],
// the right page is returned to the pool.
func (t *Tree[T]) merge(p *page[T], li int) {
	l, r := p.kids[li], p.kids[li+1]

	if l.leaf {
		copy(l.keys[l.n:], r.keys[:r.n])
		copy(l.vals[l.n:], r.vals[:r.n])
		l.n += r.n
		l.next = r.next
	} else {
		l.keys[l.n-1] = p.keys[li]
		copy(l.keys[l.n:], r.keys[:r.n-1])
		copy(l.kids[l.n:], r.kids[:r.n])
		l.n += r.n
	}

	// remove separator li and child li+1 from the parent
	copy(p.keys[li:p.n-2], p.keys[li+1:p.n-1])
	copy(p.kids[li+1:p.n-1], p.kids[li+2:p.n])
	p.kids[p.n-1] = nil
	p.n--

	t.pages.put(r)
}

// Min returns the smallest key.
func (t *Tree[T]) Min() (key uint64, val T, ok bool) {
	if t == nil || t.root == nil {
		return
	}
	p := t.firstLeaf()
	return p.keys[0], p.vals[0], true
}

// Clear removes all keys, the pages are returned to the pool.
func (t *Tree[T]) Clear() {
	if t == nil || t.root == nil {
		return
	}
	t.clearRec(t.root)
	t.root = nil
	t.count = 0
}

func (t *Tree[T]) clearRec(p *page[T]) {
	if !p.leaf {
		for _, kid := range p.kids[:p.n] {
			t.clearRec(kid)
		}
	}
	t.pages.put(p)
}

// All calls yield for all keys in ascending order until yield returns false.
func (t *Tree[T]) All() func(yield func(uint64, T) bool) {
	return func(yield func(uint64, T) bool) {
		if t == nil || t.root == nil {
			return
		}
		for p := t.firstLeaf(); p != nil; p = p.next {
			for i := range p.n {
				if !yield(p.keys[i], p.vals[i]) {
					return
				}
			}
		}
	}
}

// Height returns the number of page levels, 0 for an empty tree.
func (t *Tree[T]) Height() int {
	if t == nil || t.root == nil {
		return 0
	}
	h := 1
	for p := t.root; !p.leaf; p = p.kids[0] {
		h++
	}
	return h
}

// Pages returns the number of pages in the tree.
func (t *Tree[T]) Pages() int {
	if t == nil || t.root == nil {
		return 0
	}
	return countPages(t.root)
}

func countPages[T any](p *page[T]) int {
	n := 1
	if !p.leaf {
		for _, kid := range p.kids[:p.n] {
			n += countPages(kid)
		}
	}
	return n
}

func (t *Tree[T]) firstLeaf() *page[T] {
	p := t.root
	for !p.leaf {
		p = p.kids[0]
	}
	return p
}

// findLeaf descends to the leaf page that may contain key.
func (t *Tree[T]) findLeaf(key uint64) *page[T] {
	p := t.root
	for !p.leaf {
		p = p.kids[upperBound(p.keys[:p.n-1], key)]
	}
	return p
}

// lowerBound returns the index of the first key >= k.
func lowerBound(keys []uint64, k uint64) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		m := int(uint(lo+hi) >> 1)
		if keys[m] < k {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}

// upperBound returns the index of the first key > k.
func upperBound(keys []uint64, k uint64) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		m := int(uint(lo+hi) >> 1)
		if keys[m] <= k {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}
