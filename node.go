// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"github.com/gaissmai/phtree/internal/bitutil"
	"github.com/gaissmai/phtree/internal/pagetree"
)

// nodeKind is the storage strategy of the fan-out table of a node.
type nodeKind uint8

const (
	sparseNode    nodeKind = iota // ordered bucket pages, keyed by hypercube address
	denseNode                     // array with 2^dims slots
	delegatedNode                 // node-tree of 64-way nodes
)

func (k nodeKind) String() string {
	switch k {
	case sparseNode:
		return "SPARSE"
	case denseNode:
		return "DENSE"
	case delegatedNode:
		return "NTREE"
	default:
		return "UNKNOWN"
	}
}

// entry is a path-compressed leaf, the key is a private copy.
type entry[V any] struct {
	key   []uint64
	value V
}

func (e *entry[V]) reset() {
	var zero V
	e.key = nil
	e.value = zero
}

// node is a trie level node of the hypercube trie.
//
// All keys below the node share the bits above postLen, they are stored
// once in prefix, the bits at and below postLen are zero.
// The node branches on bit postLen of every dimension, the k bits form
// the hypercube address of a slot.
//
// The infixLen bits between the parent's branching bit and postLen are
// shared by all keys below the node, the path compression.
//
// A slot holds either a *entry[V] or a child *node[V].
type node[V any] struct {
	postLen  uint8
	infixLen uint8
	kind     nodeKind
	count    int

	prefix []uint64

	// fan-out table, only the member for kind is in use
	dense  []any
	sparse pagetree.Tree[any]
	nt     *ntNode[V]
}

// reset clears the node before reuse, the dense array is retained.
func (n *node[V]) reset() {
	clear(n.dense)
	dense := n.dense[:0]

	*n = node[V]{dense: dense}
}

// rangeMask returns the mask of the bits below the prefix, the bits
// a key below this node may choose freely.
func (n *node[V]) rangeMask() uint64 {
	return bitutil.LowMask(uint(n.postLen) + 1)
}

// getSlot returns the slot content at the hypercube address hc.
func (n *node[V]) getSlot(hc uint64) (any, bool) {
	switch n.kind {
	case denseNode:
		if v := n.dense[hc]; v != nil {
			return v, true
		}
		return nil, false
	case delegatedNode:
		return ntGet(n.nt, hc)
	default:
		return n.sparse.Get(hc)
	}
}

// setSlot inserts or overwrites the slot at hc.
// The caller must call adjustKind afterwards if the count changed.
func (n *node[V]) setSlot(t *Tree[V], hc uint64, v any) (existed bool) {
	switch n.kind {
	case denseNode:
		existed = n.dense[hc] != nil
		n.dense[hc] = v
	case delegatedNode:
		_, existed = t.ntPut(n.nt, hc, v)
	default:
		_, existed = n.sparse.Put(hc, v)
	}

	if !existed {
		n.count++
	}
	return existed
}

// replaceSlot overwrites the payload of an occupied slot at hc,
// the count and the storage kind stay unchanged.
func (n *node[V]) replaceSlot(t *Tree[V], hc uint64, v any) {
	switch n.kind {
	case denseNode:
		n.dense[hc] = v
	case delegatedNode:
		if !ntReplace(n.nt, hc, v) {
			panic("logic error, replace of empty node-tree slot")
		}
	default:
		n.sparse.Put(hc, v)
	}
}

// deleteSlot removes the slot at hc.
func (n *node[V]) deleteSlot(t *Tree[V], hc uint64) (any, bool) {
	var old any
	var existed bool

	switch n.kind {
	case denseNode:
		if old = n.dense[hc]; old != nil {
			existed = true
			n.dense[hc] = nil
		}
	case delegatedNode:
		old, existed = t.ntRemove(n.nt, hc)
	default:
		old, existed = n.sparse.Remove(hc)
	}

	if existed {
		n.count--
	}
	return old, existed
}

// allSlots calls yield for all occupied slots in hypercube address order.
func (n *node[V]) allSlots(yield func(hc uint64, v any) bool) {
	switch n.kind {
	case denseNode:
		for hc, v := range n.dense {
			if v != nil && !yield(uint64(hc), v) {
				return
			}
		}
	case delegatedNode:
		ntAll(n.nt, yield)
	default:
		for hc, v := range n.sparse.All() {
			if !yield(hc, v) {
				return
			}
		}
	}
}

// firstSlot returns the slot with the smallest hypercube address.
func (n *node[V]) firstSlot() (hc uint64, v any, ok bool) {
	n.allSlots(func(h uint64, x any) bool {
		hc, v, ok = h, x, true
		return false
	})
	return
}

// wantKind returns the storage strategy for the current count.
// There is a hysteresis between dense and sparse to avoid flapping.
func (t *Tree[V]) wantKind(n *node[V]) nodeKind {
	if t.dims >= t.cfg.NodeTreeMinDims {
		return delegatedNode
	}
	if t.dims > t.cfg.DenseMaxDims {
		return sparseNode
	}

	slots := 1 << t.dims
	switch n.kind {
	case denseNode:
		if 8*n.count < slots {
			return sparseNode
		}
		return denseNode
	default:
		if 4*n.count >= slots {
			return denseNode
		}
		return sparseNode
	}
}

// initStorage prepares the empty fan-out table of a fresh node.
func (t *Tree[V]) initStorage(n *node[V]) {
	n.kind = t.wantKind(n)

	switch n.kind {
	case delegatedNode:
		n.nt = t.newNtRoot()
	case denseNode:
		n.dense = t.denseSlots(n.dense)
	default:
		n.sparse.Init(t.pools.pagePool())
	}
}

// denseSlots returns a cleared array of 2^dims slots, reusing buf if possible.
func (t *Tree[V]) denseSlots(buf []any) []any {
	slots := 1 << t.dims
	if cap(buf) >= slots {
		buf = buf[:slots]
		clear(buf)
		return buf
	}
	return make([]any, slots)
}

// adjustKind converts the fan-out table if another storage strategy
// suits the current count better. All slots are preserved.
func (t *Tree[V]) adjustKind(n *node[V]) {
	want := t.wantKind(n)
	if want == n.kind {
		return
	}

	switch want {
	case denseNode:
		dense := t.denseSlots(n.dense)
		for hc, v := range n.sparse.All() {
			dense[hc] = v
		}
		n.sparse.Clear()
		n.dense = dense

	case sparseNode:
		n.sparse.Init(t.pools.pagePool())
		for hc, v := range n.dense {
			if v != nil {
				n.sparse.Put(uint64(hc), v)
			}
		}
		clear(n.dense)
		n.dense = n.dense[:0]
	}

	t.log.Debug().
		Stringer("from", n.kind).
		Stringer("to", want).
		Int("postLen", int(n.postLen)).
		Int("count", n.count).
		Msg("node storage converted")

	n.kind = want
}

// freeStorage releases the fan-out table, the slots must be empty or
// owned elsewhere.
func (t *Tree[V]) freeStorage(n *node[V]) {
	switch n.kind {
	case delegatedNode:
		t.ntFree(n.nt)
		n.nt = nil
	case denseNode:
		clear(n.dense)
	default:
		n.sparse.Clear()
	}
	n.count = 0
}
