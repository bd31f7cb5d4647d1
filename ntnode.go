// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"math/bits"

	"github.com/gaissmai/phtree/internal/bitutil"
	"github.com/gaissmai/phtree/internal/sparse"
)

// The node-tree replaces the fan-out table of a trie node for many
// dimensions, 2^dims slots can't be stored directly.
//
// It's a trie over the hypercube address with a stride of 6 bits,
// every ntNode is a popcount-compressed array of max. 64 slots.
// Like the hypercube trie itself it's path-compressed, a sub node
// stores all address bits above its own chunk in prefix.

const (
	ntStride = 6
	ntFanout = 1 << ntStride

	// maxNtDepth is ceil(64/ntStride)
	maxNtDepth = (64 + ntStride - 1) / ntStride
)

// ntNode is a node of the node-tree.
// postLen is the number of address bits below its chunk, a multiple of 6.
type ntNode[V any] struct {
	postLen uint8
	prefix  uint64
	slots   sparse.Array64[ntSlot[V]]
}

// ntSlot is either a sub node or a leaf with the full hypercube
// address and the payload of the trie slot.
type ntSlot[V any] struct {
	sub  *ntNode[V]
	addr uint64
	val  any
}

func (n *ntNode[V]) reset() {
	n.slots.Reset()
	n.postLen = 0
	n.prefix = 0
}

// chunk returns the slot index of addr in this node.
func (n *ntNode[V]) chunk(addr uint64) uint {
	return uint(addr>>n.postLen) & (ntFanout - 1)
}

// ntAboveMask returns the mask of the address bits above the chunk at postLen.
func ntAboveMask(postLen uint8) uint64 {
	return bitutil.AboveMask(uint(postLen) + ntStride - 1)
}

// ntPostLen returns the postLen of the chunk holding the highest
// differing bit of diff.
func ntPostLen(diff uint64) uint8 {
	return uint8((bits.Len64(diff) - 1) / ntStride * ntStride)
}

// ntRootPostLen is the postLen of the root chunk, the top chunk may be partial.
func ntRootPostLen(dims int) uint8 {
	return uint8((dims - 1) / ntStride * ntStride)
}

// newNtRoot returns an empty node-tree for the dims of t.
func (t *Tree[V]) newNtRoot() *ntNode[V] {
	n := t.pools.getNtNode()
	n.postLen = ntRootPostLen(t.dims)
	return n
}

// newNtNode returns an empty sub node at postLen for addresses sharing addr's prefix.
func (t *Tree[V]) newNtNode(addr uint64, postLen uint8) *ntNode[V] {
	n := t.pools.getNtNode()
	n.postLen = postLen
	n.prefix = addr & ntAboveMask(postLen)

	t.log.Debug().
		Int("postLen", int(postLen)).
		Uint64("prefix", n.prefix).
		Msg("node-tree node created")

	return n
}

// ntGet returns the payload for addr.
func ntGet[V any](n *ntNode[V], addr uint64) (any, bool) {
	for {
		s, ok := n.slots.Get(n.chunk(addr))
		if !ok {
			return nil, false
		}

		if s.sub == nil {
			if s.addr == addr {
				return s.val, true
			}
			return nil, false
		}

		// prefix mismatch, no need to descend further
		if (addr^s.sub.prefix)&ntAboveMask(s.sub.postLen) != 0 {
			return nil, false
		}
		n = s.sub
	}
}

// ntReplace swaps the payload of an existing address in place,
// the structure of the node-tree is not changed.
func ntReplace[V any](n *ntNode[V], addr uint64, val any) bool {
	for {
		c := n.chunk(addr)

		s, ok := n.slots.Get(c)
		if !ok {
			return false
		}

		if s.sub == nil {
			if s.addr != addr {
				return false
			}
			s.val = val
			n.slots.InsertAt(c, s)
			return true
		}

		if (addr^s.sub.prefix)&ntAboveMask(s.sub.postLen) != 0 {
			return false
		}
		n = s.sub
	}
}

// ntPut inserts or overwrites the payload for addr.
func (t *Tree[V]) ntPut(n *ntNode[V], addr uint64, val any) (old any, existed bool) {
	for {
		c := n.chunk(addr)

		s, ok := n.slots.Get(c)
		if !ok {
			n.slots.InsertAt(c, ntSlot[V]{addr: addr, val: val})
			return nil, false
		}

		if s.sub == nil {
			if s.addr == addr {
				n.slots.InsertAt(c, ntSlot[V]{addr: addr, val: val})
				return s.val, true
			}

			// two leaves collide, split at the chunk of the highest differing bit
			sub := t.newNtNode(addr, ntPostLen(s.addr^addr))
			sub.slots.InsertAt(sub.chunk(s.addr), s)
			sub.slots.InsertAt(sub.chunk(addr), ntSlot[V]{addr: addr, val: val})
			n.slots.InsertAt(c, ntSlot[V]{sub: sub})
			return nil, false
		}

		if diff := (addr ^ s.sub.prefix) & ntAboveMask(s.sub.postLen); diff != 0 {
			// prefix mismatch, insert a new node above the sub node
			sub := t.newNtNode(addr, ntPostLen(diff))
			sub.slots.InsertAt(sub.chunk(s.sub.prefix), s)
			sub.slots.InsertAt(sub.chunk(addr), ntSlot[V]{addr: addr, val: val})
			n.slots.InsertAt(c, ntSlot[V]{sub: sub})
			return nil, false
		}

		n = s.sub
	}
}

// ntRemove deletes the payload for addr. A sub node left with a single
// slot is replaced by that slot in its parent.
func (t *Tree[V]) ntRemove(root *ntNode[V], addr uint64) (any, bool) {
	var parent *ntNode[V]
	var parentChunk uint

	n := root
	for {
		c := n.chunk(addr)

		s, ok := n.slots.Get(c)
		if !ok {
			return nil, false
		}

		if s.sub != nil {
			if (addr^s.sub.prefix)&ntAboveMask(s.sub.postLen) != 0 {
				return nil, false
			}
			parent, parentChunk, n = n, c, s.sub
			continue
		}

		if s.addr != addr {
			return nil, false
		}

		n.slots.DeleteAt(c)

		if parent != nil && n.slots.Len() == 1 {
			// pull up the last slot, leaf or sub node
			parent.slots.InsertAt(parentChunk, n.slots.Items[0])
			t.pools.putNtNode(n)
		}
		return s.val, true
	}
}

// ntAll calls yield for all leaves in address order.
func ntAll[V any](n *ntNode[V], yield func(uint64, any) bool) bool {
	for _, s := range n.slots.Items {
		if s.sub != nil {
			if !ntAll(s.sub, yield) {
				return false
			}
			continue
		}
		if !yield(s.addr, s.val) {
			return false
		}
	}
	return true
}

// ntFree returns all nodes of the node-tree to the pool,
// the payloads are not touched.
func (t *Tree[V]) ntFree(n *ntNode[V]) {
	for _, s := range n.slots.Items {
		if s.sub != nil {
			t.ntFree(s.sub)
		}
	}
	t.pools.putNtNode(n)
}

// ntCount returns the number of node-tree nodes, including n.
func ntCount[V any](n *ntNode[V]) int {
	c := 1
	for _, s := range n.slots.Items {
		if s.sub != nil {
			c += ntCount(s.sub)
		}
	}
	return c
}

// ############################################################
//  masked traversal
// ############################################################

// ntFrame is the scan position in one node-tree node.
type ntFrame[V any] struct {
	n   *ntNode[V]
	pos uint // next chunk to examine
}

// ntIter walks the leaves of a node-tree in address order, only
// addresses matching (lower, upper) are returned. Sub nodes whose
// prefix can't match are never entered.
//
// The stack depth is bounded by the address width, no allocations.
type ntIter[V any] struct {
	stack        [maxNtDepth]ntFrame[V]
	depth        int
	lower, upper uint64
}

func (it *ntIter[V]) reset(root *ntNode[V], lower, upper uint64) {
	it.lower, it.upper = lower, upper
	it.depth = 0

	if root == nil || lower&^upper != 0 {
		return
	}
	it.stack[0] = ntFrame[V]{n: root}
	it.depth = 1
}

// subMatches reports whether some address below sub may match the masks.
func (it *ntIter[V]) subMatches(sub *ntNode[V]) bool {
	m := ntAboveMask(sub.postLen)
	return (((sub.prefix|it.lower)&it.upper)^sub.prefix)&m == 0
}

// setMasks changes the masks during a scan. Frames of sub nodes that
// can't match anymore are popped, the positions are kept.
func (it *ntIter[V]) setMasks(lower, upper uint64) {
	it.lower, it.upper = lower, upper

	if lower&^upper != 0 {
		it.depth = 0
		return
	}

	for i := 1; i < it.depth; i++ {
		if !it.subMatches(it.stack[i].n) {
			it.depth = i
			break
		}
	}
}

// next returns the next matching leaf.
func (it *ntIter[V]) next() (addr uint64, val any, ok bool) {
	for it.depth > 0 {
		f := &it.stack[it.depth-1]
		n := f.n

		lc := uint64(n.chunk(it.lower))
		uc := uint64(n.chunk(it.upper))

		c, found := nextChunk(n, f.pos, lc, uc)
		if !found {
			it.depth--
			continue
		}
		f.pos = c + 1

		s := n.slots.MustGet(c)
		if s.sub == nil {
			if bitutil.Matches(s.addr, it.lower, it.upper) {
				return s.addr, s.val, true
			}
			continue
		}

		if it.subMatches(s.sub) {
			it.stack[it.depth] = ntFrame[V]{n: s.sub}
			it.depth++
		}
	}
	return 0, nil, false
}

// nextChunk returns the first occupied chunk >= from that matches the chunk masks.
func nextChunk[V any](n *ntNode[V], from uint, lower, upper uint64) (uint, bool) {
	for from < ntFanout {
		c, ok := bitutil.NextGE(uint64(from), lower, upper)
		if !ok || c >= ntFanout {
			return 0, false
		}

		occupied, ok := n.slots.NextSet(uint(c))
		if !ok {
			return 0, false
		}
		if uint64(occupied) == c {
			return occupied, true
		}
		from = occupied
	}
	return 0, false
}
