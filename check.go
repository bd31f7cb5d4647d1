// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"errors"
	"fmt"

	"github.com/gaissmai/phtree/internal/bitutil"
)

// Check validates the structural invariants of the tree and returns all
// violations joined, each one wrapping ErrInvariant.
//
// Checked are the prefix and postLen of all nodes, the placement of all
// keys, the slot counts, the storage kind rules, the node-trees and the
// bucket pages, the size of the tree and the live objects of the pools.
//
// Useful during development, debugging and testing.
func (t *Tree[V]) Check() error {
	if t == nil {
		return nil
	}

	c := &checker[V]{t: t}

	root := t.root
	if int(root.postLen) != t.width-1 || root.infixLen != 0 {
		c.errorf("root postLen %d infix %d, want %d and 0", root.postLen, root.infixLen, t.width-1)
	}
	c.node(root, nil, 0, 1)

	if c.entries != t.size {
		c.errorf("size is %d, tree has %d entries", t.size, c.entries)
	}

	ps := t.PoolStats()
	if ps.LiveNodes != int64(c.nodes) {
		c.errorf("pool has %d live nodes, tree has %d", ps.LiveNodes, c.nodes)
	}
	if ps.LiveNtNodes != int64(c.ntNodes) {
		c.errorf("pool has %d live node-tree nodes, tree has %d", ps.LiveNtNodes, c.ntNodes)
	}
	if ps.LiveEntries != int64(c.entries) {
		c.errorf("pool has %d live entries, tree has %d", ps.LiveEntries, c.entries)
	}
	if ps.LivePages != int64(c.pages) {
		c.errorf("pool has %d live pages, tree has %d", ps.LivePages, c.pages)
	}

	return errors.Join(c.errs...)
}

type checker[V any] struct {
	t *Tree[V]

	nodes   int
	ntNodes int
	pages   int
	entries int

	errs []error
}

func (c *checker[V]) errorf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...))
}

// node checks n and all nodes below, parent is nil for the root.
func (c *checker[V]) node(n, parent *node[V], hc uint64, depth int) {
	t := c.t
	c.nodes++

	if len(n.prefix) != t.dims {
		c.errorf("node at depth %d has prefix length %d", depth, len(n.prefix))
		return
	}

	low := n.rangeMask()
	for d, p := range n.prefix {
		if p&low != 0 {
			c.errorf("node postLen %d: prefix %#x of dimension %d has bits at or below postLen", n.postLen, p, d)
		}
	}

	if parent != nil {
		if n.postLen >= parent.postLen {
			c.errorf("node postLen %d not below parent postLen %d", n.postLen, parent.postLen)
			return
		}
		if want := parent.postLen - n.postLen - 1; n.infixLen != want {
			c.errorf("node postLen %d: infix %d, want %d", n.postLen, n.infixLen, want)
		}
		if !bitutil.EqualAbove(n.prefix, parent.prefix, uint(parent.postLen)) ||
			bitutil.HcAddr(n.prefix, uint(parent.postLen)) != hc {
			c.errorf("node postLen %d: prefix %s does not fit in parent slot %#x", n.postLen, keyFmt(n.prefix), hc)
		}
		if n.count < 2 {
			c.errorf("node postLen %d: non-root node with %d slots", n.postLen, n.count)
		}
	}

	if want := t.wantKind(n); n.kind != want {
		c.errorf("node postLen %d: storage %s with %d slots, want %s", n.postLen, n.kind, n.count, want)
	}

	var slots int
	switch n.kind {
	case denseNode:
		if len(n.dense) != 1<<t.dims {
			c.errorf("node postLen %d: dense array with %d slots", n.postLen, len(n.dense))
		}
	case delegatedNode:
		c.ntNode(n.nt, nil, 1)
	default:
		if err := n.sparse.Check(); err != nil {
			c.errorf("node postLen %d: %v", n.postLen, err)
		}
		c.pages += n.sparse.Pages()
	}

	n.allSlots(func(addr uint64, v any) bool {
		slots++

		switch x := v.(type) {
		case *entry[V]:
			c.entries++
			if len(x.key) != t.dims {
				c.errorf("entry with key length %d", len(x.key))
				return true
			}
			if !bitutil.EqualAbove(x.key, n.prefix, uint(n.postLen)) ||
				bitutil.HcAddr(x.key, uint(n.postLen)) != addr {
				c.errorf("node postLen %d: key %s misplaced in slot %#x", n.postLen, keyFmt(x.key), addr)
			}
		case *node[V]:
			c.node(x, n, addr, depth+1)
		default:
			c.errorf("node postLen %d: slot %#x has wrong type %T", n.postLen, addr, v)
		}
		return true
	})

	if slots != n.count {
		c.errorf("node postLen %d: count %d, has %d slots", n.postLen, n.count, slots)
	}
}

// ntNode checks a node-tree node and all sub nodes below.
func (c *checker[V]) ntNode(n, parent *ntNode[V], depth int) {
	c.ntNodes++

	if maxDepth := (c.t.dims + ntStride - 1) / ntStride; depth > maxDepth {
		c.errorf("node-tree depth %d exceeds %d", depth, maxDepth)
	}
	if n.postLen%ntStride != 0 {
		c.errorf("node-tree postLen %d is no multiple of %d", n.postLen, ntStride)
	}

	if parent != nil {
		if n.postLen >= parent.postLen {
			c.errorf("node-tree postLen %d not below parent %d", n.postLen, parent.postLen)
		}
		if n.slots.Len() < 2 {
			c.errorf("node-tree sub node with %d slots", n.slots.Len())
		}
	}

	above := ntAboveMask(n.postLen)
	for i, s := range n.slots.Items {
		if s.sub != nil {
			if s.sub.prefix&^ntAboveMask(s.sub.postLen) != 0 || (s.sub.prefix^n.prefix)&above != 0 {
				c.errorf("node-tree sub node prefix %#x does not fit below %#x", s.sub.prefix, n.prefix)
			}
			c.ntNode(s.sub, n, depth+1)
			continue
		}

		if (s.addr^n.prefix)&above != 0 || n.chunk(s.addr) != c.chunkAt(n, i) {
			c.errorf("node-tree address %#x misplaced below prefix %#x", s.addr, n.prefix)
		}
	}
}

// chunkAt returns the chunk of the i-th occupied slot.
func (c *checker[V]) chunkAt(n *ntNode[V], i int) uint {
	chunk, _ := n.slots.FirstSet()
	for ; i > 0; i-- {
		chunk, _ = n.slots.NextSet(chunk + 1)
	}
	return chunk
}
