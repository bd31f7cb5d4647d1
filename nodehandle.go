// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import "slices"

// NodeHandle is a read-only view of a trie node for diagnostics and tests.
// It must not be used across mutations of the tree.
type NodeHandle[V any] struct {
	n *node[V]
}

// Root returns a handle of the root node, the root exists also in an empty tree.
func (t *Tree[V]) Root() NodeHandle[V] {
	return NodeHandle[V]{n: t.root}
}

// PostLen returns the bit position the node branches on.
func (h NodeHandle[V]) PostLen() int { return int(h.n.postLen) }

// InfixLen returns the number of path-compressed bits above the node.
func (h NodeHandle[V]) InfixLen() int { return int(h.n.infixLen) }

// EntryCount returns the number of occupied slots, entries and child nodes.
func (h NodeHandle[V]) EntryCount() int { return h.n.count }

// Kind returns the storage kind of the fan-out table: DENSE, SPARSE or NTREE.
func (h NodeHandle[V]) Kind() string { return h.n.kind.String() }

// Prefix returns a copy of the common key bits above PostLen.
func (h NodeHandle[V]) Prefix() []uint64 { return slices.Clone(h.n.prefix) }

// Children returns the child nodes in hypercube address order.
func (h NodeHandle[V]) Children() []NodeHandle[V] {
	var kids []NodeHandle[V]
	h.n.allSlots(func(_ uint64, v any) bool {
		if x, ok := v.(*node[V]); ok {
			kids = append(kids, NodeHandle[V]{n: x})
		}
		return true
	})
	return kids
}

// Entries returns copies of the entries stored directly in this node.
func (h NodeHandle[V]) Entries() []Entry[V] {
	var entries []Entry[V]
	h.n.allSlots(func(_ uint64, v any) bool {
		if x, ok := v.(*entry[V]); ok {
			entries = append(entries, Entry[V]{Key: slices.Clone(x.key), Value: x.value})
		}
		return true
	})
	return entries
}
