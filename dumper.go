// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"fmt"
	"io"
	"strings"
)

// ##################################################
//  useful during development, debugging and testing
// ##################################################

// String returns the Dump of the tree.
func (t *Tree[V]) String() string {
	w := new(strings.Builder)
	t.Dump(w)

	return w.String()
}

// Dump writes the tree structure and all the nodes to w.
//
//	### PH-tree: dims(2) width(8) size(3) nodes(2)
//
//	[DENSE] depth: 0 postLen: 7 infix: 0 prefix: [0x0 0x0]
//	leaves(#1): 0x1:{[0x0 0xa0], 1}
//	childs(#1): 0x0
//	...
func (t *Tree[V]) Dump(w io.Writer) {
	if t == nil {
		return
	}

	s := t.Stats()
	fmt.Fprintf(w, "### PH-tree: dims(%d) width(%d) size(%d) nodes(%d)\n",
		t.dims, t.width, t.size, s.Nodes)

	t.root.dumpRec(w, 0)
}

// dumpRec, rec-descent the trie.
func (n *node[V]) dumpRec(w io.Writer, depth int) {
	n.dump(w, depth)

	n.allSlots(func(_ uint64, v any) bool {
		if child, ok := v.(*node[V]); ok {
			child.dumpRec(w, depth+1)
		}
		return true
	})
}

// dump the node to w.
func (n *node[V]) dump(w io.Writer, depth int) {
	indent := strings.Repeat(".", depth)

	fmt.Fprintf(w, "\n%s[%s] depth: %d postLen: %d infix: %d prefix: %s\n",
		indent, n.kind, depth, n.postLen, n.infixLen, keyFmt(n.prefix))

	var nodeAddrs, leafAddrs []uint64
	n.allSlots(func(hc uint64, v any) bool {
		switch v.(type) {
		case *node[V]:
			nodeAddrs = append(nodeAddrs, hc)
		case *entry[V]:
			leafAddrs = append(leafAddrs, hc)
		default:
			panic("logic error, wrong slot type")
		}
		return true
	})

	if leafCount := len(leafAddrs); leafCount > 0 {
		fmt.Fprintf(w, "%sleaves(#%d):", indent, leafCount)

		for _, hc := range leafAddrs {
			v, _ := n.getSlot(hc)
			e := v.(*entry[V])
			fmt.Fprintf(w, " %#x:{%s, %v}", hc, keyFmt(e.key), e.value)
		}
		fmt.Fprintln(w)
	}

	if nodeCount := len(nodeAddrs); nodeCount > 0 {
		fmt.Fprintf(w, "%schilds(#%d):", indent, nodeCount)

		for _, hc := range nodeAddrs {
			fmt.Fprintf(w, " %#x", hc)
		}
		fmt.Fprintln(w)
	}
}

// keyFmt formats the key in hex, one word per dimension.
func keyFmt(key []uint64) string {
	buf := new(strings.Builder)
	buf.WriteByte('[')
	for i, k := range key {
		if i != 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(buf, "%#x", k)
	}
	buf.WriteByte(']')
	return buf.String()
}

// Stats are structural statistics of a tree.
type Stats struct {
	Size int // number of entries

	Nodes          int // trie nodes, including the root
	DenseNodes     int
	SparseNodes    int
	DelegatedNodes int

	NtNodes int // node-tree nodes of delegated trie nodes
	Pages   int // bucket pages of sparse trie nodes

	MaxDepth int // max. number of trie nodes on a path, root has depth 1
}

// Stats walks the tree and returns its structural statistics.
func (t *Tree[V]) Stats() (s Stats) {
	if t == nil {
		return
	}
	s.Size = t.size
	t.root.statsRec(&s, 1)
	return
}

func (n *node[V]) statsRec(s *Stats, depth int) {
	s.Nodes++
	s.MaxDepth = max(s.MaxDepth, depth)

	switch n.kind {
	case denseNode:
		s.DenseNodes++
	case delegatedNode:
		s.DelegatedNodes++
		s.NtNodes += ntCount(n.nt)
	default:
		s.SparseNodes++
		s.Pages += n.sparse.Pages()
	}

	n.allSlots(func(_ uint64, v any) bool {
		if child, ok := v.(*node[V]); ok {
			child.statsRec(s, depth+1)
		}
		return true
	})
}
