// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"fmt"
	"sync"

	"github.com/gaissmai/phtree/internal/bitutil"
	"github.com/rs/zerolog"
)

// Tree is a PH-tree, a multi-dimensional point index for keys of dims
// unsigned integers with at most 64 significant bits each.
//
// The tree is a hypercube trie, every node branches on one bit of all
// dimensions at once. Common key prefixes are stored once per node
// (path compression), so the depth is bounded by the key bit width and
// independent of the number of entries.
//
// A Tree is not safe for concurrent mutation. Readers and iterators may
// run concurrently with each other, but not with a writer.
type Tree[V any] struct {
	// used by -copylocks checker from `go vet`.
	_ [0]sync.Mutex

	dims  int
	width int
	size  int

	root  *node[V]
	pools *multiPool[V]

	cfg Config
	log zerolog.Logger
}

// New returns an empty tree for keys with dims dimensions of bitWidth bits.
//
// An error is returned if dims or bitWidth are out of [1..64] or if the
// config is invalid.
func New[V any](dims, bitWidth int, opts ...Option) (*Tree[V], error) {
	if dims < 1 || dims > 64 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDims, dims)
	}
	if bitWidth < 1 || bitWidth > 64 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBitWidth, bitWidth)
	}

	o := options{cfg: DefaultConfig(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tree[V]{
		dims:  dims,
		width: bitWidth,
		cfg:   o.cfg,
		log:   o.log.With().Str("component", "phtree").Int("dims", dims).Logger(),
	}
	t.pools = newMultiPool[V](t.cfg, t.log)
	t.root = t.newRoot()

	return t, nil
}

// MustNew is like New but panics on error.
func MustNew[V any](dims, bitWidth int, opts ...Option) *Tree[V] {
	t, err := New[V](dims, bitWidth, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// newRoot returns the root node, it branches on the highest key bit.
func (t *Tree[V]) newRoot() *node[V] {
	n := t.pools.getNode(t.dims)
	n.postLen = uint8(t.width - 1)
	t.initStorage(n)
	return n
}

// newNode returns a node branching at postLen below a parent branching at
// parentPostLen, the prefix is taken from key.
func (t *Tree[V]) newNode(key []uint64, postLen int, parentPostLen uint8) *node[V] {
	n := t.pools.getNode(t.dims)
	n.postLen = uint8(postLen)
	n.infixLen = parentPostLen - n.postLen - 1
	bitutil.MaskedCopy(n.prefix, key, uint(postLen))
	t.initStorage(n)
	return n
}

// freeNode returns an emptied node to the pool.
func (t *Tree[V]) freeNode(n *node[V]) {
	t.freeStorage(n)
	t.pools.putNode(n)
}

// Len returns the number of entries.
func (t *Tree[V]) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Dims returns the number of dimensions of the keys.
func (t *Tree[V]) Dims() int {
	return t.dims
}

// KeyBitWidth returns the number of significant bits per key dimension.
func (t *Tree[V]) KeyBitWidth() int {
	return t.width
}

// Config returns the config of the tree.
func (t *Tree[V]) Config() Config {
	return t.cfg
}

// PoolStats returns the statistics of the object pools of the tree.
func (t *Tree[V]) PoolStats() PoolStats {
	return t.pools.stats()
}

// checkKey panics for keys with the wrong number of dimensions
// or with bits above the key bit width, this is a programming error.
func (t *Tree[V]) checkKey(key []uint64) {
	if len(key) != t.dims {
		panic(fmt.Errorf("%w: got %d, want %d", ErrKeyLength, len(key), t.dims))
	}
	if t.width == 64 {
		return
	}

	above := ^bitutil.LowMask(uint(t.width))
	for d, k := range key {
		if k&above != 0 {
			panic(fmt.Errorf("%w: dimension %d value %#x, width %d", ErrKeyWidth, d, k, t.width))
		}
	}
}

// Put inserts or overwrites the value for key.
// The previous value and true are returned if the key already existed.
//
// The key is copied, the caller may reuse it.
// Put panics for a key with the wrong length or out-of-width bits.
func (t *Tree[V]) Put(key []uint64, val V) (prev V, existed bool) {
	t.checkKey(key)

	n := t.root
	for {
		hc := bitutil.HcAddr(key, uint(n.postLen))

		slot, ok := n.getSlot(hc)
		if !ok {
			n.setSlot(t, hc, t.pools.getEntry(key, val))
			t.adjustKind(n)
			t.size++
			return prev, false
		}

		switch x := slot.(type) {
		case *entry[V]:
			if bitutil.Equal(x.key, key) {
				prev, x.value = x.value, val
				return prev, true
			}

			// two keys in one slot, push both down into a new node
			// branching at their highest differing bit
			sub := t.newNode(key, bitutil.HighestDiff(x.key, key), n.postLen)
			sub.setSlot(t, bitutil.HcAddr(x.key, uint(sub.postLen)), x)
			sub.setSlot(t, bitutil.HcAddr(key, uint(sub.postLen)), t.pools.getEntry(key, val))
			t.adjustKind(sub)

			n.replaceSlot(t, hc, sub)
			t.size++
			return prev, false

		case *node[V]:
			if x.infixLen > 0 {
				if diff := bitutil.HighestDiffAbove(key, x.prefix, uint(x.postLen)); diff >= 0 {
					// infix mismatch, split the path above x
					sub := t.newNode(key, diff, n.postLen)
					sub.setSlot(t, bitutil.HcAddr(x.prefix, uint(sub.postLen)), x)
					sub.setSlot(t, bitutil.HcAddr(key, uint(sub.postLen)), t.pools.getEntry(key, val))
					t.adjustKind(sub)

					x.infixLen = sub.postLen - x.postLen - 1

					n.replaceSlot(t, hc, sub)
					t.size++
					return prev, false
				}
			}
			n = x

		default:
			panic("logic error, wrong slot type")
		}
	}
}

// Get returns the value for key and true, or the zero value and false.
func (t *Tree[V]) Get(key []uint64) (val V, ok bool) {
	if e := t.find(key); e != nil {
		return e.value, true
	}
	return
}

// Lookup is like Get, the stored key is copied into keyOut if the
// key exists and keyOut is not nil.
func (t *Tree[V]) Lookup(key, keyOut []uint64) (val V, ok bool) {
	e := t.find(key)
	if e == nil {
		return
	}
	if keyOut != nil {
		copy(keyOut, e.key)
	}
	return e.value, true
}

// Contains reports whether the key exists.
func (t *Tree[V]) Contains(key []uint64) bool {
	return t.find(key) != nil
}

// find descends to the entry for key, an infix mismatch at any
// level ends the search immediately.
func (t *Tree[V]) find(key []uint64) *entry[V] {
	if t == nil || t.size == 0 {
		return nil
	}
	t.checkKey(key)

	n := t.root
	for {
		slot, ok := n.getSlot(bitutil.HcAddr(key, uint(n.postLen)))
		if !ok {
			return nil
		}

		switch x := slot.(type) {
		case *entry[V]:
			if bitutil.Equal(x.key, key) {
				return x
			}
			return nil
		case *node[V]:
			if x.infixLen > 0 && !bitutil.EqualAbove(key, x.prefix, uint(x.postLen)) {
				return nil
			}
			n = x
		default:
			panic("logic error, wrong slot type")
		}
	}
}

// Remove deletes the key and returns its value and true,
// or the zero value and false if the key does not exist.
//
// A node left with a single slot is merged into its parent,
// the remaining child inherits the infix of the removed node.
func (t *Tree[V]) Remove(key []uint64) (prev V, existed bool) {
	if t == nil || t.size == 0 {
		return
	}
	t.checkKey(key)

	var parent *node[V]
	var parentHc uint64

	n := t.root
	for {
		hc := bitutil.HcAddr(key, uint(n.postLen))

		slot, ok := n.getSlot(hc)
		if !ok {
			return
		}

		switch x := slot.(type) {
		case *entry[V]:
			if !bitutil.Equal(x.key, key) {
				return
			}

			n.deleteSlot(t, hc)
			t.size--

			prev = x.value
			t.pools.putEntry(x)

			if parent != nil && n.count == 1 {
				t.collapse(parent, parentHc, n)
			} else {
				t.adjustKind(n)
			}
			return prev, true

		case *node[V]:
			if x.infixLen > 0 && !bitutil.EqualAbove(key, x.prefix, uint(x.postLen)) {
				return
			}
			parent, parentHc, n = n, hc, x

		default:
			panic("logic error, wrong slot type")
		}
	}
}

// collapse replaces n in its parent slot by the last remaining slot of n.
func (t *Tree[V]) collapse(parent *node[V], parentHc uint64, n *node[V]) {
	_, last, _ := n.firstSlot()

	if child, ok := last.(*node[V]); ok {
		child.infixLen += n.infixLen + 1
	}

	parent.replaceSlot(t, parentHc, last)
	t.freeNode(n)
}

// Update moves the entry at oldKey to newKey and returns its value.
// If newKey already exists its value is overwritten.
// It returns false if oldKey does not exist.
//
// Both keys are validated before the tree is modified, Update panics
// like Put for a bad key and leaves the tree unchanged.
func (t *Tree[V]) Update(oldKey, newKey []uint64) (val V, ok bool) {
	t.checkKey(oldKey)
	t.checkKey(newKey)

	if val, ok = t.Remove(oldKey); !ok {
		return
	}
	t.Put(newKey, val)
	return val, true
}

// Clear removes all entries, the nodes are returned to the pools.
func (t *Tree[V]) Clear() {
	if t == nil {
		return
	}
	t.clearRec(t.root)
	t.freeNode(t.root)
	t.root = t.newRoot()
	t.size = 0
}

func (t *Tree[V]) clearRec(n *node[V]) {
	n.allSlots(func(_ uint64, v any) bool {
		switch x := v.(type) {
		case *entry[V]:
			t.pools.putEntry(x)
		case *node[V]:
			t.clearRec(x)
			t.freeNode(x)
		}
		return true
	})
}
