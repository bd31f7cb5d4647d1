// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestNewInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		dims  int
		width int
		opts  []Option
		want  error
	}{
		{name: "zero dims", dims: 0, width: 8, want: ErrInvalidDims},
		{name: "65 dims", dims: 65, width: 8, want: ErrInvalidDims},
		{name: "zero width", dims: 2, width: 0, want: ErrInvalidBitWidth},
		{name: "65 width", dims: 2, width: 65, want: ErrInvalidBitWidth},
		{name: "dense too big", dims: 2, width: 8, opts: []Option{WithDenseMaxDims(17)}, want: ErrConfig},
		{name: "ntree zero", dims: 2, width: 8, opts: []Option{WithNodeTreeMinDims(0)}, want: ErrConfig},
		{name: "negative pools", dims: 2, width: 8, opts: []Option{WithPoolCapacity(-1)}, want: ErrConfig},
	}

	for _, tt := range tests {
		_, err := New[int](tt.dims, tt.width, tt.opts...)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: New, expected %v, got %v", tt.name, tt.want, err)
		}
	}

	mustPanic(t, "MustNew", func() { MustNew[int](0, 0) })
}

func TestTreeEmpty(t *testing.T) {
	t.Parallel()

	tree := MustNew[int](3, 8)

	if tree.Len() != 0 || tree.Dims() != 3 || tree.KeyBitWidth() != 8 {
		t.Errorf("Len/Dims/KeyBitWidth, got %d/%d/%d", tree.Len(), tree.Dims(), tree.KeyBitWidth())
	}

	key := []uint64{1, 2, 3}
	if _, ok := tree.Get(key); ok {
		t.Errorf("Get on empty tree, expected false")
	}
	if _, ok := tree.Remove(key); ok {
		t.Errorf("Remove on empty tree, expected false")
	}
	if tree.Contains(key) {
		t.Errorf("Contains on empty tree, expected false")
	}

	it := tree.Query([]uint64{0, 0, 0}, []uint64{255, 255, 255})
	if it.HasNext() {
		t.Errorf("Query on empty tree, expected no entries")
	}

	root := tree.Root()
	if root.PostLen() != 7 || root.InfixLen() != 0 || root.EntryCount() != 0 {
		t.Errorf("Root, got postLen %d infix %d count %d", root.PostLen(), root.InfixLen(), root.EntryCount())
	}

	mustCheck(t, tree)

	var nilTree *Tree[int]
	if nilTree.Len() != 0 {
		t.Errorf("nil tree Len, expected 0")
	}
	if err := nilTree.Check(); err != nil {
		t.Errorf("nil tree Check, expected nil, got %v", err)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tc := range treeConfigs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			prng := rand.New(rand.NewPCG(42, 42))

			tree := MustNew[int](tc.dims, tc.width, tc.opts...)
			keys := randomKeys(prng, 2_000, tc.dims, tc.width)

			for i, k := range keys {
				if _, existed := tree.Put(k, i); existed {
					t.Fatalf("Put(%v), expected new key", k)
				}
			}
			if tree.Len() != len(keys) {
				t.Fatalf("Len, expected %d, got %d", len(keys), tree.Len())
			}
			mustCheck(t, tree)

			for i, k := range keys {
				if v, ok := tree.Get(k); !ok || v != i {
					t.Fatalf("Get(%v), expected %d, got %d, %v", k, i, v, ok)
				}
			}

			// remove in random order, check every now and then
			prng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
			for i, k := range keys {
				if _, ok := tree.Remove(k); !ok {
					t.Fatalf("Remove(%v), expected true", k)
				}
				if _, ok := tree.Remove(k); ok {
					t.Fatalf("Remove(%v) twice, expected false", k)
				}
				if i%97 == 0 {
					mustCheck(t, tree)
				}
			}

			if tree.Len() != 0 {
				t.Fatalf("Len after remove all, expected 0, got %d", tree.Len())
			}
			for _, k := range keys {
				if tree.Contains(k) {
					t.Fatalf("Contains(%v) after remove all, expected false", k)
				}
			}
			mustCheck(t, tree)

			ps := tree.PoolStats()
			if ps.LiveNodes != 1 || ps.LiveEntries != 0 {
				t.Errorf("PoolStats after remove all, expected 1 node and 0 entries, got %+v", ps)
			}
		})
	}
}

func TestTreeOverwrite(t *testing.T) {
	t.Parallel()

	tree := MustNew[string](2, 8)
	key := []uint64{3, 4}

	if _, existed := tree.Put(key, "a"); existed {
		t.Errorf("first Put, expected new key")
	}
	prev, existed := tree.Put(key, "b")
	if !existed || prev != "a" {
		t.Errorf("second Put, expected (a, true), got (%s, %v)", prev, existed)
	}
	if v, _ := tree.Get(key); v != "b" {
		t.Errorf("Get, expected b, got %s", v)
	}
	if tree.Len() != 1 {
		t.Errorf("Len, expected 1, got %d", tree.Len())
	}
}

func TestTreeZeroValueIsNotAbsent(t *testing.T) {
	t.Parallel()

	tree := MustNew[int](2, 8)
	tree.Put([]uint64{1, 1}, 0)

	if v, ok := tree.Get([]uint64{1, 1}); !ok || v != 0 {
		t.Errorf("Get stored zero, expected (0, true), got (%d, %v)", v, ok)
	}
	if _, ok := tree.Get([]uint64{1, 2}); ok {
		t.Errorf("Get absent key, expected false")
	}
}

func TestTreeKeyIsCopied(t *testing.T) {
	t.Parallel()

	tree := MustNew[int](2, 8)
	key := []uint64{1, 2}
	tree.Put(key, 12)

	key[0] = 7
	if !tree.Contains([]uint64{1, 2}) {
		t.Errorf("Contains, the stored key was changed by the caller")
	}

	keyOut := make([]uint64, 2)
	if v, ok := tree.Lookup([]uint64{1, 2}, keyOut); !ok || v != 12 {
		t.Errorf("Lookup, expected (12, true), got (%d, %v)", v, ok)
	}
	if !slices.Equal(keyOut, []uint64{1, 2}) {
		t.Errorf("Lookup keyOut, expected [1 2], got %v", keyOut)
	}
}

func TestTreeKeyPanics(t *testing.T) {
	t.Parallel()

	tree := MustNew[int](2, 8)
	tree.Put([]uint64{1, 1}, 1)

	tests := []struct {
		name string
		fn   func()
		want error
	}{
		{name: "Put short key", fn: func() { tree.Put([]uint64{1}, 0) }, want: ErrKeyLength},
		{name: "Get long key", fn: func() { tree.Get([]uint64{1, 2, 3}) }, want: ErrKeyLength},
		{name: "Put wide key", fn: func() { tree.Put([]uint64{256, 0}, 0) }, want: ErrKeyWidth},
		{name: "Remove wide key", fn: func() { tree.Remove([]uint64{0, 1 << 40}) }, want: ErrKeyWidth},
		{name: "Query short", fn: func() { tree.Query([]uint64{0}, []uint64{1}) }, want: ErrKeyLength},
	}

	for _, tt := range tests {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, tt.want) {
					t.Errorf("%s, expected panic with %v, got %v", tt.name, tt.want, r)
				}
			}()
			tt.fn()
		}()
	}
}

// insert 0..99999 as 1-D keys, overwrite all, remove all.
func TestTreeScenarioSequential(t *testing.T) {
	t.Parallel()

	const n = 100_000
	tree := MustNew[int64](1, 64)

	key := make([]uint64, 1)
	for i := range uint64(n) {
		key[0] = i
		tree.Put(key, int64(i)+100)
	}
	if tree.Len() != n {
		t.Fatalf("Len, expected %d, got %d", n, tree.Len())
	}

	for i := range uint64(n) {
		key[0] = i
		if prev, existed := tree.Put(key, -int64(i)); !existed || prev != int64(i)+100 {
			t.Fatalf("overwrite %d, expected (%d, true), got (%d, %v)", i, i+100, prev, existed)
		}
	}

	for i := range uint64(n) {
		key[0] = i
		if v, ok := tree.Get(key); !ok || v != -int64(i) {
			t.Fatalf("Get(%d), expected %d, got %d", i, -int64(i), v)
		}
	}
	mustCheck(t, tree)

	for i := range uint64(n) {
		key[0] = i
		if _, ok := tree.Remove(key); !ok {
			t.Fatalf("Remove(%d), expected true", i)
		}
	}
	if tree.Len() != 0 {
		t.Fatalf("Len after remove all, expected 0, got %d", tree.Len())
	}
	for i := range uint64(n) {
		key[0] = i
		if _, ok := tree.Get(key); ok {
			t.Fatalf("Get(%d) after remove all, expected false", i)
		}
	}
	mustCheck(t, tree)
}

func TestTreeUpdate(t *testing.T) {
	t.Parallel()

	tree := MustNew[int](2, 8)
	tree.Put([]uint64{1, 1}, 11)
	tree.Put([]uint64{2, 2}, 22)

	if _, ok := tree.Update([]uint64{9, 9}, []uint64{3, 3}); ok {
		t.Errorf("Update of absent key, expected false")
	}

	if v, ok := tree.Update([]uint64{1, 1}, []uint64{5, 5}); !ok || v != 11 {
		t.Errorf("Update, expected (11, true), got (%d, %v)", v, ok)
	}
	if tree.Contains([]uint64{1, 1}) {
		t.Errorf("Update, old key still exists")
	}
	if v, _ := tree.Get([]uint64{5, 5}); v != 11 {
		t.Errorf("Update, expected 11 at new key, got %d", v)
	}

	// move onto an existing key overwrites
	tree.Update([]uint64{5, 5}, []uint64{2, 2})
	if v, _ := tree.Get([]uint64{2, 2}); v != 11 || tree.Len() != 1 {
		t.Errorf("Update onto existing key, expected 11 and Len 1, got %d and %d", v, tree.Len())
	}
	mustCheck(t, tree)

	// a bad key panics before anything is removed
	badKeys := []struct {
		name           string
		oldKey, newKey []uint64
		want           error
	}{
		{name: "wide new key", oldKey: []uint64{2, 2}, newKey: []uint64{2, 0x1ff}, want: ErrKeyWidth},
		{name: "short new key", oldKey: []uint64{2, 2}, newKey: []uint64{2}, want: ErrKeyLength},
		{name: "long old key", oldKey: []uint64{2, 2, 2}, newKey: []uint64{3, 3}, want: ErrKeyLength},
	}

	for _, tt := range badKeys {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, tt.want) {
					t.Errorf("Update %s, expected panic with %v, got %v", tt.name, tt.want, r)
				}
			}()
			tree.Update(tt.oldKey, tt.newKey)
		}()

		if v, ok := tree.Get([]uint64{2, 2}); !ok || v != 11 || tree.Len() != 1 {
			t.Errorf("Update %s, expected (11, true) and Len 1, got (%d, %v) and %d", tt.name, v, ok, tree.Len())
		}
	}
	mustCheck(t, tree)
}

func TestTreeClear(t *testing.T) {
	t.Parallel()

	prng := rand.New(rand.NewPCG(42, 42))
	tree := MustNew[int](3, 16)
	for i, k := range randomKeys(prng, 1_000, 3, 16) {
		tree.Put(k, i)
	}

	tree.Clear()
	if tree.Len() != 0 {
		t.Errorf("Len after Clear, expected 0, got %d", tree.Len())
	}
	mustCheck(t, tree)

	// usable after Clear
	tree.Put([]uint64{1, 2, 3}, 123)
	if v, ok := tree.Get([]uint64{1, 2, 3}); !ok || v != 123 {
		t.Errorf("Get after Clear and Put, expected 123, got %d", v)
	}
	mustCheck(t, tree)
}

func TestTreePathCompression(t *testing.T) {
	t.Parallel()

	tree := MustNew[int](2, 32)
	tree.Put([]uint64{0x1000, 0x1000}, 1)
	tree.Put([]uint64{0x1001, 0x1000}, 2)

	// one child below the root, branching at bit 0 with a long infix
	kids := tree.Root().Children()
	if len(kids) != 1 {
		t.Fatalf("root children, expected 1, got %d", len(kids))
	}
	kid := kids[0]
	if kid.PostLen() != 0 || kid.InfixLen() != 30 {
		t.Errorf("child postLen/infix, expected 0/30, got %d/%d", kid.PostLen(), kid.InfixLen())
	}
	if !slices.Equal(kid.Prefix(), []uint64{0x1000, 0x1000}) {
		t.Errorf("child prefix, got %v", kid.Prefix())
	}
	if len(kid.Entries()) != 2 {
		t.Errorf("child entries, expected 2, got %d", len(kid.Entries()))
	}

	// split the infix
	tree.Put([]uint64{0x1100, 0x1000}, 3)
	mustCheck(t, tree)

	// remove merges the infix again
	tree.Remove([]uint64{0x1100, 0x1000})
	kids = tree.Root().Children()
	if len(kids) != 1 || kids[0].InfixLen() != 30 {
		t.Errorf("after remove, expected one child with infix 30")
	}
	mustCheck(t, tree)
}

func TestNodeKindSwitch(t *testing.T) {
	t.Parallel()

	// 3 dims, 8 slots per node: dense from 2 slots, sparse below 1
	tree := MustNew[int](3, 1)

	keys := make([][]uint64, 0, 8)
	for hc := range uint64(8) {
		keys = append(keys, []uint64{hc >> 2 & 1, hc >> 1 & 1, hc & 1})
	}

	tree.Put(keys[0], 0)
	if k := tree.Root().Kind(); k != "SPARSE" {
		t.Errorf("one entry, expected SPARSE, got %s", k)
	}

	tree.Put(keys[1], 1)
	if k := tree.Root().Kind(); k != "DENSE" {
		t.Errorf("two entries, expected DENSE, got %s", k)
	}

	for i, k := range keys[2:] {
		tree.Put(k, i+2)
	}
	mustCheck(t, tree)

	// hysteresis, stay dense with one entry
	for _, k := range keys[1:7] {
		tree.Remove(k)
	}
	if k := tree.Root().Kind(); k != "DENSE" {
		t.Errorf("two entries after removals, expected DENSE, got %s", k)
	}
	tree.Remove(keys[7])
	if k := tree.Root().Kind(); k != "DENSE" {
		t.Errorf("one entry after removals, expected DENSE, got %s", k)
	}
	tree.Remove(keys[0])
	if k := tree.Root().Kind(); k != "SPARSE" {
		t.Errorf("empty, expected SPARSE, got %s", k)
	}
	mustCheck(t, tree)

	ntree := MustNew[int](3, 4, WithNodeTreeMinDims(3))
	if k := ntree.Root().Kind(); k != "NTREE" {
		t.Errorf("delegated, expected NTREE, got %s", k)
	}
}

func TestTreeConcurrentReaders(t *testing.T) {
	t.Parallel()

	prng := rand.New(rand.NewPCG(42, 42))
	keys := randomKeys(prng, 5_000, 4, 16)

	tree := MustNew[int](4, 16)
	for i, k := range keys {
		tree.Put(k, i)
	}

	done := make(chan bool)
	for range 4 {
		go func() {
			defer func() { done <- true }()
			for i, k := range keys {
				if v, ok := tree.Get(k); !ok || v != i {
					t.Errorf("concurrent Get(%v), expected %d, got %d", k, i, v)
					return
				}
			}
		}()
	}
	for range 4 {
		<-done
	}
}
