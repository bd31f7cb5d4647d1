// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package sparse implements a special sparse array
// with popcount compression for max. 64 items.
package sparse

import (
	"math/bits"
)

// Array64 is a generic implementation of a sparse array
// with popcount compression for max. 64 items with payload T.
//
// The bitmap and the items are coupled, never change one
// without the other.
type Array64[T any] struct {
	Bits  uint64
	Items []T
}

// Test if the slot i is occupied. i must be < 64.
func (a *Array64[T]) Test(i uint) bool {
	return a.Bits&(1<<(i&63)) != 0
}

// Rank0 returns the number of set bits up to and including i, minus 1.
// This is the index into Items for an occupied slot i.
//
// example: a.Rank0(5) -> 1
//
//	                        ⬇
//	Bits:        [0|0|1|0|0|1|0|...|1] <- 3 bits set
//	Items:       [*|*|*]               <- len(Items) = 3
//	                ⬆
func (a *Array64[T]) Rank0(i uint) int {
	return bits.OnesCount64(a.Bits&(^uint64(0)>>(63-(i&63)))) - 1
}

// Get the value at i from sparse array.
func (a *Array64[T]) Get(i uint) (value T, ok bool) {
	if a.Test(i) {
		return a.Items[a.Rank0(i)], true
	}
	return
}

// MustGet use it only after a successful test
// or the behavior is undefined, it will NOT PANIC.
func (a *Array64[T]) MustGet(i uint) T {
	return a.Items[a.Rank0(i)]
}

// Len returns the number of items in sparse array.
func (a *Array64[T]) Len() int {
	return len(a.Items)
}

// FirstSet returns the first occupied slot along with an ok code.
func (a *Array64[T]) FirstSet() (uint, bool) {
	if a.Bits == 0 {
		return 0, false
	}
	return uint(bits.TrailingZeros64(a.Bits)), true
}

// NextSet returns the next occupied slot from i, including i.
func (a *Array64[T]) NextSet(i uint) (uint, bool) {
	if i > 63 {
		return 0, false
	}
	w := a.Bits >> i
	if w == 0 {
		return 0, false
	}
	return i + uint(bits.TrailingZeros64(w)), true
}

// InsertAt a value at i into the sparse array.
// If the value already exists, overwrite it with val and return true.
func (a *Array64[T]) InsertAt(i uint, value T) (exists bool) {
	// slot exists, overwrite value
	if a.Test(i) {
		a.Items[a.Rank0(i)] = value
		return true
	}

	// new, insert into bitmap ...
	a.Bits |= 1 << (i & 63)

	// ... and slice
	a.insertItem(a.Rank0(i), value)

	return false
}

// DeleteAt a value at i from the sparse array, zeroes the tail.
func (a *Array64[T]) DeleteAt(i uint) (value T, exists bool) {
	if !a.Test(i) {
		return
	}

	rank0 := a.Rank0(i)
	value = a.Items[rank0]

	// delete from slice
	a.deleteItem(rank0)

	// delete from bitmap
	a.Bits &^= 1 << (i & 63)

	return value, true
}

// Reset clears the array but retains the capacity of Items.
func (a *Array64[T]) Reset() {
	clear(a.Items)
	a.Items = a.Items[:0]
	a.Bits = 0
}

// insertItem inserts the item at index i, shift the rest one pos right
//
// It panics if i is out of range.
func (a *Array64[T]) insertItem(i int, item T) {
	if len(a.Items) < cap(a.Items) {
		a.Items = a.Items[:len(a.Items)+1] // fast resize, no alloc
	} else {
		var zero T
		a.Items = append(a.Items, zero) // append one item, mostly enlarge cap by more than one item
	}

	_ = a.Items[i]                   // BCE
	copy(a.Items[i+1:], a.Items[i:]) // shift one slot right, starting at [i]
	a.Items[i] = item                // insert new item at [i]
}

// deleteItem at index i, shift the rest one pos left and clears the tail item
//
// It panics if i is out of range.
func (a *Array64[T]) deleteItem(i int) {
	var zero T

	_ = a.Items[i]                   // BCE
	copy(a.Items[i:], a.Items[i+1:]) // shift left, overwrite item at [i]

	nl := len(a.Items) - 1 // new len

	a.Items[nl] = zero     // clear the tail item
	a.Items = a.Items[:nl] // new len, cap is unchanged
}
