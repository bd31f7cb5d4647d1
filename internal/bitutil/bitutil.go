// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package bitutil implements the bit fiddling needed by the hypercube trie:
// interleaving one bit per dimension into a hypercube address, prefix masks,
// masked successors and small helpers over []uint64 keys.
//
// Most functions are small enough to be inlined, keep it that way.
package bitutil

import (
	"math/bits"
)

// HcAddr builds the hypercube address at bit position pos.
// Bit pos of vals[0] becomes the most significant bit of the
// address, bit pos of vals[len(vals)-1] the least significant.
//
// It is used for keys as well as for query masks.
func HcAddr(vals []uint64, pos uint) (addr uint64) {
	for _, v := range vals {
		addr = addr<<1 | (v>>pos)&1
	}
	return addr
}

// AboveMask returns a mask with all bits strictly above pos set.
//
//	AboveMask(63) == 0
//	AboveMask(0)  == 0xffff_ffff_ffff_fffe
func AboveMask(pos uint) uint64 {
	// 2<<63 overflows to 0, 0-1 is all ones, the complement is 0
	return ^(uint64(2)<<pos - 1)
}

// LowMask returns a mask with the lowest n bits set, n may be 64.
func LowMask(n uint) uint64 {
	return uint64(1)<<n - 1
}

// HighestDiff returns the highest bit position where a and b differ
// in any dimension, or -1 if they are equal.
func HighestDiff(a, b []uint64) int {
	var diff uint64
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return bits.Len64(diff) - 1
}

// HighestDiffAbove is like HighestDiff but ignores all bits at or below pos.
func HighestDiffAbove(a, b []uint64, pos uint) int {
	m := AboveMask(pos)

	var diff uint64
	for i := range a {
		diff |= (a[i] ^ b[i]) & m
	}
	return bits.Len64(diff) - 1
}

// EqualAbove reports whether a and b agree in all bits above pos.
func EqualAbove(a, b []uint64, pos uint) bool {
	m := AboveMask(pos)
	for i := range a {
		if (a[i]^b[i])&m != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether a and b have the same length and words.
func Equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MaskedCopy copies src to dst, clearing all bits at or below pos.
// It panics if dst is shorter than src.
func MaskedCopy(dst, src []uint64, pos uint) {
	m := AboveMask(pos)

	_ = dst[len(src)-1] // BCE
	for i, v := range src {
		dst[i] = v & m
	}
}

// Resize returns buf with length n, reusing the backing array if possible.
// The content is not preserved when the backing array must grow.
func Resize(buf []uint64, n int) []uint64 {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]uint64, n)
}

// InRange reports whether every dimension of key is within [min, max].
func InRange(key, min, max []uint64) bool {
	for i, k := range key {
		if k < min[i] || k > max[i] {
			return false
		}
	}
	return true
}

// MatchMask reports whether ((k | minMask) & maxMask) == k for every dimension.
func MatchMask(key, minMask, maxMask []uint64) bool {
	for i, k := range key {
		if (k|minMask[i])&maxMask[i] != k {
			return false
		}
	}
	return true
}

// Matches reports whether v is a member of the set described by the masks:
// all bits of lower are set in v and v has no bits outside of upper.
func Matches(v, lower, upper uint64) bool {
	return (v|lower)&upper == v
}

// Inc returns the smallest value > v that matches (lower, upper).
// v must match the masks, ok is false if there is no such value.
//
// All bits that can't change are filled with ones, the increment
// then carries over them to the next free bit.
func Inc(v, lower, upper uint64) (next uint64, ok bool) {
	r := v | ^upper
	r++
	next = r&upper | lower
	return next, next > v
}

// NextGE returns the smallest value >= v that matches (lower, upper),
// v may be any value. The masks must be consistent, lower ⊆ upper.
func NextGE(v, lower, upper uint64) (next uint64, ok bool) {
	violations := (v &^ upper) | (lower &^ v)
	if violations == 0 {
		return v, true
	}

	// the bits above the highest violation are kept, the result
	// must be larger than v at some position at or above it
	h := uint(bits.Len64(violations) - 1)
	bit := uint64(1) << h

	if lower&bit != 0 {
		// v has a 0 where a 1 is required, setting it makes the result
		// larger than v, all lower bits are set to their minimum.
		return v&AboveMask(h) | bit | lower&LowMask(h), true
	}

	// v has a 1 where only a 0 is allowed, find the lowest free
	// position above h where v has a 0 and flip it.
	free := upper &^ v & AboveMask(h)
	if free == 0 {
		return 0, false
	}

	i := uint(bits.TrailingZeros64(free))
	return v&AboveMask(i) | uint64(1)<<i | lower&LowMask(i), true
}
