// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pool

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferCapacity is the number of idle buffers per size class
// if InitBuffers is not called before the first use.
const DefaultBufferCapacity = 4096

// maxSizeClass, keys have at most 64 dimensions
const maxSizeClass = 64

// bufferClass is the free-list for []uint64 of one length.
type bufferClass struct {
	mu   sync.Mutex
	free [][]uint64
}

// buffers is the process-wide buffer pool, one class per length.
var buffers struct {
	once     sync.Once
	capacity int
	classes  [maxSizeClass + 1]bufferClass

	live  atomic.Int64
	total atomic.Int64
}

// InitBuffers sets the capacity of every buffer size class.
// It has only an effect if called before the first buffer is borrowed,
// the capacity is fixed for the lifetime of the process.
func InitBuffers(capacity int) {
	buffers.once.Do(func() {
		buffers.capacity = max(capacity, 0)
	})
}

func initDefault() {
	buffers.once.Do(func() {
		buffers.capacity = DefaultBufferCapacity
	})
}

// GetUint64s borrows a zeroed []uint64 of length n.
// Lengths outside of [1..64] are allocated and not tracked.
func GetUint64s(n int) []uint64 {
	if n <= 0 || n > maxSizeClass {
		return make([]uint64, max(n, 0))
	}
	initDefault()
	buffers.live.Add(1)

	c := &buffers.classes[n]
	c.mu.Lock()
	if l := len(c.free); l > 0 {
		b := c.free[l-1]
		c.free[l-1] = nil
		c.free = c.free[:l-1]
		c.mu.Unlock()
		return b
	}
	c.mu.Unlock()

	buffers.total.Add(1)
	return make([]uint64, n)
}

// PutUint64s returns b to its size class, b is cleared before reuse.
// The caller must not use b afterwards.
func PutUint64s(b []uint64) {
	n := len(b)
	if n == 0 || n > maxSizeClass || cap(b) != n {
		return
	}
	initDefault()
	buffers.live.Add(-1)

	clear(b)

	c := &buffers.classes[n]
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.free) >= buffers.capacity {
		return
	}
	c.free = append(c.free, b)
}

// BufferStats returns the number of borrowed buffers and the total
// number of buffers ever allocated, process-wide.
func BufferStats() (live int64, total int64) {
	return buffers.live.Load(), buffers.total.Load()
}
