// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package pool implements bounded free-lists for objects and
// []uint64 buffers.
//
// In contrast to sync.Pool the free-lists are not drained by the
// garbage collector and never grow past their capacity, excess
// returns are simply dropped and left for collection.
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a bounded free-list for *T.
//
// A nil *Pool is valid, Get allocates and Put discards.
// Get and Put are safe for concurrent use, this protects
// only the bookkeeping of the pool itself.
type Pool[T any] struct {
	mu       sync.Mutex
	free     []*T
	capacity int

	newFn   func() *T
	resetFn func(*T)

	totalAllocated atomic.Int64 // total number of *T ever allocated
	currentLive    atomic.Int64 // number of objects currently in use (not returned)
	dropped        atomic.Int64 // returns discarded because the free-list was full
}

// New creates a pool with room for capacity idle objects.
// newFn must not be nil, resetFn may be nil.
func New[T any](capacity int, newFn func() *T, resetFn func(*T)) *Pool[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool[T]{
		free:     make([]*T, 0, min(capacity, 1024)),
		capacity: capacity,
		newFn:    newFn,
		resetFn:  resetFn,
	}
}

// Get borrows an object from the free-list or allocates a new one.
func (p *Pool[T]) Get() *T {
	if p == nil {
		return new(T)
	}
	p.currentLive.Add(1)

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		x := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return x
	}
	p.mu.Unlock()

	p.totalAllocated.Add(1)
	return p.newFn()
}

// Put resets x and returns it to the free-list.
// It reports false if the free-list is full and x was dropped.
func (p *Pool[T]) Put(x *T) bool {
	if p == nil || x == nil {
		return false
	}
	p.currentLive.Add(-1)

	if p.resetFn != nil {
		p.resetFn(x)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) >= p.capacity {
		p.dropped.Add(1)
		return false
	}
	p.free = append(p.free, x)
	return true
}

// Stats returns the number of currently live (borrowed) objects
// and the total number of objects ever allocated by this pool.
func (p *Pool[T]) Stats() (live int64, total int64) {
	if p == nil {
		return 0, 0
	}
	return p.currentLive.Load(), p.totalAllocated.Load()
}

// Idle returns the number of objects waiting in the free-list.
func (p *Pool[T]) Idle() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Dropped returns the number of returned objects discarded
// because the free-list was at capacity.
func (p *Pool[T]) Dropped() int64 {
	if p == nil {
		return 0
	}
	return p.dropped.Load()
}

// Capacity returns the max. number of idle objects.
func (p *Pool[T]) Capacity() int {
	if p == nil {
		return 0
	}
	return p.capacity
}
