// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pool

import (
	"sync"
	"testing"
)

type item struct {
	vals []int
	tag  string
}

func newItemPool(capacity int) *Pool[item] {
	return New(capacity,
		func() *item { return &item{vals: make([]int, 0, 4)} },
		func(it *item) {
			it.vals = it.vals[:0]
			it.tag = ""
		},
	)
}

func TestPool_ReuseAndStats(t *testing.T) {
	t.Parallel()

	p := newItemPool(2)

	live0, total0 := p.Stats()
	if live0 != 0 || total0 != 0 {
		t.Fatalf("initial stats incorrect: live=%d, total=%d", live0, total0)
	}

	it1 := p.Get()
	it1.vals = append(it1.vals, 1, 2, 3)
	it1.tag = "foo"

	live1, total1 := p.Stats()
	if live1 != 1 || total1 != 1 {
		t.Errorf("expected live=1 and total=1 after Get; got live=%d, total=%d", live1, total1)
	}

	if !p.Put(it1) {
		t.Errorf("Put, expected item to be kept")
	}

	live2, total2 := p.Stats()
	if live2 != 0 || total2 != 1 {
		t.Errorf("expected live=0, total=1 after Put(); got live=%d, total=%d", live2, total2)
	}

	// should reuse
	it2 := p.Get()
	if it2 != it1 {
		t.Errorf("expected the idle item to be reused")
	}
	if len(it2.vals) != 0 || it2.tag != "" {
		t.Errorf("expected reused item to be reset, got %+v", it2)
	}
	if cap(it2.vals) < 3 {
		t.Errorf("expected reset to retain capacity, got cap %d", cap(it2.vals))
	}

	p.Put(it2)
}

func TestPool_Bounded(t *testing.T) {
	t.Parallel()

	p := newItemPool(2)

	items := make([]*item, 5)
	for i := range items {
		items[i] = p.Get()
	}

	kept := 0
	for _, it := range items {
		if p.Put(it) {
			kept++
		}
	}

	if kept != 2 {
		t.Errorf("expected 2 kept items, got %d", kept)
	}
	if got := p.Idle(); got != 2 {
		t.Errorf("Idle, expected 2, got %d", got)
	}
	if got := p.Dropped(); got != 3 {
		t.Errorf("Dropped, expected 3, got %d", got)
	}
	if live, total := p.Stats(); live != 0 || total != 5 {
		t.Errorf("expected live=0, total=5, got live=%d total=%d", live, total)
	}
}

func TestPool_ZeroCapacity(t *testing.T) {
	t.Parallel()

	p := newItemPool(0)
	it := p.Get()
	if p.Put(it) {
		t.Errorf("zero capacity pool must drop returned items")
	}
	if live, _ := p.Stats(); live != 0 {
		t.Errorf("expected live=0, got %d", live)
	}
}

func TestPool_Nil(t *testing.T) {
	t.Parallel()

	var p *Pool[item]

	it := p.Get()
	if it == nil {
		t.Fatal("nil pool Get must allocate")
	}
	if p.Put(it) {
		t.Errorf("nil pool Put must discard")
	}
	if live, total := p.Stats(); live != 0 || total != 0 {
		t.Errorf("nil pool stats, got live=%d total=%d", live, total)
	}
	if p.Idle() != 0 || p.Capacity() != 0 || p.Dropped() != 0 {
		t.Errorf("nil pool, expected zero values")
	}
}

func TestPool_Concurrent(t *testing.T) {
	t.Parallel()

	p := newItemPool(16)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				it := p.Get()
				it.tag = "x"
				p.Put(it)
			}
		}()
	}
	wg.Wait()

	if live, _ := p.Stats(); live != 0 {
		t.Errorf("expected live=0 after concurrent use, got %d", live)
	}
	if idle := p.Idle(); idle > 16 {
		t.Errorf("idle items exceed capacity: %d", idle)
	}
}

func TestBuffers(t *testing.T) {
	t.Parallel()

	b := GetUint64s(3)
	if len(b) != 3 || cap(b) != 3 {
		t.Fatalf("GetUint64s(3), got len=%d cap=%d", len(b), cap(b))
	}

	b[0], b[1], b[2] = 1, 2, 3
	PutUint64s(b)

	c := GetUint64s(3)
	for i, v := range c {
		if v != 0 {
			t.Errorf("reused buffer not cleared at %d: %d", i, v)
		}
	}
	PutUint64s(c)

	// out of range lengths are plain allocations
	if got := GetUint64s(0); len(got) != 0 {
		t.Errorf("GetUint64s(0), got len %d", len(got))
	}
	if got := GetUint64s(65); len(got) != 65 {
		t.Errorf("GetUint64s(65), got len %d", len(got))
	}
}
