// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"github.com/gaissmai/phtree/internal/pagetree"
	"github.com/gaissmai/phtree/internal/pool"
	"github.com/rs/zerolog"
)

// multiPool groups the bounded free-lists of one tree: trie nodes,
// node-tree nodes, leaf entries and bucket pages.
// The key and prefix buffers come from the process-wide buffer pool.
//
// Each sub-pool handles allocation, reuse and statistics tracking
// for its object type, a borrowed object is reset before reuse.
type multiPool[V any] struct {
	node   *pool.Pool[node[V]]
	ntNode *pool.Pool[ntNode[V]]
	entry  *pool.Pool[entry[V]]
	pages  *pagetree.PagePool[any]

	log zerolog.Logger
}

// newMultiPool initializes and returns a new pool structure with sub-pools
// sized from the config.
func newMultiPool[V any](cfg Config, log zerolog.Logger) *multiPool[V] {
	return &multiPool[V]{
		log:    log,
		node:   pool.New(cfg.NodePoolCapacity, func() *node[V] { return new(node[V]) }, (*node[V]).reset),
		ntNode: pool.New(cfg.NodePoolCapacity, func() *ntNode[V] { return new(ntNode[V]) }, (*ntNode[V]).reset),
		entry:  pool.New(cfg.EntryPoolCapacity, func() *entry[V] { return new(entry[V]) }, (*entry[V]).reset),
		pages:  pagetree.NewPagePool[any](cfg.PagePoolCapacity),
	}
}

// getNode obtains a *node[V] with a prefix buffer for dims dimensions.
// If the pool is nil, a new instance is returned without tracking.
func (mp *multiPool[V]) getNode(dims int) *node[V] {
	var n *node[V]
	if mp == nil {
		n = new(node[V])
	} else {
		n = mp.node.Get()
	}
	n.prefix = pool.GetUint64s(dims)
	return n
}

// putNode returns a node and its prefix buffer for reuse.
// The storage of the node must already be empty.
func (mp *multiPool[V]) putNode(n *node[V]) {
	pool.PutUint64s(n.prefix)
	n.prefix = nil
	if mp != nil && !mp.node.Put(n) {
		mp.dropped("node", mp.node)
	}
}

// getNtNode obtains a *ntNode[V] from the pool.
func (mp *multiPool[V]) getNtNode() *ntNode[V] {
	if mp == nil {
		return new(ntNode[V])
	}
	return mp.ntNode.Get()
}

// putNtNode returns a node-tree node back to its pool for reuse.
func (mp *multiPool[V]) putNtNode(n *ntNode[V]) {
	if mp != nil && !mp.ntNode.Put(n) {
		mp.dropped("ntNode", mp.ntNode)
	}
}

// getEntry obtains a leaf entry holding a private copy of key.
func (mp *multiPool[V]) getEntry(key []uint64, val V) *entry[V] {
	var e *entry[V]
	if mp == nil {
		e = new(entry[V])
	} else {
		e = mp.entry.Get()
	}
	e.key = pool.GetUint64s(len(key))
	copy(e.key, key)
	e.value = val
	return e
}

// putEntry returns a leaf entry and its key buffer for reuse.
func (mp *multiPool[V]) putEntry(e *entry[V]) {
	pool.PutUint64s(e.key)
	e.key = nil
	if mp != nil && !mp.entry.Put(e) {
		mp.dropped("entry", mp.entry)
	}
}

// dropped logs a return to a full free-list.
func (mp *multiPool[V]) dropped(name string, p interface{ Dropped() int64 }) {
	mp.log.Debug().
		Str("pool", name).
		Int64("dropped", p.Dropped()).
		Msg("pool at capacity, object dropped")
}

// pagePool returns the page pool shared by all sparse nodes.
func (mp *multiPool[V]) pagePool() *pagetree.PagePool[any] {
	if mp == nil {
		return nil
	}
	return mp.pages
}

// PoolStats reports the live objects and the total allocations of the pools.
type PoolStats struct {
	LiveNodes, TotalNodes     int64
	LiveNtNodes, TotalNtNodes int64
	LiveEntries, TotalEntries int64
	LivePages, TotalPages     int64
}

// stats collects the statistics of all sub-pools.
func (mp *multiPool[V]) stats() (s PoolStats) {
	if mp == nil {
		return
	}
	s.LiveNodes, s.TotalNodes = mp.node.Stats()
	s.LiveNtNodes, s.TotalNtNodes = mp.ntNode.Stats()
	s.LiveEntries, s.TotalEntries = mp.entry.Stats()
	s.LivePages, s.TotalPages = mp.pages.Stats()
	return
}
