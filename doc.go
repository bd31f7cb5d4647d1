// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package phtree provides a PH-tree, a multi-dimensional point index
// for keys of 1 to 64 dimensions with up to 64 bits per dimension.
//
// The PH-tree is a hypercube trie: every node branches on one bit of all
// dimensions at once and stores the common prefix of its keys, so the
// depth is bounded by the key bit width and never rebalanced.
//
// A node stores its slots in one of three ways, chosen by the number of
// dimensions and the fill level:
//
//   - DENSE:  a fixed array of 2^dims slots, for low dimensions and many slots
//   - SPARSE: a bucket-paged ordered tree, for sparsely filled nodes
//   - NTREE:  a node-tree over 6-bit address chunks, for high dimensions
//
// Window queries, mask queries and filter queries run on a reusable
// Iterator that does not allocate after the first use. A running query
// window can be shrunk with AdjustMinMax, the k-nearest-neighbor search
// is built on that.
//
// Nodes, entries and pages are recycled through per-tree pools.
package phtree
