// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	cfg, err := DecodeConfig(map[string]any{
		"dense_max_dims":      "4",
		"node_tree_min_dims":  12,
		"entry_pool_capacity": 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.DenseMaxDims)
	assert.Equal(t, 12, cfg.NodeTreeMinDims)
	assert.Equal(t, 10, cfg.EntryPoolCapacity)
	assert.Equal(t, DefaultConfig().NodePoolCapacity, cfg.NodePoolCapacity)
}

func TestDecodeConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeConfig(map[string]any{"no_such_knob": 1})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = DecodeConfig(map[string]any{"dense_max_dims": 20})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = DecodeConfig(map[string]any{"page_pool_capacity": "many"})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestDecodeConfigEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := DecodeConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DenseMaxDims = 2

	tree, err := New[int](3, 8, WithConfig(cfg), WithPoolCapacity(0), WithNodeTreeMinDims(40))
	require.NoError(t, err)

	got := tree.Config()
	assert.Equal(t, 2, got.DenseMaxDims)
	assert.Equal(t, 40, got.NodeTreeMinDims)
	assert.Zero(t, got.NodePoolCapacity)
	assert.Zero(t, got.EntryPoolCapacity)
	assert.Zero(t, got.PagePoolCapacity)

	// pool capacity has no functional effect
	for i := range uint64(100) {
		tree.Put([]uint64{i, i, i}, int(i))
	}
	for i := range uint64(100) {
		tree.Remove([]uint64{i, i, i})
	}
	assert.Zero(t, tree.Len())
	assert.NoError(t, tree.Check())
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	tree := MustNew[int](2, 8, WithLogger(log))
	tree.Put([]uint64{1, 1}, 1)
	tree.Put([]uint64{2, 2}, 2)

	// the new node below the root becomes dense with two entries
	assert.Contains(t, buf.String(), `"message":"node storage converted"`)
	assert.Contains(t, buf.String(), `"to":"DENSE"`)
	assert.Contains(t, buf.String(), `"component":"phtree"`)
}
