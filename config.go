// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
)

// Config holds the tuning knobs of a tree.
// None of them changes the functional behavior, only memory and speed.
type Config struct {
	// DenseMaxDims, nodes of trees with up to DenseMaxDims dimensions
	// may use a dense array of 2^dims slots if the occupancy is high enough.
	DenseMaxDims int `mapstructure:"dense_max_dims" json:"dense_max_dims"`

	// NodeTreeMinDims, all nodes of trees with at least NodeTreeMinDims
	// dimensions store their slots in a node-tree of 64-way nodes.
	// Set it above 64 to never use node-trees.
	NodeTreeMinDims int `mapstructure:"node_tree_min_dims" json:"node_tree_min_dims"`

	// NodePoolCapacity is the max. number of idle trie and node-tree nodes kept for reuse.
	NodePoolCapacity int `mapstructure:"node_pool_capacity" json:"node_pool_capacity"`

	// EntryPoolCapacity is the max. number of idle leaf entries kept for reuse.
	EntryPoolCapacity int `mapstructure:"entry_pool_capacity" json:"entry_pool_capacity"`

	// PagePoolCapacity is the max. number of idle bucket pages kept for reuse.
	PagePoolCapacity int `mapstructure:"page_pool_capacity" json:"page_pool_capacity"`
}

const (
	// maxDenseDims bounds the dense arrays to 64Ki slots.
	maxDenseDims = 16

	defaultDenseMaxDims    = 8
	defaultNodeTreeMinDims = 16
	defaultPoolCapacity    = 1024
)

// DefaultConfig returns the config used by New without options.
func DefaultConfig() Config {
	return Config{
		DenseMaxDims:      defaultDenseMaxDims,
		NodeTreeMinDims:   defaultNodeTreeMinDims,
		NodePoolCapacity:  defaultPoolCapacity,
		EntryPoolCapacity: defaultPoolCapacity,
		PagePoolCapacity:  defaultPoolCapacity,
	}
}

// Validate returns an error wrapping ErrConfig for out of range values.
func (c Config) Validate() error {
	switch {
	case c.DenseMaxDims < 0 || c.DenseMaxDims > maxDenseDims:
		return fmt.Errorf("%w: dense_max_dims %d out of range [0..%d]", ErrConfig, c.DenseMaxDims, maxDenseDims)
	case c.NodeTreeMinDims < 1:
		return fmt.Errorf("%w: node_tree_min_dims %d must be positive", ErrConfig, c.NodeTreeMinDims)
	case c.NodePoolCapacity < 0:
		return fmt.Errorf("%w: node_pool_capacity %d is negative", ErrConfig, c.NodePoolCapacity)
	case c.EntryPoolCapacity < 0:
		return fmt.Errorf("%w: entry_pool_capacity %d is negative", ErrConfig, c.EntryPoolCapacity)
	case c.PagePoolCapacity < 0:
		return fmt.Errorf("%w: page_pool_capacity %d is negative", ErrConfig, c.PagePoolCapacity)
	}
	return nil
}

// DecodeConfig decodes a generic map, e.g. from a JSON or YAML file,
// on top of the DefaultConfig and validates the result.
// Unknown keys are an error.
func DecodeConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}

	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, cfg.Validate()
}

// Option configures a tree in New.
type Option func(*options)

type options struct {
	cfg Config
	log zerolog.Logger
}

// WithConfig replaces the whole config.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger for structural debug events,
// the default is a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDenseMaxDims sets Config.DenseMaxDims.
func WithDenseMaxDims(dims int) Option {
	return func(o *options) { o.cfg.DenseMaxDims = dims }
}

// WithNodeTreeMinDims sets Config.NodeTreeMinDims.
func WithNodeTreeMinDims(dims int) Option {
	return func(o *options) { o.cfg.NodeTreeMinDims = dims }
}

// WithPoolCapacity sets the capacity of all object pools.
func WithPoolCapacity(capacity int) Option {
	return func(o *options) {
		o.cfg.NodePoolCapacity = capacity
		o.cfg.EntryPoolCapacity = capacity
		o.cfg.PagePoolCapacity = capacity
	}
}
