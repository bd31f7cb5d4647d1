// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package phtree

import "errors"

var (
	// ErrInvalidDims is returned by New for a dimension count out of [1..64].
	ErrInvalidDims = errors.New("phtree: dimensions out of range [1..64]")

	// ErrInvalidBitWidth is returned by New for a key width out of [1..64].
	ErrInvalidBitWidth = errors.New("phtree: key bit width out of range [1..64]")

	// ErrConfig is wrapped by all config validation errors.
	ErrConfig = errors.New("phtree: invalid config")

	// ErrKeyLength is the panic value for keys with the wrong number of dimensions.
	ErrKeyLength = errors.New("phtree: key length does not match dimensions")

	// ErrKeyWidth is the panic value for keys with bits above the key bit width.
	ErrKeyWidth = errors.New("phtree: key exceeds the key bit width")

	// ErrNoSuchElement is the panic value for Next calls on an exhausted iterator.
	ErrNoSuchElement = errors.New("phtree: no such element")

	// ErrUnsupported is the panic value for unsupported iterator operations.
	ErrUnsupported = errors.New("phtree: unsupported operation")

	// ErrInvariant is wrapped by all errors returned from Check.
	ErrInvariant = errors.New("phtree: invariant violated")
)
