// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Command phtree loads point sets into a PH-tree, runs window, mask and
// nearest neighbor queries and benchmarks the tree operations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
