// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package source reads and writes point sets for the phtree command,
// as JSON files or as rows of a SQLite table.
package source

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
)

var (
	ErrDims  = errors.New("source: point has wrong number of dimensions")
	ErrWidth = errors.New("source: point exceeds the key bit width")
)

// Point is a key with its value.
type Point struct {
	Key   []uint64 `json:"key"`
	Value int64    `json:"value"`
}

// Validate checks the dimensions and the bit width of all keys.
func Validate(pts []Point, dims, width int) error {
	above := ^(^uint64(0) >> (64 - width))
	for i, p := range pts {
		if len(p.Key) != dims {
			return fmt.Errorf("%w: point %d has %d, want %d", ErrDims, i, len(p.Key), dims)
		}
		for d, k := range p.Key {
			if k&above != 0 {
				return fmt.Errorf("%w: point %d dimension %d value %#x", ErrWidth, i, d, k)
			}
		}
	}
	return nil
}

// Random returns n points with random keys of dims dimensions and
// width bits, the value is the index of the point.
func Random(prng *rand.Rand, n, dims, width int) []Point {
	mask := ^uint64(0) >> (64 - width)

	pts := make([]Point, n)
	for i := range pts {
		key := make([]uint64, dims)
		for d := range key {
			key[d] = prng.Uint64() & mask
		}
		pts[i] = Point{Key: key, Value: int64(i)}
	}
	return pts
}

// ReadJSON decodes a JSON array of points.
func ReadJSON(r io.Reader) ([]Point, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var pts []Point
	if err := sonnet.Unmarshal(data, &pts); err != nil {
		return nil, fmt.Errorf("source: decode points: %w", err)
	}
	return pts, nil
}

// ReadJSONFile decodes the JSON point file at path.
func ReadJSONFile(path string) ([]Point, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadJSON(f)
}

// WriteJSON encodes the points as JSON array.
func WriteJSON(w io.Writer, pts []Point) error {
	if pts == nil {
		pts = []Point{}
	}
	data, err := sonnet.Marshal(pts)
	if err != nil {
		return fmt.Errorf("source: encode points: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadConfigFile decodes a JSON object, e.g. a config file, into a
// generic map. A missing file is not an error, the map is empty then.
func ReadConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("source: read config %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := sonnet.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("source: parse config %s: %w", path, err)
	}
	return raw, nil
}
