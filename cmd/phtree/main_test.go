// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gaissmai/phtree/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command line with a missing config file.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	cfg := filepath.Join(t.TempDir(), "missing.json")
	cmd.SetArgs(append([]string{"--config=" + cfg}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func writePoints(t *testing.T, pts []source.Point) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "points.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, source.WriteJSON(f, pts))
	return path
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "phtree.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"dense_max_dims": 4,
		"log": {"level": "warn", "format": "json"}
	}`), 0o600))

	s, err := loadSettings(path, []string{
		"PHTREE_NODE_TREE_MIN_DIMS=20",
		"PHTREE_LOG_LEVEL=debug",
		"PHTREE_CONFIG=ignored",
		"HOME=/root",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, s.tree.DenseMaxDims)
	assert.Equal(t, 20, s.tree.NodeTreeMinDims)
	assert.Equal(t, "debug", s.log.Level)
	assert.Equal(t, "json", s.log.Format)
}

func TestLoadSettingsErrors(t *testing.T) {
	t.Parallel()

	_, err := loadSettings(filepath.Join(t.TempDir(), "missing.json"), []string{"PHTREE_NO_SUCH=1"})
	assert.Error(t, err)

	_, err = loadSettings(filepath.Join(t.TempDir(), "missing.json"), []string{"PHTREE_LOG_COLOR=1"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "phtree.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log": 3}`), 0o600))
	_, err = loadSettings(path, nil)
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	key, err := parseKey("1, 0x10,3", 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 16, 3}, key)

	_, err = parseKey("1,2", 3)
	assert.Error(t, err)

	_, err = parseKey("1,x", 2)
	assert.Error(t, err)
}

func TestQueryCmd(t *testing.T) {
	t.Parallel()

	path := writePoints(t, []source.Point{
		{Key: []uint64{1, 1}, Value: 11},
		{Key: []uint64{5, 5}, Value: 55},
		{Key: []uint64{9, 9}, Value: 99},
	})

	out, err := run(t, "query", "--json", path, "--dims", "2", "--width", "8", "--min", "0,0", "--max", "5,5")
	require.NoError(t, err)

	pts, err := source.ReadJSON(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, []source.Point{
		{Key: []uint64{1, 1}, Value: 11},
		{Key: []uint64{5, 5}, Value: 55},
	}, pts)

	out, err = run(t, "query", "--json", path, "--dims", "2", "--width", "8",
		"--mask", "--min", "1,1", "--max", "255,255", "--count")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	_, err = run(t, "query", "--json", path, "--dims", "2", "--width", "8", "--min", "0", "--max", "5,5")
	assert.Error(t, err)
}

func TestKnnCmd(t *testing.T) {
	t.Parallel()

	path := writePoints(t, []source.Point{
		{Key: []uint64{1, 1}, Value: 11},
		{Key: []uint64{5, 5}, Value: 55},
		{Key: []uint64{9, 9}, Value: 99},
	})

	out, err := run(t, "knn", "--json", path, "--dims", "2", "--width", "8", "--center", "8,8", "--k", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"value":99`)
	assert.Contains(t, out, `"value":55`)
	assert.NotContains(t, out, `"value":11`)

	_, err = run(t, "knn", "--json", path, "--dims", "2", "--width", "8", "--center", "8,8", "--dist", "manhattan")
	assert.Error(t, err)
}

func TestLoadCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := filepath.Join(dir, "points.db")
	js := filepath.Join(dir, "points.json")

	out, err := run(t, "load", "--random", "500", "--dims", "3", "--width", "16",
		"--check", "--to-sqlite", db, "--to-json", js)
	require.NoError(t, err)
	assert.Contains(t, out, "Size")

	// read back from SQLite
	out, err = run(t, "query", "--sqlite", db, "--dims", "3", "--width", "16",
		"--min", "0,0,0", "--max", "0xffff,0xffff,0xffff", "--count")
	require.NoError(t, err)
	assert.Equal(t, "500\n", out)

	pts, err := source.ReadJSONFile(js)
	require.NoError(t, err)
	assert.Len(t, pts, 500)

	_, err = run(t, "load", "--dims", "3")
	assert.Error(t, err)
}

func TestDumpCmd(t *testing.T) {
	t.Parallel()

	out, err := run(t, "dump", "--random", "20", "--dims", "2", "--width", "8")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "### PH-tree: dims(2) width(8) size(20)"))
}

func TestBenchCmd(t *testing.T) {
	t.Parallel()

	out, err := run(t, "bench", "--n", "2000", "--queries", "50", "--dims", "3", "--width", "20", "--check")
	require.NoError(t, err)
	for _, op := range []string{"put", "get", "query", "knn", "remove"} {
		assert.Contains(t, out, op)
	}

	_, err = run(t, "bench", "--n", "0")
	assert.Error(t, err)
}
