// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under a temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func scanTree(t *testing.T, root string, opts Options) *Result {
	t.Helper()
	if opts.MaxFiles == 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	s, err := New(root, opts)
	require.NoError(t, err)
	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	return result
}

// TestScan_SortedDeterministic verifies the file list is sorted
// lexicographically.
func TestScan_SortedDeterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"zeta.go":  "package a",
		"alpha.go": "package a",
		"mid/b.go": "package b",
	})
	result := scanTree(t, root, Options{})

	assert.Equal(t, []string{"alpha.go", "mid/b.go", "zeta.go"}, result.Files)
	assert.True(t, sort.StringsAreSorted(result.Files))
}

// TestScan_BuiltinIgnores verifies node_modules, .git and the state
// directory never surface.
func TestScan_BuiltinIgnores(t *testing.T) {
	root := writeTree(t, map[string]string{
		"keep.go":                  "package a",
		"node_modules/x/ignore.js": "x",
		".git/objects/junk.go":     "x",
		".contextengine/state.go":  "x",
		"vendor/dep/dep.go":        "x",
	})
	result := scanTree(t, root, Options{})

	assert.Equal(t, []string{"keep.go"}, result.Files)
}

// TestScan_SizeCap verifies files above MaxFileBytes are skipped, not
// fatal.
func TestScan_SizeCap(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.go": "package a",
		"big.go":   strings.Repeat("x", 2048),
	})
	result := scanTree(t, root, Options{MaxFileBytes: 1024})

	assert.Equal(t, []string{"small.go"}, result.Files)
	assert.GreaterOrEqual(t, result.Skipped, 1)
}

// TestScan_ExtensionAllowlist verifies binaries and unknown extensions
// are skipped while known config basenames survive.
func TestScan_ExtensionAllowlist(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":    "package a",
		"img.png":    "x",
		"Makefile":   "all:",
		"mystery.xx": "x",
	})
	result := scanTree(t, root, Options{IncludePatterns: []string{"*.go", "Makefile"}})

	assert.Equal(t, []string{"Makefile", "main.go"}, result.Files)
}

// TestScan_MaxFilesZero is the boundary case: empty scan, no errors.
func TestScan_MaxFilesZero(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a"})
	s, err := New(root, Options{MaxFiles: 0})
	require.NoError(t, err)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Zero(t, result.Skipped)
}

// TestScan_MaxFilesStopsEmitting verifies the cap bounds the result.
func TestScan_MaxFilesStopsEmitting(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "package a", "b.go": "package a", "c.go": "package a",
	})
	result := scanTree(t, root, Options{MaxFiles: 2})

	assert.Len(t, result.Files, 2)
}

// TestScan_ScanIgnorePrecedence verifies the scanignore file excludes
// paths.
func TestScan_ScanIgnorePrecedence(t *testing.T) {
	root := writeTree(t, map[string]string{
		"keep.go":                   "package a",
		"generated/gen.go":          "package gen",
		".contextengine/scanignore": "# generated output\ngenerated/**\n",
	})
	result := scanTree(t, root, Options{RespectScanIgnore: true})

	assert.Equal(t, []string{"keep.go"}, result.Files)
}

// TestScan_VcsIgnore verifies .gitignore globs are honored when enabled
// and ignored when disabled.
func TestScan_VcsIgnore(t *testing.T) {
	files := map[string]string{
		"keep.go":    "package a",
		"tmp/tmp.go": "package tmp",
		".gitignore": "tmp/\n",
	}

	root := writeTree(t, files)
	withIgnore := scanTree(t, root, Options{RespectVcsIgnore: true})
	assert.Equal(t, []string{"keep.go"}, withIgnore.Files)

	root2 := writeTree(t, files)
	without := scanTree(t, root2, Options{RespectVcsIgnore: false})
	assert.Contains(t, without.Files, "tmp/tmp.go")
}

// TestScan_Cancellation verifies a cancelled context aborts the walk.
func TestScan_Cancellation(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a"})
	s, err := New(root, Options{MaxFiles: DefaultMaxFiles})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestNew_InvalidGlobIsStartupError verifies malformed globs fail fast.
func TestNew_InvalidGlobIsStartupError(t *testing.T) {
	root := t.TempDir()
	_, err := New(root, Options{IncludePatterns: []string{"src/[abc.go"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")
}

// TestAccepts mirrors the scan filters for single paths.
func TestAccepts(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, Options{MaxFiles: DefaultMaxFiles})
	require.NoError(t, err)

	assert.True(t, s.Accepts("src/main.go"))
	assert.False(t, s.Accepts("node_modules/x/y.js"))
	assert.False(t, s.Accepts(".contextengine/context_graph.json"))
	assert.False(t, s.Accepts("image.png"))
}
