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

package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginetest "github.com/kraklabs/contextengine/internal/testing"
	"github.com/kraklabs/contextengine/pkg/analyzer"
	"github.com/kraklabs/contextengine/pkg/config"
	"github.com/kraklabs/contextengine/pkg/engine"
)

// TestInitialize_MinimalRoundtrip builds the one-file project and checks
// the exact graph contents.
func TestInitialize_MinimalRoundtrip(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function foo(){ bar(); }",
	})

	stats := eng.Statistics()
	assert.Equal(t, map[analyzer.NodeKind]int{
		analyzer.KindFile:     1,
		analyzer.KindFunction: 1,
	}, stats.NodesByKind)
	assert.Equal(t, map[analyzer.RelationKind]int{
		analyzer.RelContains: 1,
		analyzer.RelCalls:    1,
	}, stats.EdgesByKind)

	g := eng.Graph()
	_, ok := g.NodeByID("file:a.ts")
	assert.True(t, ok)
	_, ok = g.NodeByID("function:a.ts:foo")
	assert.True(t, ok)

	calls := g.OutEdges("function:a.ts:foo", analyzer.RelCalls)
	require.Len(t, calls, 1)
	assert.Equal(t, "bar", calls[0].Dst)
}

// TestInitialize_ImportSynthesizesModule covers local-module synthesis
// with the import payload.
func TestInitialize_ImportSynthesizesModule(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"b.ts": "import { x } from './lib';\n",
	})

	g := eng.Graph()
	mod, ok := g.NodeByID("./lib")
	require.True(t, ok, "module node must be synthesized")
	assert.False(t, mod.Module.External)

	imports := g.InEdges("./lib", analyzer.RelImports)
	require.Len(t, imports, 1)
	assert.Equal(t, []string{"x"}, imports[0].Rel.ImportedNames)
	assert.False(t, imports[0].Rel.Default)
}

// TestOnFileChange_Delete verifies incremental delete keeps the
// synthesized module.
func TestOnFileChange_Delete(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"b.ts": "import { x } from './lib';\n",
	})

	require.NoError(t, eng.OnFileChange(context.Background(), "b.ts", engine.FileDeleted))

	g := eng.Graph()
	_, ok := g.NodeByID("file:b.ts")
	assert.False(t, ok, "file node must be gone")
	assert.Empty(t, g.InEdges("./lib", analyzer.RelImports), "import edge must be gone")

	_, ok = g.NodeByID("./lib")
	assert.True(t, ok, "synthesized module survives")
}

// TestOnFileChange_ModifyReplacesNodes verifies modified files replace
// their previous entities wholesale.
func TestOnFileChange_ModifyReplacesNodes(t *testing.T) {
	eng, root := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function foo(){ }",
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"),
		[]byte("export function renamed(){ }"), 0644))
	require.NoError(t, eng.OnFileChange(context.Background(), "a.ts", engine.FileModified))

	g := eng.Graph()
	_, ok := g.NodeByID("function:a.ts:foo")
	assert.False(t, ok, "old function must be gone")
	_, ok = g.NodeByID("function:a.ts:renamed")
	assert.True(t, ok)

	assert.Equal(t, 1, eng.Statistics().NodesByKind[analyzer.KindFunction])
}

// TestOnFileChange_DeleteNeverIngested is a no-op, not an error.
func TestOnFileChange_DeleteNeverIngested(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function foo(){ }",
	})
	require.NoError(t, eng.OnFileChange(context.Background(), "ghost.ts", engine.FileDeleted))
}

// TestQuery_EndToEnd runs the layered query over a real indexed
// project.
func TestQuery_EndToEnd(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function foo(){ bar(); }\nexport function bar(){ }\n",
	})

	bundle, err := eng.Query(context.Background(), "explain foo", 4000)
	require.NoError(t, err)

	assert.False(t, bundle.Truncated)
	assert.Equal(t, "analysis", bundle.Intent)
	assert.LessOrEqual(t, bundle.Tokens, 4000)

	assert.Contains(t, bundle.Text, "- function:a.ts:foo")
	assert.Contains(t, bundle.Text, "function:a.ts:foo -> function:a.ts:bar (CALLS)")
	assert.Contains(t, bundle.Text, "- function:a.ts:bar")
	assert.Contains(t, bundle.Text, "## L3 Global")
}

// TestQuery_TightBudget verifies only L0 fits and truncation names the
// dropped layer.
func TestQuery_TightBudget(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function foo(){ bar(); }\nexport function bar(){ }\n",
	})

	bundle, err := eng.Query(context.Background(), "explain foo", 80)
	require.NoError(t, err)

	assert.True(t, bundle.Truncated)
	assert.Contains(t, bundle.TruncationReason, "L1")
	assert.LessOrEqual(t, bundle.Tokens, 80)
	require.Len(t, bundle.Layers, 1)
	assert.Equal(t, "L0", bundle.Layers[0].Name)
}

// TestInitialize_NonASTLanguageFileOnly verifies unsupported languages
// contribute a bare FileNode and never abort the batch.
func TestInitialize_NonASTLanguageFileOnly(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"ok.ts":   "export function fine(){ }",
		"util.py": "def helper():\n    pass\n",
	})

	g := eng.Graph()
	_, ok := g.NodeByID("file:util.py")
	assert.True(t, ok, "non-AST language still yields its FileNode")
	assert.Empty(t, g.OutEdges("file:util.py"))

	_, ok = g.NodeByID("function:ok.ts:fine")
	assert.True(t, ok)
	assert.Equal(t, 2, eng.Statistics().FileCount)
}

// TestInitialize_Cancelled verifies cancellation before ingest is
// surfaced as an error.
func TestInitialize_Cancelled(t *testing.T) {
	root := enginetest.WriteProjectFiles(t, map[string]string{
		"a.ts": "export function foo(){ }",
	})
	cfg := config.Default()
	cfg.GraphProvider.Type = "memory"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Initialize(ctx, root, cfg, nil)
	require.Error(t, err)
}

// TestPersistence_SaveLoadAcrossHandles verifies the graph round-trips
// through the on-disk document between engine instances.
func TestPersistence_SaveLoadAcrossHandles(t *testing.T) {
	root := enginetest.WriteProjectFiles(t, map[string]string{
		"a.ts": "export function foo(){ bar(); }\nexport function bar(){ }\n",
	})
	cfg := config.Default()
	cfg.VectorProvider.MinDocFreq = 1

	first, err := engine.Initialize(context.Background(), root, cfg, nil)
	require.NoError(t, err)
	wantStats := first.Statistics()
	require.NoError(t, first.Shutdown())

	require.FileExists(t, filepath.Join(root, ".contextengine", "context_graph.json"))

	second, err := engine.Open(context.Background(), root, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = second.Shutdown() }()

	got := second.Statistics()
	assert.Equal(t, wantStats.NodesByKind, got.NodesByKind)
	assert.Equal(t, wantStats.EdgesByKind, got.EdgesByKind)

	bundle, err := second.Query(context.Background(), "explain foo", 4000)
	require.NoError(t, err)
	assert.True(t, strings.Contains(bundle.Text, "function:a.ts:foo"))
}

// TestStatistics_VectorCounts verifies index counters surface through
// the engine.
func TestStatistics_VectorCounts(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function alpha(){ }\nexport function beta(){ }\n",
	})

	stats := eng.Statistics()
	assert.Equal(t, 3, stats.DocCount, "file + two functions")
	assert.Greater(t, stats.VocabSize, 0)
}

// TestShutdown_Idempotent verifies double shutdown is safe.
func TestShutdown_Idempotent(t *testing.T) {
	eng, _ := enginetest.SetupTestEngine(t, map[string]string{
		"a.ts": "export function foo(){ }",
	})
	require.NoError(t, eng.Shutdown())
	require.NoError(t, eng.Shutdown())
}
