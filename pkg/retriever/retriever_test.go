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

package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/contextengine/pkg/analyzer"
	"github.com/kraklabs/contextengine/pkg/graph"
	"github.com/kraklabs/contextengine/pkg/vectorindex"
)

// newCallGraph builds the canonical two-function graph: foo calls bar.
func newCallGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(graph.Options{})
	nodes := []graph.Node{
		graph.FileNodeOf(analyzer.FileNode{ID: "file:a.ts", RelPath: "a.ts", Language: "typescript"}),
		graph.FunctionNodeOf(analyzer.FunctionNode{ID: "function:a.ts:foo", Name: "foo", FilePath: "a.ts"}),
		graph.FunctionNodeOf(analyzer.FunctionNode{ID: "function:a.ts:bar", Name: "bar", FilePath: "a.ts"}),
	}
	rels := []analyzer.Relation{
		{Kind: analyzer.RelContains, Src: "file:a.ts", Dst: "function:a.ts:foo", FilePath: "a.ts"},
		{Kind: analyzer.RelContains, Src: "file:a.ts", Dst: "function:a.ts:bar", FilePath: "a.ts"},
		{Kind: analyzer.RelCalls, Src: "function:a.ts:foo", Dst: "function:a.ts:bar", DstResolved: true, CallKind: analyzer.CallDirect},
	}
	require.NoError(t, g.Ingest(nodes, rels))
	return g
}

func newTestRetriever(t *testing.T, g *graph.Graph, opts Options) *Retriever {
	t.Helper()
	idx := vectorindex.NewTFIDFIndex(vectorindex.TFIDFOptions{MinDocFreq: 1})
	require.NoError(t, idx.Initialize(context.Background()))
	for _, kind := range []analyzer.NodeKind{analyzer.KindFile, analyzer.KindFunction, analyzer.KindClass} {
		for _, n := range g.FindByKind(kind) {
			proj := vectorindex.Projection(n)
			if proj != "" {
				require.NoError(t, idx.IndexDocument(context.Background(), n.ID, proj, vectorindex.ProjectionMetadata(n)))
			}
		}
	}
	idx.BuildVocabulary()
	return New(g, idx, opts)
}

func layerByName(b *Bundle, name string) *Layer {
	for i := range b.Layers {
		if b.Layers[i].Name == name {
			return &b.Layers[i]
		}
	}
	return nil
}

// TestQuery_LayeredResult is the canonical layered query: L0 holds the
// named function and its outgoing call, L1 its neighborhood, L3 the
// summary.
func TestQuery_LayeredResult(t *testing.T) {
	r := newTestRetriever(t, newCallGraph(t), Options{})

	b, err := r.Query(context.Background(), "explain foo", 4000)
	require.NoError(t, err)

	assert.False(t, b.Truncated)
	assert.Equal(t, IntentAnalysis, b.Intent)
	assert.LessOrEqual(t, b.Tokens, 4000)

	l0 := layerByName(b, "L0")
	require.NotNil(t, l0)
	assert.Contains(t, l0.Entities, "function:a.ts:foo")
	require.NotEmpty(t, l0.Relations)
	foundCall := false
	for _, e := range l0.Relations {
		if e.Src == "function:a.ts:foo" && e.Dst == "function:a.ts:bar" {
			foundCall = true
		}
	}
	assert.True(t, foundCall, "L0 must carry the foo->bar edge")

	l1 := layerByName(b, "L1")
	require.NotNil(t, l1)
	assert.Contains(t, l1.Entities, "function:a.ts:bar")

	l3 := layerByName(b, "L3")
	require.NotNil(t, l3)
	assert.NotEmpty(t, l3.Summary)

	assert.Contains(t, b.Text, "- function:a.ts:foo")
	assert.Contains(t, b.Text, "function:a.ts:foo -> function:a.ts:bar (CALLS)")
	assert.Contains(t, b.Text, fmt.Sprintf("*Context generated using %d tokens across %d layers*", b.Tokens, len(b.Layers)))
}

// TestQuery_BudgetTruncation verifies that a tight budget keeps only L0
// and reports the omitted layer.
func TestQuery_BudgetTruncation(t *testing.T) {
	r := newTestRetriever(t, newCallGraph(t), Options{})

	b, err := r.Query(context.Background(), "explain foo", 80)
	require.NoError(t, err)

	assert.True(t, b.Truncated)
	assert.Contains(t, b.TruncationReason, "L1")
	assert.LessOrEqual(t, b.Tokens, 80)

	require.NotNil(t, layerByName(b, "L0"))
	assert.Nil(t, layerByName(b, "L1"))
	assert.Nil(t, layerByName(b, "L3"))
	assert.Contains(t, b.Text, "Truncation Notice")
}

// TestQuery_ZeroBudget is the boundary case: empty bundle, reason
// budget=0.
func TestQuery_ZeroBudget(t *testing.T) {
	r := newTestRetriever(t, newCallGraph(t), Options{})

	b, err := r.Query(context.Background(), "explain foo", 0)
	require.NoError(t, err)

	assert.True(t, b.Truncated)
	assert.Equal(t, "budget=0", b.TruncationReason)
	assert.Zero(t, b.Tokens)
	assert.Empty(t, b.Layers)
}

// TestQuery_NoSeeds verifies an utterance naming nothing yields only L3.
func TestQuery_NoSeeds(t *testing.T) {
	r := newTestRetriever(t, newCallGraph(t), Options{Extractor: ExtractorRuleBased})

	b, err := r.Query(context.Background(), "hello there", 4000)
	require.NoError(t, err)

	require.Len(t, b.Layers, 1)
	assert.Equal(t, "L3", b.Layers[0].Name)
	assert.False(t, b.Truncated)
}

// TestQuery_RuleBasedSkipsVector verifies graph-led mode works without
// any vector hits.
func TestQuery_RuleBasedSkipsVector(t *testing.T) {
	r := New(newCallGraph(t), nil, Options{Extractor: ExtractorRuleBased})

	b, err := r.Query(context.Background(), "explain foo", 4000)
	require.NoError(t, err)
	l0 := layerByName(b, "L0")
	require.NotNil(t, l0)
	assert.Contains(t, l0.Entities, "function:a.ts:foo")
}

// TestQuery_HybridWeights verifies weighted hybrid fusion yields an L0
// layer whose order is deterministic across repeated queries.
func TestQuery_HybridWeights(t *testing.T) {
	g := newCallGraph(t)
	r := newTestRetriever(t, g, Options{
		Extractor: ExtractorHybrid, RAGWeight: 0.7, RuleWeight: 0.3,
	})

	b, err := r.Query(context.Background(), "explain foo bar", 4000)
	require.NoError(t, err)
	l0 := layerByName(b, "L0")
	require.NotNil(t, l0)
	// Both foo and bar are L0 seeds; vector scores break the tie
	// deterministically, so repeated queries agree.
	b2, err := r.Query(context.Background(), "explain foo bar", 4000)
	require.NoError(t, err)
	assert.Equal(t, b.Text, b2.Text)
}

// TestQuery_CancelledContext verifies partial results tagged cancelled.
func TestQuery_CancelledContext(t *testing.T) {
	r := New(newCallGraph(t), nil, Options{Extractor: ExtractorRuleBased})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, err := r.Query(ctx, "explain foo", 4000)
	require.NoError(t, err)
	assert.True(t, b.Truncated)
	assert.Equal(t, "cancelled", b.TruncationReason)
}

// TestQuery_VectorFailsOpen verifies the surviving source is used
// as-is when the vector search errors.
func TestQuery_VectorFailsOpen(t *testing.T) {
	r := New(newCallGraph(t), failingIndex{}, Options{Extractor: ExtractorHybrid})

	b, err := r.Query(context.Background(), "explain foo", 4000)
	require.NoError(t, err)
	l0 := layerByName(b, "L0")
	require.NotNil(t, l0)
	assert.Contains(t, l0.Entities, "function:a.ts:foo")
	assert.False(t, b.Truncated)
}

// failingIndex errors on every search.
type failingIndex struct{}

func (failingIndex) Initialize(ctx context.Context) error { return nil }
func (failingIndex) IndexDocument(ctx context.Context, id, content string, meta vectorindex.Metadata) error {
	return nil
}
func (failingIndex) Search(ctx context.Context, text string, topK int, threshold float64) ([]vectorindex.SearchResult, error) {
	return nil, fmt.Errorf("index offline")
}
func (failingIndex) RemoveDocument(id string) error { return nil }
func (failingIndex) Stats() vectorindex.Stats       { return vectorindex.Stats{} }
func (failingIndex) Dispose() error                 { return nil }

// TestQuery_RelationDisplayCap verifies at most five relations render
// in a layer.
func TestQuery_RelationDisplayCap(t *testing.T) {
	g := graph.New(graph.Options{})
	nodes := []graph.Node{
		graph.FunctionNodeOf(analyzer.FunctionNode{ID: "function:hub.ts:hub", Name: "hub", FilePath: "hub.ts"}),
	}
	var rels []analyzer.Relation
	for i := 0; i < 8; i++ {
		rels = append(rels, analyzer.Relation{
			Kind: analyzer.RelCalls, Src: "function:hub.ts:hub", Dst: fmt.Sprintf("callee%d", i),
		})
	}
	require.NoError(t, g.Ingest(nodes, rels))

	r := New(g, nil, Options{Extractor: ExtractorRuleBased})
	b, err := r.Query(context.Background(), "explain hub", 4000)
	require.NoError(t, err)

	l0 := layerByName(b, "L0")
	require.NotNil(t, l0)
	assert.LessOrEqual(t, len(l0.Relations), 5)
	assert.LessOrEqual(t, strings.Count(b.Text, "(CALLS)"), 5)
}
