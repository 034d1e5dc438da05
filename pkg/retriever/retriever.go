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
	"errors"
	"fmt"
	"sort"
	"time"

	"log/slog"

	"github.com/kraklabs/contextengine/pkg/graph"
	"github.com/kraklabs/contextengine/pkg/vectorindex"
)

// ExtractorType selects how graph walk and vector search combine.
type ExtractorType string

const (
	// ExtractorRAG is vector-led: entities rank by vector score alone.
	ExtractorRAG ExtractorType = "rag"

	// ExtractorRuleBased is graph-led: no vector search is issued.
	ExtractorRuleBased ExtractorType = "ruleBased"

	// ExtractorHybrid fuses both scores with configurable weights.
	ExtractorHybrid ExtractorType = "hybrid"
)

// Default hybrid fusion weights.
const (
	DefaultRAGWeight  = 0.7
	DefaultRuleWeight = 0.3
)

// DefaultBudgetTokens is the default query budget, equal to the config
// default. Query does not substitute it: a budget of zero or less yields
// an empty, truncated bundle.
const DefaultBudgetTokens = 8000

// Layer caps and token-estimate constants. The estimate deliberately
// overshoots real tokenizer counts.
const (
	l1EntityCap        = 20
	l2EntityCap        = 15
	relationDisplayCap = 5
	maxVectorHits      = 8

	entityTokenCost    = 20
	relationTokenCost  = 15
	layerTokenOverhead = 50
)

// Graph-walk base scores per layer, fused with vector scores in hybrid
// mode.
const (
	l0GraphScore = 1.0
	l1GraphScore = 0.6
	l2GraphScore = 0.3
)

// Options configures a Retriever.
type Options struct {
	Extractor      ExtractorType
	RAGWeight      float64
	RuleWeight     float64
	IntentKeywords map[string][]string

	// QueryTimeout is a soft per-query deadline. Once exceeded, whatever
	// layers have been filled are returned with truncated=true and
	// reason "timeout". Zero disables it.
	QueryTimeout time.Duration

	Logger *slog.Logger
}

// Layer is one filled tier of the bundle.
type Layer struct {
	Name      string       `json:"name"`
	Entities  []string     `json:"entities,omitempty"`
	Relations []graph.Edge `json:"relations,omitempty"`
	Summary   string       `json:"summary,omitempty"`
	Tokens    int          `json:"tokens"`
}

// Bundle is the result of one query.
type Bundle struct {
	Text             string  `json:"text"`
	Tokens           int     `json:"tokens"`
	Layers           []Layer `json:"layers"`
	Truncated        bool    `json:"truncated"`
	TruncationReason string  `json:"truncationReason,omitempty"`
	Intent           string  `json:"intent"`
}

// Retriever borrows read-only views of the graph and the vector index;
// it never mutates either.
type Retriever struct {
	graph  *graph.Graph
	index  vectorindex.Index
	opts   Options
	logger *slog.Logger
}

// New builds a Retriever.
func New(g *graph.Graph, index vectorindex.Index, opts Options) *Retriever {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Extractor == "" {
		opts.Extractor = ExtractorHybrid
	}
	if opts.RAGWeight == 0 && opts.RuleWeight == 0 {
		opts.RAGWeight, opts.RuleWeight = DefaultRAGWeight, DefaultRuleWeight
	}
	return &Retriever{graph: g, index: index, opts: opts, logger: opts.Logger}
}

// ragPartial is the typed partial result of the vector sub-extractor.
type ragPartial struct {
	hits []vectorindex.SearchResult
	err  error
}

// Query assembles the layered bundle for an utterance under a token
// budget. The returned token count never exceeds the budget; anything
// that did not fit is reported through Truncated and TruncationReason.
func (r *Retriever) Query(ctx context.Context, utterance string, budget int) (*Bundle, error) {
	bundle := &Bundle{Intent: ClassifyIntent(utterance, r.opts.IntentKeywords)}
	if budget <= 0 {
		bundle.Truncated = true
		bundle.TruncationReason = "budget=0"
		return bundle, nil
	}

	if r.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.QueryTimeout)
		defer cancel()
	}

	// Vector search runs in parallel with the graph walk.
	ragCh := make(chan ragPartial, 1)
	if r.opts.Extractor == ExtractorRuleBased || r.index == nil {
		ragCh <- ragPartial{}
	} else {
		k := budget / 100
		if k > maxVectorHits {
			k = maxVectorHits
		}
		go func() {
			hits, err := r.index.Search(ctx, utterance, k, vectorindex.DefaultThreshold)
			ragCh <- ragPartial{hits: hits, err: err}
		}()
	}

	seeds := ExtractSeeds(utterance)
	l0 := resolveSeeds(r.graph, utterance, seeds)

	l0Set := map[string]bool{}
	for _, id := range l0 {
		l0Set[id] = true
	}

	scores := map[string]float64{}
	for _, id := range l0 {
		scores[id] = l0GraphScore
	}

	// One-hop neighborhood.
	var l1 []string
	l1Set := map[string]bool{}
	interrupted := r.checkInterrupt(ctx, bundle)
	if !interrupted {
		for _, id := range l0 {
			if r.checkInterrupt(ctx, bundle) {
				interrupted = true
				break
			}
			for _, n := range r.graph.Neighbors(id) {
				if l0Set[n.ID] || l1Set[n.ID] {
					continue
				}
				l1Set[n.ID] = true
				l1 = append(l1, n.ID)
				scores[n.ID] = l1GraphScore
			}
		}
	}

	// Two-hop fringe.
	var l2 []string
	l2Set := map[string]bool{}
	if !interrupted {
		for _, id := range l1 {
			if r.checkInterrupt(ctx, bundle) {
				interrupted = true
				break
			}
			for _, n := range r.graph.Neighbors(id) {
				if l0Set[n.ID] || l1Set[n.ID] || l2Set[n.ID] {
					continue
				}
				l2Set[n.ID] = true
				l2 = append(l2, n.ID)
				scores[n.ID] = l2GraphScore
			}
		}
	}

	// Fuse with vector hits: files fold into L0, everything else into
	// L1. A failed vector search leaves the graph result as-is.
	rag := <-ragCh
	vecScores := map[string]float64{}
	if rag.err != nil {
		r.logger.Warn("retriever.vector.failed", "err", rag.err)
	} else {
		for _, hit := range rag.hits {
			vecScores[hit.ID] = hit.Score
			if l0Set[hit.ID] || l1Set[hit.ID] || l2Set[hit.ID] {
				continue
			}
			if hit.Metadata.Type == "file" {
				l0Set[hit.ID] = true
				l0 = append(l0, hit.ID)
			} else {
				l1Set[hit.ID] = true
				l1 = append(l1, hit.ID)
			}
		}
	}

	combined := r.fuseScores(scores, vecScores)
	orderByScore(l0, combined)
	orderByScore(l1, combined)
	orderByScore(l2, combined)
	if len(l1) > l1EntityCap {
		l1 = l1[:l1EntityCap]
	}
	if len(l2) > l2EntityCap {
		l2 = l2[:l2EntityCap]
	}

	// Relations: L0 carries the direct outgoing edges of its entities;
	// L1 carries the edges between L0 and L1 not already shown.
	seenEdges := map[string]bool{}
	var l0Rels []graph.Edge
	for _, id := range l0 {
		for _, e := range r.graph.OutEdges(id) {
			if !seenEdges[e.Key] {
				seenEdges[e.Key] = true
				l0Rels = append(l0Rels, e)
			}
		}
	}
	var l1Rels []graph.Edge
	inL1 := func(id string) bool { return l1Set[id] }
	for _, id := range l0 {
		for _, e := range r.graph.OutEdges(id) {
			if inL1(e.Dst) && !seenEdges[e.Key] {
				seenEdges[e.Key] = true
				l1Rels = append(l1Rels, e)
			}
		}
		for _, e := range r.graph.InEdges(id) {
			if inL1(e.Src) && !seenEdges[e.Key] {
				seenEdges[e.Key] = true
				l1Rels = append(l1Rels, e)
			}
		}
	}

	// Pack layers under the budget, priority descending.
	remaining := budget
	addStructured := func(name string, entities []string, relations []graph.Edge) {
		if len(entities) == 0 {
			return
		}
		base := entityTokenCost*len(entities) + layerTokenOverhead
		if base > remaining {
			if !bundle.Truncated {
				bundle.Truncated = true
				bundle.TruncationReason = fmt.Sprintf(
					"layer %s omitted: estimated %d tokens exceeds remaining budget %d",
					name, base, remaining)
			}
			return
		}
		layer := Layer{Name: name, Entities: entities, Tokens: base}
		for _, e := range relations {
			if len(layer.Relations) >= relationDisplayCap {
				break
			}
			if layer.Tokens+relationTokenCost > remaining {
				break
			}
			layer.Relations = append(layer.Relations, e)
			layer.Tokens += relationTokenCost
		}
		remaining -= layer.Tokens
		bundle.Layers = append(bundle.Layers, layer)
	}

	addStructured("L0", l0, l0Rels)
	addStructured("L1", l1, l1Rels)
	addStructured("L2", l2, nil)

	if summary := r.projectSummary(); summary != "" {
		cost := estimateTextTokens(summary)
		if cost <= remaining {
			bundle.Layers = append(bundle.Layers, Layer{Name: "L3", Summary: summary, Tokens: cost})
			remaining -= cost
		} else if !bundle.Truncated {
			bundle.Truncated = true
			bundle.TruncationReason = fmt.Sprintf(
				"layer L3 omitted: estimated %d tokens exceeds remaining budget %d",
				cost, remaining)
		}
	}

	for _, l := range bundle.Layers {
		bundle.Tokens += l.Tokens
	}
	bundle.Text = renderBundle(bundle)
	return bundle, nil
}

// checkInterrupt folds a cancellation or soft-timeout signal into the
// bundle and reports whether the walk should stop.
func (r *Retriever) checkInterrupt(ctx context.Context, bundle *Bundle) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	if !bundle.Truncated {
		bundle.Truncated = true
		if errors.Is(err, context.DeadlineExceeded) {
			bundle.TruncationReason = "timeout"
		} else {
			bundle.TruncationReason = "cancelled"
		}
	}
	return true
}

// fuseScores combines graph and vector scores according to the extractor
// mode. The result is a pure function of the two partial score maps.
func (r *Retriever) fuseScores(graphScores, vecScores map[string]float64) map[string]float64 {
	combined := map[string]float64{}
	switch r.opts.Extractor {
	case ExtractorRAG:
		for id, s := range vecScores {
			combined[id] = s
		}
		for id, s := range graphScores {
			if _, ok := combined[id]; !ok {
				combined[id] = s * 0.01 // graph entities trail all vector hits
			}
		}
	case ExtractorRuleBased:
		for id, s := range graphScores {
			combined[id] = s
		}
	default: // hybrid
		for id, s := range graphScores {
			combined[id] = r.opts.RuleWeight * s
		}
		for id, s := range vecScores {
			combined[id] += r.opts.RAGWeight * s
		}
	}
	return combined
}

// orderByScore sorts ids by descending combined score, ties broken by
// stable id order.
func orderByScore(ids []string, scores map[string]float64) {
	sort.SliceStable(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
}

// projectSummary builds the one-paragraph L3 description from graph
// statistics.
func (r *Retriever) projectSummary() string {
	s := r.graph.Stats()
	if s.TotalNodes == 0 {
		return ""
	}
	return fmt.Sprintf(
		"This project spans %d indexed files with %d functions, %d classes and %d module dependencies, connected by %d relations. Retrieval draws on the knowledge graph plus the vector index to surface the entities most relevant to the current request.",
		s.FileCount,
		s.NodesByKind["function"],
		s.NodesByKind["class"],
		s.NodesByKind["module"],
		s.TotalEdges,
	)
}

// estimateTextTokens approximates free-text tokens as ceil(chars/4).
func estimateTextTokens(text string) int {
	return (len(text) + 3) / 4
}
