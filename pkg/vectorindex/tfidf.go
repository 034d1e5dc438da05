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

package vectorindex

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"log/slog"
)

// DefaultMinDocFreq is the document-frequency floor below which a term is
// left out of the vocabulary.
const DefaultMinDocFreq = 2

// minVocabTermLen: vocabulary terms must be longer than this.
const minVocabTermLen = 2

// TFIDFIndex is a sparse TF-IDF index with linear cosine search. The
// vocabulary is built once over the initial document batch and then
// frozen: incremental updates recompute a single document's vector
// against the existing vocabulary, ignoring new terms until Rebuild.
type TFIDFIndex struct {
	mu          sync.RWMutex
	initialized bool
	disposed    bool
	minDocFreq  int
	logger      *slog.Logger

	vocab map[string]int // term -> stable index, insertion order
	idf   []float64      // by vocab index

	docs map[string]*tfidfDoc
}

type tfidfDoc struct {
	content string
	meta    Metadata
	vector  map[int]float64 // vocab index -> normalized tf-idf weight
}

// TFIDFOptions configures a TFIDFIndex.
type TFIDFOptions struct {
	// MinDocFreq overrides DefaultMinDocFreq when > 0.
	MinDocFreq int
	Logger     *slog.Logger
}

// NewTFIDFIndex builds an empty TF-IDF index.
func NewTFIDFIndex(opts TFIDFOptions) *TFIDFIndex {
	if opts.MinDocFreq <= 0 {
		opts.MinDocFreq = DefaultMinDocFreq
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &TFIDFIndex{
		minDocFreq: opts.MinDocFreq,
		logger:     opts.Logger,
		vocab:      map[string]int{},
		docs:       map[string]*tfidfDoc{},
	}
}

// Initialize marks the index ready. The vocabulary is built lazily by
// BuildVocabulary once the initial batch is in.
func (x *TFIDFIndex) Initialize(ctx context.Context) error {
	x.mu.Lock()
	x.initialized = true
	x.mu.Unlock()
	return nil
}

// IndexDocument stores a document and, when a vocabulary exists, computes
// its vector against it. A document whose projection tokenizes to zero
// kept terms is stored with an empty vector and simply never matches.
func (x *TFIDFIndex) IndexDocument(ctx context.Context, id, content string, meta Metadata) error {
	if id == "" || strings.TrimSpace(content) == "" {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.disposed {
		return nil
	}
	d := &tfidfDoc{content: content, meta: meta}
	if len(x.vocab) > 0 {
		d.vector = x.vectorizeLocked(content)
	}
	x.docs[id] = d
	return nil
}

// BuildVocabulary computes document frequencies over every stored
// document, freezes the vocabulary (DF >= minDocFreq, term length >
// minVocabTermLen, stable indices in insertion order) and recomputes all
// vectors.
func (x *TFIDFIndex) BuildVocabulary() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rebuildLocked()
}

// Rebuild throws away the frozen vocabulary and rebuilds it from the
// current document set, picking up terms that arrived incrementally.
func (x *TFIDFIndex) Rebuild() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rebuildLocked()
}

func (x *TFIDFIndex) rebuildLocked() {
	ids := make([]string, 0, len(x.docs))
	for id := range x.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	df := map[string]int{}
	for _, id := range ids {
		seen := map[string]bool{}
		for _, term := range Tokenize(x.docs[id].content) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	x.vocab = map[string]int{}
	var idf []float64
	n := float64(len(ids))
	for _, id := range ids {
		for _, term := range Tokenize(x.docs[id].content) {
			if _, ok := x.vocab[term]; ok {
				continue
			}
			if len(term) <= minVocabTermLen || df[term] < x.minDocFreq {
				continue
			}
			x.vocab[term] = len(idf)
			idf = append(idf, math.Log(n/float64(df[term])))
		}
	}
	x.idf = idf

	for _, id := range ids {
		x.docs[id].vector = x.vectorizeLocked(x.docs[id].content)
	}
	x.logger.Debug("tfidf.vocabulary.built", "terms", len(x.vocab), "docs", len(ids))
}

// vectorizeLocked maps text to a normalized sparse tf-idf vector over the
// current vocabulary.
func (x *TFIDFIndex) vectorizeLocked(text string) map[int]float64 {
	tf := map[int]float64{}
	for _, term := range Tokenize(text) {
		if idx, ok := x.vocab[term]; ok {
			tf[idx]++
		}
	}
	if len(tf) == 0 {
		return nil
	}
	var norm float64
	for idx := range tf {
		tf[idx] *= x.idf[idx]
		norm += tf[idx] * tf[idx]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}
	for idx := range tf {
		tf[idx] /= norm
	}
	return tf
}

// Search scores the query against every stored vector by cosine
// similarity and returns up to topK hits at or above the threshold,
// sorted by descending score with ties broken by id. An uninitialized
// index returns an empty result.
func (x *TFIDFIndex) Search(ctx context.Context, text string, topK int, threshold float64) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.initialized || x.disposed || len(x.vocab) == 0 || topK <= 0 {
		return nil, nil
	}
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	query := x.vectorizeLocked(text)
	if len(query) == 0 {
		return nil, nil
	}

	var results []SearchResult
	for id, d := range x.docs {
		score := sparseCosine(query, d.vector)
		if score >= threshold {
			results = append(results, SearchResult{ID: id, Score: score, Metadata: d.meta})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// RemoveDocument drops one document. Removing an unknown id is a no-op.
func (x *TFIDFIndex) RemoveDocument(id string) error {
	x.mu.Lock()
	delete(x.docs, id)
	x.mu.Unlock()
	return nil
}

// Stats returns vocabulary and document counts.
func (x *TFIDFIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{VocabSize: len(x.vocab), DocCount: len(x.docs)}
}

// Dispose releases the index; subsequent operations are no-ops.
func (x *TFIDFIndex) Dispose() error {
	x.mu.Lock()
	x.disposed = true
	x.docs = map[string]*tfidfDoc{}
	x.vocab = map[string]int{}
	x.idf = nil
	x.mu.Unlock()
	return nil
}

// sparseCosine is the dot product of two L2-normalized sparse vectors.
func sparseCosine(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for idx, w := range a {
		dot += w * b[idx]
	}
	return dot
}

// Tokenize splits text on any non-alphanumeric rune (Unicode letter
// ranges preserved), lowercases, and drops tokens shorter than 2 runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

var _ Index = (*TFIDFIndex)(nil)
