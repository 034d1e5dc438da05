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
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"log/slog"
)

// DenseIndex conforms to the same capability set as TFIDFIndex but scores
// by cosine similarity over dense embeddings produced by a pluggable
// EmbeddingProvider. Unlike the sparse index there is no vocabulary to
// freeze; every document is embedded on ingestion.
type DenseIndex struct {
	mu          sync.RWMutex
	initialized bool
	disposed    bool
	provider    EmbeddingProvider
	logger      *slog.Logger

	docs map[string]*denseDoc
}

type denseDoc struct {
	meta   Metadata
	vector []float32
}

// NewDenseIndex builds a dense index over the given provider.
func NewDenseIndex(provider EmbeddingProvider, logger *slog.Logger) *DenseIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &DenseIndex{
		provider: provider,
		logger:   logger,
		docs:     map[string]*denseDoc{},
	}
}

// Initialize marks the index ready.
func (x *DenseIndex) Initialize(ctx context.Context) error {
	x.mu.Lock()
	x.initialized = true
	x.mu.Unlock()
	return nil
}

// IndexDocument embeds the content and stores the vector. An embedding
// failure skips the document with a warning; the batch continues.
func (x *DenseIndex) IndexDocument(ctx context.Context, id, content string, meta Metadata) error {
	if id == "" || content == "" {
		return nil
	}
	vector, err := x.provider.Embed(ctx, content)
	if err != nil {
		x.logger.Warn("dense.embed.error", "id", id, "err", err)
		return nil
	}
	x.mu.Lock()
	if !x.disposed {
		x.docs[id] = &denseDoc{meta: meta, vector: vector}
	}
	x.mu.Unlock()
	return nil
}

// Search embeds the query and scores it against every stored vector.
func (x *DenseIndex) Search(ctx context.Context, text string, topK int, threshold float64) ([]SearchResult, error) {
	x.mu.RLock()
	ready := x.initialized && !x.disposed && len(x.docs) > 0
	x.mu.RUnlock()
	if !ready || topK <= 0 {
		return nil, nil
	}
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	query, err := x.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	var results []SearchResult
	for id, d := range x.docs {
		score := denseCosine(query, d.vector)
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

// RemoveDocument drops one document.
func (x *DenseIndex) RemoveDocument(id string) error {
	x.mu.Lock()
	delete(x.docs, id)
	x.mu.Unlock()
	return nil
}

// Stats returns the document count. VocabSize is always zero for a dense
// index.
func (x *DenseIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{DocCount: len(x.docs)}
}

// Dispose releases the index.
func (x *DenseIndex) Dispose() error {
	x.mu.Lock()
	x.disposed = true
	x.docs = map[string]*denseDoc{}
	x.mu.Unlock()
	return nil
}

// denseCosine computes cosine similarity of two embeddings. Providers
// return normalized vectors, so this is the dot product; mismatched
// dimensions score zero.
func denseCosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

var _ Index = (*DenseIndex)(nil)

// CreateEmbeddingProvider creates an embedding provider based on config.
// Supported providers:
//   - "mock": deterministic hash-based embeddings (384 dimensions)
//   - "ollama": local Ollama server (default: http://localhost:11434)
func CreateEmbeddingProvider(providerType string, logger *slog.Logger) (EmbeddingProvider, error) {
	switch providerType {
	case "mock":
		return NewMockEmbeddingProvider(384, logger), nil
	case "ollama", "local_model":
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := os.Getenv("OLLAMA_EMBED_MODEL")
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbeddingProvider(baseURL, model, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, ollama)", providerType)
	}
}

// normalizeEmbedding normalizes an embedding vector to unit length.
func normalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}
	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}
	normf := float32(norm)
	for i := range embedding {
		embedding[i] /= normf
	}
	return embedding
}
