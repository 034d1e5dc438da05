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

package config

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"log/slog"

	"github.com/kraklabs/contextengine/pkg/graph"
	"github.com/kraklabs/contextengine/pkg/retriever"
	"github.com/kraklabs/contextengine/pkg/vectorindex"
)

// GraphFileName inside the state directory.
const GraphFileName = "context_graph.json"

// GraphFactory constructs a graph store for one provider type.
type GraphFactory func(cfg Config, projectRoot string, logger *slog.Logger) (*graph.Graph, error)

// VectorFactory constructs a vector index for one provider type.
type VectorFactory func(cfg Config, logger *slog.Logger) (vectorindex.Index, error)

var (
	registryMu      sync.RWMutex
	graphFactories  = map[string]GraphFactory{}
	vectorFactories = map[string]VectorFactory{}
	extractorTypes  = map[string]retriever.ExtractorType{}
)

func init() {
	RegisterGraphProvider("local", func(cfg Config, projectRoot string, logger *slog.Logger) (*graph.Graph, error) {
		return graph.New(graph.Options{
			Path:       filepath.Join(projectRoot, cfg.StateDir, GraphFileName),
			ProjectDir: projectRoot,
			Logger:     logger,
		}), nil
	})
	RegisterGraphProvider("memory", func(cfg Config, projectRoot string, logger *slog.Logger) (*graph.Graph, error) {
		return graph.New(graph.Options{ProjectDir: projectRoot, Logger: logger}), nil
	})

	RegisterVectorProvider("tfidf", func(cfg Config, logger *slog.Logger) (vectorindex.Index, error) {
		return vectorindex.NewTFIDFIndex(vectorindex.TFIDFOptions{
			MinDocFreq: cfg.VectorProvider.MinDocFreq,
			Logger:     logger,
		}), nil
	})
	RegisterVectorProvider("dense", func(cfg Config, logger *slog.Logger) (vectorindex.Index, error) {
		providerType := cfg.VectorProvider.Options["embeddingProvider"]
		if providerType == "" {
			providerType = "ollama"
		}
		provider, err := vectorindex.CreateEmbeddingProvider(providerType, logger)
		if err != nil {
			return nil, err
		}
		return vectorindex.NewDenseIndex(provider, logger), nil
	})

	RegisterExtractorType("rag", retriever.ExtractorRAG)
	RegisterExtractorType("rulebased", retriever.ExtractorRuleBased)
	RegisterExtractorType("hybrid", retriever.ExtractorHybrid)
}

// RegisterGraphProvider makes a graph provider type known. Intended to be
// called at process start, before any ProviderSet is built.
func RegisterGraphProvider(name string, f GraphFactory) {
	registryMu.Lock()
	graphFactories[strings.ToLower(name)] = f
	registryMu.Unlock()
}

// RegisterVectorProvider makes a vector provider type known.
func RegisterVectorProvider(name string, f VectorFactory) {
	registryMu.Lock()
	vectorFactories[strings.ToLower(name)] = f
	registryMu.Unlock()
}

// RegisterExtractorType makes an extractor type known.
func RegisterExtractorType(name string, t retriever.ExtractorType) {
	registryMu.Lock()
	extractorTypes[strings.ToLower(name)] = t
	registryMu.Unlock()
}

// ProviderSet is the instantiated provider trio. Provider lifetimes are
// bound to the engine handle that owns the set; there is no global state
// beyond the type registry.
type ProviderSet struct {
	Graph     *graph.Graph
	Vector    vectorindex.Index
	Extractor retriever.ExtractorType
}

// NewProviderSet validates the configuration and instantiates all three
// providers. Every offense is collected and reported in one error.
func NewProviderSet(cfg Config, projectRoot string, logger *slog.Logger) (*ProviderSet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registryMu.RLock()
	graphFactory, graphOK := graphFactories[strings.ToLower(cfg.GraphProvider.Type)]
	vectorFactory, vectorOK := vectorFactories[strings.ToLower(cfg.VectorProvider.Type)]
	extractor, extractorOK := extractorTypes[strings.ToLower(cfg.Extractor.Type)]
	registryMu.RUnlock()

	var offenses []string
	if !graphOK {
		offenses = append(offenses, fmt.Sprintf(
			"unknown graphProvider.type %q (valid: %s)",
			cfg.GraphProvider.Type, knownTypes(graphKeys())))
	}
	if !vectorOK {
		offenses = append(offenses, fmt.Sprintf(
			"unknown vectorProvider.type %q (valid: %s)",
			cfg.VectorProvider.Type, knownTypes(vectorKeys())))
	}
	if !extractorOK {
		offenses = append(offenses, fmt.Sprintf(
			"unknown extractor.type %q (valid: %s)",
			cfg.Extractor.Type, knownTypes(extractorKeys())))
	}

	if extractorOK && extractor == retriever.ExtractorHybrid {
		sum := cfg.Extractor.RAGWeight + cfg.Extractor.RuleWeight
		if math.Abs(sum-1.0) > 1e-9 {
			offenses = append(offenses, fmt.Sprintf(
				"extractor weights must sum to 1.0 when hybrid (ragWeight=%g + ruleWeight=%g = %g)",
				cfg.Extractor.RAGWeight, cfg.Extractor.RuleWeight, sum))
		}
		if graphOK && vectorOK &&
			strings.EqualFold(cfg.GraphProvider.Type, "memory") &&
			cfg.Extractor.RAGWeight == 0 && cfg.Extractor.RuleWeight == 0 {
			offenses = append(offenses,
				"extractor=hybrid needs at least one weighted source")
		}
	}

	if len(offenses) > 0 {
		return nil, fmt.Errorf("invalid provider configuration: %s", strings.Join(offenses, "; "))
	}

	g, err := graphFactory(cfg, projectRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("graph provider %q: %w", cfg.GraphProvider.Type, err)
	}
	v, err := vectorFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vector provider %q: %w", cfg.VectorProvider.Type, err)
	}
	return &ProviderSet{Graph: g, Vector: v, Extractor: extractor}, nil
}

func graphKeys() []string {
	keys := make([]string, 0, len(graphFactories))
	for k := range graphFactories {
		keys = append(keys, k)
	}
	return keys
}

func vectorKeys() []string {
	keys := make([]string, 0, len(vectorFactories))
	for k := range vectorFactories {
		keys = append(keys, k)
	}
	return keys
}

func extractorKeys() []string {
	keys := make([]string, 0, len(extractorTypes))
	for k := range extractorTypes {
		keys = append(keys, k)
	}
	return keys
}

func knownTypes(keys []string) string {
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
