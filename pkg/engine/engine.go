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

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/kraklabs/contextengine/internal/bootstrap"
	"github.com/kraklabs/contextengine/internal/contract"
	enginerrors "github.com/kraklabs/contextengine/internal/errors"
	"github.com/kraklabs/contextengine/pkg/analyzer"
	"github.com/kraklabs/contextengine/pkg/config"
	"github.com/kraklabs/contextengine/pkg/graph"
	"github.com/kraklabs/contextengine/pkg/retriever"
	"github.com/kraklabs/contextengine/pkg/scanner"
	"github.com/kraklabs/contextengine/pkg/vectorindex"
)

// FileChangeKind classifies a file-change notification.
type FileChangeKind string

const (
	FileCreated  FileChangeKind = "created"
	FileModified FileChangeKind = "modified"
	FileDeleted  FileChangeKind = "deleted"
)

// Stats is the engine-level statistics snapshot.
type Stats struct {
	NodesByKind map[analyzer.NodeKind]int     `json:"nodesByKind"`
	EdgesByKind map[analyzer.RelationKind]int `json:"edgesByKind"`
	VocabSize   int                           `json:"vocabSize"`
	DocCount    int                           `json:"docCount"`
	FileCount   int                           `json:"fileCount"`
}

// Engine is the initialized handle over one project root. It owns the
// graph + vector-index pair; every mutation after the initial build goes
// through its exclusive update lock.
type Engine struct {
	root       string
	cfg        config.Config
	logger     *slog.Logger
	dispatcher *analyzer.Dispatcher
	graph      *graph.Graph
	index      vectorindex.Index
	retriever  *retriever.Retriever

	updateMu sync.Mutex
	closed   bool
}

// Initialize scans the project, builds the graph and the vector index,
// and returns the ready engine handle. Configuration problems are the
// only fatal outcome; per-file read and parse failures are recorded and
// skipped.
func Initialize(ctx context.Context, projectRoot string, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, enginerrors.NewConfigError(
			"Cannot resolve project root",
			fmt.Sprintf("path %q did not resolve to an absolute path", projectRoot),
			"Pass an existing directory", err)
	}
	if _, err := bootstrap.InitProject(root, cfg.StateDir, logger); err != nil {
		return nil, enginerrors.NewIOError(
			"Cannot create state directory",
			fmt.Sprintf("under %s", root),
			"Check directory permissions", err)
	}

	providers, err := config.NewProviderSet(cfg, root, logger)
	if err != nil {
		return nil, enginerrors.NewConfigError(
			"Invalid provider configuration", err.Error(),
			"Fix the provider block in config.yaml", err)
	}

	e := &Engine{
		root:       root,
		cfg:        cfg,
		logger:     logger,
		dispatcher: analyzer.NewDispatcher(logger),
		graph:      providers.Graph,
		index:      providers.Vector,
	}
	e.retriever = retriever.New(e.graph, e.index, retriever.Options{
		Extractor:      providers.Extractor,
		RAGWeight:      cfg.Extractor.RAGWeight,
		RuleWeight:     cfg.Extractor.RuleWeight,
		IntentKeywords: cfg.Retriever.IntentKeywordMap,
		Logger:         logger,
	})

	if err := e.graph.Load(); err != nil {
		logger.Warn("engine.graph.load", "err", err)
	}
	if err := e.index.Initialize(ctx); err != nil {
		return nil, enginerrors.NewIOError("Cannot initialize vector index", "", "", err)
	}

	if err := e.FullScan(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Open builds an engine over previously persisted state without
// rescanning the project. The vector index is reconstructed from the
// loaded graph, since only the graph persists to disk.
func Open(ctx context.Context, projectRoot string, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, enginerrors.NewConfigError(
			"Cannot resolve project root", "", "Pass an existing directory", err)
	}

	providers, err := config.NewProviderSet(cfg, root, logger)
	if err != nil {
		return nil, enginerrors.NewConfigError(
			"Invalid provider configuration", err.Error(),
			"Fix the provider block in config.yaml", err)
	}

	e := &Engine{
		root:       root,
		cfg:        cfg,
		logger:     logger,
		dispatcher: analyzer.NewDispatcher(logger),
		graph:      providers.Graph,
		index:      providers.Vector,
	}
	e.retriever = retriever.New(e.graph, e.index, retriever.Options{
		Extractor:      providers.Extractor,
		RAGWeight:      cfg.Extractor.RAGWeight,
		RuleWeight:     cfg.Extractor.RuleWeight,
		IntentKeywords: cfg.Retriever.IntentKeywordMap,
		Logger:         logger,
	})

	if err := e.graph.Load(); err != nil {
		logger.Warn("engine.graph.load", "err", err)
	}
	if err := e.index.Initialize(ctx); err != nil {
		return nil, enginerrors.NewIOError("Cannot initialize vector index", "", "", err)
	}
	e.reindexFromGraph(ctx)
	return e, nil
}

// reindexFromGraph rebuilds the vector index from the nodes already in
// the graph.
func (e *Engine) reindexFromGraph(ctx context.Context) {
	for _, kind := range []analyzer.NodeKind{
		analyzer.KindFile, analyzer.KindFunction, analyzer.KindClass, analyzer.KindModule,
	} {
		for _, n := range e.graph.FindByKind(kind) {
			proj := vectorindex.Projection(n)
			if proj == "" {
				continue
			}
			if err := e.index.IndexDocument(ctx, n.ID, proj, vectorindex.ProjectionMetadata(n)); err != nil {
				e.logger.Warn("engine.index.document", "id", n.ID, "err", err)
			}
		}
	}
	if tfidf, ok := e.index.(*vectorindex.TFIDFIndex); ok {
		tfidf.BuildVocabulary()
	}
}

// FullScan re-enumerates and re-analyzes the whole project, replacing
// every indexed file and dropping files that no longer exist. A
// cancellation observed before ingestion leaves the graph in its
// pre-scan state.
func (e *Engine) FullScan(ctx context.Context) error {
	start := time.Now()

	sc, err := e.newScanner()
	if err != nil {
		return enginerrors.NewConfigError("Invalid scan configuration", err.Error(),
			"Fix the include/exclude globs in config.yaml", err)
	}

	scanResult, err := sc.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return enginerrors.NewCancelledError("Scan cancelled", err)
		}
		return enginerrors.NewIOError("Scan failed", "", "", err)
	}
	observeScanSeconds(time.Since(start).Seconds())

	// Analyze everything before touching the graph, so a cancellation
	// mid-batch never leaves a half-ingested scan behind.
	parseStart := time.Now()
	results := make([]analyzer.FileResult, 0, len(scanResult.Files))
	parseErrors := 0
	for _, rel := range scanResult.Files {
		if ctx.Err() != nil {
			return enginerrors.NewCancelledError("Analysis cancelled", ctx.Err())
		}
		absPath := filepath.Join(e.root, filepath.FromSlash(rel))
		content, readErr := os.ReadFile(absPath)
		if readErr != nil {
			e.logger.Warn("engine.analyze.read", "path", rel, "err", readErr)
			continue
		}
		fr := e.dispatcher.Parse(absPath, rel, content)
		if fr.ParseError != nil {
			// Partial entities from a failed parse are dropped
			// atomically; the FileNode itself survives.
			fr.Functions, fr.Classes = nil, nil
			fr.Relations, fr.UnresolvedCalls = nil, nil
			parseErrors++
			recordParseError()
		}
		results = append(results, fr)
	}
	analyzer.NewResolver(results).Resolve(results)
	observeParseSeconds(time.Since(parseStart).Seconds())

	e.updateMu.Lock()
	defer e.updateMu.Unlock()
	if e.closed {
		return fmt.Errorf("engine is closed")
	}

	scanned := map[string]bool{}
	for _, rel := range scanResult.Files {
		scanned[rel] = true
	}
	for _, n := range e.graph.FindByKind(analyzer.KindFile) {
		if !scanned[n.File.RelPath] {
			e.removeFileLocked(n.File.RelPath)
		}
	}

	for i := range results {
		e.replaceFileLocked(ctx, &results[i])
	}
	if tfidf, ok := e.index.(*vectorindex.TFIDFIndex); ok {
		tfidf.BuildVocabulary()
	}

	e.graph.SetAnalysisMillis(time.Since(start).Milliseconds())
	e.saveLocked()
	e.recordHeadCommit()

	stats := e.graph.Stats()
	e.logger.Info("engine.scan.complete",
		"files", len(scanResult.Files),
		"skipped", scanResult.Skipped,
		"parse_errors", parseErrors,
		"nodes", stats.TotalNodes,
		"edges", stats.TotalEdges,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// newScanner builds a scanner from the engine configuration.
func (e *Engine) newScanner() (*scanner.Scanner, error) {
	return scanner.New(e.root, scanner.Options{
		IncludePatterns:   e.cfg.IncludePatterns,
		ExcludePatterns:   e.cfg.ExcludePatterns,
		RespectScanIgnore: e.cfg.RespectScanIgnore == nil || *e.cfg.RespectScanIgnore,
		RespectVcsIgnore:  e.cfg.RespectVcsIgnore == nil || *e.cfg.RespectVcsIgnore,
		MaxFiles:          e.cfg.MaxFiles,
		MaxFileBytes:      e.cfg.MaxFileBytes,
		StateDirName:      e.cfg.StateDir,
		Logger:            e.logger,
	})
}

// OnFileChange reacts to one file-change notification. Changes to
// different files are serialized through the exclusive update lock;
// within one event the graph and index mutate atomically with respect to
// readers.
func (e *Engine) OnFileChange(ctx context.Context, path string, kind FileChangeKind) error {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()
	if e.closed {
		return fmt.Errorf("engine is closed")
	}
	recordUpdateEvent()

	rel := filepath.ToSlash(path)

	switch kind {
	case FileDeleted:
		e.removeFileLocked(rel)
	case FileCreated, FileModified:
		absPath := filepath.Join(e.root, filepath.FromSlash(rel))
		content, err := os.ReadFile(absPath)
		if err != nil {
			return enginerrors.NewIOError(
				"Cannot read changed file", rel,
				"Verify the path exists and is readable", err)
		}
		fr := e.dispatcher.Parse(absPath, rel, content)
		if fr.ParseError != nil {
			fr.Functions, fr.Classes = nil, nil
			fr.Relations, fr.UnresolvedCalls = nil, nil
			recordParseError()
		}
		results := []analyzer.FileResult{fr}
		analyzer.NewResolver(results).Resolve(results)
		e.replaceFileLocked(ctx, &results[0])
	default:
		return fmt.Errorf("unknown file change kind %q", kind)
	}

	e.saveLocked()
	return nil
}

// removeFileLocked drops a file's nodes from the graph and their
// documents from the index.
func (e *Engine) removeFileLocked(rel string) {
	ids := e.graph.NodeIDsByFile(rel)
	nodes, edges := e.graph.RemoveFile(rel)
	for _, id := range ids {
		if err := e.index.RemoveDocument(id); err != nil {
			e.logger.Warn("engine.index.remove", "id", id, "err", err)
		}
	}
	if nodes > 0 {
		e.logger.Debug("engine.file.removed", "path", rel, "nodes", nodes, "edges", edges)
	}
}

// replaceFileLocked swaps a file's previous graph and index state for the
// fresh analysis result. Documents are indexed against the existing
// vocabulary; it is not rebuilt per change.
func (e *Engine) replaceFileLocked(ctx context.Context, fr *analyzer.FileResult) {
	rel := fr.File.RelPath
	e.removeFileLocked(rel)

	nodes := make([]graph.Node, 0, 1+len(fr.Functions)+len(fr.Classes))
	nodes = append(nodes, graph.FileNodeOf(fr.File))
	for _, fn := range fr.Functions {
		nodes = append(nodes, graph.FunctionNodeOf(fn))
	}
	for _, cls := range fr.Classes {
		nodes = append(nodes, graph.ClassNodeOf(cls))
	}

	if v := contract.ValidateIngestBatch(len(nodes), len(fr.Relations)); !v.OK {
		e.logger.Warn("engine.ingest.soft_limit", "path", rel, "msg", v.Message)
	}
	if err := e.graph.Ingest(nodes, fr.Relations); err != nil {
		e.logger.Error("engine.ingest.failed", "path", rel, "err", err)
		return
	}
	recordIngest(len(nodes), len(fr.Relations))

	for _, n := range nodes {
		proj := vectorindex.Projection(n)
		if proj == "" {
			continue
		}
		meta := vectorindex.ProjectionMetadata(n)
		if err := e.index.IndexDocument(ctx, n.ID, proj, meta); err != nil {
			e.logger.Warn("engine.index.document", "id", n.ID, "err", err)
		}
	}
}

// saveLocked persists the graph. A persistence failure is logged and the
// engine continues with in-memory state.
func (e *Engine) saveLocked() {
	if err := e.graph.Save(); err != nil {
		e.logger.Warn("engine.graph.save", "err", err)
	}
}

// Query produces the layered context bundle for an utterance under a
// token budget.
func (e *Engine) Query(ctx context.Context, utterance string, budgetTokens int) (*retriever.Bundle, error) {
	start := time.Now()
	bundle, err := e.retriever.Query(ctx, utterance, budgetTokens)
	observeQuerySeconds(time.Since(start).Seconds())
	return bundle, err
}

// DefaultBudget returns the configured default query budget.
func (e *Engine) DefaultBudget() int {
	return e.cfg.Retriever.DefaultBudgetTokens
}

// Statistics returns graph and index counters.
func (e *Engine) Statistics() Stats {
	gs := e.graph.Stats()
	is := e.index.Stats()
	return Stats{
		NodesByKind: gs.NodesByKind,
		EdgesByKind: gs.EdgesByKind,
		VocabSize:   is.VocabSize,
		DocCount:    is.DocCount,
		FileCount:   gs.FileCount,
	}
}

// Graph exposes the read-only graph view for hosts that want direct
// neighborhood queries.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Shutdown flushes the graph to disk and releases both stores. The
// handle is unusable afterwards.
func (e *Engine) Shutdown() error {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.saveLocked()
	if err := e.index.Dispose(); err != nil {
		e.logger.Warn("engine.index.dispose", "err", err)
	}
	return e.graph.Close()
}
