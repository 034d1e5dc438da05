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

package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"log/slog"

	"github.com/kraklabs/contextengine/pkg/analyzer"
)

// Node is one graph entity. Exactly one of the typed records is set,
// discriminated by Kind.
type Node struct {
	ID       string
	Kind     analyzer.NodeKind
	File     *analyzer.FileNode
	Function *analyzer.FunctionNode
	Class    *analyzer.ClassNode
	Module   *analyzer.ModuleNode
}

// FilePath returns the project-relative path the node belongs to, or ""
// for module nodes.
func (n Node) FilePath() string {
	switch n.Kind {
	case analyzer.KindFile:
		return n.File.RelPath
	case analyzer.KindFunction:
		return n.Function.FilePath
	case analyzer.KindClass:
		return n.Class.FilePath
	}
	return ""
}

// Name returns the display name used for substring search.
func (n Node) Name() string {
	switch n.Kind {
	case analyzer.KindFile:
		return filepath.Base(n.File.RelPath)
	case analyzer.KindFunction:
		return n.Function.Name
	case analyzer.KindClass:
		return n.Class.Name
	case analyzer.KindModule:
		return n.Module.ID
	}
	return ""
}

// FileNodeOf wraps an analyzer FileNode.
func FileNodeOf(f analyzer.FileNode) Node {
	return Node{ID: f.ID, Kind: analyzer.KindFile, File: &f}
}

// FunctionNodeOf wraps an analyzer FunctionNode.
func FunctionNodeOf(f analyzer.FunctionNode) Node {
	return Node{ID: f.ID, Kind: analyzer.KindFunction, Function: &f}
}

// ClassNodeOf wraps an analyzer ClassNode.
func ClassNodeOf(c analyzer.ClassNode) Node {
	return Node{ID: c.ID, Kind: analyzer.KindClass, Class: &c}
}

// ModuleNodeOf wraps an analyzer ModuleNode.
func ModuleNodeOf(m analyzer.ModuleNode) Node {
	return Node{ID: m.ID, Kind: analyzer.KindModule, Module: &m}
}

// Edge is a directed, typed relation. Dst may be a node id or, when the
// relation's destination was never resolved, a bare symbolic name.
type Edge struct {
	Key  string
	Src  string
	Dst  string
	Kind analyzer.RelationKind
	Rel  analyzer.Relation
}

// EdgeKey builds the canonical "<src>-<kind>-<dst>" key under which
// multi-edges collapse.
func EdgeKey(src string, kind analyzer.RelationKind, dst string) string {
	return src + "-" + string(kind) + "-" + dst
}

// Stats is a snapshot of the incrementally maintained counters.
type Stats struct {
	NodesByKind map[analyzer.NodeKind]int     `json:"nodesByKind"`
	EdgesByKind map[analyzer.RelationKind]int `json:"edgesByKind"`
	TotalNodes  int                           `json:"totalNodes"`
	TotalEdges  int                           `json:"totalEdges"`
	FileCount   int                           `json:"fileCount"`
}

// Options configures a Graph.
type Options struct {
	// Path is the persistence file. Empty means memory-only: Save and
	// Load become no-ops.
	Path string

	// ProjectDir is recorded in the persisted metadata.
	ProjectDir string

	Logger *slog.Logger
}

// Graph is the in-memory knowledge graph. All mutation goes through the
// exclusive write lock; queries take the shared read lock.
type Graph struct {
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger

	path       string
	projectDir string

	nodes  map[string]Node
	edges  map[string]*Edge
	out    map[string]map[string]*Edge // src id -> edge key -> edge
	in     map[string]map[string]*Edge // dst id/name -> edge key -> edge
	byFile map[string]map[string]bool  // filePath -> node ids

	nodesByKind map[analyzer.NodeKind]int
	edgesByKind map[analyzer.RelationKind]int

	analysisMillis int64
}

// New builds an empty Graph.
func New(opts Options) *Graph {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Graph{
		logger:      opts.Logger,
		path:        opts.Path,
		projectDir:  opts.ProjectDir,
		nodes:       map[string]Node{},
		edges:       map[string]*Edge{},
		out:         map[string]map[string]*Edge{},
		in:          map[string]map[string]*Edge{},
		byFile:      map[string]map[string]bool{},
		nodesByKind: map[analyzer.NodeKind]int{},
		edgesByKind: map[analyzer.RelationKind]int{},
	}
}

// SetAnalysisMillis records the duration of the last full analysis for
// the persisted metadata.
func (g *Graph) SetAnalysisMillis(ms int64) {
	g.mu.Lock()
	g.analysisMillis = ms
	g.mu.Unlock()
}

// Ingest upserts nodes by id and adds the given relations. A relation
// whose source is absent is skipped with a warning. An IMPORTS relation
// whose destination module is absent synthesizes it. Duplicate edges
// (same src, kind, dst) update the stored payload. Self-loops are
// dropped. The mutation is visible to readers atomically.
func (g *Graph) Ingest(nodes []Node, relations []analyzer.Relation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	for _, n := range nodes {
		g.upsertNodeLocked(n)
	}

	for _, rel := range relations {
		g.addRelationLocked(rel)
	}
	return nil
}

func (g *Graph) upsertNodeLocked(n Node) {
	if n.ID == "" {
		return
	}
	if _, exists := g.nodes[n.ID]; !exists {
		g.nodesByKind[n.Kind]++
	}
	g.nodes[n.ID] = n
	if fp := n.FilePath(); fp != "" {
		set := g.byFile[fp]
		if set == nil {
			set = map[string]bool{}
			g.byFile[fp] = set
		}
		set[n.ID] = true
	}
}

func (g *Graph) addRelationLocked(rel analyzer.Relation) {
	if rel.Src == "" || rel.Dst == "" {
		return
	}
	if rel.Src == rel.Dst {
		return
	}
	if _, ok := g.nodes[rel.Src]; !ok {
		g.logger.Warn("graph.relation.dangling_src",
			"kind", string(rel.Kind), "src", rel.Src, "dst", rel.Dst)
		return
	}

	switch rel.Kind {
	case analyzer.RelImports:
		if _, ok := g.nodes[rel.Dst]; !ok {
			mod := analyzer.ModuleNode{
				ID:       rel.Dst,
				External: analyzer.IsExternalModule(rel.Dst),
			}
			g.upsertNodeLocked(ModuleNodeOf(mod))
		}
	case analyzer.RelContains:
		// CONTAINS must land on a node in the same file as its source.
		dst, ok := g.nodes[rel.Dst]
		if !ok {
			g.logger.Error("graph.invariant.contains_dangling",
				"src", rel.Src, "dst", rel.Dst)
			return
		}
		src := g.nodes[rel.Src]
		if src.FilePath() != "" && dst.FilePath() != "" && src.FilePath() != dst.FilePath() {
			g.logger.Error("graph.invariant.contains_cross_file",
				"src", rel.Src, "dst", rel.Dst)
			return
		}
	}

	key := EdgeKey(rel.Src, rel.Kind, rel.Dst)
	if e, ok := g.edges[key]; ok {
		e.Rel = rel
		return
	}
	e := &Edge{Key: key, Src: rel.Src, Dst: rel.Dst, Kind: rel.Kind, Rel: rel}
	g.edges[key] = e
	if g.out[rel.Src] == nil {
		g.out[rel.Src] = map[string]*Edge{}
	}
	g.out[rel.Src][key] = e
	if g.in[rel.Dst] == nil {
		g.in[rel.Dst] = map[string]*Edge{}
	}
	g.in[rel.Dst][key] = e
	g.edgesByKind[rel.Kind]++
}

// RemoveFile atomically drops every node whose filePath matches and every
// edge touching any of those nodes. Synthesized module nodes are not
// cascade-deleted. Removing a never-ingested file is a no-op.
func (g *Graph) RemoveFile(relativePath string) (nodesRemoved, edgesRemoved int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.byFile[relativePath]
	if len(ids) == 0 {
		return 0, 0
	}

	for id := range ids {
		for key := range g.out[id] {
			if g.removeEdgeLocked(key) {
				edgesRemoved++
			}
		}
		for key := range g.in[id] {
			if g.removeEdgeLocked(key) {
				edgesRemoved++
			}
		}
		n := g.nodes[id]
		g.nodesByKind[n.Kind]--
		delete(g.nodes, id)
		delete(g.out, id)
		delete(g.in, id)
		nodesRemoved++
	}
	delete(g.byFile, relativePath)
	return nodesRemoved, edgesRemoved
}

func (g *Graph) removeEdgeLocked(key string) bool {
	e, ok := g.edges[key]
	if !ok {
		return false
	}
	delete(g.edges, key)
	delete(g.out[e.Src], key)
	delete(g.in[e.Dst], key)
	g.edgesByKind[e.Kind]--
	return true
}

// NodeByID returns the node for an id.
func (g *Graph) NodeByID(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDsByFile returns the ids of every node belonging to a file.
func (g *Graph) NodeIDsByFile(relativePath string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.byFile[relativePath]))
	for id := range g.byFile[relativePath] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbors returns the distinct nodes reachable over one undirected hop,
// sorted by id.
func (g *Graph) Neighbors(id string) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{}
	var nodes []Node
	add := func(nid string) {
		if nid == id || seen[nid] {
			return
		}
		seen[nid] = true
		if n, ok := g.nodes[nid]; ok {
			nodes = append(nodes, n)
		}
	}
	for _, e := range g.out[id] {
		add(e.Dst)
	}
	for _, e := range g.in[id] {
		add(e.Src)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// OutEdges returns the outgoing edges of a node, optionally filtered by
// kind, sorted by key.
func (g *Graph) OutEdges(id string, kinds ...analyzer.RelationKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return collectEdges(g.out[id], kinds)
}

// InEdges returns the incoming edges of a node (or unresolved name),
// optionally filtered by kind, sorted by key.
func (g *Graph) InEdges(id string, kinds ...analyzer.RelationKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return collectEdges(g.in[id], kinds)
}

func collectEdges(edges map[string]*Edge, kinds []analyzer.RelationKind) []Edge {
	var out []Edge
	for _, e := range edges {
		if len(kinds) > 0 && !containsKind(kinds, e.Kind) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func containsKind(kinds []analyzer.RelationKind, k analyzer.RelationKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// FindByName returns nodes whose name or id contains the substring,
// case-insensitively, sorted by id.
func (g *Graph) FindByName(substring string) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	needle := strings.ToLower(substring)
	var nodes []Node
	for _, n := range g.nodes {
		if strings.Contains(strings.ToLower(n.Name()), needle) ||
			strings.Contains(strings.ToLower(n.ID), needle) {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// FindByKind returns every node of one kind, sorted by id.
func (g *Graph) FindByKind(kind analyzer.NodeKind) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var nodes []Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Stats returns a copy of the counters.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		NodesByKind: map[analyzer.NodeKind]int{},
		EdgesByKind: map[analyzer.RelationKind]int{},
		TotalNodes:  len(g.nodes),
		TotalEdges:  len(g.edges),
		FileCount:   g.nodesByKind[analyzer.KindFile],
	}
	for k, v := range g.nodesByKind {
		if v > 0 {
			s.NodesByKind[k] = v
		}
	}
	for k, v := range g.edgesByKind {
		if v > 0 {
			s.EdgesByKind[k] = v
		}
	}
	return s
}

// Close marks the graph closed; subsequent mutation fails.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
