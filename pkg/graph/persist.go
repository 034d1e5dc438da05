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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kraklabs/contextengine/pkg/analyzer"
)

// GraphFileVersion is the persisted schema version.
const GraphFileVersion = "1.0.0"

// fileMetadata is the "metadata" object of the persisted document.
type fileMetadata struct {
	ProjectDir   string `json:"projectDir"`
	LastUpdated  string `json:"lastUpdated"`
	Version      string `json:"version"`
	TotalNodes   int    `json:"totalNodes"`
	TotalEdges   int    `json:"totalEdges"`
	FileCount    int    `json:"fileCount"`
	AnalysisTime int64  `json:"analysisTime"`
}

type nodeAttributes struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fileNodeEntry struct {
	Key        string         `json:"key"`
	Attributes nodeAttributes `json:"attributes"`
}

type edgeAttributes struct {
	Type string            `json:"type"`
	Data analyzer.Relation `json:"data"`
}

type fileEdgeEntry struct {
	Key        string         `json:"key"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Attributes edgeAttributes `json:"attributes"`
}

type fileGraph struct {
	Nodes []fileNodeEntry `json:"nodes"`
	Edges []fileEdgeEntry `json:"edges"`
}

type fileDocument struct {
	Metadata fileMetadata `json:"metadata"`
	Graph    fileGraph    `json:"graph"`
}

// Save writes the whole graph as one JSON document, atomically (write to
// a temp file, then rename). A memory-only graph (empty path) is a no-op.
// In-memory state is never rolled back by a failed save.
func (g *Graph) Save() error {
	g.mu.RLock()
	doc, path := g.snapshotLocked(), g.path
	g.mu.RUnlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write graph temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename graph file: %w", err)
	}
	return nil
}

func (g *Graph) snapshotLocked() *fileDocument {
	doc := &fileDocument{
		Metadata: fileMetadata{
			ProjectDir:   g.projectDir,
			LastUpdated:  time.Now().UTC().Format(time.RFC3339),
			Version:      GraphFileVersion,
			TotalNodes:   len(g.nodes),
			TotalEdges:   len(g.edges),
			FileCount:    g.nodesByKind[analyzer.KindFile],
			AnalysisTime: g.analysisMillis,
		},
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := g.nodes[id]
		data, err := json.Marshal(nodeRecord(n))
		if err != nil {
			g.logger.Warn("graph.save.node_marshal", "id", id, "err", err)
			continue
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, fileNodeEntry{
			Key:        id,
			Attributes: nodeAttributes{Type: string(n.Kind), Data: data},
		})
	}

	keys := make([]string, 0, len(g.edges))
	for key := range g.edges {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		e := g.edges[key]
		doc.Graph.Edges = append(doc.Graph.Edges, fileEdgeEntry{
			Key:        key,
			Source:     e.Src,
			Target:     e.Dst,
			Attributes: edgeAttributes{Type: string(e.Kind), Data: e.Rel},
		})
	}
	return doc
}

func nodeRecord(n Node) any {
	switch n.Kind {
	case analyzer.KindFile:
		return n.File
	case analyzer.KindFunction:
		return n.Function
	case analyzer.KindClass:
		return n.Class
	case analyzer.KindModule:
		return n.Module
	}
	return nil
}

// Load reads the persisted document back into an empty graph. It is
// best-effort: a missing, unreadable or malformed file leaves the graph
// empty and returns nil. Unknown JSON fields are tolerated.
func (g *Graph) Load() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.path == "" {
		return nil
	}
	data, err := os.ReadFile(g.path)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn("graph.load.read", "path", g.path, "err", err)
		}
		return nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		g.logger.Warn("graph.load.parse", "path", g.path, "err", err)
		return nil
	}

	for _, entry := range doc.Graph.Nodes {
		n, err := decodeNode(entry)
		if err != nil {
			g.logger.Warn("graph.load.node", "key", entry.Key, "err", err)
			continue
		}
		g.upsertNodeLocked(n)
	}
	for _, entry := range doc.Graph.Edges {
		rel := entry.Attributes.Data
		if rel.Src == "" {
			rel.Src = entry.Source
		}
		if rel.Dst == "" {
			rel.Dst = entry.Target
		}
		if rel.Kind == "" {
			rel.Kind = analyzer.RelationKind(entry.Attributes.Type)
		}
		g.addRelationLocked(rel)
	}
	g.analysisMillis = doc.Metadata.AnalysisTime
	if doc.Metadata.ProjectDir != "" && g.projectDir == "" {
		g.projectDir = doc.Metadata.ProjectDir
	}
	return nil
}

func decodeNode(entry fileNodeEntry) (Node, error) {
	switch analyzer.NodeKind(entry.Attributes.Type) {
	case analyzer.KindFile:
		var f analyzer.FileNode
		if err := json.Unmarshal(entry.Attributes.Data, &f); err != nil {
			return Node{}, err
		}
		return FileNodeOf(f), nil
	case analyzer.KindFunction:
		var f analyzer.FunctionNode
		if err := json.Unmarshal(entry.Attributes.Data, &f); err != nil {
			return Node{}, err
		}
		return FunctionNodeOf(f), nil
	case analyzer.KindClass:
		var c analyzer.ClassNode
		if err := json.Unmarshal(entry.Attributes.Data, &c); err != nil {
			return Node{}, err
		}
		return ClassNodeOf(c), nil
	case analyzer.KindModule:
		var m analyzer.ModuleNode
		if err := json.Unmarshal(entry.Attributes.Data, &m); err != nil {
			return Node{}, err
		}
		return ModuleNodeOf(m), nil
	}
	return Node{}, fmt.Errorf("unknown node kind %q", entry.Attributes.Type)
}
