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
	"path/filepath"
	"strings"

	"github.com/kraklabs/contextengine/pkg/analyzer"
	"github.com/kraklabs/contextengine/pkg/graph"
)

// Projection renders the short searchable text of a node: its name, the
// bare filename (extension stripped), the language tag, the kind tag and
// any parameter names, lowercased and whitespace-separated. An empty
// projection means the node is not indexable.
func Projection(n graph.Node) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, strings.ToLower(s))
		}
	}

	switch n.Kind {
	case analyzer.KindFile:
		add(bareFilename(n.File.RelPath))
		add(n.File.Language)
	case analyzer.KindFunction:
		add(n.Function.Name)
		add(bareFilename(n.Function.FilePath))
		for _, p := range n.Function.Params {
			add(p)
		}
	case analyzer.KindClass:
		add(n.Class.Name)
		add(bareFilename(n.Class.FilePath))
	case analyzer.KindModule:
		add(bareFilename(n.Module.ID))
	}
	add(string(n.Kind))

	if len(parts) <= 1 {
		// Kind alone carries no searchable signal.
		switch n.Kind {
		case analyzer.KindModule, analyzer.KindFile:
		default:
			return ""
		}
	}
	return strings.Join(parts, " ")
}

// ProjectionMetadata builds the metadata snapshot stored alongside a
// node's document.
func ProjectionMetadata(n graph.Node) Metadata {
	meta := Metadata{Type: string(n.Kind), FilePath: n.FilePath()}
	switch n.Kind {
	case analyzer.KindFile:
		meta.Language = n.File.Language
	case analyzer.KindFunction:
		meta.LineStart = n.Function.StartLine
		meta.LineEnd = n.Function.EndLine
	case analyzer.KindClass:
		meta.LineStart = n.Class.StartLine
		meta.LineEnd = n.Class.EndLine
	}
	return meta
}

// bareFilename strips directories and the extension from a path.
func bareFilename(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
