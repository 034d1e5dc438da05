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

package analyzer

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Parser parses one file's content into a FileResult.
type Parser interface {
	Parse(absPath, relPath string, content []byte) FileResult
}

// Ensure the three built-in parsers satisfy Parser.
var (
	_ Parser = (*GoParser)(nil)
	_ Parser = (*TSParser)(nil)
	_ Parser = (*FallbackParser)(nil)
)

// FallbackParser handles any extension outside the supported AST set.
// This is not an error condition: it emits a bare FileNode and nothing
// else.
type FallbackParser struct{}

func (FallbackParser) Parse(absPath, relPath string, content []byte) FileResult {
	return FileResult{File: newFileNode(absPath, relPath, "", content)}
}

func newFileNode(absPath, relPath, language string, content []byte) FileNode {
	var modified int64
	if info, err := os.Stat(absPath); err == nil {
		modified = info.ModTime().Unix()
	} else {
		modified = time.Now().Unix()
	}
	return FileNode{
		ID:           FileID(relPath),
		AbsPath:      absPath,
		RelPath:      normalizePath(relPath),
		Language:     language,
		SizeBytes:    int64(len(content)),
		ModifiedUnix: modified,
	}
}

// Dispatcher routes a file to the parser registered for its extension,
// falling back to FallbackParser for everything else.
type Dispatcher struct {
	logger   *slog.Logger
	byExt    map[string]Parser
	fallback Parser
}

// NewDispatcher builds a Dispatcher wired with the Go and TypeScript/
// JavaScript reference parsers.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	goParser := NewGoParser(logger)
	tsParser := NewTSParser(logger)

	return &Dispatcher{
		logger: logger,
		byExt: map[string]Parser{
			".go":  goParser,
			".ts":  tsParser,
			".tsx": tsParser,
			".js":  tsParser,
			".jsx": tsParser,
			".mjs": tsParser,
			".cjs": tsParser,
		},
		fallback: FallbackParser{},
	}
}

// Parse dispatches absPath/relPath/content to the registered parser for
// its extension, or the fallback parser.
func (d *Dispatcher) Parse(absPath, relPath string, content []byte) FileResult {
	ext := strings.ToLower(filepath.Ext(relPath))
	p, ok := d.byExt[ext]
	if !ok {
		p = d.fallback
	}
	result := p.Parse(absPath, relPath, content)
	if result.ParseError != nil {
		d.logger.Warn("analyzer.parse.error",
			"path", relPath, "error", result.ParseError)
	}
	return result
}
