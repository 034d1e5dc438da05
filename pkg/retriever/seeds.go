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
	"regexp"
	"strings"

	"github.com/kraklabs/contextengine/pkg/analyzer"
	"github.com/kraklabs/contextengine/pkg/graph"
)

var (
	// fileTokenPattern matches tokens carrying a source-file extension.
	fileTokenPattern = regexp.MustCompile(`[\w./\-]+\.(?:go|ts|tsx|js|jsx|mjs|cjs|py|java|rs|c|h|cpp|hpp|rb|php|cs|kt|swift)\b`)

	// keywordIdentPattern captures the identifier immediately following
	// the words function/class/method/api.
	keywordIdentPattern = regexp.MustCompile(`(?i)\b(?:function|class|method|api)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	// quotedPattern captures single-, double- and backtick-quoted
	// substrings.
	quotedPattern = regexp.MustCompile("'([^']+)'|\"([^\"]+)\"|`([^`]+)`")

	// pascalCasePattern matches multi-hump PascalCase tokens.
	pascalCasePattern = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][A-Za-z0-9]*)+\b`)

	// wordPattern tokenizes the utterance for name matching.
	wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// ExtractSeeds returns the pattern-extracted seed strings of an
// utterance, deduplicated in discovery order: file-extension tokens,
// identifiers following function/class/method/api, quoted substrings and
// PascalCase tokens.
func ExtractSeeds(utterance string) []string {
	var seeds []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		seeds = append(seeds, s)
	}

	for _, m := range fileTokenPattern.FindAllString(utterance, -1) {
		add(m)
	}
	for _, m := range keywordIdentPattern.FindAllStringSubmatch(utterance, -1) {
		add(m[1])
	}
	for _, m := range quotedPattern.FindAllStringSubmatch(utterance, -1) {
		for _, group := range m[1:] {
			if group != "" {
				add(group)
			}
		}
	}
	for _, m := range pascalCasePattern.FindAllString(utterance, -1) {
		add(m)
	}
	return seeds
}

// resolveSeeds maps seeds and plain utterance words to graph node ids,
// deduplicated in discovery order. File tokens resolve through their
// "file:" id; everything else matches node names exactly
// (case-insensitively), falling back to direct id lookup.
func resolveSeeds(g *graph.Graph, utterance string, seeds []string) []string {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	resolve := func(token string) {
		if _, ok := g.NodeByID(token); ok {
			add(token)
			return
		}
		if fileTokenPattern.MatchString(token) {
			fileID := analyzer.FileID(token)
			if _, ok := g.NodeByID(fileID); ok {
				add(fileID)
				return
			}
		}
		lower := strings.ToLower(token)
		for _, n := range g.FindByName(token) {
			if strings.ToLower(n.Name()) == lower {
				add(n.ID)
			}
		}
	}

	for _, s := range seeds {
		resolve(s)
	}
	// Entities merely named in the utterance count as seeds too.
	for _, w := range wordPattern.FindAllString(utterance, -1) {
		if len(w) >= 2 {
			resolve(w)
		}
	}
	return ids
}
