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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/kraklabs/contextengine/internal/bootstrap"
	"github.com/kraklabs/contextengine/internal/output"
	"github.com/kraklabs/contextengine/internal/ui"
	"github.com/kraklabs/contextengine/pkg/engine"
)

// runStatus executes the 'status' CLI command, showing graph and index
// statistics for the current project.
//
// Flags:
//   - --json: Output as JSON (for machine consumption)
//
// Examples:
//
//	cie status
//	cie status --json
func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie status [options]

Shows node, edge and vector-index statistics for the current project.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := projectRoot()
	cfg := loadConfig(root)

	if !bootstrap.StateDirExists(root, cfg.StateDir) {
		fmt.Fprintf(os.Stderr, "No engine state found. Run 'cie init' then 'cie index' first.\n")
		os.Exit(1)
	}

	eng, err := engine.Open(context.Background(), root, cfg, setupLogger(false))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = eng.Shutdown() }()

	stats := eng.Statistics()

	if *jsonOut {
		if err := output.JSON(stats); err != nil {
			_ = output.JSONError(err)
			os.Exit(1)
		}
		return
	}

	ui.Header("Context Engine Status")
	fmt.Println()
	ui.SubHeader("Nodes:")
	for _, kind := range sortedKeys(stats.NodesByKind) {
		fmt.Printf("  %-10s %s\n", kind, ui.CountText(stats.NodesByKind[kind]))
	}
	fmt.Println()
	ui.SubHeader("Edges:")
	for _, kind := range sortedKeys(stats.EdgesByKind) {
		fmt.Printf("  %-12s %s\n", kind, ui.CountText(stats.EdgesByKind[kind]))
	}
	fmt.Println()
	ui.SubHeader("Vector index:")
	fmt.Printf("  documents  %s\n", ui.CountText(stats.DocCount))
	fmt.Printf("  vocabulary %s\n", ui.CountText(stats.VocabSize))
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
