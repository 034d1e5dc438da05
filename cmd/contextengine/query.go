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
	"fmt"
	"os"
	"time"

	"github.com/kraklabs/contextengine/internal/output"
	"github.com/kraklabs/contextengine/pkg/engine"
	"github.com/kraklabs/contextengine/pkg/retriever"
	"github.com/spf13/pflag"
)

// runQuery executes the 'query' CLI command, retrieving a layered
// context bundle for the given utterance.
//
// Flags:
//   - --budget: Token budget (default: the configured defaultBudgetTokens)
//   - --json: Emit the bundle as JSON instead of the text block
//   - --layer: Restrict output to the named layers; repeatable (e.g. --layer L0 --layer L3)
//   - --timeout: Soft query timeout (default: none)
//
// Examples:
//
//	cie query "explain function foo"
//	cie query --budget 2000 "how does the scanner work"
//	cie query --json --layer L0 --layer L1 "rename class Parser"
func runQuery(args []string) {
	fs := pflag.NewFlagSet("query", pflag.ExitOnError)
	budget := fs.Int("budget", 0, "Token budget (0 uses the configured default)")
	jsonOut := fs.Bool("json", false, "Output the bundle as JSON")
	layers := fs.StringArray("layer", nil, "Only include the named layers (repeatable)")
	timeout := fs.Duration("timeout", 0, "Soft query timeout (0 disables)")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie query [options] "<utterance>"

Retrieves a layered context bundle (L0-L3) for the utterance, packed
under the token budget.

Options:
%s`, fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	utterance := fs.Arg(0)

	root := projectRoot()
	cfg := loadConfig(root)
	logger := setupLogger(*debug)

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	eng, err := engine.Open(ctx, root, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = eng.Shutdown() }()

	b := *budget
	if b == 0 {
		b = eng.DefaultBudget()
	}

	start := time.Now()
	bundle, err := eng.Query(ctx, utterance, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("query.complete", "tokens", bundle.Tokens, "duration_ms", time.Since(start).Milliseconds())

	if len(*layers) > 0 {
		bundle = filterLayers(bundle, *layers)
	}

	if *jsonOut {
		if err := output.JSON(bundle); err != nil {
			_ = output.JSONError(err)
			os.Exit(1)
		}
		return
	}
	fmt.Print(bundle.Text)
}

// filterLayers keeps only the requested layers and re-renders the text
// block. Token and truncation metadata keep describing the full result.
func filterLayers(b *retriever.Bundle, names []string) *retriever.Bundle {
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	filtered := *b
	filtered.Layers = nil
	for _, l := range b.Layers {
		if want[l.Name] {
			filtered.Layers = append(filtered.Layers, l)
		}
	}
	filtered.Text = filtered.Render()
	return &filtered
}
