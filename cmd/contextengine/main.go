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

// Package main implements the cie CLI for indexing a project and querying
// the context retrieval engine.
//
// Usage:
//
//	cie init                        Create .contextengine/config.yaml
//	cie index [--full]              Index the current project
//	cie query "<utterance>"         Retrieve a layered context bundle
//	cie status [--json]             Show graph and index statistics
//	cie reset --yes                 Delete local engine state
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cie - Context Retrieval Engine CLI

Usage:
  cie <command> [options]

Commands:
  init          Create .contextengine/config.yaml configuration
  index         Index the current project (incremental when possible)
  query         Retrieve a layered context bundle for an utterance
  status        Show graph and index statistics
  reset         Delete local engine state (destructive!)

Global Options:
  --version     Show version and exit

Examples:
  cie init                           Create configuration
  cie index                          Incremental index via git delta
  cie index --full                   Force full re-scan
  cie query "explain function foo"   Retrieve context
  cie query --budget 2000 --json "how does auth work"
  cie status --json                  Output as JSON

Data Storage:
  State lives in .contextengine/ under the project root.

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cie version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "index":
		runIndex(cmdArgs)
	case "query":
		runQuery(cmdArgs)
	case "status":
		runStatus(cmdArgs)
	case "reset":
		runReset(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
