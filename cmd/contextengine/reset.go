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
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/contextengine/pkg/config"
)

// resetArtifacts are the engine-owned files removed by a reset. The
// config file survives so a re-index picks up the same settings.
var resetArtifacts = []string{
	config.GraphFileName,
	"last_commit",
}

func runReset(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie reset [options]

Deletes the persisted graph and index bookkeeping, clearing all indexed
data. The configuration file is kept.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: you must pass --yes to confirm the reset\n")
		fmt.Fprintf(os.Stderr, "This will delete all indexed data for the project.\n")
		os.Exit(1)
	}

	root := projectRoot()
	cfg := loadConfig(root)
	stateDir := filepath.Join(root, cfg.StateDir)

	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "No local engine state found under %s\n", stateDir)
		os.Exit(0)
	}

	fmt.Printf("Resetting engine state under %s...\n", stateDir)
	for _, name := range resetArtifacts {
		path := filepath.Join(stateDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: failed to delete %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Println("Reset complete. All indexed data has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  cie index --full    Reindex the project")
}
