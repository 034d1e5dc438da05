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

	"github.com/kraklabs/contextengine/internal/bootstrap"
	"github.com/kraklabs/contextengine/internal/ui"
	"github.com/kraklabs/contextengine/pkg/config"
)

// runInit executes the 'init' CLI command, creating the state directory
// and a default .contextengine/config.yaml.
//
// Flags:
//   - --force: Overwrite an existing configuration (default: false)
//
// Examples:
//
//	cie init            Create configuration with defaults
//	cie init --force    Regenerate the default configuration
func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie init [options]

Creates the .contextengine/ state directory and a default config.yaml.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := projectRoot()
	cfg := config.Default()

	info, err := bootstrap.InitProject(root, cfg.StateDir, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	path := configPath(root)
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", path)
		os.Exit(1)
	}
	if err := cfg.Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ui.Successf("Initialized %s", info.StateDir)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  cie index           Index the project")
	fmt.Println("  cie query \"...\"     Retrieve context")
}
