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

// Package bootstrap handles project state-directory initialization.
//
// The engine owns one state directory per project root (by default
// .contextengine/) holding the persisted graph, the optional scanignore
// file and the project configuration.
//
// # Initialization Workflow
//
// A typical workflow for setting up a new project:
//
//	info, err := bootstrap.InitProject(projectRoot, ".contextengine", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("State directory: %s\n", info.StateDir)
//
// # Idempotency
//
// InitProject is idempotent: calling it multiple times on the same
// project is safe and will not touch existing data. This makes it
// suitable for use in scripts and automated workflows.
package bootstrap
