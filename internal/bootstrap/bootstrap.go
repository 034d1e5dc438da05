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

package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"log/slog"
)

// ProjectInfo describes an initialized project.
type ProjectInfo struct {
	ProjectRoot string
	StateDir    string
	Created     bool
}

// InitProject creates the state directory under the project root if it
// does not exist yet. Idempotent: an existing directory is left alone.
//
// Parameters:
//   - projectRoot: absolute path of the project
//   - stateDirName: directory name relative to the root (e.g. ".contextengine")
//   - logger: optional logger (nil uses default)
func InitProject(projectRoot, stateDirName string, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if projectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if stateDirName == "" {
		return nil, fmt.Errorf("state directory name is required")
	}

	stateDir := filepath.Join(projectRoot, stateDirName)
	created := false
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		created = true
		logger.Info("bootstrap.state_dir.created", "path", stateDir)
	} else if err != nil {
		return nil, fmt.Errorf("stat state dir: %w", err)
	}

	return &ProjectInfo{
		ProjectRoot: projectRoot,
		StateDir:    stateDir,
		Created:     created,
	}, nil
}

// StateDirExists reports whether the project has been initialized.
func StateDirExists(projectRoot, stateDirName string) bool {
	info, err := os.Stat(filepath.Join(projectRoot, stateDirName))
	return err == nil && info.IsDir()
}
