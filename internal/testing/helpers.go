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

package testing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/contextengine/pkg/config"
	"github.com/kraklabs/contextengine/pkg/engine"
)

// WriteProjectFiles creates a temp project directory populated with the
// given relative-path -> content files. The directory is cleaned up when
// the test finishes.
//
// Example:
//
//	root := testing.WriteProjectFiles(t, map[string]string{
//	    "a.ts": "export function foo(){ bar(); }",
//	})
func WriteProjectFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create project dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write project file %s: %v", rel, err)
		}
	}
	return root
}

// SetupTestEngine builds a temp project from the given files and
// initializes an engine over it with an in-memory graph and a TF-IDF
// vector index. Shutdown is registered as test cleanup.
//
// Example:
//
//	eng, root := testing.SetupTestEngine(t, map[string]string{
//	    "a.ts": "export function foo(){ bar(); }",
//	})
//	bundle, err := eng.Query(context.Background(), "explain foo", 4000)
func SetupTestEngine(t *testing.T, files map[string]string) (*engine.Engine, string) {
	t.Helper()

	root := WriteProjectFiles(t, files)
	cfg := config.Default()
	cfg.GraphProvider.Type = "memory"
	cfg.VectorProvider.MinDocFreq = 1

	eng, err := engine.Initialize(context.Background(), root, cfg, nil)
	if err != nil {
		t.Fatalf("failed to initialize test engine: %v", err)
	}
	t.Cleanup(func() {
		_ = eng.Shutdown()
	})
	return eng, root
}
