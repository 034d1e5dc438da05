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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault verifies the documented defaults.
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, *cfg.RespectVcsIgnore)
	assert.True(t, *cfg.RespectScanIgnore)
	assert.Equal(t, 2000, cfg.MaxFiles)
	assert.EqualValues(t, 1<<20, cfg.MaxFileBytes)
	assert.Equal(t, ".contextengine", cfg.StateDir)
	assert.Equal(t, "local", cfg.GraphProvider.Type)
	assert.Equal(t, "tfidf", cfg.VectorProvider.Type)
	assert.Equal(t, 2, cfg.VectorProvider.MinDocFreq)
	assert.Equal(t, "hybrid", cfg.Extractor.Type)
	assert.InDelta(t, 0.7, cfg.Extractor.RAGWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Extractor.RuleWeight, 1e-9)
	assert.Equal(t, 8000, cfg.Retriever.DefaultBudgetTokens)
}

// TestLoad_MissingFileYieldsDefaults verifies best-effort loading.
func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoad_PartialFileKeepsDefaults verifies unset fields fall back.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
maxFiles: 50
vectorProvider:
  type: tfidf
  minDocFreq: 3
extractor:
  type: ruleBased
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxFiles)
	assert.Equal(t, 3, cfg.VectorProvider.MinDocFreq)
	assert.Equal(t, "ruleBased", cfg.Extractor.Type)
	assert.Equal(t, ".contextengine", cfg.StateDir)
	assert.True(t, *cfg.RespectVcsIgnore)
}

// TestLoad_RespectFlagsCanBeDisabled verifies explicit false survives
// defaulting.
func TestLoad_RespectFlagsCanBeDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("respectVcsIgnore: false\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, *cfg.RespectVcsIgnore)
	assert.True(t, *cfg.RespectScanIgnore)
}

// TestLoad_Malformed is an error, unlike a missing file.
func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

// TestSaveLoadRoundTrip verifies Save . Load == identity.
func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.MaxFiles = 123
	cfg.IncludePatterns = []string{"*.go"}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
