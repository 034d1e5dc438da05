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

// Package config loads the engine configuration from the project's state
// directory and instantiates the pluggable graph, vector and extractor
// providers from it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileName inside the state directory.
const ConfigFileName = "config.yaml"

// ProviderConfig is one declarative provider slot: a type string plus an
// opaque option map interpreted by the chosen implementation.
type ProviderConfig struct {
	Type    string            `yaml:"type" json:"type"`
	Options map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// VectorProviderConfig adds the TF-IDF knobs to the generic slot.
type VectorProviderConfig struct {
	Type       string            `yaml:"type" json:"type"`
	MinDocFreq int               `yaml:"minDocFreq,omitempty" json:"minDocFreq,omitempty"`
	Options    map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// ExtractorConfig selects the fusion mode and its weights.
type ExtractorConfig struct {
	Type       string  `yaml:"type" json:"type"`
	RAGWeight  float64 `yaml:"ragWeight,omitempty" json:"ragWeight,omitempty"`
	RuleWeight float64 `yaml:"ruleWeight,omitempty" json:"ruleWeight,omitempty"`
}

// RetrieverConfig carries query-side defaults.
type RetrieverConfig struct {
	DefaultBudgetTokens int                 `yaml:"defaultBudgetTokens,omitempty" json:"defaultBudgetTokens,omitempty"`
	IntentKeywordMap    map[string][]string `yaml:"intentKeywordMap,omitempty" json:"intentKeywordMap,omitempty"`
}

// Config is the full engine configuration.
type Config struct {
	IncludePatterns   []string `yaml:"includePatterns,omitempty"`
	ExcludePatterns   []string `yaml:"excludePatterns,omitempty"`
	RespectVcsIgnore  *bool    `yaml:"respectVcsIgnore,omitempty"`
	RespectScanIgnore *bool    `yaml:"respectScanIgnore,omitempty"`
	MaxFiles          int      `yaml:"maxFiles,omitempty"`
	MaxFileBytes      int64    `yaml:"maxFileBytes,omitempty"`
	StateDir          string   `yaml:"stateDir,omitempty"`

	GraphProvider  ProviderConfig       `yaml:"graphProvider,omitempty"`
	VectorProvider VectorProviderConfig `yaml:"vectorProvider,omitempty"`
	Extractor      ExtractorConfig      `yaml:"extractor,omitempty"`
	Retriever      RetrieverConfig      `yaml:"retriever,omitempty"`
}

// Default builds the fully defaulted configuration.
func Default() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its documented default.
func (c *Config) ApplyDefaults() {
	if c.RespectVcsIgnore == nil {
		c.RespectVcsIgnore = boolPtr(true)
	}
	if c.RespectScanIgnore == nil {
		c.RespectScanIgnore = boolPtr(true)
	}
	if c.MaxFiles == 0 {
		c.MaxFiles = 2000
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = 1 << 20
	}
	if c.StateDir == "" {
		c.StateDir = ".contextengine"
	}
	if c.GraphProvider.Type == "" {
		c.GraphProvider.Type = "local"
	}
	if c.VectorProvider.Type == "" {
		c.VectorProvider.Type = "tfidf"
	}
	if c.VectorProvider.MinDocFreq == 0 {
		c.VectorProvider.MinDocFreq = 2
	}
	if c.Extractor.Type == "" {
		c.Extractor.Type = "hybrid"
	}
	if c.Extractor.RAGWeight == 0 && c.Extractor.RuleWeight == 0 {
		c.Extractor.RAGWeight = 0.7
		c.Extractor.RuleWeight = 0.3
	}
	if c.Retriever.DefaultBudgetTokens == 0 {
		c.Retriever.DefaultBudgetTokens = 8000
	}
}

func boolPtr(b bool) *bool { return &b }

// Load reads the YAML config at path. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
