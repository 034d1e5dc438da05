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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/contextengine/pkg/retriever"
)

// TestFilterLayers keeps only the requested layers and re-renders the
// text while preserving bundle-level metadata.
func TestFilterLayers(t *testing.T) {
	b := &retriever.Bundle{
		Tokens: 120,
		Intent: "analysis",
		Layers: []retriever.Layer{
			{Name: "L0", Entities: []string{"function:a.ts:foo"}, Tokens: 70},
			{Name: "L1", Entities: []string{"function:a.ts:bar"}, Tokens: 70},
			{Name: "L3", Summary: "summary text", Tokens: 10},
		},
	}

	got := filterLayers(b, []string{"L0", "L3"})

	require.Len(t, got.Layers, 2)
	assert.Equal(t, "L0", got.Layers[0].Name)
	assert.Equal(t, "L3", got.Layers[1].Name)
	assert.Contains(t, got.Text, "function:a.ts:foo")
	assert.NotContains(t, got.Text, "function:a.ts:bar")
	assert.Equal(t, 120, got.Tokens, "token metadata still describes the full result")

	// The input bundle is left untouched.
	assert.Len(t, b.Layers, 3)
}

// TestFilterLayers_UnknownNameYieldsEmpty drops everything when no layer
// matches.
func TestFilterLayers_UnknownNameYieldsEmpty(t *testing.T) {
	b := &retriever.Bundle{Layers: []retriever.Layer{{Name: "L0"}}}
	got := filterLayers(b, []string{"L9"})
	assert.Empty(t, got.Layers)
}
