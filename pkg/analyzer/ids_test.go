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

package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFileID verifies the id grammar and path normalization.
func TestFileID(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain relative", "a.ts", "file:a.ts"},
		{"dot-slash prefix stripped", "./src/a.ts", "file:src/a.ts"},
		{"leading slash stripped", "/src/a.ts", "file:src/a.ts"},
		{"cleaned", "src//./a.ts", "file:src/a.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileID(tt.path))
		})
	}
}

// TestFileID_LongPathHashes verifies the long-path fallback.
func TestFileID_LongPathHashes(t *testing.T) {
	long := strings.Repeat("d/", 200) + "a.ts"
	id := FileID(long)
	assert.True(t, strings.HasPrefix(id, "file:"))
	assert.LessOrEqual(t, len(id), len("file:")+32)
}

// TestIDGrammar verifies the function/method/class/module id shapes.
func TestIDGrammar(t *testing.T) {
	assert.Equal(t, "function:a.ts:foo", FunctionID("a.ts", "foo"))
	assert.Equal(t, "method:a.ts:Svc:run", MethodID("a.ts", "Svc", "run"))
	assert.Equal(t, "class:a.ts:Svc", ClassID("a.ts", "Svc"))
	assert.Equal(t, "./lib", ModuleID("./lib"))
}

// TestIDDeterminism verifies re-derivation produces identical ids.
func TestIDDeterminism(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, FunctionID("src/a.ts", "foo"), FunctionID("./src/a.ts", "foo"))
	}
}

// TestIsExternalModule verifies the external flag rule.
func TestIsExternalModule(t *testing.T) {
	assert.False(t, IsExternalModule("./lib"))
	assert.False(t, IsExternalModule("../lib"))
	assert.False(t, IsExternalModule("/abs/lib"))
	assert.True(t, IsExternalModule("react"))
	assert.True(t, IsExternalModule("lodash/fp"))
}

// TestDisambiguator verifies the #N tie-break in source order.
func TestDisambiguator(t *testing.T) {
	var d Disambiguator
	assert.Equal(t, "function:a.ts:foo", d.Resolve("function:a.ts:foo"))
	assert.Equal(t, "function:a.ts:foo#2", d.Resolve("function:a.ts:foo"))
	assert.Equal(t, "function:a.ts:foo#3", d.Resolve("function:a.ts:foo"))
	assert.Equal(t, "function:a.ts:bar", d.Resolve("function:a.ts:bar"))
}
