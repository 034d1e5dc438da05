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

package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassifyIntent covers each intent plus the general fallback.
func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"explain foo", IntentAnalysis},
		{"how does the scanner work", IntentAnalysis},
		{"fix the crash in parser", IntentDebugging},
		{"implement a new cache layer", IntentDevelopment},
		{"add tests for the resolver", IntentTesting},
		{"refactor the formatter", IntentRefactoring},
		{"update the readme", IntentDocumentation},
		{"greetings", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.utterance, nil))
		})
	}
}

// TestClassifyIntent_Deterministic verifies classification is stable for
// mixed-keyword utterances.
func TestClassifyIntent_Deterministic(t *testing.T) {
	utterance := "fix and test the build"
	first := ClassifyIntent(utterance, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ClassifyIntent(utterance, nil))
	}
}

// TestClassifyIntent_Override verifies the caller-supplied keyword map
// replaces the defaults.
func TestClassifyIntent_Override(t *testing.T) {
	custom := map[string][]string{
		IntentDebugging: {"kaboom"},
	}
	assert.Equal(t, IntentDebugging, ClassifyIntent("kaboom in prod", custom))
	assert.Equal(t, IntentGeneral, ClassifyIntent("fix this", custom))
}
