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

package vectorindex

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuiltIndex(t *testing.T, minDocFreq int, docs map[string]string) *TFIDFIndex {
	t.Helper()
	x := NewTFIDFIndex(TFIDFOptions{MinDocFreq: minDocFreq})
	require.NoError(t, x.Initialize(context.Background()))
	for id, content := range docs {
		require.NoError(t, x.IndexDocument(context.Background(), id, content, Metadata{}))
	}
	x.BuildVocabulary()
	return x
}

// TestTokenize verifies splitting, lowercasing and the short-token
// filter.
func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"user", "login", "handler"}, Tokenize("User.login_handler!"))
	assert.Empty(t, Tokenize("a-b-c"))
	assert.Equal(t, []string{"héllo", "wörld"}, Tokenize("héllo wörld"))
}

// TestSearch_RankingAndThreshold is the canonical four-document
// scenario: the exact-match document ranks strictly first and unrelated
// documents fall below the threshold.
func TestSearch_RankingAndThreshold(t *testing.T) {
	x := newBuiltIndex(t, 1, map[string]string{
		"d1": "user login",
		"d2": "user logout",
		"d3": "file reader",
		"d4": "http client",
	})

	results, err := x.Search(context.Background(), "login user", 10, DefaultThreshold)
	require.NoError(t, err)

	require.NotEmpty(t, results)
	assert.Equal(t, "d1", results[0].ID, "exact match must rank first")

	found := map[string]float64{}
	for _, r := range results {
		found[r.ID] = r.Score
	}
	require.Contains(t, found, "d2")
	assert.Greater(t, found["d1"], found["d2"], "d1 strictly ahead of d2")
	assert.NotContains(t, found, "d3", "unrelated doc below threshold")
	assert.NotContains(t, found, "d4", "unrelated doc below threshold")
}

// TestVectors_L2Normalized verifies every stored vector has unit norm
// (or is empty).
func TestVectors_L2Normalized(t *testing.T) {
	x := newBuiltIndex(t, 1, map[string]string{
		"d1": "alpha beta gamma",
		"d2": "alpha beta",
		"d3": "delta",
	})

	x.mu.RLock()
	defer x.mu.RUnlock()
	for id, d := range x.docs {
		var norm float64
		for _, w := range d.vector {
			norm += w * w
		}
		norm = math.Sqrt(norm)
		if len(d.vector) == 0 {
			continue
		}
		assert.InDelta(t, 1.0, norm, 1e-9, "doc %s norm", id)
	}
}

// TestSearch_CosineBounds verifies scores stay within [0, 1] for
// non-negative TF-IDF vectors.
func TestSearch_CosineBounds(t *testing.T) {
	x := newBuiltIndex(t, 1, map[string]string{
		"d1": "alpha beta",
		"d2": "beta gamma",
	})

	results, err := x.Search(context.Background(), "alpha beta gamma", 10, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0+1e-9)
	}
}

// TestVocabulary_MinDocFreq verifies DF and length filters.
func TestVocabulary_MinDocFreq(t *testing.T) {
	x := newBuiltIndex(t, 2, map[string]string{
		"d1": "shared unique1 ab",
		"d2": "shared unique2 ab",
	})

	s := x.Stats()
	// Only "shared" passes DF >= 2 and len > 2 ("ab" is too short).
	assert.Equal(t, 1, s.VocabSize)
}

// TestIncremental_VocabularyFrozen verifies documents indexed after the
// build are searchable through existing terms only.
func TestIncremental_VocabularyFrozen(t *testing.T) {
	x := newBuiltIndex(t, 1, map[string]string{
		"d1": "parser tokens",
		"d2": "grammar rules",
	})
	vocabBefore := x.Stats().VocabSize

	require.NoError(t, x.IndexDocument(context.Background(), "d3", "parser novelterm", Metadata{}))

	assert.Equal(t, vocabBefore, x.Stats().VocabSize, "vocabulary stays frozen")

	results, err := x.Search(context.Background(), "parser", 10, 0.01)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range results {
		ids[r.ID] = true
	}
	assert.True(t, ids["d3"], "new doc matches via existing terms")

	novel, err := x.Search(context.Background(), "novelterm", 10, 0.01)
	require.NoError(t, err)
	assert.Empty(t, novel, "new terms are invisible until rebuild")

	x.Rebuild()
	novel, err = x.Search(context.Background(), "novelterm", 10, 0.01)
	require.NoError(t, err)
	require.Len(t, novel, 1)
	assert.Equal(t, "d3", novel[0].ID)
}

// TestSearch_Uninitialized verifies the no-error empty result.
func TestSearch_Uninitialized(t *testing.T) {
	x := NewTFIDFIndex(TFIDFOptions{})
	results, err := x.Search(context.Background(), "anything", 5, 0.1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestIndexDocument_EmptyProjectionSkipped verifies blank content is a
// silent no-op.
func TestIndexDocument_EmptyProjectionSkipped(t *testing.T) {
	x := NewTFIDFIndex(TFIDFOptions{})
	require.NoError(t, x.Initialize(context.Background()))
	require.NoError(t, x.IndexDocument(context.Background(), "d1", "   ", Metadata{}))
	assert.Zero(t, x.Stats().DocCount)
}

// TestRemoveDocument verifies removal and the unknown-id no-op.
func TestRemoveDocument(t *testing.T) {
	x := newBuiltIndex(t, 1, map[string]string{"d1": "alpha beta"})
	require.NoError(t, x.RemoveDocument("d1"))
	require.NoError(t, x.RemoveDocument("ghost"))
	assert.Zero(t, x.Stats().DocCount)
}

// TestDispose verifies operations after Dispose are inert.
func TestDispose(t *testing.T) {
	x := newBuiltIndex(t, 1, map[string]string{"d1": "alpha beta"})
	require.NoError(t, x.Dispose())

	results, err := x.Search(context.Background(), "alpha", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, x.Stats().DocCount)
}
