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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolver_QualifiedCall verifies pkg.Func() resolves across files
// when the package exports the function.
func TestResolver_QualifiedCall(t *testing.T) {
	util := parseGo(t, "util/util.go", `package util

func Helper() {
}
`)
	main := parseGo(t, "main.go", `package main

import "example.com/proj/util"

func main() {
	util.Helper()
}
`)
	results := []FileResult{util, main}
	NewResolver(results).Resolve(results)

	call := findRelation(results[1].Relations, RelCalls,
		"function:main.go:main", "function:util/util.go:Helper")
	require.NotNil(t, call, "qualified call should resolve to the exported function")
	assert.True(t, call.DstResolved)
}

// TestResolver_UnknownStaysSymbolic verifies unresolvable calls keep the
// bare callee name instead of erroring.
func TestResolver_UnknownStaysSymbolic(t *testing.T) {
	main := parseGo(t, "main.go", `package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`)
	results := []FileResult{main}
	NewResolver(results).Resolve(results)

	call := findRelation(results[0].Relations, RelCalls, "function:main.go:main", "Println")
	require.NotNil(t, call)
	assert.False(t, call.DstResolved)
	assert.Equal(t, CallMethod, call.CallKind)
}

// TestResolver_UnexportedNotResolved verifies lowercase targets are left
// symbolic even when the package is indexed.
func TestResolver_UnexportedNotResolved(t *testing.T) {
	util := parseGo(t, "util/util.go", `package util

func helper() {
}
`)
	main := parseGo(t, "main.go", `package main

import "example.com/proj/util"

func main() {
	util.helper()
}
`)
	results := []FileResult{util, main}
	NewResolver(results).Resolve(results)

	call := findRelation(results[1].Relations, RelCalls, "function:main.go:main", "helper")
	require.NotNil(t, call)
	assert.False(t, call.DstResolved)
}

// TestResolver_ParallelPath exercises the worker-pool dispatch by
// crossing the sequential threshold.
func TestResolver_ParallelPath(t *testing.T) {
	util := parseGo(t, "util/util.go", `package util

func Helper() {
}
`)
	results := []FileResult{util}
	for i := 0; i < 30; i++ {
		rel := fmt.Sprintf("caller%d.go", i)
		src := "package main\n\nimport \"example.com/proj/util\"\n\nfunc run() {\n"
		for j := 0; j < 40; j++ {
			src += "\tutil.Helper()\n"
		}
		src += "}\n"
		results = append(results, parseGo(t, rel, src))
	}

	total := 0
	for _, r := range results {
		total += len(r.UnresolvedCalls)
	}
	require.Greater(t, total, maxSequentialCalls, "setup must exceed the sequential threshold")

	NewResolver(results).Resolve(results)

	for i := 1; i < len(results); i++ {
		call := findRelation(results[i].Relations, RelCalls,
			fmt.Sprintf("function:caller%d.go:run", i-1), "function:util/util.go:Helper")
		require.NotNil(t, call, "every caller should resolve")
	}
}
