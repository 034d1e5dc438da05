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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseGo(t *testing.T, relPath, source string) FileResult {
	t.Helper()
	parser := NewGoParser(nil)
	return parser.Parse(filepath.Join(t.TempDir(), relPath), relPath, []byte(source))
}

// TestGoParser_FunctionsAndCalls covers function extraction, CONTAINS
// edges and same-file call resolution.
func TestGoParser_FunctionsAndCalls(t *testing.T) {
	source := `package main

func main() {
	Helper()
}

func Helper() {
}
`
	result := parseGo(t, "main.go", source)
	require.NoError(t, result.ParseError)
	assert.Equal(t, "main", result.PackageName)
	assert.Equal(t, "go", result.File.Language)

	names := map[string]FunctionNode{}
	for _, fn := range result.Functions {
		names[fn.Name] = fn
	}
	require.Contains(t, names, "main")
	require.Contains(t, names, "Helper")
	assert.False(t, names["main"].Exported)
	assert.True(t, names["Helper"].Exported)

	contains := findRelation(result.Relations, RelContains, "file:main.go", "function:main.go:main")
	require.NotNil(t, contains)

	call := findRelation(result.Relations, RelCalls, "function:main.go:main", "function:main.go:Helper")
	require.NotNil(t, call, "same-file call should resolve")
	assert.True(t, call.DstResolved)
}

// TestGoParser_Methods verifies receiver extraction and class-contains.
func TestGoParser_Methods(t *testing.T) {
	source := `package svc

type Service struct {
	name string
}

func (s *Service) Run(input string) error {
	return nil
}
`
	result := parseGo(t, "svc.go", source)
	require.NoError(t, result.ParseError)

	require.Len(t, result.Classes, 1)
	assert.Equal(t, "class:svc.go:Service", result.Classes[0].ID)
	assert.True(t, result.Classes[0].Exported)

	require.Len(t, result.Functions, 1)
	m := result.Functions[0]
	assert.Equal(t, "method:svc.go:Service:Run", m.ID)
	assert.True(t, m.IsMethod)
	assert.Equal(t, "Service", m.ClassName)
	assert.Equal(t, []string{"input"}, m.Params)

	contains := findRelation(result.Relations, RelContains, "class:svc.go:Service", m.ID)
	require.NotNil(t, contains, "class should contain its method")
}

// TestGoParser_Imports verifies import specs, including aliases.
func TestGoParser_Imports(t *testing.T) {
	source := `package main

import (
	"fmt"
	log "log/slog"
)
`
	result := parseGo(t, "imp.go", source)
	require.NoError(t, result.ParseError)

	fmtImp := findRelation(result.Relations, RelImports, "file:imp.go", "fmt")
	require.NotNil(t, fmtImp)
	assert.Empty(t, fmtImp.ImportedNames)

	slogImp := findRelation(result.Relations, RelImports, "file:imp.go", "log/slog")
	require.NotNil(t, slogImp)
	assert.Equal(t, []string{"log"}, slogImp.ImportedNames)
}

// TestGoParser_InterfaceEmbedding verifies IMPLEMENTS edges from
// embedded interfaces.
func TestGoParser_InterfaceEmbedding(t *testing.T) {
	source := `package io2

type Reader interface {
	Read(p []byte) (int, error)
}

type ReadCloser interface {
	Reader
	Close() error
}
`
	result := parseGo(t, "io.go", source)
	require.NoError(t, result.ParseError)

	impl := findRelation(result.Relations, RelImplements, "class:io.go:ReadCloser", "Reader")
	require.NotNil(t, impl)
}

// TestGoParser_CompositeLiteral verifies INSTANTIATES edges for T{...}.
func TestGoParser_CompositeLiteral(t *testing.T) {
	source := `package main

type Config struct{}

func build() Config {
	return Config{}
}
`
	result := parseGo(t, "b.go", source)
	require.NoError(t, result.ParseError)

	inst := findRelation(result.Relations, RelInstantiates, "function:b.go:build", "Config")
	require.NotNil(t, inst)
}

// TestGoParser_QualifiedCallsStayUnresolved verifies pkg.Func() calls
// become UnresolvedCall entries for the cross-file resolver.
func TestGoParser_QualifiedCallsStayUnresolved(t *testing.T) {
	source := `package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`
	result := parseGo(t, "q.go", source)
	require.NoError(t, result.ParseError)

	require.Len(t, result.UnresolvedCalls, 1)
	uc := result.UnresolvedCalls[0]
	assert.Equal(t, "Println", uc.CalleeName)
	assert.Equal(t, "fmt", uc.Qualifier)
	assert.Equal(t, CallMethod, uc.Kind)
}

// TestGoParser_BuiltinsSkipped verifies len/make/append produce no call
// edges.
func TestGoParser_BuiltinsSkipped(t *testing.T) {
	source := `package main

func f(xs []int) int {
	ys := make([]int, 0, len(xs))
	ys = append(ys, xs...)
	return len(ys)
}
`
	result := parseGo(t, "bi.go", source)
	require.NoError(t, result.ParseError)

	assert.Empty(t, result.UnresolvedCalls)
	for _, rel := range result.Relations {
		if rel.Kind == RelCalls {
			t.Errorf("unexpected CALLS edge to %s", rel.Dst)
		}
	}
}

// TestGoParser_AnonymousFuncAttachesToAncestor verifies closures host
// their calls under the nearest named function.
func TestGoParser_AnonymousFuncAttachesToAncestor(t *testing.T) {
	source := `package main

func outer() {
	go func() {
		work()
	}()
}

func work() {
}
`
	result := parseGo(t, "anon.go", source)
	require.NoError(t, result.ParseError)

	call := findRelation(result.Relations, RelCalls, "function:anon.go:outer", "function:anon.go:work")
	require.NotNil(t, call, "closure call should attach to outer")
}

// TestGoParser_References verifies identifier uses in bodies emit
// REFERENCES edges.
func TestGoParser_References(t *testing.T) {
	source := `package main

var limit = 10

func f(n int) bool {
	return n < limit
}
`
	result := parseGo(t, "ref.go", source)
	require.NoError(t, result.ParseError)

	ref := findRelation(result.Relations, RelReferences, "function:ref.go:f", "limit")
	require.NotNil(t, ref)
	assert.Equal(t, ReferenceIdentifier, ref.ReferenceKind)
}

// TestDispatcher_FallbackEmitsFileOnly verifies non-AST extensions yield
// a bare FileNode.
func TestDispatcher_FallbackEmitsFileOnly(t *testing.T) {
	d := NewDispatcher(nil)
	result := d.Parse(filepath.Join(t.TempDir(), "notes.txt"), "notes.txt", []byte("plain text"))

	require.NoError(t, result.ParseError)
	assert.Equal(t, "file:notes.txt", result.File.ID)
	assert.Empty(t, result.Functions)
	assert.Empty(t, result.Classes)
	assert.Empty(t, result.Relations)
}

// TestGoParser_Determinism verifies analyze(f) == analyze(f) on
// unchanged bytes.
func TestGoParser_Determinism(t *testing.T) {
	source := "package main\n\nfunc a() { b() }\n\nfunc b() {}\n"
	first := parseGo(t, "det.go", source)
	second := parseGo(t, "det.go", source)

	assert.Equal(t, first.Functions, second.Functions)
	assert.Equal(t, first.Relations, second.Relations)
}
