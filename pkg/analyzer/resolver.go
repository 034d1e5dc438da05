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
	"runtime"
	"strings"
	"sync"
)

// maxSequentialCalls is the threshold above which Resolver.Resolve
// dispatches across a worker pool instead of running inline.
const maxSequentialCalls = 1000

// maxResolverWorkers caps the worker pool at min(runtime.NumCPU(), 8).
func maxResolverWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

// packageIndex maps an import alias (as used inside one file) to the
// package's import path, and a package name to the set of its exported
// top-level function ids.
type packageIndex struct {
	importPathToFuncs map[string]map[string]string // package name -> exported name -> function id
	fileImportAlias   map[string]map[string]string // filePath -> alias -> importPath
}

// Resolver performs cross-file CALLS resolution for UnresolvedCall entries
// produced by GoParser: qualified calls (pkg.Foo()) are resolved against
// an index of every package's exported top-level functions, built from all
// files analyzed in the same batch.
type Resolver struct {
	idx *packageIndex
}

// NewResolver builds a Resolver from the accumulated results of analyzing
// every file in a scan batch.
func NewResolver(results []FileResult) *Resolver {
	idx := &packageIndex{
		importPathToFuncs: map[string]map[string]string{},
		fileImportAlias:   map[string]map[string]string{},
	}
	for _, r := range results {
		if r.PackageName == "" {
			continue
		}
		for _, fn := range r.Functions {
			if fn.IsMethod || !fn.Exported {
				continue
			}
			pkgFuncs := idx.importPathToFuncs[r.PackageName]
			if pkgFuncs == nil {
				pkgFuncs = map[string]string{}
				idx.importPathToFuncs[r.PackageName] = pkgFuncs
			}
			pkgFuncs[fn.Name] = fn.ID
		}
	}
	for _, r := range results {
		aliases := map[string]string{}
		for _, rel := range r.Relations {
			if rel.Kind != RelImports {
				continue
			}
			alias := rel.Dst
			if len(rel.ImportedNames) == 1 {
				alias = rel.ImportedNames[0]
			} else {
				alias = lastPathSegment(rel.Dst)
			}
			aliases[alias] = rel.Dst
		}
		idx.fileImportAlias[r.File.RelPath] = aliases
	}
	return &Resolver{idx: idx}
}

func lastPathSegment(importPath string) string {
	parts := strings.Split(importPath, "/")
	return parts[len(parts)-1]
}

// Resolve turns every UnresolvedCall across results into a CALLS Relation,
// appended to the corresponding FileResult.Relations, resolved to a real
// function id where the index makes that possible and left as a bare
// callee name otherwise. An unresolved symbolic target is a valid outcome,
// never an error.
func (res *Resolver) Resolve(results []FileResult) {
	total := 0
	for _, r := range results {
		total += len(r.UnresolvedCalls)
	}
	if total == 0 {
		return
	}
	if total <= maxSequentialCalls {
		for i := range results {
			res.resolveFile(&results[i])
		}
		return
	}

	workers := maxResolverWorkers()
	jobs := make(chan int, len(results))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res.resolveFile(&results[i])
			}
		}()
	}
	for i := range results {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (res *Resolver) resolveFile(r *FileResult) {
	aliases := res.idx.fileImportAlias[r.File.RelPath]
	for _, uc := range r.UnresolvedCalls {
		rel := Relation{
			Kind: RelCalls, Src: uc.CallerID, FilePath: uc.FilePath, Line: uc.Line,
			CallKind: uc.Kind,
		}
		if id, ok := res.resolveCall(uc, aliases); ok {
			rel.Dst, rel.DstResolved = id, true
		} else {
			rel.Dst, rel.DstResolved = uc.CalleeName, false
		}
		r.Relations = append(r.Relations, rel)
	}
}

func (res *Resolver) resolveCall(uc UnresolvedCall, aliases map[string]string) (string, bool) {
	if uc.Qualifier == "" || !isExportedGoName(uc.CalleeName) {
		return "", false
	}
	importPath, ok := aliases[uc.Qualifier]
	if !ok {
		return "", false
	}
	// The function index is keyed by package name; fall back to the
	// import path's last segment when they differ.
	funcs, ok := res.idx.importPathToFuncs[importPath]
	if !ok {
		funcs, ok = res.idx.importPathToFuncs[lastPathSegment(importPath)]
		if !ok {
			return "", false
		}
	}
	id, ok := funcs[uc.CalleeName]
	return id, ok
}
