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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// maxNormalizedPathLen bounds the literal-id path segment; paths longer
// than this are hashed instead.
const maxNormalizedPathLen = 256

// normalizePath makes a path deterministic across OS and invocation
// style: strips a leading "./", cleans it, converts to forward slashes,
// and strips any leading "/".
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "/")
	return path
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// FileID returns the stable id for a FileNode: "file:<rel-path>".
func FileID(relPath string) string {
	p := normalizePath(relPath)
	if len(p) > maxNormalizedPathLen {
		p = shortHash(p)
	}
	return "file:" + p
}

// FunctionID returns the stable id for a free function:
// "function:<rel-path>:<name>".
func FunctionID(relPath, name string) string {
	return "function:" + normalizePath(relPath) + ":" + name
}

// MethodID returns the stable id for a method:
// "method:<rel-path>:<class>:<name>".
func MethodID(relPath, className, name string) string {
	return "method:" + normalizePath(relPath) + ":" + className + ":" + name
}

// ClassID returns the stable id for a class/struct/interface declaration:
// "class:<rel-path>:<name>".
func ClassID(relPath, name string) string {
	return "class:" + normalizePath(relPath) + ":" + name
}

// ModuleID returns the id for a module node: the specifier string exactly
// as written at the import site.
func ModuleID(specifier string) string {
	return specifier
}

// IsExternalModule reports whether a module specifier refers to an
// external package rather than a relative/absolute project-local path.
func IsExternalModule(specifier string) bool {
	return !strings.HasPrefix(specifier, ".") && !strings.HasPrefix(specifier, "/")
}

// Disambiguator appends a "#N" tie-break suffix to ids that collide within
// a single file, in source declaration order. The zero value is ready to
// use; create one per file being analyzed.
type Disambiguator struct {
	seen map[string]int
}

// Resolve returns id unchanged the first time it is seen, and
// "<id>#N" (N starting at 2) on every subsequent collision with a
// same-name declaration earlier in the file.
func (d *Disambiguator) Resolve(id string) string {
	if d.seen == nil {
		d.seen = make(map[string]int)
	}
	d.seen[id]++
	n := d.seen[id]
	if n == 1 {
		return id
	}
	return fmt.Sprintf("%s#%d", id, n)
}
