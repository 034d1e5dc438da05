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

// Package analyzer parses a single source file into code entities
// (files, functions, classes, modules) and relations (contains, imports,
// calls, references, implements, instantiates).
//
// Go and TypeScript/JavaScript are parsed with Tree-sitter for accurate
// AST-based extraction. Any other extension is parsed by the fallback
// parser, which emits a bare FileNode and nothing else.
package analyzer
