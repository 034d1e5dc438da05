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

// Package engine ties the scanner, analyzer, graph and vector index into
// one handle with the public operations a host embeds: Initialize,
// OnFileChange, Query, Statistics and Shutdown.
//
// The engine is the single owner of the graph + index pair. All mutation
// is serialized through one exclusive lock; retrieval borrows read-only
// views. Within a file-change event, nodes and relations become visible
// to readers atomically.
//
// The on-disk state directory is owned by exactly one engine instance
// per project root. The engine does not coordinate across processes and
// will overwrite a concurrent peer's save. Run one engine per project.
package engine
