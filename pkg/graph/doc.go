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

// Package graph stores code entities and their directed, typed relations
// in memory, with single-writer/many-reader locking and JSON persistence.
//
// Nodes are owned by the graph and addressed by deterministic ids. Edges
// are keyed (src, kind, dst); the destination side may be an unresolved
// symbolic name rather than a node id. Statistics counters are maintained
// incrementally on every mutation, never recomputed.
package graph
