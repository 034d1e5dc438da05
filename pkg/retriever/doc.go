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

// Package retriever assembles, per user utterance, a layered context
// bundle from the knowledge graph and the vector index under a token
// budget.
//
// Layers fill in priority order: L0 holds entities named or
// pattern-extracted from the utterance plus their direct outgoing
// relations, L1 their one-hop neighborhood, L2 the two-hop fringe, and L3
// a one-paragraph project summary. Graph walk and vector search run as
// parallel tasks; their results are fused by a pure function, and if
// either source fails the surviving one is used as-is.
package retriever
