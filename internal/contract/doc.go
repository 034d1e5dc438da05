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

// Package contract provides validation constants and utilities for the
// context engine.
//
// # Batch Size Limits
//
// The engine enforces soft limits on ingest batches to prevent memory
// exhaustion when a parser misbehaves:
//
//	result := contract.ValidateIngestBatch(len(nodes), len(relations))
//	if !result.OK {
//	    log.Printf("Validation failed: %s", result.Message)
//	}
//
// # Configuration via Environment
//
// The soft limits can be adjusted via the CONTEXTENGINE_SOFT_LIMIT_NODES
// and CONTEXTENGINE_SOFT_LIMIT_RELATIONS environment variables. This is
// useful for environments with limited memory or unusually large
// monorepos. If a variable is not set or invalid, the baked-in default is
// used.
package contract
