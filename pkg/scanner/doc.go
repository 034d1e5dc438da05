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

// Package scanner enumerates the source files of a project worth
// analyzing. Ignore rules apply in a fixed precedence order: the builtin
// always-ignore set first, then the project scanignore file, then the VCS
// ignore file. The resulting file list is sorted lexicographically so
// repeated scans of an unchanged tree are deterministic.
package scanner
