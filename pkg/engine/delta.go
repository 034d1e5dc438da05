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

package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"log/slog"
)

// lastCommitFileName records the HEAD commit of the last full or
// incremental index inside the state directory.
const lastCommitFileName = "last_commit"

// emptyTreeSHA is git's well-known empty tree, used when no previous
// commit is recorded (everything shows as added).
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DeltaDetector detects changed files between two git commits using
// `git diff --name-status -M`.
type DeltaDetector struct {
	logger   *slog.Logger
	repoPath string
}

// NewDeltaDetector creates a delta detector for a git repository.
func NewDeltaDetector(repoPath string, logger *slog.Logger) *DeltaDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeltaDetector{logger: logger, repoPath: repoPath}
}

// Delta represents the changes between two commits. Renames carry both
// sides: the old path is effectively deleted, the new one created.
type Delta struct {
	BaseSHA  string
	HeadSHA  string
	Added    []string
	Modified []string
	Deleted  []string
	Renamed  map[string]string // old path -> new path

	// All is the union of changed paths, sorted and deduplicated.
	All []string
}

// HasChanges reports whether the delta is non-empty.
func (d *Delta) HasChanges() bool { return len(d.All) > 0 }

// IsGitRepository checks whether repoPath is inside a git work tree.
func (dd *DeltaDetector) IsGitRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = dd.repoPath
	return cmd.Run() == nil
}

// HeadSHA returns the current HEAD commit.
func (dd *DeltaDetector) HeadSHA() (string, error) {
	return dd.resolveRef("HEAD")
}

func (dd *DeltaDetector) resolveRef(ref string) (string, error) {
	cmd := exec.Command("git", "rev-parse", ref)
	cmd.Dir = dd.repoPath
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git rev-parse %s failed: %s", ref, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Detect computes the delta between baseSHA and headSHA. An empty
// baseSHA compares against the empty tree; an empty headSHA means HEAD.
func (dd *DeltaDetector) Detect(baseSHA, headSHA string) (*Delta, error) {
	if headSHA == "" {
		headSHA = "HEAD"
	}
	resolvedHead, err := dd.resolveRef(headSHA)
	if err != nil {
		return nil, fmt.Errorf("resolve head SHA: %w", err)
	}
	resolvedBase := baseSHA
	if resolvedBase == "" {
		resolvedBase = emptyTreeSHA
	} else {
		resolvedBase, err = dd.resolveRef(baseSHA)
		if err != nil {
			return nil, fmt.Errorf("resolve base SHA: %w", err)
		}
	}

	delta := &Delta{
		BaseSHA: resolvedBase,
		HeadSHA: resolvedHead,
		Renamed: map[string]string{},
	}

	cmd := exec.Command("git", "diff", "--name-status", "-M", resolvedBase, resolvedHead)
	cmd.Dir = dd.repoPath
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git diff failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("git diff: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status, paths := parts[0], parts[1:]
		for i, p := range paths {
			paths[i] = unquoteGitPath(p)
		}
		switch status[0] {
		case 'A':
			delta.Added = append(delta.Added, paths[0])
		case 'M':
			delta.Modified = append(delta.Modified, paths[0])
		case 'D':
			delta.Deleted = append(delta.Deleted, paths[0])
		case 'R':
			if len(paths) >= 2 {
				delta.Renamed[paths[0]] = paths[1]
			}
		case 'C':
			if len(paths) >= 2 {
				delta.Added = append(delta.Added, paths[1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse git diff: %w", err)
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Deleted)

	allSet := map[string]bool{}
	for _, p := range delta.Added {
		allSet[p] = true
	}
	for _, p := range delta.Modified {
		allSet[p] = true
	}
	for _, p := range delta.Deleted {
		allSet[p] = true
	}
	for oldPath, newPath := range delta.Renamed {
		allSet[oldPath] = true
		allSet[newPath] = true
	}
	for p := range allSet {
		delta.All = append(delta.All, p)
	}
	sort.Strings(delta.All)

	dd.logger.Info("delta.detect.complete",
		"base_sha", shortSHA(resolvedBase),
		"head_sha", shortSHA(resolvedHead),
		"added", len(delta.Added),
		"modified", len(delta.Modified),
		"deleted", len(delta.Deleted),
		"renamed", len(delta.Renamed),
	)
	return delta, nil
}

// unquoteGitPath removes quotes and escape sequences from git paths.
func unquoteGitPath(path string) string {
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		unquoted := path[1 : len(path)-1]
		unquoted = strings.ReplaceAll(unquoted, "\\n", "\n")
		unquoted = strings.ReplaceAll(unquoted, "\\t", "\t")
		unquoted = strings.ReplaceAll(unquoted, "\\\\", "\\")
		unquoted = strings.ReplaceAll(unquoted, "\\\"", "\"")
		return unquoted
	}
	return path
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// ResyncResult summarizes an incremental resync.
type ResyncResult struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
	Renamed  int `json:"renamed"`
}

// Resync classifies everything that changed since the last indexed
// commit via git and feeds each path through OnFileChange. Only usable
// inside a git repository; callers without one should FullScan instead.
func (e *Engine) Resync(ctx context.Context) (*ResyncResult, error) {
	dd := NewDeltaDetector(e.root, e.logger)
	if !dd.IsGitRepository() {
		return nil, fmt.Errorf("not a git repository: %s", e.root)
	}

	base, _ := e.readLastCommit()
	delta, err := dd.Detect(base, "")
	if err != nil {
		return nil, err
	}

	sc, err := e.newScanner()
	if err != nil {
		return nil, err
	}

	result := &ResyncResult{}
	for _, p := range delta.Deleted {
		if err := e.OnFileChange(ctx, p, FileDeleted); err != nil {
			e.logger.Warn("resync.delete", "path", p, "err", err)
			continue
		}
		result.Deleted++
	}
	for oldPath, newPath := range delta.Renamed {
		if err := e.OnFileChange(ctx, oldPath, FileDeleted); err != nil {
			e.logger.Warn("resync.rename.delete", "path", oldPath, "err", err)
		}
		if !sc.Accepts(newPath) {
			continue
		}
		if err := e.OnFileChange(ctx, newPath, FileCreated); err != nil {
			e.logger.Warn("resync.rename.create", "path", newPath, "err", err)
			continue
		}
		result.Renamed++
	}
	for _, p := range delta.Added {
		if !sc.Accepts(p) {
			continue
		}
		if err := e.OnFileChange(ctx, p, FileCreated); err != nil {
			e.logger.Warn("resync.create", "path", p, "err", err)
			continue
		}
		result.Added++
	}
	for _, p := range delta.Modified {
		if !sc.Accepts(p) {
			continue
		}
		if err := e.OnFileChange(ctx, p, FileModified); err != nil {
			e.logger.Warn("resync.modify", "path", p, "err", err)
			continue
		}
		result.Modified++
	}

	e.recordHeadCommit()
	return result, nil
}

// recordHeadCommit persists the current HEAD for the next incremental
// resync. Outside a git repository this is a silent no-op.
func (e *Engine) recordHeadCommit() {
	dd := NewDeltaDetector(e.root, e.logger)
	if !dd.IsGitRepository() {
		return
	}
	sha, err := dd.HeadSHA()
	if err != nil {
		e.logger.Debug("engine.head_commit", "err", err)
		return
	}
	path := filepath.Join(e.root, e.cfg.StateDir, lastCommitFileName)
	if err := os.WriteFile(path, []byte(sha+"\n"), 0644); err != nil {
		e.logger.Warn("engine.head_commit.write", "err", err)
	}
}

func (e *Engine) readLastCommit() (string, error) {
	path := filepath.Join(e.root, e.cfg.StateDir, lastCommitFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
