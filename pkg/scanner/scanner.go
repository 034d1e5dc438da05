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

package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"log/slog"
)

// DefaultStateDirName is the engine's own on-disk state directory,
// always excluded from scans.
const DefaultStateDirName = ".contextengine"

// DefaultMaxFileBytes is the per-file size cap.
const DefaultMaxFileBytes = 1 << 20 // 1 MiB

// DefaultMaxFiles bounds how many files a single scan emits.
const DefaultMaxFiles = 2000

// DefaultIncludePatterns is the fixed set of source-extension globs used
// when the caller configures none.
var DefaultIncludePatterns = []string{
	"*.go", "*.ts", "*.tsx", "*.js", "*.jsx", "*.mjs", "*.cjs",
	"*.py", "*.java", "*.rs", "*.c", "*.h", "*.cpp", "*.hpp",
	"*.rb", "*.php", "*.cs", "*.kt", "*.swift",
}

// builtinIgnoreDirs are directory names skipped regardless of any
// configured ignore file: package caches, virtual environments and build
// output.
var builtinIgnoreDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	"venv":          true,
	".venv":         true,
	"env":           true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	"dist":          true,
	"build":         true,
	"target":        true,
	".idea":         true,
	".vscode":       true,
	"coverage":      true,
}

// textExtensions is the allowlist of extensions considered analyzable
// text. Files outside it are skipped unless their extensionless basename
// is a known config file.
var textExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".mjs": true, ".cjs": true, ".py": true, ".java": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
	".rb": true, ".php": true, ".cs": true, ".kt": true, ".swift": true,
	".scala": true, ".sh": true, ".bash": true, ".sql": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".md": true, ".txt": true, ".proto": true, ".graphql": true,
	".html": true, ".css": true, ".scss": true, ".xml": true,
}

// knownConfigBasenames are extensionless files still worth indexing.
var knownConfigBasenames = map[string]bool{
	"makefile":   true,
	"dockerfile": true,
	"gemfile":    true,
	"rakefile":   true,
	"procfile":   true,
	"justfile":   true,
}

// Options configures a Scanner.
type Options struct {
	// IncludePatterns is the ordered list of globs a file must match.
	// Empty means DefaultIncludePatterns.
	IncludePatterns []string

	// ExcludePatterns are caller-supplied exclusion globs, applied with
	// the same precedence as the builtin set.
	ExcludePatterns []string

	// RespectScanIgnore loads <root>/<state-dir>/scanignore.
	RespectScanIgnore bool

	// RespectVcsIgnore loads <root>/.gitignore.
	RespectVcsIgnore bool

	// MaxFiles stops the scan after emitting this many files. Zero means
	// an empty scan.
	MaxFiles int

	// MaxFileBytes skips files larger than this. Zero means
	// DefaultMaxFileBytes.
	MaxFileBytes int64

	// StateDirName overrides DefaultStateDirName.
	StateDirName string

	Logger *slog.Logger
}

// Result is the outcome of one scan.
type Result struct {
	// Files are project-relative paths, sorted lexicographically.
	Files []string

	// Skipped counts paths rejected by size, extension, ignore rules or
	// stat failure.
	Skipped int

	// TotalScanned counts every regular file visited.
	TotalScanned int
}

// Scanner walks a project root and enumerates analyzable files.
type Scanner struct {
	root         string
	opts         Options
	logger       *slog.Logger
	includeGlobs []string
	scanIgnore   []string
	vcsIgnore    []string
}

// New builds a Scanner for the given absolute project root. Invalid globs
// in the options are a startup error.
func New(root string, opts Options) (*Scanner, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("project root must be absolute: %s", root)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StateDirName == "" {
		opts.StateDirName = DefaultStateDirName
	}
	if opts.MaxFileBytes == 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}

	includes := opts.IncludePatterns
	if len(includes) == 0 {
		includes = DefaultIncludePatterns
	}
	for _, g := range append(append([]string{}, includes...), opts.ExcludePatterns...) {
		if err := ValidateGlob(g); err != nil {
			return nil, err
		}
	}

	s := &Scanner{
		root:         root,
		opts:         opts,
		logger:       opts.Logger,
		includeGlobs: includes,
	}

	if opts.RespectScanIgnore {
		s.scanIgnore = loadIgnoreFile(filepath.Join(root, opts.StateDirName, "scanignore"))
	}
	if opts.RespectVcsIgnore {
		s.vcsIgnore = loadIgnoreFile(filepath.Join(root, ".gitignore"))
	}

	return s, nil
}

// errScanDone stops the walk early once MaxFiles is reached.
var errScanDone = errors.New("scan complete")

// Scan walks the project tree and returns the ordered file list. The
// context is checked between files; cancellation aborts the walk and
// returns ctx.Err().
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	result := &Result{}
	if s.opts.MaxFiles <= 0 {
		return result, nil
	}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Warn("scan.walk.error", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			result.Skipped++
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if s.ignoreDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		result.TotalScanned++

		if s.ignoreFile(rel) {
			result.Skipped++
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			s.logger.Warn("scan.stat.error", "path", rel, "err", infoErr)
			result.Skipped++
			return nil
		}
		if info.Size() > s.opts.MaxFileBytes {
			result.Skipped++
			return nil
		}
		if !s.isTextCandidate(rel) {
			result.Skipped++
			return nil
		}
		if !s.matchesInclude(rel) {
			result.Skipped++
			return nil
		}

		result.Files = append(result.Files, rel)
		if len(result.Files) >= s.opts.MaxFiles {
			return errScanDone
		}
		return nil
	})

	if err != nil && !errors.Is(err, errScanDone) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("walk project: %w", err)
	}

	sort.Strings(result.Files)
	s.logger.Debug("scan.complete",
		"files", len(result.Files),
		"skipped", result.Skipped,
		"total_scanned", result.TotalScanned,
	)
	return result, nil
}

// ignoreDir applies the directory-level ignore precedence: builtin set,
// then scanignore, then vcs ignore.
func (s *Scanner) ignoreDir(name, rel string) bool {
	if name == s.opts.StateDirName || builtinIgnoreDirs[name] {
		return true
	}
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	return s.matchesAny(rel, s.opts.ExcludePatterns) ||
		s.matchesAny(rel, s.scanIgnore) ||
		s.matchesAny(rel, s.vcsIgnore)
}

// ignoreFile applies the file-level ignore precedence.
func (s *Scanner) ignoreFile(rel string) bool {
	if strings.HasPrefix(rel, s.opts.StateDirName+"/") {
		return true
	}
	return s.matchesAny(rel, s.opts.ExcludePatterns) ||
		s.matchesAny(rel, s.scanIgnore) ||
		s.matchesAny(rel, s.vcsIgnore)
}

func (s *Scanner) matchesAny(rel string, globs []string) bool {
	for _, g := range globs {
		if MatchesGlob(rel, g) {
			return true
		}
	}
	return false
}

func (s *Scanner) matchesInclude(rel string) bool {
	for _, g := range s.includeGlobs {
		if MatchesGlob(rel, g) {
			return true
		}
	}
	return false
}

// Accepts reports whether a relative path would survive the scan filters
// (ignore rules, extension allowlist, include globs). File size is not
// checked; callers may pass paths that no longer exist.
func (s *Scanner) Accepts(rel string) bool {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if dir == s.opts.StateDirName || builtinIgnoreDirs[dir] || strings.HasPrefix(dir, ".") {
			return false
		}
	}
	return !s.ignoreFile(rel) && s.isTextCandidate(rel) && s.matchesInclude(rel)
}

// isTextCandidate checks the extension allowlist, falling back to the
// known-config-basename list for extensionless files.
func (s *Scanner) isTextCandidate(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	if ext != "" {
		return textExtensions[ext]
	}
	return knownConfigBasenames[strings.ToLower(filepath.Base(rel))]
}

// loadIgnoreFile reads one glob per line, skipping blanks and comments.
// A missing or unreadable file yields no patterns.
func loadIgnoreFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var globs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		globs = append(globs, strings.TrimSuffix(line, "/"))
	}
	return globs
}
