// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery walks a repository root and produces a deterministic,
// language-tagged inventory of source files.
//
// The walk is lexicographic by relative path, prunes ignored directories
// without descending into them, follows directory symlinks while guarding
// against cycles, and degrades per-entry errors to skip records. Only an
// unreadable or missing root is fatal.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/AleutianAI/codetree/services/codetree/ast"
)

// DefaultIgnorePatterns are directory and file globs pruned on every scan
// unless the caller replaces them.
var DefaultIgnorePatterns = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
	".idea",
	".vscode",
	"dist",
	"build",
	"target",
	"*.min.js",
}

// SourceFile is one discovered file in the inventory.
type SourceFile struct {
	// Path is repo-relative and uses forward slashes on every platform.
	Path      string `json:"path"`
	Language  string `json:"language"`
	SizeBytes int64  `json:"size_bytes"`
}

// SkipRecord notes a file or directory the scan saw but did not include.
type SkipRecord struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Repository is the ordered result of a scan.
type Repository struct {
	Root    string       `json:"root"`
	Files   []SourceFile `json:"files"`
	Skipped []SkipRecord `json:"skipped,omitempty"`
}

// DiscoveryError is the only fatal failure mode of a scan: the root is
// missing or unreadable. Everything below the root degrades to SkipRecords.
type DiscoveryError struct {
	Root  string
	Cause error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed for root %q: %v", e.Root, e.Cause)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// ScannerOption configures a Scanner instance.
type ScannerOption func(*Scanner)

// WithIncludeExtensions restricts the scan to files with the given
// extensions (with leading dot, e.g. ".py"). An empty set means every
// extension with a known language is included.
func WithIncludeExtensions(exts []string) ScannerOption {
	return func(s *Scanner) {
		if len(exts) == 0 {
			return
		}
		s.includeExts = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.includeExts[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// WithIgnorePatterns replaces the default ignore globs. Patterns match
// against both the entry base name and the repo-relative path.
func WithIgnorePatterns(patterns []string) ScannerOption {
	return func(s *Scanner) {
		s.ignoreSource = patterns
	}
}

// WithMaxFileSize skips files larger than the given byte count. Zero or
// negative disables the limit.
func WithMaxFileSize(bytes int64) ScannerOption {
	return func(s *Scanner) {
		s.maxFileSize = bytes
	}
}

// WithGitignore controls whether a .gitignore at the root also prunes the
// scan. Enabled by default.
func WithGitignore(enabled bool) ScannerOption {
	return func(s *Scanner) {
		s.useGitignore = enabled
	}
}

// Scanner performs repository file discovery.
//
// Description:
//
//	Scanner walks a root directory and returns the ordered inventory the
//	rest of the pipeline consumes. Ordering is lexicographic by relative
//	path so repeated scans of an unchanged tree are identical. Ignored
//	directories are pruned entirely. Symlinked directories are followed
//	once; a symlink whose resolved target was already visited is skipped.
//
// Thread Safety:
//
//	A Scanner is safe for concurrent use; per-scan state lives in the
//	walk, not on the Scanner.
type Scanner struct {
	includeExts  map[string]struct{}
	ignoreSource []string
	maxFileSize  int64
	useGitignore bool
}

// NewScanner creates a Scanner with the given options.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		ignoreSource: DefaultIgnorePatterns,
		useGitignore: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// walkState carries per-scan state through the recursive walk.
type walkState struct {
	root     string
	ignores  []glob.Glob
	gitign   *gitignore.GitIgnore
	visited  map[string]struct{}
	repo     *Repository
	maxSize  int64
	includes map[string]struct{}
}

// Scan walks root and returns the repository inventory.
//
// Outputs:
//   - *Repository: ordered files plus skip records. Never nil on success.
//   - error: *DiscoveryError when the root is missing or unreadable, or a
//     context error when the walk is canceled.
func (s *Scanner) Scan(ctx context.Context, root string) (*Repository, error) {
	ctx, span := startScanSpan(ctx, root)
	defer span.End()

	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		recordScanMetrics(time.Since(start), nil, err)
		return nil, &DiscoveryError{Root: root, Cause: err}
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		recordScanMetrics(time.Since(start), nil, err)
		return nil, &DiscoveryError{Root: root, Cause: err}
	}
	if !info.IsDir() {
		recordScanMetrics(time.Since(start), nil, os.ErrInvalid)
		return nil, &DiscoveryError{Root: root, Cause: fmt.Errorf("not a directory")}
	}

	ignores, err := compileIgnores(s.ignoreSource)
	if err != nil {
		recordScanMetrics(time.Since(start), nil, err)
		return nil, &DiscoveryError{Root: root, Cause: err}
	}

	state := &walkState{
		root:     absRoot,
		ignores:  ignores,
		visited:  make(map[string]struct{}),
		repo:     &Repository{Root: absRoot, Files: make([]SourceFile, 0, 64)},
		maxSize:  s.maxFileSize,
		includes: s.includeExts,
	}

	if s.useGitignore {
		if gi, giErr := gitignore.CompileIgnoreFile(filepath.Join(absRoot, ".gitignore")); giErr == nil {
			state.gitign = gi
		}
	}

	if resolved, rErr := filepath.EvalSymlinks(absRoot); rErr == nil {
		state.visited[resolved] = struct{}{}
	}

	if err := s.walk(ctx, state, absRoot); err != nil {
		recordScanMetrics(time.Since(start), nil, err)
		return nil, err
	}

	// The walk is already near-sorted; this pins strict lexicographic order
	// even where a directory separator sorts differently than siblings.
	sort.Slice(state.repo.Files, func(i, j int) bool {
		return state.repo.Files[i].Path < state.repo.Files[j].Path
	})

	setScanSpanResult(span, len(state.repo.Files), len(state.repo.Skipped))
	recordScanMetrics(time.Since(start), state.repo, nil)

	slog.Info("repository scan complete",
		slog.String("root", absRoot),
		slog.Int("files", len(state.repo.Files)),
		slog.Int("skipped", len(state.repo.Skipped)))

	return state.repo, nil
}

// walk descends one directory. Entries are processed in sorted order so the
// resulting inventory is lexicographic without a final sort.
func (s *Scanner) walk(ctx context.Context, state *walkState, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if dir == state.root {
			return &DiscoveryError{Root: state.root, Cause: err}
		}
		state.repo.Skipped = append(state.repo.Skipped, SkipRecord{
			Path:   s.relPath(state, dir),
			Reason: fmt.Sprintf("unreadable directory: %v", err),
		})
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		rel := s.relPath(state, full)

		if s.isIgnored(state, rel, entry.Name(), entry.IsDir()) {
			continue
		}

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			resolved, rErr := filepath.EvalSymlinks(full)
			if rErr != nil {
				state.repo.Skipped = append(state.repo.Skipped, SkipRecord{
					Path:   rel,
					Reason: fmt.Sprintf("broken symlink: %v", rErr),
				})
				continue
			}
			target, sErr := os.Stat(resolved)
			if sErr != nil {
				state.repo.Skipped = append(state.repo.Skipped, SkipRecord{
					Path:   rel,
					Reason: fmt.Sprintf("unreadable symlink target: %v", sErr),
				})
				continue
			}
			if target.IsDir() {
				if _, seen := state.visited[resolved]; seen {
					// Symlink cycle or duplicate subtree.
					continue
				}
				state.visited[resolved] = struct{}{}
				isDir = true
			}
		}

		if isDir {
			if entry.Type()&os.ModeSymlink == 0 {
				if resolved, rErr := filepath.EvalSymlinks(full); rErr == nil {
					state.visited[resolved] = struct{}{}
				}
			}
			if err := s.walk(ctx, state, full); err != nil {
				return err
			}
			continue
		}

		s.addFile(state, full, rel, entry)
	}
	return nil
}

// addFile filters one regular file and appends it to the inventory.
func (s *Scanner) addFile(state *walkState, full, rel string, entry os.DirEntry) {
	ext := strings.ToLower(filepath.Ext(rel))
	if state.includes != nil {
		if _, ok := state.includes[ext]; !ok {
			return
		}
	}

	language := ast.LanguageForExtension(ext)
	if language == "unknown" && state.includes == nil {
		return
	}

	info, err := entry.Info()
	if err != nil {
		// Symlinked files resolve through os.Stat instead.
		info, err = os.Stat(full)
	}
	if err != nil {
		state.repo.Skipped = append(state.repo.Skipped, SkipRecord{
			Path:   rel,
			Reason: fmt.Sprintf("stat failed: %v", err),
		})
		return
	}

	if state.maxSize > 0 && info.Size() > state.maxSize {
		state.repo.Skipped = append(state.repo.Skipped, SkipRecord{
			Path:   rel,
			Reason: fmt.Sprintf("file size %d exceeds limit %d", info.Size(), state.maxSize),
		})
		return
	}

	state.repo.Files = append(state.repo.Files, SourceFile{
		Path:      rel,
		Language:  language,
		SizeBytes: info.Size(),
	})
}

// isIgnored checks the configured globs and the root .gitignore.
func (s *Scanner) isIgnored(state *walkState, rel, base string, isDir bool) bool {
	for _, g := range state.ignores {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	if state.gitign != nil {
		probe := rel
		if isDir {
			probe = rel + "/"
		}
		if state.gitign.MatchesPath(probe) {
			return true
		}
	}
	return false
}

// relPath returns the repo-relative, slash-separated path for a walk entry.
func (s *Scanner) relPath(state *walkState, full string) string {
	rel, err := filepath.Rel(state.root, full)
	if err != nil {
		return filepath.ToSlash(full)
	}
	return filepath.ToSlash(rel)
}

// compileIgnores compiles glob patterns, rejecting the scan configuration
// when one is malformed.
func compileIgnores(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}
