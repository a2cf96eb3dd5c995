// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/AleutianAI/codetree/services/codetree/ast"
	"github.com/AleutianAI/codetree/services/codetree/discovery"
)

// Suffix probe lists per language family, in priority order.
var (
	pythonSuffixes = []string{".py", ".pyi"}
	javaSuffixes   = []string{".java"}
	jsSuffixes     = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".mts", ".cts"}
)

// Resolver links raw references to inventory files.
//
// Description:
//
//	Resolver indexes the file inventory once and then resolves each raw
//	reference through a fixed cascade: relative-path form, then
//	package/module-path form, then a name-only fallback, and finally
//	classification as external. Ambiguity at any step yields an
//	unresolved outcome, never an arbitrary pick. Resolution is a pure
//	function of (inventory, references), independent of the order files
//	were analyzed in.
//
// Thread Safety:
//
//	The index is immutable after NewResolver, so a Resolver is safe for
//	concurrent Resolve calls.
type Resolver struct {
	paths    map[string]struct{}
	byBase   map[string][]string
	topDirs  map[string]struct{}
	allPaths []string
}

// NewResolver indexes the inventory for resolution.
func NewResolver(files []discovery.SourceFile) *Resolver {
	r := &Resolver{
		paths:    make(map[string]struct{}, len(files)),
		byBase:   make(map[string][]string),
		topDirs:  make(map[string]struct{}),
		allPaths: make([]string, 0, len(files)),
	}
	for _, f := range files {
		r.paths[f.Path] = struct{}{}
		r.allPaths = append(r.allPaths, f.Path)

		base := path.Base(f.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
		r.byBase[base] = append(r.byBase[base], f.Path)

		if i := strings.IndexByte(f.Path, '/'); i > 0 {
			r.topDirs[f.Path[:i]] = struct{}{}
		}
	}
	return r
}

// outcome is one reference's resolution result. Target is set only for
// exact and heuristic confidence.
type outcome struct {
	target     string
	confidence Confidence
}

// Resolve builds the dependency graph from every file's raw references.
//
// Outputs:
//   - *Graph: deduplicated edges ordered by (From, To, Kind) plus per-file
//     counts of external and unresolved outcomes. Never nil.
func (r *Resolver) Resolve(ctx context.Context, analyses []FileAnalysis) *Graph {
	ctx, span := startResolveSpan(ctx, len(r.allPaths), len(analyses))
	defer span.End()

	start := time.Now()

	type edgeKey struct {
		from, to string
		kind     ast.RefKind
	}
	best := make(map[edgeKey]Confidence)
	graph := &Graph{
		Edges:       make([]Edge, 0),
		Diagnostics: make(map[string]FileDiagnostics),
	}

	for _, analysis := range analyses {
		from := analysis.File.Path
		for _, ref := range analysis.References {
			out := r.resolveReference(from, analysis.File.Language, ref)

			switch out.confidence {
			case ConfidenceExternal:
				diag := graph.Diagnostics[from]
				diag.ExternalCount++
				graph.Diagnostics[from] = diag
			case ConfidenceUnresolved:
				diag := graph.Diagnostics[from]
				diag.UnresolvedCount++
				graph.Diagnostics[from] = diag
			default:
				if out.target == from {
					// Self-references are dropped.
					continue
				}
				key := edgeKey{from: from, to: out.target, kind: ref.Kind}
				if prev, seen := best[key]; !seen || (prev == ConfidenceHeuristic && out.confidence == ConfidenceExact) {
					best[key] = out.confidence
				}
			}
		}
	}

	for key, confidence := range best {
		graph.Edges = append(graph.Edges, Edge{
			From:       key.from,
			To:         key.to,
			Kind:       key.kind,
			Confidence: confidence,
		})
	}
	sortEdges(graph.Edges)

	setResolveSpanResult(span, len(graph.Edges))
	recordResolveMetrics(time.Since(start), graph)
	return graph
}

// resolveReference runs the resolution cascade for one raw reference.
func (r *Resolver) resolveReference(from, language string, ref ast.Reference) outcome {
	spec := strings.TrimSpace(ref.Spec)
	if spec == "" {
		return outcome{confidence: ConfidenceUnresolved}
	}

	// Step 1: relative path forms.
	if language == "python" && ref.Dots > 0 {
		if out, done := r.resolvePythonRelative(from, spec, ref.Dots); done {
			return out
		}
	}
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		if out, done := r.resolveRelativePath(from, spec, language); done {
			return out
		}
	}
	if strings.HasPrefix(spec, "/") {
		if target, ok := r.probeSuffixes(strings.TrimPrefix(spec, "/"), language); ok {
			return outcome{target: target, confidence: ConfidenceExact}
		}
	}

	// Step 2: package/module-path forms.
	if out, done := r.resolvePackagePath(from, spec, language); done {
		return out
	}

	// Step 3: name-only fallback.
	if out, done := r.resolveByName(spec); done {
		return out
	}

	// Step 4: nothing in the inventory matches.
	return outcome{confidence: ConfidenceExternal}
}

// resolvePythonRelative handles dotted-relative imports. One dot anchors at
// the referencing file's package, each further dot ascends one package.
func (r *Resolver) resolvePythonRelative(from, spec string, dots int) (outcome, bool) {
	dir := path.Dir(from)
	for i := 1; i < dots; i++ {
		if dir == "." {
			// Walked above the repository root.
			return outcome{confidence: ConfidenceUnresolved}, true
		}
		dir = path.Dir(dir)
	}

	name := strings.TrimLeft(spec, ".")
	if name == "" {
		// `from . import x`: the target is the package itself.
		if target, ok := r.lookup(path.Join(dir, "__init__.py")); ok {
			return outcome{target: target, confidence: ConfidenceExact}, true
		}
		return outcome{confidence: ConfidenceUnresolved}, true
	}

	base := path.Join(dir, strings.ReplaceAll(name, ".", "/"))
	if target, ok := r.probeSuffixes(base, "python"); ok {
		return outcome{target: target, confidence: ConfidenceExact}, true
	}
	// Fall through to the name-only fallback.
	return outcome{}, false
}

// resolveRelativePath handles ./ and ../ specifiers against the referencing
// file's directory.
func (r *Resolver) resolveRelativePath(from, spec, language string) (outcome, bool) {
	joined := path.Join(path.Dir(from), spec)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		// Escapes the repository; nothing in the inventory can match.
		return outcome{confidence: ConfidenceExternal}, true
	}
	if target, ok := r.probeSuffixes(joined, language); ok {
		return outcome{target: target, confidence: ConfidenceExact}, true
	}
	return outcome{}, false
}

// resolvePackagePath handles absolute dotted Python paths, Java fully
// qualified names, and bare JS/TS specifiers that address repository
// directories.
func (r *Resolver) resolvePackagePath(from, spec, language string) (outcome, bool) {
	switch language {
	case "python":
		base := strings.ReplaceAll(spec, ".", "/")
		if target, ok := r.probeSuffixes(base, "python"); ok {
			return outcome{target: target, confidence: ConfidenceExact}, true
		}
		return r.prefixHeuristic(spec, ".")

	case "java":
		if strings.HasSuffix(spec, ".*") {
			return r.resolveJavaWildcard(spec), true
		}
		if !strings.Contains(spec, ".") {
			// Simple names (extends/implements clauses) are not package
			// paths; the name-only fallback handles them.
			return outcome{}, false
		}
		mapped := strings.ReplaceAll(spec, ".", "/") + ".java"
		candidates := r.pathsWithSuffix(mapped)
		switch len(candidates) {
		case 1:
			return outcome{target: candidates[0], confidence: ConfidenceExact}, true
		case 0:
			return outcome{}, false
		default:
			return outcome{confidence: ConfidenceUnresolved}, true
		}

	case "javascript", "typescript", "jsx", "tsx":
		if rest, ok := strings.CutPrefix(spec, "@/"); ok {
			// Build-tool alias for the source root.
			for _, base := range []string{path.Join("src", rest), rest} {
				if target, found := r.probeSuffixes(base, language); found {
					return outcome{target: target, confidence: ConfidenceExact}, true
				}
			}
			return outcome{}, false
		}
		if strings.HasPrefix(spec, "@") {
			// Scoped npm package.
			return outcome{}, false
		}
		first := spec
		if i := strings.IndexByte(spec, '/'); i > 0 {
			first = spec[:i]
		}
		if _, ok := r.topDirs[first]; !ok {
			return outcome{}, false
		}
		if target, found := r.probeSuffixes(spec, language); found {
			return outcome{target: target, confidence: ConfidenceExact}, true
		}
		return r.prefixHeuristic(spec, "/")
	}
	return outcome{}, false
}

// prefixHeuristic links a dotted or slashed specifier whose leading segment
// is a repository top-level directory but whose full path does not resolve:
// the final segment is matched by file name inside that directory subtree.
func (r *Resolver) prefixHeuristic(spec, sep string) (outcome, bool) {
	segments := strings.Split(spec, sep)
	if len(segments) < 2 {
		return outcome{}, false
	}
	first := segments[0]
	if _, ok := r.topDirs[first]; !ok {
		return outcome{}, false
	}

	last := segments[len(segments)-1]
	var candidates []string
	for _, p := range r.byBase[last] {
		if strings.HasPrefix(p, first+"/") {
			candidates = append(candidates, p)
		}
	}
	switch len(candidates) {
	case 1:
		return outcome{target: candidates[0], confidence: ConfidenceHeuristic}, true
	case 0:
		return outcome{}, false
	default:
		return outcome{confidence: ConfidenceUnresolved}, true
	}
}

// resolveJavaWildcard handles `import a.b.*`. The wildcard names a package,
// not a file; it is linked only when the package directory holds exactly
// one source file, otherwise the import stays informational.
func (r *Resolver) resolveJavaWildcard(spec string) outcome {
	dir := strings.ReplaceAll(strings.TrimSuffix(spec, ".*"), ".", "/")

	var candidates []string
	for _, p := range r.allPaths {
		pdir := path.Dir(p)
		if pdir == dir || strings.HasSuffix(pdir, "/"+dir) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 1 {
		return outcome{target: candidates[0], confidence: ConfidenceHeuristic}
	}
	return outcome{confidence: ConfidenceExternal}
}

// resolveByName searches the whole inventory for files whose base name
// equals the reference's final path segment.
func (r *Resolver) resolveByName(spec string) (outcome, bool) {
	last := spec
	if i := strings.LastIndexAny(spec, "./"); i >= 0 && i < len(spec)-1 {
		// Final segment of a dotted or slashed specifier.
		last = spec[strings.LastIndexAny(spec, "./")+1:]
	}
	last = strings.TrimSuffix(last, path.Ext(last))
	if last == "" {
		return outcome{}, false
	}

	candidates := r.byBase[last]
	switch len(candidates) {
	case 1:
		return outcome{target: candidates[0], confidence: ConfidenceHeuristic}, true
	case 0:
		return outcome{}, false
	default:
		return outcome{confidence: ConfidenceUnresolved}, true
	}
}

// probeSuffixes tries the candidate suffix list for a base path: the path
// as written, each family extension, then the directory-as-package forms.
func (r *Resolver) probeSuffixes(base, language string) (string, bool) {
	base = path.Clean(base)
	if target, ok := r.lookup(base); ok {
		return target, true
	}

	suffixes := suffixesFor(language)
	for _, ext := range suffixes {
		if target, ok := r.lookup(base + ext); ok {
			return target, true
		}
	}

	switch language {
	case "python":
		if target, ok := r.lookup(path.Join(base, "__init__.py")); ok {
			return target, true
		}
	case "javascript", "typescript", "jsx", "tsx":
		for _, ext := range suffixes {
			if target, ok := r.lookup(path.Join(base, "index"+ext)); ok {
				return target, true
			}
		}
	}
	return "", false
}

// lookup checks one exact inventory path.
func (r *Resolver) lookup(p string) (string, bool) {
	if _, ok := r.paths[p]; ok {
		return p, true
	}
	return "", false
}

// pathsWithSuffix returns inventory paths equal to or ending with the
// mapped path. Java sources commonly live under prefixes like
// src/main/java, which suffix matching absorbs.
func (r *Resolver) pathsWithSuffix(mapped string) []string {
	var out []string
	for _, p := range r.allPaths {
		if p == mapped || strings.HasSuffix(p, "/"+mapped) {
			out = append(out, p)
		}
	}
	return out
}

// suffixesFor returns the probe extensions for a language family.
func suffixesFor(language string) []string {
	switch language {
	case "python":
		return pythonSuffixes
	case "java":
		return javaSuffixes
	case "javascript", "typescript", "jsx", "tsx":
		return jsSuffixes
	default:
		return nil
	}
}
