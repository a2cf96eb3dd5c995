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
	"testing"

	"github.com/AleutianAI/codetree/services/codetree/ast"
	"github.com/AleutianAI/codetree/services/codetree/discovery"
)

func inventory(paths map[string]string) []discovery.SourceFile {
	files := make([]discovery.SourceFile, 0, len(paths))
	for p, lang := range paths {
		files = append(files, discovery.SourceFile{Path: p, Language: lang})
	}
	return files
}

func analysisFor(files []discovery.SourceFile, path string, refs ...ast.Reference) FileAnalysis {
	for _, f := range files {
		if f.Path == path {
			return FileAnalysis{File: f, References: refs}
		}
	}
	panic("unknown path " + path)
}

func TestResolver_PythonRelativeExact(t *testing.T) {
	files := inventory(map[string]string{
		"pkg/a.py": "python",
		"pkg/b.py": "python",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "pkg/a.py", ast.Reference{Spec: ".b", Kind: ast.RefKindImport, Dots: 1}),
	})

	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(g.Edges), g.Edges)
	}
	edge := g.Edges[0]
	if edge.From != "pkg/a.py" || edge.To != "pkg/b.py" {
		t.Errorf("edge = %+v", edge)
	}
	if edge.Confidence != ConfidenceExact {
		t.Errorf("confidence = %q, want exact", edge.Confidence)
	}
}

func TestResolver_PythonRelativePackageAndParent(t *testing.T) {
	files := inventory(map[string]string{
		"pkg/__init__.py":     "python",
		"pkg/sub/__init__.py": "python",
		"pkg/sub/c.py":        "python",
		"pkg/models.py":       "python",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "pkg/sub/c.py",
			ast.Reference{Spec: ".", Kind: ast.RefKindImport, Dots: 1},
			ast.Reference{Spec: "..models", Kind: ast.RefKindImport, Dots: 2},
		),
	})

	want := map[string]Confidence{
		"pkg/sub/__init__.py": ConfidenceExact,
		"pkg/models.py":       ConfidenceExact,
	}
	if len(g.Edges) != len(want) {
		t.Fatalf("got %d edges, want %d: %+v", len(g.Edges), len(want), g.Edges)
	}
	for _, edge := range g.Edges {
		conf, ok := want[edge.To]
		if !ok {
			t.Errorf("unexpected edge target %q", edge.To)
			continue
		}
		if edge.Confidence != conf {
			t.Errorf("edge to %q confidence = %q, want %q", edge.To, edge.Confidence, conf)
		}
	}
}

func TestResolver_ExternalCounts(t *testing.T) {
	files := inventory(map[string]string{
		"main.js": "javascript",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "main.js", ast.Reference{Spec: "react", Kind: ast.RefKindImport}),
	})

	if len(g.Edges) != 0 {
		t.Fatalf("got %d edges, want 0: %+v", len(g.Edges), g.Edges)
	}
	if g.Diagnostics["main.js"].ExternalCount != 1 {
		t.Errorf("external count = %d, want 1", g.Diagnostics["main.js"].ExternalCount)
	}
}

func TestResolver_AmbiguityIsNeverGuessed(t *testing.T) {
	files := inventory(map[string]string{
		"a/foo.py":  "python",
		"b/foo.py":  "python",
		"caller.py": "python",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "caller.py", ast.Reference{Spec: "foo", Kind: ast.RefKindImport}),
	})

	if len(g.Edges) != 0 {
		t.Fatalf("ambiguous reference produced edges: %+v", g.Edges)
	}
	if g.Diagnostics["caller.py"].UnresolvedCount != 1 {
		t.Errorf("unresolved count = %d, want 1", g.Diagnostics["caller.py"].UnresolvedCount)
	}
}

func TestResolver_NameOnlyFallbackSingleCandidate(t *testing.T) {
	files := inventory(map[string]string{
		"model/User.java":    "java",
		"service/Users.java": "java",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "service/Users.java", ast.Reference{Spec: "User", Kind: ast.RefKindExtends}),
	})

	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(g.Edges), g.Edges)
	}
	edge := g.Edges[0]
	if edge.To != "model/User.java" || edge.Confidence != ConfidenceHeuristic {
		t.Errorf("edge = %+v, want heuristic link to model/User.java", edge)
	}
	if edge.Kind != ast.RefKindExtends {
		t.Errorf("kind = %q, want extends", edge.Kind)
	}
}

func TestResolver_JavaQualifiedImport(t *testing.T) {
	files := inventory(map[string]string{
		"src/main/java/com/example/util/Text.java": "java",
		"src/main/java/com/example/app/Main.java":  "java",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "src/main/java/com/example/app/Main.java",
			ast.Reference{Spec: "com.example.util.Text", Kind: ast.RefKindImport},
			ast.Reference{Spec: "java.util.List", Kind: ast.RefKindImport},
		),
	})

	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(g.Edges), g.Edges)
	}
	if g.Edges[0].To != "src/main/java/com/example/util/Text.java" || g.Edges[0].Confidence != ConfidenceExact {
		t.Errorf("edge = %+v", g.Edges[0])
	}
	if g.Diagnostics["src/main/java/com/example/app/Main.java"].ExternalCount != 1 {
		t.Errorf("diagnostics = %+v, want one external for java.util.List",
			g.Diagnostics["src/main/java/com/example/app/Main.java"])
	}
}

func TestResolver_JavaWildcard(t *testing.T) {
	files := inventory(map[string]string{
		"src/com/example/util/Text.java": "java",
		"src/com/example/io/A.java":      "java",
		"src/com/example/io/B.java":      "java",
		"src/com/example/Main.java":      "java",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "src/com/example/Main.java",
			ast.Reference{Spec: "com.example.util.*", Kind: ast.RefKindImport},
			ast.Reference{Spec: "com.example.io.*", Kind: ast.RefKindImport},
		),
	})

	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(g.Edges), g.Edges)
	}
	if g.Edges[0].To != "src/com/example/util/Text.java" || g.Edges[0].Confidence != ConfidenceHeuristic {
		t.Errorf("edge = %+v", g.Edges[0])
	}
	if g.Diagnostics["src/com/example/Main.java"].ExternalCount != 1 {
		t.Errorf("multi-file wildcard should stay informational: %+v", g.Diagnostics)
	}
}

func TestResolver_JSRelativeAndIndex(t *testing.T) {
	files := inventory(map[string]string{
		"src/app.js":              "javascript",
		"src/util/format.ts":      "typescript",
		"src/components/index.js": "javascript",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "src/app.js",
			ast.Reference{Spec: "./util/format", Kind: ast.RefKindImport},
			ast.Reference{Spec: "./components", Kind: ast.RefKindImport},
			ast.Reference{Spec: "../outside/thing", Kind: ast.RefKindImport},
		),
	})

	targets := make(map[string]Confidence, len(g.Edges))
	for _, edge := range g.Edges {
		targets[edge.To] = edge.Confidence
	}
	if targets["src/util/format.ts"] != ConfidenceExact {
		t.Errorf("sibling-extension probe failed: %+v", g.Edges)
	}
	if targets["src/components/index.js"] != ConfidenceExact {
		t.Errorf("directory-as-package probe failed: %+v", g.Edges)
	}
	if g.Diagnostics["src/app.js"].ExternalCount != 1 {
		t.Errorf("reference escaping the root should be external: %+v", g.Diagnostics)
	}
}

func TestResolver_JSAliasAndTopDir(t *testing.T) {
	files := inventory(map[string]string{
		"src/data/repo.ts": "typescript",
		"lib/log.js":       "javascript",
		"src/main.ts":      "typescript",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "src/main.ts",
			ast.Reference{Spec: "@/data/repo", Kind: ast.RefKindImport},
			ast.Reference{Spec: "lib/log", Kind: ast.RefKindImport},
			ast.Reference{Spec: "@scope/pkg", Kind: ast.RefKindImport},
		),
	})

	targets := make(map[string]Confidence, len(g.Edges))
	for _, edge := range g.Edges {
		targets[edge.To] = edge.Confidence
	}
	if targets["src/data/repo.ts"] != ConfidenceExact {
		t.Errorf("@/ alias not resolved: %+v", g.Edges)
	}
	if targets["lib/log.js"] != ConfidenceExact {
		t.Errorf("top-level-dir specifier not resolved: %+v", g.Edges)
	}
	if g.Diagnostics["src/main.ts"].ExternalCount != 1 {
		t.Errorf("scoped package should be external: %+v", g.Diagnostics)
	}
}

func TestResolver_SelfEdgesDropped(t *testing.T) {
	files := inventory(map[string]string{
		"pkg/a.py": "python",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "pkg/a.py", ast.Reference{Spec: ".a", Kind: ast.RefKindImport, Dots: 1}),
	})

	if len(g.Edges) != 0 {
		t.Errorf("self-edge not dropped: %+v", g.Edges)
	}
}

func TestResolver_DedupeAndOrdering(t *testing.T) {
	files := inventory(map[string]string{
		"pkg/a.py": "python",
		"pkg/b.py": "python",
		"pkg/c.py": "python",
	})
	r := NewResolver(files)

	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "pkg/a.py",
			ast.Reference{Spec: ".c", Kind: ast.RefKindImport, Dots: 1},
			ast.Reference{Spec: ".b", Kind: ast.RefKindImport, Dots: 1},
			ast.Reference{Spec: ".b", Kind: ast.RefKindImport, Dots: 1, Line: 40},
		),
	})

	if len(g.Edges) != 2 {
		t.Fatalf("duplicates not collapsed: %+v", g.Edges)
	}
	if g.Edges[0].To != "pkg/b.py" || g.Edges[1].To != "pkg/c.py" {
		t.Errorf("edges not ordered by (from, to, kind): %+v", g.Edges)
	}
}

func TestResolver_PrefixHeuristic(t *testing.T) {
	files := inventory(map[string]string{
		"mypkg/deep/nested/engine.py": "python",
		"mypkg/main.py":               "python",
	})
	r := NewResolver(files)

	// The dotted path mypkg.core.engine does not exist as written, but the
	// top segment is a repo directory and exactly one file matches the
	// final segment by name.
	g := r.Resolve(context.Background(), []FileAnalysis{
		analysisFor(files, "mypkg/main.py",
			ast.Reference{Spec: "mypkg.core.engine", Kind: ast.RefKindImport}),
	})

	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(g.Edges), g.Edges)
	}
	if g.Edges[0].To != "mypkg/deep/nested/engine.py" || g.Edges[0].Confidence != ConfidenceHeuristic {
		t.Errorf("edge = %+v", g.Edges[0])
	}
}

func TestGraph_DependentCounts(t *testing.T) {
	g := &Graph{Edges: []Edge{
		{From: "a.py", To: "c.py", Kind: ast.RefKindImport, Confidence: ConfidenceExact},
		{From: "b.py", To: "c.py", Kind: ast.RefKindImport, Confidence: ConfidenceExact},
		{From: "b.py", To: "c.py", Kind: ast.RefKindExtends, Confidence: ConfidenceHeuristic},
	}}

	counts := g.DependentCounts()
	if counts["c.py"] != 2 {
		t.Errorf("dependents of c.py = %d, want 2 (distinct sources)", counts["c.py"])
	}
}
