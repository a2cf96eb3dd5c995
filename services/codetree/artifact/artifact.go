// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifact assembles per-file analysis results and the resolved
// dependency graph into the versioned output structure.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/codetree/services/codetree/ast"
	"github.com/AleutianAI/codetree/services/codetree/discovery"
	"github.com/AleutianAI/codetree/services/codetree/graph"
)

// SchemaVersion identifies the artifact layout. Consumers reject versions
// they do not understand.
const SchemaVersion = "1.0"

// FileEntry is one analyzed file in the artifact.
type FileEntry struct {
	Path                  string                `json:"path"`
	Language              string                `json:"language"`
	Summary               string                `json:"summary,omitempty"`
	Symbols               []*ast.Symbol         `json:"symbols"`
	DependencyDiagnostics graph.FileDiagnostics `json:"dependency_diagnostics"`
	DependentCount        int                   `json:"dependent_count"`
	ParseDiagnostic       string                `json:"parse_diagnostic,omitempty"`
}

// Metadata describes one assembly run.
type Metadata struct {
	RunID               string `json:"run_id"`
	BuiltAtMilli        int64  `json:"built_at_milli"`
	FileCount           int    `json:"file_count"`
	DependencyEdgeCount int    `json:"dependency_edge_count"`
}

// Artifact is the complete output of one pipeline run. File order mirrors
// discovery order; edges are ordered by (from, to, kind). Everything except
// Metadata is deterministic for an unchanged input tree.
type Artifact struct {
	SchemaVersion string       `json:"schema_version"`
	RepoRoot      string       `json:"repo_root"`
	Files         []FileEntry  `json:"files"`
	Dependencies  []graph.Edge `json:"dependencies"`
	Metadata      Metadata     `json:"metadata"`
	Errors        []string     `json:"errors,omitempty"`
}

// Input pairs one inventory file with its analysis result. Result is nil
// when the file's content never reached an analyzer (read failure); the
// entry still appears in the artifact.
type Input struct {
	File   discovery.SourceFile
	Result *ast.ParseResult
}

// Assemble merges analysis results and the dependency graph into the final
// artifact. Inputs must already be in discovery order; Assemble preserves
// it.
func Assemble(repoRoot string, inputs []Input, g *graph.Graph, runErrors []string) *Artifact {
	dependents := g.DependentCounts()

	allErrors := append([]string(nil), runErrors...)

	files := make([]FileEntry, 0, len(inputs))
	for _, in := range inputs {
		entry := FileEntry{
			Path:                  in.File.Path,
			Language:              in.File.Language,
			Symbols:               []*ast.Symbol{},
			DependencyDiagnostics: g.Diagnostics[in.File.Path],
			DependentCount:        dependents[in.File.Path],
		}
		if in.Result != nil {
			entry.Symbols = in.Result.Symbols
			entry.ParseDiagnostic = in.Result.Diagnostic
			entry.Summary = summarize(in.File.Language, in.Result)
		}
		if entry.ParseDiagnostic != "" {
			// Per-file diagnostics also aggregate at the top for triage.
			allErrors = append(allErrors, fmt.Sprintf("%s: %s", entry.Path, entry.ParseDiagnostic))
		}
		files = append(files, entry)
	}

	return &Artifact{
		SchemaVersion: SchemaVersion,
		RepoRoot:      repoRoot,
		Files:         files,
		Dependencies:  g.Edges,
		Metadata: Metadata{
			RunID:               uuid.NewString(),
			BuiltAtMilli:        time.Now().UnixMilli(),
			FileCount:           len(files),
			DependencyEdgeCount: len(g.Edges),
		},
		Errors: allErrors,
	}
}

// summarize builds a one-line description of a file from its symbol tree:
// the module docstring's first line when present, otherwise symbol counts.
func summarize(language string, result *ast.ParseResult) string {
	if module := result.ModuleRoot(); module != nil && module.Doc != "" {
		if line, _, _ := strings.Cut(module.Doc, "\n"); strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}

	var classes, interfaces, functions, methods, components int
	var count func(syms []*ast.Symbol)
	count = func(syms []*ast.Symbol) {
		for _, sym := range syms {
			switch sym.Kind {
			case ast.SymbolKindClass:
				classes++
			case ast.SymbolKindInterface:
				interfaces++
			case ast.SymbolKindFunction:
				functions++
			case ast.SymbolKindMethod:
				methods++
			case ast.SymbolKindComponent:
				components++
			}
			count(sym.Children)
		}
	}
	count(result.Symbols)

	var parts []string
	appendPart := func(n int, singular, plural string) {
		switch n {
		case 0:
		case 1:
			parts = append(parts, "1 "+singular)
		default:
			parts = append(parts, fmt.Sprintf("%d %s", n, plural))
		}
	}
	appendPart(classes, "class", "classes")
	appendPart(interfaces, "interface", "interfaces")
	appendPart(components, "component", "components")
	appendPart(functions, "function", "functions")
	appendPart(methods, "method", "methods")

	if len(parts) == 0 {
		return fmt.Sprintf("%s module", language)
	}
	return fmt.Sprintf("%s module with %s", language, strings.Join(parts, ", "))
}
