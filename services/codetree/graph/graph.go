// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph resolves raw dependency references against the repository
// inventory and builds the deduplicated dependency graph.
package graph

import (
	"sort"

	"github.com/AleutianAI/codetree/services/codetree/ast"
	"github.com/AleutianAI/codetree/services/codetree/discovery"
)

// Confidence classifies how a reference was resolved.
type Confidence string

const (
	// ConfidenceExact means the reference resolved to a file by direct
	// path construction.
	ConfidenceExact Confidence = "exact"

	// ConfidenceHeuristic means the reference was linked by partial-path
	// or name matching with exactly one candidate.
	ConfidenceHeuristic Confidence = "heuristic"

	// ConfidenceExternal means no candidate exists in the repository.
	ConfidenceExternal Confidence = "external"

	// ConfidenceUnresolved means candidates exist but are ambiguous.
	// Ambiguity is never silently guessed.
	ConfidenceUnresolved Confidence = "unresolved"
)

// Edge is one directed dependency between two repository files.
type Edge struct {
	From       string      `json:"from"`
	To         string      `json:"to"`
	Kind       ast.RefKind `json:"kind"`
	Confidence Confidence  `json:"confidence"`
}

// FileDiagnostics counts the reference outcomes that produced no edge for
// one file.
type FileDiagnostics struct {
	UnresolvedCount int `json:"unresolved_count"`
	ExternalCount   int `json:"external_count"`
}

// Graph is the deduplicated dependency graph over the file inventory.
//
// Edges hold only intra-repository links (confidence exact or heuristic);
// external and unresolved outcomes appear as per-file counts instead. The
// edge list is ordered by (From, To, Kind) so repeated runs diff cleanly.
type Graph struct {
	Edges       []Edge                     `json:"edges"`
	Diagnostics map[string]FileDiagnostics `json:"diagnostics,omitempty"`
}

// FileAnalysis pairs one inventory file with the raw references its
// analyzer extracted.
type FileAnalysis struct {
	File       discovery.SourceFile
	References []ast.Reference
}

// DependentCounts returns, per file path, the number of distinct files with
// at least one edge pointing at it.
func (g *Graph) DependentCounts() map[string]int {
	seen := make(map[string]map[string]struct{})
	for _, edge := range g.Edges {
		if seen[edge.To] == nil {
			seen[edge.To] = make(map[string]struct{})
		}
		seen[edge.To][edge.From] = struct{}{}
	}
	counts := make(map[string]int, len(seen))
	for to, froms := range seen {
		counts[to] = len(froms)
	}
	return counts
}

// sortEdges orders edges by (From, To, Kind) in place.
func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
}
