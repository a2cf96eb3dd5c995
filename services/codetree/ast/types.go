// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts symbol trees and raw dependency references from
// source files.
//
// Three analyzer variants share one contract: Python is parsed structurally
// with the real tree-sitter grammar; Java and the JS/TS family are scanned
// with tolerant line heuristics. All variants degrade to an empty symbol
// tree plus a diagnostic on unparseable content — a single bad file never
// aborts an analysis run.
package ast

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMaxFileSize is the largest file an analyzer will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize triggers a log warning for unusually large files (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// Sentinel errors returned by Analyze for inputs that cannot be processed
// at all. Syntax problems are NOT errors — they surface as a ParseResult
// diagnostic instead.
var (
	// ErrFileTooLarge indicates the content exceeds the analyzer's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8 text.
	ErrInvalidContent = errors.New("invalid content")
)

// SymbolKind classifies an extracted symbol.
type SymbolKind string

const (
	SymbolKindModule    SymbolKind = "module"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindComponent SymbolKind = "component"
)

// RefKind classifies how a raw dependency reference was expressed in source.
type RefKind string

const (
	RefKindImport     RefKind = "import"
	RefKindRequire    RefKind = "require"
	RefKindExtends    RefKind = "extends"
	RefKindImplements RefKind = "implements"
)

// Symbol is a named, located program construct. Symbols form a tree: each
// symbol has exactly one parent except the per-file module root, and nesting
// mirrors lexical containment in the source.
//
// Thread Safety: Immutable after the owning ParseResult is returned.
type Symbol struct {
	// Kind is the syntactic kind of the symbol.
	Kind SymbolKind `json:"kind"`

	// Name is the bare identifier as written in source.
	Name string `json:"name"`

	// QualifiedName is the dotted path from the module root, e.g.
	// "pkg.users.User.validate". Unique within one file.
	QualifiedName string `json:"qualified_name"`

	// StartLine and EndLine are 1-based inclusive source line bounds.
	StartLine int `json:"line_start"`
	EndLine   int `json:"line_end"`

	// Doc is the documentation summary (docstring, Javadoc, JSDoc first
	// block). Trimmed of surrounding whitespace; internal formatting is
	// preserved. Empty when absent.
	Doc string `json:"doc,omitempty"`

	// Children are symbols lexically contained in this one.
	Children []*Symbol `json:"children,omitempty"`
}

// Reference is a raw, unresolved dependency specifier as written in source.
//
// References are ephemeral: the resolver consumes the full batch after the
// analysis barrier and they are never serialized into the artifact.
type Reference struct {
	// Spec is the literal specifier text, e.g. "..pkg", "react",
	// "./util", "com.example.Foo", "BaseHandler".
	Spec string

	// Kind is how the reference was expressed (import/require/extends/implements).
	Kind RefKind

	// Dots is the relative-import depth for Python (`from . import x` → 1,
	// `from ..pkg import x` → 2). Zero for absolute references.
	Dots int

	// Line is the 1-based source line the reference appears on.
	Line int
}

// ParseResult is the output of analyzing one file.
type ParseResult struct {
	// FilePath is the repo-relative path with forward slashes.
	FilePath string

	// Language is the analyzer's language tag for the file.
	Language string

	// Symbols holds the per-file symbol tree. By convention the first
	// element is the module root; analyzers that fail soft return an
	// empty slice plus a Diagnostic.
	Symbols []*Symbol

	// References are the raw dependency references found in the file.
	References []Reference

	// Diagnostic is a human-readable note when the file could not be
	// fully analyzed. Empty on clean parses.
	Diagnostic string

	// Package is the declared package for languages that have one
	// (Java's `package a.b;`). Empty elsewhere.
	Package string
}

// ModuleRoot returns the module-kind root symbol, or nil when the result
// carries no symbols (failed parse).
func (r *ParseResult) ModuleRoot() *Symbol {
	for _, sym := range r.Symbols {
		if sym != nil && sym.Kind == SymbolKindModule {
			return sym
		}
	}
	return nil
}

// Validate checks the structural invariants of the result: non-empty file
// path and qualified-name uniqueness within the file.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("parse result has empty file path")
	}

	seen := make(map[string]struct{})
	var walk func(syms []*Symbol) error
	walk = func(syms []*Symbol) error {
		for _, sym := range syms {
			if sym == nil {
				continue
			}
			if sym.QualifiedName == "" {
				return fmt.Errorf("symbol %q has empty qualified name", sym.Name)
			}
			if _, dup := seen[sym.QualifiedName]; dup {
				return fmt.Errorf("duplicate qualified name %q", sym.QualifiedName)
			}
			seen[sym.QualifiedName] = struct{}{}
			if err := walk(sym.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(r.Symbols)
}

// ModuleQualifier derives the dotted module qualifier for a repo-relative
// file path: "pkg/users.py" → "pkg.users". Used as the qualified-name root
// by every analyzer so qualified names are uniform across languages.
func ModuleQualifier(filePath string) string {
	p := strings.TrimSuffix(filePath, extOf(filePath))
	return strings.ReplaceAll(p, "/", ".")
}

// extOf returns the extension including the dot, or "" if none.
func extOf(path string) string {
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 && idx > strings.LastIndexByte(path, '/') {
		return path[idx:]
	}
	return ""
}

// baseNameOf returns the final path segment without its extension.
func baseNameOf(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[idx+1:]
	}
	return strings.TrimSuffix(path, extOf(path))
}

// addChild appends child to parent, skipping duplicates: if a symbol with
// the same qualified name already exists at this level the first occurrence
// wins. Redefinition in source (legal in Python, common in malformed input
// elsewhere) must not break the uniqueness invariant.
func addChild(parent *Symbol, child *Symbol) {
	for _, existing := range parent.Children {
		if existing.QualifiedName == child.QualifiedName {
			return
		}
	}
	parent.Children = append(parent.Children, child)
}
