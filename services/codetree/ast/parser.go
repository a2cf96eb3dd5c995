// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "context"

// Parser is the per-language analysis capability.
//
// Description:
//
//	Parse extracts a symbol tree and raw dependency references from one
//	file's content. Implementations vary in rigor (structural grammar for
//	Python, tolerant heuristics for Java and the JS family) but share the
//	same contract: syntax problems degrade to a ParseResult with an empty
//	symbol tree and a Diagnostic, never an error. Errors are reserved for
//	inputs that cannot be processed at all (oversized files, non-UTF-8
//	content, canceled contexts).
//
// Thread Safety: Implementations must be safe for concurrent use; the
// analysis stage calls Parse from multiple goroutines.
type Parser interface {
	// Parse analyzes content belonging to filePath (repo-relative,
	// forward slashes).
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical language tag for this parser.
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string
}

// parsers is the closed set of analyzer variants, keyed by language tag.
// Adding a language means adding one variant here; dispatch sites never
// change beyond this table.
var parsers = map[string]Parser{}

func init() {
	py := NewPythonParser()
	java := NewJavaParser()
	js := NewJavaScriptParser()

	parsers["python"] = py
	parsers["java"] = java

	// The JS-family tags all route to the one heuristic scanner; the tag
	// only affects JSX component detection and resolution suffix probing.
	for _, tag := range []string{"javascript", "typescript", "jsx", "tsx"} {
		parsers[tag] = js
	}
}

// ForLanguage returns the parser registered for a language tag, or nil if
// the language is not analyzable (tag "unknown" included).
func ForLanguage(tag string) Parser {
	return parsers[tag]
}

// LanguageForExtension infers a language tag from a file extension
// (including the leading dot). Returns "unknown" for unrecognized
// extensions.
func LanguageForExtension(ext string) string {
	switch ext {
	case ".py", ".pyi":
		return "python"
	case ".java":
		return "java"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	default:
		return "unknown"
	}
}
