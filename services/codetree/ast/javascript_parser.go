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

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Line patterns for the tolerant JavaScript/TypeScript scan.
var (
	jsImportFromRe = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(?:[\w$*{},\s]+\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequireRe    = regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	jsDynImportRe  = regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	jsExportFromRe = regexp.MustCompile(`^\s*export\s+(?:\*|\{[^}]*\})\s+from\s+['"]([^'"]+)['"]`)

	jsFunctionRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)`)
	jsClassRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)(?:\s+extends\s+([\w.]+))?`)
	jsArrowRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)(?:\s*:\s*[\w.<>\[\],\s|&]+)?\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*(?::\s*[\w.<>\[\],\s|&]+)?\s*=>`)
	jsFuncExprRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?function\b`)

	jsInterfaceRe = regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)(?:\s+extends\s+([\w.,\s<>]+?))?\s*\{`)

	jsxReturnRe = regexp.MustCompile(`return\s*(?:\(\s*)?<[A-Za-z>]`)

	jsMethodRe = regexp.MustCompile(`^\s{2,}(?:(?:static|async|get|set|public|private|protected|readonly)\s+)*\*?\s*(\w+)\s*(?:<[^>]*>)?\s*\([^;]*$`)
)

// reactComponentBases are superclass names that mark a class as a React
// component.
var reactComponentBases = map[string]struct{}{
	"React.Component":     {},
	"React.PureComponent": {},
	"Component":           {},
	"PureComponent":       {},
}

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser will accept.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaScriptParser implements the Parser interface for JavaScript,
// TypeScript, and their JSX variants.
//
// Description:
//
//	JavaScriptParser is a tolerant heuristic scanner. It extracts import,
//	require, dynamic import, and re-export references; function, arrow
//	function, class, and interface declarations; and flags declarations as
//	React components when they either return JSX-like markup or extend a
//	known React component base. Lines the scanner cannot classify are
//	skipped, never fatal.
//
// Thread Safety: Safe for concurrent use (stateless across Parse calls).
type JavaScriptParser struct {
	maxFileSize int64
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the file extensions this parser handles.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".mts", ".cts"}
}

// Parse extracts symbols and raw references from JavaScript or TypeScript
// source. The result's Language reflects the file's extension (javascript,
// jsx, typescript, tsx), not the parser's canonical name.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	language := LanguageForExtension(filepath.Ext(filePath))
	if language == "unknown" {
		language = "javascript"
	}

	ctx, span := startParseSpan(ctx, language, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(language, time.Since(start), nil, err)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(language, time.Since(start), nil, ErrFileTooLarge)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		recordParseMetrics(language, time.Since(start), nil, ErrInvalidContent)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	lines := strings.Split(string(content), "\n")

	result := &ParseResult{
		FilePath:   filePath,
		Language:   language,
		Symbols:    make([]*Symbol, 0, 1),
		References: make([]Reference, 0),
	}

	module := &Symbol{
		Kind:          SymbolKindModule,
		Name:          baseNameOf(filePath),
		QualifiedName: ModuleQualifier(filePath),
		StartLine:     1,
		EndLine:       len(lines),
	}
	result.Symbols = append(result.Symbols, module)

	p.scan(lines, module, result)

	setParseSpanResult(span, countSymbols(result.Symbols), len(result.References), result.Diagnostic)
	recordParseMetrics(language, time.Since(start), result, nil)
	return result, nil
}

// scan performs the line-by-line heuristic pass. Declarations are recorded
// as direct children of the module symbol; the scan does not attempt to
// model nested closures.
func (p *JavaScriptParser) scan(lines []string, module *Symbol, result *ParseResult) {
	inBlockComment := false
	var pendingDoc []string

	for idx, raw := range lines {
		lineNo := idx + 1
		line, nowInComment := stripJavaComments(raw, inBlockComment)

		if inBlockComment || strings.Contains(raw, "/**") {
			pendingDoc = appendJavadocLine(pendingDoc, raw)
		}
		inBlockComment = nowInComment

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		p.extractReferences(line, lineNo, result)

		switch {
		case jsClassRe.MatchString(line):
			m := jsClassRe.FindStringSubmatch(line)
			name, base := m[1], m[2]

			kind := SymbolKindClass
			if base != "" {
				result.References = append(result.References, Reference{
					Spec: base,
					Kind: RefKindExtends,
					Line: lineNo,
				})
				if _, react := reactComponentBases[base]; react {
					kind = SymbolKindComponent
				}
			}

			sym := &Symbol{
				Kind:          kind,
				Name:          name,
				QualifiedName: module.QualifiedName + "." + name,
				StartLine:     lineNo,
				EndLine:       p.findBlockEnd(lines, idx),
				Doc:           consumeJavadoc(&pendingDoc),
			}
			addChild(module, sym)
			p.extractClassMethods(lines, idx, sym.EndLine, sym)

		case jsInterfaceRe.MatchString(line):
			m := jsInterfaceRe.FindStringSubmatch(line)
			name := m[1]
			if m[2] != "" {
				for _, super := range splitTypeList(m[2]) {
					result.References = append(result.References, Reference{
						Spec: super,
						Kind: RefKindExtends,
						Line: lineNo,
					})
				}
			}
			addChild(module, &Symbol{
				Kind:          SymbolKindInterface,
				Name:          name,
				QualifiedName: module.QualifiedName + "." + name,
				StartLine:     lineNo,
				EndLine:       p.findBlockEnd(lines, idx),
				Doc:           consumeJavadoc(&pendingDoc),
			})

		case jsFunctionRe.MatchString(line):
			p.addFunction(lines, idx, jsFunctionRe.FindStringSubmatch(line)[1], module, &pendingDoc)

		case jsFuncExprRe.MatchString(line):
			p.addFunction(lines, idx, jsFuncExprRe.FindStringSubmatch(line)[1], module, &pendingDoc)

		case jsArrowRe.MatchString(line):
			p.addFunction(lines, idx, jsArrowRe.FindStringSubmatch(line)[1], module, &pendingDoc)
		}
	}
}

// extractReferences records every module reference found on a line.
func (p *JavaScriptParser) extractReferences(line string, lineNo int, result *ParseResult) {
	if m := jsImportFromRe.FindStringSubmatch(line); m != nil {
		result.References = append(result.References, Reference{
			Spec: m[1],
			Kind: RefKindImport,
			Line: lineNo,
		})
		return
	}
	if m := jsExportFromRe.FindStringSubmatch(line); m != nil {
		result.References = append(result.References, Reference{
			Spec: m[1],
			Kind: RefKindImport,
			Line: lineNo,
		})
		return
	}
	for _, m := range jsRequireRe.FindAllStringSubmatch(line, -1) {
		result.References = append(result.References, Reference{
			Spec: m[1],
			Kind: RefKindRequire,
			Line: lineNo,
		})
	}
	for _, m := range jsDynImportRe.FindAllStringSubmatch(line, -1) {
		result.References = append(result.References, Reference{
			Spec: m[1],
			Kind: RefKindImport,
			Line: lineNo,
		})
	}
}

// addFunction records a function or arrow declaration, classifying it as a
// component when its name is capitalized and its body returns JSX-like
// markup.
func (p *JavaScriptParser) addFunction(lines []string, startIdx int, name string, module *Symbol, pendingDoc *[]string) {
	end := p.findBlockEnd(lines, startIdx)

	kind := SymbolKindFunction
	if isCapitalized(name) && p.returnsMarkup(lines, startIdx, end) {
		kind = SymbolKindComponent
	}

	addChild(module, &Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: module.QualifiedName + "." + name,
		StartLine:     startIdx + 1,
		EndLine:       end,
		Doc:           consumeJavadoc(pendingDoc),
	})
}

// extractClassMethods scans a class body for method declarations.
func (p *JavaScriptParser) extractClassMethods(lines []string, classIdx, classEnd int, class *Symbol) {
	for i := classIdx + 1; i < classEnd && i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		m := jsMethodRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		name := m[1]
		if _, kw := jsStatementKeywords[name]; kw {
			continue
		}
		addChild(class, &Symbol{
			Kind:          SymbolKindMethod,
			Name:          name,
			QualifiedName: class.QualifiedName + "." + name,
			StartLine:     i + 1,
			EndLine:       i + 1,
		})
	}
}

// jsStatementKeywords holds identifiers that look like method declarations
// to the class-body regex but never are.
var jsStatementKeywords = map[string]struct{}{
	"if": {}, "for": {}, "while": {}, "switch": {}, "catch": {},
	"return": {}, "function": {}, "super": {}, "new": {},
}

// findBlockEnd returns the 1-based line where the brace block opened at or
// after startIdx closes. If no block opens within a few lines, or braces
// never balance, the declaration line itself is returned.
func (p *JavaScriptParser) findBlockEnd(lines []string, startIdx int) int {
	depth := 0
	opened := false
	for i := startIdx; i < len(lines); i++ {
		depth += braceDelta(lines[i])
		if depth > 0 {
			opened = true
		}
		if opened && depth <= 0 {
			return i + 1
		}
		// Single-expression arrows never open a block.
		if !opened && i > startIdx+2 {
			break
		}
	}
	if opened {
		return len(lines)
	}
	return startIdx + 1
}

// returnsMarkup reports whether the body between start and end contains a
// return of JSX-like markup.
func (p *JavaScriptParser) returnsMarkup(lines []string, startIdx, endLine int) bool {
	for i := startIdx; i < endLine && i < len(lines); i++ {
		if jsxReturnRe.MatchString(lines[i]) {
			return true
		}
		// `return (` with the markup on the next line.
		trimmed := strings.TrimSpace(lines[i])
		if (strings.HasSuffix(trimmed, "return (") || trimmed == "return (") && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if strings.HasPrefix(next, "<") {
				return true
			}
		}
	}
	// Single-expression arrow component: `const X = () => <div .../>`.
	if startIdx < len(lines) && strings.Contains(lines[startIdx], "=>") {
		after := lines[startIdx][strings.Index(lines[startIdx], "=>")+2:]
		if strings.HasPrefix(strings.TrimSpace(after), "<") {
			return true
		}
		if strings.TrimSpace(after) == "(" && startIdx+1 < len(lines) &&
			strings.HasPrefix(strings.TrimSpace(lines[startIdx+1]), "<") {
			return true
		}
	}
	return false
}

// isCapitalized reports whether a name starts with an uppercase letter,
// the React convention for component names.
func isCapitalized(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}
