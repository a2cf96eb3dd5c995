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
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Line patterns for the tolerant Java scan. These deliberately accept more
// than the grammar allows: a line that fails every pattern is skipped, never
// treated as fatal.
var (
	javaPackageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)
	javaImportRe  = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`)
	javaTypeRe    = regexp.MustCompile(`^\s*(?:(?:public|protected|private|abstract|final|static|sealed|non-sealed|strictfp)\s+)*(class|interface|enum|record)\s+(\w+)`)
	javaExtendsRe = regexp.MustCompile(`\bextends\s+([\w.<>,\s]+?)(?:\s+implements\b|\s+permits\b|\s*\{|$)`)
	javaImplRe    = regexp.MustCompile(`\bimplements\s+([\w.<>,\s]+?)(?:\s+permits\b|\s*\{|$)`)
	javaMethodRe  = regexp.MustCompile(`^\s*(?:(?:public|protected|private|static|final|synchronized|abstract|default|native)\s+)+(?:<[^>]*>\s*)?[\w\[\]<>?,.\s]*?\b(\w+)\s*\(`)
	javaCtorRe    = regexp.MustCompile(`^\s*(?:public|protected|private)\s+(\w+)\s*\(`)
)

// javaKeywords holds identifiers that must never be recorded as method
// names by the heuristic scan.
var javaKeywords = map[string]struct{}{
	"if": {}, "for": {}, "while": {}, "switch": {}, "catch": {},
	"return": {}, "new": {}, "throw": {}, "super": {}, "this": {},
	"else": {}, "do": {}, "try": {}, "synchronized": {}, "assert": {},
}

// JavaParserOption configures a JavaParser instance.
type JavaParserOption func(*JavaParser)

// WithJavaMaxFileSize sets the maximum file size the parser will accept.
func WithJavaMaxFileSize(bytes int64) JavaParserOption {
	return func(p *JavaParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaParser implements the Parser interface for Java source code.
//
// Description:
//
//	JavaParser is a tolerant heuristic scanner, not a grammar parser. It
//	extracts the package declaration, imports, class/interface/enum/record
//	declarations with their extends/implements clauses, and method
//	signatures nested under their declaring type. Braces, generics, and
//	annotations are tolerated on a best-effort basis; a line the scanner
//	cannot classify is skipped.
//
// Thread Safety: Safe for concurrent use (stateless across Parse calls).
type JavaParser struct {
	maxFileSize int64
}

// NewJavaParser creates a new JavaParser with the given options.
func NewJavaParser(opts ...JavaParserOption) *JavaParser {
	p := &JavaParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *JavaParser) Language() string {
	return "java"
}

// Extensions returns the file extensions this parser handles.
func (p *JavaParser) Extensions() []string {
	return []string{".java"}
}

// Parse extracts symbols and raw references from Java source.
//
// Outputs:
//   - *ParseResult: Symbol tree rooted at a module symbol with type
//     declarations as children and methods nested under their types.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error only.
//
// Thread Safety: Safe for concurrent use.
func (p *JavaParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "java", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics("java", time.Since(start), nil, err)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics("java", time.Since(start), nil, ErrFileTooLarge)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		recordParseMetrics("java", time.Since(start), nil, ErrInvalidContent)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	lines := strings.Split(string(content), "\n")

	result := &ParseResult{
		FilePath:   filePath,
		Language:   "java",
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
	recordParseMetrics("java", time.Since(start), result, nil)
	return result, nil
}

// openType tracks a type declaration whose body is currently open during
// the scan, along with the brace depth at which it closes.
type openType struct {
	sym        *Symbol
	closeDepth int
}

// scan performs the line-by-line heuristic pass.
func (p *JavaParser) scan(lines []string, module *Symbol, result *ParseResult) {
	depth := 0
	inBlockComment := false
	var stack []*openType
	var pendingDoc []string

	for idx, raw := range lines {
		lineNo := idx + 1
		line, nowInComment := stripJavaComments(raw, inBlockComment)

		// Accumulate Javadoc content while inside /** ... */ blocks.
		if inBlockComment || strings.Contains(raw, "/**") {
			pendingDoc = appendJavadocLine(pendingDoc, raw)
		}
		inBlockComment = nowInComment

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "@") {
			depth += braceDelta(line)
			p.closeTypes(&stack, depth, lineNo)
			continue
		}

		switch {
		case result.Package == "" && javaPackageRe.MatchString(line):
			result.Package = javaPackageRe.FindStringSubmatch(line)[1]

		case javaImportRe.MatchString(line):
			result.References = append(result.References, Reference{
				Spec: javaImportRe.FindStringSubmatch(line)[1],
				Kind: RefKindImport,
				Line: lineNo,
			})

		case javaTypeRe.MatchString(line):
			m := javaTypeRe.FindStringSubmatch(line)
			keyword, name := m[1], m[2]

			kind := SymbolKindClass
			if keyword == "interface" {
				kind = SymbolKindInterface
			}

			parent := module.QualifiedName
			owner := module
			if len(stack) > 0 {
				owner = stack[len(stack)-1].sym
				parent = owner.QualifiedName
			}

			sym := &Symbol{
				Kind:          kind,
				Name:          name,
				QualifiedName: parent + "." + name,
				StartLine:     lineNo,
				EndLine:       lineNo,
				Doc:           consumeJavadoc(&pendingDoc),
			}
			addChild(owner, sym)

			p.extractSupertypes(line, lineNo, result)

			delta := braceDelta(line)
			depth += delta
			switch {
			case strings.Contains(line, "{") && delta <= 0:
				// Body opened and closed on the same line.
				sym.EndLine = lineNo
			case strings.Contains(line, "{"):
				stack = append(stack, &openType{sym: sym, closeDepth: depth - delta})
			default:
				// Brace on a following line; close at current depth.
				stack = append(stack, &openType{sym: sym, closeDepth: depth})
			}
			continue

		case len(stack) > 0 && p.matchMethod(line, stack[len(stack)-1].sym.Name) != "":
			owner := stack[len(stack)-1].sym
			name := p.matchMethod(line, owner.Name)
			addChild(owner, &Symbol{
				Kind:          SymbolKindMethod,
				Name:          name,
				QualifiedName: owner.QualifiedName + "." + name,
				StartLine:     lineNo,
				EndLine:       lineNo,
				Doc:           consumeJavadoc(&pendingDoc),
			})
		}

		depth += braceDelta(line)
		p.closeTypes(&stack, depth, lineNo)
	}

	// Types left open by unbalanced braces end at EOF.
	for _, ot := range stack {
		ot.sym.EndLine = len(lines)
	}
}

// matchMethod returns the method name declared on the line, or "". The
// declaring class name lets constructors match without a return type.
func (p *JavaParser) matchMethod(line, className string) string {
	if m := javaMethodRe.FindStringSubmatch(line); m != nil {
		name := m[1]
		if _, kw := javaKeywords[name]; !kw {
			return name
		}
	}
	if m := javaCtorRe.FindStringSubmatch(line); m != nil && m[1] == className {
		return m[1]
	}
	return ""
}

// extractSupertypes records extends/implements clauses as raw references.
// For interfaces, `extends A, B` lists supertypes of the same kind.
func (p *JavaParser) extractSupertypes(line string, lineNo int, result *ParseResult) {
	if m := javaExtendsRe.FindStringSubmatch(line); m != nil {
		for _, name := range splitTypeList(m[1]) {
			result.References = append(result.References, Reference{
				Spec: name,
				Kind: RefKindExtends,
				Line: lineNo,
			})
		}
	}
	if m := javaImplRe.FindStringSubmatch(line); m != nil {
		for _, name := range splitTypeList(m[1]) {
			result.References = append(result.References, Reference{
				Spec: name,
				Kind: RefKindImplements,
				Line: lineNo,
			})
		}
	}
}

// closeTypes pops types whose bodies have closed and stamps their EndLine.
func (p *JavaParser) closeTypes(stack *[]*openType, depth, lineNo int) {
	for len(*stack) > 0 && depth <= (*stack)[len(*stack)-1].closeDepth {
		top := (*stack)[len(*stack)-1]
		top.sym.EndLine = lineNo
		*stack = (*stack)[:len(*stack)-1]
	}
}

// splitTypeList splits "A, B<T, U>, c.d.E" into bare type names with
// generic arguments stripped.
func splitTypeList(list string) []string {
	// Drop generic argument lists so their commas don't split the list.
	var b strings.Builder
	angle := 0
	for _, r := range list {
		switch r {
		case '<':
			angle++
		case '>':
			if angle > 0 {
				angle--
			}
		default:
			if angle == 0 {
				b.WriteRune(r)
			}
		}
	}

	var names []string
	for _, part := range strings.Split(b.String(), ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// braceDelta returns open minus close braces on a line, ignoring braces in
// string and char literals on a best-effort basis.
func braceDelta(line string) int {
	delta := 0
	inStr := false
	inChar := false
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			if !inChar {
				inStr = !inStr
			}
		case '\'':
			if !inStr {
				inChar = !inChar
			}
		case '{':
			if !inStr && !inChar {
				delta++
			}
		case '}':
			if !inStr && !inChar {
				delta--
			}
		}
	}
	return delta
}

// stripJavaComments removes // and /* */ comment content from a line.
// Returns the stripped line and whether a block comment remains open.
func stripJavaComments(line string, inBlock bool) (string, bool) {
	var b strings.Builder
	i := 0
	for i < len(line) {
		if inBlock {
			if end := strings.Index(line[i:], "*/"); end >= 0 {
				i += end + 2
				inBlock = false
				continue
			}
			return b.String(), true
		}
		if strings.HasPrefix(line[i:], "//") {
			return b.String(), false
		}
		if strings.HasPrefix(line[i:], "/*") {
			i += 2
			inBlock = true
			continue
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String(), inBlock
}

// appendJavadocLine accumulates the text of a Javadoc block, stripping
// comment markers and leading asterisks.
func appendJavadocLine(doc []string, raw string) []string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "*"))
	if s != "" {
		return append(doc, s)
	}
	return doc
}

// consumeJavadoc returns the pending Javadoc text and clears the buffer.
func consumeJavadoc(pending *[]string) string {
	if len(*pending) == 0 {
		return ""
	}
	doc := strings.Join(*pending, "\n")
	*pending = nil
	return strings.TrimSpace(doc)
}
