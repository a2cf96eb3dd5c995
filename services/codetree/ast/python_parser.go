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
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser implements the Parser interface for Python source code.
//
// Description:
//
//	PythonParser uses tree-sitter with the real Python grammar to extract
//	the symbol tree (module docstring, classes with their methods,
//	functions with nesting) and raw import references, including relative
//	imports with their dot depth.
//
// Thread Safety:
//
//	PythonParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser instance internally.
//
// Example:
//
//	parser := NewPythonParser()
//	result, err := parser.Parse(ctx, []byte("def hello(): pass"), "main.py")
//	if err != nil {
//	    return err
//	}
//	for _, sym := range result.Symbols {
//	    fmt.Printf("%s: %s\n", sym.Kind, sym.Name)
//	}
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a new PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Parse extracts the symbol tree and raw references from Python source.
//
// Description:
//
//	Parse is error-tolerant: syntactically invalid code yields partial
//	symbols plus a Diagnostic on the result. Errors are returned only for
//	oversized files, non-UTF-8 content, or a canceled context.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw Python source bytes. Must be valid UTF-8.
//   - filePath: Repo-relative path using forward slashes.
//
// Outputs:
//   - *ParseResult: Symbol tree rooted at a module symbol plus the raw
//     reference list. Never nil when error is nil.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
//
// Thread Safety: Safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics("python", time.Since(start), nil, err)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics("python", time.Since(start), nil, ErrFileTooLarge)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics("python", time.Since(start), nil, ErrInvalidContent)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics("python", time.Since(start), nil, err)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics("python", time.Since(start), nil, err)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:   filePath,
		Language:   "python",
		Symbols:    make([]*Symbol, 0, 1),
		References: make([]Reference, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Diagnostic = "tree-sitter returned nil root node"
		recordParseMetrics("python", time.Since(start), result, nil)
		return result, nil
	}
	if root.HasError() {
		result.Diagnostic = "source contains syntax errors; partial symbols extracted"
	}

	module := &Symbol{
		Kind:          SymbolKindModule,
		Name:          baseNameOf(filePath),
		QualifiedName: ModuleQualifier(filePath),
		StartLine:     1,
		EndLine:       int(root.EndPoint().Row) + 1,
		Doc:           p.extractModuleDocstring(root, content),
	}
	result.Symbols = append(result.Symbols, module)

	p.extractImports(root, content, result, 0)
	p.extractDefinitions(root, content, module, result)

	setParseSpanResult(span, countSymbols(result.Symbols), len(result.References), result.Diagnostic)
	recordParseMetrics("python", time.Since(start), result, nil)
	return result, nil
}

// extractModuleDocstring returns the module-level docstring if present.
// The module docstring is the first expression_statement whose child is a
// string, allowed to follow only comments and imports.
func (p *PythonParser) extractModuleDocstring(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "expression_statement":
			if child.ChildCount() > 0 && child.Child(0).Type() == "string" {
				return stripPythonString(nodeText(child.Child(0), content))
			}
			return ""
		case "comment", "import_statement", "import_from_statement":
			continue
		default:
			return ""
		}
	}
	return ""
}

// extractImports walks the whole tree (not just top level) so imports
// inside function bodies — commonly used to break circular dependencies —
// are still captured as references.
func (p *PythonParser) extractImports(node *sitter.Node, content []byte, result *ParseResult, depth int) {
	if node == nil || depth > 64 {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			p.processImportStatement(child, content, result)
		case "import_from_statement":
			p.processImportFromStatement(child, content, result)
		default:
			p.extractImports(child, content, result, depth+1)
		}
	}
}

// processImportStatement handles `import foo` and `import foo as bar`.
// Each imported module produces one reference carrying the literal path.
func (p *PythonParser) processImportStatement(node *sitter.Node, content []byte, result *ParseResult) {
	line := int(node.StartPoint().Row) + 1
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			result.References = append(result.References, Reference{
				Spec: nodeText(child, content),
				Kind: RefKindImport,
				Line: line,
			})
		case "aliased_import":
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == "dotted_name" {
					result.References = append(result.References, Reference{
						Spec: nodeText(gc, content),
						Kind: RefKindImport,
						Line: line,
					})
					break
				}
			}
		}
	}
}

// processImportFromStatement handles `from x import y`, including relative
// forms `from . import y` and `from ..pkg import y`. One statement yields
// one reference carrying the literal module path and its dot depth.
func (p *PythonParser) processImportFromStatement(node *sitter.Node, content []byte, result *ParseResult) {
	var modulePath string
	var dots int
	sawImport := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			var prefix, name string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "import_prefix":
					prefix = nodeText(gc, content)
				case "dotted_name":
					name = nodeText(gc, content)
				}
			}
			dots = strings.Count(prefix, ".")
			modulePath = prefix + name
		case "dotted_name":
			if !sawImport && modulePath == "" {
				modulePath = nodeText(child, content)
			}
		}
	}

	if modulePath == "" {
		return
	}
	result.References = append(result.References, Reference{
		Spec: modulePath,
		Kind: RefKindImport,
		Dots: dots,
		Line: int(node.StartPoint().Row) + 1,
	})
}

// extractDefinitions extracts classes and functions at the module level and
// attaches them to the module root.
func (p *PythonParser) extractDefinitions(root *sitter.Node, content []byte, module *Symbol, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		p.processDefinitionNode(child, content, module, result)
	}
}

// processDefinitionNode dispatches a single node that may declare a class
// or function, unwrapping decorated definitions.
func (p *PythonParser) processDefinitionNode(node *sitter.Node, content []byte, parent *Symbol, result *ParseResult) {
	switch node.Type() {
	case "class_definition":
		p.processClass(node, content, parent, result)
	case "function_definition":
		p.processFunction(node, content, parent, result)
	case "decorated_definition":
		for i := 0; i < int(node.ChildCount()); i++ {
			inner := node.Child(i)
			if inner.Type() == "class_definition" || inner.Type() == "function_definition" {
				p.processDefinitionNode(inner, content, parent, result)
			}
		}
	}
}

// processClass extracts a class definition, its docstring, base classes
// (as extends references), and its methods.
func (p *PythonParser) processClass(node *sitter.Node, content []byte, parent *Symbol, result *ParseResult) {
	var name string
	var bodyNode *sitter.Node

	line := int(node.StartPoint().Row) + 1

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = nodeText(child, content)
			}
		case "argument_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				arg := child.Child(j)
				switch arg.Type() {
				case "identifier", "attribute":
					result.References = append(result.References, Reference{
						Spec: nodeText(arg, content),
						Kind: RefKindExtends,
						Line: line,
					})
				case "subscript":
					// Protocol[T], Generic[T]: record the base before the bracket.
					if base := firstChildText(arg, "identifier", content); base != "" {
						result.References = append(result.References, Reference{
							Spec: base,
							Kind: RefKindExtends,
							Line: line,
						})
					}
				}
			}
		case "block":
			bodyNode = child
		}
	}

	if name == "" {
		return
	}

	sym := &Symbol{
		Kind:          SymbolKindClass,
		Name:          name,
		QualifiedName: parent.QualifiedName + "." + name,
		StartLine:     line,
		EndLine:       int(node.EndPoint().Row) + 1,
	}

	if bodyNode != nil {
		sym.Doc = p.extractBlockDocstring(bodyNode, content)
		p.extractClassMembers(bodyNode, content, sym, result)
	}

	addChild(parent, sym)
}

// extractClassMembers extracts methods and nested classes from a class body.
func (p *PythonParser) extractClassMembers(body *sitter.Node, content []byte, classSym *Symbol, result *ParseResult) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			p.processMethod(child, content, classSym)
		case "class_definition":
			p.processClass(child, content, classSym, result)
		case "decorated_definition":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				switch inner.Type() {
				case "function_definition":
					p.processMethod(inner, content, classSym)
				case "class_definition":
					p.processClass(inner, content, classSym, result)
				}
			}
		}
	}
}

// processMethod extracts one method and nests it under its class.
func (p *PythonParser) processMethod(node *sitter.Node, content []byte, classSym *Symbol) {
	name, bodyNode := functionNameAndBody(node, content)
	if name == "" {
		return
	}

	sym := &Symbol{
		Kind:          SymbolKindMethod,
		Name:          name,
		QualifiedName: classSym.QualifiedName + "." + name,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
	}
	if bodyNode != nil {
		sym.Doc = p.extractBlockDocstring(bodyNode, content)
	}
	addChild(classSym, sym)
}

// processFunction extracts a function definition, recursing into its body
// for nested functions (children mirror lexical containment).
func (p *PythonParser) processFunction(node *sitter.Node, content []byte, parent *Symbol, result *ParseResult) {
	name, bodyNode := functionNameAndBody(node, content)
	if name == "" {
		return
	}

	sym := &Symbol{
		Kind:          SymbolKindFunction,
		Name:          name,
		QualifiedName: parent.QualifiedName + "." + name,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
	}
	if bodyNode != nil {
		sym.Doc = p.extractBlockDocstring(bodyNode, content)
		for i := 0; i < int(bodyNode.ChildCount()); i++ {
			inner := bodyNode.Child(i)
			if inner.Type() == "function_definition" || inner.Type() == "decorated_definition" || inner.Type() == "class_definition" {
				p.processDefinitionNode(inner, content, sym, result)
			}
		}
	}
	addChild(parent, sym)
}

// functionNameAndBody returns the identifier and block node of a
// function_definition.
func functionNameAndBody(node *sitter.Node, content []byte) (string, *sitter.Node) {
	var name string
	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = nodeText(child, content)
			}
		case "block":
			body = child
		}
	}
	return name, body
}

// extractBlockDocstring returns the docstring of a block (first statement
// being a string expression), or "".
func (p *PythonParser) extractBlockDocstring(body *sitter.Node, content []byte) string {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() == "expression_statement" && child.ChildCount() > 0 && child.Child(0).Type() == "string" {
			return stripPythonString(nodeText(child.Child(0), content))
		}
		return ""
	}
	return ""
}

// firstChildText returns the text of the first child with the given type.
func firstChildText(node *sitter.Node, childType string, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == childType {
			return nodeText(child, content)
		}
	}
	return ""
}

// nodeText returns the source text of a tree-sitter node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// stripPythonString removes string prefixes (r, b, f, u) and quote
// delimiters from a Python string literal, then trims surrounding
// whitespace. Internal formatting is preserved.
func stripPythonString(lit string) string {
	s := lit
	for len(s) > 0 {
		c := s[0] | 0x20 // lowercase
		if c == 'r' || c == 'b' || c == 'f' || c == 'u' {
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}
	return strings.TrimSpace(s)
}
