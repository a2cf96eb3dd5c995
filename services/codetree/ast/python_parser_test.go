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
	"errors"
	"strings"
	"testing"
)

const pythonFixture = `"""Service layer for user management."""
import os
import collections.abc as abc
from typing import Optional
from . import helpers
from ..models import user

class UserService(BaseService):
    """Coordinates user lookups."""

    def get_user(self, user_id):
        """Fetch one user by id."""
        return self.repo.find(user_id)

    def _invalidate(self):
        pass

def make_service():
    """Factory for the default service."""
    def configure(svc):
        return svc
    return configure
`

func TestPythonParser_Symbols(t *testing.T) {
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(pythonFixture), "pkg/users.py")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.Diagnostic != "" {
		t.Fatalf("unexpected diagnostic: %q", result.Diagnostic)
	}
	if result.Language != "python" {
		t.Errorf("Language = %q, want python", result.Language)
	}

	module := result.ModuleRoot()
	if module == nil {
		t.Fatal("no module root symbol")
	}
	if module.QualifiedName != "pkg.users" {
		t.Errorf("module qualified name = %q, want pkg.users", module.QualifiedName)
	}
	if module.Doc != "Service layer for user management." {
		t.Errorf("module doc = %q", module.Doc)
	}

	class := findChild(module, "UserService")
	if class == nil {
		t.Fatal("UserService not found")
	}
	if class.Kind != SymbolKindClass {
		t.Errorf("UserService kind = %q, want %q", class.Kind, SymbolKindClass)
	}
	if class.Doc != "Coordinates user lookups." {
		t.Errorf("UserService doc = %q", class.Doc)
	}
	if class.QualifiedName != "pkg.users.UserService" {
		t.Errorf("UserService qualified name = %q", class.QualifiedName)
	}

	method := findChild(class, "get_user")
	if method == nil {
		t.Fatal("get_user not found under UserService")
	}
	if method.Kind != SymbolKindMethod {
		t.Errorf("get_user kind = %q, want %q", method.Kind, SymbolKindMethod)
	}
	if findChild(class, "_invalidate") == nil {
		t.Error("_invalidate not found under UserService")
	}

	fn := findChild(module, "make_service")
	if fn == nil {
		t.Fatal("make_service not found")
	}
	if fn.Kind != SymbolKindFunction {
		t.Errorf("make_service kind = %q, want %q", fn.Kind, SymbolKindFunction)
	}
	if findChild(fn, "configure") == nil {
		t.Error("nested function configure not found under make_service")
	}
}

func TestPythonParser_References(t *testing.T) {
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(pythonFixture), "pkg/users.py")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	wantImports := []struct {
		spec string
		dots int
	}{
		{"os", 0},
		{"collections.abc", 0},
		{"typing", 0},
		{".", 1},
		{"..models", 2},
	}
	imports := refsOfKind(result.References, RefKindImport)
	if len(imports) != len(wantImports) {
		t.Fatalf("got %d import references, want %d: %+v", len(imports), len(wantImports), imports)
	}
	for i, want := range wantImports {
		if imports[i].Spec != want.spec {
			t.Errorf("import[%d].Spec = %q, want %q", i, imports[i].Spec, want.spec)
		}
		if imports[i].Dots != want.dots {
			t.Errorf("import[%d].Dots = %d, want %d", i, imports[i].Dots, want.dots)
		}
	}

	extends := refsOfKind(result.References, RefKindExtends)
	if len(extends) != 1 || extends[0].Spec != "BaseService" {
		t.Errorf("extends references = %+v, want one BaseService", extends)
	}
}

func TestPythonParser_SyntaxErrorDegrades(t *testing.T) {
	src := "def broken(:\n    pass\n\nclass Intact:\n    def ok(self):\n        pass\n"
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(src), "broken.py")
	if err != nil {
		t.Fatalf("Parse returned error for invalid syntax, want diagnostic: %v", err)
	}
	if result.Diagnostic == "" {
		t.Error("expected diagnostic for source with syntax errors")
	}
	if !strings.Contains(result.Diagnostic, "syntax errors") {
		t.Errorf("diagnostic = %q", result.Diagnostic)
	}
	module := result.ModuleRoot()
	if module == nil {
		t.Fatal("no module root for broken file")
	}
}

func TestPythonParser_Limits(t *testing.T) {
	parser := NewPythonParser(WithPythonMaxFileSize(16))
	_, err := parser.Parse(context.Background(), []byte("import os\nimport sys\n"), "big.py")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}

	parser = NewPythonParser()
	_, err = parser.Parse(context.Background(), []byte{0xff, 0xfe, 0x00}, "binary.py")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("err = %v, want ErrInvalidContent", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = parser.Parse(ctx, []byte("import os\n"), "canceled.py")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPythonParser_DecoratedAndSubscriptBases(t *testing.T) {
	src := `from typing import Protocol, TypeVar

T = TypeVar("T")

class Repo(Protocol[T]):
    def find(self, key): ...

@dataclass
class Config:
    """Runtime configuration."""
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(src), "repo.py")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	module := result.ModuleRoot()
	if findChild(module, "Repo") == nil {
		t.Error("Repo not found")
	}
	cfg := findChild(module, "Config")
	if cfg == nil {
		t.Fatal("decorated class Config not found")
	}
	if cfg.Doc != "Runtime configuration." {
		t.Errorf("Config doc = %q", cfg.Doc)
	}

	extends := refsOfKind(result.References, RefKindExtends)
	if len(extends) != 1 || extends[0].Spec != "Protocol" {
		t.Errorf("extends = %+v, want one Protocol", extends)
	}
}

// findChild returns the direct child with the given name, or nil.
func findChild(sym *Symbol, name string) *Symbol {
	if sym == nil {
		return nil
	}
	for _, child := range sym.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// refsOfKind filters references by kind, preserving order.
func refsOfKind(refs []Reference, kind RefKind) []Reference {
	var out []Reference
	for _, ref := range refs {
		if ref.Kind == kind {
			out = append(out, ref)
		}
	}
	return out
}
