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
	"testing"
)

const javaFixture = `package com.example.app;

import java.util.List;
import static java.util.Objects.requireNonNull;
import com.example.util.*;

/**
 * Orders placed by customers.
 */
public class OrderService extends BaseService implements Auditable, Closeable {

    private final List<Order> orders;

    public OrderService(List<Order> orders) {
        this.orders = requireNonNull(orders);
    }

    /**
     * Places an order.
     */
    public Order place(Order order) {
        if (order == null) {
            throw new IllegalArgumentException("order");
        }
        return order;
    }

    private static class Validator {
        boolean check(Order order) {
            return order != null;
        }
    }
}

interface Auditable extends Loggable, Traceable {
    void audit();
}
`

func TestJavaParser_Symbols(t *testing.T) {
	parser := NewJavaParser()
	result, err := parser.Parse(context.Background(), []byte(javaFixture), "src/com/example/app/OrderService.java")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.Package != "com.example.app" {
		t.Errorf("Package = %q, want com.example.app", result.Package)
	}

	module := result.ModuleRoot()
	if module == nil {
		t.Fatal("no module root symbol")
	}

	class := findChild(module, "OrderService")
	if class == nil {
		t.Fatal("OrderService not found")
	}
	if class.Kind != SymbolKindClass {
		t.Errorf("OrderService kind = %q, want %q", class.Kind, SymbolKindClass)
	}
	if class.Doc != "Orders placed by customers." {
		t.Errorf("OrderService doc = %q", class.Doc)
	}

	ctor := findChild(class, "OrderService")
	if ctor == nil {
		t.Error("constructor not found under OrderService")
	}
	place := findChild(class, "place")
	if place == nil {
		t.Fatal("place not found under OrderService")
	}
	if place.Kind != SymbolKindMethod {
		t.Errorf("place kind = %q, want %q", place.Kind, SymbolKindMethod)
	}
	if place.Doc != "Places an order." {
		t.Errorf("place doc = %q", place.Doc)
	}
	if findChild(class, "if") != nil {
		t.Error("control-flow keyword recorded as method")
	}

	nested := findChild(class, "Validator")
	if nested == nil {
		t.Fatal("nested class Validator not found")
	}
	if nested.QualifiedName != class.QualifiedName+".Validator" {
		t.Errorf("Validator qualified name = %q", nested.QualifiedName)
	}

	iface := findChild(module, "Auditable")
	if iface == nil {
		t.Fatal("Auditable not found")
	}
	if iface.Kind != SymbolKindInterface {
		t.Errorf("Auditable kind = %q, want %q", iface.Kind, SymbolKindInterface)
	}
}

func TestJavaParser_References(t *testing.T) {
	parser := NewJavaParser()
	result, err := parser.Parse(context.Background(), []byte(javaFixture), "src/com/example/app/OrderService.java")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	imports := refsOfKind(result.References, RefKindImport)
	wantImports := []string{"java.util.List", "java.util.Objects.requireNonNull", "com.example.util.*"}
	if len(imports) != len(wantImports) {
		t.Fatalf("got %d import references, want %d: %+v", len(imports), len(wantImports), imports)
	}
	for i, want := range wantImports {
		if imports[i].Spec != want {
			t.Errorf("import[%d].Spec = %q, want %q", i, imports[i].Spec, want)
		}
	}

	extends := refsOfKind(result.References, RefKindExtends)
	wantExtends := map[string]bool{"BaseService": true, "Loggable": true, "Traceable": true}
	if len(extends) != len(wantExtends) {
		t.Fatalf("got %d extends references, want %d: %+v", len(extends), len(wantExtends), extends)
	}
	for _, ref := range extends {
		if !wantExtends[ref.Spec] {
			t.Errorf("unexpected extends reference %q", ref.Spec)
		}
	}

	impl := refsOfKind(result.References, RefKindImplements)
	wantImpl := map[string]bool{"Auditable": true, "Closeable": true}
	if len(impl) != len(wantImpl) {
		t.Fatalf("got %d implements references, want %d: %+v", len(impl), len(wantImpl), impl)
	}
	for _, ref := range impl {
		if !wantImpl[ref.Spec] {
			t.Errorf("unexpected implements reference %q", ref.Spec)
		}
	}
}

func TestJavaParser_GenericsInTypeList(t *testing.T) {
	src := `package p;
public class Cache extends AbstractMap<String, List<Integer>> implements Map<String, List<Integer>> {
}
`
	parser := NewJavaParser()
	result, err := parser.Parse(context.Background(), []byte(src), "Cache.java")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	extends := refsOfKind(result.References, RefKindExtends)
	if len(extends) != 1 || extends[0].Spec != "AbstractMap" {
		t.Errorf("extends = %+v, want one AbstractMap", extends)
	}
	impl := refsOfKind(result.References, RefKindImplements)
	if len(impl) != 1 || impl[0].Spec != "Map" {
		t.Errorf("implements = %+v, want one Map", impl)
	}
}

func TestJavaParser_ToleratesGarbage(t *testing.T) {
	src := "this is not java at all\n{{{ %% ]]\npublic class Survivor {\n}\n"
	parser := NewJavaParser()
	result, err := parser.Parse(context.Background(), []byte(src), "Survivor.java")
	if err != nil {
		t.Fatalf("Parse returned error for garbage input: %v", err)
	}
	if findChild(result.ModuleRoot(), "Survivor") == nil {
		t.Error("Survivor not found in mixed-garbage input")
	}
}

func TestJavaParser_Limits(t *testing.T) {
	parser := NewJavaParser(WithJavaMaxFileSize(8))
	_, err := parser.Parse(context.Background(), []byte("package p;\n"), "P.java")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}
