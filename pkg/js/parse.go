// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package js wraps the external ECMAScript parser/printer behind the
// parse/emit contract the mutators rely on, and provides the scope-aware
// AST traversal framework they share.
package js

import (
	"bytes"
	"fmt"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// AST is the parsed form of one script.
type AST = js.AST

// Parse parses src as a script.
func Parse(src []byte) (*AST, error) {
	ast, err := js.Parse(parse.NewInputBytes(src), js.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return ast, nil
}

// Emit prints the AST back to JavaScript source bytes.
func Emit(ast *AST) []byte {
	var buf bytes.Buffer
	ast.JS(&buf)
	return buf.Bytes()
}

// Clone produces an independent copy of the AST. Mutators hold on to their
// input across scheduling, so aliasing is not acceptable; a print/parse
// round trip is the cheapest way to sever all node sharing.
func Clone(ast *AST) (*AST, error) {
	return Parse(Emit(ast))
}

// EmitExpr prints a single expression.
func EmitExpr(expr js.IExpr) []byte {
	var buf bytes.Buffer
	expr.JS(&buf)
	return buf.Bytes()
}

// ParseExpr parses a single expression. Mutators that synthesize composite
// nodes (member chains, call wrappers) go through here instead of filling
// in printer-internal node fields by hand.
func ParseExpr(src []byte) (js.IExpr, error) {
	full := append([]byte("("), src...)
	full = append(full, []byte(");")...)
	ast, err := Parse(full)
	if err != nil {
		return nil, err
	}
	if len(ast.List) == 0 {
		return nil, fmt.Errorf("no expression in %q", src)
	}
	stmt, ok := ast.List[0].(*js.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("not an expression: %q", src)
	}
	value := stmt.Value
	if group, ok := value.(*js.GroupExpr); ok {
		value = group.X
	}
	return value, nil
}

// CloneExpr deep-copies an expression via a print/parse round trip.
// On a parse failure (pathological nested cases) the original node is
// returned; the caller then shares structure, which is still sound for
// emission.
func CloneExpr(expr js.IExpr) js.IExpr {
	cloned, err := ParseExpr(EmitExpr(expr))
	if err != nil {
		return expr
	}
	return cloned
}
