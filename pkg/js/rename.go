// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package js

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"
)

// CollectNames returns every identifier name occurring in the AST,
// declared or not. Splicing uses it as the "taken" set when renaming
// donor declarations.
func CollectNames(ast *AST) map[string]bool {
	names := make(map[string]bool)
	for _, v := range collectVars(ast) {
		names[string(varName(v))] = true
	}
	return names
}

// RenameDecls renames every declaration in the AST to a fresh synthetic
// name: variables, parameters, catch bindings and lexical names become
// v0, v1, ...; function declarations become f0, f1, ... Names in `taken`
// are never produced. References share their declaration's Var node, so
// renaming is scope-respecting by construction.
func RenameDecls(ast *AST, taken map[string]bool) {
	var varCount, funcCount int
	nextName := func(prefix string, count *int) []byte {
		for {
			name := fmt.Sprintf("%s%d", prefix, *count)
			*count++
			if !taken[name] {
				return []byte(name)
			}
		}
	}
	renamed := make(map[*js.Var]bool)
	for _, v := range collectVars(ast) {
		root := v
		for root.Link != nil {
			root = root.Link
		}
		if renamed[root] || root.Decl == js.NoDecl {
			continue
		}
		renamed[root] = true
		if root.Decl == js.FunctionDecl {
			root.Data = nextName("f", &funcCount)
		} else {
			root.Data = nextName("v", &varCount)
		}
	}
}

// collectVars gathers every distinct *js.Var reachable from the AST, both
// expression references and binding positions.
func collectVars(ast *AST) []*js.Var {
	var out []*js.Var
	seen := make(map[*js.Var]bool)
	add := func(v *js.Var) {
		if v != nil && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	var visitBinding func(binding js.IBinding)
	visitBinding = func(binding js.IBinding) {
		switch b := binding.(type) {
		case *js.Var:
			add(b)
		case *js.BindingArray:
			for i := range b.List {
				if b.List[i].Binding != nil {
					visitBinding(b.List[i].Binding)
				}
			}
			if b.Rest != nil {
				visitBinding(b.Rest)
			}
		case *js.BindingObject:
			for i := range b.List {
				if b.List[i].Value.Binding != nil {
					visitBinding(b.List[i].Value.Binding)
				}
			}
			if b.Rest != nil {
				add(b.Rest)
			}
		}
	}
	visitVarDecl := func(decl *js.VarDecl) {
		for i := range decl.List {
			if decl.List[i].Binding != nil {
				visitBinding(decl.List[i].Binding)
			}
		}
	}

	w := NewWalker()
	w.OnExpr = func(expr *js.IExpr) bool {
		switch ex := (*expr).(type) {
		case *js.Var:
			add(ex)
		case *js.FuncDecl:
			add(ex.Name)
			visitParams(&ex.Params, visitBinding)
		case *js.ArrowFunc:
			visitParams(&ex.Params, visitBinding)
		case *js.ClassDecl:
			add(ex.Name)
		case *js.VarDecl:
			visitVarDecl(ex)
		}
		return true
	}
	w.OnStmt = func(stmt js.IStmt) {
		switch st := stmt.(type) {
		case *js.FuncDecl:
			add(st.Name)
			visitParams(&st.Params, visitBinding)
		case *js.ClassDecl:
			add(st.Name)
			for i := range st.List {
				if st.List[i].Method != nil {
					visitParams(&st.List[i].Method.Params, visitBinding)
				}
			}
		case *js.VarDecl:
			visitVarDecl(st)
		case *js.TryStmt:
			if st.Binding != nil {
				visitBinding(st.Binding)
			}
		}
	}
	w.Walk(ast)
	return out
}

func visitParams(params *js.Params, visitBinding func(js.IBinding)) {
	for i := range params.List {
		if params.List[i].Binding != nil {
			visitBinding(params.List[i].Binding)
		}
	}
	if params.Rest != nil {
		visitBinding(params.Rest)
	}
}
