// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"
	"math/rand"
	"strings"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// ctorCall wraps values in builtin constructor calls, optionally chained
// (`new Set(new Number(x))`) and interleaved with instance method calls
// against a temporary binding. Two modes: wrap one identifier reference,
// or wrap one declarator initializer (`let x = e` -> `let x = new C(e)`).
type ctorCall struct{}

func (ctorCall) Name() string { return "ctor_call" }

func (ctorCall) Mutate(ast *js.AST, r *rand.Rand) error {
	if prob(r, 1.0/3) {
		wrapIdentInCtor(ast, r)
	} else {
		wrapDeclInCtor(ast, r)
	}
	return nil
}

func wrapIdentInCtor(ast *js.AST, r *rand.Rand) {
	forEachIdentSite(ast, r, func(w *js.Walker, expr *gojs.IExpr, v *gojs.Var) {
		src := chainedCtorSrc(r, string(v.Data), identPool(w))
		if wrapped, err := js.ParseExpr([]byte(src)); err == nil {
			*expr = wrapped
		}
	})
}

func wrapDeclInCtor(ast *js.AST, r *rand.Rand) {
	count := 0
	w := js.NewWalker()
	w.OnStmt = func(stmt gojs.IStmt) {
		if decl, ok := stmt.(*gojs.VarDecl); ok {
			for i := range decl.List {
				if decl.List[i].Default != nil {
					count++
				}
			}
		}
	}
	w.Walk(ast)
	if count == 0 {
		return
	}

	target := r.Intn(count)
	idx := 0
	mw := js.NewWalker()
	mw.OnStmt = func(stmt gojs.IStmt) {
		decl, ok := stmt.(*gojs.VarDecl)
		if !ok {
			return
		}
		for i := range decl.List {
			elt := &decl.List[i]
			if elt.Default == nil {
				continue
			}
			if idx == target {
				src := chainedCtorSrc(r, string(js.EmitExpr(elt.Default)), identPool(mw))
				if wrapped, err := js.ParseExpr([]byte(src)); err == nil {
					elt.Default = wrapped
				}
			}
			idx++
		}
	}
	mw.Walk(ast)
}

// chainedCtorSrc builds `new C(base)`, possibly nested several
// constructors deep, each layer optionally exercising a few instance
// methods through an IIFE before handing the object to the next layer.
func chainedCtorSrc(r *rand.Rand, base string, pool []string) string {
	obj := randomConstructible(r)
	src := ctorSrc(r, obj, base, pool)
	depth := r.Intn(5)
	for i := 1; i < depth; i++ {
		next := randomConstructible(r)
		src = ctorSrc(r, next, src, pool)
	}
	return src
}

func ctorSrc(r *rand.Rand, obj *builtinObject, arg string, pool []string) string {
	src := fmt.Sprintf("new %s(%s)", obj.name, arg)
	methods := obj.instanceMethods()
	if len(methods) == 0 {
		return src
	}
	callCount := r.Intn(6)
	if callCount > len(methods) {
		callCount = len(methods)
	}
	if callCount == 0 {
		return src
	}
	tmp := fmt.Sprintf("__tmp%d", r.Intn(10000))
	var b strings.Builder
	fmt.Fprintf(&b, "(() => { const %s = %s; ", tmp, src)
	layerPool := append(append([]string{}, pool...), tmp)
	for i := 0; i < callCount; i++ {
		method := methods[r.Intn(len(methods))]
		args := buildArgs(r, method.randomSig(r), layerPool)
		fmt.Fprintf(&b, "%s.%s(%s); ", tmp, method.name, strings.Join(args, ", "))
	}
	fmt.Fprintf(&b, "return %s; })()", tmp)
	return b.String()
}
