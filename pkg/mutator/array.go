// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// arrayMutator grows or shrinks one array literal. Growth fills with a
// weighted mix of literals and identifiers drawn from the surrounding
// scope; the latter is what makes this family semantically interesting.
type arrayMutator struct{}

func (arrayMutator) Name() string { return "array_mutator" }

func (arrayMutator) Mutate(ast *js.AST, r *rand.Rand) error {
	count := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if _, ok := (*expr).(*gojs.ArrayExpr); ok {
			count++
		}
		return true
	}
	w.Walk(ast)
	if count == 0 {
		return nil
	}

	target := r.Intn(count)
	idx := 0
	mw := js.NewWalker()
	mw.OnExpr = func(expr *gojs.IExpr) bool {
		arr, ok := (*expr).(*gojs.ArrayExpr)
		if !ok {
			return true
		}
		if idx == target {
			mutateArray(mw, arr, r)
		}
		idx++
		return true
	}
	mw.Walk(ast)
	return nil
}

func mutateArray(w *js.Walker, arr *gojs.ArrayExpr, r *rand.Rand) {
	originalLen := len(arr.List)
	var newLen int
	if prob(r, 0.5) {
		newLen = originalLen + 1 + r.Intn(5)
	} else if originalLen == 0 {
		newLen = 0
	} else {
		newLen = r.Intn(originalLen)
	}

	if newLen < originalLen {
		arr.List = arr.List[:newLen]
		return
	}
	if newLen == originalLen {
		return
	}

	kind := chooseWeighted(r, []weighted{
		{"smi", 30},
		{"float", 20},
		{"nan", 5},
		{"undefined", 10},
		{"context_obj", 10},
	})
	idents := w.Scopes.IdentsAndFuncs()
	if kind == "context_obj" && len(idents) == 0 {
		kind = "undefined"
	}
	for i := originalLen; i < newLen; i++ {
		var value gojs.IExpr
		switch kind {
		case "smi":
			value = js.Number(float64(r.Intn(201) - 100))
		case "float":
			value = js.Number(r.Float64()*200 - 100)
		case "nan":
			value = js.Ident([]byte("NaN"))
		case "context_obj":
			value = js.Ident(idents[r.Intn(len(idents))])
		default:
			value = js.Ident([]byte("undefined"))
		}
		arr.List = append(arr.List, gojs.Element{Value: value})
	}
}
