// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"bytes"
	"fmt"
	"math/rand"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// identSwap replaces one identifier reference with another identifier
// visible at the same point.
type identSwap struct{}

func (identSwap) Name() string { return "ident_swap" }

func (identSwap) Mutate(ast *js.AST, r *rand.Rand) error {
	forEachIdentSite(ast, r, func(w *js.Walker, expr *gojs.IExpr, v *gojs.Var) {
		candidates := w.Scopes.Idents()
		var usable [][]byte
		for _, cand := range candidates {
			if !bytes.Equal(cand, v.Data) {
				usable = append(usable, cand)
			}
		}
		if len(usable) == 0 {
			return
		}
		*expr = js.Ident(usable[r.Intn(len(usable))])
	})
	return nil
}

// removeProp strips one level of property access: x.y becomes x.
type removeProp struct{}

func (removeProp) Name() string { return "remove_prop" }

func (removeProp) Mutate(ast *js.AST, r *rand.Rand) error {
	count := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if _, ok := (*expr).(*gojs.DotExpr); ok && w.ForHeader() == js.ForNone {
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
		dot, ok := (*expr).(*gojs.DotExpr)
		if !ok || mw.ForHeader() != js.ForNone {
			return true
		}
		if idx == target {
			*expr = dot.X
		}
		idx++
		return true
	}
	mw.Walk(ast)
	return nil
}

// elementAccessor wraps one identifier in an element or property access:
// x becomes x[3], x[other] or x.__proto__.
type elementAccessor struct{}

var staticProperties = []string{"__proto__", "__length__", "foo"}

func (elementAccessor) Name() string { return "element_accessor" }

func (elementAccessor) Mutate(ast *js.AST, r *rand.Rand) error {
	forEachIdentSite(ast, r, func(w *js.Walker, expr *gojs.IExpr, v *gojs.Var) {
		base := string(v.Data)
		var src string
		if prob(r, 0.5) {
			src = fmt.Sprintf("%s[%s]", base, accessorIndex(w, r))
		} else if prob(r, 0.4) && len(w.Scopes.Idents()) > 0 {
			src = fmt.Sprintf("%s[%s]", base, w.Scopes.ChooseIdent(r))
		} else {
			src = fmt.Sprintf("%s.%s", base, staticProperties[r.Intn(len(staticProperties))])
		}
		if wrapped, err := js.ParseExpr([]byte(src)); err == nil {
			*expr = wrapped
		}
	})
	return nil
}

func accessorIndex(w *js.Walker, r *rand.Rand) string {
	if prob(r, 0.5) {
		if name := w.Scopes.ChooseIdent(r); name != nil {
			return string(name)
		}
	}
	return js.FormatNumber(float64(r.Intn(6)))
}

// forEachIdentSite runs fn on one uniformly chosen identifier reference
// outside for-loop headers. Does nothing if the AST has none.
func forEachIdentSite(ast *js.AST, r *rand.Rand, fn func(w *js.Walker, expr *gojs.IExpr, v *gojs.Var)) {
	count := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if _, ok := (*expr).(*gojs.Var); ok && w.ForHeader() == js.ForNone {
			count++
		}
		return true
	}
	w.Walk(ast)
	if count == 0 {
		return
	}

	target := r.Intn(count)
	idx := 0
	done := false
	mw := js.NewWalker()
	mw.OnExpr = func(expr *gojs.IExpr) bool {
		v, ok := (*expr).(*gojs.Var)
		if !ok || mw.ForHeader() != js.ForNone || done {
			return true
		}
		if idx == target {
			fn(mw, expr, v)
			done = true
		}
		idx++
		return false
	}
	mw.Walk(ast)
}
