// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"bytes"
	"math/rand"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// exprSwapDup is one mutator with two modes. Swap exchanges two
// expressions by sequential index; Dup replaces one expression with a
// fresh draw from the in-scope expression or identifier pools. Either
// mode occasionally substitutes an in-scope function identifier instead.
type exprSwapDup struct {
	funcReplaceProb float64
}

const (
	swapModeProb     = 0.1
	identRewriteProb = 0.5
)

func (*exprSwapDup) Name() string { return "expr_swap_dup" }

func (m *exprSwapDup) Mutate(ast *js.AST, r *rand.Rand) error {
	var exprs []gojs.IExpr
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if w.ForHeader() != js.ForNone {
			return true
		}
		exprs = append(exprs, *expr)
		return true
	}
	w.Walk(ast)
	if len(exprs) < 2 {
		return nil
	}

	if prob(r, swapModeProb) {
		m.swap(ast, exprs, r)
	} else {
		m.dup(ast, len(exprs), r)
	}
	return nil
}

func (m *exprSwapDup) swap(ast *js.AST, exprs []gojs.IExpr, r *rand.Rand) {
	idx1 := r.Intn(len(exprs))
	idx2 := r.Intn(len(exprs))
	for idx2 == idx1 {
		idx2 = r.Intn(len(exprs))
	}

	// Record the two slots (and the functions visible there) during the
	// walk; exchange after it so index accounting stays untouched.
	type slot struct {
		ptr   *gojs.IExpr
		funcs [][]byte
	}
	var slot1, slot2 slot
	idx := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if w.ForHeader() != js.ForNone {
			return true
		}
		switch idx {
		case idx1:
			slot1 = slot{ptr: expr, funcs: w.Scopes.Funcs()}
		case idx2:
			slot2 = slot{ptr: expr, funcs: w.Scopes.Funcs()}
		}
		idx++
		return true
	}
	w.Walk(ast)

	replace := func(s slot, with gojs.IExpr) {
		if s.ptr == nil {
			return
		}
		if name := m.maybeFuncRef(r, s.funcs); name != nil {
			*s.ptr = name
			return
		}
		*s.ptr = js.CloneExpr(with)
	}
	replace(slot1, exprs[idx2])
	replace(slot2, exprs[idx1])
}

func (m *exprSwapDup) dup(ast *js.AST, exprCount int, r *rand.Rand) {
	target := r.Intn(exprCount)
	idx := 0
	replaced := false
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if w.ForHeader() != js.ForNone {
			return true
		}
		myIdx := idx
		idx++
		if replaced || myIdx != target {
			w.Scopes.AddExpr(*expr)
			return true
		}
		replacement := m.pickReplacement(w, r)
		if replacement == nil {
			w.Scopes.AddExpr(*expr)
			return true
		}
		replacement = js.CloneExpr(replacement)
		rewriteIdents(&replacement, r, w.Scopes.IdentsAndFuncs())
		*expr = replacement
		replaced = true
		return false
	}
	w.Walk(ast)
}

func (m *exprSwapDup) maybeFuncRef(r *rand.Rand, funcs [][]byte) gojs.IExpr {
	if !prob(r, m.funcReplaceProb) || len(funcs) == 0 {
		return nil
	}
	return js.Ident(funcs[r.Intn(len(funcs))])
}

func (m *exprSwapDup) pickReplacement(w *js.Walker, r *rand.Rand) gojs.IExpr {
	if name := m.maybeFuncRef(r, w.Scopes.Funcs()); name != nil {
		return name
	}
	if prob(r, 0.5) {
		candidates := w.Scopes.IdentsAndFuncs()
		if len(candidates) == 0 {
			return nil
		}
		return js.Ident(candidates[r.Intn(len(candidates))])
	}
	return w.Scopes.ChooseExpr(r)
}

// rewriteIdents rewrites identifiers inside a replacement expression to
// compatible identifiers from the visible scope (with probability 0.5
// each). This avoids dead references when an expression is transplanted
// across contexts.
func rewriteIdents(expr *gojs.IExpr, r *rand.Rand, candidates [][]byte) {
	if len(candidates) < 2 {
		return
	}
	w := js.NewWalker()
	w.OnExpr = func(e *gojs.IExpr) bool {
		v, ok := (*e).(*gojs.Var)
		if !ok {
			return true
		}
		var compatible [][]byte
		for _, cand := range candidates {
			if !bytes.Equal(cand, v.Data) {
				compatible = append(compatible, cand)
			}
		}
		if len(compatible) == 0 || !prob(r, identRewriteProb) {
			return true
		}
		*e = js.Ident(compatible[r.Intn(len(compatible))])
		return true
	}
	w.WalkExpr(expr)
}
