// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// operatorSwap replaces one binary operator, usually with another of the
// same category, occasionally across categories. For-loop headers are
// left alone.
type operatorSwap struct{}

var operatorGroups = [][]gojs.TokenType{
	{gojs.AddToken, gojs.SubToken, gojs.MulToken, gojs.DivToken, gojs.ModToken, gojs.ExpToken},
	{gojs.AndToken, gojs.OrToken},
	{gojs.BitOrToken, gojs.BitAndToken, gojs.BitXorToken, gojs.LtLtToken, gojs.GtGtToken, gojs.GtGtGtToken},
	{gojs.EqEqToken, gojs.NotEqToken, gojs.EqEqEqToken, gojs.NotEqEqToken,
		gojs.LtToken, gojs.LtEqToken, gojs.GtToken, gojs.GtEqToken},
	{gojs.InToken, gojs.InstanceofToken},
}

const crossGroupProb = 0.15

func (operatorSwap) Name() string { return "operator_swap" }

func (operatorSwap) Mutate(ast *js.AST, r *rand.Rand) error {
	count := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if bin, ok := (*expr).(*gojs.BinaryExpr); ok && w.ForHeader() == js.ForNone {
			if groupOf(bin.Op) >= 0 {
				count++
			}
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
		bin, ok := (*expr).(*gojs.BinaryExpr)
		if !ok || mw.ForHeader() != js.ForNone {
			return true
		}
		group := groupOf(bin.Op)
		if group < 0 {
			return true
		}
		if idx == target {
			bin.Op = pickOperator(r, group, bin.Op)
		}
		idx++
		return true
	}
	mw.Walk(ast)
	return nil
}

func groupOf(op gojs.TokenType) int {
	for i, group := range operatorGroups {
		for _, candidate := range group {
			if candidate == op {
				return i
			}
		}
	}
	return -1
}

func pickOperator(r *rand.Rand, group int, current gojs.TokenType) gojs.TokenType {
	if prob(r, crossGroupProb) {
		other := r.Intn(len(operatorGroups) - 1)
		if other >= group {
			other++
		}
		candidates := operatorGroups[other]
		return candidates[r.Intn(len(candidates))]
	}
	var candidates []gojs.TokenType
	for _, op := range operatorGroups[group] {
		if op != current {
			candidates = append(candidates, op)
		}
	}
	if len(candidates) == 0 {
		return current
	}
	return candidates[r.Intn(len(candidates))]
}
