// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// booleanFlipper inverts one boolean literal.
type booleanFlipper struct{}

func (booleanFlipper) Name() string { return "boolean_flipper" }

func (booleanFlipper) Mutate(ast *js.AST, r *rand.Rand) error {
	count := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if _, ok := js.IsBooleanLiteral(*expr); ok {
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
		lit, ok := js.IsBooleanLiteral(*expr)
		if !ok {
			return true
		}
		if idx == target {
			if lit.TokenType == gojs.TrueToken {
				lit.TokenType = gojs.FalseToken
				lit.Data = []byte("false")
			} else {
				lit.TokenType = gojs.TrueToken
				lit.Data = []byte("true")
			}
		}
		idx++
		return true
	}
	mw.Walk(ast)
	return nil
}
