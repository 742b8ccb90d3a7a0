// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"math/rand"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// numericTweaker rewrites one numeric literal. Literals in for-loop test
// clauses and computed member indices get conservative, integral
// treatment: aggressive values there are the dominant source of script
// timeouts and sparse-array blowups.
type numericTweaker struct{}

const (
	forTestMaxAbs = 1000.0
	arrayIndexMax = 1024.0
)

func (numericTweaker) Name() string { return "numeric_tweaker" }

func (numericTweaker) Mutate(ast *js.AST, r *rand.Rand) error {
	count := 0
	w := js.NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if _, ok := js.IsNumericLiteral(*expr); ok {
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
		lit, ok := js.IsNumericLiteral(*expr)
		if !ok {
			return true
		}
		if idx != target {
			idx++
			return true
		}
		idx++
		tweakNumeric(mw, expr, lit, r)
		return true
	}
	mw.Walk(ast)
	return nil
}

func tweakNumeric(w *js.Walker, expr *gojs.IExpr, lit *gojs.LiteralExpr, r *rand.Rand) {
	original, ok := js.ParseNumber(lit.Data)
	if !ok {
		return
	}
	switch w.ForHeader() {
	case js.ForInit, js.ForUpdate:
		// Init/update literals influence the trip count too heavily.
		return
	case js.ForTest:
		tweakForTestBound(expr, lit, original, r)
		return
	}
	if w.InIndex() {
		tweakArrayIndex(expr, lit, original, r)
		return
	}

	newValue := original
	switch chooseWeighted(r, []weighted{
		{"small_delta", 18},
		{"inc", 15},
		{"dec", 15},
		{"flip_sign", 10},
		{"truncate_int", 8},
		{"random_fraction", 8},
		{"scale_mult", 8},
		{"to_neg_zero", 5},
		{"pow2", 4},
		{"to_extreme_large", 3},
		{"to_extreme_small", 3},
		{"to_nan", 2},
		{"to_infinity", 2},
		{"to_neg_infinity", 2},
		{"to_undefined", 1},
		{"to_null", 1},
	}) {
	case "small_delta":
		if prob(r, 0.7) {
			// Keep integral literals integral while exploring nearby values.
			delta := math.Round(smallDelta(r, 1.0))
			newValue = original + math.Max(-10, math.Min(10, delta))
		} else {
			newValue = original + smallDelta(r, original)
		}
	case "inc":
		newValue = original + float64(1+r.Intn(5))
	case "dec":
		newValue = original - float64(1+r.Intn(5))
	case "flip_sign":
		newValue = -original
	case "truncate_int":
		newValue = math.Trunc(original)
	case "random_fraction":
		newValue = r.Float64()
	case "scale_mult":
		if prob(r, 0.5) {
			newValue = original * 0.5
		} else {
			newValue = original * 2.0
		}
	case "to_neg_zero":
		newValue = math.Copysign(0, -1)
	case "pow2":
		newValue = math.Pow(2, float64(r.Intn(61)))
		if prob(r, 0.1) {
			newValue = -newValue
		}
	case "to_extreme_large":
		newValue = []float64{1e100, 1e200, 1e308}[r.Intn(3)]
	case "to_extreme_small":
		newValue = []float64{1e-100, 1e-200, 1e-308}[r.Intn(3)]
	case "to_nan":
		newValue = math.NaN()
	case "to_infinity":
		newValue = math.Inf(1)
	case "to_neg_infinity":
		newValue = math.Inf(-1)
	case "to_undefined":
		*expr = js.Ident([]byte("undefined"))
		return
	case "to_null":
		*expr = &gojs.LiteralExpr{TokenType: gojs.NullToken, Data: []byte("null")}
		return
	}
	setNumber(expr, lit, newValue)
}

// tweakForTestBound applies a small, integral perturbation to a loop upper
// bound, clamped into [0, forTestMaxAbs].
func tweakForTestBound(expr *gojs.IExpr, lit *gojs.LiteralExpr, original float64, r *rand.Rand) {
	newValue := original
	switch chooseWeighted(r, []weighted{
		{"inc", 6},
		{"dec", 4},
		{"scale_down", 3},
		{"scale_up", 1},
		{"keep", 8},
	}) {
	case "inc":
		newValue = original + float64(1+r.Intn(5))
	case "dec":
		newValue = original - float64(1+r.Intn(5))
	case "scale_down":
		newValue = original * 0.5
	case "scale_up":
		newValue = original * 2.0
	}
	newValue = math.Round(newValue)
	if !isFinite(newValue) {
		newValue = original
	}
	newValue = math.Max(0, math.Min(forTestMaxAbs, newValue))
	if newValue == 0 && original > 0 {
		// Don't turn a clearly bounded loop into a no-op.
		newValue = 1
	}
	setNumber(expr, lit, newValue)
}

// tweakArrayIndex biases computed member indices towards small,
// non-negative integers.
func tweakArrayIndex(expr *gojs.IExpr, lit *gojs.LiteralExpr, original float64, r *rand.Rand) {
	newValue := original
	switch chooseWeighted(r, []weighted{
		{"keep", 12},
		{"small_delta", 10},
		{"random_small", 8},
		{"zero", 6},
		{"one", 6},
	}) {
	case "small_delta":
		newValue = math.Round(original + float64(r.Intn(7)-3))
	case "random_small":
		newValue = float64(r.Intn(33))
	case "zero":
		newValue = 0
	case "one":
		newValue = 1
	}
	newValue = math.Round(math.Max(0, math.Min(arrayIndexMax, newValue)))
	setNumber(expr, lit, newValue)
}

func setNumber(expr *gojs.IExpr, lit *gojs.LiteralExpr, v float64) {
	if isFinite(v) && !math.Signbit(v) {
		lit.TokenType = gojs.DecimalToken
		lit.Data = []byte(js.FormatNumber(v))
		return
	}
	// NaN, infinities and negative values have no plain literal form.
	*expr = js.Number(v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
