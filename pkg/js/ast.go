// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package js

import (
	"math"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/js"
)

// Node construction helpers shared by the mutators.

// Ident builds a free-standing identifier reference.
func Ident(name []byte) js.IExpr {
	return &js.Var{Data: name}
}

// Number builds an expression evaluating to v, including the values that
// have no literal form (NaN, ±Infinity, -0, negatives).
func Number(v float64) js.IExpr {
	switch {
	case math.IsNaN(v):
		return Ident([]byte("NaN"))
	case math.IsInf(v, 1):
		return Ident([]byte("Infinity"))
	case math.IsInf(v, -1):
		return &js.UnaryExpr{Op: js.NegToken, X: Ident([]byte("Infinity"))}
	case v == 0 && math.Signbit(v):
		return &js.UnaryExpr{Op: js.NegToken, X: numberLiteral(0)}
	case v < 0:
		return &js.UnaryExpr{Op: js.NegToken, X: numberLiteral(-v)}
	default:
		return numberLiteral(v)
	}
}

func numberLiteral(v float64) js.IExpr {
	return &js.LiteralExpr{TokenType: js.DecimalToken, Data: []byte(FormatNumber(v))}
}

// String builds a string literal.
func String(s string) js.IExpr {
	data := append([]byte{'"'}, []byte(s)...)
	return &js.LiteralExpr{TokenType: js.StringToken, Data: append(data, '"')}
}

// FormatNumber renders a non-negative finite value the way the corpus
// stores numeric literals: integer form where the fractional part is
// zero, fixed precision with trailing zeros trimmed otherwise.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) {
		if math.Abs(v) <= math.MaxInt64 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'e', 0, 64)
	}
	s := strconv.FormatFloat(v, 'f', 12, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// ParseNumber decodes the raw text of a numeric literal. Underscore
// separators are allowed; hex, octal and binary forms are handled.
func ParseNumber(data []byte) (float64, bool) {
	s := strings.ReplaceAll(string(data), "_", "")
	if len(s) > 1 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsNumericLiteral reports whether the expression is a numeric literal
// the numeric mutators can operate on (bigints are excluded: their
// arithmetic rules differ and naive tweaks produce type errors).
func IsNumericLiteral(expr js.IExpr) (*js.LiteralExpr, bool) {
	lit, ok := expr.(*js.LiteralExpr)
	if !ok {
		return nil, false
	}
	switch lit.TokenType {
	case js.DecimalToken, js.IntegerToken, js.BinaryToken, js.OctalToken, js.HexadecimalToken:
		return lit, true
	}
	return nil, false
}

// IsBooleanLiteral reports whether the expression is `true` or `false`.
func IsBooleanLiteral(expr js.IExpr) (*js.LiteralExpr, bool) {
	lit, ok := expr.(*js.LiteralExpr)
	if !ok {
		return nil, false
	}
	if lit.TokenType == js.TrueToken || lit.TokenType == js.FalseToken {
		return lit, true
	}
	return nil, false
}
