// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package js

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gojs "github.com/tdewolff/parse/v2/js"
)

func TestParseEmitRoundTrip(t *testing.T) {
	sources := []string{
		`let x = 1; x += 2;`,
		`for (let i = 0; i < 10; i++) a[i] = i * 2;`,
		`function f(a, b = 1, ...rest) { return a + b; }`,
		`const {a, b: c = 1, ...r} = obj; const [x, , y] = arr;`,
		`try { f(); } catch (e) { g(e); } finally { h(); }`,
		`class C extends B { constructor(x) { super(x); } m() { return 1; } }`,
		`switch (x) { case 1: f(); break; default: g(); }`,
		"`tpl ${a + b} end`;",
	}
	for _, src := range sources {
		ast, err := Parse([]byte(src))
		require.NoError(t, err, src)
		emitted := Emit(ast)
		// parse(emit(parse(s))) must equal parse(s) up to AST
		// equivalence; re-emitting is the cheapest normal form.
		ast2, err := Parse(emitted)
		require.NoError(t, err, "re-parse of %q -> %q", src, emitted)
		assert.Equal(t, string(emitted), string(Emit(ast2)), src)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ast, err := Parse([]byte(`let x = 1; f(x);`))
	require.NoError(t, err)
	clone, err := Clone(ast)
	require.NoError(t, err)
	RenameDecls(clone, nil)
	assert.NotEqual(t, string(Emit(ast)), string(Emit(clone)))
	assert.Contains(t, string(Emit(ast)), "x")
}

func TestScopeStackHoisting(t *testing.T) {
	s := NewScopeStack()
	s.BindCurrent([]byte("g"))
	s.Push(ScopeFunction)
	s.Push(ScopeBlock)
	s.BindHoisted([]byte("hoisted"))
	s.BindCurrent([]byte("blockLocal"))
	assert.Len(t, s.Idents(), 3)
	s.Pop()
	// The var survived the block, the let did not.
	names := make([]string, 0)
	for _, n := range s.Idents() {
		names = append(names, string(n))
	}
	assert.ElementsMatch(t, []string{"g", "hoisted"}, names)
}

func TestWalkerScopes(t *testing.T) {
	src := `
var top = 1;
function outer(param) {
  let local = 2;
  { let inner = 3; use(inner); }
  use(local);
}
use(top);`
	ast, err := Parse([]byte(src))
	require.NoError(t, err)

	visible := make(map[string][]string)
	w := NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		call, ok := (*expr).(*gojs.CallExpr)
		if !ok {
			return true
		}
		if v, ok := call.X.(*gojs.Var); ok && string(v.Data) == "use" {
			arg := call.Args.List[0].Value.(*gojs.Var)
			var names []string
			for _, n := range w.Scopes.Idents() {
				names = append(names, string(n))
			}
			visible[string(arg.Data)] = names
		}
		return true
	}
	w.Walk(ast)

	assert.Contains(t, visible["inner"], "inner")
	assert.Contains(t, visible["inner"], "local")
	assert.Contains(t, visible["inner"], "param")
	assert.Contains(t, visible["inner"], "top")
	assert.NotContains(t, visible["local"], "inner")
	assert.NotContains(t, visible["top"], "local")
}

func TestWalkerForHeader(t *testing.T) {
	src := `for (let i = 0; i < 10; i += 1) body(i); after();`
	ast, err := Parse([]byte(src))
	require.NoError(t, err)

	headers := make(map[string]ForHeader)
	w := NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if lit, ok := IsNumericLiteral(*expr); ok {
			headers[string(lit.Data)] = w.ForHeader()
		}
		return true
	}
	w.Walk(ast)

	assert.Equal(t, ForInit, headers["0"])
	assert.Equal(t, ForTest, headers["10"])
	assert.Equal(t, ForUpdate, headers["1"])
}

func TestWalkerIndexContext(t *testing.T) {
	src := `a[5] = b.c + d[i];`
	ast, err := Parse([]byte(src))
	require.NoError(t, err)

	inIndex := false
	w := NewWalker()
	w.OnExpr = func(expr *gojs.IExpr) bool {
		if lit, ok := IsNumericLiteral(*expr); ok && string(lit.Data) == "5" {
			inIndex = w.InIndex()
		}
		return true
	}
	w.Walk(ast)
	assert.True(t, inIndex)
}

func TestRenameDecls(t *testing.T) {
	src := `
function helper(n) { return n + free; }
let count = 0;
{ let count = 1; helper(count); }
helper(count);`
	ast, err := Parse([]byte(src))
	require.NoError(t, err)
	RenameDecls(ast, map[string]bool{"v0": true})
	out := string(Emit(ast))

	assert.Contains(t, out, "f0")
	assert.NotContains(t, out, "helper")
	assert.NotContains(t, out, "count")
	// Taken names are skipped, globals are left alone.
	assert.NotContains(t, out, "v0")
	assert.Contains(t, out, "free")
}

func TestPatternBindings(t *testing.T) {
	ast, err := Parse([]byte(`const {a, b: c = 1, ...r} = o; const [x, , y] = arr;`))
	require.NoError(t, err)
	var names []string
	w := NewWalker()
	w.OnStmt = func(stmt gojs.IStmt) {
		decl, ok := stmt.(*gojs.VarDecl)
		if !ok {
			return
		}
		for i := range decl.List {
			for _, n := range PatternBindings(decl.List[i].Binding) {
				names = append(names, string(n))
			}
		}
	}
	w.Walk(ast)
	assert.ElementsMatch(t, []string{"a", "c", "r", "x", "y"}, names)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "42", FormatNumber(42))
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "2.5", FormatNumber(2.5))
	assert.Equal(t, "1e+100", FormatNumber(1e100))
}

func TestParseNumber(t *testing.T) {
	for raw, want := range map[string]float64{
		"42":    42,
		"0x10":  16,
		"0b101": 5,
		"0o17":  15,
		"1_000": 1000,
		"2.5":   2.5,
	} {
		v, ok := ParseNumber([]byte(raw))
		assert.True(t, ok, raw)
		assert.Equal(t, want, v, raw)
	}
}
