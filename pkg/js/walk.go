// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package js

import (
	"github.com/tdewolff/parse/v2/js"
)

// ForHeader says which clause of a classical `for (...)` statement the
// walk is currently inside. Mutators consult it to refuse transformations
// of loop counters, the dominant source of script timeouts.
type ForHeader int

const (
	ForNone ForHeader = iota
	ForInit
	ForTest
	ForUpdate
)

// Walker drives a scope-tracking traversal of an AST. Mutators install the
// On* hooks (closing over the Walker itself for scope queries) and call
// Walk.
//
// OnExpr receives every expression slot by pointer and may replace the
// expression in place; returning false skips the children. OnStmt receives
// every statement before it is descended into. OnStmts receives every
// statement container (script body, block bodies, switch cases, catch
// bodies) before its statements are walked.
type Walker struct {
	Scopes *ScopeStack

	OnExpr  func(expr *js.IExpr) bool
	OnStmt  func(stmt js.IStmt)
	OnStmts func(list *[]js.IStmt)

	forHeader ForHeader
	inIndex   bool
}

func NewWalker() *Walker {
	return &Walker{Scopes: NewScopeStack()}
}

// ForHeader reports the current for-header clause, if any.
func (w *Walker) ForHeader() ForHeader {
	return w.forHeader
}

// InIndex reports whether the walk is inside the index expression of a
// computed member access (`a[<here>]`).
func (w *Walker) InIndex() bool {
	return w.inIndex
}

func (w *Walker) Walk(ast *AST) {
	w.walkStmts(&ast.List)
}

// WalkExpr walks a detached expression tree (e.g. a replacement candidate
// before it is planted into an AST).
func (w *Walker) WalkExpr(expr *js.IExpr) {
	w.walkExpr(expr)
}

func (w *Walker) walkStmts(list *[]js.IStmt) {
	if w.OnStmts != nil {
		w.OnStmts(list)
	}
	for i := 0; i < len(*list); i++ {
		w.walkStmt((*list)[i])
	}
}

func (w *Walker) walkStmt(stmt js.IStmt) {
	if w.OnStmt != nil {
		w.OnStmt(stmt)
	}
	switch st := stmt.(type) {
	case *js.BlockStmt:
		w.Scopes.Push(ScopeBlock)
		w.walkStmts(&st.List)
		w.Scopes.Pop()
	case *js.ExprStmt:
		w.walkExpr(&st.Value)
	case *js.IfStmt:
		w.walkExpr(&st.Cond)
		w.walkStmt(st.Body)
		if st.Else != nil {
			w.walkStmt(st.Else)
		}
	case *js.DoWhileStmt:
		w.walkStmt(st.Body)
		w.walkExpr(&st.Cond)
	case *js.WhileStmt:
		w.walkExpr(&st.Cond)
		w.walkStmt(st.Body)
	case *js.ForStmt:
		prev := w.forHeader
		if st.Init != nil {
			w.forHeader = ForInit
			w.walkExpr(&st.Init)
		}
		if st.Cond != nil {
			w.forHeader = ForTest
			w.walkExpr(&st.Cond)
		}
		if st.Post != nil {
			w.forHeader = ForUpdate
			w.walkExpr(&st.Post)
		}
		w.forHeader = ForNone
		if st.Body != nil {
			w.walkStmt(st.Body)
		}
		w.forHeader = prev
	case *js.ForInStmt:
		w.walkExpr(&st.Init)
		w.walkExpr(&st.Value)
		if st.Body != nil {
			w.walkStmt(st.Body)
		}
	case *js.ForOfStmt:
		w.walkExpr(&st.Init)
		w.walkExpr(&st.Value)
		if st.Body != nil {
			w.walkStmt(st.Body)
		}
	case *js.SwitchStmt:
		w.walkExpr(&st.Init)
		w.Scopes.Push(ScopeBlock)
		for i := range st.List {
			clause := &st.List[i]
			if clause.Cond != nil {
				w.walkExpr(&clause.Cond)
			}
			w.walkStmts(&clause.List)
		}
		w.Scopes.Pop()
	case *js.ReturnStmt:
		if st.Value != nil {
			w.walkExpr(&st.Value)
		}
	case *js.ThrowStmt:
		w.walkExpr(&st.Value)
	case *js.LabelledStmt:
		w.walkStmt(st.Value)
	case *js.WithStmt:
		w.walkExpr(&st.Cond)
		w.walkStmt(st.Body)
	case *js.TryStmt:
		if st.Body != nil {
			w.walkStmt(st.Body)
		}
		if st.Catch != nil {
			w.Scopes.Push(ScopeBlock)
			if st.Binding != nil {
				w.bindPattern(st.Binding, false)
			}
			w.walkStmts(&st.Catch.List)
			w.Scopes.Pop()
		}
		if st.Finally != nil {
			w.walkStmt(st.Finally)
		}
	case *js.FuncDecl:
		if st.Name != nil {
			w.Scopes.BindHoisted(varName(st.Name))
			w.Scopes.BindFuncHoisted(varName(st.Name))
		}
		w.walkFunc(st, true)
	case *js.ClassDecl:
		if st.Name != nil {
			w.Scopes.BindCurrent(varName(st.Name))
		}
		w.walkClass(st)
	case *js.VarDecl:
		w.walkVarDecl(st)
	}
	// Empty, debugger, branch, directive prologue, import and export
	// statements carry nothing the mutators operate on.
}

func (w *Walker) walkVarDecl(decl *js.VarDecl) {
	hoist := decl.TokenType == js.VarToken
	for i := range decl.List {
		elt := &decl.List[i]
		for _, name := range PatternBindings(elt.Binding) {
			if hoist {
				w.Scopes.BindHoisted(name)
			} else {
				w.Scopes.BindCurrent(name)
			}
		}
		if elt.Default != nil {
			w.walkExpr(&elt.Default)
		}
	}
}

func (w *Walker) walkFunc(fn *js.FuncDecl, isDecl bool) {
	w.Scopes.Push(ScopeFunction)
	if fn.Name != nil {
		// A declaration's name was already hoisted into the enclosing
		// scope; an expression's name is visible only inside.
		w.Scopes.BindCurrent(varName(fn.Name))
		if isDecl {
			w.Scopes.BindFuncCurrent(varName(fn.Name))
		}
	}
	w.walkParams(&fn.Params)
	w.walkStmts(&fn.Body.List)
	w.Scopes.Pop()
}

func (w *Walker) walkParams(params *js.Params) {
	for i := range params.List {
		elt := &params.List[i]
		w.bindPattern(elt.Binding, false)
		if elt.Default != nil {
			w.walkExpr(&elt.Default)
		}
	}
	if params.Rest != nil {
		w.bindPattern(params.Rest, false)
	}
}

func (w *Walker) walkClass(class *js.ClassDecl) {
	if class.Extends != nil {
		w.walkExpr(&class.Extends)
	}
	for i := range class.List {
		elt := &class.List[i]
		if elt.Method != nil {
			w.Scopes.Push(ScopeFunction)
			w.walkParams(&elt.Method.Params)
			w.walkStmts(&elt.Method.Body.List)
			w.Scopes.Pop()
		}
		if elt.Field.Init != nil {
			w.walkExpr(&elt.Field.Init)
		}
	}
}

func (w *Walker) walkExpr(expr *js.IExpr) {
	if *expr == nil {
		return
	}
	if w.OnExpr != nil && !w.OnExpr(expr) {
		return
	}
	switch ex := (*expr).(type) {
	case *js.Var, *js.LiteralExpr, *js.NewTargetExpr, *js.ImportMetaExpr:
		// Leaves.
	case *js.ArrayExpr:
		for i := range ex.List {
			if ex.List[i].Value != nil {
				w.walkExpr(&ex.List[i].Value)
			}
		}
	case *js.ObjectExpr:
		for i := range ex.List {
			prop := &ex.List[i]
			if prop.Name != nil && prop.Name.Computed != nil {
				w.walkExpr(&prop.Name.Computed)
			}
			if prop.Value != nil {
				w.walkExpr(&prop.Value)
			}
			if prop.Init != nil {
				w.walkExpr(&prop.Init)
			}
		}
	case *js.TemplateExpr:
		if ex.Tag != nil {
			w.walkExpr(&ex.Tag)
		}
		for i := range ex.List {
			w.walkExpr(&ex.List[i].Expr)
		}
	case *js.GroupExpr:
		w.walkExpr(&ex.X)
	case *js.IndexExpr:
		w.walkExpr(&ex.X)
		prev := w.inIndex
		w.inIndex = true
		w.walkExpr(&ex.Y)
		w.inIndex = prev
	case *js.DotExpr:
		w.walkExpr(&ex.X)
	case *js.NewExpr:
		w.walkExpr(&ex.X)
		if ex.Args != nil {
			w.walkArgs(ex.Args)
		}
	case *js.CallExpr:
		w.walkExpr(&ex.X)
		w.walkArgs(&ex.Args)
	case *js.UnaryExpr:
		w.walkExpr(&ex.X)
	case *js.BinaryExpr:
		w.walkExpr(&ex.X)
		w.walkExpr(&ex.Y)
	case *js.CondExpr:
		w.walkExpr(&ex.Cond)
		w.walkExpr(&ex.X)
		w.walkExpr(&ex.Y)
	case *js.YieldExpr:
		if ex.X != nil {
			w.walkExpr(&ex.X)
		}
	case *js.CommaExpr:
		for i := range ex.List {
			w.walkExpr(&ex.List[i])
		}
	case *js.ArrowFunc:
		w.Scopes.Push(ScopeFunction)
		w.walkParams(&ex.Params)
		w.walkStmts(&ex.Body.List)
		w.Scopes.Pop()
	case *js.FuncDecl:
		w.walkFunc(ex, false)
	case *js.ClassDecl:
		if ex.Name != nil {
			w.Scopes.BindCurrent(varName(ex.Name))
		}
		w.walkClass(ex)
	case *js.VarDecl:
		// A `for (let i = ...)` initializer.
		w.walkVarDecl(ex)
	}
}

func (w *Walker) walkArgs(args *js.Args) {
	for i := range args.List {
		w.walkExpr(&args.List[i].Value)
	}
}

func (w *Walker) bindPattern(binding js.IBinding, hoist bool) {
	for _, name := range PatternBindings(binding) {
		if hoist {
			w.Scopes.BindHoisted(name)
		} else {
			w.Scopes.BindCurrent(name)
		}
	}
}

// PatternBindings recursively collects all binding identifiers of a
// (possibly destructuring) binding pattern.
func PatternBindings(binding js.IBinding) [][]byte {
	var out [][]byte
	collectBindings(binding, &out)
	return out
}

func collectBindings(binding js.IBinding, out *[][]byte) {
	switch b := binding.(type) {
	case *js.Var:
		*out = append(*out, varName(b))
	case *js.BindingArray:
		for i := range b.List {
			if b.List[i].Binding != nil {
				collectBindings(b.List[i].Binding, out)
			}
		}
		if b.Rest != nil {
			collectBindings(b.Rest, out)
		}
	case *js.BindingObject:
		for i := range b.List {
			if b.List[i].Value.Binding != nil {
				collectBindings(b.List[i].Value.Binding, out)
			}
		}
		if b.Rest != nil {
			*out = append(*out, varName(b.Rest))
		}
	}
}

func varName(v *js.Var) []byte {
	for v.Link != nil {
		v = v.Link
	}
	return v.Data
}
