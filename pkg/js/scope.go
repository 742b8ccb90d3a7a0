// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package js

import (
	"math/rand"

	"github.com/tdewolff/parse/v2/js"
)

type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFunction
	ScopeBlock
)

type scopeRecord struct {
	kind   ScopeKind
	idents [][]byte
	funcs  [][]byte
	exprs  []js.IExpr
}

// ScopeStack models what names and expressions are visible at the current
// point of an AST walk. Hoisting rule: `var` and function declarations
// bind in the nearest enclosing non-Block scope; `let`, `const`, class
// declarations, catch parameters and function parameters bind in the
// current scope.
type ScopeStack struct {
	scopes []scopeRecord
}

func NewScopeStack() *ScopeStack {
	return &ScopeStack{scopes: []scopeRecord{{kind: ScopeGlobal}}}
}

func (s *ScopeStack) Push(kind ScopeKind) {
	s.scopes = append(s.scopes, scopeRecord{kind: kind})
}

func (s *ScopeStack) Pop() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

func (s *ScopeStack) current() *scopeRecord {
	return &s.scopes[len(s.scopes)-1]
}

func (s *ScopeStack) hoistTarget() *scopeRecord {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].kind != ScopeBlock {
			return &s.scopes[i]
		}
	}
	return &s.scopes[0]
}

func (s *ScopeStack) BindCurrent(name []byte) {
	rec := s.current()
	rec.idents = append(rec.idents, name)
}

func (s *ScopeStack) BindHoisted(name []byte) {
	rec := s.hoistTarget()
	rec.idents = append(rec.idents, name)
}

func (s *ScopeStack) BindGlobal(name []byte) {
	rec := &s.scopes[0]
	rec.idents = append(rec.idents, name)
}

func (s *ScopeStack) BindFuncCurrent(name []byte) {
	rec := s.current()
	rec.funcs = append(rec.funcs, name)
}

func (s *ScopeStack) BindFuncHoisted(name []byte) {
	rec := s.hoistTarget()
	rec.funcs = append(rec.funcs, name)
}

// AddExpr contributes an expression to the current scope's pool, used by
// the duplication mutators as replacement material.
func (s *ScopeStack) AddExpr(expr js.IExpr) {
	rec := s.current()
	rec.exprs = append(rec.exprs, expr)
}

// Idents returns all visible identifiers, innermost scope first.
func (s *ScopeStack) Idents() [][]byte {
	var out [][]byte
	for i := len(s.scopes) - 1; i >= 0; i-- {
		out = append(out, s.scopes[i].idents...)
	}
	return out
}

// IdentsAndFuncs returns all visible identifier and function names.
func (s *ScopeStack) IdentsAndFuncs() [][]byte {
	var out [][]byte
	for i := len(s.scopes) - 1; i >= 0; i-- {
		out = append(out, s.scopes[i].idents...)
		out = append(out, s.scopes[i].funcs...)
	}
	return out
}

// Funcs returns all visible function names.
func (s *ScopeStack) Funcs() [][]byte {
	var out [][]byte
	for i := len(s.scopes) - 1; i >= 0; i-- {
		out = append(out, s.scopes[i].funcs...)
	}
	return out
}

// ChooseExpr picks a random expression from all visible scope pools.
func (s *ScopeStack) ChooseExpr(r *rand.Rand) js.IExpr {
	var pool []js.IExpr
	for i := range s.scopes {
		pool = append(pool, s.scopes[i].exprs...)
	}
	if len(pool) == 0 {
		return nil
	}
	return pool[r.Intn(len(pool))]
}

// ChooseIdent picks a random visible identifier name, or nil.
func (s *ScopeStack) ChooseIdent(r *rand.Rand) []byte {
	idents := s.Idents()
	if len(idents) == 0 {
		return nil
	}
	return idents[r.Intn(len(idents))]
}
