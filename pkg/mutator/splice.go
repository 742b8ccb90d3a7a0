// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"
	"slices"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// spliceMutator transplants a contiguous statement range from a donor
// seed into the host. Donor declarations are renamed to fresh synthetic
// names first so the transplant cannot capture or shadow host bindings.
type spliceMutator struct{}

func (spliceMutator) Name() string { return "splice" }

func (spliceMutator) Splice(host, donor *js.AST, r *rand.Rand) (*js.AST, error) {
	out, err := js.Clone(host)
	if err != nil {
		return nil, err
	}
	prepared, err := js.Clone(donor)
	if err != nil {
		return nil, err
	}
	js.RenameDecls(prepared, js.CollectNames(out))

	donorStmts := collectStmts(prepared)
	if len(donorStmts) == 0 {
		return out, nil
	}
	start := r.Intn(len(donorStmts))
	end := start + 1 + r.Intn(len(donorStmts)-start)
	insert := donorStmts[start:end]

	// Any statement container of the host is a valid insertion point:
	// script body, block bodies, switch cases, catch bodies.
	var containers []*[]gojs.IStmt
	w := js.NewWalker()
	w.OnStmts = func(list *[]gojs.IStmt) {
		containers = append(containers, list)
	}
	w.Walk(out)

	container := containers[r.Intn(len(containers))]
	pos := r.Intn(len(*container) + 1)
	*container = slices.Insert(*container, pos, insert...)
	return out, nil
}

// collectStmts flattens every statement of the AST in traversal order,
// nested ones included.
func collectStmts(ast *js.AST) []gojs.IStmt {
	var stmts []gojs.IStmt
	w := js.NewWalker()
	w.OnStmt = func(stmt gojs.IStmt) {
		stmts = append(stmts, stmt)
	}
	w.Walk(ast)
	return stmts
}
