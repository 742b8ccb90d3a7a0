// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// minify renames every declaration to a short synthetic name (v0, v1,
// ... / f0, f1, ...). It is not part of the random catalogue; the corpus
// ingest path applies it to incoming seeds so that the splice renamer and
// the dedup fingerprints see normalized programs.
type minify struct{}

func (minify) Name() string { return "minify" }

func (minify) Mutate(ast *js.AST, r *rand.Rand) error {
	js.RenameDecls(ast, nil)
	return nil
}

// Minify normalizes a seed in place.
func Minify(ast *js.AST) {
	js.RenameDecls(ast, nil)
}
