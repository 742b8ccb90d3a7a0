// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"
	"math/rand"
	"strings"

	gojs "github.com/tdewolff/parse/v2/js"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// methodCall wraps one identifier into a call to a statically-known
// builtin method: `x` becomes `x.repeat(3)` or `Math.max(x, 1)`.
type methodCall struct{}

func (methodCall) Name() string { return "method_call" }

func (methodCall) Mutate(ast *js.AST, r *rand.Rand) error {
	forEachIdentSite(ast, r, func(w *js.Walker, expr *gojs.IExpr, v *gojs.Var) {
		obj, method := randomMethod(r)
		if method == nil {
			return
		}
		pool := identPool(w)
		base := string(v.Data)
		var src string
		if method.static {
			args := buildArgs(r, method.randomSig(r), pool)
			// The wrapped identifier takes one of the argument slots.
			if len(args) == 0 {
				args = []string{base}
			} else {
				args[r.Intn(len(args))] = base
			}
			src = fmt.Sprintf("%s.%s(%s)", obj.name, method.name, strings.Join(args, ", "))
		} else {
			args := buildArgs(r, method.randomSig(r), pool)
			src = fmt.Sprintf("%s.%s(%s)", base, method.name, strings.Join(args, ", "))
		}
		if wrapped, err := js.ParseExpr([]byte(src)); err == nil {
			*expr = wrapped
		}
	})
	return nil
}

// randomMethod draws a builtin object that actually has methods, then one
// of its methods.
func randomMethod(r *rand.Rand) (*builtinObject, *builtinMethod) {
	for attempt := 0; attempt < 8; attempt++ {
		obj := randomBuiltin(r)
		if len(obj.methods) == 0 {
			continue
		}
		return obj, &obj.methods[r.Intn(len(obj.methods))]
	}
	return nil, nil
}

func identPool(w *js.Walker) []string {
	var pool []string
	for _, name := range w.Scopes.IdentsAndFuncs() {
		pool = append(pool, string(name))
	}
	return pool
}
