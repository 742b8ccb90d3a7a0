// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"
	"math/rand"
)

// Argument synthesis for builtin calls: a small library of interesting
// literals blended with a reuse bias towards values already in scope.

const argReuseBias = 0.35

var interestingNumbers = []string{
	"0", "-0", "1", "-1", "NaN", "Infinity", "-Infinity", "4294967295",
}

var interestingStrings = []string{
	`"foo"`, `"bar"`, `"baz"`, `"qux"`, `"こんにちは"`,
}

func buildArgs(r *rand.Rand, kinds []argKind, pool []string) []string {
	args := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		arg := buildArg(r, kind, pool)
		pool = append(pool, arg)
		args = append(args, arg)
	}
	return args
}

func buildArg(r *rand.Rand, kind argKind, pool []string) string {
	if len(pool) > 0 && prob(r, argReuseBias) {
		return pool[r.Intn(len(pool))]
	}
	switch kind {
	case kindNumber:
		if prob(r, 0.35) {
			return interestingNumbers[r.Intn(len(interestingNumbers))]
		}
		return fmt.Sprintf("%d", r.Intn(33)-16)
	case kindString:
		return interestingStrings[r.Intn(len(interestingStrings))]
	case kindObject:
		return "{}"
	case kindArray:
		return "[]"
	case kindFunction:
		if len(pool) > 0 && prob(r, 0.5) {
			return pool[r.Intn(len(pool))]
		}
		return "function(){}"
	default:
		concrete := []argKind{kindNumber, kindString, kindObject, kindArray, kindFunction}
		return buildArg(r, concrete[r.Intn(len(concrete))], pool)
	}
}
