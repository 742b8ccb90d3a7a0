// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"
)

// Compile-time catalogue of JavaScript global objects and their methods:
// https://developer.mozilla.org/en-US/docs/Web/JavaScript/Reference/Global_Objects
// Random access only; never mutated at runtime.

type argKind int

const (
	kindAny argKind = iota
	kindNumber
	kindString
	kindObject
	kindArray
	kindFunction
)

type builtinMethod struct {
	name   string
	static bool
	// sigs lists accepted argument type vectors; empty means nullary.
	sigs [][]argKind
}

type builtinObject struct {
	name string
	// ctorSigs lists `new Name(...)` signatures; nil means the object is
	// not constructible (namespace objects like Math and JSON).
	ctorSigs [][]argKind
	methods  []builtinMethod
}

func sig(kinds ...argKind) []argKind { return kinds }

var builtinObjects = []builtinObject{
	{
		name:     "Array",
		ctorSigs: [][]argKind{sig(), sig(kindNumber), sig(kindAny, kindAny)},
		methods: []builtinMethod{
			{name: "isArray", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "from", static: true, sigs: [][]argKind{sig(kindAny), sig(kindAny, kindFunction)}},
			{name: "of", static: true, sigs: [][]argKind{sig(kindAny, kindAny, kindAny)}},
			{name: "at", sigs: [][]argKind{sig(kindNumber)}},
			{name: "concat", sigs: [][]argKind{sig(kindArray)}},
			{name: "copyWithin", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "fill", sigs: [][]argKind{sig(kindAny), sig(kindAny, kindNumber, kindNumber)}},
			{name: "flat", sigs: [][]argKind{sig(), sig(kindNumber)}},
			{name: "indexOf", sigs: [][]argKind{sig(kindAny)}},
			{name: "join", sigs: [][]argKind{sig(kindString)}},
			{name: "map", sigs: [][]argKind{sig(kindFunction)}},
			{name: "pop"},
			{name: "push", sigs: [][]argKind{sig(kindAny), sig(kindAny, kindAny)}},
			{name: "reverse"},
			{name: "shift"},
			{name: "slice", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "sort", sigs: [][]argKind{sig(), sig(kindFunction)}},
			{name: "splice", sigs: [][]argKind{sig(kindNumber, kindNumber), sig(kindNumber, kindNumber, kindAny)}},
			{name: "unshift", sigs: [][]argKind{sig(kindAny)}},
		},
	},
	{
		name:     "ArrayBuffer",
		ctorSigs: [][]argKind{sig(kindNumber)},
		methods: []builtinMethod{
			{name: "isView", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "slice", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "resize", sigs: [][]argKind{sig(kindNumber)}},
			{name: "transfer"},
		},
	},
	{
		name:     "BigInt",
		ctorSigs: nil, // callable, not constructible; treated as namespace
		methods: []builtinMethod{
			{name: "asIntN", static: true, sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "asUintN", static: true, sigs: [][]argKind{sig(kindNumber, kindNumber)}},
		},
	},
	{
		name:     "Boolean",
		ctorSigs: [][]argKind{sig(kindAny)},
		methods: []builtinMethod{
			{name: "valueOf"},
		},
	},
	{
		name:     "DataView",
		ctorSigs: [][]argKind{sig(kindObject)},
		methods: []builtinMethod{
			{name: "getFloat64", sigs: [][]argKind{sig(kindNumber)}},
			{name: "getInt32", sigs: [][]argKind{sig(kindNumber)}},
			{name: "setFloat64", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "setInt32", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
		},
	},
	{
		name:     "Date",
		ctorSigs: [][]argKind{sig(), sig(kindNumber), sig(kindNumber, kindNumber, kindNumber)},
		methods: []builtinMethod{
			{name: "now", static: true},
			{name: "parse", static: true, sigs: [][]argKind{sig(kindString)}},
			{name: "getTime"},
			{name: "setTime", sigs: [][]argKind{sig(kindNumber)}},
			{name: "toISOString"},
			{name: "valueOf"},
		},
	},
	{
		name:     "Error",
		ctorSigs: [][]argKind{sig(kindString)},
		methods: []builtinMethod{
			{name: "toString"},
		},
	},
	{
		name:     "Function",
		ctorSigs: [][]argKind{sig(kindString)},
		methods: []builtinMethod{
			{name: "apply", sigs: [][]argKind{sig(kindAny, kindArray)}},
			{name: "bind", sigs: [][]argKind{sig(kindAny)}},
			{name: "call", sigs: [][]argKind{sig(kindAny, kindAny)}},
		},
	},
	{
		name:     "JSON",
		ctorSigs: nil,
		methods: []builtinMethod{
			{name: "parse", static: true, sigs: [][]argKind{sig(kindString)}},
			{name: "stringify", static: true, sigs: [][]argKind{sig(kindAny), sig(kindAny, kindAny, kindNumber)}},
		},
	},
	{
		name:     "Map",
		ctorSigs: [][]argKind{sig()},
		methods: []builtinMethod{
			{name: "clear"},
			{name: "delete", sigs: [][]argKind{sig(kindAny)}},
			{name: "get", sigs: [][]argKind{sig(kindAny)}},
			{name: "has", sigs: [][]argKind{sig(kindAny)}},
			{name: "set", sigs: [][]argKind{sig(kindAny, kindAny)}},
		},
	},
	{
		name:     "Math",
		ctorSigs: nil,
		methods: []builtinMethod{
			{name: "abs", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "ceil", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "floor", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "fround", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "max", static: true, sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "min", static: true, sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "pow", static: true, sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "random", static: true},
			{name: "round", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "sign", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "sqrt", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "trunc", static: true, sigs: [][]argKind{sig(kindNumber)}},
		},
	},
	{
		name:     "Number",
		ctorSigs: [][]argKind{sig(kindAny)},
		methods: []builtinMethod{
			{name: "isFinite", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "isInteger", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "isNaN", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "isSafeInteger", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "parseFloat", static: true, sigs: [][]argKind{sig(kindString)}},
			{name: "parseInt", static: true, sigs: [][]argKind{sig(kindString), sig(kindString, kindNumber)}},
			{name: "toExponential", sigs: [][]argKind{sig(kindNumber)}},
			{name: "toFixed", sigs: [][]argKind{sig(kindNumber)}},
			{name: "toPrecision", sigs: [][]argKind{sig(kindNumber)}},
			{name: "toString", sigs: [][]argKind{sig(), sig(kindNumber)}},
		},
	},
	{
		name:     "Object",
		ctorSigs: [][]argKind{sig(), sig(kindAny)},
		methods: []builtinMethod{
			{name: "assign", static: true, sigs: [][]argKind{sig(kindObject, kindObject)}},
			{name: "create", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "defineProperty", static: true, sigs: [][]argKind{sig(kindObject, kindString, kindObject)}},
			{name: "entries", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "freeze", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "getOwnPropertyNames", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "getPrototypeOf", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "keys", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "seal", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "setPrototypeOf", static: true, sigs: [][]argKind{sig(kindObject, kindObject)}},
			{name: "values", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "hasOwnProperty", sigs: [][]argKind{sig(kindString)}},
			{name: "toString"},
			{name: "valueOf"},
		},
	},
	{
		name:     "Promise",
		ctorSigs: [][]argKind{sig(kindFunction)},
		methods: []builtinMethod{
			{name: "all", static: true, sigs: [][]argKind{sig(kindArray)}},
			{name: "race", static: true, sigs: [][]argKind{sig(kindArray)}},
			{name: "reject", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "resolve", static: true, sigs: [][]argKind{sig(kindAny)}},
			{name: "then", sigs: [][]argKind{sig(kindFunction), sig(kindFunction, kindFunction)}},
			{name: "catch", sigs: [][]argKind{sig(kindFunction)}},
			{name: "finally", sigs: [][]argKind{sig(kindFunction)}},
		},
	},
	{
		name:     "Proxy",
		ctorSigs: [][]argKind{sig(kindObject, kindObject)},
	},
	{
		name:     "Reflect",
		ctorSigs: nil,
		methods: []builtinMethod{
			{name: "apply", static: true, sigs: [][]argKind{sig(kindFunction, kindAny, kindArray)}},
			{name: "construct", static: true, sigs: [][]argKind{sig(kindFunction, kindArray)}},
			{name: "get", static: true, sigs: [][]argKind{sig(kindObject, kindString)}},
			{name: "has", static: true, sigs: [][]argKind{sig(kindObject, kindString)}},
			{name: "ownKeys", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "set", static: true, sigs: [][]argKind{sig(kindObject, kindString, kindAny)}},
		},
	},
	{
		name:     "RegExp",
		ctorSigs: [][]argKind{sig(kindString), sig(kindString, kindString)},
		methods: []builtinMethod{
			{name: "exec", sigs: [][]argKind{sig(kindString)}},
			{name: "test", sigs: [][]argKind{sig(kindString)}},
		},
	},
	{
		name:     "Set",
		ctorSigs: [][]argKind{sig(), sig(kindArray)},
		methods: []builtinMethod{
			{name: "add", sigs: [][]argKind{sig(kindAny)}},
			{name: "clear"},
			{name: "delete", sigs: [][]argKind{sig(kindAny)}},
			{name: "has", sigs: [][]argKind{sig(kindAny)}},
		},
	},
	{
		name:     "String",
		ctorSigs: [][]argKind{sig(kindAny)},
		methods: []builtinMethod{
			{name: "fromCharCode", static: true, sigs: [][]argKind{sig(kindNumber), sig(kindNumber, kindNumber)}},
			{name: "fromCodePoint", static: true, sigs: [][]argKind{sig(kindNumber)}},
			{name: "raw", static: true, sigs: [][]argKind{sig(kindObject)}},
			{name: "at", sigs: [][]argKind{sig(kindNumber)}},
			{name: "charAt", sigs: [][]argKind{sig(kindNumber)}},
			{name: "charCodeAt", sigs: [][]argKind{sig(kindNumber)}},
			{name: "concat", sigs: [][]argKind{sig(kindString)}},
			{name: "endsWith", sigs: [][]argKind{sig(kindString)}},
			{name: "includes", sigs: [][]argKind{sig(kindString)}},
			{name: "indexOf", sigs: [][]argKind{sig(kindString)}},
			{name: "padEnd", sigs: [][]argKind{sig(kindNumber, kindString)}},
			{name: "padStart", sigs: [][]argKind{sig(kindNumber, kindString)}},
			{name: "repeat", sigs: [][]argKind{sig(kindNumber)}},
			{name: "slice", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "split", sigs: [][]argKind{sig(kindString)}},
			{name: "substring", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
			{name: "toLowerCase"},
			{name: "toUpperCase"},
			{name: "trim"},
		},
	},
	{
		name:     "Symbol",
		ctorSigs: nil,
		methods: []builtinMethod{
			{name: "for", static: true, sigs: [][]argKind{sig(kindString)}},
			{name: "keyFor", static: true, sigs: [][]argKind{sig(kindAny)}},
		},
	},
	{
		name:     "WeakMap",
		ctorSigs: [][]argKind{sig()},
		methods: []builtinMethod{
			{name: "delete", sigs: [][]argKind{sig(kindAny)}},
			{name: "get", sigs: [][]argKind{sig(kindAny)}},
			{name: "has", sigs: [][]argKind{sig(kindAny)}},
			{name: "set", sigs: [][]argKind{sig(kindAny, kindAny)}},
		},
	},
	{
		name:     "WeakRef",
		ctorSigs: [][]argKind{sig(kindObject)},
		methods: []builtinMethod{
			{name: "deref"},
		},
	},
	{
		name:     "WeakSet",
		ctorSigs: [][]argKind{sig()},
		methods: []builtinMethod{
			{name: "add", sigs: [][]argKind{sig(kindAny)}},
			{name: "delete", sigs: [][]argKind{sig(kindAny)}},
			{name: "has", sigs: [][]argKind{sig(kindAny)}},
		},
	},
	{
		name:     "Int8Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Uint8Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Int16Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Uint16Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Int32Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Uint32Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Float32Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
	{
		name:     "Float64Array",
		ctorSigs: [][]argKind{sig(kindNumber), sig(kindArray)},
		methods:  typedArrayMethods,
	},
}

var typedArrayMethods = []builtinMethod{
	{name: "at", sigs: [][]argKind{sig(kindNumber)}},
	{name: "fill", sigs: [][]argKind{sig(kindNumber), sig(kindNumber, kindNumber, kindNumber)}},
	{name: "set", sigs: [][]argKind{sig(kindArray), sig(kindArray, kindNumber)}},
	{name: "slice", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
	{name: "sort"},
	{name: "subarray", sigs: [][]argKind{sig(kindNumber, kindNumber)}},
}

func randomBuiltin(r *rand.Rand) *builtinObject {
	return &builtinObjects[r.Intn(len(builtinObjects))]
}

// randomConstructible picks a builtin usable with `new`.
func randomConstructible(r *rand.Rand) *builtinObject {
	for {
		obj := randomBuiltin(r)
		if obj.ctorSigs != nil {
			return obj
		}
	}
}

func (b *builtinObject) instanceMethods() []builtinMethod {
	var out []builtinMethod
	for _, m := range b.methods {
		if !m.static {
			out = append(out, m)
		}
	}
	return out
}

func (b *builtinObject) randomCtorSig(r *rand.Rand) []argKind {
	if len(b.ctorSigs) == 0 {
		return nil
	}
	return b.ctorSigs[r.Intn(len(b.ctorSigs))]
}

func (m *builtinMethod) randomSig(r *rand.Rand) []argKind {
	if len(m.sigs) == 0 {
		return nil
	}
	return m.sigs[r.Intn(len(m.sigs))]
}
