// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides a simple logging interface for the fuzzer.
// Mostly it is intended to support verbosity levels via the -vv flag.
package log

import (
	"flag"
	"fmt"
	golog "log"
	"os"
	"sync/atomic"
)

var (
	flagV = flag.Int("vv", 0, "verbosity")

	level atomic.Int32
)

// EnableVerbosity must be called after flag.Parse to pick up the -vv value.
func EnableVerbosity() {
	level.Store(int32(*flagV))
}

// SetLevel overrides the verbosity level (used by tests).
func SetLevel(v int) {
	level.Store(int32(v))
}

func V(v int) bool {
	return int32(v) <= level.Load()
}

func Logf(v int, msg string, args ...interface{}) {
	if !V(v) {
		return
	}
	golog.Printf(msg, args...)
}

func Errorf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}
