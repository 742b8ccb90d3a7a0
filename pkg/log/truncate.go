// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"bytes"
	"fmt"
)

// Truncate bounds captured engine output to at most `begin` bytes from the
// start and `end` bytes from the end, marking how much was dropped.
func Truncate(out []byte, begin, end int) []byte {
	if begin+end >= len(out) {
		return out
	}
	var b bytes.Buffer
	b.Write(out[:begin])
	if begin > 0 {
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "<<cut %d bytes out>>", len(out)-begin-end)
	if end > 0 {
		b.WriteString("\n\n")
	}
	b.Write(out[len(out)-end:])
	return b.Bytes()
}
