// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"encoding/binary"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, numEdges uint32) *Context {
	name := fmt.Sprintf("jsfuzz-test-%v-%v", os.Getpid(), t.Name())
	ctx, err := NewContext(name)
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Shutdown() })
	// Simulate the engine publishing its edge count during startup.
	binary.LittleEndian.PutUint32(ctx.shm.Mem[:4], numEdges)
	require.NoError(t, ctx.FinishInitialization())
	return ctx
}

func setEdge(ctx *Context, edge uint32) {
	ctx.shm.Mem[4+edge/8] |= 1 << (edge % 8)
}

func TestEvaluate(t *testing.T) {
	ctx := testContext(t, 1024)
	ctx.Clear()
	setEdge(ctx, 3)
	setEdge(ctx, 100)
	setEdge(ctx, 1023)

	anyNew, edges := ctx.Evaluate()
	assert.True(t, anyNew)
	assert.Equal(t, []uint32{3, 100, 1023}, edges)
	assert.Equal(t, uint32(3), ctx.FoundEdges())

	// The same edges are no longer virgin.
	anyNew, edges = ctx.Evaluate()
	assert.False(t, anyNew)
	assert.Empty(t, edges)
}

func TestClearEdge(t *testing.T) {
	ctx := testContext(t, 64)
	ctx.Clear()
	setEdge(ctx, 17)
	_, edges := ctx.Evaluate()
	assert.Equal(t, []uint32{17}, edges)

	ctx.ClearEdge(17)
	anyNew, edges := ctx.Evaluate()
	assert.True(t, anyNew)
	assert.Equal(t, []uint32{17}, edges)
}

func TestClearResetsBitmap(t *testing.T) {
	ctx := testContext(t, 64)
	setEdge(ctx, 5)
	ctx.Clear()
	anyNew, _ := ctx.Evaluate()
	assert.False(t, anyNew)
}

func TestOutOfRangeBits(t *testing.T) {
	// Bits past the engine-reported edge count must be ignored.
	ctx := testContext(t, 10)
	ctx.Clear()
	setEdge(ctx, 9)
	setEdge(ctx, 15)
	_, edges := ctx.Evaluate()
	assert.Equal(t, []uint32{9}, edges)
}
