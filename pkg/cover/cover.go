// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover maintains edge coverage state. Each worker owns a Context
// wrapping the shared memory bitmap its engine child writes into; the
// process-wide Tracker arbitrates which edges count as new coverage.
package cover

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/jsfuzz/jsfuzz/pkg/osutil"
)

// Region layout agreed with the engine: a u32 edge count written by the
// engine during startup, followed by the edge bitmap.
const headerSize = 4

// MaxRegionSize bounds the shared region we hand to the engine.
// 0x200000 bytes (header included, so just under 16M edges of bitmap)
// cover any engine built against the usual instrumentation defaults.
const MaxRegionSize = 1 << 21

var totalEdges atomic.Uint32

// NumEdges returns the edge space size as published by the first engine
// that reported it, or 0 if no engine has started yet. Used to compute
// coverage percentages.
func NumEdges() uint32 {
	return totalEdges.Load()
}

// Context is a per-worker view of one engine's coverage bitmap.
// All methods must be called by the owning worker only.
type Context struct {
	shm        *osutil.SharedMem
	virgin     []byte // bit set = we have never observed this edge
	numEdges   uint32
	bitmapSize uint32
}

func NewContext(shmName string) (*Context, error) {
	shm, err := osutil.CreateSharedMem(shmName, MaxRegionSize)
	if err != nil {
		return nil, err
	}
	return &Context{shm: shm}, nil
}

// ShmName returns the name the engine child must receive in SHM_ID.
func (ctx *Context) ShmName() string {
	return ctx.shm.Name
}

// FinishInitialization reads the edge count the engine wrote into the
// region header during startup and sets up the virgin map. Must be called
// after a successful handshake.
func (ctx *Context) FinishInitialization() error {
	numEdges := binary.LittleEndian.Uint32(ctx.shm.Mem[:headerSize])
	bitmapSize := (numEdges + 7) / 8
	if headerSize+bitmapSize > MaxRegionSize {
		return fmt.Errorf("engine reports %v edges, region only fits %v",
			numEdges, (MaxRegionSize-headerSize)*8)
	}
	if ctx.virgin == nil || ctx.numEdges != numEdges {
		ctx.virgin = make([]byte, bitmapSize)
		for i := range ctx.virgin {
			ctx.virgin[i] = 0xff
		}
	}
	ctx.numEdges = numEdges
	ctx.bitmapSize = bitmapSize
	totalEdges.CompareAndSwap(0, numEdges)
	return nil
}

// Clear zeroes the shared bitmap. Called before every execution.
func (ctx *Context) Clear() {
	bitmap := ctx.bitmap()
	for i := range bitmap {
		bitmap[i] = 0
	}
}

// Evaluate intersects the bitmap with the virgin map, marks newly covered
// edges as seen and returns their indices.
func (ctx *Context) Evaluate() (bool, []uint32) {
	bitmap := ctx.bitmap()
	var edges []uint32
	i := 0
	// Word-at-a-time skip over the (overwhelmingly common) regions with
	// nothing new.
	for ; i+8 <= len(bitmap); i += 8 {
		if binary.LittleEndian.Uint64(bitmap[i:])&binary.LittleEndian.Uint64(ctx.virgin[i:]) != 0 {
			break
		}
	}
	for ; i < len(bitmap); i++ {
		newBits := bitmap[i] & ctx.virgin[i]
		for newBits != 0 {
			bit := uint32(bits.TrailingZeros8(newBits))
			newBits &^= 1 << bit
			edge := uint32(i)*8 + bit
			if edge >= ctx.numEdges {
				continue
			}
			ctx.virgin[i] &^= 1 << bit
			edges = append(edges, edge)
		}
	}
	return len(edges) > 0, edges
}

// ClearEdge marks the edge as never-observed again so that it can re-fire
// a new coverage signal (used by the stability filter).
func (ctx *Context) ClearEdge(edge uint32) {
	if edge >= ctx.numEdges {
		return
	}
	ctx.virgin[edge/8] |= 1 << (edge % 8)
}

// FoundEdges reports how many edges this context has observed so far.
func (ctx *Context) FoundEdges() uint32 {
	// Bits past numEdges are never cleared, so counting zero bits is exact.
	var found uint32
	for _, b := range ctx.virgin {
		found += uint32(bits.OnesCount8(^b))
	}
	return found
}

func (ctx *Context) Shutdown() error {
	return ctx.shm.Close()
}

func (ctx *Context) bitmap() []byte {
	return ctx.shm.Mem[headerSize : headerSize+ctx.bitmapSize]
}
