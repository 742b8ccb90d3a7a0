// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"sync"
)

// Tracker is the process-wide edge accounting shared by all workers:
// the set of edges already credited as coverage, and instability counters
// that blacklist edges which keep flapping between runs (JIT tier-ups,
// GC timing, allocation fingerprints).
//
// The hot path of an execution without candidate new coverage never takes
// the lock; Update runs only after a stability re-check.
type Tracker struct {
	mu          sync.RWMutex
	seen        map[uint32]bool
	instability map[uint32]uint32
	threshold   uint32
}

func NewTracker(threshold uint32) *Tracker {
	return &Tracker{
		seen:        make(map[uint32]bool),
		instability: make(map[uint32]uint32),
		threshold:   threshold,
	}
}

func (t *Tracker) Seen(edge uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seen[edge]
}

func (t *Tracker) Blacklisted(edge uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instability[edge] >= t.threshold
}

func (t *Tracker) SeenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}

// Update reconciles the candidate edges of a first run with the edges the
// stability re-run confirmed. Edges present in only one of the two runs
// get their instability count bumped; edges crossing the blacklist
// threshold are reported back so the caller can re-virgin them. The
// returned stable set is confirmed edges not seen before and not
// blacklisted; they are added to the seen set.
func (t *Tracker) Update(candidates, confirmed []uint32) (stable, blacklisted []uint32) {
	confirmedSet := make(map[uint32]bool, len(confirmed))
	for _, e := range confirmed {
		confirmedSet[e] = true
	}
	candidateSet := make(map[uint32]bool, len(candidates))
	for _, e := range candidates {
		candidateSet[e] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	bumpInstability := func(e uint32) {
		t.instability[e]++
		if t.instability[e] == t.threshold {
			blacklisted = append(blacklisted, e)
		}
	}
	for _, e := range candidates {
		if !confirmedSet[e] {
			bumpInstability(e)
		}
	}
	for _, e := range confirmed {
		if !candidateSet[e] {
			bumpInstability(e)
		}
	}
	for _, e := range candidates {
		if !confirmedSet[e] || t.seen[e] || t.instability[e] >= t.threshold {
			continue
		}
		t.seen[e] = true
		stable = append(stable, e)
	}
	return stable, blacklisted
}
