// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsfuzz/jsfuzz/pkg/corpus"
	"github.com/jsfuzz/jsfuzz/pkg/mutator"
	"github.com/jsfuzz/jsfuzz/pkg/queue"
	"github.com/jsfuzz/jsfuzz/pkg/testutil"
)

// scriptedExecutor fabricates results without an engine: the decide
// callback inspects the submitted script.
type scriptedExecutor struct {
	execs  atomic.Uint64
	decide func(script []byte) *queue.Result
}

func (e *scriptedExecutor) Schedule(ctx context.Context, script []byte) (<-chan *queue.Result, error) {
	e.execs.Add(1)
	c := make(chan *queue.Result, 1)
	res := e.decide(script)
	c <- res
	return c, nil
}

func testFuzzer(t *testing.T, decide func([]byte) *queue.Result) (*Fuzzer, *corpus.Manager, *scriptedExecutor) {
	rnd := rand.New(testutil.RandSource(t))
	mgr, err := corpus.Load(t.TempDir(), rnd)
	require.NoError(t, err)
	exec := &scriptedExecutor{decide: decide}
	f := New(&Config{
		Corpus:           mgr,
		Pool:             exec,
		Mutators:         mutator.Catalogue(nil),
		Rand:             rnd,
		MutationsPerSeed: 2,
		BatchSize:        50,
		Logf:             func(level int, msg string, args ...interface{}) { t.Logf(msg, args...) },
	})
	return f, mgr, exec
}

func seedCorpus(t *testing.T, mgr *corpus.Manager, src string) {
	_, err := mgr.AddEntry([]byte(src), []uint32{1}, 1.0, time.Millisecond, false)
	require.NoError(t, err)
}

func runLoop(f *Fuzzer, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	f.Loop(ctx)
}

func TestLoopGrowsCorpus(t *testing.T) {
	var grant atomic.Bool
	f, mgr, exec := testFuzzer(t, func(script []byte) *queue.Result {
		// Grant new coverage exactly once.
		if grant.CompareAndSwap(false, true) {
			return &queue.Result{NewCoverage: true, EdgeHits: []uint32{93}, ExecTime: time.Millisecond}
		}
		return &queue.Result{ExecTime: time.Millisecond}
	})
	seedCorpus(t, mgr, `for (let i = 0; i < 10; i++) a[i] = i * 2;`)
	runLoop(f, 300*time.Millisecond)

	assert.Greater(t, exec.execs.Load(), uint64(0))
	assert.Equal(t, 2, mgr.Len(), "the one new-coverage result should have been admitted")
}

func TestLoopPersistsCrash(t *testing.T) {
	var crashed atomic.Bool
	f, mgr, _ := testFuzzer(t, func(script []byte) *queue.Result {
		if crashed.CompareAndSwap(false, true) {
			return &queue.Result{ExitCode: -1, Signal: -1, IsCrash: true}
		}
		return &queue.Result{}
	})
	seedCorpus(t, mgr, `let x = 1; x += 2;`)
	runLoop(f, 300*time.Millisecond)

	matches, err := filepath.Glob(filepath.Join(mgr.Root(), "crashes", "crash_*.js"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	// The reproducer holds the submitted bytes: it must not be empty.
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestLoopSegregatesTimeouts(t *testing.T) {
	var timedOut atomic.Bool
	f, mgr, _ := testFuzzer(t, func(script []byte) *queue.Result {
		if timedOut.CompareAndSwap(false, true) {
			return &queue.Result{ExitCode: -1, IsTimeout: true}
		}
		return &queue.Result{}
	})
	seedCorpus(t, mgr, `let x = true;`)
	runLoop(f, 300*time.Millisecond)

	matches, err := filepath.Glob(filepath.Join(mgr.Root(), "timeouts", "seed_*.js"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, 1, mgr.Len(), "timeouts are never admitted to the live corpus")

	var timeouts uint64
	for _, m := range f.cfg.Mutators {
		timeouts += m.Stats().TimeoutCount
	}
	assert.Equal(t, uint64(1), timeouts)
}

func TestLoopRemovesUnparseableSeeds(t *testing.T) {
	f, mgr, _ := testFuzzer(t, func(script []byte) *queue.Result {
		return &queue.Result{}
	})
	seedCorpus(t, mgr, `let ok = 1;`)
	// Corrupt a second seed on disk behind the manager's back.
	entry, err := mgr.AddEntry([]byte(`let broken = 2;`), []uint32{2}, 0, 0, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(mgr.Root(), entry.Path), []byte(`function {{{`), 0640))

	runLoop(f, time.Second)
	assert.Equal(t, 1, mgr.Len(), "the unparseable seed should have been dropped")
}

func TestRewardFunction(t *testing.T) {
	assert.Equal(t, 5.0, computeReward(&queue.Result{IsCrash: true}))
	assert.Equal(t, -1.0, computeReward(&queue.Result{IsTimeout: true}))
	assert.Equal(t, 1.0, computeReward(&queue.Result{NewCoverage: true}))
	assert.Equal(t, 0.0, computeReward(&queue.Result{}))
}

func TestDuplicateMutationNotReadmitted(t *testing.T) {
	// Every execution reports the same coverage; only one entry with
	// those bytes+edges may exist afterwards.
	f, mgr, _ := testFuzzer(t, func(script []byte) *queue.Result {
		if strings.Contains(string(script), "stable") {
			return &queue.Result{NewCoverage: true, EdgeHits: []uint32{7}}
		}
		return &queue.Result{}
	})
	seedCorpus(t, mgr, `let stable = 1;`)
	runLoop(f, 300*time.Millisecond)

	// Fingerprints must be unique across live entries; reloading
	// re-validates the invariant via the metadata file.
	reloaded, err := corpus.Load(mgr.Root(), rand.New(testutil.RandSource(t)))
	require.NoError(t, err)
	assert.Equal(t, mgr.Len(), reloaded.Len())
}
