// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer ties the pieces into the closed control loop: pick a
// seed, pick a mutator, mutate, emit, execute, reward, grow the corpus.
package fuzzer

import (
	"context"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsfuzz/jsfuzz/pkg/corpus"
	"github.com/jsfuzz/jsfuzz/pkg/cover"
	"github.com/jsfuzz/jsfuzz/pkg/js"
	"github.com/jsfuzz/jsfuzz/pkg/learning"
	"github.com/jsfuzz/jsfuzz/pkg/log"
	"github.com/jsfuzz/jsfuzz/pkg/mutator"
	"github.com/jsfuzz/jsfuzz/pkg/queue"
	"github.com/jsfuzz/jsfuzz/pkg/stats"
)

type Config struct {
	Corpus   *corpus.Manager
	Pool     queue.Executor
	Mutators []*mutator.Managed
	Rand     *rand.Rand

	// SpliceProb is the chance that an iteration additionally splices the
	// working AST with a donor seed.
	SpliceProb float64
	// MutationsPerSeed chains this many consecutive mutations onto each
	// picked seed, scheduling every intermediate result.
	MutationsPerSeed int
	// BatchSize is how many scheduled executions to run between awaiting
	// all outstanding results and printing statistics.
	BatchSize int

	Logf func(level int, msg string, args ...interface{})
}

// Fuzzer runs the loop. The Loop goroutine schedules work; one result
// handler goroutine per outstanding execution folds results back in.
type Fuzzer struct {
	cfg    *Config
	bandit *learning.Bandit[*mutator.Managed]

	wg        sync.WaitGroup
	iter      atomic.Uint64
	batchIter uint64
}

func New(cfg *Config) *Fuzzer {
	if cfg.SpliceProb == 0 {
		cfg.SpliceProb = 0.2
	}
	if cfg.MutationsPerSeed == 0 {
		cfg.MutationsPerSeed = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10000
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Logf
	}
	bandit := learning.NewBandit[*mutator.Managed]()
	for _, m := range cfg.Mutators {
		if m.IsSplicer() {
			// Splicers are drawn separately, with their own probability.
			continue
		}
		bandit.AddArm(m, m.Weight)
	}
	return &Fuzzer{cfg: cfg, bandit: bandit}
}

// Loop runs until the context is cancelled. Outstanding result handlers
// are awaited before returning, so corpus and stats are consistent on
// shutdown.
func (fuzzer *Fuzzer) Loop(ctx context.Context) {
	batchStart := time.Now()
	for ctx.Err() == nil {
		fuzzer.fuzzOneSeed(ctx)
		if fuzzer.batchIter >= uint64(fuzzer.cfg.BatchSize) {
			fuzzer.wg.Wait()
			fuzzer.logStats(batchStart)
			fuzzer.batchIter = 0
			batchStart = time.Now()
		}
	}
	fuzzer.wg.Wait()
}

// fuzzOneSeed draws one seed and chains mutations on it, scheduling each
// mutated script and occasionally splicing in a donor.
func (fuzzer *Fuzzer) fuzzOneSeed(ctx context.Context) {
	cfg := fuzzer.cfg
	sel := cfg.Corpus.PickRandom()
	if sel == nil {
		// Boundary behaviour for an empty corpus: sleep briefly, retry.
		time.Sleep(100 * time.Millisecond)
		return
	}
	source, err := os.ReadFile(sel.Path)
	if err != nil {
		cfg.Logf(0, "failed to read seed %v: %v", sel.Path, err)
		return
	}
	seed, err := js.Parse(source)
	if err != nil {
		// Unparseable seeds are removed so they stop wasting iterations.
		cfg.Logf(1, "removing unparseable seed %v: %v", sel.ID, err)
		if err := cfg.Corpus.RemoveEntry(sel.ID); err != nil {
			cfg.Logf(0, "failed to remove seed %v: %v", sel.ID, err)
		}
		return
	}

	for i := 0; i < cfg.MutationsPerSeed && ctx.Err() == nil; i++ {
		m := fuzzer.bandit.Choose(cfg.Rand)
		if m == nil {
			return
		}
		mutated, err := m.Mutate(seed, cfg.Rand)
		if err != nil {
			m.RecordInvalid(false)
			continue
		}
		if !fuzzer.schedule(ctx, m, mutated, sel.ID) {
			continue
		}
		seed = mutated

		if cfg.Rand.Float64() < cfg.SpliceProb {
			fuzzer.spliceOnce(ctx, seed, sel.ID)
		}
	}
}

func (fuzzer *Fuzzer) spliceOnce(ctx context.Context, seed *js.AST, seedID uint64) {
	cfg := fuzzer.cfg
	splicer := mutator.ChooseSplicer(cfg.Mutators, cfg.Rand)
	if splicer == nil {
		return
	}
	donor, err := cfg.Corpus.GetRandomScript()
	if err != nil || donor == nil {
		if err != nil {
			cfg.Logf(1, "failed to load splice donor: %v", err)
		}
		return
	}
	spliced, err := splicer.Splice(seed, donor, cfg.Rand)
	if err != nil {
		splicer.RecordInvalid(false)
		return
	}
	fuzzer.schedule(ctx, splicer, spliced, seedID)
}

// schedule emits and submits one mutated AST and spawns the handler that
// waits for its result.
func (fuzzer *Fuzzer) schedule(ctx context.Context, m *mutator.Managed, ast *js.AST, seedID uint64) bool {
	cfg := fuzzer.cfg
	script := js.Emit(ast)
	resultC, err := cfg.Pool.Schedule(ctx, script)
	if err != nil {
		if ctx.Err() == nil {
			cfg.Logf(0, "failed to schedule job: %v", err)
		}
		return false
	}
	iter := fuzzer.iter.Add(1)
	fuzzer.batchIter++
	fuzzer.wg.Add(1)
	go func() {
		defer fuzzer.wg.Done()
		select {
		case res := <-resultC:
			fuzzer.handleResult(m, script, seedID, iter, res)
		case <-ctx.Done():
		}
	}()
	return true
}

// Reward function: crashes dominate, stable new coverage is good,
// timeouts are actively penalized.
func computeReward(res *queue.Result) float64 {
	switch {
	case res.IsCrash:
		return 5.0
	case res.IsTimeout:
		return -1.0
	case res.NewCoverage:
		return 1.0
	default:
		return 0.0
	}
}

func (fuzzer *Fuzzer) handleResult(m *mutator.Managed, script []byte, seedID, iter uint64, res *queue.Result) {
	cfg := fuzzer.cfg
	reward := computeReward(res)

	// Crashes are persisted before anything else so that a fault in the
	// bookkeeping below can never lose a reproducer.
	if res.IsCrash {
		cfg.Logf(0, "crash detected (exit %v, signal %v); reward %v",
			res.ExitCode, res.Signal, reward)
		if err := cfg.Corpus.PersistCrash(script, iter); err != nil {
			cfg.Logf(0, "failed to persist crash: %v", err)
		}
	}

	m.RecordReward(reward)
	if res.IsTimeout || res.ExitCode != 0 {
		m.RecordInvalid(res.IsTimeout)
	}
	if err := cfg.Corpus.RecordResult(seedID, reward, res.ExecTime); err != nil {
		cfg.Logf(0, "failed to record result for seed %v: %v", seedID, err)
	}

	if res.IsTimeout {
		if err := cfg.Corpus.PersistTimeout(script); err != nil {
			cfg.Logf(0, "failed to persist timeout: %v", err)
		}
		return
	}
	if res.NewCoverage && res.ExitCode == 0 {
		entry, err := cfg.Corpus.AddEntry(script, res.EdgeHits, reward, res.ExecTime, false)
		if err != nil {
			cfg.Logf(0, "failed to add corpus entry: %v", err)
		} else if entry != nil {
			stats.NewSeeds.Add(1)
			cfg.Logf(1, "new corpus entry %v with %v edges", entry.Path, len(entry.EdgeHits))
		}
	}
}

// Iterations reports how many executions have been scheduled in total.
func (fuzzer *Fuzzer) Iterations() uint64 {
	return fuzzer.iter.Load()
}

func (fuzzer *Fuzzer) logStats(batchStart time.Time) {
	cfg := fuzzer.cfg
	elapsed := time.Since(batchStart).Seconds()
	rate := float64(fuzzer.batchIter) / elapsed
	cfg.Logf(0, "batch done: %v total execs, %.0f scheds/sec, corpus %v, crashes %v, timeouts %v, edge space %v",
		stats.TotalExecs.Get(), rate, cfg.Corpus.Len(),
		stats.TotalCrashes.Get(), stats.TotalTimeouts.Get(), cover.NumEdges())
	for _, m := range cfg.Mutators {
		st := m.Stats()
		cfg.Logf(0, "  %-16s uses %-8d mean %-8.4f last %-8.1f invalid %-6d timeouts %d",
			m.Name(), st.Uses, st.MeanReward, st.LastReward, st.InvalidCount, st.TimeoutCount)
	}
}
