// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package queue runs scripts on a pool of persistent engine workers.
// Each worker owns one engine child and one coverage context; a single
// counting semaphore provides admission control for the whole pool.
package queue

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jsfuzz/jsfuzz/pkg/cover"
	"github.com/jsfuzz/jsfuzz/pkg/log"
	"github.com/jsfuzz/jsfuzz/pkg/profile"
	"github.com/jsfuzz/jsfuzz/pkg/reprl"
	"github.com/jsfuzz/jsfuzz/pkg/stats"
)

// Result is the outcome of one script execution.
//
// Invariants: IsTimeout implies no edges and no new coverage; IsCrash
// uses the (-1, -1) sentinel for exit code and signal.
type Result struct {
	ExitCode    int
	Signal      int
	IsCrash     bool
	IsTimeout   bool
	NewCoverage bool
	EdgeHits    []uint32
	ExecTime    time.Duration
}

// Executor is the interface the fuzz loop wants from the pool.
type Executor interface {
	Schedule(ctx context.Context, script []byte) (<-chan *Result, error)
}

type job struct {
	script  []byte
	resultC chan *Result
	// release returns the admission permit; called as soon as the job is
	// dequeued so that pool back-pressure tracks queued capacity.
	release func()
}

// Worker serializes executions on one engine child. One goroutine per
// worker blocks inside Execute on the child's status read.
type Worker struct {
	proc    *reprl.Process
	cov     *cover.Context
	tracker *cover.Tracker
	jobs    chan job

	minNewEdges int
}

func newWorker(prof *profile.Profile, tracker *cover.Tracker, queueSize int) (*Worker, error) {
	shmID := fmt.Sprintf("jsfuzz_%d_%s", os.Getpid(), uuid.New().String()[:8])
	cov, err := cover.NewContext(shmID)
	if err != nil {
		return nil, err
	}
	proc, err := reprl.Spawn(reprl.Config{
		Path:          prof.Path,
		Args:          prof.Args,
		Timeout:       prof.Timeout(),
		MaxExecutions: prof.ExecsPerProcess,
		ShmID:         shmID,
	})
	if err != nil {
		cov.Shutdown()
		return nil, err
	}
	if err := proc.Handshake(); err != nil {
		proc.Shutdown()
		cov.Shutdown()
		return nil, fmt.Errorf("engine handshake failed: %w", err)
	}
	if err := cov.FinishInitialization(); err != nil {
		proc.Shutdown()
		cov.Shutdown()
		return nil, err
	}
	return &Worker{
		proc:        proc,
		cov:         cov,
		tracker:     tracker,
		jobs:        make(chan job, queueSize),
		minNewEdges: prof.MinNewEdges,
	}, nil
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			j.release()
			j.resultC <- w.execute(j.script)
		}
	}
}

func (w *Worker) execute(script []byte) *Result {
	w.cov.Clear()
	start := time.Now()
	status, err := w.proc.Execute(script)
	elapsed := time.Since(start)
	stats.TotalExecs.Add(1)

	if err == reprl.ErrTimeout {
		w.restartChild()
		stats.TotalTimeouts.Add(1)
		return &Result{ExitCode: -1, IsTimeout: true, ExecTime: elapsed}
	}
	if err != nil {
		// Zero-read on the control pipe or an I/O error not classified
		// as a timeout: the child died under us.
		log.Logf(2, "engine died during execution: %v", err)
		w.restartChild()
		stats.TotalCrashes.Add(1)
		return &Result{ExitCode: -1, Signal: -1, IsCrash: true, ExecTime: elapsed}
	}

	anyNew, edges := w.cov.Evaluate()
	if anyNew {
		edges = w.stabilize(script, edges)
		anyNew = len(edges) > 0
	}
	if anyNew && w.minNewEdges > 0 && len(edges) < w.minNewEdges {
		anyNew = false
		edges = nil
	}
	if !anyNew {
		edges = nil
	}
	return &Result{
		ExitCode:    status.ExitCode,
		Signal:      status.Signal,
		NewCoverage: anyNew,
		EdgeHits:    edges,
		ExecTime:    elapsed,
	}
}

// stabilize re-runs the script and keeps only the edges both runs agree
// on. Without this filter, flaky edges (JIT tier-ups, GC, allocation
// fingerprints) would dominate the corpus.
func (w *Worker) stabilize(script []byte, candidates []uint32) []uint32 {
	for _, edge := range candidates {
		w.cov.ClearEdge(edge)
	}
	w.cov.Clear()
	status, err := w.proc.Execute(script)
	if err == reprl.ErrTimeout {
		w.restartChild()
		return nil
	}
	if err != nil {
		w.restartChild()
		return nil
	}
	if status.Signal != 0 {
		return nil
	}
	_, confirmed := w.cov.Evaluate()
	stable, blacklisted := w.tracker.Update(candidates, confirmed)
	for _, edge := range blacklisted {
		// Re-virgin blacklisted edges; the tracker keeps them from ever
		// counting as coverage again.
		w.cov.ClearEdge(edge)
		log.Logf(2, "edge %v blacklisted as unstable", edge)
	}
	return stable
}

func (w *Worker) restartChild() {
	stats.TotalRestarts.Add(1)
	for {
		if err := w.proc.Restart(); err != nil {
			log.Logf(0, "failed to restart engine: %v, retrying", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err := w.proc.Handshake(); err != nil {
			log.Logf(0, "engine handshake failed after restart: %v, retrying", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err := w.cov.FinishInitialization(); err != nil {
			log.Logf(0, "coverage reinit failed after restart: %v", err)
		}
		return
	}
}

func (w *Worker) shutdown() {
	w.proc.Shutdown()
	w.cov.Shutdown()
}

// Pool spawns N workers and dispatches jobs round-robin.
type Pool struct {
	workers []*Worker
	permits *semaphore.Weighted

	mu   sync.Mutex
	next int
}

func NewPool(ctx context.Context, prof *profile.Profile, tracker *cover.Tracker, numWorkers int) (*Pool, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	p := &Pool{
		permits: semaphore.NewWeighted(int64(numWorkers * prof.QueueSize)),
	}
	for i := 0; i < numWorkers; i++ {
		w, err := newWorker(prof, tracker, prof.QueueSize)
		if err != nil {
			p.Shutdown()
			return nil, fmt.Errorf("failed to start worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
		go w.run(ctx)
	}
	return p, nil
}

// Schedule queues a script for execution and returns the channel the
// single result will arrive on. Blocks when all worker queues are at
// capacity (that admission semaphore is the only source of back-pressure
// between the fuzz loop and the engines).
func (p *Pool) Schedule(ctx context.Context, script []byte) (<-chan *Result, error) {
	if len(p.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}
	if err := p.permits.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	j := job{
		script:  script,
		resultC: make(chan *Result, 1),
		release: func() { once.Do(func() { p.permits.Release(1) }) },
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for offset := 0; offset < len(p.workers); offset++ {
			idx := (p.next + offset) % len(p.workers)
			select {
			case p.workers[idx].jobs <- j:
				p.next = (idx + 1) % len(p.workers)
				return j.resultC, nil
			default:
			}
		}
		// Every worker queue is full; yield and retry.
		select {
		case <-ctx.Done():
			j.release()
			return nil, ctx.Err()
		default:
			runtime.Gosched()
		}
	}
}

// Execute schedules a script and waits for its result.
func (p *Pool) Execute(ctx context.Context, script []byte) (*Result, error) {
	resultC, err := p.Schedule(ctx, script)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultC:
		return res, nil
	}
}

// FoundEdges reports the largest of the per-worker coverage views.
func (p *Pool) FoundEdges() uint32 {
	var found uint32
	for _, w := range p.workers {
		found = max(found, w.cov.FoundEdges())
	}
	return found
}

// DrainOutput collects pending engine output, for diagnostic modes.
func (p *Pool) DrainOutput() []byte {
	var out []byte
	for _, w := range p.workers {
		out = append(out, w.proc.DrainOutput()...)
	}
	return out
}

func (p *Pool) Shutdown() {
	for _, w := range p.workers {
		w.shutdown()
	}
}
