// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stats maintains the process-wide fuzzing counters and exports
// them via prometheus.
package stats

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsfuzz/jsfuzz/pkg/log"
)

// Val is a named monotonic counter cheap enough for the hot path.
type Val struct {
	name string
	v    atomic.Uint64
}

func (v *Val) Add(n uint64) {
	v.v.Add(n)
}

func (v *Val) Get() uint64 {
	return v.v.Load()
}

var (
	mu       sync.Mutex
	registry = map[string]*Val{}
)

// New registers a counter under a prometheus metric name. Calling New
// twice with the same name returns the same Val.
func New(name, help string) *Val {
	mu.Lock()
	defer mu.Unlock()
	if v, ok := registry[name]; ok {
		return v
	}
	v := &Val{name: name}
	registry[name] = v
	prometheus.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, func() float64 {
		return float64(v.Get())
	}))
	return v
}

// NewGauge registers a prometheus gauge backed by a callback (corpus
// size, coverage percent and the like).
func NewGauge(name, help string, fn func() float64) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, fn))
}

// Serve exposes /metrics on addr. Runs in its own goroutine; errors are
// logged, not fatal — metrics are best-effort.
func Serve(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server failed: %v", err)
		}
	}()
}

// The fuzzer's counters.
var (
	TotalExecs    = New("jsfuzz_execs_total", "total engine executions")
	TotalCrashes  = New("jsfuzz_crashes_total", "crashes observed")
	TotalTimeouts = New("jsfuzz_timeouts_total", "execution timeouts")
	TotalRestarts = New("jsfuzz_engine_restarts_total", "engine child restarts")
	NewSeeds      = New("jsfuzz_new_seeds_total", "corpus entries added")
)
