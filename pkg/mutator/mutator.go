// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutator implements the catalogue of AST transformations the
// fuzz loop draws from. Every mutator guarantees a syntactically valid
// result, does nothing when it has no applicable site, and refuses to
// touch classical for-loop headers where that matters.
package mutator

import (
	"math/rand"
	"sync"

	"github.com/jsfuzz/jsfuzz/pkg/js"
)

// Mutator transforms one AST in place. The wrapper clones before calling.
type Mutator interface {
	Name() string
	Mutate(ast *js.AST, r *rand.Rand) error
}

// Splicer consumes a second AST (the donor seed) instead of transforming
// a single one.
type Splicer interface {
	Name() string
	Splice(host, donor *js.AST, r *rand.Rand) (*js.AST, error)
}

type Config struct {
	// Probability that an expression replacement substitutes an in-scope
	// function identifier instead of drawing from the expression pool.
	FuncReplaceProb float64
}

func DefaultConfig() *Config {
	return &Config{FuncReplaceProb: 0.1}
}

// Stats is a snapshot of one mutator's accounting.
type Stats struct {
	Uses         uint64
	TotalReward  float64
	MeanReward   float64
	LastReward   float64
	InvalidCount uint64
	TimeoutCount uint64
}

// Managed pairs a mutator with its reward accounting. The fuzz loop and
// the result handlers touch the stats concurrently, hence the mutex.
type Managed struct {
	mutator Mutator
	splicer Splicer

	mu    sync.Mutex
	stats Stats
}

func newManaged(m Mutator) *Managed { return &Managed{mutator: m} }
func newSplicer(s Splicer) *Managed { return &Managed{splicer: s} }

func (m *Managed) IsSplicer() bool { return m.splicer != nil }

func (m *Managed) Name() string {
	if m.splicer != nil {
		return m.splicer.Name()
	}
	return m.mutator.Name()
}

// Mutate clones the input and applies the transformation to the clone, so
// callers can keep using the original AST. The result is re-checked
// against the parser: a replacement can land in a slot with
// context-sensitive syntax (an assignment target, say), and the catalogue
// contract is that mutators never emit unparseable programs.
func (m *Managed) Mutate(ast *js.AST, r *rand.Rand) (*js.AST, error) {
	clone, err := js.Clone(ast)
	if err != nil {
		return nil, err
	}
	if err := m.mutator.Mutate(clone, r); err != nil {
		return nil, err
	}
	if _, err := js.Parse(js.Emit(clone)); err != nil {
		return js.Clone(ast)
	}
	return clone, nil
}

func (m *Managed) Splice(host, donor *js.AST, r *rand.Rand) (*js.AST, error) {
	return m.splicer.Splice(host, donor, r)
}

func (m *Managed) RecordReward(reward float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Uses++
	m.stats.TotalReward += reward
	m.stats.MeanReward = m.stats.TotalReward / float64(m.stats.Uses)
	m.stats.LastReward = reward
}

func (m *Managed) RecordInvalid(timeout bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.InvalidCount++
	if timeout {
		m.stats.TimeoutCount++
	}
}

// Weight is the bandit selection weight: unused mutators start at 1.0 so
// everything gets tried, positive mean reward is used directly, and a
// small exploration floor keeps unlucky mutators alive.
func (m *Managed) Weight() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.stats.Uses == 0:
		return 1.0
	case m.stats.MeanReward > 0:
		return m.stats.MeanReward
	default:
		return 0.1
	}
}

func (m *Managed) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Catalogue builds the full mutator set, splicers included.
func Catalogue(cfg *Config) []*Managed {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return []*Managed{
		newManaged(numericTweaker{}),
		newManaged(booleanFlipper{}),
		newManaged(arrayMutator{}),
		newManaged(operatorSwap{}),
		newManaged(&exprSwapDup{funcReplaceProb: cfg.FuncReplaceProb}),
		newManaged(identSwap{}),
		newManaged(removeProp{}),
		newManaged(elementAccessor{}),
		newManaged(methodCall{}),
		newManaged(ctorCall{}),
		newSplicer(spliceMutator{}),
	}
}

// ByName finds a mutator for the --mutator-test diagnostic mode. The
// minifier is addressable here even though it is not part of the random
// catalogue.
func ByName(name string, cfg *Config) *Managed {
	if name == "minify" {
		return newManaged(minify{})
	}
	for _, m := range Catalogue(cfg) {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// ChooseSplicer picks uniformly among the splicers, or nil if there are
// none. Splicers are excluded from the regular bandit draw.
func ChooseSplicer(mutators []*Managed, r *rand.Rand) *Managed {
	var splicers []*Managed
	for _, m := range mutators {
		if m.IsSplicer() {
			splicers = append(splicers, m)
		}
	}
	if len(splicers) == 0 {
		return nil
	}
	return splicers[r.Intn(len(splicers))]
}
