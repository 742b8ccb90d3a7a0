// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"math/rand"
)

type weighted struct {
	choice string
	weight int
}

func chooseWeighted(r *rand.Rand, choices []weighted) string {
	total := 0
	for _, c := range choices {
		total += c.weight
	}
	n := r.Intn(total)
	for _, c := range choices {
		n -= c.weight
		if n < 0 {
			return c.choice
		}
	}
	return choices[len(choices)-1].choice
}

func prob(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}

// smallDelta samples a gaussian perturbation scaled to the magnitude of
// base, clamped so a single tweak cannot jump arbitrarily far.
func smallDelta(r *rand.Rand, base float64) float64 {
	scale := math.Max(math.Abs(base)*0.05, 1.0)
	raw := r.NormFloat64() * scale
	return math.Max(-scale*100, math.Min(scale*100, raw))
}
