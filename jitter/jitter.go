// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jitter generates bounded, zero-mean random perturbations for
// backoff delays and for desynchronizing submission bursts.
//
// Given a bound max, a generator produces samples in [-max, max]. The
// sign is chosen with probability one half and the magnitude is drawn
// from a log-normal distribution whose spread scales with the bound,
// clipped at the bound. Small perturbations therefore dominate while
// occasional larger ones break up lockstep retry storms.
package jitter

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mathrand "math/rand"
	"sync"
	"time"
)

const (
	// sigma scaling relative to a 1ms reference bound.
	sigmaRef = 1e-3
	sigmaMin = 0.3
	sigmaMax = 1.5
)

// A Generator produces bounded jitter samples. It is safe for
// concurrent use by multiple goroutines.
//
// The package-level Default generator is seeded from the system
// entropy source. Callers that require reproducibility construct
// their own generator with New and a seeded source.
type Generator struct {
	lock sync.Mutex
	rand *mathrand.Rand
}

// New constructs a Generator drawing from the given source. A nil
// source panics.
func New(src mathrand.Source) *Generator {
	if src == nil {
		panic("httpq/jitter: nil source")
	}
	return &Generator{rand: mathrand.New(src)}
}

// Default is the shared generator, seeded from the system entropy
// source at package initialization.
var Default = New(mathrand.NewSource(entropySeed()))

// Float returns a sample in [-max, max], where max is a bound in
// arbitrary units. A bound that is zero or negative yields zero.
func (g *Generator) Float(max float64) float64 {
	if max <= 0 {
		return 0
	}

	sigma := 0.4 + 0.3*math.Log1p(max/sigmaRef)
	if sigma < sigmaMin {
		sigma = sigmaMin
	} else if sigma > sigmaMax {
		sigma = sigmaMax
	}

	// Median of the magnitude sits near 5% of the bound.
	mu := math.Log(0.05*max + 1e-12)

	g.lock.Lock()
	mag := math.Exp(mu + sigma*g.rand.NormFloat64())
	negative := g.rand.Intn(2) == 0
	g.lock.Unlock()

	if mag > max {
		mag = max
	}
	if negative {
		return -mag
	}
	return mag
}

// Duration returns a sample in [-max, max]. The bound is interpreted
// in seconds for the purpose of scaling the distribution.
func (g *Generator) Duration(max time.Duration) time.Duration {
	return time.Duration(g.Float(max.Seconds()) * float64(time.Second))
}

func entropySeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Entropy exhaustion is not recoverable here; fall back to
		// the wall clock.
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
