// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/gogama/httpq/jitter"
)

// A Schedule computes the absolute time at which the next retry
// attempt should start. The transfer engine compares the returned time
// against the current time when promoting pending retries.
//
// Schedules are invoked only from the transfer engine's worker
// goroutine.
type Schedule func(ctx *Context) time.Time

// Immediate returns a schedule that retries as soon as the previous
// attempt has completed.
func Immediate() Schedule {
	return func(ctx *Context) time.Time {
		return anchor(ctx)
	}
}

// FixedDelay returns a schedule that waits the same duration after
// every failed attempt.
func FixedDelay(d time.Duration) Schedule {
	if d < 0 {
		panic("httpq/retry: delay must not be negative")
	}
	return func(ctx *Context) time.Time {
		return anchor(ctx).Add(d)
	}
}

// LinearBackoff returns a schedule whose delay grows linearly with the
// attempt count:
//
//	delay = min(initial + increment*a, max)
//
// where a is the number of attempts finished so far.
func LinearBackoff(initial, increment, max time.Duration) Schedule {
	if initial < 0 || increment < 0 {
		panic("httpq/retry: initial and increment must not be negative")
	}
	if max < initial {
		panic("httpq/retry: max must be at least initial")
	}
	return func(ctx *Context) time.Time {
		delay := initial + time.Duration(ctx.AttemptCount())*increment
		if delay > max {
			delay = max
		}
		return anchor(ctx).Add(delay)
	}
}

// ExpBackoff returns a schedule implementing exponential backoff with
// optional jitter:
//
//	delay = min(base * mult**a, max)
//
// where a is the number of attempts finished so far. Base and max must
// be positive, max must be at least base, and mult must be at least 1.
//
// If jitterFactor is positive, a bounded zero-mean jitter with bound
// delay*jitterFactor is added to the delay, and the result is clipped
// at zero.
//
// Parameter j selects the jitter source. Pass nil to use the shared
// jitter.Default generator. Otherwise you may pass a random number
// generator seed value (as a time.Time, int, or int64), a rand.Source,
// or a *jitter.Generator. Seeds and sources yield a private generator,
// which callers requiring reproducibility should prefer.
func ExpBackoff(base, max time.Duration, mult, jitterFactor float64, j interface{}) Schedule {
	if base < 1 {
		panic("httpq/retry: base must be positive")
	}
	if max < base {
		panic("httpq/retry: max must be at least base")
	}
	if mult < 1 {
		panic("httpq/retry: mult must be at least 1")
	}
	gen := jitterToGenerator(j)
	return func(ctx *Context) time.Time {
		delay := time.Duration(float64(base) * math.Pow(mult, float64(ctx.AttemptCount())))
		if delay > max || delay <= 0 {
			delay = max
		}
		if jitterFactor > 0 {
			bound := time.Duration(float64(delay) * jitterFactor)
			delay += gen.Duration(bound)
			if delay < 0 {
				delay = 0
			}
		}
		return anchor(ctx).Add(delay)
	}
}

// anchor is the time a schedule's delay is measured from: the
// completion of the most recent attempt, or the current time if no
// attempt has finished yet.
func anchor(ctx *Context) time.Time {
	at := ctx.LastCompleteAt()
	if at.IsZero() {
		at = time.Now()
	}
	return at
}

func jitterToGenerator(j interface{}) *jitter.Generator {
	switch x := j.(type) {
	case nil:
		return jitter.Default
	case time.Time:
		return jitter.New(rand.NewSource(x.UnixNano()))
	case int:
		return jitter.New(rand.NewSource(int64(x)))
	case int64:
		return jitter.New(rand.NewSource(x))
	case *jitter.Generator:
		if x == nil {
			panic("httpq/retry: jitter generator may not be a typed nil")
		}
		return x
	case rand.Source:
		return jitter.New(x)
	default:
		panic("httpq/retry: invalid jitter type")
	}
}
