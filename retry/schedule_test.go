// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gogama/httpq/jitter"
	"github.com/stretchr/testify/assert"
)

func ctxWithAttempts(n int, lastCompleteAt time.Time) *Context {
	ctx := &Context{FirstAttemptAt: lastCompleteAt.Add(-time.Minute)}
	for i := 0; i < n; i++ {
		ctx.Attempts = append(ctx.Attempts, Attempt{CompleteAt: lastCompleteAt})
	}
	return ctx
}

func TestImmediate(t *testing.T) {
	at := time.Now().Add(-3 * time.Second)
	assert.Equal(t, at, Immediate()(ctxWithAttempts(1, at)))
}

func TestFixedDelay(t *testing.T) {
	at := time.Now()
	s := FixedDelay(500 * time.Millisecond)
	assert.Equal(t, at.Add(500*time.Millisecond), s(ctxWithAttempts(1, at)))
	assert.Equal(t, at.Add(500*time.Millisecond), s(ctxWithAttempts(5, at)), "delay independent of attempt count")
	assert.PanicsWithValue(t, "httpq/retry: delay must not be negative", func() {
		FixedDelay(-time.Second)
	})
}

func TestLinearBackoff(t *testing.T) {
	at := time.Now()
	s := LinearBackoff(100*time.Millisecond, 100*time.Millisecond, 350*time.Millisecond)
	assert.Equal(t, at.Add(200*time.Millisecond), s(ctxWithAttempts(1, at)))
	assert.Equal(t, at.Add(300*time.Millisecond), s(ctxWithAttempts(2, at)))
	assert.Equal(t, at.Add(350*time.Millisecond), s(ctxWithAttempts(3, at)), "capped at max")
	assert.Equal(t, at.Add(350*time.Millisecond), s(ctxWithAttempts(100, at)))

	assert.Panics(t, func() { LinearBackoff(-1, 0, time.Second) })
	assert.Panics(t, func() { LinearBackoff(2*time.Second, 0, time.Second) })
}

func TestExpBackoff(t *testing.T) {
	at := time.Now()
	t.Run("NoJitter", func(t *testing.T) {
		s := ExpBackoff(100*time.Millisecond, 30*time.Second, 2.0, 0, nil)
		assert.Equal(t, at.Add(200*time.Millisecond), s(ctxWithAttempts(1, at)))
		assert.Equal(t, at.Add(400*time.Millisecond), s(ctxWithAttempts(2, at)))
		assert.Equal(t, at.Add(800*time.Millisecond), s(ctxWithAttempts(3, at)))
	})
	t.Run("CappedAtMax", func(t *testing.T) {
		s := ExpBackoff(100*time.Millisecond, time.Second, 2.0, 0, nil)
		assert.Equal(t, at.Add(time.Second), s(ctxWithAttempts(10, at)))
		assert.Equal(t, at.Add(time.Second), s(ctxWithAttempts(500, at)), "overflow saturates at max")
	})
	t.Run("JitterBounded", func(t *testing.T) {
		s := ExpBackoff(time.Second, 30*time.Second, 2.0, 0.5, int64(11))
		ctx := ctxWithAttempts(1, at)
		// delay = 2s, jitter bound = 1s, so next is within [at+1s, at+3s].
		for i := 0; i < 1000; i++ {
			next := s(ctx)
			assert.False(t, next.Before(at.Add(time.Second)))
			assert.False(t, next.After(at.Add(3*time.Second)))
		}
	})
	t.Run("JitterSources", func(t *testing.T) {
		assert.NotPanics(t, func() { ExpBackoff(1, 1, 1, 0.1, time.Now()) })
		assert.NotPanics(t, func() { ExpBackoff(1, 1, 1, 0.1, 42) })
		assert.NotPanics(t, func() { ExpBackoff(1, 1, 1, 0.1, int64(42)) })
		assert.NotPanics(t, func() { ExpBackoff(1, 1, 1, 0.1, rand.NewSource(42)) })
		assert.NotPanics(t, func() { ExpBackoff(1, 1, 1, 0.1, jitter.New(rand.NewSource(42))) })
		assert.Panics(t, func() { ExpBackoff(1, 1, 1, 0.1, "seed") })
		assert.Panics(t, func() { ExpBackoff(1, 1, 1, 0.1, (*jitter.Generator)(nil)) })
	})
	t.Run("BadArgs", func(t *testing.T) {
		assert.Panics(t, func() { ExpBackoff(0, time.Second, 2.0, 0, nil) })
		assert.Panics(t, func() { ExpBackoff(time.Second, time.Millisecond, 2.0, 0, nil) })
		assert.Panics(t, func() { ExpBackoff(time.Second, time.Second, 0.5, 0, nil) })
	})
}

func TestAnchorWithoutAttempts(t *testing.T) {
	before := time.Now()
	next := FixedDelay(time.Second)(&Context{})
	after := time.Now()
	assert.False(t, next.Before(before.Add(time.Second)))
	assert.False(t, next.After(after.Add(time.Second)))
}
