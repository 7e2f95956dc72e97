// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowEmpty(t *testing.T) {
	w := newSlidingWindow(4)
	assert.Equal(t, 0.0, w.mean())
	assert.Equal(t, 0.0, w.max())
}

func TestSlidingWindowPartial(t *testing.T) {
	w := newSlidingWindow(4)
	w.push(2)
	w.push(4)
	assert.Equal(t, 3.0, w.mean())
	assert.Equal(t, 4.0, w.max())
}

func TestSlidingWindowOverwrite(t *testing.T) {
	w := newSlidingWindow(3)
	w.push(1)
	w.push(2)
	w.push(3)
	w.push(10) // overwrites 1
	assert.Equal(t, 5.0, w.mean())
	assert.Equal(t, 10.0, w.max())
	w.push(10) // overwrites 2
	w.push(10) // overwrites 3
	assert.Equal(t, 10.0, w.mean())
}

func TestSlidingWindowConstantMeanExact(t *testing.T) {
	w := newSlidingWindow(16)
	for i := 0; i < 1000; i++ {
		w.push(7.5)
	}
	assert.Equal(t, 7.5, w.mean(), "mean of constant samples is exact once the window is full")
}

func TestSlidingWindowClear(t *testing.T) {
	w := newSlidingWindow(4)
	w.push(5)
	w.push(6)
	w.clear()
	assert.Equal(t, 0.0, w.mean())
	assert.Equal(t, 0.0, w.max())
	w.push(2)
	assert.Equal(t, 2.0, w.mean())
}

func TestSlidingWindowBadCapacity(t *testing.T) {
	assert.Panics(t, func() { newSlidingWindow(0) })
}
