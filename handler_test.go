// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerGroupNilHandler(t *testing.T) {
	g := &HandlerGroup{}
	assert.PanicsWithValue(t, "httpq: nil handler", func() {
		g.PushBack(AfterAttempt, nil)
	})
}

func TestHandlerGroupRunEmpty(t *testing.T) {
	g := &HandlerGroup{}
	assert.NotPanics(t, func() {
		g.run(AfterAttempt, &Exchange{})
	})
}

func TestHandlerGroupChainOrder(t *testing.T) {
	g := &HandlerGroup{}
	var order []int
	g.PushBack(AfterAttempt, HandlerFunc(func(Event, *Exchange) { order = append(order, 1) }))
	g.PushBack(AfterAttempt, HandlerFunc(func(Event, *Exchange) { order = append(order, 2) }))
	g.PushBack(AfterCompletion, HandlerFunc(func(Event, *Exchange) { order = append(order, 3) }))

	g.run(AfterAttempt, &Exchange{})
	assert.Equal(t, []int{1, 2}, order)

	g.run(AfterCompletion, &Exchange{})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestHandlerFuncReceivesArgs(t *testing.T) {
	var gotEvt Event
	var gotX *Exchange
	h := HandlerFunc(func(evt Event, x *Exchange) {
		gotEvt = evt
		gotX = x
	})
	x := &Exchange{Attempt: 2}
	h.Handle(AfterRetryScheduled, x)
	assert.Equal(t, AfterRetryScheduled, gotEvt)
	assert.Same(t, x, gotX)
}
