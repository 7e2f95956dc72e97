// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

// A HandlerGroup is a group of event handler chains which can be
// installed in a Client via its Settings.
//
// Handlers for AfterAttempt, AfterRetryScheduled, and AfterCompletion
// run on the engine's worker goroutine and therefore delay transfer
// progress while they run; keep them short. BeforeSubmit handlers run
// on the submitting goroutine.
type HandlerGroup struct {
	handlers [][]Handler
}

// PushBack adds an event handler to the back of the event handler
// chain for a specific event type.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("httpq: nil handler")
	}

	if g.handlers == nil {
		g.handlers = make([][]Handler, numEvents)
	}

	g.handlers[evt] = append(g.handlers[evt], h)
}

func (g *HandlerGroup) run(evt Event, x *Exchange) {
	i := int(evt)
	if i < len(g.handlers) {
		for _, h := range g.handlers[i] {
			h.Handle(evt, x)
		}
	}
}

// A Handler handles the occurrence of an event during a transfer.
type Handler interface {
	Handle(Event, *Exchange)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers. If f is a function with the appropriate
// signature, HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *Exchange)

// Handle calls f(evt, x).
func (f HandlerFunc) Handle(evt Event, x *Exchange) {
	f(evt, x)
}
