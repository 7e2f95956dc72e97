// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/transport"
)

// An Attempt records one finished exchange with the server: its
// response snapshot, the transport driver's terminal code, and the
// absolute time the attempt completed.
type Attempt struct {
	// Response is the attempt's response snapshot. It may carry a
	// zero status and a non-empty error description if the attempt
	// failed below the HTTP level.
	Response *request.Response

	// Code is the transport driver's terminal code for the attempt.
	// It is transport.OK when an HTTP response was received.
	Code transport.Code

	// CompleteAt is the absolute time the attempt completed.
	CompleteAt time.Time
}

// A Context carries the attempt history of one transfer. It is passed
// to the retry policy's condition and schedule closures after every
// attempt.
//
// The transfer engine mutates a transfer's Context between attempts,
// always from its worker goroutine. Closures are likewise invoked only
// from the worker, so they may read the Context without
// synchronization.
type Context struct {
	// Attempts is the history of finished attempts, most recent last.
	Attempts []Attempt

	// FirstAttemptAt is the absolute time the first attempt started.
	FirstAttemptAt time.Time
}

// AttemptCount returns the number of finished attempts.
func (c *Context) AttemptCount() int {
	return len(c.Attempts)
}

// LastAttempt returns the most recent finished attempt, or nil if no
// attempt has finished yet.
func (c *Context) LastAttempt() *Attempt {
	if len(c.Attempts) == 0 {
		return nil
	}
	return &c.Attempts[len(c.Attempts)-1]
}

// LastCompleteAt returns the completion time of the most recent
// finished attempt, or the zero time if no attempt has finished yet.
func (c *Context) LastCompleteAt() time.Time {
	if len(c.Attempts) == 0 {
		return time.Time{}
	}
	return c.Attempts[len(c.Attempts)-1].CompleteAt
}

// Clone returns a copy of the context whose attempt slice does not
// alias the original. The response snapshots themselves are shared,
// as they are not modified after their attempt completes.
func (c *Context) Clone() *Context {
	clone := &Context{FirstAttemptAt: c.FirstAttemptAt}
	if len(c.Attempts) > 0 {
		clone.Attempts = make([]Attempt, len(c.Attempts))
		copy(clone.Attempts, c.Attempts)
	}
	return clone
}
