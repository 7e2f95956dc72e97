// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"
)

// A Policy controls if and when failed transfer attempts are retried.
//
// MaxRetries and TotalTimeout bound the retry budget; ShouldRetry and
// NextRetryAt are pluggable closures carrying the actual decision and
// scheduling logic. The zero value of either closure falls back to the
// corresponding component of Default.
//
// A transfer submitted without a Policy is never retried.
type Policy struct {
	// MaxRetries is the maximum number of retry attempts following
	// the initial attempt. A transfer therefore makes at most
	// MaxRetries+1 attempts in total.
	MaxRetries int

	// TotalTimeout bounds the whole multi-attempt transfer, measured
	// from the start of the first attempt. Zero means unbounded. An
	// attempt already in flight when the budget runs out is not
	// interrupted, but no further retry is scheduled.
	TotalTimeout time.Duration

	// ShouldRetry decides whether the most recent attempt warrants a
	// retry. If nil, the Default condition is used.
	ShouldRetry Condition

	// NextRetryAt computes the absolute time of the next attempt. If
	// nil, the Default schedule is used.
	NextRetryAt Schedule
}

// Default returns a general-purpose retry policy suitable for common
// use cases: up to 3 retries, no total timeout, retrying on transient
// transport failures and on the DefaultStatusCodes, with jittered
// exponential backoff between 100 milliseconds and 30 seconds.
func Default() Policy {
	return Policy{
		MaxRetries:   3,
		ShouldRetry:  AnyOf(TransientErr, StatusCode()),
		NextRetryAt:  ExpBackoff(100*time.Millisecond, 30*time.Second, 2.0, 0.3, nil),
		TotalTimeout: 0,
	}
}

// Eligible reports whether the transfer may be retried after its most
// recent attempt: the condition approves, the attempt budget is not
// exhausted, and the total timeout, if any, has not elapsed at time
// now.
func (p *Policy) Eligible(ctx *Context, now time.Time) bool {
	if ctx.AttemptCount() >= p.MaxRetries+1 {
		return false
	}
	if p.TotalTimeout > 0 && now.Sub(ctx.FirstAttemptAt) >= p.TotalTimeout {
		return false
	}
	cond := p.ShouldRetry
	if cond == nil {
		cond = AnyOf(TransientErr, StatusCode())
	}
	return cond(ctx)
}

// NextAt computes the absolute time of the next attempt, falling back
// to the Default schedule if NextRetryAt is nil.
func (p *Policy) NextAt(ctx *Context) time.Time {
	schedule := p.NextRetryAt
	if schedule == nil {
		schedule = ExpBackoff(100*time.Millisecond, 30*time.Second, 2.0, 0.3, nil)
	}
	return schedule(ctx)
}
