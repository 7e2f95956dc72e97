// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package retry implements the retry policy consulted by the transfer
engine after every finished attempt of a retry-capable transfer.

A Policy bounds the retry budget (MaxRetries, TotalTimeout) and
carries two pluggable closures: a Condition deciding whether to retry,
and a Schedule computing the absolute time of the next attempt.

	policy := retry.Policy{
		MaxRetries:  5,
		ShouldRetry: retry.TransientErr.Or(retry.StatusCode(503)),
		NextRetryAt: retry.ExpBackoff(250*time.Millisecond, 10*time.Second, 2.0, 0.3, nil),
	}

Both closures see a Context holding the complete attempt history, so
decisions may range over every response and transport code observed so
far, not just the most recent one.

Schedules return absolute times, not deltas; the engine holds pending
retries in a priority queue keyed by that time and promotes them as
they come due.
*/
package retry
