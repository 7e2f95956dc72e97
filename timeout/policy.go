// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/httpq/retry"
	"github.com/gogama/httpq/transport"
)

// A Policy directs how the transfer engine sets the attempt timeout
// when it re-arms a transfer for a retry. When no Policy is installed,
// every attempt uses the scalar timeout from the request policy.
//
// Implementations of Policy must be safe for concurrent use by
// multiple goroutines.
type Policy interface {
	// Timeout returns the timeout to set on the next attempt of the
	// transfer whose history is ctx. A non-positive return value
	// keeps the request policy's timeout.
	Timeout(ctx *retry.Context) time.Duration
}

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed constructs a timeout policy that uses the same value for
// every attempt timeout.
//
// Use Fixed to create the typical timeout behavior supported by most
// retrying HTTP client software.
func Fixed(d time.Duration) Policy {
	return policy([]time.Duration{d})
}

// Adaptive constructs a timeout policy that varies the next timeout
// value if the previous attempt timed out.
//
// Use Adaptive if you find the remote service often exhibits one-off
// slow response times that can be cured by quickly timing out and
// retrying, but you also need to protect your application (and the
// remote service) from retry storms and failure if the remote service
// goes through a burst of slowness where most response times during
// the burst are slower than your usual quick timeout.
//
// Parameter usual represents the timeout value the policy will return
// for any retry where the immediately preceding attempt did not time
// out.
//
// Parameter after contains timeout values the policy will return if
// the previous attempt timed out. If that was the first timed-out
// attempt of the transfer, after[0] is returned; if the second,
// after[1], and so on. If more attempts have timed out than after has
// elements, the last element of after is returned.
//
// Consider the following timeout policy:
//
//	p := Adaptive(200*time.Millisecond, time.Second, 10*time.Second)
//
// The policy p will use 200 milliseconds as the usual timeout, 1
// second after the transfer's first timed-out attempt, and 10 seconds
// after any further timed-out attempt.
func Adaptive(usual time.Duration, after ...time.Duration) Policy {
	p := make([]time.Duration, 1, 1+len(after))
	p[0] = usual
	return policy(append(p, after...))
}

type policy []time.Duration

func (p policy) Timeout(ctx *retry.Context) time.Duration {
	last := ctx.LastAttempt()
	if last == nil || last.Code != transport.OperationTimedOut {
		return p[0]
	}

	i := timeoutCount(ctx)
	if i > len(p)-1 {
		i = len(p) - 1
	}

	return p[i]
}

func timeoutCount(ctx *retry.Context) int {
	n := 0
	for i := range ctx.Attempts {
		if ctx.Attempts[i].Code == transport.OperationTimedOut {
			n++
		}
	}
	return n
}
