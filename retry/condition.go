// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

// A Condition decides whether a transfer's most recent failed or
// suspect attempt should be retried.
//
// Simple conditions can be composed into complex decision trees using
// the logical composition methods And and Or, and the variadic
// combinators AllOf and AnyOf.
//
// Conditions are invoked only from the transfer engine's worker
// goroutine, so captured state needs no synchronization unless it is
// shared with other goroutines.
type Condition func(ctx *Context) bool

// And composes two conditions into a new condition which returns true
// if both sub-conditions return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f Condition) And(g Condition) Condition {
	return func(ctx *Context) bool {
		return f(ctx) && g(ctx)
	}
}

// Or composes two conditions into a new condition which returns true
// if either of the two sub-conditions returns true, but false if they
// both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f Condition) Or(g Condition) Condition {
	return func(ctx *Context) bool {
		return f(ctx) || g(ctx)
	}
}

// AnyOf combines conditions with OR logic: the combined condition
// returns true if any sub-condition returns true. Evaluation
// short-circuits at the first true. With no conditions the result is
// always false.
func AnyOf(conditions ...Condition) Condition {
	conds := make([]Condition, len(conditions))
	copy(conds, conditions)
	return func(ctx *Context) bool {
		for _, cond := range conds {
			if cond != nil && cond(ctx) {
				return true
			}
		}
		return false
	}
}

// AllOf combines conditions with AND logic: the combined condition
// returns true if every sub-condition returns true. Evaluation
// short-circuits at the first false. With no conditions the result is
// always true.
func AllOf(conditions ...Condition) Condition {
	conds := make([]Condition, len(conditions))
	copy(conds, conditions)
	return func(ctx *Context) bool {
		for _, cond := range conds {
			if cond != nil && !cond(ctx) {
				return false
			}
		}
		return true
	}
}

// TransientErr is a condition that indicates a retry if the most
// recent attempt's terminal code denotes a transient network failure:
// host resolution, connect, operation timeout, TLS handshake, send,
// receive, or an empty response.
//
// TransientErr only looks at the transport code, so it always returns
// false when a valid HTTP response was received. Compose it with a
// status code condition constructed with StatusCode to also retry on
// HTTP-level failures.
var TransientErr Condition = transientErr

// DefaultStatusCodes is the status code set StatusCode retries on when
// called with no arguments.
var DefaultStatusCodes = []int{429, 500, 502, 503, 504}

// StatusCode constructs a condition allowing retries based on the HTTP
// response status code. If the most recent attempt received a valid
// HTTP response and its status is contained in the list ss, the
// condition returns true; otherwise it returns false.
//
// Called with no arguments, StatusCode uses DefaultStatusCodes: 429
// (Too Many Requests); 500 (Internal Server Error); 502 (Bad Gateway);
// 503 (Service Unavailable); and 504 (Gateway Timeout).
func StatusCode(ss ...int) Condition {
	if len(ss) == 0 {
		ss = DefaultStatusCodes
	}
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(ctx *Context) bool {
		last := ctx.LastAttempt()
		if last == nil || last.Response == nil {
			return false
		}
		for _, s := range ss2 {
			if last.Response.Status == s {
				return true
			}
		}
		return false
	}
}

func transientErr(ctx *Context) bool {
	last := ctx.LastAttempt()
	return last != nil && last.Code.Transient()
}
