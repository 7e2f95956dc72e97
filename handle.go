// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"sync"
	"sync/atomic"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
	"github.com/google/uuid"
)

// A Handle is the user-visible side of a submitted transfer: a set of
// thread-safe lifecycle commands plus a future resolving to the final
// Response.
//
// A Handle never mutates engine-owned state directly. Commands
// atomically set the requested state, post the handle's key to the
// engine's event mailbox, and wake the engine; the engine's worker
// acts on the request at its next event pass.
//
// All methods are safe for concurrent use by multiple goroutines.
type Handle struct {
	client *Client
	key    uuid.UUID
	state  atomic.Int32
	retry  *retryState

	fulfillOnce sync.Once
	done        chan struct{}
	resp        *request.Response
	err         error
}

// State returns the transfer's current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Cancel requests cancellation of the transfer. It is accepted in any
// non-terminal state and is idempotent.
//
// Cancellation is cooperative and asynchronous: the state moves to
// CancelRequested immediately, and the future fails with ErrCancelled
// once the engine acts. A cancel racing with natural completion loses:
// if the completion is harvested first the future resolves normally
// and the cancel is a no-op.
func (h *Handle) Cancel() {
	for {
		s := h.State()
		if s.Terminal() || s == CancelRequested {
			return
		}
		if h.state.CompareAndSwap(int32(s), int32(CancelRequested)) {
			break
		}
	}
	h.client.postEvent(h.key)
}

// Pause requests suspension of an Ongoing transfer, releasing its
// concurrency slot once the engine acts. In any other state Pause is a
// no-op.
func (h *Handle) Pause() {
	if h.state.CompareAndSwap(int32(Ongoing), int32(PauseRequested)) {
		h.client.postEvent(h.key)
	}
}

// Resume requests resumption of a Paused transfer. The engine
// re-acquires a concurrency slot before unpausing; if none is
// available the request stays queued until one frees up. In any state
// other than Paused, including PauseRequested while a pause is still
// in flight, Resume is a no-op.
func (h *Handle) Resume() {
	if h.state.CompareAndSwap(int32(Paused), int32(ResumeRequested)) {
		h.client.postEvent(h.key)
	}
}

// HasRetry reports whether the transfer was submitted with a retry
// policy.
func (h *Handle) HasRetry() bool {
	return h.retry != nil
}

// AttemptCount returns the number of finished attempts. It is zero
// for a transfer submitted without a retry policy until the transfer
// resolves, after which it is 1.
func (h *Handle) AttemptCount() int {
	if h.retry == nil {
		select {
		case <-h.done:
			return 1
		default:
			return 0
		}
	}
	return h.retry.attemptCount()
}

// RetryContext returns a snapshot of the transfer's attempt history,
// or nil if the transfer has no retry policy. The snapshot is
// decoupled from the engine's bookkeeping and remains valid after
// further attempts.
func (h *Handle) RetryContext() *retry.Context {
	if h.retry == nil {
		return nil
	}
	return h.retry.snapshot()
}

// Done returns a channel that is closed when the future resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the future resolves and returns the final
// Response, or a non-nil error if the transfer was cancelled
// (ErrCancelled) or the engine stopped (ErrStopped).
//
// A transfer that ran its attempts to completion resolves with a
// Response and a nil error even if the final attempt failed at the
// transport level; in that case the Response carries a zero status
// and a non-empty Error description.
func (h *Handle) Result() (*request.Response, error) {
	<-h.done
	return h.resp, h.err
}

// fulfill resolves the future exactly once across the transfer's
// whole lifetime, retry attempts included.
func (h *Handle) fulfill(resp *request.Response, err error) {
	h.fulfillOnce.Do(func() {
		h.resp = resp
		h.err = err
		close(h.done)
	})
}

// setState stores the state with release ordering.
func (h *Handle) setState(s State) {
	h.state.Store(int32(s))
}
