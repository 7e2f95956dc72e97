// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"time"

	"github.com/gogama/httpq/request"
	"github.com/google/uuid"
)

// A Completion notifies the transfer engine that a handle has finished
// one attempt.
type Completion struct {
	// Key identifies the handle that completed.
	Key uuid.UUID

	// Code is the terminal code of the attempt. OK means an HTTP
	// response was received.
	Code Code
}

// A Driver groups many transfer handles for simultaneous progress.
//
// A Driver is shared by one transfer engine. All methods except Wakeup
// are called only from the engine's worker goroutine, and from
// submitter goroutines before a handle has been attached (NewHandle).
// Wakeup must be safe to call from any goroutine.
type Driver interface {
	// NewHandle creates a handle for one logical transfer of req under
	// the given per-attempt policy. The handle is inert until attached
	// with Add.
	NewHandle(req *request.Request, policy *request.Policy) Handle

	// Add attaches the handle to the driver and starts a transfer
	// attempt on it.
	Add(h Handle)

	// Remove detaches the handle from the driver, aborting the attempt
	// if one is still in flight. No Completion is reported for an
	// attempt aborted by Remove.
	Remove(h Handle)

	// Perform gives the driver an opportunity to make progress and
	// reports how many attached handles are still running. It may be
	// called repeatedly.
	Perform() int

	// Poll blocks until a handle becomes ready, the timeout elapses,
	// or Wakeup is called, whichever comes first.
	Poll(timeout time.Duration)

	// Wakeup unblocks a concurrent or future Poll. It is safe to call
	// from any goroutine.
	Wakeup()

	// ReadCompleted drains and returns the pending completion
	// notifications. Each completed attempt is reported exactly once.
	ReadCompleted() []Completion

	// PendingTimeout reports the duration after which the driver next
	// needs Perform to be called, if it knows one. A driver with no
	// internal timers reports false.
	PendingTimeout() (time.Duration, bool)

	// CloseIdleConnections closes connections sitting idle in the
	// driver's pool. It does not interrupt connections currently in
	// use.
	CloseIdleConnections()
}

// A Handle represents one logical transfer within a Driver.
//
// A Handle is owned by the engine's worker goroutine once attached.
// Pause, Unpause and Reset must only be called while the handle's
// attempt state is settled from the worker's point of view; the
// driver's accessors (Response, UploadSpeed, DownloadSpeed) are valid
// after the driver has reported a Completion for the handle.
type Handle interface {
	// Key returns the handle's stable identity. The key does not
	// change across Reset.
	Key() uuid.UUID

	// Reset clears the handle's transfer state so it can be attached
	// again for another attempt. Connection reuse is preserved; the
	// handle's key and policy are retained.
	Reset()

	// SetAttemptTimeout overrides the timeout for the handle's next
	// attempt. Zero restores the policy default.
	SetAttemptTimeout(d time.Duration)

	// Pause cooperatively suspends the transfer. The driver stops
	// consuming the response at the next I/O boundary.
	Pause()

	// Unpause resumes a paused transfer.
	Unpause()

	// Response returns the attempt's response. The engine must treat
	// it as read-only until the attempt completes.
	Response() *request.Response

	// DetachResponse transfers ownership of the response to the
	// caller and dissociates it from the handle.
	DetachResponse() *request.Response

	// UploadSpeed returns the attempt's observed outbound throughput
	// in bytes per second.
	UploadSpeed() float64

	// DownloadSpeed returns the attempt's observed inbound throughput
	// in bytes per second.
	DownloadSpeed() float64
}
