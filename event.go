// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"time"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/transport"
)

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a Client's Settings to extend it
// with custom functionality.
type Event int

const (
	// BeforeSubmit identifies the event that occurs on the submitting
	// goroutine before the transfer enters the engine, and before the
	// submitter blocks on the concurrency semaphore.
	//
	// When the engine fires BeforeSubmit, the Exchange carries the
	// request and its policy; the response fields are unset. Handlers
	// may make reasonable changes to the request, for example adding
	// a signing header, as it has not yet been handed to the
	// transport driver.
	BeforeSubmit Event = iota
	// AfterAttempt identifies the event that occurs on the engine's
	// worker goroutine after each attempt completes, before the retry
	// policy is consulted.
	//
	// When the engine fires AfterAttempt, the Exchange carries the
	// attempt's response snapshot, which handlers must treat as
	// read-only, and the transport driver's terminal code.
	AfterAttempt
	// AfterRetryScheduled identifies the event that occurs on the
	// worker goroutine after a failed attempt has been queued for
	// retry.
	//
	// When the engine fires AfterRetryScheduled, the Exchange's
	// RetryAt field holds the absolute time of the next attempt.
	AfterRetryScheduled
	// AfterCompletion identifies the event that occurs on the worker
	// goroutine when the transfer resolves, whether with a response
	// or by cancellation or engine stop.
	AfterCompletion
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of event types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"BeforeSubmit",
	"AfterAttempt",
	"AfterRetryScheduled",
	"AfterCompletion",
}

// Events returns a slice containing all events which can occur during
// a transfer, in the order in which they would first occur.
func Events() []Event {
	return []Event{
		BeforeSubmit,
		AfterAttempt,
		AfterRetryScheduled,
		AfterCompletion,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}

// An Exchange is the handler-visible state of one transfer at the
// moment an event fires. Which fields are set depends on the event;
// see the documentation of each Event constant.
type Exchange struct {
	// Request is the logical request being transferred.
	Request *request.Request

	// Policy is the per-attempt policy the transfer was submitted
	// with.
	Policy *request.Policy

	// Response is the most recent attempt's response snapshot. It is
	// nil for BeforeSubmit, and nil for an AfterCompletion fired by
	// cancellation or engine stop.
	Response *request.Response

	// Code is the transport driver's terminal code for the most
	// recent attempt.
	Code transport.Code

	// Attempt is the number of attempts finished so far.
	Attempt int

	// RetryAt is the absolute time of the next attempt. It is set
	// only for AfterRetryScheduled.
	RetryAt time.Time
}
