// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

// A State is the lifecycle state of a transfer, as reported by
// Handle.State.
//
// A transfer starts Pending, becomes Ongoing once the engine attaches
// it to the transport driver, and ends in one of the terminal states.
// Pause, resume, and cancel commands move the handle through the
// corresponding Requested states until the engine acts on them.
//
// Completed, Failed, and CancelRequested-after-cancellation are
// terminal: once the transfer's future has resolved, the state never
// changes again.
type State int32

const (
	// Pending indicates the transfer has been submitted but not yet
	// attached to the transport driver.
	Pending State = iota
	// Ongoing indicates the transfer is attached to the transport
	// driver and making progress, or waiting between retry attempts.
	Ongoing
	// Paused indicates the transfer has been suspended by Pause and
	// its concurrency slot released.
	Paused
	// PauseRequested indicates Pause has been called but the engine
	// has not yet suspended the transfer.
	PauseRequested
	// ResumeRequested indicates Resume has been called but the engine
	// has not yet resumed the transfer.
	ResumeRequested
	// CancelRequested indicates Cancel has been called. The state does
	// not advance further; the future conveys the cancellation.
	CancelRequested
	// Completed indicates the transfer finished with an HTTP response.
	Completed
	// Failed indicates the transfer finished without an HTTP response:
	// the final attempt failed at the transport level, or the engine
	// was stopped while the transfer was queued, in flight, or waiting
	// for a retry.
	Failed
)

var stateNames = []string{
	"Pending",
	"Ongoing",
	"Paused",
	"PauseRequested",
	"ResumeRequested",
	"CancelRequested",
	"Completed",
	"Failed",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[int(s)]
}

// Terminal reports whether the state is one the transfer never leaves.
// CancelRequested is not in itself terminal: it becomes so only once
// the engine acts on the cancellation and resolves the future.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}
