// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"

	"github.com/gogama/httpq/transient"
)

// A Code is the terminal code the transport driver reports when a
// transfer attempt completes. The zero code OK means an HTTP response
// was received, regardless of its status.
type Code int

const (
	// OK indicates an HTTP response was received. The response status
	// may still denote an application-level failure.
	OK Code = iota
	// CouldntResolveHost indicates the host name could not be
	// resolved.
	CouldntResolveHost
	// CouldntConnect indicates the TCP connection could not be
	// established.
	CouldntConnect
	// OperationTimedOut indicates the attempt exceeded its timeout, or
	// its throughput stayed below the policy's low-speed bound for too
	// long.
	OperationTimedOut
	// TLSConnectError indicates the TLS handshake failed.
	TLSConnectError
	// SendError indicates sending the request failed after the
	// connection was established.
	SendError
	// RecvError indicates receiving the response failed partway
	// through, for example because the connection was reset.
	RecvError
	// GotNothing indicates the connection was closed before any part
	// of an HTTP response was received.
	GotNothing
	// Cancelled indicates the attempt was aborted by its owner before
	// it completed.
	Cancelled
	// Failure indicates any other error.
	Failure
)

var codeNames = []string{
	"OK",
	"CouldntResolveHost",
	"CouldntConnect",
	"OperationTimedOut",
	"TLSConnectError",
	"SendError",
	"RecvError",
	"GotNothing",
	"Cancelled",
	"Failure",
}

// String returns the name of the code.
func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return "Unknown"
	}
	return codeNames[int(c)]
}

// Transient reports whether the code denotes a transient network
// failure, i.e. one with some prospect of success on retry. The
// transient codes are CouldntResolveHost, CouldntConnect,
// OperationTimedOut, TLSConnectError, SendError, RecvError, and
// GotNothing.
func (c Code) Transient() bool {
	switch c {
	case CouldntResolveHost, CouldntConnect, OperationTimedOut,
		TLSConnectError, SendError, RecvError, GotNothing:
		return true
	default:
		return false
	}
}

// CodeForError derives the terminal code for a failed attempt from the
// error the underlying HTTP machinery produced. A nil error yields OK.
func CodeForError(err error) Code {
	if err == nil {
		return OK
	}

	switch transient.Categorize(err) {
	case transient.Timeout:
		return OperationTimedOut
	case transient.Resolution:
		return CouldntResolveHost
	case transient.ConnRefused:
		return CouldntConnect
	case transient.ConnReset:
		return RecvError
	case transient.Handshake:
		return TLSConnectError
	case transient.NoResponse:
		return GotNothing
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled
	}

	return Failure
}
