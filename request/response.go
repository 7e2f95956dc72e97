// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"strings"
	"time"
)

// A Response contains the final outcome of one request attempt, or of
// a whole transfer once the transfer engine has finished retrying.
//
// A Response is produced by the transport driver and detached from the
// driver handle when the transfer completes. After it has been detached
// it is plain data owned by the caller.
type Response struct {
	// Status is the HTTP response status code, for example 200. It is
	// zero if no HTTP response was received, for example because the
	// connection could not be established.
	Status int

	// Headers contains the response header lines, verbatim, in the
	// form "Name: Value". The HTTP status line is not included.
	Headers []string

	// Body is the fully-buffered response body.
	Body []byte

	// Error describes why the attempt failed. It is empty on success,
	// where success means an HTTP response was received, regardless of
	// status code.
	Error string

	// Info breaks down where the attempt spent its time.
	Info TransferInfo
}

// Header returns the value of the first response header line whose
// name equals name, ignoring case. It returns the empty string if no
// such header line exists.
func (r *Response) Header(name string) string {
	for _, line := range r.Headers {
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line[:i]), name) {
			return strings.TrimSpace(line[i+1:])
		}
	}
	return ""
}

// A TransferInfo breaks a single request attempt down into its
// component phases.
//
// All durations are measured by the transport driver. Phases that did
// not occur, for example TLSHandshake on a plaintext connection or
// Redirect when no redirect was followed, are zero.
type TransferInfo struct {
	// StartAt is the absolute time the attempt was handed to the
	// transport driver.
	StartAt time.Time

	// Queue is the time spent waiting for a connection from the pool.
	Queue time.Duration

	// Connect is the time spent establishing the TCP connection,
	// including name resolution.
	Connect time.Duration

	// TLSHandshake is the time spent in the TLS handshake.
	TLSHandshake time.Duration

	// PreTransfer is the time between the connection becoming usable
	// and the first byte of the request being written.
	PreTransfer time.Duration

	// RequestSent is the time spent writing the request, including
	// the body if any.
	RequestSent time.Duration

	// TTFB is the time from StartAt to the first received body byte.
	TTFB time.Duration

	// StartTransfer is the time from StartAt to the first byte of the
	// response status line.
	StartTransfer time.Duration

	// Receive is the time spent receiving the response body.
	Receive time.Duration

	// Total is the complete duration of the attempt.
	Total time.Duration

	// Redirect is the time spent following redirects before the final
	// request was issued.
	Redirect time.Duration

	// CompletedAt is the absolute time the attempt completed.
	CompletedAt time.Time
}
