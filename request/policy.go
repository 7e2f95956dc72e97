// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import "time"

// A Policy bounds a single request attempt and shapes its use of the
// connection. The zero value is a valid policy that applies no bounds
// beyond the transport driver's defaults.
//
// A Policy bounds one attempt only. The end-to-end budget of a
// multi-attempt execution is bounded by the retry policy's total
// timeout, not by Policy.
type Policy struct {
	// Timeout bounds one whole request attempt, from submission of
	// the driver handle until the attempt's completion. Zero means no
	// attempt timeout.
	Timeout time.Duration

	// ConnTimeout bounds connection establishment (name resolution
	// plus TCP and TLS handshakes). Zero means the transport driver's
	// default.
	ConnTimeout time.Duration

	// LowSpeedLimit is a lower bound on transfer throughput in bytes
	// per second. When the observed throughput stays below
	// LowSpeedLimit for LowSpeedTime, the attempt is aborted with an
	// operation-timeout error. Both fields must be set for the bound
	// to take effect.
	LowSpeedLimit int64

	// LowSpeedTime is the duration the throughput must stay below
	// LowSpeedLimit before the attempt is aborted.
	LowSpeedTime time.Duration

	// SendSpeedLimit caps outbound throughput in bytes per second.
	// Zero means no cap.
	SendSpeedLimit int64

	// RecvSpeedLimit caps inbound throughput in bytes per second.
	// Zero means no cap.
	RecvSpeedLimit int64

	// BufferSize is the transfer driver's I/O buffer size in bytes.
	// Zero means the driver default. Values are clamped to the
	// driver's supported range.
	BufferSize int
}
