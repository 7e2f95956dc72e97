// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"sync"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
)

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide default Client, creating it with
// default Settings on first use.
//
// The default client is never stopped implicitly before process exit.
// Code that needs a configured engine, or control over its lifetime,
// should construct its own with New.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = New(Settings{})
	})
	return defaultClient
}

// Submit enqueues a transfer on the default Client. See Client.Submit.
func Submit(req *request.Request, policy *request.Policy, retryPolicy *retry.Policy) (*Handle, error) {
	return Default().Submit(req, policy, retryPolicy)
}

// Request submits a transfer on the default Client and blocks until
// it resolves. See Client.Request.
func Request(req *request.Request, policy *request.Policy, retryPolicy *retry.Policy) (*request.Response, error) {
	return Default().Request(req, policy, retryPolicy)
}

// Stop shuts down the default Client, creating it first if Default
// has not been called yet. A later call to Default returns the stopped
// client; the default engine is not restartable.
func Stop() {
	defaultOnce.Do(func() {
		defaultClient = New(Settings{})
	})
	defaultClient.Stop()
}

// UplinkSpeed returns the default Client's mean outbound throughput
// in bytes per second.
func UplinkSpeed() float64 {
	return Default().UplinkSpeed()
}

// DownlinkSpeed returns the default Client's mean inbound throughput
// in bytes per second.
func DownlinkSpeed() float64 {
	return Default().DownlinkSpeed()
}

// PeakUplinkSpeed returns the default Client's peak outbound
// throughput in bytes per second.
func PeakUplinkSpeed() float64 {
	return Default().PeakUplinkSpeed()
}

// PeakDownlinkSpeed returns the default Client's peak inbound
// throughput in bytes per second.
func PeakDownlinkSpeed() float64 {
	return Default().PeakDownlinkSpeed()
}
