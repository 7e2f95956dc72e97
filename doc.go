// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpq provides a client-side HTTP transfer engine: a
high-level request/response API over a shared, multiplexed connection
pool, with asynchronous handles exposing cancel, pause, and resume.

Create a Client, or use the package-level default engine, to begin
submitting transfers:

	client := httpq.New(httpq.Settings{})
	defer client.Stop()

	req, err := request.New("GET", "https://www.example.com", nil)
	...
	handle, err := client.Submit(req, nil, nil)
	...
	resp, err := handle.Result()

A submitted transfer is scheduled by the engine's worker alongside
every other in-flight transfer, bounded by the MaxConnections
concurrency budget. The returned Handle controls the transfer's
lifecycle from any goroutine:

	handle.Pause()
	...
	handle.Resume()
	...
	handle.Cancel()

For blocking, one-shot use, Request combines Submit with waiting on
the handle:

	resp, err := client.Request(req, nil, nil)

Per-attempt bounds (timeout, connection timeout, low-speed abort, rate
caps, buffer size) are set with a request.Policy. To retry failed
attempts, pass a retry.Policy; the engine re-runs the transfer on the
policy's schedule, within its MaxRetries and TotalTimeout budget,
without ever resolving the handle's future more than once:

	policy := retry.Default()
	resp, err := client.Request(req, nil, &policy)
	...
	resp, err := client.Request(req,
		&request.Policy{Timeout: 2 * time.Second},
		&retry.Policy{
			MaxRetries:  5,
			ShouldRetry: retry.TransientErr.Or(retry.StatusCode(503)),
			NextRetryAt: retry.FixedDelay(500 * time.Millisecond),
		})

The engine aggregates observed throughput over sliding windows,
exposed via UplinkSpeed, DownlinkSpeed, PeakUplinkSpeed, and
PeakDownlinkSpeed.

To hook into the fine-grained details of transfer execution, install
a handler into the appropriate handler chain:

	handlers := &httpq.HandlerGroup{}
	handlers.PushBack(httpq.AfterAttempt, httpq.HandlerFunc(
		func(_ httpq.Event, x *httpq.Exchange) {
			log.Printf("attempt %d to %s: %d", x.Attempt, x.Request.URL, x.Response.Status)
		}))
	client := httpq.New(httpq.Settings{Handlers: handlers})

Package httpq provides basic interfaces for the engine's methods
(Submitter, Requester, and the combined Engine), and utility functions
for working with a Requester (Get, Head, Post, and PostForm).
*/
package httpq
