// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request provides the plain data types exchanged with the
transfer engine: the logical Request to be transferred, the per-attempt
Policy bounding it, and the Response the engine delivers when the
transfer is over.

Construct a Request directly, or with the New constructor which
validates the method token and the URL:

	req, err := request.New("GET", "https://www.example.com", nil)
	...
	req, err := request.New("POST", "https://www.example.com/upload", &buf)
	req.AddHeader("Content-Type", "application/json")

A Request carries no connection state and no context. Lifecycle control
over an in-flight transfer (cancel, pause, resume) is exercised through
the transfer handle returned when the request is submitted to the
engine.

A Policy bounds one request attempt: its total duration, connection
establishment, minimum acceptable throughput, and inbound and outbound
rate caps. The end-to-end budget across all attempts of a retried
transfer belongs to the retry policy, not to Policy.
*/
package request
