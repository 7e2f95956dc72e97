// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"net/url"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
)

// Submitter is the interface that wraps the basic Submit method.
//
// Submit enqueues a transfer and returns a handle exposing lifecycle
// control and a future for the final response. Client implements the
// Submitter interface, and any other Submitter implementation must
// behave substantially the same as Client.Submit.
type Submitter interface {
	Submit(req *request.Request, policy *request.Policy, retryPolicy *retry.Policy) (*Handle, error)
}

// Requester is the interface that wraps the basic Request method.
//
// Request submits a transfer and blocks until it resolves. Client
// implements the Requester interface, and any other Requester
// implementation must behave substantially the same as
// Client.Request.
type Requester interface {
	Request(req *request.Request, policy *request.Policy, retryPolicy *retry.Policy) (*request.Response, error)
}

// Engine is the interface that groups the transfer engine's methods:
// submission, blocking requests, shutdown, and the speed aggregates.
// Client implements Engine.
type Engine interface {
	Submitter
	Requester
	Stop()
	UplinkSpeed() float64
	DownlinkSpeed() float64
	PeakUplinkSpeed() float64
	PeakDownlinkSpeed() float64
}

// Get uses the specified Requester to issue a blocking GET to the
// specified URL with no per-attempt bounds and no retries.
//
// For control over headers, policies, and retries, construct a
// request.Request and call Request directly.
func Get(r Requester, url string) (*request.Response, error) {
	req, err := request.New("GET", url, nil)
	if err != nil {
		return nil, err
	}
	return r.Request(req, nil, nil)
}

// Head uses the specified Requester to issue a blocking HEAD to the
// specified URL with no per-attempt bounds and no retries.
func Head(r Requester, url string) (*request.Response, error) {
	req, err := request.New("HEAD", url, nil)
	if err != nil {
		return nil, err
	}
	return r.Request(req, nil, nil)
}

// Post uses the specified Requester to issue a blocking POST to the
// specified URL with no per-attempt bounds and no retries.
//
// The body parameter may be nil for an empty body, or may be any of
// the types supported by request.New and request.BodyBytes, namely:
// string; []byte; io.Reader; and io.ReadCloser.
func Post(r Requester, url, contentType string, body interface{}) (*request.Response, error) {
	req, err := request.New("POST", url, body)
	if err != nil {
		return nil, err
	}
	req.AddHeader("Content-Type", contentType)
	return r.Request(req, nil, nil)
}

// PostForm uses the specified Requester to issue a blocking POST to
// the specified URL, with data's keys and values URL-encoded as the
// request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
func PostForm(r Requester, url string, data url.Values) (*request.Response, error) {
	return Post(r, url, "application/x-www-form-urlencoded", data.Encode())
}
