// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transport defines the driver seam between the transfer engine
and the mechanics of actually speaking HTTP.

A Driver groups many concurrent transfers for simultaneous progress.
Each transfer is represented by an opaque Handle created from a
request.Request and a request.Policy. The engine attaches handles to
the driver, polls for progress, and drains Completion notifications;
it never touches sockets itself.

The default driver returned by New is built on net/http. It honors the
per-request policy (attempt timeout, connection timeout, low-speed
abort, inbound and outbound rate caps, buffer size), records per-phase
timings via net/http/httptrace, and supports cooperative pause and
resume of the body transfer. Connections are pooled and reused across
attempts and transfers, and HTTP/2 is negotiated where the server
supports it.

Any other implementation of Driver, for example a test double, may be
plugged into the engine in its place.
*/
package transport
