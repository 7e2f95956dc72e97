// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"

	"github.com/gogama/httpq/request"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBufferSize is the I/O buffer size used to read response
	// bodies when the request policy does not specify one.
	DefaultBufferSize = 16 * 1024

	minBufferSize = 1 * 1024
	maxBufferSize = 512 * 1024
)

// Options configures the default net/http-backed driver.
//
// The zero value is a valid configuration using the defaults noted on
// each field.
type Options struct {
	// MaxConnections is the engine's concurrency bound, recorded in
	// the options. New does not apply it to the net/http transport;
	// the pool is sized by MaxHostConnections and MaxTotalConnections
	// only. The default is 8.
	MaxConnections int

	// MaxHostConnections caps concurrent connections per origin. The
	// default is 2.
	MaxHostConnections int

	// MaxTotalConnections bounds the idle connection pool across all
	// origins. net/http has no cap on total active connections, so the
	// pool-wide advisory is applied to the idle pool. The default is 4.
	MaxTotalConnections int

	// BufferSize is the default response body read buffer size, used
	// when a request policy does not specify one. The default is
	// DefaultBufferSize.
	BufferSize int

	// TLSConfig optionally overrides the TLS client configuration.
	TLSConfig *tls.Config
}

func (o Options) withDefaults() Options {
	if o.MaxConnections < 1 {
		o.MaxConnections = 8
	}
	if o.MaxHostConnections < 1 {
		o.MaxHostConnections = 2
	}
	if o.MaxTotalConnections < 1 {
		o.MaxTotalConnections = 4
	}
	if o.BufferSize < 1 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// An HTTPDriver is the default Driver implementation, built on
// net/http. Create one with New.
//
// Each attached handle runs its attempt on a dedicated goroutine, so
// Perform is a progress report rather than a pump: completions arrive
// asynchronously and are drained with ReadCompleted after Poll.
type HTTPDriver struct {
	opts      Options
	transport *http.Transport
	client    *http.Client

	mu        sync.Mutex
	completed []Completion
	running   int

	wake chan struct{}
}

// New creates a driver backed by net/http. Redirects are followed,
// TCP keep-alive is on, connections are pooled and reused, and HTTP/2
// is negotiated where the server supports it.
func New(opts Options) *HTTPDriver {
	opts = opts.withDefaults()
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     opts.TLSConfig,
		MaxConnsPerHost:     opts.MaxHostConnections,
		MaxIdleConns:        opts.MaxTotalConnections,
		MaxIdleConnsPerHost: opts.MaxHostConnections,
		IdleConnTimeout:     90 * time.Second,
	}
	if err := http2.ConfigureTransport(t); err != nil {
		panic("httpq/transport: " + err.Error())
	}
	return &HTTPDriver{
		opts:      opts,
		transport: t,
		client:    &http.Client{Transport: t},
		wake:      make(chan struct{}, 1),
	}
}

// NewHandle creates an inert handle for one logical transfer.
func (d *HTTPDriver) NewHandle(req *request.Request, policy *request.Policy) Handle {
	if req == nil {
		panic("httpq/transport: nil request")
	}
	h := &netHandle{
		key: uuid.New(),
		drv: d,
		req: req,
	}
	if policy != nil {
		h.policy = *policy
	}
	h.attemptTimeout = h.policy.Timeout
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Add attaches the handle and starts an attempt on a dedicated
// goroutine.
func (d *HTTPDriver) Add(h Handle) {
	hh := h.(*netHandle)

	hh.mu.Lock()
	hh.detached = false
	hh.abortCode = OK
	hh.bytesRead = 0
	hh.resp = &request.Response{Info: request.TransferInfo{StartAt: time.Now()}}
	hh.trace = traceState{start: hh.resp.Info.StartAt}
	ctx := context.Background()
	if hh.attemptTimeout > 0 {
		ctx, hh.cancel = context.WithTimeout(ctx, hh.attemptTimeout)
	} else {
		ctx, hh.cancel = context.WithCancel(ctx)
	}
	hh.mu.Unlock()

	d.mu.Lock()
	d.running++
	d.mu.Unlock()

	go hh.run(ctx)
}

// Remove detaches the handle, aborting its attempt if one is still in
// flight. No Completion is reported for an aborted attempt.
func (d *HTTPDriver) Remove(h Handle) {
	h.(*netHandle).detach()
}

// Perform reports how many attached handles are still running. The
// goroutine-per-handle design needs no pumping, so there is never
// immediate work left over.
func (d *HTTPDriver) Perform() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Poll blocks until a handle completes, the timeout elapses, or
// Wakeup is called.
func (d *HTTPDriver) Poll(timeout time.Duration) {
	if timeout <= 0 {
		select {
		case <-d.wake:
		default:
		}
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.wake:
	case <-timer.C:
	}
}

// Wakeup unblocks a concurrent or future Poll. Safe from any
// goroutine.
func (d *HTTPDriver) Wakeup() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// ReadCompleted drains the pending completion notifications.
func (d *HTTPDriver) ReadCompleted() []Completion {
	d.mu.Lock()
	defer d.mu.Unlock()
	done := d.completed
	d.completed = nil
	return done
}

// PendingTimeout reports false: the driver runs no timers that need
// the engine to call back in.
func (d *HTTPDriver) PendingTimeout() (time.Duration, bool) {
	return 0, false
}

// CloseIdleConnections closes connections sitting idle in the pool.
func (d *HTTPDriver) CloseIdleConnections() {
	d.transport.CloseIdleConnections()
}

func (d *HTTPDriver) complete(h *netHandle, code Code) {
	h.mu.Lock()
	detached := h.detached
	h.mu.Unlock()

	d.mu.Lock()
	d.running--
	if !detached {
		d.completed = append(d.completed, Completion{Key: h.key, Code: code})
	}
	d.mu.Unlock()
	d.Wakeup()
}

type traceState struct {
	start          time.Time
	getConnAt      time.Time
	gotConnAt      time.Time
	connectStart   time.Time
	connectDone    time.Time
	tlsStart       time.Time
	tlsDone        time.Time
	headerWriteAt  time.Time
	wroteRequestAt time.Time
	firstByteAt    time.Time
	bodyDoneAt     time.Time
	requests       int
	redirect       time.Duration
}

type netHandle struct {
	key    uuid.UUID
	drv    *HTTPDriver
	req    *request.Request
	policy request.Policy

	mu             sync.Mutex
	cond           *sync.Cond
	paused         bool
	detached       bool
	cancel         context.CancelFunc
	resp           *request.Response
	attemptTimeout time.Duration
	abortCode      Code
	bytesRead      int64
	upSpeed        float64
	downSpeed      float64
	trace          traceState
}

func (h *netHandle) Key() uuid.UUID {
	return h.key
}

// Reset clears the transfer state so the handle can be attached again.
// The key, request, and policy are retained, and pooled connections
// remain reusable.
func (h *netHandle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resp = nil
	h.cancel = nil
	h.paused = false
	h.detached = false
	h.abortCode = OK
	h.bytesRead = 0
	h.upSpeed = 0
	h.downSpeed = 0
	h.attemptTimeout = h.policy.Timeout
	h.trace = traceState{}
}

func (h *netHandle) SetAttemptTimeout(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d <= 0 {
		d = h.policy.Timeout
	}
	h.attemptTimeout = d
}

// Pause suspends the transfer at the next body read.
func (h *netHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
}

// Unpause resumes a paused transfer.
func (h *netHandle) Unpause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
	h.cond.Broadcast()
}

func (h *netHandle) Response() *request.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resp
}

func (h *netHandle) DetachResponse() *request.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	resp := h.resp
	h.resp = nil
	return resp
}

func (h *netHandle) UploadSpeed() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.upSpeed
}

func (h *netHandle) DownloadSpeed() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.downSpeed
}

func (h *netHandle) detach() {
	h.mu.Lock()
	h.detached = true
	cancel := h.cancel
	h.cond.Broadcast()
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// gate blocks while the handle is paused. It returns false if the
// handle was detached while waiting.
func (h *netHandle) gate() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.paused && !h.detached {
		h.cond.Wait()
	}
	return !h.detached
}

func (h *netHandle) abort(code Code) {
	h.mu.Lock()
	if h.abortCode == OK {
		h.abortCode = code
	}
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// failureCode maps an exchange error to a terminal code, preferring
// the code recorded by the watchdog that forced the abort.
func (h *netHandle) failureCode(err error) Code {
	if errors.Is(err, context.Canceled) {
		h.mu.Lock()
		code := h.abortCode
		h.mu.Unlock()
		if code != OK {
			return code
		}
	}
	return CodeForError(err)
}

func (h *netHandle) run(ctx context.Context) {
	h.mu.Lock()
	resp := h.resp
	h.mu.Unlock()
	if resp == nil {
		h.drv.complete(h, Cancelled)
		return
	}

	code := h.exchange(ctx, resp)

	now := time.Now()
	t := &h.trace
	info := &resp.Info
	info.CompletedAt = now
	info.Total = now.Sub(info.StartAt)
	if !t.getConnAt.IsZero() && t.gotConnAt.After(t.getConnAt) {
		info.Queue = t.gotConnAt.Sub(t.getConnAt)
	}
	if !t.connectStart.IsZero() && t.connectDone.After(t.connectStart) {
		info.Connect = t.connectDone.Sub(t.connectStart)
	}
	if !t.tlsStart.IsZero() && t.tlsDone.After(t.tlsStart) {
		info.TLSHandshake = t.tlsDone.Sub(t.tlsStart)
	}
	if !t.gotConnAt.IsZero() && t.headerWriteAt.After(t.gotConnAt) {
		info.PreTransfer = t.headerWriteAt.Sub(t.gotConnAt)
	}
	if !t.headerWriteAt.IsZero() && t.wroteRequestAt.After(t.headerWriteAt) {
		info.RequestSent = t.wroteRequestAt.Sub(t.headerWriteAt)
	}
	if !t.firstByteAt.IsZero() {
		info.StartTransfer = t.firstByteAt.Sub(info.StartAt)
		if t.bodyDoneAt.After(t.firstByteAt) {
			info.Receive = t.bodyDoneAt.Sub(t.firstByteAt)
		}
	}
	info.Redirect = t.redirect

	h.mu.Lock()
	if info.RequestSent > 0 {
		h.upSpeed = float64(len(h.req.Body)) / info.RequestSent.Seconds()
	}
	if info.Receive > 0 {
		h.downSpeed = float64(len(resp.Body)) / info.Receive.Seconds()
	} else if info.Total > 0 {
		h.downSpeed = float64(len(resp.Body)) / info.Total.Seconds()
	}
	h.mu.Unlock()

	h.drv.complete(h, code)
}

func (h *netHandle) exchange(ctx context.Context, resp *request.Response) Code {
	httpReq, err := h.buildRequest(ctx)
	if err != nil {
		resp.Error = err.Error()
		return Failure
	}

	// Connection timeout watchdog. Disarmed as soon as a connection is
	// obtained from the pool or freshly dialed.
	var connTimer *time.Timer
	if h.policy.ConnTimeout > 0 {
		connTimer = time.AfterFunc(h.policy.ConnTimeout, func() {
			h.abort(OperationTimedOut)
		})
	}

	httpReq = httpReq.WithContext(httptrace.WithClientTrace(ctx, h.clientTrace(connTimer)))

	stopWatch := h.startLowSpeedWatch()
	defer stopWatch()

	httpResp, err := h.drv.client.Do(httpReq)
	if connTimer != nil {
		connTimer.Stop()
	}
	if err != nil {
		resp.Error = err.Error()
		return h.failureCode(err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	resp.Status = httpResp.StatusCode
	resp.Headers = headerLines(httpResp.Header)

	return h.readBody(ctx, resp, httpResp)
}

func (h *netHandle) buildRequest(ctx context.Context) (*http.Request, error) {
	method := h.req.Method
	if method == "" {
		method = "GET"
	}

	var body io.Reader
	if method != "GET" && method != "HEAD" && len(h.req.Body) > 0 {
		body = bytes.NewReader(h.req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, h.req.URL, body)
	if err != nil {
		return nil, err
	}

	for _, line := range h.req.Headers {
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		httpReq.Header.Add(strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]))
	}

	if h.policy.SendSpeedLimit > 0 && body != nil {
		limiter := rate.NewLimiter(rate.Limit(h.policy.SendSpeedLimit), burstFor(h.policy.SendSpeedLimit))
		httpReq.Body = io.NopCloser(&limitedReader{r: body, limiter: limiter, ctx: ctx})
		httpReq.ContentLength = int64(len(h.req.Body))
	}

	return httpReq, nil
}

func (h *netHandle) clientTrace(connTimer *time.Timer) *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) {
			now := time.Now()
			h.mu.Lock()
			h.trace.getConnAt = now
			h.trace.requests++
			if h.trace.requests > 1 {
				h.trace.redirect = now.Sub(h.trace.start)
			}
			h.trace.headerWriteAt = time.Time{}
			h.mu.Unlock()
		},
		GotConn: func(httptrace.GotConnInfo) {
			if connTimer != nil {
				connTimer.Stop()
			}
			h.mu.Lock()
			h.trace.gotConnAt = time.Now()
			h.mu.Unlock()
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			h.mu.Lock()
			if h.trace.connectStart.IsZero() {
				h.trace.connectStart = time.Now()
			}
			h.mu.Unlock()
		},
		ConnectStart: func(string, string) {
			h.mu.Lock()
			if h.trace.connectStart.IsZero() {
				h.trace.connectStart = time.Now()
			}
			h.mu.Unlock()
		},
		ConnectDone: func(string, string, error) {
			h.mu.Lock()
			h.trace.connectDone = time.Now()
			h.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			h.mu.Lock()
			if h.trace.tlsStart.IsZero() {
				h.trace.tlsStart = time.Now()
			}
			h.mu.Unlock()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			h.mu.Lock()
			h.trace.tlsDone = time.Now()
			h.mu.Unlock()
		},
		WroteHeaderField: func(string, []string) {
			h.mu.Lock()
			if h.trace.headerWriteAt.IsZero() {
				h.trace.headerWriteAt = time.Now()
			}
			h.mu.Unlock()
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			h.mu.Lock()
			h.trace.wroteRequestAt = time.Now()
			h.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			h.mu.Lock()
			h.trace.firstByteAt = time.Now()
			h.mu.Unlock()
		},
	}
}

func (h *netHandle) readBody(ctx context.Context, resp *request.Response, httpResp *http.Response) Code {
	if httpResp.ContentLength > 0 {
		resp.Body = make([]byte, 0, httpResp.ContentLength)
	}

	var limiter *rate.Limiter
	if h.policy.RecvSpeedLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.policy.RecvSpeedLimit), burstFor(h.policy.RecvSpeedLimit))
	}

	buf := make([]byte, h.bufferSize())
	for {
		if !h.gate() {
			resp.Error = "transfer aborted"
			return Cancelled
		}
		n, err := httpResp.Body.Read(buf)
		if n > 0 {
			if resp.Info.TTFB == 0 {
				resp.Info.TTFB = time.Since(resp.Info.StartAt)
			}
			resp.Body = append(resp.Body, buf[:n]...)
			h.addBytes(n)
			if limiter != nil {
				if werr := limiter.WaitN(ctx, n); werr != nil {
					resp.Error = werr.Error()
					return h.failureCode(werr)
				}
			}
		}
		if err == io.EOF {
			h.mu.Lock()
			h.trace.bodyDoneAt = time.Now()
			h.mu.Unlock()
			return OK
		}
		if err != nil {
			resp.Error = err.Error()
			code := h.failureCode(err)
			if code == GotNothing && len(resp.Body) > 0 {
				// Part of the response arrived before the connection
				// dropped.
				code = RecvError
			}
			return code
		}
	}
}

func (h *netHandle) bufferSize() int {
	size := h.policy.BufferSize
	if size == 0 {
		size = h.drv.opts.BufferSize
	}
	if size < minBufferSize {
		size = minBufferSize
	} else if size > maxBufferSize {
		size = maxBufferSize
	}
	return size
}

// addBytes records body progress for the low-speed watchdog.
func (h *netHandle) addBytes(n int) {
	h.mu.Lock()
	h.bytesRead += int64(n)
	h.mu.Unlock()
}

// startLowSpeedWatch aborts the attempt with OperationTimedOut when
// throughput stays below LowSpeedLimit for LowSpeedTime. The returned
// function stops the watchdog.
func (h *netHandle) startLowSpeedWatch() func() {
	if h.policy.LowSpeedLimit <= 0 || h.policy.LowSpeedTime <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(h.policy.LowSpeedTime)
		defer ticker.Stop()
		var last int64
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.mu.Lock()
				cur := h.bytesRead
				paused := h.paused
				h.mu.Unlock()
				if paused {
					last = cur
					continue
				}
				floor := int64(float64(h.policy.LowSpeedLimit) * h.policy.LowSpeedTime.Seconds())
				if cur-last < floor {
					h.abort(OperationTimedOut)
					return
				}
				last = cur
			}
		}
	}()
	return func() { close(stop) }
}

func burstFor(limit int64) int {
	burst := int(limit)
	if burst < minBufferSize {
		burst = minBufferSize
	}
	if burst > maxBufferSize {
		burst = maxBufferSize
	}
	return burst
}

func headerLines(header http.Header) []string {
	lines := make([]string, 0, len(header))
	for name, values := range header {
		for _, value := range values {
			lines = append(lines, name+": "+value)
		}
	}
	return lines
}

type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if len(p) > lr.limiter.Burst() {
		p = p[:lr.limiter.Burst()]
	}
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.limiter.WaitN(lr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
