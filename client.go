// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"container/heap"
	"container/list"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gogama/httpq/jitter"
	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
	"github.com/gogama/httpq/transport"
	"github.com/google/uuid"
)

var (
	// ErrCancelled is the failure a transfer's future resolves with
	// when the transfer was cancelled before natural completion.
	ErrCancelled = errors.New("httpq: transfer cancelled")

	// ErrStopped is the failure a transfer's future resolves with
	// when the engine was stopped while the transfer was pending or
	// in flight. It is also returned by Submit after Stop.
	ErrStopped = errors.New("httpq: engine stopped")
)

var emptyHandlers = HandlerGroup{}

// A Client is an asynchronous HTTP transfer engine. It multiplexes
// many concurrent transfers over a bounded connection pool, drives
// retries under pluggable retry policies, and tracks throughput over
// sliding windows.
//
// A Client owns one worker goroutine which is the sole mutator of the
// engine's in-flight state. User goroutines interact with it only
// through thread-safe primitives: the handle's atomic state word, the
// mutex-guarded event mailbox, the concurrency semaphore, and the
// transport driver's cross-goroutine wakeup.
//
// Create a Client with New or NewWithDriver, and reuse it: its
// transport driver caches connections. A Client is safe for
// concurrent use by multiple goroutines. Stop it explicitly when it
// is no longer needed; the package-level default client is the only
// one torn down implicitly, at process exit.
type Client struct {
	settings Settings
	driver   transport.Driver
	handlers *HandlerGroup
	logger   *slog.Logger
	sema     *semaphore

	// mailbox
	mu          sync.Mutex
	submissions []*transferTask
	events      []uuid.UUID
	stop        bool

	stopOnce   sync.Once
	workerDone chan struct{}

	// worker-owned; no locks.
	inflight *list.List
	lookup   map[uuid.UUID]*list.Element
	pending  retryHeap

	// speed trackers: written by the worker, read from any goroutine.
	speedMu  sync.RWMutex
	uplink   *slidingWindow
	downlink *slidingWindow
}

// New creates a Client with the given settings and the default
// net/http transport driver.
func New(settings Settings) *Client {
	settings = settings.withDefaults()
	driver := transport.New(transport.Options{
		MaxConnections:      settings.MaxConnections,
		MaxHostConnections:  settings.MaxHostConnections,
		MaxTotalConnections: settings.MaxTotalConnections,
		BufferSize:          settings.BufferSize,
	})
	return NewWithDriver(settings, driver)
}

// NewWithDriver creates a Client over a custom transport driver. Use
// it to substitute a test double, or a driver with bespoke transport
// behavior, for the default one.
func NewWithDriver(settings Settings, driver transport.Driver) *Client {
	if driver == nil {
		panic("httpq: nil driver")
	}
	settings = settings.withDefaults()
	handlers := settings.Handlers
	if handlers == nil {
		handlers = &emptyHandlers
	}
	c := &Client{
		settings:   settings,
		driver:     driver,
		handlers:   handlers,
		logger:     settings.Logger,
		sema:       newSemaphore(settings.MaxConnections, settings.MaxConnections),
		workerDone: make(chan struct{}),
		inflight:   list.New(),
		lookup:     make(map[uuid.UUID]*list.Element),
		uplink:     newSlidingWindow(settings.SpeedTrackWindow),
		downlink:   newSlidingWindow(settings.SpeedTrackWindow),
	}
	go c.workerLoop()
	return c
}

// Submit enqueues a transfer and returns its handle without waiting
// for completion. Submit blocks while the engine is at its
// concurrency bound, until a slot frees up.
//
// Parameter policy bounds each individual attempt; nil applies no
// bounds beyond the transport driver's defaults. Parameter
// retryPolicy makes the transfer retry-capable; nil means failed
// attempts are not retried.
//
// After Stop, Submit fails with ErrStopped.
func (c *Client) Submit(req *request.Request, policy *request.Policy, retryPolicy *retry.Policy) (*Handle, error) {
	if req == nil {
		panic("httpq: nil request")
	}
	if c.isStopped() {
		return nil, ErrStopped
	}

	c.handlers.run(BeforeSubmit, &Exchange{Request: req, Policy: policy})

	h := c.driver.NewHandle(req, policy)
	handle := &Handle{
		client: c,
		key:    h.Key(),
		done:   make(chan struct{}),
	}
	task := &transferTask{
		h:      h,
		req:    req,
		handle: handle,
	}
	if policy != nil {
		task.policy = *policy
	}
	if retryPolicy != nil {
		task.retry = &retryState{
			policy: *retryPolicy,
			ctx:    retry.Context{FirstAttemptAt: time.Now()},
		}
		handle.retry = task.retry
	}

	c.sema.acquire()

	// A short jittered sleep desynchronizes submission bursts so the
	// pool does not dogpile the same origin in lockstep.
	if d := jitter.Default.Duration(time.Millisecond); d != 0 {
		if d < 0 {
			d = -d
		}
		time.Sleep(d)
	}

	// The total retry budget runs from here, not from before the wait
	// on the semaphore.
	if task.retry != nil {
		task.retry.ctx.FirstAttemptAt = time.Now()
	}

	c.mu.Lock()
	if c.stop {
		c.mu.Unlock()
		c.sema.release()
		return nil, ErrStopped
	}
	c.submissions = append(c.submissions, task)
	c.mu.Unlock()
	c.driver.Wakeup()

	return handle, nil
}

// Request submits a transfer and blocks until it resolves. It is
// equivalent to Submit followed by Handle.Result.
func (c *Client) Request(req *request.Request, policy *request.Policy, retryPolicy *retry.Policy) (*request.Response, error) {
	handle, err := c.Submit(req, policy, retryPolicy)
	if err != nil {
		return nil, err
	}
	return handle.Result()
}

// Stop shuts the engine down: pending and in-flight transfers fail
// with ErrStopped, the worker goroutine is joined, and the transport
// driver's idle connections are closed. Stop is idempotent and safe
// to call from any goroutine except an event handler's.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stop = true
		c.mu.Unlock()
		c.driver.Wakeup()
		<-c.workerDone
		c.driver.CloseIdleConnections()
	})
}

// UplinkSpeed returns the mean outbound throughput over the recent
// attempt window, in bytes per second.
func (c *Client) UplinkSpeed() float64 {
	c.speedMu.RLock()
	defer c.speedMu.RUnlock()
	return c.uplink.mean()
}

// DownlinkSpeed returns the mean inbound throughput over the recent
// attempt window, in bytes per second.
func (c *Client) DownlinkSpeed() float64 {
	c.speedMu.RLock()
	defer c.speedMu.RUnlock()
	return c.downlink.mean()
}

// PeakUplinkSpeed returns the highest outbound throughput observed in
// the recent attempt window, in bytes per second.
func (c *Client) PeakUplinkSpeed() float64 {
	c.speedMu.RLock()
	defer c.speedMu.RUnlock()
	return c.uplink.max()
}

// PeakDownlinkSpeed returns the highest inbound throughput observed
// in the recent attempt window, in bytes per second.
func (c *Client) PeakDownlinkSpeed() float64 {
	c.speedMu.RLock()
	defer c.speedMu.RUnlock()
	return c.downlink.max()
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

// postEvent records a requested state transition for the worker and
// wakes it. Pushing the key under the mailbox lock before the wakeup
// orders the handle's state write before the worker's read.
func (c *Client) postEvent(key uuid.UUID) {
	c.mu.Lock()
	c.events = append(c.events, key)
	c.mu.Unlock()
	c.driver.Wakeup()
}

// workerLoop is the engine's scheduler. It is the sole mutator of the
// in-flight list, the lookup map, the pending-retry heap, and the
// driver's attachment state. Poll is its only suspension point.
func (c *Client) workerLoop() {
	for {
		// Drain driver progress until no immediate work remains.
		c.driver.Perform()

		// Harvest completed attempts.
		for _, done := range c.driver.ReadCompleted() {
			c.handleCompletion(done)
		}

		// Compute the poll timeout: the configured ceiling, lowered
		// by the driver's own pending timeout and by the due time of
		// the earliest pending retry.
		pollTimeout := c.settings.PollTimeout
		if d, ok := c.driver.PendingTimeout(); ok && d < pollTimeout {
			pollTimeout = d
		}
		pollTimeout = c.promoteRetries(pollTimeout)

		c.driver.Poll(pollTimeout)

		if c.isStopped() {
			c.failAll()
			close(c.workerDone)
			return
		}

		c.processEvents()
		c.admitSubmissions()
	}
}

// handleCompletion processes one (handle, code) notification from the
// driver: detach, recycle the permit, record speeds, then finalize or
// run the retry state machine.
func (c *Client) handleCompletion(done transport.Completion) {
	elem, ok := c.lookup[done.Key]
	if !ok {
		// A completion for an unknown handle means the task was
		// already erased, for example by a cancel that raced the
		// natural completion. Skip it.
		c.logger.Debug("completion for unknown handle", "key", done.Key, "code", done.Code.String())
		return
	}
	task := elem.Value.(*transferTask)

	c.driver.Remove(task.h)
	c.sema.release()

	c.speedMu.Lock()
	c.uplink.push(task.h.UploadSpeed())
	c.downlink.push(task.h.DownloadSpeed())
	c.speedMu.Unlock()

	resp := task.h.DetachResponse()

	attempts := 1
	if task.retry != nil {
		task.retry.append(retry.Attempt{
			Response:   resp,
			Code:       done.Code,
			CompleteAt: time.Now(),
		})
		attempts = task.retry.ctx.AttemptCount()
	}
	c.handlers.run(AfterAttempt, &Exchange{
		Request:  task.req,
		Policy:   &task.policy,
		Response: resp,
		Code:     done.Code,
		Attempt:  attempts,
	})

	if task.retry != nil && c.scheduleRetry(elem, task) {
		return
	}

	c.finalize(elem, task, resp, done.Code)
}

// scheduleRetry moves an eligible task from the in-flight list into
// the pending-retry heap and reports whether it did so.
func (c *Client) scheduleRetry(elem *list.Element, task *transferTask) bool {
	rs := task.retry
	now := time.Now()
	if !rs.policy.Eligible(&rs.ctx, now) {
		return false
	}

	task.retryAt = rs.policy.NextAt(&rs.ctx)
	delete(c.lookup, task.h.Key())
	c.inflight.Remove(elem)
	heap.Push(&c.pending, task)

	c.handlers.run(AfterRetryScheduled, &Exchange{
		Request: task.req,
		Policy:  &task.policy,
		Attempt: rs.ctx.AttemptCount(),
		RetryAt: task.retryAt,
	})
	return true
}

// finalize fulfills the task's promise with the detached response and
// erases the task.
func (c *Client) finalize(elem *list.Element, task *transferTask, resp *request.Response, code transport.Code) {
	if code == transport.OK {
		task.handle.setState(Completed)
	} else {
		task.handle.setState(Failed)
	}
	task.handle.fulfill(resp, nil)

	delete(c.lookup, task.h.Key())
	c.inflight.Remove(elem)

	attempts := 1
	if task.retry != nil {
		attempts = task.retry.ctx.AttemptCount()
	}
	c.handlers.run(AfterCompletion, &Exchange{
		Request:  task.req,
		Policy:   &task.policy,
		Response: resp,
		Code:     code,
		Attempt:  attempts,
	})
}

// promoteRetries moves due retries back onto the submission queue,
// one per available permit, and returns the poll timeout lowered to
// the due time of the earliest retry still pending.
func (c *Client) promoteRetries(pollTimeout time.Duration) time.Duration {
	now := time.Now()
	promoted := 0
	for len(c.pending) > 0 {
		top := c.pending[0]
		if top.retryAt.After(now) {
			if d := top.retryAt.Sub(now); d < pollTimeout {
				pollTimeout = d
			}
			break
		}
		if top.handle.State() == CancelRequested {
			task := heap.Pop(&c.pending).(*transferTask)
			task.handle.fulfill(nil, ErrCancelled)
			c.handlers.run(AfterCompletion, &Exchange{Request: task.req, Policy: &task.policy, Attempt: task.retry.ctx.AttemptCount()})
			continue
		}
		if !c.sema.tryAcquire() {
			break
		}
		task := heap.Pop(&c.pending).(*transferTask)
		task.h.Reset()
		if tp := c.settings.TimeoutPolicy; tp != nil {
			if d := tp.Timeout(&task.retry.ctx); d > 0 {
				task.h.SetAttemptTimeout(d)
			}
		}
		c.mu.Lock()
		c.submissions = append(c.submissions, task)
		c.mu.Unlock()
		promoted++
	}
	if promoted > 0 {
		// Admit the promoted tasks this iteration instead of sleeping
		// a full poll quantum on them.
		return 0
	}
	return pollTimeout
}

// processEvents acts on the lifecycle transitions requested since the
// last pass. Only keys that resolve to in-flight tasks are
// actionable; the promotion and admission paths self-heal requests
// that arrive while a task is between attempts.
func (c *Client) processEvents() {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	for i, key := range events {
		elem, ok := c.lookup[key]
		if !ok {
			continue
		}
		task := elem.Value.(*transferTask)

		switch task.handle.State() {
		case CancelRequested:
			c.cancelTask(elem, task)
		case PauseRequested:
			// Pausing frees a concurrency slot for other transfers.
			task.h.Pause()
			c.sema.release()
			task.handle.state.CompareAndSwap(int32(PauseRequested), int32(Paused))
		case ResumeRequested:
			// Resuming must win a slot back. If none is available,
			// requeue the event rather than blocking the worker.
			if !c.sema.tryAcquire() {
				c.mu.Lock()
				c.events = append(append([]uuid.UUID{}, events[i:]...), c.events...)
				c.mu.Unlock()
				return
			}
			task.h.Unpause()
			task.handle.state.CompareAndSwap(int32(ResumeRequested), int32(Ongoing))
		}
	}
}

func (c *Client) cancelTask(elem *list.Element, task *transferTask) {
	c.driver.Remove(task.h)
	c.sema.release()
	task.handle.fulfill(nil, ErrCancelled)
	delete(c.lookup, task.h.Key())
	c.inflight.Remove(elem)

	attempts := 0
	if task.retry != nil {
		attempts = task.retry.ctx.AttemptCount()
	}
	c.handlers.run(AfterCompletion, &Exchange{Request: task.req, Policy: &task.policy, Attempt: attempts})
}

// admitSubmissions drains the submission queue and attaches each task
// to the driver. The submitter has already consumed a permit.
func (c *Client) admitSubmissions() {
	c.mu.Lock()
	submissions := c.submissions
	c.submissions = nil
	c.mu.Unlock()

	for _, task := range submissions {
		if task.handle.State() == CancelRequested {
			// Cancelled before attachment; never hits the wire.
			c.sema.release()
			task.handle.fulfill(nil, ErrCancelled)
			attempts := 0
			if task.retry != nil {
				attempts = task.retry.ctx.AttemptCount()
			}
			c.handlers.run(AfterCompletion, &Exchange{Request: task.req, Policy: &task.policy, Attempt: attempts})
			continue
		}

		elem := c.inflight.PushBack(task)
		c.lookup[task.h.Key()] = elem
		c.driver.Add(task.h)
		task.handle.state.CompareAndSwap(int32(Pending), int32(Ongoing))

		// A pause or resume requested while the task sat between
		// attempts had no in-flight entry to land on; replay it.
		switch task.handle.State() {
		case PauseRequested, ResumeRequested:
			c.mu.Lock()
			c.events = append(c.events, task.h.Key())
			c.mu.Unlock()
		}
	}
}

// failAll fails every pending and in-flight transfer with ErrStopped.
// It runs once, as the worker's last act.
func (c *Client) failAll() {
	c.mu.Lock()
	submissions := c.submissions
	c.submissions = nil
	c.events = nil
	c.mu.Unlock()

	completed := func(task *transferTask) {
		attempts := 0
		if task.retry != nil {
			attempts = task.retry.ctx.AttemptCount()
		}
		c.handlers.run(AfterCompletion, &Exchange{Request: task.req, Policy: &task.policy, Attempt: attempts})
	}

	for _, task := range submissions {
		c.sema.release()
		task.handle.setState(Failed)
		task.handle.fulfill(nil, ErrStopped)
		completed(task)
	}
	for elem := c.inflight.Front(); elem != nil; elem = elem.Next() {
		task := elem.Value.(*transferTask)
		c.driver.Remove(task.h)
		task.handle.setState(Failed)
		task.handle.fulfill(nil, ErrStopped)
		completed(task)
	}
	c.inflight.Init()
	for _, task := range c.pending {
		task.handle.setState(Failed)
		task.handle.fulfill(nil, ErrStopped)
		completed(task)
	}
	c.pending = nil
	c.lookup = make(map[uuid.UUID]*list.Element)
}
