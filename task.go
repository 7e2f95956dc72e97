// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"sync"
	"time"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
	"github.com/gogama/httpq/transport"
)

// retryState is the retry bookkeeping shared between a task and its
// handle. The engine's worker appends attempts under the lock so the
// handle's read-only accessors are race-free.
type retryState struct {
	mu     sync.Mutex
	ctx    retry.Context
	policy retry.Policy
}

func (rs *retryState) append(a retry.Attempt) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.ctx.Attempts = append(rs.ctx.Attempts, a)
}

func (rs *retryState) snapshot() *retry.Context {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.ctx.Clone()
}

func (rs *retryState) attemptCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.ctx.AttemptCount()
}

// A transferTask is the engine-owned side of one transfer. It holds
// the driver handle, the request and its policies, the write side of
// the handle's future, and the retry bookkeeping, if any.
//
// A task lives in at most one of the submission queue, the in-flight
// list, and the pending-retry heap at any time.
type transferTask struct {
	h      transport.Handle
	req    *request.Request
	policy request.Policy
	handle *Handle
	retry  *retryState

	// retryAt orders the task in the pending-retry heap.
	retryAt time.Time
}

// retryHeap is a min-heap of tasks awaiting re-submission, keyed by
// absolute retry time. It implements container/heap.Interface.
type retryHeap []*transferTask

func (h retryHeap) Len() int { return len(h) }

func (h retryHeap) Less(i, j int) bool { return h[i].retryAt.Before(h[j].retryAt) }

func (h retryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *retryHeap) Push(x interface{}) {
	*h = append(*h, x.(*transferTask))
}

func (h *retryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return task
}
