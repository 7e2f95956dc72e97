// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import "sync"

// semaphore is a counting semaphore with a hard upper bound. release
// saturates at the bound, which lets lifecycle paths that can race
// (pause releasing a permit versus a cancel releasing it again) stay
// simple without leaking capacity.
//
// Fairness is not guaranteed. x/sync/semaphore is not used because its
// Release panics rather than saturating, and the pause/resume permit
// recycling depends on saturation.
type semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
	max   int
}

func newSemaphore(initial, max int) *semaphore {
	if max < 1 || initial < 0 || initial > max {
		panic("httpq: invalid semaphore bounds")
	}
	s := &semaphore{count: initial, max: max}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// acquire blocks until a permit is available, then consumes it.
func (s *semaphore) acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
}

// tryAcquire consumes a permit if one is available without blocking.
func (s *semaphore) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// release returns a permit, saturating at the bound, and wakes one
// waiter.
func (s *semaphore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count < s.max {
		s.count++
	}
	s.cond.Signal()
}
