// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool bounds the number of test cases executing concurrently.
//
// The runner submits every case through Go and then Wait-s for the batch: the
// pool admits at most the configured limit at a time, runs inline when
// parallelism is disabled, and places no bound when it is unlimited.
package workerspool

import (
	"sync"
)

// Pool is a bounded launcher of goroutines.
//
// A limit of 0 disables parallelism: Go runs the task inline and returns when
// it is finished. A negative limit is unlimited.
type Pool struct {
	limit int

	mu      sync.Mutex
	cond    sync.Cond // Signaled whenever numRunning decreases.
	running int
	wg      sync.WaitGroup
}

// New returns a Pool admitting at most limit concurrent tasks.
func New(limit int) *Pool {
	p := &Pool{limit: limit}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// Limit returns the configured concurrency limit.
func (p *Pool) Limit() int { return p.limit }

// Go runs task, blocking until the pool has room for it. With a zero limit the
// task runs inline on the caller's goroutine.
func (p *Pool) Go(task func()) {
	if p.limit == 0 {
		task()
		return
	}
	if p.limit < 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			task()
		}()
		return
	}

	p.mu.Lock()
	for p.running >= p.limit {
		p.cond.Wait()
	}
	p.running++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer func() {
			p.mu.Lock()
			p.running--
			p.cond.Signal()
			p.mu.Unlock()
			p.wg.Done()
		}()
		task()
	}()
}

// Wait blocks until every task submitted so far has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
