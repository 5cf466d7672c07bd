// Copyright (c) 2024 fencehub contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package worker implements the fixed-size worker pool that drains the
// action queue. It holds its own lock (action_lock in spec.md's naming)
// and a condition variable bound to it, exactly mirroring the "lock,
// check queue, wait or pop" loop the source uses — sync.Cond is the
// direct Go analogue of a pthread condition variable here, preferred
// over a channel-based job queue because the spec requires a worker to
// re-check the SAME queue it will pop from under one lock, which
// Cond.Wait guarantees and a plain channel does not without extra
// bookkeeping.
package worker

import (
	"sync"
	"sync/atomic"

	"github.com/fencehub/fencehub/internal/queue"
)

// Pool runs N fixed goroutines, each draining idx values pushed onto an
// intrusive FIFO and invoking handle(idx) for each.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	q        *queue.Queue
	stopping bool
	handle   func(idx int)
	inflight int32
	wg       sync.WaitGroup
}

// New builds a pool sized for `capacity` concurrent actions (spec.md §4.6
// fixes this to MAX_CONNECTIONS, so an action can never be queued without
// an available worker).
func New(capacity int, handle func(idx int)) *Pool {
	p := &Pool{q: queue.New(capacity), handle: handle}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetHandle replaces the pool's job function. It exists to break the
// construction cycle between a selector (which needs a worker pool to
// build) and a dispatcher (which needs the selector's reintegration
// hook to build): build the pool with a nil handle, build the selector,
// build the dispatcher from the selector, then call SetHandle before
// Start. Calling it after Start has been called is a misuse — workers
// may already be running against the old handle.
func (p *Pool) SetHandle(handle func(idx int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = handle
}

// Start launches the fixed worker goroutines.
func (p *Pool) Start(workers int) {
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.q.Len() == 0 && !p.stopping {
			p.cond.Wait()
		}
		if p.q.Len() == 0 && p.stopping {
			p.mu.Unlock()
			return
		}
		idx, _ := p.q.PopFront()
		p.mu.Unlock()

		atomic.AddInt32(&p.inflight, 1)
		p.handle(idx)
		atomic.AddInt32(&p.inflight, -1)
	}
}

// Push links idx onto the action queue and wakes exactly one worker.
func (p *Pool) Push(idx int) {
	p.mu.Lock()
	p.q.PushBack(idx)
	p.mu.Unlock()
	p.cond.Signal()
}

// QueueLen reports the number of actions currently queued (not counting
// ones a worker has already popped and is executing).
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Len()
}

// Inflight reports the number of workers currently executing handle.
func (p *Pool) Inflight() int {
	return int(atomic.LoadInt32(&p.inflight))
}

// DrainAndClose pops every queued index and invokes closeFn on each, used
// during shutdown cleanup to tear down connections that never got a
// worker (spec.md §4.5 Cleanup: "Under action_lock, drain and close every
// queued connection").
func (p *Pool) DrainAndClose(closeFn func(idx int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		idx, ok := p.q.PopFront()
		if !ok {
			return
		}
		closeFn(idx)
	}
}

// BeginStop marks the pool as stopping and wakes every idle worker so it
// can observe the flag and exit once the queue drains. It does not block;
// callers that need to know every goroutine has exited use Stop.
func (p *Pool) BeginStop() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Stop calls BeginStop and then waits for every worker goroutine to
// return. Callers must not call Stop from the same goroutine that drains
// reintegration events produced by an in-flight handle — doing so would
// deadlock; drive BeginStop plus a poll on Inflight/QueueLen from that
// goroutine instead, and call Stop only once draining is externally known
// to be complete. It does not interrupt an in-flight handle call —
// spec.md §5 documents that a stuck back-end call pins one worker
// indefinitely.
func (p *Pool) Stop() {
	p.BeginStop()
	p.wg.Wait()
}
