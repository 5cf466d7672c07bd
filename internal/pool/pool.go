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

// Package pool implements a fixed-capacity allocator of *conn.Conn
// objects. In the server only the selector allocates (on accept) and
// releases (on close) a slot, but the free list is mutex-guarded so any
// goroutine may call Allocate or Release safely; this is
// the only lock in the system that may be held independently of
// com_lock/action_lock (see internal/selector, internal/worker), and it
// is always the innermost lock acquired.
package pool

import (
	"sync"

	"github.com/fencehub/fencehub/internal/conn"
)

// Pool is a fixed-capacity set of pre-allocated connections, addressed by
// index.
type Pool struct {
	mu    sync.Mutex
	slots []*conn.Conn
	free  []int // LIFO free list of slot indices
}

// New builds a pool of the given capacity, pre-allocating every slot.
func New(capacity int) *Pool {
	p := &Pool{
		slots: make([]*conn.Conn, capacity),
		free:  make([]int, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.slots[i] = conn.New(i)
		// Fill free in descending order so Allocate hands out index 0
		// first, matching the source's low-index-first allocation.
		p.free[i] = capacity - 1 - i
	}
	return p
}

// Cap returns the pool's fixed capacity.
func (p *Pool) Cap() int { return len(p.slots) }

// Allocate removes and returns a slot from the free list, or nil if the
// pool is exhausted. By construction this should be unreachable in the
// selector's accept path, which never accepts while the I/O queue is
// already at capacity.
func (p *Pool) Allocate() *conn.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	c := p.slots[idx]
	c.Clear()
	return c
}

// Release returns c's slot to the free list for reuse. It clears c
// first, the same way Allocate does on issue, so a secret-bearing buffer
// never lingers in a pooled slot between a connection's close and its
// next accept.
func (p *Pool) Release(c *conn.Conn) {
	c.Clear()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, c.Index)
}

// At returns the connection occupying slot i.
func (p *Pool) At(i int) *conn.Conn { return p.slots[i] }

// Available reports the number of free slots (diagnostics only).
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
