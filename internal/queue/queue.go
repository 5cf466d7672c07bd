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

// Package queue implements an intrusive doubly-linked FIFO over a set of
// nodes identified by a stable integer (their index into the connection
// pool), rather than by pointer. This avoids self-referential pointers
// when a connection moves between the I/O queue and the action queue: a
// node only ever needs to remember the index of its neighbors, which
// never changes, even if the underlying connection object is reused by
// the pool.
//
// Callers are responsible for holding whatever mutex guards a given
// Queue; the type itself does no locking (the selector's I/O queue is
// touched only by the selector goroutine, and the worker pool's action
// queue is guarded by the pool's mutex — see internal/selector and
// internal/worker).
package queue

const none = -1

// node holds the links for one queued element, keyed by its pool index.
type node struct {
	linked     bool
	prev, next int
}

// Queue is an intrusive FIFO over elements 0..n-1 (typically pool slots).
type Queue struct {
	nodes      []node
	head, tail int
	size       int
}

// New returns a queue capable of holding elements with indices in
// [0, capacity).
func New(capacity int) *Queue {
	nodes := make([]node, capacity)
	for i := range nodes {
		nodes[i].prev, nodes[i].next = none, none
	}
	return &Queue{nodes: nodes, head: none, tail: none}
}

// Len returns the number of linked elements.
func (q *Queue) Len() int { return q.size }

// Linked reports whether idx is currently linked into the queue.
func (q *Queue) Linked(idx int) bool { return q.nodes[idx].linked }

// PushBack links idx at the tail. idx must not already be linked.
func (q *Queue) PushBack(idx int) {
	n := &q.nodes[idx]
	n.linked = true
	n.next = none
	n.prev = q.tail
	if q.tail != none {
		q.nodes[q.tail].next = idx
	} else {
		q.head = idx
	}
	q.tail = idx
	q.size++
}

// PopFront unlinks and returns the head element, and true. If the queue
// is empty it returns (0, false).
func (q *Queue) PopFront() (int, bool) {
	if q.head == none {
		return 0, false
	}
	idx := q.head
	q.Remove(idx)
	return idx, true
}

// First returns the head element and true, or (0, false) if empty,
// without unlinking it.
func (q *Queue) First() (int, bool) {
	if q.head == none {
		return 0, false
	}
	return q.head, true
}

// NextOf returns the element following idx and true, or (0, false) if idx
// is the tail. idx must currently be linked.
func (q *Queue) NextOf(idx int) (int, bool) {
	n := q.nodes[idx].next
	if n == none {
		return 0, false
	}
	return n, true
}

// Remove unlinks idx from wherever it currently sits in the queue. Calling
// Remove on an index that is not linked is a no-op.
func (q *Queue) Remove(idx int) {
	n := &q.nodes[idx]
	if !n.linked {
		return
	}
	if n.prev != none {
		q.nodes[n.prev].next = n.next
	} else {
		q.head = n.next
	}
	if n.next != none {
		q.nodes[n.next].prev = n.prev
	} else {
		q.tail = n.prev
	}
	n.prev, n.next = none, none
	n.linked = false
	q.size--
}
