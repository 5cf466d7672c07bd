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

// Package selector implements the event-driven core: a single goroutine
// that owns the listen socket, the connection pool, and the I/O queue,
// exactly as spec.md §4.5 assigns all three to one selector thread.
//
// A literal select(2)/epoll fd-set has no idiomatic Go equivalent over
// net.Conn, so the non-blocking multiplex wait is realized instead as a
// buffered completion channel: the accept loop and every in-flight
// read/write run on their own short-lived goroutine and report back a
// single completion event, which this package's one serializing
// goroutine consumes one at a time. That goroutine is the only place
// that ever touches the I/O queue, the pool's allocate/close path for
// sockets it owns, or the Phase of a connection not currently held by a
// worker (the dispatcher sets Phase while it holds one) — the same single-writer
// discipline spec.md assigns to com_lock, without needing the lock
// itself for anything the selector goroutine exclusively owns. This
// mirrors the accept/read/write goroutine-per-operation shape used by
// the scouter and hioload-ws reference servers, adapted to a single
// dispatching consumer instead of a handler-per-goroutine model.
package selector

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/fencehub/fencehub/internal/conn"
	"github.com/fencehub/fencehub/internal/frame"
	"github.com/fencehub/fencehub/internal/pool"
	"github.com/fencehub/fencehub/internal/queue"
	"github.com/fencehub/fencehub/internal/worker"
)

type eventKind int

const (
	evAccept eventKind = iota
	evReadDone
	evWriteDone
	evReintegrate
	evWake
)

type event struct {
	kind eventKind
	idx  int
	sock net.Conn
	n    int
	err  error
}

// Selector runs the accept + readiness loop described in spec.md §4.5.
type Selector struct {
	listener net.Listener
	pool     *pool.Pool
	ioq      *queue.Queue
	workers  *worker.Pool
	events   chan event

	// acceptCh and acceptRunning are only ever touched from the selector
	// goroutine (Run, handleAccept, closeConnLocked, advancePhase), so
	// they need no lock of their own, same as the I/O queue.
	acceptCh      chan net.Conn
	acceptRunning bool

	mu       sync.Mutex
	stopping bool
}

// New builds a Selector bound to listener, backed by p (whose capacity
// is MAX_CONNECTIONS) and workers (the action-queue consumer).
func New(listener net.Listener, p *pool.Pool, workers *worker.Pool) *Selector {
	s := &Selector{
		listener: listener,
		pool:     p,
		ioq:      queue.New(p.Cap()),
		workers:  workers,
		events:   make(chan event, p.Cap()*2+4),
		acceptCh: make(chan net.Conn, 1),
	}
	return s
}

// Wake is the selector's wakeup-pipe equivalent: any goroutine that
// needs the selector to reconsider its state (such as the signal handler)
// posts an evWake instead of writing a trigger byte into a pipe
// descriptor. Reintegrate posts its own evReintegrate event instead.
func (s *Selector) Wake() {
	select {
	case s.events <- event{kind: evWake}:
	default:
		// Channel already holds a pending wakeup-equivalent event; a full
		// pipe is already-a-wakeup in spec.md §4.5 too, so dropping this
		// one is correct, not lossy.
	}
}

// Reintegrate is passed to the dispatcher as its completion hook: a
// worker goroutine calls this exactly once per Handle, from outside the
// selector goroutine, to hand the connection back.
func (s *Selector) Reintegrate(idx int) {
	s.events <- event{kind: evReintegrate, idx: idx}
}

// Run drives the selector loop until stopSignaled reports true, then
// performs the spec.md §4.5 Cleanup sequence and returns. It blocks the
// calling goroutine for the server's entire lifetime.
func (s *Selector) Run(stopSignaled func() bool) {
	s.startAcceptIfRoom()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if stopSignaled() {
			break
		}
		select {
		case sock := <-s.acceptCh:
			s.acceptRunning = false
			s.handleAccept(sock)
			s.startAcceptIfRoom()
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-ticker.C:
			// Polls stopSignaled even when idle, standing in for the
			// selector's periodic wakeup-pipe readiness check.
		}
	}

	s.cleanup()
}

// acceptLoop performs one blocking Accept and reports it, standing in
// for the listen socket becoming readable in the selector's read-set.
func (s *Selector) acceptLoop(out chan<- net.Conn) {
	sock, err := s.listener.Accept()
	if err != nil {
		return
	}
	out <- sock
}

// startAcceptIfRoom launches a fresh acceptLoop goroutine unless one is
// already in flight or the I/O queue is already at capacity, implementing
// spec.md §4.5 step 1's gating ("include the listen socket in the
// read-set" only "if |io_queue| < MAX_CONNECTIONS") instead of accepting
// unconditionally and closing the overflow. Called once at startup,
// after each accept completes (to re-arm the next one), and whenever the
// I/O queue's length has gone down (connection close or hand-off to a
// worker).
func (s *Selector) startAcceptIfRoom() {
	if s.acceptRunning || s.ioq.Len() >= s.pool.Cap() {
		return
	}
	s.acceptRunning = true
	go s.acceptLoop(s.acceptCh)
}

func (s *Selector) handleAccept(sock net.Conn) {
	if s.ioq.Len() >= s.pool.Cap() {
		// Unreachable by construction now that acceptLoop itself is only
		// ever (re)armed while the queue has room, but a stray accept
		// racing shutdown is handled defensively.
		sock.Close()
		return
	}
	c := s.pool.Allocate()
	if c == nil {
		log.Println("selector: pool exhausted on accept, dropping connection")
		sock.Close()
		return
	}
	c.Socket = sock
	c.IOState = conn.OpRead
	c.Phase = conn.Recv
	c.NextPhase = conn.Pending
	s.ioq.PushBack(c.Index)
	s.startRead(c)
}

// startRead spawns the one-shot goroutine that performs receive_step's
// non-blocking recv for connection c, reporting exactly one evReadDone.
func (s *Selector) startRead(c *conn.Conn) {
	idx := c.Index
	target := s.readTarget(c)
	buf := c.IO[c.IOOffset : c.IOOffset+target]
	sock := c.Socket
	go func() {
		n, err := sock.Read(buf)
		s.events <- event{kind: evReadDone, idx: idx, sock: sock, n: n, err: err}
	}()
}

// startWrite spawns the one-shot goroutine performing send_step's
// non-blocking send for connection c.
func (s *Selector) startWrite(c *conn.Conn) {
	idx := c.Index
	if !c.HaveHeader {
		if c.Length < frame.HeaderSize {
			c.Length = frame.HeaderSize
		}
		if c.Length > frame.IOBufferCapacity {
			c.Length = frame.IOBufferCapacity
		}
		frame.EncodeHeader(c.IO, c.Type, c.Length)
		c.HaveHeader = true
	}
	buf := c.IO[c.IOOffset:c.Length]
	sock := c.Socket
	go func() {
		n, err := sock.Write(buf)
		s.events <- event{kind: evWriteDone, idx: idx, sock: sock, n: n, err: err}
	}()
}

func (s *Selector) readTarget(c *conn.Conn) int {
	if !c.HaveHeader {
		return frame.HeaderSize - c.IOOffset
	}
	return int(c.Length) - c.IOOffset
}

func (s *Selector) handleEvent(ev event) {
	switch ev.kind {
	case evReadDone:
		s.handleReadComplete(ev)
	case evWriteDone:
		s.handleWriteComplete(ev)
	case evReintegrate:
		s.handleReintegrate(ev.idx)
	case evWake:
		// No-op: the loop re-evaluates stopSignaled on its next
		// iteration regardless; this event exists only to unblock a
		// select that might otherwise be waiting on the ticker.
	}
}

func (s *Selector) handleReadComplete(ev event) {
	c := s.pool.At(ev.idx)
	if !s.ioq.Linked(ev.idx) || c.Socket != ev.sock {
		return // connection was already closed/recycled; drop stale completion
	}
	if ev.err != nil || ev.n == 0 {
		s.closeConnLocked(ev.idx)
		return
	}

	c.IOOffset += ev.n
	if !c.HaveHeader && c.IOOffset >= frame.HeaderSize {
		typ, length := frame.DecodeHeader(c.IO)
		c.Type = typ
		c.Length = length
		c.HaveHeader = true
		if c.Length > frame.IOBufferCapacity {
			c.Length = frame.IOBufferCapacity
		}
		if c.Length < frame.HeaderSize {
			// Malformed frame: header claims a body shorter than itself.
			s.closeConnLocked(ev.idx)
			return
		}
	}

	if c.HaveHeader && c.IOOffset >= int(c.Length) {
		s.advancePhase(ev.idx)
		return
	}
	s.startRead(c)
}

func (s *Selector) handleWriteComplete(ev event) {
	c := s.pool.At(ev.idx)
	if !s.ioq.Linked(ev.idx) || c.Socket != ev.sock {
		return
	}
	if ev.err != nil {
		s.closeConnLocked(ev.idx)
		return
	}

	c.IOOffset += ev.n
	if c.IOOffset >= int(c.Length) {
		s.advancePhase(ev.idx)
		return
	}
	s.startWrite(c)
}

// advancePhase implements spec.md §4.5 steps 5–6: the phase transition
// that follows a completed receive_step or send_step.
func (s *Selector) advancePhase(idx int) {
	c := s.pool.At(idx)
	c.Phase = c.NextPhase

	switch c.Phase {
	case conn.Pending:
		s.ioq.Remove(idx)
		c.IOState = conn.NoOp
		s.workers.Push(idx)
		s.startAcceptIfRoom()
	case conn.Recv:
		c.ResetForNextRequest()
		c.NextPhase = conn.Pending
		c.IOState = conn.OpRead
		s.startRead(c)
	case conn.Canceled:
		s.closeConnLocked(idx)
	default:
		s.closeConnLocked(idx)
	}
}

// handleReintegrate implements spec.md §4.6 step 3: a worker has
// finished dispatching idx and handed it back with Phase set to one of
// {RECV, SEND, CANCELED}.
func (s *Selector) handleReintegrate(idx int) {
	c := s.pool.At(idx)

	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()

	if stopping || c.Phase == conn.Canceled {
		s.closeConnLocked(idx)
		return
	}

	s.ioq.PushBack(idx)
	switch c.Phase {
	case conn.Send:
		s.startWrite(c)
	case conn.Recv:
		s.startRead(c)
	default:
		s.closeConnLocked(idx)
	}
}

// closeConnLocked is the sole path that closes a connection's socket
// and returns its slot to the pool, satisfying spec.md §8 property 6.
func (s *Selector) closeConnLocked(idx int) {
	c := s.pool.At(idx)
	s.ioq.Remove(idx)
	if c.Socket != nil {
		c.Socket.Close()
	}
	s.pool.Release(c)
	s.startAcceptIfRoom()
}

// cleanup implements spec.md §4.5's Cleanup sequence: close the listen
// socket, drain and close every action-queue and I/O-queue connection.
func (s *Selector) cleanup() {
	s.listener.Close()

	s.workers.DrainAndClose(func(idx int) { s.closeConnLocked(idx) })

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.workers.BeginStop()
	for s.workers.Inflight() > 0 || s.workers.QueueLen() > 0 {
		select {
		case ev := <-s.events:
			if ev.kind == evReintegrate {
				s.closeConnLocked(ev.idx)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	s.workers.Stop()

drainEvents:
	for {
		select {
		case ev := <-s.events:
			if ev.kind == evReintegrate {
				s.closeConnLocked(ev.idx)
			}
		default:
			break drainEvents
		}
	}

	for {
		idx, ok := s.ioq.First()
		if !ok {
			break
		}
		s.closeConnLocked(idx)
	}
}
