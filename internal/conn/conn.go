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

// Package conn holds the per-client connection object: its socket, I/O
// buffer, framing cursor, phase, and decoded fields. A Conn is owned by
// the pool (internal/pool) from accept to close, and is linked into at
// most one of the selector's two queues at any moment.
package conn

import (
	"net"

	"github.com/fencehub/fencehub/internal/frame"
	"github.com/fencehub/fencehub/internal/strbuf"
)

// Phase is where in its lifecycle a connection currently sits.
type Phase int

const (
	Recv Phase = iota
	Send
	Pending
	Executing
	Canceled
)

func (p Phase) String() string {
	switch p {
	case Recv:
		return "RECV"
	case Send:
		return "SEND"
	case Pending:
		return "PENDING"
	case Executing:
		return "EXECUTING"
	case Canceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// IOOp is the I/O operation, if any, a connection currently needs from
// the selector.
type IOOp int

const (
	NoOp IOOp = iota
	OpRead
	OpWrite
)

const (
	maxSecretLen   = 64
	maxNodenameLen = 255
)

// Conn is one client connection's full state. The zero value is not
// useful; construct with New and reuse via Clear.
type Conn struct {
	// Index is this connection's slot in the pool. It is the stable
	// identity the intrusive queues link by.
	Index int

	Socket net.Conn

	// IO is the single buffer shared between receive and reply; a reply
	// overwrites it in place once the request has been dispatched.
	IO       []byte
	IOOffset int

	HaveHeader bool
	Type       frame.Type
	Length     uint16

	// Nodename and Secret hold the two fence-request keys dispatch cares
	// about (see spec.md §3); unrecognized keys are read and discarded
	// without ever needing a buffer of their own.
	Nodename *strbuf.Buf
	Secret   *strbuf.Buf

	IOState   IOOp
	Phase     Phase
	NextPhase Phase
}

// New allocates a Conn for pool slot index.
func New(index int) *Conn {
	return &Conn{
		Index:    index,
		IO:       make([]byte, frame.IOBufferCapacity),
		Nodename: strbuf.New(maxNodenameLen),
		Secret:   strbuf.New(maxSecretLen),
	}
}

// Clear resets all per-request state, wipes secret-bearing buffers, and
// prepares the connection to be handed to a fresh client. Called by the
// pool before Allocate returns the slot, and again after a teardown.
func (c *Conn) Clear() {
	c.Socket = nil
	c.IOOffset = 0
	c.HaveHeader = false
	c.Type = 0
	c.Length = 0
	c.Nodename.Reset()
	c.Secret.Wipe()
	c.IOState = OpRead
	c.Phase = Recv
	c.NextPhase = Pending
}

// ResetForNextRequest prepares the I/O buffer for a fresh RECV after an
// ECHO round-trip that keeps the connection open.
func (c *Conn) ResetForNextRequest() {
	c.IOOffset = 0
	c.HaveHeader = false
	c.Type = 0
	c.Length = 0
}
