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

// Package dispatch implements the action dispatcher: the body every
// worker goroutine runs for a popped connection. It decodes the request
// payload, calls the fencing back-end, prepares the reply frame, and
// hands the connection back to the selector — it never touches a socket
// or the I/O queue directly; only the selector thread does that (see
// DESIGN.md, Open Question decision 5).
package dispatch

import (
	"context"
	"log"

	"github.com/fencehub/fencehub/internal/backend"
	"github.com/fencehub/fencehub/internal/conn"
	"github.com/fencehub/fencehub/internal/frame"
	"github.com/fencehub/fencehub/internal/pool"
)

// Reintegrate is called once Handle has decided a connection's new
// phase. The selector alone acts on it: pushing the connection back onto
// the I/O queue (RECV/SEND) or closing it (CANCELED).
type Reintegrate func(idx int)

// Dispatcher holds what Handle needs: the pool to look up connections by
// index, the fencing back-end, and the selector's reintegration hook.
type Dispatcher struct {
	pool        *pool.Pool
	backend     backend.Backend
	reintegrate Reintegrate
}

// New builds a Dispatcher.
func New(p *pool.Pool, be backend.Backend, reintegrate Reintegrate) *Dispatcher {
	return &Dispatcher{pool: p, backend: be, reintegrate: reintegrate}
}

// Handle is the worker-pool job function: it implements spec.md §4.7 in
// full, then always reports the resulting phase back to the selector.
func (d *Dispatcher) Handle(idx int) {
	c := d.pool.At(idx)
	c.Phase = conn.Executing

	switch c.Type {
	case frame.EchoRequest:
		d.prepareEcho(c)
	case frame.FenceOff:
		d.prepareFence(c, d.backend.Off)
	case frame.FenceOn:
		d.prepareFence(c, d.backend.On)
	case frame.FenceReboot:
		d.prepareFence(c, d.backend.Reboot)
	default:
		// Any server-direction or unknown type from a client is a
		// protocol violation: cancel without a reply.
		c.Phase = conn.Canceled
		c.IOState = conn.NoOp
	}

	d.reintegrate(idx)
}

func (d *Dispatcher) prepareEcho(c *conn.Conn) {
	c.HaveHeader = false
	c.Type = frame.EchoReply
	c.Length = frame.HeaderSize
	c.IOOffset = 0
	c.Phase = conn.Send
	c.NextPhase = conn.Recv
	c.IOState = conn.OpWrite
}

type fenceAction func(ctx context.Context, nodename string, secret []byte) bool

func (d *Dispatcher) prepareFence(c *conn.Conn, action fenceAction) {
	if err := parseFields(c); err != nil {
		log.Println("dispatch: protocol error parsing fence request:", err)
		c.Phase = conn.Canceled
		c.IOState = conn.NoOp
		return
	}
	if c.Nodename.Empty() {
		c.Phase = conn.Canceled
		c.IOState = conn.NoOp
		return
	}

	success := action(context.Background(), c.Nodename.String(), c.Secret.Bytes())

	c.HaveHeader = false
	if success {
		c.Type = frame.FenceSuccess
	} else {
		c.Type = frame.FenceFail
	}
	c.Length = frame.HeaderSize
	c.IOOffset = 0
	c.Phase = conn.Send
	// Closing right after the reply is an explicit, documented choice
	// carried over unchanged from the source design (see DESIGN.md):
	// one fence action per connection.
	c.NextPhase = conn.Canceled
	c.IOState = conn.OpWrite
}

// parseFields walks the fields in c.IO starting just after the header,
// routing NODENAME/SECRET into their buffers and ignoring other keys.
func parseFields(c *conn.Conn) error {
	c.Nodename.Reset()
	c.Secret.Reset()

	offset := frame.HeaderSize
	length := int(c.Length)
	for offset < length {
		field, err := frame.ReadField(c.IO, length, &offset)
		if err != nil {
			return err
		}
		key, value, err := frame.SplitKeyValue(field)
		if err != nil {
			return err
		}
		switch string(key) {
		case "NODENAME":
			if err := c.Nodename.Set(value); err != nil {
				return err
			}
		case "SECRET":
			if err := c.Secret.Set(value); err != nil {
				return err
			}
		default:
			// Unrecognized keys are ignored, per spec.md §4.1.
		}
	}
	return nil
}
