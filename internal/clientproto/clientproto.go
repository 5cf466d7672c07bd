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

// Package clientproto is the fencing agent's half of the wire protocol:
// connect, send exactly one request frame, block for exactly one reply
// frame. It is symmetric to internal/selector + internal/frame but
// single-threaded and blocking, matching the agent's short-lived,
// one-shot-per-invocation lifecycle (spec.md §4.10).
package clientproto

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/fencehub/fencehub/internal/ferr"
	"github.com/fencehub/fencehub/internal/frame"
	"github.com/pkg/errors"
)

// Client holds one connection for the duration of a single request/reply
// exchange.
type Client struct {
	conn net.Conn
	io   []byte
}

// Dial resolves network (either "tcp4" or "tcp6", chosen by the caller
// from the agent's protocol parameter), binds an ephemeral local port
// on the family's wildcard address, and connects to addr:port.
func Dial(network, address string, port int, timeout time.Duration) (*Client, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		LocalAddr: wildcardAddr(network),
	}
	target := net.JoinHostPort(address, strconv.Itoa(port))
	conn, err := dialer.Dial(network, target)
	if err != nil {
		return nil, errors.Wrapf(ferr.ErrIO, "dial %s: %v", target, err)
	}
	return &Client{conn: conn, io: make([]byte, frame.IOBufferCapacity)}, nil
}

func wildcardAddr(network string) net.Addr {
	switch network {
	case "tcp6":
		return &net.TCPAddr{IP: net.IPv6zero, Port: 0}
	default:
		return &net.TCPAddr{IP: net.IPv4zero, Port: 0}
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RoundTrip sends one frame of type typ carrying fields (already
// key=value strings, unescaped) and blocks until one full reply frame
// has been read, returning its type and raw field bytes.
func (c *Client) RoundTrip(deadline time.Time, typ frame.Type, fields ...string) (frame.Type, []byte, error) {
	if err := c.conn.SetDeadline(deadline); err != nil {
		return 0, nil, errors.Wrap(ferr.ErrIO, err.Error())
	}

	offset := frame.HeaderSize
	for _, f := range fields {
		if err := frame.WriteField(c.io, len(c.io), &offset, []byte(f)); err != nil {
			return 0, nil, err
		}
	}
	frame.EncodeHeader(c.io, typ, uint16(offset))
	// net.Conn.Write satisfies io.Writer's contract (a short write must
	// return a non-nil error), so one call suffices without a loop.
	if _, err := c.conn.Write(c.io[:offset]); err != nil {
		return 0, nil, errors.Wrap(ferr.ErrIO, err.Error())
	}

	hdr := make([]byte, frame.HeaderSize)
	if _, err := io.ReadFull(c.conn, hdr); err != nil {
		return 0, nil, errors.Wrap(ferr.ErrIO, err.Error())
	}
	replyType, length := frame.DecodeHeader(hdr)
	if length < frame.HeaderSize || length > frame.IOBufferCapacity {
		return 0, nil, errors.Wrap(ferr.ErrProtocol, "reply frame has invalid length")
	}
	body := make([]byte, int(length)-frame.HeaderSize)
	if len(body) > 0 {
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return 0, nil, errors.Wrap(ferr.ErrIO, err.Error())
		}
	}
	return replyType, body, nil
}

// CheckConnection sends ECHO_REQUEST and expects ECHO_REPLY. Used by the
// status/list/monitor actions, all of which collapse to the same
// reachability probe (spec.md §9).
func (c *Client) CheckConnection(timeout time.Duration) error {
	typ, _, err := c.RoundTrip(time.Now().Add(timeout), frame.EchoRequest)
	if err != nil {
		return err
	}
	if typ != frame.EchoReply {
		return errors.Wrapf(ferr.ErrProtocol, "expected ECHO_REPLY, got %v", typ)
	}
	return nil
}

// FenceAction is which of the three power-control actions to request.
type FenceAction int

const (
	FenceOff FenceAction = iota
	FenceOn
	FenceReboot
)

func (a FenceAction) frameType() frame.Type {
	switch a {
	case FenceOn:
		return frame.FenceOn
	case FenceReboot:
		return frame.FenceReboot
	default:
		return frame.FenceOff
	}
}

// Fence sends a FENCE_OFF/FENCE_ON/FENCE_REBOOT request carrying
// NODENAME and SECRET fields, and reports whether the server answered
// FENCE_SUCCESS. Any reply kind other than FENCE_SUCCESS/FENCE_FAIL is a
// protocol error.
func (c *Client) Fence(timeout time.Duration, action FenceAction, nodename string, secret []byte) (bool, error) {
	typ, _, err := c.RoundTrip(
		time.Now().Add(timeout),
		action.frameType(),
		"NODENAME="+nodename,
		"SECRET="+string(secret),
	)
	if err != nil {
		return false, err
	}
	switch typ {
	case frame.FenceSuccess:
		return true, nil
	case frame.FenceFail:
		return false, nil
	default:
		return false, errors.Wrapf(ferr.ErrProtocol, "unexpected reply type %v", typ)
	}
}
