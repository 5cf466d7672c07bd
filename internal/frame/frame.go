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

// Package frame encodes and decodes the wire protocol: a fixed 4-byte
// header followed by zero or more length-prefixed fields. All integers are
// big-endian. Every function here is pure and non-blocking: it only ever
// touches the byte slice and offset it is given.
package frame

import (
	"encoding/binary"

	"github.com/fencehub/fencehub/internal/ferr"
	"github.com/pkg/errors"
)

// Message types, per the wire protocol.
type Type uint16

const (
	EchoRequest    Type = 0x0000
	EchoReply      Type = 0x0001
	VersionRequest Type = 0x0002
	FenceOff       Type = 0x0081
	FenceOn        Type = 0x0082
	FenceReboot    Type = 0x0083
	FenceSuccess   Type = 0x00A0
	FenceFail      Type = 0x00A1
)

const (
	// HeaderSize is the fixed size, in bytes, of the frame header.
	HeaderSize = 4

	// IOBufferCapacity is the largest frame (header included) the server
	// and agent will ever read or write.
	IOBufferCapacity = 1024

	// fieldLenSize is the width of a field's length prefix.
	fieldLenSize = 2
)

// EncodeHeader writes the 4-byte big-endian header (type, length) at
// offset 0 of buf. buf must be at least HeaderSize bytes.
func EncodeHeader(buf []byte, typ Type, length uint16) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(typ))
	binary.BigEndian.PutUint16(buf[2:4], length)
}

// DecodeHeader reads the 4-byte big-endian header at offset 0 of buf.
// buf must be at least HeaderSize bytes.
func DecodeHeader(buf []byte) (typ Type, length uint16) {
	typ = Type(binary.BigEndian.Uint16(buf[0:2]))
	length = binary.BigEndian.Uint16(buf[2:4])
	return
}

// WriteField appends a length-prefixed field (len(u16 BE) || bytes) to buf
// at *offset, advancing *offset past the field. It fails if the value is
// too long to express in a u16 length, or if it would not fit in cap
// bytes.
func WriteField(buf []byte, cap int, offset *int, value []byte) error {
	if len(value) > 0xFFFF {
		return errors.Wrapf(ferr.ErrProtocol, "field too long: %d bytes", len(value))
	}
	need := fieldLenSize + len(value)
	if *offset+need > cap {
		return errors.Wrapf(ferr.ErrProtocol, "field does not fit: offset=%d need=%d cap=%d", *offset, need, cap)
	}
	binary.BigEndian.PutUint16(buf[*offset:*offset+2], uint16(len(value)))
	copy(buf[*offset+2:*offset+need], value)
	*offset += need
	return nil
}

// ReadField reads one length-prefixed field starting at *offset, advancing
// *offset past it, and returns the field bytes as a sub-slice of buf (no
// copy). It fails on a short remainder or a length prefix that claims more
// bytes than remain within cap.
func ReadField(buf []byte, cap int, offset *int) ([]byte, error) {
	if *offset+fieldLenSize > cap {
		return nil, errors.Wrap(ferr.ErrProtocol, "truncated field length prefix")
	}
	n := int(binary.BigEndian.Uint16(buf[*offset : *offset+2]))
	start := *offset + fieldLenSize
	end := start + n
	if end > cap {
		return nil, errors.Wrap(ferr.ErrProtocol, "truncated field body")
	}
	*offset = end
	return buf[start:end], nil
}

// SplitKeyValue finds the first '=' in b, returning the portion before it
// as the key and the portion after it as the value. It fails if no '='
// is present.
func SplitKeyValue(b []byte) (key, value []byte, err error) {
	for i, c := range b {
		if c == '=' {
			return b[:i], b[i+1:], nil
		}
	}
	return nil, nil, errors.Wrap(ferr.ErrProtocol, "field missing '=' separator")
}

// IsServerDirection reports whether typ is one this server only ever
// sends, never receives from a client.
func IsServerDirection(typ Type) bool {
	switch typ {
	case EchoReply, FenceSuccess, FenceFail:
		return true
	default:
		return false
	}
}

// IsKnown reports whether typ is any recognized message type.
func IsKnown(typ Type) bool {
	switch typ {
	case EchoRequest, EchoReply, VersionRequest, FenceOff, FenceOn, FenceReboot, FenceSuccess, FenceFail:
		return true
	default:
		return false
	}
}

// IsFenceRequest reports whether typ is one of the three fencing actions.
func IsFenceRequest(typ Type) bool {
	switch typ {
	case FenceOff, FenceOn, FenceReboot:
		return true
	default:
		return false
	}
}
