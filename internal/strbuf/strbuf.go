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

// Package strbuf implements a fixed-capacity byte buffer. Every mutating
// operation fails with an error, rather than panicking, when the result
// would exceed the buffer's capacity. It exists so the protocol's
// per-field size limits (a node name, a secret) are carried in the type
// system instead of re-checked ad hoc at every call site.
package strbuf

import (
	"bytes"

	"github.com/fencehub/fencehub/internal/ferr"
	"github.com/pkg/errors"
)

// Buf is a byte buffer bounded to a fixed capacity.
type Buf struct {
	cap int
	b   []byte
}

// New returns an empty buffer with the given capacity.
func New(capacity int) *Buf {
	return &Buf{cap: capacity, b: make([]byte, 0, capacity)}
}

// Cap returns the buffer's fixed capacity.
func (s *Buf) Cap() int { return s.cap }

// Len returns the number of bytes currently held.
func (s *Buf) Len() int { return len(s.b) }

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer; callers must not retain it across a mutation.
func (s *Buf) Bytes() []byte { return s.b }

// String returns the buffer's contents as a string.
func (s *Buf) String() string { return string(s.b) }

// Empty reports whether the buffer holds zero bytes.
func (s *Buf) Empty() bool { return len(s.b) == 0 }

// Set replaces the buffer's contents with src. It fails if src is longer
// than the buffer's capacity.
func (s *Buf) Set(src []byte) error {
	if len(src) > s.cap {
		return errors.Wrapf(ferr.ErrProtocol, "value of %d bytes exceeds capacity %d", len(src), s.cap)
	}
	s.b = append(s.b[:0], src...)
	return nil
}

// Append adds src to the end of the buffer's contents. It fails if the
// result would exceed capacity, leaving the buffer unchanged.
func (s *Buf) Append(src []byte) error {
	if len(s.b)+len(src) > s.cap {
		return errors.Wrapf(ferr.ErrProtocol, "appending %d bytes would exceed capacity %d", len(src), s.cap)
	}
	s.b = append(s.b, src...)
	return nil
}

// HasPrefix reports whether the buffer's contents start with prefix.
func (s *Buf) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(s.b, prefix)
}

// IndexOf returns the index of the first occurrence of c, or -1.
func (s *Buf) IndexOf(c byte) int {
	return bytes.IndexByte(s.b, c)
}

// Slice returns a copy of s.b[from:to]. It fails if the range is out of
// bounds.
func (s *Buf) Slice(from, to int) ([]byte, error) {
	if from < 0 || to > len(s.b) || from > to {
		return nil, errors.Wrapf(ferr.ErrProtocol, "slice [%d:%d] out of range for length %d", from, to, len(s.b))
	}
	out := make([]byte, to-from)
	copy(out, s.b[from:to])
	return out, nil
}

// Reset empties the buffer without touching its backing array.
func (s *Buf) Reset() {
	s.b = s.b[:0]
}

// Wipe zeroes every byte of the buffer's backing array (including bytes
// beyond the current length) and empties it. Used for secret-bearing
// fields before a connection object returns to its pool.
func (s *Buf) Wipe() {
	full := s.b[:cap(s.b)]
	for i := range full {
		full[i] = 0
	}
	s.b = s.b[:0]
}
