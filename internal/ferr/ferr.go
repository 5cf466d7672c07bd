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

// Package ferr holds the sentinel error kinds shared across fencehub. They
// are deliberately coarse: callers use errors.Is against these sentinels and
// wrap with github.com/pkg/errors for context, rather than defining one
// error type per failure site.
package ferr

import "github.com/pkg/errors"

var (
	// ErrProtocol marks a malformed frame, oversized field, missing
	// required key, or unexpected message direction/type.
	ErrProtocol = errors.New("protocol error")

	// ErrResourceExhausted marks pool/queue capacity exceeded.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrConfiguration marks a fatal startup/configuration problem.
	ErrConfiguration = errors.New("configuration error")

	// ErrIO marks a socket read/write failure.
	ErrIO = errors.New("i/o error")
)
