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

// Package backend adapts the abstract fencing back-end described in
// spec.md §4.9/§6: init/destroy plus off/on/reboot, each taking a node
// name and returning success. Two concrete shapes satisfy the ABI spec
// describes as acceptable (§9 DESIGN NOTES): a closed set of compiled-in
// implementations (Load), or a dynamically loaded Go plugin exporting the
// same five operations as the Go symbols Init, Destroy, FenceOff, FenceOn
// and FenceReboot (LoadPlugin).
package backend

import (
	"context"

	"github.com/fencehub/fencehub/internal/ferr"
	"github.com/pkg/errors"
)

// Backend is the fencing back-end's capability surface. Every call is
// synchronous; a worker goroutine may block here for an unbounded time
// (spec.md §5 documents this as the one permitted exception to the
// "nothing blocks" rule elsewhere in the pipeline).
type Backend interface {
	Off(ctx context.Context, nodename string, secret []byte) bool
	On(ctx context.Context, nodename string, secret []byte) bool
	Reboot(ctx context.Context, nodename string, secret []byte) bool

	// Close releases any resources the back-end holds (the ABI's
	// destroy(context)).
	Close() error
}

// Factory builds a Backend from a path, which is either a well-known
// built-in name (see the registry in builtin.go) or a filesystem path to
// a Go plugin (see plugin.go).
type Factory func(path string) (Backend, error)

// Load resolves path to a Backend. Built-in names are tried first;
// anything else is treated as a path to a shared plugin. Failure here is
// fatal to server startup, per spec.md §4.9/§7.
func Load(path string) (Backend, error) {
	if b, ok := builtins[path]; ok {
		built, err := b(path)
		if err != nil {
			return nil, errors.Wrapf(ferr.ErrConfiguration, "back-end %q init failed: %v", path, err)
		}
		return built, nil
	}
	b, err := LoadPlugin(path)
	if err != nil {
		return nil, errors.Wrapf(ferr.ErrConfiguration, "loading fence module %q: %v", path, err)
	}
	return b, nil
}
